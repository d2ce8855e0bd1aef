package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	DefaultReapSchedule = "@every 1m"
	DefaultMaxIdle      = 30 * time.Minute
)

// Reaper is the part of the call registry the job drives.
type Reaper interface {
	Reap(ctx context.Context, maxIdle time.Duration) int
	Active() int
}

type ReaperConfig struct {
	Schedule string
	MaxIdle  time.Duration
}

// SessionReaper periodically stops call sessions nobody is driving anymore,
// so abandoned tabs don't pin controllers in memory forever.
type SessionReaper struct {
	calls  Reaper
	config ReaperConfig
	log    logrus.FieldLogger
	cron   *cron.Cron
	ctx    context.Context
}

func NewSessionReaper(ctx context.Context, calls Reaper, cfg ReaperConfig, log logrus.FieldLogger) *SessionReaper {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultReapSchedule
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = DefaultMaxIdle
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SessionReaper{
		calls:  calls,
		config: cfg,
		log:    log.WithField("job", "session_reaper"),
		cron:   cron.New(),
		ctx:    ctx,
	}
}

func (r *SessionReaper) Start() error {
	if _, err := r.cron.AddFunc(r.config.Schedule, func() { r.RunOnce() }); err != nil {
		return fmt.Errorf("failed to schedule session reaper: %w", err)
	}
	r.cron.Start()
	r.log.WithFields(logrus.Fields{
		"schedule": r.config.Schedule,
		"max_idle": r.config.MaxIdle.String(),
	}).Info("session reaper started")
	return nil
}

// Stop waits for a running pass to finish.
func (r *SessionReaper) Stop() {
	<-r.cron.Stop().Done()
	r.log.Info("session reaper stopped")
}

// RunOnce performs a single pass and returns how many sessions were removed.
func (r *SessionReaper) RunOnce() int {
	n := r.calls.Reap(r.ctx, r.config.MaxIdle)
	if n > 0 {
		r.log.WithFields(logrus.Fields{
			"removed": n,
			"active":  r.calls.Active(),
		}).Info("reaped idle call sessions")
	}
	return n
}
