package call

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/intervyu/internal/models"
	"github.com/yoockh/intervyu/internal/voice"
)

// Pipelines are the post-call side effects. Exactly one of them runs per
// finished session, chosen by mode.
type Pipelines interface {
	GenerateFromTranscript(ctx context.Context, userID string, transcript []models.TranscriptEntry) (interviewID string, err error)
	ScoreTranscript(ctx context.Context, interviewID, userID string, transcript []models.TranscriptEntry) (feedbackID string, err error)
}

type Navigator interface {
	Navigate(path string)
}

// Payload is what Start needs to describe the session to the agent.
type Payload struct {
	UserID   string
	UserName string

	// generate mode
	WorkflowID string

	// interview mode
	InterviewID string
	Interviewer voice.Persona
	Questions   []string
}

// Outcome describes the single terminal dispatch of a session.
type Outcome struct {
	Mode        models.CallMode
	UserID      string
	InterviewID string
	Entries     int
	ResultID    string
	Redirect    string
	Err         error
	StartedAt   time.Time
	EndedAt     time.Time
}

func (o Outcome) Succeeded() bool { return o.Err == nil }

type Status struct {
	State      State           `json:"state"`
	Mode       models.CallMode `json:"mode,omitempty"`
	Partial    string          `json:"partial,omitempty"`
	Speaking   bool            `json:"speaking"`
	Entries    int             `json:"entries"`
	Dispatched bool            `json:"dispatched"`
	Redirect   string          `json:"redirect,omitempty"`
}

type Config struct {
	Agent     voice.Agent
	Pipelines Pipelines
	Navigator Navigator
	Logger    logrus.FieldLogger

	// OnDispatched observes the terminal outcome (call logs, metrics, events).
	OnDispatched func(Outcome)

	// BaseContext bounds pipeline calls. Pipelines are not cancelled when the
	// triggering request or socket goes away.
	BaseContext context.Context
	Now         func() time.Time

	// Go launches the terminal dispatch. Defaults to a plain goroutine.
	Go func(func())
}

// Controller is the lifecycle of one voice call:
// idle -> connecting -> active -> finished. A controller is never reused.
type Controller struct {
	cfg Config

	mu         sync.Mutex
	state      State
	mode       models.CallMode
	payload    Payload
	speaking   bool
	armed      bool
	startedAt  time.Time
	lastActive time.Time
	outcome    *Outcome

	transcript Transcript
	done       chan struct{}
}

func NewController(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Go == nil {
		cfg.Go = func(fn func()) { go fn() }
	}
	return &Controller{
		cfg:        cfg,
		state:      StateIdle,
		armed:      true,
		lastActive: cfg.Now(),
		done:       make(chan struct{}),
	}
}

// Start asks the agent to establish the session. The controller becomes
// active only when the agent reports call-start.
func (c *Controller) Start(ctx context.Context, mode models.CallMode, p Payload) error {
	desc, err := describe(mode, p)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyActive
	}
	c.state = StateConnecting
	c.mode = mode
	c.payload = p
	c.lastActive = c.cfg.Now()
	c.mu.Unlock()

	if err := c.cfg.Agent.Start(ctx, desc); err != nil {
		c.revertStart(err)
		return fmt.Errorf("%w: %v", ErrSessionStartFailed, err)
	}
	return nil
}

func (c *Controller) revertStart(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateConnecting {
		c.state = StateIdle
	}
	c.cfg.Logger.WithError(cause).WithField("mode", c.mode).Warn("voice session start failed")
}

// Stop is the manual disconnect: it requests agent teardown and finishes the
// session without waiting for the agent's own call-end.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateFinished {
		c.mu.Unlock()
		return nil
	}
	wasLive := c.state != StateIdle
	c.finishLocked()
	c.mu.Unlock()

	if wasLive {
		if err := c.cfg.Agent.Stop(ctx); err != nil {
			c.cfg.Logger.WithError(err).Warn("voice agent teardown failed")
		}
	}
	return nil
}

// HandleEvent applies one agent event. Events after finish only extend the
// transcript; state changes are no-ops.
func (c *Controller) HandleEvent(ev voice.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastActive = c.cfg.Now()

	switch ev.Type {
	case voice.EventCallStart:
		if c.state == StateConnecting {
			c.state = StateActive
			c.startedAt = c.cfg.Now()
		}
	case voice.EventCallEnd:
		if c.state == StateConnecting || c.state == StateActive {
			c.finishLocked()
		}
	case voice.EventStartFailed:
		if c.state == StateConnecting {
			c.state = StateIdle
			c.cfg.Logger.WithField("error", ev.Error).Warn("voice session start failed")
		}
	case voice.EventSpeechStart:
		c.speaking = true
	case voice.EventSpeechEnd:
		c.speaking = false
	case voice.EventError:
		c.cfg.Logger.WithField("error", ev.Error).Error("voice agent error")
	case voice.EventMessage:
		c.handleMessageLocked(ev.Message)
	}
}

func (c *Controller) handleMessageLocked(m *voice.Message) {
	if !m.IsTranscript() {
		return
	}
	if !m.IsFinal() {
		c.transcript.SetPartial(m.Transcript)
		return
	}

	speaker, ok := models.ParseSpeaker(m.Role)
	if !ok {
		c.transcript.SetPartial("")
		c.cfg.Logger.WithField("role", m.Role).Warn("dropping transcript with unknown role")
		return
	}
	c.transcript.Append(models.TranscriptEntry{Speaker: speaker, Text: m.Transcript})
	c.maybeDispatchLocked()
}

func (c *Controller) finishLocked() {
	c.state = StateFinished
	c.maybeDispatchLocked()
}

// maybeDispatchLocked fires the terminal action at most once, and only once
// the session is finished with a non-empty transcript.
func (c *Controller) maybeDispatchLocked() {
	if c.state != StateFinished || !c.armed || c.transcript.Len() == 0 {
		return
	}
	c.armed = false

	out := Outcome{
		Mode:        c.mode,
		UserID:      c.payload.UserID,
		InterviewID: c.payload.InterviewID,
		StartedAt:   c.startedAt,
	}
	entries := c.transcript.Snapshot()
	c.cfg.Go(func() { c.dispatch(out, entries) })
}

func (c *Controller) dispatch(out Outcome, entries []models.TranscriptEntry) {
	defer close(c.done)

	ctx := c.cfg.BaseContext
	out.Entries = len(entries)
	log := c.cfg.Logger.WithFields(logrus.Fields{
		"mode":    out.Mode,
		"user_id": out.UserID,
		"entries": out.Entries,
	})

	switch out.Mode {
	case models.ModeGenerate:
		out.ResultID, out.Err = c.cfg.Pipelines.GenerateFromTranscript(ctx, out.UserID, entries)
		out.Redirect = HomePath
	case models.ModeInterview:
		out.ResultID, out.Err = c.cfg.Pipelines.ScoreTranscript(ctx, out.InterviewID, out.UserID, entries)
		if out.Err == nil {
			out.Redirect = FeedbackPath(out.InterviewID)
		} else {
			out.Redirect = HomePath
		}
	default:
		out.Err = ErrUnknownMode
		out.Redirect = HomePath
	}
	out.EndedAt = c.cfg.Now()

	if out.Err != nil {
		log.WithError(out.Err).Error("post-call pipeline failed")
	} else {
		log.WithField("result_id", out.ResultID).Info("post-call pipeline done")
	}

	c.mu.Lock()
	c.outcome = &out
	c.mu.Unlock()

	if c.cfg.OnDispatched != nil {
		c.cfg.OnDispatched(out)
	}
	if c.cfg.Navigator != nil {
		c.cfg.Navigator.Navigate(out.Redirect)
	}
}

// Done is closed after the terminal dispatch has completed. It never closes
// for sessions that finish with an empty transcript.
func (c *Controller) Done() <-chan struct{} { return c.done }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Transcript() []models.TranscriptEntry { return c.transcript.Snapshot() }

func (c *Controller) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

func (c *Controller) Outcome() (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcome == nil {
		return Outcome{}, false
	}
	return *c.outcome, true
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		State:      c.state,
		Mode:       c.mode,
		Partial:    c.transcript.Partial(),
		Speaking:   c.speaking,
		Entries:    c.transcript.Len(),
		Dispatched: !c.armed,
	}
	if c.outcome != nil {
		st.Redirect = c.outcome.Redirect
	}
	return st
}

// FormatQuestions renders questions the way the interviewer persona expects
// them: one "- " bullet per line.
func FormatQuestions(questions []string) string {
	lines := make([]string, 0, len(questions))
	for _, q := range questions {
		lines = append(lines, "- "+q)
	}
	return strings.Join(lines, "\n")
}

const questionsPlaceholder = "{{questions}}"

func describe(mode models.CallMode, p Payload) (voice.Descriptor, error) {
	switch mode {
	case models.ModeGenerate:
		return voice.Descriptor{
			WorkflowID: p.WorkflowID,
			VariableValues: map[string]string{
				"username": p.UserName,
				"userid":   p.UserID,
			},
		}, nil
	case models.ModeInterview:
		formatted := FormatQuestions(p.Questions)
		persona := p.Interviewer
		persona.SystemPrompt = strings.ReplaceAll(persona.SystemPrompt, questionsPlaceholder, formatted)
		persona.FirstMessage = strings.ReplaceAll(persona.FirstMessage, questionsPlaceholder, formatted)
		return voice.Descriptor{
			Assistant:      &persona,
			VariableValues: map[string]string{"questions": formatted},
		}, nil
	}
	return voice.Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}
