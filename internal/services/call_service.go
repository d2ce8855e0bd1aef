package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/intervyu/internal/call"
	"github.com/yoockh/intervyu/internal/events"
	"github.com/yoockh/intervyu/internal/metrics"
	"github.com/yoockh/intervyu/internal/models"
	"github.com/yoockh/intervyu/internal/prompts"
	"github.com/yoockh/intervyu/internal/utils"
	"github.com/yoockh/intervyu/internal/voice"
)

var errNoAgent = errors.New("no voice client attached to this session")

type CreateCallParams struct {
	UserID      string
	UserName    string
	Mode        models.CallMode
	InterviewID string
}

// CallInfo is the externally visible snapshot of one session.
type CallInfo struct {
	SessionID   string          `json:"sessionId"`
	UserID      string          `json:"userId"`
	Mode        models.CallMode `json:"mode"`
	InterviewID string          `json:"interviewId,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	Status      call.Status     `json:"status"`
}

type CallService interface {
	Create(ctx context.Context, p CreateCallParams) (*CallInfo, error)
	// Attach connects the browser hosting the voice SDK to a session.
	Attach(sessionID, userID string, agent voice.Agent, nav call.Navigator) error
	Detach(sessionID string, agent voice.Agent)
	Start(ctx context.Context, sessionID, userID string) error
	HandleEvent(sessionID string, ev voice.Event) error
	Stop(ctx context.Context, sessionID, userID string) (*CallInfo, error)
	Get(sessionID, userID string) (*CallInfo, error)
	// Reap stops sessions idle longer than maxIdle and drops terminal ones.
	Reap(ctx context.Context, maxIdle time.Duration) int
	Remove(sessionID string)
	Active() int
	// Drain waits for post-call pipelines that are still running.
	Drain(ctx context.Context) error
}

type CallDeps struct {
	Interviews InterviewService
	Feedback   FeedbackService
	CallLogs   CallLogService
	Profiles   ProfileService
	Prompts    *prompts.Manager
	WorkflowID string
	Events     EventPublisher
	Metrics    *metrics.Metrics
	Logger     logrus.FieldLogger

	// BaseContext carries values for post-call pipelines. Its cancellation
	// is not propagated; use Drain to wait for them on shutdown.
	BaseContext context.Context
	Now         func() time.Time
}

type callSession struct {
	id          string
	userID      string
	mode        models.CallMode
	interviewID string
	createdAt   time.Time
	payload     call.Payload
	link        *agentLink
	ctrl        *call.Controller
}

func (s *callSession) info() *CallInfo {
	return &CallInfo{
		SessionID:   s.id,
		UserID:      s.userID,
		Mode:        s.mode,
		InterviewID: s.interviewID,
		CreatedAt:   s.createdAt,
		Status:      s.ctrl.Status(),
	}
}

type callService struct {
	CallDeps
	pipelines callPipelines
	inflight  inflight

	mu       sync.RWMutex
	sessions map[string]*callSession
}

func NewCallService(d CallDeps) CallService {
	if d.Events == nil {
		d.Events = nopPublisher{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop()
	}
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	if d.BaseContext == nil {
		d.BaseContext = context.Background()
	}
	d.BaseContext = context.WithoutCancel(d.BaseContext)
	if d.Now == nil {
		d.Now = time.Now
	}
	return &callService{
		CallDeps:  d,
		pipelines: callPipelines{interviews: d.Interviews, feedback: d.Feedback},
		sessions:  make(map[string]*callSession),
	}
}

func (s *callService) Create(ctx context.Context, p CreateCallParams) (*CallInfo, error) {
	const op = "CallService.Create"

	if p.UserID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	payload := call.Payload{
		UserID:   p.UserID,
		UserName: s.displayName(ctx, p),
	}
	switch p.Mode {
	case models.ModeGenerate:
		payload.WorkflowID = s.WorkflowID
	case models.ModeInterview:
		if p.InterviewID == "" {
			return nil, utils.E(utils.CodeInvalidArgument, op, "interviewId is required for interview mode", nil)
		}
		in, err := s.Interviews.GetByID(ctx, p.InterviewID)
		if err != nil {
			return nil, err
		}
		persona, err := s.interviewer()
		if err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to load interviewer persona", err)
		}
		payload.InterviewID = p.InterviewID
		payload.Questions = in.Questions
		payload.Interviewer = persona
	default:
		return nil, utils.E(utils.CodeInvalidArgument, op, "mode must be generate or interview", nil)
	}

	sess := &callSession{
		id:          uuid.NewString(),
		userID:      p.UserID,
		mode:        p.Mode,
		interviewID: p.InterviewID,
		createdAt:   s.Now().UTC(),
		payload:     payload,
		link:        &agentLink{},
	}
	log := s.Logger.WithFields(logrus.Fields{
		"session_id": sess.id,
		"user_id":    sess.userID,
		"mode":       sess.mode,
	})
	sess.ctrl = call.NewController(call.Config{
		Agent:        sess.link,
		Pipelines:    s.pipelines,
		Navigator:    sess.link,
		Logger:       log,
		OnDispatched: func(out call.Outcome) { s.onDispatched(sess, out) },
		BaseContext:  s.BaseContext,
		Now:          s.Now,
		Go:           s.inflight.Go,
	})

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	s.Metrics.CallsActive.Inc()

	log.Info("call session created")
	return sess.info(), nil
}

func (s *callService) displayName(ctx context.Context, p CreateCallParams) string {
	if p.UserName != "" {
		return p.UserName
	}
	if s.Profiles != nil {
		return s.Profiles.DisplayName(ctx, p.UserID)
	}
	return (*models.Profile)(nil).DisplayName()
}

func (s *callService) interviewer() (voice.Persona, error) {
	tpl, err := s.Prompts.Render(prompts.Interviewer, nil)
	if err != nil {
		return voice.Persona{}, err
	}
	return voice.Persona{
		Name:         tpl.Name,
		FirstMessage: tpl.FirstMessage,
		SystemPrompt: tpl.System,
		Voice:        tpl.Voice,
		Model:        tpl.Model,
	}, nil
}

func (s *callService) lookup(op, sessionID, userID string) (*callSession, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok || (userID != "" && sess.userID != userID) {
		return nil, utils.E(utils.CodeNotFound, op, "call session not found", nil)
	}
	return sess, nil
}

func (s *callService) Attach(sessionID, userID string, agent voice.Agent, nav call.Navigator) error {
	const op = "CallService.Attach"

	sess, err := s.lookup(op, sessionID, userID)
	if err != nil {
		return err
	}
	sess.link.attach(agent, nav)
	return nil
}

func (s *callService) Detach(sessionID string, agent voice.Agent) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		sess.link.detach(agent)
	}
}

func (s *callService) Start(ctx context.Context, sessionID, userID string) error {
	const op = "CallService.Start"

	sess, err := s.lookup(op, sessionID, userID)
	if err != nil {
		return err
	}
	if err := sess.ctrl.Start(ctx, sess.mode, sess.payload); err != nil {
		switch {
		case errors.Is(err, call.ErrAlreadyActive):
			return utils.E(utils.CodeConflict, op, "call already started", err)
		case errors.Is(err, call.ErrSessionStartFailed):
			return utils.E(utils.CodeFailedPrecondition, op, "voice session could not be established", err)
		default:
			return utils.E(utils.CodeInternal, op, "failed to start call", err)
		}
	}
	s.Metrics.CallsStarted.WithLabelValues(string(sess.mode)).Inc()
	return nil
}

func (s *callService) HandleEvent(sessionID string, ev voice.Event) error {
	const op = "CallService.HandleEvent"

	sess, err := s.lookup(op, sessionID, "")
	if err != nil {
		return err
	}
	sess.ctrl.HandleEvent(ev)
	return nil
}

func (s *callService) Stop(ctx context.Context, sessionID, userID string) (*CallInfo, error) {
	const op = "CallService.Stop"

	sess, err := s.lookup(op, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if err := sess.ctrl.Stop(ctx); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to stop call", err)
	}
	return sess.info(), nil
}

func (s *callService) Get(sessionID, userID string) (*CallInfo, error) {
	const op = "CallService.Get"

	sess, err := s.lookup(op, sessionID, userID)
	if err != nil {
		return nil, err
	}
	return sess.info(), nil
}

func (s *callService) Reap(ctx context.Context, maxIdle time.Duration) int {
	now := s.Now()

	s.mu.RLock()
	idle := make([]*callSession, 0)
	for _, sess := range s.sessions {
		if now.Sub(sess.ctrl.LastActivity()) > maxIdle {
			idle = append(idle, sess)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, sess := range idle {
		log := s.Logger.WithField("session_id", sess.id)
		if sess.ctrl.State() != call.StateFinished {
			log.Info("stopping idle call session")
			_ = sess.ctrl.Stop(ctx)
		}

		st := sess.ctrl.Status()
		if _, done := sess.ctrl.Outcome(); st.Dispatched && !done {
			// pipeline still running; picked up on a later pass
			continue
		}
		if !st.Dispatched {
			info := sess.info()
			if s.CallLogs != nil {
				if err := s.CallLogs.RecordAborted(ctx, *info, now.UTC()); err != nil {
					log.WithError(err).Warn("failed to record aborted call")
				}
			}
			s.Metrics.CallOutcomes.WithLabelValues(string(sess.mode), OutcomeAborted).Inc()
		}
		s.Remove(sess.id)
		removed++
	}
	return removed
}

func (s *callService) Remove(sessionID string) {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if ok {
		s.Metrics.CallsActive.Dec()
	}
}

func (s *callService) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *callService) Drain(ctx context.Context) error {
	const op = "CallService.Drain"

	if n := s.inflight.Running(); n > 0 {
		s.Logger.WithField("pipelines", n).Info("waiting for post-call pipelines")
	}
	if err := s.inflight.Wait(ctx); err != nil {
		return utils.E(utils.CodeTimeout, op, "post-call pipelines still running", err)
	}
	return nil
}

func (s *callService) onDispatched(sess *callSession, out call.Outcome) {
	ctx := s.BaseContext
	label := OutcomeLabel(out)
	s.Metrics.CallOutcomes.WithLabelValues(string(out.Mode), label).Inc()

	log := s.Logger.WithFields(logrus.Fields{"session_id": sess.id, "outcome": label})
	if s.CallLogs != nil {
		if err := s.CallLogs.Record(ctx, sess.id, out); err != nil {
			log.WithError(err).Warn("failed to record call log")
		}
	}
	publish(ctx, s.Events, log, events.CallFinished, sess.id, map[string]any{
		"sessionId":   sess.id,
		"userId":      out.UserID,
		"mode":        out.Mode,
		"interviewId": out.InterviewID,
		"outcome":     label,
		"resultId":    out.ResultID,
		"entries":     out.Entries,
	})
}

// inflight counts dispatch goroutines so shutdown can wait for them.
type inflight struct {
	mu      sync.Mutex
	running int
	idle    chan struct{}
}

func (f *inflight) Go(fn func()) {
	f.mu.Lock()
	if f.running == 0 {
		f.idle = make(chan struct{})
	}
	f.running++
	f.mu.Unlock()

	go func() {
		defer f.finish()
		fn()
	}()
}

func (f *inflight) finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running--
	if f.running == 0 {
		close(f.idle)
	}
}

func (f *inflight) Running() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Wait returns once every dispatch started before the call has finished.
func (f *inflight) Wait(ctx context.Context) error {
	f.mu.Lock()
	if f.running == 0 {
		f.mu.Unlock()
		return nil
	}
	idle := f.idle
	f.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// callPipelines routes terminal dispatch to the generation and scoring services.
type callPipelines struct {
	interviews InterviewService
	feedback   FeedbackService
}

func (p callPipelines) GenerateFromTranscript(ctx context.Context, userID string, t []models.TranscriptEntry) (string, error) {
	return p.interviews.GenerateFromTranscript(ctx, userID, t)
}

func (p callPipelines) ScoreTranscript(ctx context.Context, interviewID, userID string, t []models.TranscriptEntry) (string, error) {
	return p.feedback.Score(ctx, interviewID, userID, t)
}

// agentLink lets a controller outlive the socket of the browser driving it.
type agentLink struct {
	mu    sync.Mutex
	agent voice.Agent
	nav   call.Navigator
}

func (l *agentLink) attach(agent voice.Agent, nav call.Navigator) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.agent = agent
	l.nav = nav
}

func (l *agentLink) detach(agent voice.Agent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.agent == agent {
		l.agent = nil
		l.nav = nil
	}
}

func (l *agentLink) current() (voice.Agent, call.Navigator) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.agent, l.nav
}

func (l *agentLink) Start(ctx context.Context, d voice.Descriptor) error {
	agent, _ := l.current()
	if agent == nil {
		return errNoAgent
	}
	return agent.Start(ctx, d)
}

func (l *agentLink) Stop(ctx context.Context) error {
	agent, _ := l.current()
	if agent == nil {
		return nil
	}
	return agent.Stop(ctx)
}

func (l *agentLink) Navigate(path string) {
	if _, nav := l.current(); nav != nil {
		nav.Navigate(path)
	}
}
