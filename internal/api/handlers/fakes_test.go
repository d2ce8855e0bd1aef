package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/intervyu/internal/api/middleware"
	"github.com/yoockh/intervyu/internal/call"
	"github.com/yoockh/intervyu/internal/models"
	"github.com/yoockh/intervyu/internal/services"
	"github.com/yoockh/intervyu/internal/utils"
	"github.com/yoockh/intervyu/internal/voice"
	"github.com/yoockh/intervyu/internal/workers"
)

func init() { gin.SetMode(gin.TestMode) }

// asUser stands in for JWTAuth.
func asUser(id, name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id != "" {
			c.Set(middleware.CtxUserID, id)
			c.Set(middleware.CtxUserName, name)
		}
		c.Next()
	}
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type fakeInterviews struct {
	mu sync.Mutex

	id  string
	err error

	configUser string
	config     models.InterviewConfig
	transcript []models.TranscriptEntry

	list      []models.Interview
	got       *models.Interview
	dashboard *services.Dashboard
	lastLimit int
}

func (f *fakeInterviews) GenerateFromTranscript(_ context.Context, userID string, t []models.TranscriptEntry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configUser, f.transcript = userID, t
	return f.id, f.err
}

func (f *fakeInterviews) GenerateFromConfig(_ context.Context, userID string, cfg models.InterviewConfig) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configUser, f.config = userID, cfg
	return f.id, f.err
}

func (f *fakeInterviews) GetLatest(_ context.Context, _ string, limit int) ([]models.Interview, error) {
	f.lastLimit = limit
	return f.list, f.err
}

func (f *fakeInterviews) ListByUser(context.Context, string) ([]models.Interview, error) {
	return f.list, f.err
}

func (f *fakeInterviews) GetByID(context.Context, string) (*models.Interview, error) {
	if f.got == nil {
		return nil, utils.E(utils.CodeNotFound, "fake", "interview not found", utils.ErrNotFound)
	}
	return f.got, nil
}

func (f *fakeInterviews) Dashboard(context.Context, string) (*services.Dashboard, error) {
	return f.dashboard, f.err
}

type fakeFeedback struct {
	res    services.CreateFeedbackResult
	params services.CreateFeedbackParams
	fb     *models.Feedback
}

func (f *fakeFeedback) Create(_ context.Context, p services.CreateFeedbackParams) services.CreateFeedbackResult {
	f.params = p
	return f.res
}

func (f *fakeFeedback) Score(context.Context, string, string, []models.TranscriptEntry) (string, error) {
	return f.res.FeedbackID, nil
}

func (f *fakeFeedback) GetByInterviewID(context.Context, string, string) (*models.Feedback, error) {
	if f.fb == nil {
		return nil, utils.E(utils.CodeNotFound, "fake", "feedback not found", utils.ErrNotFound)
	}
	return f.fb, nil
}

// fakeCalls keeps one session "s1" owned by "user-1".
type fakeCalls struct {
	mu sync.Mutex

	state    call.State
	startErr error
	events   []voice.Event
	created  services.CreateCallParams

	agent voice.Agent
	nav   call.Navigator

	detached chan struct{}
}

func newFakeCalls() *fakeCalls {
	return &fakeCalls{state: call.StateIdle, detached: make(chan struct{}, 1)}
}

func (f *fakeCalls) info() *services.CallInfo {
	return &services.CallInfo{
		SessionID: "s1",
		UserID:    "user-1",
		Mode:      models.ModeGenerate,
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:    call.Status{State: f.state, Mode: models.ModeGenerate},
	}
}

func (f *fakeCalls) Create(_ context.Context, p services.CreateCallParams) (*services.CallInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.Mode != models.ModeGenerate && p.Mode != models.ModeInterview {
		return nil, utils.E(utils.CodeInvalidArgument, "fake", "unknown mode", nil)
	}
	f.created = p
	return f.info(), nil
}

func (f *fakeCalls) Attach(sessionID, userID string, agent voice.Agent, nav call.Navigator) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.agent, f.nav = agent, nav
	return nil
}

func (f *fakeCalls) Detach(string, voice.Agent) {
	f.mu.Lock()
	f.agent, f.nav = nil, nil
	f.mu.Unlock()
	f.detached <- struct{}{}
}

func (f *fakeCalls) Start(_ context.Context, sessionID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.state = call.StateConnecting
	return nil
}

func (f *fakeCalls) HandleEvent(_ string, ev voice.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	switch ev.Type {
	case voice.EventCallStart:
		f.state = call.StateActive
	case voice.EventCallEnd:
		f.state = call.StateFinished
	}
	return nil
}

func (f *fakeCalls) Stop(_ context.Context, sessionID, userID string) (*services.CallInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = call.StateFinished
	return f.info(), nil
}

func (f *fakeCalls) Get(sessionID, userID string) (*services.CallInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sessionID != "s1" || userID != "user-1" {
		return nil, utils.E(utils.CodeNotFound, "fake", "call session not found", nil)
	}
	return f.info(), nil
}

func (f *fakeCalls) Reap(context.Context, time.Duration) int { return 0 }
func (f *fakeCalls) Remove(string)                           {}
func (f *fakeCalls) Active() int                             { return 1 }
func (f *fakeCalls) Drain(context.Context) error             { return nil }

func (f *fakeCalls) navigator() call.Navigator {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nav
}

func (f *fakeCalls) recorded() []voice.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]voice.Event(nil), f.events...)
}

type fakeLogs struct{ logs []models.CallLog }

func (f *fakeLogs) Record(context.Context, string, call.Outcome) error { return nil }

func (f *fakeLogs) RecordAborted(context.Context, services.CallInfo, time.Time) error { return nil }

func (f *fakeLogs) ListByUser(context.Context, string, int) ([]models.CallLog, error) {
	return f.logs, nil
}

type fakeQueue struct {
	mu     sync.Mutex
	chunks []workers.AudioChunk
}

func (q *fakeQueue) Enqueue(_ context.Context, c workers.AudioChunk) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.chunks = append(q.chunks, c)
	return nil
}

func (q *fakeQueue) queued() []workers.AudioChunk {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]workers.AudioChunk(nil), q.chunks...)
}

type fakeProfiles struct {
	p     *models.Profile
	patch services.ProfilePatch
}

func (f *fakeProfiles) GetMe(context.Context, string) (*models.Profile, error) {
	if f.p == nil {
		return nil, utils.E(utils.CodeNotFound, "fake", "profile not found", utils.ErrNotFound)
	}
	return f.p, nil
}

func (f *fakeProfiles) Update(_ context.Context, userID string, patch services.ProfilePatch) (*models.Profile, error) {
	f.patch = patch
	if f.p == nil {
		f.p = &models.Profile{UserID: userID}
	}
	if patch.FullName != nil {
		f.p.FullName = *patch.FullName
	}
	if patch.TargetRole != nil {
		f.p.TargetRole = *patch.TargetRole
	}
	return f.p, nil
}

func (f *fakeProfiles) DisplayName(context.Context, string) string { return f.p.DisplayName() }

type fakeCovers struct {
	names []string
	err   error
	name  string
	ct    string
	size  int
}

func (f *fakeCovers) Names() []string { return f.names }

func (f *fakeCovers) Upload(_ context.Context, name, contentType string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, _ := io.ReadAll(r)
	f.name, f.ct, f.size = name, contentType, len(b)
	return "https://storage.googleapis.com/b/covers/" + name + ".png", nil
}
