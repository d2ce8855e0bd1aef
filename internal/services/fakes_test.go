package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yoockh/intervyu/internal/cache"
	"github.com/yoockh/intervyu/internal/models"
	"github.com/yoockh/intervyu/internal/prompts"
	"github.com/yoockh/intervyu/internal/providers/llm"
	"github.com/yoockh/intervyu/internal/utils"
)

// fakeLLM answers Complete calls in order and GenerateObject with object.
type fakeLLM struct {
	mu          sync.Mutex
	completions []string
	completeErr []error
	object      string
	objectErr   error
	// release, when set, holds every call until closed or ctx is done.
	release chan struct{}

	requests []llm.CompletionRequest
	objects  []llm.ObjectRequest
}

func (f *fakeLLM) wait(ctx context.Context) error {
	if f.release == nil {
		return nil
	}
	select {
	case <-f.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	if err := f.wait(ctx); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i < len(f.completeErr) && f.completeErr[i] != nil {
		return "", f.completeErr[i]
	}
	if i < len(f.completions) {
		return f.completions[i], nil
	}
	return "", errors.New("no canned completion")
}

func (f *fakeLLM) GenerateObject(ctx context.Context, req llm.ObjectRequest, dst any) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects = append(f.objects, req)
	if f.objectErr != nil {
		return f.objectErr
	}
	return json.Unmarshal([]byte(f.object), dst)
}

func (f *fakeLLM) Name() string { return "fake" }
func (f *fakeLLM) Close() error { return nil }

func rateLimited() error {
	return &llm.ProviderError{Provider: "fake", Code: llm.ErrCodeRateLimit, Message: "429"}
}

type fakeInterviewRepo struct {
	mu        sync.Mutex
	items     []models.Interview
	createErr error
	listCalls int
}

func (r *fakeInterviewRepo) Create(_ context.Context, in *models.Interview) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return "", r.createErr
	}
	in.ID = primitive.NewObjectID()
	r.items = append(r.items, *in)
	return in.ID.Hex(), nil
}

func (r *fakeInterviewRepo) GetByID(_ context.Context, id string) (*models.Interview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, in := range r.items {
		if in.ID.Hex() == id {
			cp := in
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r *fakeInterviewRepo) sorted() []models.Interview {
	out := append([]models.Interview(nil), r.items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *fakeInterviewRepo) ListByUser(_ context.Context, userID string) ([]models.Interview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Interview{}
	for _, in := range r.sorted() {
		if in.UserID == userID {
			out = append(out, in)
		}
	}
	return out, nil
}

func (r *fakeInterviewRepo) ListLatest(_ context.Context, excludeUserID string, limit int64) ([]models.Interview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	out := []models.Interview{}
	for _, in := range r.sorted() {
		if in.Finalized && in.UserID != excludeUserID && int64(len(out)) < limit {
			out = append(out, in)
		}
	}
	return out, nil
}

type fakeFeedbackRepo struct {
	mu         sync.Mutex
	items      []models.Feedback
	createErr  error
	replaceErr error
}

func (r *fakeFeedbackRepo) Create(_ context.Context, f *models.Feedback) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return "", r.createErr
	}
	f.ID = primitive.NewObjectID()
	r.items = append(r.items, *f)
	return f.ID.Hex(), nil
}

func (r *fakeFeedbackRepo) Replace(_ context.Context, f *models.Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replaceErr != nil {
		return r.replaceErr
	}
	for i := range r.items {
		if r.items[i].ID == f.ID {
			r.items[i] = *f
			return nil
		}
	}
	return utils.ErrNotFound
}

func (r *fakeFeedbackRepo) FindByInterview(_ context.Context, interviewID, userID string) (*models.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.items {
		if f.InterviewID == interviewID && f.UserID == userID {
			cp := f
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

type fixedCover string

func (c fixedCover) Random() string { return string(c) }

type recordedEvent struct {
	Type string
	Key  string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) Publish(_ context.Context, eventType, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Type: eventType, Key: key})
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func newPrompts(t *testing.T) *prompts.Manager {
	t.Helper()
	m, err := prompts.NewManager()
	require.NoError(t, err)
	return m
}

func newRedisCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.NewRedisCache(rdb), mr
}

// stepClock advances one second per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func sampleTranscript() []models.TranscriptEntry {
	return []models.TranscriptEntry{
		{Speaker: models.SpeakerAssistant, Text: "What role are you preparing for?"},
		{Speaker: models.SpeakerUser, Text: "Senior backend engineer, Go and SQL, three technical questions."},
	}
}
