package workers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/intervyu/internal/logger"
	"github.com/yoockh/intervyu/internal/metrics"
	"github.com/yoockh/intervyu/internal/providers/stt"
	"github.com/yoockh/intervyu/internal/voice"
)

type fakeSTT struct {
	mu    sync.Mutex
	text  string
	err   error
	calls [][]byte
	langs []string
}

func (f *fakeSTT) Transcribe(_ context.Context, audio []byte, language string) (stt.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, audio)
	f.langs = append(f.langs, language)
	if f.err != nil {
		return stt.Result{}, f.err
	}
	return stt.Result{Text: f.text, Confidence: 0.9}, nil
}

func (f *fakeSTT) Close() error { return nil }

func newPool(t *testing.T, s stt.Transcriber) (*TranscriptionPool, *redis.Client, *metrics.Metrics) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	m := metrics.New(prometheus.NewRegistry())
	p := &TranscriptionPool{
		Redis:      rdb,
		STT:        s,
		Metrics:    m,
		Logger:     logger.Discard(),
		NumWorkers: 1,
		Block:      50 * time.Millisecond,
	}
	p.defaults()
	return p, rdb, m
}

func subscribe(t *testing.T, rdb *redis.Client, sessionID string) <-chan *redis.Message {
	t.Helper()
	sub := rdb.Subscribe(context.Background(), EventsChannel(sessionID))
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	return sub.Channel()
}

func nextEvent(t *testing.T, ch <-chan *redis.Message) voice.Event {
	t.Helper()
	select {
	case msg := <-ch:
		ev, err := voice.DecodeEvent([]byte(msg.Payload))
		require.NoError(t, err)
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("no event published")
		return voice.Event{}
	}
}

func TestTranscriptionPoolPublishesFinalUserMessage(t *testing.T) {
	s := &fakeSTT{text: " I led the payments migration. "}
	p, rdb, m := newPool(t, s)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := subscribe(t, rdb, "sess-1")
	require.NoError(t, p.Start(ctx))

	audio := base64.StdEncoding.EncodeToString([]byte("pcm-bytes"))
	require.NoError(t, p.Enqueue(ctx, AudioChunk{
		SessionID:   "sess-1",
		ChunkIndex:  3,
		Language:    "en",
		AudioBase64: "data:audio/webm;base64," + audio,
	}))

	ev := nextEvent(t, events)
	assert.Equal(t, voice.EventMessage, ev.Type)
	require.True(t, ev.Message.IsFinal())
	assert.Equal(t, "user", ev.Message.Role)
	assert.Equal(t, "I led the payments migration.", ev.Message.Transcript)

	s.mu.Lock()
	assert.Equal(t, [][]byte{[]byte("pcm-bytes")}, s.calls)
	assert.Equal(t, []string{"en"}, s.langs)
	s.mu.Unlock()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TranscriptionJobs.WithLabelValues("ok")))
}

func TestTranscriptionPoolFetchesAudioURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("remote-audio"))
	}))
	defer srv.Close()

	s := &fakeSTT{text: "hello"}
	p, rdb, _ := newPool(t, s)
	events := subscribe(t, rdb, "sess-2")

	p.handleMsg(context.Background(), redis.XMessage{ID: "1-0", Values: map[string]any{
		"session_id": "sess-2",
		"audio_url":  srv.URL,
	}})

	assert.Equal(t, "hello", nextEvent(t, events).Message.Transcript)
	assert.Equal(t, [][]byte{[]byte("remote-audio")}, s.calls)
}

func TestTranscriptionPoolFailures(t *testing.T) {
	s := &fakeSTT{err: errors.New("quota")}
	p, rdb, m := newPool(t, s)
	events := subscribe(t, rdb, "sess-3")

	p.handleMsg(context.Background(), redis.XMessage{ID: "1-0", Values: map[string]any{
		"session_id":   "sess-3",
		"audio_base64": "%%%not-base64",
	}})
	ev := nextEvent(t, events)
	assert.Equal(t, voice.EventError, ev.Type)
	assert.Empty(t, s.calls)

	p.handleMsg(context.Background(), redis.XMessage{ID: "2-0", Values: map[string]any{
		"session_id":   "sess-3",
		"audio_base64": base64.StdEncoding.EncodeToString([]byte("x")),
	}})
	ev = nextEvent(t, events)
	assert.Equal(t, voice.EventError, ev.Type)
	assert.Equal(t, "speech recognition failed", ev.Error)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TranscriptionJobs.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TranscriptionJobs.WithLabelValues("failed")))
}

func TestTranscriptionPoolSkipsSilence(t *testing.T) {
	p, _, m := newPool(t, &fakeSTT{text: "   "})

	p.handleMsg(context.Background(), redis.XMessage{ID: "1-0", Values: map[string]any{
		"session_id":   "sess-4",
		"audio_base64": base64.StdEncoding.EncodeToString([]byte("x")),
	}})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TranscriptionJobs.WithLabelValues("empty")))
}

func TestEnqueueValidation(t *testing.T) {
	p, _, _ := newPool(t, &fakeSTT{})
	assert.Error(t, p.Enqueue(context.Background(), AudioChunk{AudioBase64: "eA=="}))
	assert.Error(t, p.Enqueue(context.Background(), AudioChunk{SessionID: "s"}))
}

func TestStartRequiresDeps(t *testing.T) {
	assert.Error(t, (&TranscriptionPool{}).Start(context.Background()))
}
