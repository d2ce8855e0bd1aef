package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/intervyu/internal/logger"
	"github.com/yoockh/intervyu/internal/metrics"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestNewDisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg, logger.Discard(), metrics.Nop())
			require.NotNil(t, p)
			assert.False(t, p.enabled)
			assert.Nil(t, p.writer)
			assert.NoError(t, p.Publish(context.Background(), CallFinished, "k", map[string]int{"a": 1}))
			assert.NoError(t, p.Close())
		})
	}
}

func TestPublishWritesKeyedEnvelope(t *testing.T) {
	m := metrics.Nop()
	w := &fakeWriter{}
	p := &Publisher{writer: w, topic: "intervyu.events", clientID: "api", enabled: true, log: logger.Discard(), metrics: m}

	require.NoError(t, p.Publish(context.Background(), FeedbackCreated, "fb1", map[string]string{"interviewId": "iv1"}))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "fb1", string(msg.Key))
	assert.Equal(t, FeedbackCreated, string(msg.Headers[0].Value))

	var env struct {
		Type string            `json:"type"`
		Key  string            `json:"key"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, FeedbackCreated, env.Type)
	assert.Equal(t, "iv1", env.Data["interviewId"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues(FeedbackCreated)))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishWriteError(t *testing.T) {
	m := metrics.Nop()
	p := &Publisher{writer: &fakeWriter{err: errors.New("broker down")}, enabled: true, log: logger.Discard(), metrics: m}

	err := p.Publish(context.Background(), InterviewGenerated, "iv1", nil)
	assert.EqualError(t, err, "broker down")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventErrors.WithLabelValues(InterviewGenerated)))
}
