package workers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/intervyu/internal/metrics"
	"github.com/yoockh/intervyu/internal/models"
	"github.com/yoockh/intervyu/internal/providers/stt"
	"github.com/yoockh/intervyu/internal/voice"
)

const (
	DefaultStream = "audio:stream"
	defaultGroup  = "transcribers"

	maxAudioBytes = 10 << 20
)

// EventsChannel is the Pub/Sub channel carrying agent events for one call.
func EventsChannel(sessionID string) string {
	return "call:" + sessionID + ":events"
}

// AudioChunk is one recorded user utterance waiting for transcription.
type AudioChunk struct {
	SessionID   string
	ChunkIndex  int64
	Language    string
	AudioBase64 string
	AudioURL    string
}

// TranscriptionPool consumes audio chunks from a Redis stream, runs them
// through speech-to-text and publishes the result as a final user transcript
// message on the call's events channel.
type TranscriptionPool struct {
	Redis      *redis.Client
	STT        stt.Transcriber
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
	Logger     logrus.FieldLogger
	NumWorkers int

	Stream         string
	Group          string
	ConsumerPrefix string
	Block          time.Duration
}

func (p *TranscriptionPool) defaults() {
	if p.Stream == "" {
		p.Stream = DefaultStream
	}
	if p.Group == "" {
		p.Group = defaultGroup
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.Block <= 0 {
		p.Block = 5 * time.Second
	}
	if p.HTTPClient == nil {
		p.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if p.Metrics == nil {
		p.Metrics = metrics.Nop()
	}
	if p.Logger == nil {
		p.Logger = logrus.StandardLogger()
	}
}

// Enqueue adds a chunk to the stream.
func (p *TranscriptionPool) Enqueue(ctx context.Context, c AudioChunk) error {
	if c.SessionID == "" {
		return errors.New("audio chunk without session id")
	}
	if c.AudioBase64 == "" && c.AudioURL == "" {
		return errors.New("audio chunk without audio")
	}
	stream := p.Stream
	if stream == "" {
		stream = DefaultStream
	}
	return p.Redis.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"session_id":   c.SessionID,
			"chunk_index":  strconv.FormatInt(c.ChunkIndex, 10),
			"language":     c.Language,
			"audio_base64": c.AudioBase64,
			"audio_url":    c.AudioURL,
		},
	}).Err()
}

func (p *TranscriptionPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.STT == nil {
		return errors.New("TranscriptionPool missing dependency: Redis/STT must be set")
	}
	p.defaults()

	err := p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	p.Logger.WithFields(logrus.Fields{"stream": p.Stream, "workers": p.NumWorkers}).Info("transcription pool started")
	return nil
}

func (p *TranscriptionPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    p.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			p.Logger.WithError(err).WithField("consumer", consumer).Warn("stream read failed")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func chunkFromMessage(msg redis.XMessage) AudioChunk {
	get := func(k string) string {
		s, _ := msg.Values[k].(string)
		return s
	}
	idx, _ := strconv.ParseInt(get("chunk_index"), 10, 64)
	return AudioChunk{
		SessionID:   get("session_id"),
		ChunkIndex:  idx,
		Language:    get("language"),
		AudioBase64: get("audio_base64"),
		AudioURL:    get("audio_url"),
	}
}

func (p *TranscriptionPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	c := chunkFromMessage(msg)
	if c.SessionID == "" {
		p.Metrics.TranscriptionJobs.WithLabelValues("invalid").Inc()
		return
	}

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":    msg.ID,
		"session_id":  c.SessionID,
		"chunk_index": c.ChunkIndex,
	})

	audio, err := p.fetchAudio(ctx, c)
	if err != nil {
		log.WithError(err).Warn("audio chunk unreadable")
		p.Metrics.TranscriptionJobs.WithLabelValues("invalid").Inc()
		p.publish(ctx, c.SessionID, voice.Event{Type: voice.EventError, Error: "audio chunk unreadable"})
		return
	}

	start := time.Now()
	res, err := p.STT.Transcribe(ctx, audio, c.Language)
	p.Metrics.TranscriptionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		log.WithError(err).Error("stt failed")
		p.Metrics.TranscriptionJobs.WithLabelValues("failed").Inc()
		p.publish(ctx, c.SessionID, voice.Event{Type: voice.EventError, Error: "speech recognition failed"})
		return
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		p.Metrics.TranscriptionJobs.WithLabelValues("empty").Inc()
		return
	}

	p.Metrics.TranscriptionJobs.WithLabelValues("ok").Inc()
	log.WithField("confidence", res.Confidence).Debug("chunk transcribed")
	p.publish(ctx, c.SessionID, voice.Event{
		Type: voice.EventMessage,
		Message: &voice.Message{
			Type:           "transcript",
			TranscriptType: voice.TranscriptFinal,
			Role:           string(models.SpeakerUser),
			Transcript:     text,
		},
	})
}

func (p *TranscriptionPool) fetchAudio(ctx context.Context, c AudioChunk) ([]byte, error) {
	if c.AudioBase64 != "" {
		raw := c.AudioBase64
		if i := strings.Index(raw, ","); i >= 0 {
			raw = raw[i+1:] // strip data:...;base64,
		}
		b, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, err
		}
		if len(b) == 0 {
			return nil, stt.ErrEmptyAudio
		}
		return b, nil
	}

	if c.AudioURL == "" {
		return nil, stt.ErrEmptyAudio
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.AudioURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("audio_url returned " + resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, stt.ErrEmptyAudio
	}
	return body, nil
}

func (p *TranscriptionPool) publish(ctx context.Context, sessionID string, ev voice.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := p.Redis.Publish(ctx, EventsChannel(sessionID), b).Err(); err != nil {
		p.Logger.WithError(err).WithField("session_id", sessionID).Warn("failed to publish transcription event")
	}
}
