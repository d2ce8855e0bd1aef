// Package events publishes domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/intervyu/internal/metrics"
)

const (
	InterviewGenerated = "interview.generated"
	FeedbackCreated    = "feedback.created"
	CallFinished       = "call.finished"
)

type Config struct {
	Brokers  []string
	Topic    string
	ClientID string
	Enabled  bool
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes events keyed by document id. With Kafka disabled it only logs.
type Publisher struct {
	writer   messageWriter
	topic    string
	clientID string
	enabled  bool
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
}

func New(cfg *Config, log logrus.FieldLogger, m *metrics.Metrics) *Publisher {
	if m == nil {
		m = metrics.Nop()
	}
	if cfg == nil || !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info("kafka disabled, events are logged only")
		p := &Publisher{log: log, metrics: m}
		if cfg != nil {
			p.topic = cfg.Topic
			p.clientID = cfg.ClientID
		}
		return p
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
		ClientID:  cfg.ClientID,
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc, ClientID: cfg.ClientID},
	}

	log.WithFields(logrus.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
	}).Info("kafka publisher initialized")

	return &Publisher{
		writer:   writer,
		topic:    cfg.Topic,
		clientID: cfg.ClientID,
		enabled:  true,
		log:      log,
		metrics:  m,
	}
}

// Publish sends one event. Keys are document ids so per-document events stay ordered.
func (p *Publisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	body, err := json.Marshal(envelope{
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	})
	if err != nil {
		p.log.WithError(err).WithField("event_type", eventType).Error("failed to marshal event")
		p.metrics.EventErrors.WithLabelValues(eventType).Inc()
		return err
	}

	log := p.log.WithFields(logrus.Fields{
		"event_type": eventType,
		"key":        key,
		"topic":      p.topic,
	})
	log.Debug("publishing event")

	if !p.enabled || p.writer == nil {
		p.metrics.EventsPublished.WithLabelValues(eventType).Inc()
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: body,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "producer", Value: []byte(p.clientID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.WithError(err).Error("failed to write to kafka")
		p.metrics.EventErrors.WithLabelValues(eventType).Inc()
		return err
	}

	p.metrics.EventsPublished.WithLabelValues(eventType).Inc()
	return nil
}

func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

type envelope struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}
