package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/intervyu/internal/metrics"
	"github.com/yoockh/intervyu/internal/providers/llm"
	"github.com/yoockh/intervyu/internal/utils"
)

type CoverPicker interface {
	Random() string
}

type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, payload any) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, string, any) error { return nil }

// llmError maps a provider failure onto the service error contract.
func llmError(op string, m *metrics.Metrics, err error, msg string) error {
	var pe *llm.ProviderError
	provider, code := "unknown", "unknown"
	if errors.As(err, &pe) {
		provider, code = pe.Provider, pe.Code
	}
	m.LLMErrors.WithLabelValues(provider, code).Inc()

	if llm.IsRateLimit(err) {
		return utils.E(utils.CodeRateLimited, op, "AI quota exceeded, please try again later", err)
	}
	return utils.E(utils.CodeInternal, op, msg, err)
}

func publish(ctx context.Context, p EventPublisher, log logrus.FieldLogger, eventType, key string, payload any) {
	if err := p.Publish(ctx, eventType, key, payload); err != nil {
		log.WithError(err).WithField("event_type", eventType).Warn("event publish failed")
	}
}
