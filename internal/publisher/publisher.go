package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/foodmap/foodmap/internal/metrics"
	"github.com/foodmap/foodmap/pkg/model"
)

// Published subjects.
const (
	SubjectViewChanged  = "evt.view.changed.v1"
	SubjectSaleNotified = "evt.sale.notified.v1"
)

// Publisher wraps a NATS connection and publishes canonical event envelopes
// over JetStream.
type Publisher struct {
	logger  *zap.Logger
	nc      *nats.Conn
	js      nats.JetStreamContext
	service string
}

// New creates a Publisher with JetStream enabled.
func New(logger *zap.Logger, nc *nats.Conn, service string) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	return &Publisher{logger: logger, nc: nc, js: js, service: service}, nil
}

// PublishEnvelope serializes and publishes one envelope.
func (p *Publisher) PublishEnvelope(ctx context.Context, subject string, env *model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		metrics.NATSPublishErrors.WithLabelValues(subject).Inc()
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{env.EventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
		},
	}

	if _, err := p.js.PublishMsg(msg); err != nil {
		metrics.NATSPublishErrors.WithLabelValues(subject).Inc()
		p.logger.Error("publisher.publish_failed",
			zap.String("subject", subject),
			zap.String("event_type", env.EventType),
			zap.Error(err))
		return err
	}

	p.logger.Debug("publisher.publish_success",
		zap.String("subject", subject),
		zap.String("event_type", env.EventType))
	return nil
}

// PublishViewChanged emits a view.changed event.
func (p *Publisher) PublishViewChanged(ctx context.Context, ev model.ViewChangedEvent) error {
	return p.publish(ctx, SubjectViewChanged, "view.changed", ev)
}

// PublishSaleNotified emits a sale.notified event.
func (p *Publisher) PublishSaleNotified(ctx context.Context, ev model.SaleNotifiedEvent) error {
	return p.publish(ctx, SubjectSaleNotified, "sale.notified", ev)
}

func (p *Publisher) publish(ctx context.Context, subject, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.NATSPublishErrors.WithLabelValues(subject).Inc()
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	env := &model.Envelope{
		ID:            uuid.New(),
		CorrelationID: uuid.New(),
		EventType:     eventType,
		Version:       "1.0.0",
		Timestamp:     time.Now().UTC(),
		Payload:       data,
	}
	return p.PublishEnvelope(ctx, subject, env)
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p.nc != nil && !p.nc.IsClosed() {
		_ = p.nc.Drain()
	}
}
