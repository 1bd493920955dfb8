package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"DriftShield/internal/event"
	"DriftShield/internal/observability"
)

// Publisher publishes operation notifications to NATS JetStream for
// downstream consumers (indexers, alerting, dashboards).
// Subjects follow the pattern: driftshield.events.{event_type}.{entity_key}
//
// Emit is non-blocking: if the buffer is full the event is dropped and
// counted. Observers that must not miss events should read the ledger's
// durable state instead.
type Publisher struct {
	js      jetstream.JetStream
	input   chan envelope
	logger  zerolog.Logger
	metrics *observability.Metrics
}

type envelope struct {
	EventType string      `json:"event_type"`
	Payload   event.Event `json:"payload"`
	EmittedAt time.Time   `json:"emitted_at"`

	subject string
}

// NewPublisher creates a publisher with the given buffer size. metrics may
// be nil.
func NewPublisher(js jetstream.JetStream, bufferSize int, logger zerolog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		js:      js,
		input:   make(chan envelope, bufferSize),
		logger:  logger,
		metrics: metrics,
	}
}

// Emit enqueues an event for publishing. Never blocks; drops on full.
func (p *Publisher) Emit(ev event.Event) {
	env := envelope{
		EventType: ev.EventType().String(),
		Payload:   ev,
		EmittedAt: time.Now().UTC(),
		subject:   fmt.Sprintf("driftshield.events.%s.%s", ev.EventType(), ev.EntityKey()),
	}

	select {
	case p.input <- env:
	default:
		if p.metrics != nil {
			p.metrics.EventsDropped.Inc()
		}
		p.logger.Warn().Str("event_type", env.EventType).Msg("event buffer full, dropping")
	}
}

// Run drains the buffer until the context is cancelled. Publish failures
// are logged and skipped; they never abort the loop.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env, ok := <-p.input:
			if !ok {
				return nil
			}
			if err := p.publish(ctx, env); err != nil {
				p.logger.Warn().Err(err).Str("subject", env.subject).Msg("event publish failed")
				continue
			}
			if p.metrics != nil {
				p.metrics.EventsEmitted.WithLabelValues(env.EventType).Inc()
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = p.js.Publish(ctx, env.subject, data)
	return err
}

// EnsureEventStream creates the outbound events stream.
func EnsureEventStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "DRIFTSHIELD_EVENTS",
		Subjects:  []string{"driftshield.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create events stream: %w", err)
	}
	return nil
}
