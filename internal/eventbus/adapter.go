package eventbus

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/g960059/timersvc/internal/clock"
	"github.com/g960059/timersvc/internal/id"
	"github.com/g960059/timersvc/internal/ids"
	"github.com/g960059/timersvc/internal/metadata"
)

type CommandHandler func(ctx context.Context, cmd ScheduleTimer, meta metadata.Message) error

type TimerAdapter struct {
	port  Port
	clock clock.Clock
	ids   id.Generator
	log   zerolog.Logger
}

func NewTimerAdapter(port Port, clk clock.Clock, gen id.Generator, logger zerolog.Logger) *TimerAdapter {
	return &TimerAdapter{port: port, clock: clk, ids: gen, log: logger.With().Str("component", "eventbus.adapter").Logger()}
}

// PublishDueTimeReached: timestampMs is infrastructure time (clock.Now),
// distinct from the domain reachedAt.
func (a *TimerAdapter) PublishDueTimeReached(ctx context.Context, event DueTimeReached, meta metadata.Message) error {
	envelopeID, err := a.ids.New()
	if err != nil {
		return &PublishError{Topic: TopicTimerEvents, Cause: fmt.Errorf("generate envelope id: %w", err)}
	}
	aggregateID := event.ServiceCallID

	env := Envelope{
		ID:            ids.EnvelopeID(envelopeID),
		Type:          TagDueTimeReached,
		TenantID:      event.TenantID,
		AggregateID:   &aggregateID,
		CorrelationID: meta.CorrelationID,
		CausationID:   meta.CausationID,
		TimestampMs:   a.clock.Now().UnixMilli(),
		Payload:       event,
	}

	if err := a.port.Publish(ctx, TopicTimerEvents, env); err != nil {
		return &PublishError{Topic: TopicTimerEvents, Cause: err}
	}
	return nil
}

func (a *TimerAdapter) SubscribeToScheduleTimerCommands(ctx context.Context, handler CommandHandler) error {
	err := a.port.Subscribe(ctx, TopicTimerCommands, func(ctx context.Context, raw []byte) error {
		env, err := Decode(raw)
		if err != nil {
			a.log.Error().Err(err).Msg("dropping envelope that failed to decode")
			return nil
		}
		if env.Type != TagScheduleTimer {
			a.log.Debug().Str("type", env.Type).Msg("ignoring non-ScheduleTimer envelope")
			return nil
		}
		cmd, ok := env.Payload.(ScheduleTimer)
		if !ok {
			a.log.Error().Str("type", env.Type).Msg("decoded envelope tag matched but payload type did not")
			return nil
		}
		meta := metadata.FromEnvelope(env.ID, env.CorrelationID)
		return handler(ctx, cmd, meta)
	})
	if err != nil {
		return &SubscribeError{Topic: TopicTimerCommands, Cause: err}
	}
	return nil
}
