package workflow

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/g960059/timersvc/internal/clock"
	"github.com/g960059/timersvc/internal/eventbus"
	"github.com/g960059/timersvc/internal/metadata"
	"github.com/g960059/timersvc/internal/timer"
)

type Store interface {
	Save(ctx context.Context, scheduled timer.Scheduled) error
}

// Schedule: terminal-state semantics of Store.Save mean a redelivered
// command for an already-fired timer is silently absorbed, and a
// redelivered command for a still-scheduled timer re-arms it.
type Schedule struct {
	store Store
	clock clock.Clock
	log   zerolog.Logger
}

func New(store Store, clk clock.Clock, logger zerolog.Logger) *Schedule {
	return &Schedule{store: store, clock: clk, log: logger.With().Str("component", "workflow.schedule").Logger()}
}

func (w *Schedule) Handle(ctx context.Context, cmd eventbus.ScheduleTimer, meta metadata.Message) (timer.Scheduled, error) {
	now := w.clock.Now()
	scheduled := timer.Make(timer.ScheduleCommand{
		TenantID:      cmd.TenantID,
		ServiceCallID: cmd.ServiceCallID,
		DueAt:         cmd.DueAt,
	}, now, meta.CorrelationID)

	if err := w.store.Save(ctx, scheduled); err != nil {
		return timer.Scheduled{}, fmt.Errorf("schedule workflow: save: %w", err)
	}
	w.log.Debug().
		Str("tenantId", scheduled.TenantID.String()).
		Str("serviceCallId", scheduled.ServiceCallID.String()).
		Time("dueAt", scheduled.DueAt).
		Msg("timer scheduled")
	return scheduled, nil
}
