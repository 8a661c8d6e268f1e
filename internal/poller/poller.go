package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/g960059/timersvc/internal/clock"
	"github.com/g960059/timersvc/internal/eventbus"
	"github.com/g960059/timersvc/internal/metadata"
	"github.com/g960059/timersvc/internal/timer"
)

// DefaultInterval is the fixed-rate tick period when none is configured.
const DefaultInterval = 5 * time.Second

type Store interface {
	FindDue(ctx context.Context, now time.Time) ([]timer.Scheduled, error)
	MarkFired(ctx context.Context, key timer.Key, reachedAt time.Time) error
}

type Publisher interface {
	PublishDueTimeReached(ctx context.Context, event eventbus.DueTimeReached, meta metadata.Message) error
}

type Worker struct {
	store     Store
	publisher Publisher
	clock     clock.Clock
	interval  time.Duration
	log       zerolog.Logger
}

// New builds a polling Worker. If interval <= 0, DefaultInterval is used.
func New(store Store, publisher Publisher, clk clock.Clock, interval time.Duration, logger zerolog.Logger) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Worker{
		store:     store,
		publisher: publisher,
		clock:     clk,
		interval:  interval,
		log:       logger.With().Str("component", "poller").Logger(),
	}
}

type TickResult struct {
	Fired  int
	Failed int
}

// Tick aborts on a batch-level FindDue failure; a failure firing one timer
// does not stop the rest of the batch.
func (w *Worker) Tick(ctx context.Context) (TickResult, error) {
	now := w.clock.Now()
	due, err := w.store.FindDue(ctx, now)
	if err != nil {
		return TickResult{}, fmt.Errorf("poller: findDue: %w", err)
	}

	var result TickResult
	for _, t := range due {
		if err := w.fireOne(ctx, t, now); err != nil {
			result.Failed++
			w.log.Error().
				Err(err).
				Str("tenantId", t.TenantID.String()).
				Str("serviceCallId", t.ServiceCallID.String()).
				Msg("failed to fire timer")
			continue
		}
		result.Fired++
	}
	return result, nil
}

func (w *Worker) fireOne(ctx context.Context, t timer.Scheduled, now time.Time) error {
	event := eventbus.DueTimeReached{TenantID: t.TenantID, ServiceCallID: t.ServiceCallID, ReachedAt: now}
	meta := metadata.Autonomous(t.CorrelationID)

	// Publish first, then mark: a crash between the two causes the next
	// tick to re-publish, which downstream consumers treat as idempotent on
	// serviceCallId.
	if err := w.publisher.PublishDueTimeReached(ctx, event, meta); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	key := timer.Key{TenantID: t.TenantID, ServiceCallID: t.ServiceCallID}
	if err := w.store.MarkFired(ctx, key, now); err != nil {
		return fmt.Errorf("markFired: %w", err)
	}
	return nil
}

// Run starts the fixed-rate loop: it runs immediately, then every interval
// thereafter, regardless of per-tick duration. Overlap is
// prevented by running ticks synchronously inside this single goroutine; a
// slow tick leaves at most one ticker pulse pending (time.Ticker buffers one),
// which runs as soon as the slow tick returns, and any further pulses missed
// during it are dropped rather than queued.
func (w *Worker) Run(ctx context.Context) {
	w.runOnce(ctx)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	result, err := w.Tick(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("tick aborted")
		return
	}
	if result.Fired > 0 || result.Failed > 0 {
		w.log.Info().Int("fired", result.Fired).Int("failed", result.Failed).Msg("tick complete")
	}
}
