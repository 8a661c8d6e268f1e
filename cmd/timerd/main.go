package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/g960059/timersvc/internal/clock"
	"github.com/g960059/timersvc/internal/config"
	"github.com/g960059/timersvc/internal/eventbus"
	"github.com/g960059/timersvc/internal/eventbus/inproc"
	natsadapter "github.com/g960059/timersvc/internal/eventbus/nats"
	"github.com/g960059/timersvc/internal/id"
	"github.com/g960059/timersvc/internal/metadata"
	"github.com/g960059/timersvc/internal/poller"
	"github.com/g960059/timersvc/internal/retry"
	"github.com/g960059/timersvc/internal/store"
	"github.com/g960059/timersvc/internal/workflow"
)

func main() {
	cfg := config.DefaultConfig()
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite path")
	flag.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "polling worker tick interval")
	flag.StringVar(&cfg.NATSUrl, "nats-url", cfg.NATSUrl, "NATS server URL (empty uses the in-process bus)")
	flag.Parse()

	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Str("service", "timerd").Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	timerStore, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer timerStore.Close() //nolint:errcheck

	bus, closeBus, err := openBus(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open event bus")
	}
	defer closeBus()

	sysClock := clock.NewSystem()
	idGen := id.System{}
	adapter := eventbus.NewTimerAdapter(bus, sysClock, idGen, log)
	wf := workflow.New(timerStore, sysClock, log)
	worker := poller.New(timerStore, adapter, sysClock, cfg.PollInterval, log)

	go worker.Run(ctx)

	handler := func(ctx context.Context, cmd eventbus.ScheduleTimer, meta metadata.Message) error {
		_, err := wf.Handle(ctx, cmd, meta)
		return err
	}
	retryPolicy := retry.Policy{Backoff: cfg.CommandRetryBackoff, MaxRetries: cfg.CommandMaxRetries}
	retrying := func(ctx context.Context, cmd eventbus.ScheduleTimer, meta metadata.Message) error {
		return retry.Command(ctx, retryPolicy, func() error { return handler(ctx, cmd, meta) })
	}

	if err := adapter.SubscribeToScheduleTimerCommands(ctx, retrying); err != nil {
		log.Fatal().Err(err).Msg("subscribe to schedule commands")
	}

	log.Info().Str("db", cfg.DBPath).Dur("pollInterval", cfg.PollInterval).Msg("timerd started")
	<-ctx.Done()
	log.Info().Msg("shutting down")
}

// openBus selects the NATS transport when a URL is configured, falling
// back to the in-process bus for single-binary deployments and local
// development.
func openBus(cfg config.Config, log zerolog.Logger) (eventbus.Port, func(), error) {
	if cfg.NATSUrl == "" {
		bus := inproc.New(cfg.SubscriptionBufferSize, log)
		return bus, bus.Close, nil
	}

	conn, err := nats.Connect(cfg.NATSUrl, nats.Timeout(5*time.Second), nats.MaxReconnects(-1))
	if err != nil {
		return nil, func() {}, fmt.Errorf("connect nats: %w", err)
	}
	adapter := natsadapter.New(conn, log)
	return adapter, conn.Close, nil
}
