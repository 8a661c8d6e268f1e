package poller_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/g960059/timersvc/internal/clock"
	"github.com/g960059/timersvc/internal/eventbus"
	"github.com/g960059/timersvc/internal/eventbus/inproc"
	"github.com/g960059/timersvc/internal/id"
	"github.com/g960059/timersvc/internal/ids"
	"github.com/g960059/timersvc/internal/poller"
	"github.com/g960059/timersvc/internal/store"
	"github.com/g960059/timersvc/internal/timer"
)

func newHarness(t *testing.T) (*store.Store, *inproc.Bus, *eventbus.TimerAdapter, clock.Test) {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "poller-test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	bus := inproc.New(16, zerolog.Nop())
	t.Cleanup(bus.Close)

	testClock := clock.NewTest(time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC))
	gen := id.NewTest([]byte("poller-test"))
	adapter := eventbus.NewTimerAdapter(bus, testClock, gen, zerolog.Nop())
	return s, bus, adapter, testClock
}

func TestScheduleAndFire(t *testing.T) {
	s, bus, adapter, testClock := newHarness(t)
	_ = bus
	ctx := context.Background()

	tenant := ids.TenantID(uuid.New())
	call := ids.ServiceCallID(uuid.New())
	now := testClock.Now()
	due := now.Add(5 * time.Minute)

	if err := s.Save(ctx, timer.Scheduled{TenantID: tenant, ServiceCallID: call, DueAt: due, RegisteredAt: now}); err != nil {
		t.Fatalf("save: %v", err)
	}

	w := poller.New(s, adapter, testClock, time.Hour, zerolog.Nop())

	testClock.Advance(6 * time.Minute)
	result, err := w.Tick(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if result.Fired != 1 || result.Failed != 0 {
		t.Fatalf("tick result = %+v, want {Fired:1 Failed:0}", result)
	}

	entry, err := s.Find(ctx, timer.Key{TenantID: tenant, ServiceCallID: call})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	reached, ok := entry.(timer.Reached)
	if !ok {
		t.Fatalf("expected Reached entry, got %T", entry)
	}
	if !reached.ReachedAt.Equal(testClock.Now()) {
		t.Fatalf("reachedAt = %v, want %v", reached.ReachedAt, testClock.Now())
	}
}

func TestOrderingTiebreakOnPublish(t *testing.T) {
	s, bus, adapter, testClock := newHarness(t)
	ctx := context.Background()
	tenant := ids.TenantID(uuid.New())

	var calls []ids.ServiceCallID
	for i := 0; i < 3; i++ {
		calls = append(calls, ids.ServiceCallID(uuid.New()))
	}
	// sort so calls[0] < calls[1] < calls[2] lexically.
	for i := 0; i < len(calls); i++ {
		for j := i + 1; j < len(calls); j++ {
			if calls[j].String() < calls[i].String() {
				calls[i], calls[j] = calls[j], calls[i]
			}
		}
	}
	s1, s2, s3 := calls[0], calls[1], calls[2]

	now := testClock.Now()
	due := now.Add(time.Minute)
	// registeredAt order: S2 < S1 < S3
	save := func(call ids.ServiceCallID, reg time.Time) {
		if err := s.Save(ctx, timer.Scheduled{TenantID: tenant, ServiceCallID: call, DueAt: due, RegisteredAt: reg}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	save(s2, now)
	save(s1, now.Add(time.Millisecond))
	save(s3, now.Add(2*time.Millisecond))

	w := poller.New(s, adapter, testClock, time.Hour, zerolog.Nop())
	testClock.Advance(time.Minute)

	events := make(chan eventbus.DueTimeReached, 3)
	subCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := bus.Subscribe(subCtx, eventbus.TopicTimerEvents, func(ctx context.Context, raw []byte) error {
		env, err := eventbus.Decode(raw)
		if err != nil {
			return nil
		}
		events <- env.Payload.(eventbus.DueTimeReached)
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if _, err := w.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	want := []ids.ServiceCallID{s2, s1, s3}
	for i, w := range want {
		select {
		case ev := <-events:
			if ev.ServiceCallID != w {
				t.Fatalf("event %d: serviceCallId = %s, want %s", i, ev.ServiceCallID, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

// failingMarkStore wraps a real store, injecting a MarkFired failure for a
// single key on its first call — simulating a crash between publish and
// mark.
type failingMarkStore struct {
	*store.Store
	failKey timer.Key
	failed  bool
}

func (f *failingMarkStore) MarkFired(ctx context.Context, key timer.Key, reachedAt time.Time) error {
	if !f.failed && key == f.failKey {
		f.failed = true
		return fmt.Errorf("injected markFired failure")
	}
	return f.Store.MarkFired(ctx, key, reachedAt)
}

func TestCrashBetweenPublishAndMarkIsRecoveredNextTick(t *testing.T) {
	s, bus, adapter, testClock := newHarness(t)
	ctx := context.Background()
	tenant := ids.TenantID(uuid.New())

	var calls []ids.ServiceCallID
	for i := 0; i < 3; i++ {
		calls = append(calls, ids.ServiceCallID(uuid.New()))
	}

	now := testClock.Now()
	due := now.Add(time.Minute)
	for i, call := range calls {
		if err := s.Save(ctx, timer.Scheduled{TenantID: tenant, ServiceCallID: call, DueAt: due, RegisteredAt: now.Add(time.Duration(i) * time.Millisecond)}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	failing := &failingMarkStore{Store: s, failKey: timer.Key{TenantID: tenant, ServiceCallID: calls[1]}}
	w := poller.New(failing, adapter, testClock, time.Hour, zerolog.Nop())
	testClock.Advance(time.Minute)

	received := make(chan eventbus.DueTimeReached, 8)
	subCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := bus.Subscribe(subCtx, eventbus.TopicTimerEvents, func(ctx context.Context, raw []byte) error {
		env, err := eventbus.Decode(raw)
		if err != nil {
			return nil
		}
		received <- env.Payload.(eventbus.DueTimeReached)
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	result, err := w.Tick(ctx)
	if err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	for i := 0; i < 3; i++ {
		select {
		case <-received:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for published event %d from tick 1", i)
		}
	}
	if result.Failed != 1 || result.Fired != 2 {
		t.Fatalf("tick 1 result = %+v, want {Fired:2 Failed:1}", result)
	}

	// the failed timer must still be Scheduled and reprocessed next tick.
	result2, err := w.Tick(ctx)
	if err != nil {
		t.Fatalf("tick 2: %v", err)
	}
	if result2.Fired != 1 || result2.Failed != 0 {
		t.Fatalf("tick 2 result = %+v, want {Fired:1 Failed:0}", result2)
	}

	entry, err := s.Find(ctx, timer.Key{TenantID: tenant, ServiceCallID: calls[1]})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !timer.IsReached(entry) {
		t.Fatalf("expected previously-failed timer to be Reached after recovery tick")
	}
}
