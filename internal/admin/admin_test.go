package admin_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/g960059/timersvc/internal/admin"
	"github.com/g960059/timersvc/internal/ids"
	"github.com/g960059/timersvc/internal/store"
	"github.com/g960059/timersvc/internal/timer"
)

func TestDeleteRemovesScheduledTimer(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "admin-test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	key := timer.Key{TenantID: ids.TenantID(uuid.New()), ServiceCallID: ids.ServiceCallID(uuid.New())}
	now := time.Now().UTC()
	if err := s.Save(ctx, timer.Scheduled{TenantID: key.TenantID, ServiceCallID: key.ServiceCallID, DueAt: now.Add(time.Hour), RegisteredAt: now}); err != nil {
		t.Fatalf("save: %v", err)
	}

	a := admin.New(s, zerolog.Nop())
	if err := a.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := a.Inspect(ctx, key); err != store.ErrNotFound {
		t.Fatalf("inspect after delete: got %v, want ErrNotFound", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "admin-test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	a := admin.New(s, zerolog.Nop())
	key := timer.Key{TenantID: ids.TenantID(uuid.New()), ServiceCallID: ids.ServiceCallID(uuid.New())}
	if err := a.Delete(ctx, key); err != nil {
		t.Fatalf("delete absent key: %v", err)
	}
}
