package admin

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/g960059/timersvc/internal/timer"
)

type Store interface {
	Find(ctx context.Context, key timer.Key) (timer.Entry, error)
	Delete(ctx context.Context, key timer.Key) error
}

type Admin struct {
	store Store
	log   zerolog.Logger
}

func New(store Store, logger zerolog.Logger) *Admin {
	return &Admin{store: store, log: logger.With().Str("component", "admin").Logger()}
}

func (a *Admin) Inspect(ctx context.Context, key timer.Key) (timer.Entry, error) {
	return a.store.Find(ctx, key)
}

// Delete is idempotent: deleting an already-absent key is not an error.
func (a *Admin) Delete(ctx context.Context, key timer.Key) error {
	if err := a.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("admin: delete %s: %w", key, err)
	}
	a.log.Warn().
		Str("tenantId", key.TenantID.String()).
		Str("serviceCallId", key.ServiceCallID.String()).
		Msg("administrative delete")
	return nil
}
