package id

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewV7 always samples time.Now(), so NewAt is hand-rolled on top of
// uuid.UUID's byte layout for callers that need to pin the timestamp.
type Generator interface {
	New() (uuid.UUID, error)
	NewAt(at time.Time) (uuid.UUID, error)
}

type System struct{}

func (System) New() (uuid.UUID, error) {
	return uuid.NewV7()
}

func (System) NewAt(at time.Time) (uuid.UUID, error) {
	var u uuid.UUID
	if _, err := rand.Read(u[:]); err != nil {
		return uuid.Nil, fmt.Errorf("id: read random bytes: %w", err)
	}
	ms := uint64(at.UnixMilli())
	u[0] = byte(ms >> 40)
	u[1] = byte(ms >> 32)
	u[2] = byte(ms >> 24)
	u[3] = byte(ms >> 16)
	u[4] = byte(ms >> 8)
	u[5] = byte(ms)
	u.SetVersion(7)
	u.SetVariant(uuid.RFC4122)
	return u, nil
}

// Test yields deterministic IDs for stable ordering in assertions: the
// 48-bit timestamp field holds a counter that increases on every call (New)
// or the given instant (NewAt), and the remaining bytes are the caller-chosen
// Prefix, with the version and variant bits set over it.
type Test struct {
	Prefix  [10]byte
	counter uint64
}

func NewTest(prefix []byte) *Test {
	var p [10]byte
	copy(p[:], prefix)
	return &Test{Prefix: p}
}

func (t *Test) New() (uuid.UUID, error) {
	return t.NewAt(time.UnixMilli(int64(t.counter)))
}

func (t *Test) NewAt(at time.Time) (uuid.UUID, error) {
	var u uuid.UUID
	ms := uint64(at.UnixMilli())
	u[0] = byte(ms >> 40)
	u[1] = byte(ms >> 32)
	u[2] = byte(ms >> 24)
	u[3] = byte(ms >> 16)
	u[4] = byte(ms >> 8)
	u[5] = byte(ms)
	copy(u[6:], t.Prefix[:])
	u.SetVersion(7)
	u.SetVariant(uuid.RFC4122)
	t.counter++
	return u, nil
}
