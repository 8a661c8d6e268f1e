package timer

import (
	"fmt"
	"time"

	"github.com/g960059/timersvc/internal/ids"
)

type Key struct {
	TenantID      ids.TenantID
	ServiceCallID ids.ServiceCallID
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.TenantID, k.ServiceCallID)
}

type ScheduleCommand struct {
	TenantID      ids.TenantID
	ServiceCallID ids.ServiceCallID
	DueAt         time.Time
}

// Entry is the tagged sum of a timer's lifecycle states: a TimerEntry is
// either a Scheduled or a Reached value. It is sealed to this package by
// the unexported isEntry method, so no other type can implement it; callers
// discriminate with IsScheduled/IsReached or a type assertion.
type Entry interface {
	Key() Key
	isEntry()
}

// Scheduled is a timer that has not yet fired. Past-due creation is
// permitted, so dueAt may be earlier than registeredAt.
type Scheduled struct {
	TenantID      ids.TenantID
	ServiceCallID ids.ServiceCallID
	DueAt         time.Time
	RegisteredAt  time.Time
	CorrelationID *ids.CorrelationID
}

func (s Scheduled) Key() Key {
	return Key{TenantID: s.TenantID, ServiceCallID: s.ServiceCallID}
}

func (Scheduled) isEntry() {}

// Reached is a timer that has fired. It is terminal: once constructed no
// field may change.
type Reached struct {
	TenantID      ids.TenantID
	ServiceCallID ids.ServiceCallID
	DueAt         time.Time
	RegisteredAt  time.Time
	ReachedAt     time.Time
	CorrelationID *ids.CorrelationID
}

func (r Reached) Key() Key {
	return Key{TenantID: r.TenantID, ServiceCallID: r.ServiceCallID}
}

func (Reached) isEntry() {}

func IsScheduled(e Entry) bool {
	_, ok := e.(Scheduled)
	return ok
}

func IsReached(e Entry) bool {
	_, ok := e.(Reached)
	return ok
}

func Make(cmd ScheduleCommand, now time.Time, correlationID *ids.CorrelationID) Scheduled {
	return Scheduled{
		TenantID:      cmd.TenantID,
		ServiceCallID: cmd.ServiceCallID,
		DueAt:         cmd.DueAt,
		RegisteredAt:  now,
		CorrelationID: correlationID,
	}
}

func IsDue(s Scheduled, now time.Time) bool {
	return !now.Before(s.DueAt)
}

// MarkReached is the only permitted state transition. reachedAt must be ≥
// s.DueAt; callers driving this from the clock guarantee that already, so
// it isn't re-validated here.
func MarkReached(s Scheduled, reachedAt time.Time) Reached {
	return Reached{
		TenantID:      s.TenantID,
		ServiceCallID: s.ServiceCallID,
		DueAt:         s.DueAt,
		RegisteredAt:  s.RegisteredAt,
		ReachedAt:     reachedAt,
		CorrelationID: s.CorrelationID,
	}
}
