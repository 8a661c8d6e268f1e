package eventbus

import (
	"time"

	"github.com/g960059/timersvc/internal/ids"
)

// Topic names follow a "{module}.{class}" convention.
const (
	TopicTimerCommands = "timer.commands"
	TopicTimerEvents   = "timer.events"
)

// Tag discriminators, matching payload._tag in the wire JSON.
const (
	TagScheduleTimer  = "ScheduleTimer"
	TagDueTimeReached = "DueTimeReached"
)

// ScheduleTimer is the inbound command payload.
type ScheduleTimer struct {
	TenantID      ids.TenantID
	ServiceCallID ids.ServiceCallID
	DueAt         time.Time
}

func (ScheduleTimer) tag() string { return TagScheduleTimer }

// DueTimeReached is the outbound domain event payload. reachedAt is always
// populated from the firing instant, never left zero.
type DueTimeReached struct {
	TenantID      ids.TenantID
	ServiceCallID ids.ServiceCallID
	ReachedAt     time.Time
}

func (DueTimeReached) tag() string { return TagDueTimeReached }

// Payload is any domain message that can ride inside an Envelope.
type Payload interface {
	tag() string
}
