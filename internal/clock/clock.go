package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

type Clock interface {
	Now() time.Time
}

// System truncates to millisecond resolution so stored and compared
// instants agree.
type System struct {
	inner clockwork.Clock
}

func NewSystem() System {
	return System{inner: clockwork.NewRealClock()}
}

func (s System) Now() time.Time {
	return s.inner.Now().UTC().Truncate(time.Millisecond)
}

// Test wraps a clockwork.FakeClock for deterministic tests.
type Test struct {
	fake clockwork.FakeClock
}

func NewTest(at time.Time) Test {
	return Test{fake: clockwork.NewFakeClockAt(at.UTC().Truncate(time.Millisecond))}
}

func (t Test) Now() time.Time {
	return t.fake.Now().UTC().Truncate(time.Millisecond)
}

func (t Test) Advance(d time.Duration) {
	t.fake.Advance(d)
}

func (t Test) Set(at time.Time) {
	t.fake.Advance(at.Sub(t.fake.Now()))
}
