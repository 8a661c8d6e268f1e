package eventbus

import (
	"context"
	"fmt"
)

// Port is the generic event bus collaborator contract: publication must
// preserve per-aggregate order within a topic; subscription delivers at
// least once and may redeliver on handler failure.
type Port interface {
	Publish(ctx context.Context, topic string, envelopes ...Envelope) error
	Subscribe(ctx context.Context, topic string, handler func(ctx context.Context, raw []byte) error) error
}

// PublishError reports that the broker rejected a publish.
type PublishError struct {
	Topic string
	Cause error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("eventbus: publish to %s: %v", e.Topic, e.Cause)
}

func (e *PublishError) Unwrap() error { return e.Cause }

// SubscribeError reports that subscription setup itself failed (not a
// per-message handler error, which propagates unchanged).
type SubscribeError struct {
	Topic string
	Cause error
}

func (e *SubscribeError) Error() string {
	return fmt.Sprintf("eventbus: subscribe to %s: %v", e.Topic, e.Cause)
}

func (e *SubscribeError) Unwrap() error { return e.Cause }
