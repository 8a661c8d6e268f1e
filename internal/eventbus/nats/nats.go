package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/g960059/timersvc/internal/eventbus"
)

type Adapter struct {
	conn *nats.Conn
	log  zerolog.Logger
}

func New(conn *nats.Conn, log zerolog.Logger) *Adapter {
	return &Adapter{conn: conn, log: log}
}

// Publish is fire-and-forget but ordered per connection, preserving
// per-aggregate ordering since every envelope for a topic travels the same
// subject.
func (a *Adapter) Publish(ctx context.Context, topic string, envelopes ...eventbus.Envelope) error {
	for _, env := range envelopes {
		raw, err := eventbus.Encode(env)
		if err != nil {
			return fmt.Errorf("nats: encode envelope: %w", err)
		}
		if err := a.conn.Publish(topic, raw); err != nil {
			return fmt.Errorf("nats: publish to %s: %w", topic, err)
		}
	}
	return nil
}

func (a *Adapter) Subscribe(ctx context.Context, topic string, handler func(ctx context.Context, raw []byte) error) error {
	sub, err := a.conn.Subscribe(topic, func(msg *nats.Msg) {
		if err := handler(ctx, msg.Data); err != nil {
			a.log.Error().Err(err).Str("topic", topic).Msg("handler returned error")
		}
	})
	if err != nil {
		return fmt.Errorf("nats: subscribe to %s: %w", topic, err)
	}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return nil
}

var _ eventbus.Port = (*Adapter)(nil)
