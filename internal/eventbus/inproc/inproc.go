package inproc

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/g960059/timersvc/internal/eventbus"
)

// Bus delivers strictly in enqueue order per topic, via a single dispatcher
// goroutine — sufficient to preserve per-aggregateId ordering since there
// is only one partition.
type Bus struct {
	mu        sync.Mutex
	queues    map[string]chan []byte
	bufSize   int
	closed    chan struct{}
	closeOnce sync.Once
	log       zerolog.Logger
}

// New: Publish blocks once a topic's queue (bufSize deep) is full.
func New(bufSize int, log zerolog.Logger) *Bus {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Bus{queues: make(map[string]chan []byte), bufSize: bufSize, closed: make(chan struct{}), log: log}
}

func (b *Bus) queueFor(topic string) chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[topic]
	if !ok {
		q = make(chan []byte, b.bufSize)
		b.queues[topic] = q
	}
	return q
}

func (b *Bus) Publish(ctx context.Context, topic string, envelopes ...eventbus.Envelope) error {
	q := b.queueFor(topic)
	for _, env := range envelopes {
		raw, err := eventbus.Encode(env)
		if err != nil {
			return fmt.Errorf("inproc: encode envelope: %w", err)
		}
		select {
		case q <- raw:
		case <-ctx.Done():
			return ctx.Err()
		case <-b.closed:
			return fmt.Errorf("inproc: bus closed")
		}
	}
	return nil
}

// Subscribe starts a dispatcher goroutine for topic that delivers messages
// to handler, one at a time, for as long as ctx is alive. A handler error
// is logged here and does not stop delivery of subsequent messages,
// matching at-least-once/redeliver-on-failure semantics — this simple bus
// does not redeliver, but never drops a message because of a handler error
// either.
func (b *Bus) Subscribe(ctx context.Context, topic string, handler func(ctx context.Context, raw []byte) error) error {
	q := b.queueFor(topic)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.closed:
				return
			case raw := <-q:
				if err := handler(ctx, raw); err != nil {
					b.log.Error().Err(err).Str("topic", topic).Msg("handler returned error")
				}
			}
		}
	}()
	return nil
}

// Close stops accepting new work; in-flight Subscribe goroutines exit on
// their next select.
func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.closed) })
}

var _ eventbus.Port = (*Bus)(nil)
