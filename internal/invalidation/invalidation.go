// Package invalidation implements the Invalidation Bus: a pub/sub channel
// other processes' writes publish to, so every process sharing an L2 keeps
// its L1 coherent. Propagates a change to peers the way a cluster gossip
// protocol would, but over a plain pub/sub primitive rather than a
// membership ring, since twotier has no peer-to-peer topology of its own —
// L2 is the only shared state.
package invalidation

import (
	"context"
	"fmt"

	"github.com/kirky-x/twotier/internal/l1"
	"github.com/kirky-x/twotier/internal/l2"
	"github.com/kirky-x/twotier/internal/logging"
)

// DefaultChannel returns the default invalidation channel name for a
// service.
func DefaultChannel(service string) string {
	return fmt.Sprintf("cache:invalidate:%s", service)
}

// Bus publishes and consumes invalidation events for one service's L1.
type Bus struct {
	backend l2.Backend
	channel string
	logger  logging.Logger
}

// New builds a Bus over channel (default from DefaultChannel, or a custom
// invalidation_channel from config).
func New(backend l2.Backend, channel string, logger logging.Logger) *Bus {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Bus{backend: backend, channel: channel, logger: logger}
}

// Publish announces that key was changed or deleted locally, so other processes' L1s
// can evict their copy. Payload is the user-key as UTF-8 bytes.
func (b *Bus) Publish(ctx context.Context, key string) error {
	return b.backend.Publish(ctx, b.channel, []byte(key))
}

// Listen subscribes to the bus and applies incoming events to store until
// ctx is cancelled. On every detected resubscribe it flushes store entirely:
// a conservative full-flush beats silently missing whatever invalidations
// happened during the disconnect window.
func (b *Bus) Listen(ctx context.Context, store l1.Store) error {
	sub, err := b.backend.Subscribe(ctx, b.channel)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.Resubscribed():
			b.logger.Warn("invalidation: resubscribed, flushing L1", "channel", b.channel)
			store.Flush()
		case msg, ok := <-sub.Messages():
			if !ok {
				return nil
			}
			b.apply(store, msg)
		}
	}
}

func (b *Bus) apply(store l1.Store, msg l2.Message) {
	store.Delete(string(msg.Payload))
}
