package fake

import "github.com/kirky-x/twotier/internal/l2"

// subscription is the fake Backend's in-process l2.Subscription: Publish
// fans out directly to every live subscription's channel, no network
// involved.
type subscription struct {
	messages chan l2.Message
	resub    chan struct{}
	closed   chan struct{}
}

func newSubscription() *subscription {
	return &subscription{
		messages: make(chan l2.Message, 64),
		resub:    make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
}

func (s *subscription) deliver(payload []byte) {
	select {
	case s.messages <- l2.Message{Payload: append([]byte(nil), payload...)}:
	case <-s.closed:
	default:
		// Bounded buffer, slow consumer: drop rather than block Publish,
		// matching the at-most-best-effort nature of the invalidation bus.
	}
}

func (s *subscription) Messages() <-chan l2.Message { return s.messages }

func (s *subscription) Resubscribed() <-chan struct{} { return s.resub }

// SimulateResubscribe lets a test trigger the resubscribe edge directly.
func (s *subscription) SimulateResubscribe() {
	select {
	case s.resub <- struct{}{}:
	default:
	}
}

func (s *subscription) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}
