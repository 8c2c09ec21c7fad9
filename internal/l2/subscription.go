package l2

import (
	"github.com/redis/go-redis/v9"
)

// redisSubscription adapts *redis.PubSub to Subscription, translating
// go-redis's internal auto-reconnect (it silently resubscribes under the
// hood) into an explicit Resubscribed signal.
type redisSubscription struct {
	ps       *redis.PubSub
	messages chan Message
	resub    chan struct{}
	done     chan struct{}
}

func newRedisSubscription(ps *redis.PubSub) *redisSubscription {
	s := &redisSubscription{
		ps:       ps,
		messages: make(chan Message, 64),
		resub:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go s.pump()
	return s
}

// pump drains go-redis's combined message/subscription-confirmation channel.
// ChannelWithSubscriptions delivers a *redis.Subscription value every time
// the underlying connection (re-)subscribes, including every reconnect
// go-redis performs transparently under the hood — unlike Channel, which
// only ever yields payload messages and hides that edge entirely. Since the
// caller already consumes the initial subscribe confirmation via ps.Receive
// before handing the subscription to us, every *redis.Subscription seen
// here is a genuine resubscribe, and we surface it as one on Resubscribed.
func (s *redisSubscription) pump() {
	defer close(s.messages)
	ch := s.ps.ChannelWithSubscriptions()
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return
			}
			switch m := v.(type) {
			case *redis.Subscription:
				s.TriggerResubscribed()
			case *redis.Message:
				select {
				case s.messages <- Message{Payload: []byte(m.Payload)}:
				case <-s.done:
					return
				}
			}
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Messages() <-chan Message { return s.messages }

func (s *redisSubscription) Resubscribed() <-chan struct{} { return s.resub }

// TriggerResubscribed marks that a resubscribe happened. pump calls this on
// every *redis.Subscription confirmation it observes; it is also exported
// for tests and for callers layering their own reconnect detection on top.
func (s *redisSubscription) TriggerResubscribed() {
	select {
	case s.resub <- struct{}{}:
	default:
	}
}

func (s *redisSubscription) Close() error {
	close(s.done)
	return s.ps.Close()
}
