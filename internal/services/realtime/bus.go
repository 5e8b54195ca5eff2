package realtime

import (
	"context"
	"sync"

	"github.com/ivankudzin/shipyard/internal/domain/model"
)

// Bus fans new messages out to subscribers of a conversation. Delivery is
// at most once; a subscriber that falls behind may miss events.
type Bus interface {
	Publish(ctx context.Context, conversationID string, msg model.Message) error
	Subscribe(ctx context.Context, conversationID string) (Subscription, error)
}

// Subscription yields events until Close is called or the bus goes away,
// after which Events is closed.
type Subscription interface {
	Events() <-chan model.Message
	Close() error
}

const localBufferSize = 32

// LocalBus is an in-process Bus for single-node deployments.
type LocalBus struct {
	mu   sync.RWMutex
	subs map[string]map[*localSubscription]struct{}
}

type localSubscription struct {
	bus            *LocalBus
	conversationID string
	events         chan model.Message
	once           sync.Once
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string]map[*localSubscription]struct{})}
}

func (b *LocalBus) Publish(_ context.Context, conversationID string, msg model.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[conversationID] {
		select {
		case sub.events <- msg:
		default:
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(_ context.Context, conversationID string) (Subscription, error) {
	sub := &localSubscription{
		bus:            b,
		conversationID: conversationID,
		events:         make(chan model.Message, localBufferSize),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[conversationID] == nil {
		b.subs[conversationID] = make(map[*localSubscription]struct{})
	}
	b.subs[conversationID][sub] = struct{}{}

	return sub, nil
}

// Subscribers reports how many live subscriptions a conversation has.
func (b *LocalBus) Subscribers(conversationID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[conversationID])
}

func (s *localSubscription) Events() <-chan model.Message {
	return s.events
}

func (s *localSubscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()

		delete(s.bus.subs[s.conversationID], s)
		if len(s.bus.subs[s.conversationID]) == 0 {
			delete(s.bus.subs, s.conversationID)
		}
		close(s.events)
	})
	return nil
}
