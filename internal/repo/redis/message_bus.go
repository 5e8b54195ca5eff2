package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ivankudzin/shipyard/internal/domain/model"
	"github.com/ivankudzin/shipyard/internal/services/realtime"
)

const conversationChannelPrefix = "conversation:"

// MessageBus carries new messages over Redis pub/sub, one channel per conversation.
type MessageBus struct {
	client *goredis.Client
}

type busSubscription struct {
	pubsub *goredis.PubSub
	events chan model.Message
	done   chan struct{}
	exited chan struct{}
	once   sync.Once
	err    error
}

func NewMessageBus(client *goredis.Client) *MessageBus {
	return &MessageBus{client: client}
}

func ConversationChannel(conversationID string) string {
	return conversationChannelPrefix + conversationID
}

func (b *MessageBus) Publish(ctx context.Context, conversationID string, msg model.Message) error {
	if b.client == nil {
		return ErrClientUnavailable
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message event: %w", err)
	}
	if err := b.client.Publish(ctx, ConversationChannel(conversationID), payload).Err(); err != nil {
		return fmt.Errorf("publish message event: %w", err)
	}

	return nil
}

// Subscribe returns once Redis has confirmed the subscription, so anything
// published afterwards is delivered.
func (b *MessageBus) Subscribe(ctx context.Context, conversationID string) (realtime.Subscription, error) {
	if b.client == nil {
		return nil, ErrClientUnavailable
	}

	pubsub := b.client.Subscribe(ctx, ConversationChannel(conversationID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to conversation: %w", err)
	}

	sub := &busSubscription{
		pubsub: pubsub,
		events: make(chan model.Message, 16),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go sub.pump(pubsub.Channel())

	return sub, nil
}

func (s *busSubscription) pump(in <-chan *goredis.Message) {
	defer close(s.exited)
	defer close(s.events)

	for {
		select {
		case <-s.done:
			return
		case raw, ok := <-in:
			if !ok {
				return
			}
			var msg model.Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				continue
			}
			select {
			case s.events <- msg:
			case <-s.done:
				return
			}
		}
	}
}

func (s *busSubscription) Events() <-chan model.Message {
	return s.events
}

func (s *busSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.pubsub.Close()
		<-s.exited
	})
	return s.err
}
