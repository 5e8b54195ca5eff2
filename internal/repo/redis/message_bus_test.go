package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ivankudzin/shipyard/internal/domain/model"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := NewClient(ClientConfig{Addr: mr.Addr(), Timeout: time.Second})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestMessageBusDeliversToConversationSubscribers(t *testing.T) {
	_, client := newTestClient(t)
	bus := NewMessageBus(client)
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "conv-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	other, err := bus.Subscribe(ctx, "conv-2")
	if err != nil {
		t.Fatalf("subscribe other: %v", err)
	}
	defer other.Close()

	sent := model.Message{ID: "m-1", ConversationID: "conv-1", SenderID: "u-1", Content: "hi", CreatedAt: time.Now().UTC()}
	if err := bus.Publish(ctx, "conv-1", sent); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-sub.Events():
		if got.ID != sent.ID || got.Content != "hi" || !got.CreatedAt.Equal(sent.CreatedAt) {
			t.Fatalf("unexpected message: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("message was not delivered")
	}

	select {
	case got := <-other.Events():
		t.Fatalf("other conversation must not receive %+v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMessageBusCloseEndsEvents(t *testing.T) {
	_, client := newTestClient(t)
	bus := NewMessageBus(client)

	sub, err := bus.Subscribe(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, ok := <-sub.Events(); ok {
		t.Fatalf("events channel should be closed")
	}
}

func TestMessageBusWithoutClient(t *testing.T) {
	bus := NewMessageBus(nil)
	if err := bus.Publish(context.Background(), "conv-1", model.Message{}); !errors.Is(err, ErrClientUnavailable) {
		t.Fatalf("unexpected publish error: %v", err)
	}
	if _, err := bus.Subscribe(context.Background(), "conv-1"); !errors.Is(err, ErrClientUnavailable) {
		t.Fatalf("unexpected subscribe error: %v", err)
	}
}

func TestRateRepoWindowExpires(t *testing.T) {
	mr, client := newTestClient(t)
	repo := NewRateRepo(client)
	ctx := context.Background()

	for want := int64(1); want <= 2; want++ {
		count, ttl, err := repo.IncrementWindow(ctx, "rate:messages:u-1:10s", 10*time.Second)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if count != want || ttl <= 0 || ttl > 10*time.Second {
			t.Fatalf("unexpected window: count=%d ttl=%s", count, ttl)
		}
	}

	mr.FastForward(11 * time.Second)

	count, ttl, err := repo.IncrementWindow(ctx, "rate:messages:u-1:10s", 10*time.Second)
	if err != nil {
		t.Fatalf("increment after expiry: %v", err)
	}
	if count != 1 || ttl != 10*time.Second {
		t.Fatalf("window should have restarted: count=%d ttl=%s", count, ttl)
	}
}
