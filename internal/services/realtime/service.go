package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ivankudzin/shipyard/internal/domain/model"
	"github.com/ivankudzin/shipyard/internal/services/conversations"
)

var ErrForbidden = errors.New("not a participant")

type Authorizer interface {
	Authorize(ctx context.Context, conversationID, userID string) (conversations.AuthzResult, error)
}

type History interface {
	List(ctx context.Context, conversationID string, since time.Time) ([]model.Message, error)
}

type Service struct {
	bus     Bus
	authz   Authorizer
	history History
}

// Stream is one subscriber's view of a conversation: the messages it missed
// followed by live events.
type Stream struct {
	Backlog []model.Message
	sub     Subscription
	seen    map[string]struct{}
}

func NewService(bus Bus, authz Authorizer, history History) *Service {
	return &Service{
		bus:     bus,
		authz:   authz,
		history: history,
	}
}

// Open checks membership, subscribes, and then loads messages newer than since.
// Subscribing first means nothing written in between is lost; duplicates are
// filtered by Stream.Fresh.
func (s *Service) Open(ctx context.Context, conversationID, userID string, since time.Time) (*Stream, error) {
	if s.bus == nil || s.authz == nil {
		return nil, fmt.Errorf("realtime service is not configured")
	}

	result, err := s.authz.Authorize(ctx, conversationID, userID)
	if result != conversations.Authorized {
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrForbidden, err)
		}
		return nil, ErrForbidden
	}

	sub, err := s.bus.Subscribe(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	stream := &Stream{sub: sub, seen: make(map[string]struct{})}
	if !since.IsZero() && s.history != nil {
		backlog, err := s.history.List(ctx, conversationID, since)
		if err != nil {
			_ = sub.Close()
			return nil, fmt.Errorf("load backlog: %w", err)
		}
		for _, msg := range backlog {
			stream.seen[msg.ID] = struct{}{}
		}
		stream.Backlog = backlog
	}

	return stream, nil
}

func (st *Stream) Events() <-chan model.Message {
	return st.sub.Events()
}

// Fresh reports whether a live msg was not already sent as backlog. Only
// backlog ids are tracked, and each is dropped once its live copy shows up.
func (st *Stream) Fresh(msg model.Message) bool {
	if _, ok := st.seen[msg.ID]; ok {
		delete(st.seen, msg.ID)
		return false
	}
	return true
}

func (st *Stream) Close() error {
	return st.sub.Close()
}
