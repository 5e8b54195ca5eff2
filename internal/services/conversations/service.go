package conversations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ivankudzin/shipyard/internal/domain/model"
	pgrepo "github.com/ivankudzin/shipyard/internal/repo/postgres"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrSelfTarget  = errors.New("cannot start conversation with yourself")
	ErrUnknownUser = errors.New("unknown user")
	ErrForbidden   = errors.New("not a participant")
)

// AuthzResult is the outcome of a participant check. Lookup failures collapse to Denied.
type AuthzResult int

const (
	Denied AuthzResult = iota
	Authorized
)

const previewConcurrency = 8

type Store interface {
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]model.Conversation, error)
	FindShared(ctx context.Context, userID string, conversationIDs []string) (model.Conversation, bool, error)
	CreateWithParticipants(ctx context.Context, initiatorID, otherID string) (model.Conversation, bool, error)
	Get(ctx context.Context, conversationID string) (model.Conversation, error)
	OtherParticipants(ctx context.Context, conversationID, userID string) ([]model.ProfileSummary, error)
	AddParticipant(ctx context.Context, conversationID, userID string) error
}

type LastMessageStore interface {
	Last(ctx context.Context, conversationID string) (*model.LastMessage, error)
}

type Service struct {
	store    Store
	messages LastMessageStore
}

// Detail is a conversation together with everyone else in it.
type Detail struct {
	model.Conversation
	Participants []model.ProfileSummary
}

func NewService(store Store, messages LastMessageStore) *Service {
	return &Service{
		store:    store,
		messages: messages,
	}
}

// Authorize reports whether userID participates in conversationID. The error,
// if any, explains a Denied result and is meant for logs only.
func (s *Service) Authorize(ctx context.Context, conversationID, userID string) (AuthzResult, error) {
	if s.store == nil {
		return Denied, fmt.Errorf("conversation store is nil")
	}
	if _, err := uuid.Parse(conversationID); err != nil {
		return Denied, nil
	}
	if strings.TrimSpace(userID) == "" {
		return Denied, nil
	}

	ok, err := s.store.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return Denied, err
	}
	if !ok {
		return Denied, nil
	}
	return Authorized, nil
}

// CreateOrFind returns the earliest conversation the two users already share,
// creating one when there is none.
func (s *Service) CreateOrFind(ctx context.Context, initiatorID, otherID string) (model.Conversation, bool, error) {
	otherID = strings.TrimSpace(otherID)
	if otherID == "" {
		return model.Conversation{}, false, fmt.Errorf("other user id is required: %w", ErrValidation)
	}
	parsed, err := uuid.Parse(otherID)
	if err != nil {
		if otherID == initiatorID {
			return model.Conversation{}, false, ErrSelfTarget
		}
		return model.Conversation{}, false, fmt.Errorf("other user id must be a uuid: %w", ErrValidation)
	}
	otherID = parsed.String()
	initiatorID = canonicalID(initiatorID)
	if otherID == initiatorID {
		return model.Conversation{}, false, ErrSelfTarget
	}
	if s.store == nil {
		return model.Conversation{}, false, fmt.Errorf("conversation store is nil")
	}

	mine, err := s.store.ListForUser(ctx, initiatorID)
	if err != nil {
		return model.Conversation{}, false, fmt.Errorf("list own conversations: %w", err)
	}

	if len(mine) > 0 {
		ids := make([]string, 0, len(mine))
		for _, c := range mine {
			ids = append(ids, c.ID)
		}
		existing, found, err := s.store.FindShared(ctx, otherID, ids)
		if err != nil {
			return model.Conversation{}, false, fmt.Errorf("find shared conversation: %w", err)
		}
		if found {
			return existing, false, nil
		}
	}

	created, isNew, err := s.store.CreateWithParticipants(ctx, initiatorID, otherID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUnknownUser) {
			return model.Conversation{}, false, ErrUnknownUser
		}
		return model.Conversation{}, false, fmt.Errorf("create conversation: %w", err)
	}

	return created, isNew, nil
}

// List returns the user's inbox, most recently active first.
func (s *Service) List(ctx context.Context, userID string) ([]model.ConversationPreview, error) {
	if s.store == nil || s.messages == nil {
		return nil, fmt.Errorf("conversation store is nil")
	}

	convs, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	out := make([]model.ConversationPreview, len(convs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(previewConcurrency)
	for i, conv := range convs {
		g.Go(func() error {
			others, err := s.store.OtherParticipants(gctx, conv.ID, userID)
			if err != nil {
				return fmt.Errorf("participants of %s: %w", conv.ID, err)
			}
			last, err := s.messages.Last(gctx, conv.ID)
			if err != nil {
				return fmt.Errorf("last message of %s: %w", conv.ID, err)
			}

			preview := model.ConversationPreview{Conversation: conv, LastMessage: last}
			if len(others) > 0 {
				participant := others[0]
				preview.Participant = &participant
			}
			out[i] = preview
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := out[i].ActivityAt(), out[j].ActivityAt()
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

func (s *Service) Get(ctx context.Context, conversationID, callerID string) (Detail, error) {
	if err := s.requireParticipant(ctx, conversationID, callerID); err != nil {
		return Detail{}, err
	}

	conv, err := s.store.Get(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrConversationNotFound) {
			return Detail{}, ErrForbidden
		}
		return Detail{}, fmt.Errorf("get conversation: %w", err)
	}

	others, err := s.store.OtherParticipants(ctx, conversationID, callerID)
	if err != nil {
		return Detail{}, fmt.Errorf("list participants: %w", err)
	}

	return Detail{Conversation: conv, Participants: others}, nil
}

// AddParticipant lets any participant bring another user into the conversation.
func (s *Service) AddParticipant(ctx context.Context, conversationID, callerID, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required: %w", ErrValidation)
	}
	parsed, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("user id must be a uuid: %w", ErrValidation)
	}
	userID = parsed.String()
	if err := s.requireParticipant(ctx, conversationID, callerID); err != nil {
		return err
	}

	if err := s.store.AddParticipant(ctx, conversationID, userID); err != nil {
		if errors.Is(err, pgrepo.ErrUnknownUser) {
			return ErrUnknownUser
		}
		return fmt.Errorf("add participant: %w", err)
	}
	return nil
}

// canonicalID lowercases a uuid into its hyphenated form and leaves anything
// else untouched.
func canonicalID(id string) string {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return id
	}
	return parsed.String()
}

func (s *Service) requireParticipant(ctx context.Context, conversationID, userID string) error {
	result, err := s.Authorize(ctx, conversationID, userID)
	if result != Authorized {
		if err != nil {
			return fmt.Errorf("%w: %w", ErrForbidden, err)
		}
		return ErrForbidden
	}
	return nil
}
