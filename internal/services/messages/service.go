package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ivankudzin/shipyard/internal/domain/model"
	"github.com/ivankudzin/shipyard/internal/services/conversations"
)

const DefaultMaxLength = 4000

var (
	ErrValidation  = errors.New("validation error")
	ErrEmpty       = errors.New("content is required")
	ErrTooLong     = errors.New("content is too long")
	ErrForbidden   = errors.New("not a participant")
	ErrRateLimited = errors.New("rate limited")
)

// RateLimitError carries the wait before the sender may try again.
type RateLimitError struct {
	RetryAfterSec int64
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %ds", e.RetryAfterSec)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

type Store interface {
	List(ctx context.Context, conversationID string, since time.Time) ([]model.Message, error)
	Insert(ctx context.Context, conversationID, senderID, content string) (model.Message, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, conversationID, userID string) (conversations.AuthzResult, error)
}

type Publisher interface {
	Publish(ctx context.Context, conversationID string, msg model.Message) error
}

type RateLimiter interface {
	Allow(ctx context.Context, userID string) (int64, bool, error)
}

type Dependencies struct {
	Store      Store
	Authorizer Authorizer
	Publisher  Publisher
	Limiter    RateLimiter
	// OnPublishError observes fan-out failures; the append itself still succeeds.
	OnPublishError func(conversationID string, err error)
}

type Config struct {
	MaxLength int
}

type Service struct {
	store          Store
	authz          Authorizer
	publisher      Publisher
	limiter        RateLimiter
	onPublishError func(string, error)
	maxLength      int
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultMaxLength
	}
	return &Service{
		store:          deps.Store,
		authz:          deps.Authorizer,
		publisher:      deps.Publisher,
		limiter:        deps.Limiter,
		onPublishError: deps.OnPublishError,
		maxLength:      cfg.MaxLength,
	}
}

// List returns the conversation history oldest first.
func (s *Service) List(ctx context.Context, conversationID, callerID string) ([]model.Message, error) {
	if err := s.requireParticipant(ctx, conversationID, callerID); err != nil {
		return nil, err
	}

	items, err := s.store.List(ctx, conversationID, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return items, nil
}

// Append stores trimmed content from the caller and fans it out to live subscribers.
func (s *Service) Append(ctx context.Context, conversationID, callerID, content string) (model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Message{}, fmt.Errorf("%w: %w", ErrValidation, ErrEmpty)
	}
	if utf8.RuneCountInString(content) > s.maxLength {
		return model.Message{}, fmt.Errorf("%w: %w", ErrValidation, ErrTooLong)
	}
	if err := s.requireParticipant(ctx, conversationID, callerID); err != nil {
		return model.Message{}, err
	}

	if s.limiter != nil {
		retryAfter, allowed, err := s.limiter.Allow(ctx, callerID)
		// The limiter fails open when its store is unreachable.
		if err == nil && !allowed {
			return model.Message{}, &RateLimitError{RetryAfterSec: retryAfter}
		}
	}

	msg, err := s.store.Insert(ctx, conversationID, callerID, content)
	if err != nil {
		return model.Message{}, fmt.Errorf("insert message: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, conversationID, msg); err != nil && s.onPublishError != nil {
			s.onPublishError(conversationID, err)
		}
	}

	return msg, nil
}

func (s *Service) MaxLength() int {
	return s.maxLength
}

func (s *Service) requireParticipant(ctx context.Context, conversationID, userID string) error {
	if s.store == nil || s.authz == nil {
		return fmt.Errorf("message store is nil")
	}
	result, err := s.authz.Authorize(ctx, conversationID, userID)
	if result != conversations.Authorized {
		if err != nil {
			return fmt.Errorf("%w: %w", ErrForbidden, err)
		}
		return ErrForbidden
	}
	return nil
}
