package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/shipyard/internal/domain/model"
)

var (
	ErrPoolUnavailable      = errors.New("postgres pool is nil")
	ErrUnknownUser          = errors.New("unknown user")
	ErrConversationNotFound = errors.New("conversation not found")
)

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	if r.pool == nil {
		return false, ErrPoolUnavailable
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1
	FROM conversation_participants
	WHERE conversation_id = $1 AND user_id = $2
)
`, conversationID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check conversation participant: %w", err)
	}

	return exists, nil
}

// ListForUser returns every conversation userID participates in, oldest first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	if r.pool == nil {
		return nil, ErrPoolUnavailable
	}

	rows, err := r.pool.Query(ctx, `
SELECT c.id::text, c.created_at
FROM conversation_participants cp
JOIN conversations c ON c.id = cp.conversation_id
WHERE cp.user_id = $1
ORDER BY c.created_at ASC, c.id ASC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations for user: %w", err)
	}
	defer rows.Close()

	items := make([]model.Conversation, 0)
	for rows.Next() {
		var item model.Conversation
		if err := rows.Scan(&item.ID, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	return items, nil
}

// FindShared returns the earliest conversation among conversationIDs that userID also belongs to.
func (r *ConversationRepo) FindShared(ctx context.Context, userID string, conversationIDs []string) (model.Conversation, bool, error) {
	if r.pool == nil {
		return model.Conversation{}, false, ErrPoolUnavailable
	}
	if len(conversationIDs) == 0 {
		return model.Conversation{}, false, nil
	}

	var item model.Conversation
	err := r.pool.QueryRow(ctx, `
SELECT c.id::text, c.created_at
FROM conversation_participants cp
JOIN conversations c ON c.id = cp.conversation_id
WHERE cp.user_id = $1
  AND cp.conversation_id = ANY($2::text[]::uuid[])
ORDER BY c.created_at ASC, c.id ASC
LIMIT 1
`, userID, conversationIDs).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Conversation{}, false, nil
		}
		return model.Conversation{}, false, fmt.Errorf("find shared conversation: %w", err)
	}

	return item, true, nil
}

// CreateWithParticipants writes the conversation and both participant rows atomically.
// Concurrent calls for the same pair are serialized, and a conversation created by
// the winner is returned to the loser instead of a duplicate.
func (r *ConversationRepo) CreateWithParticipants(ctx context.Context, initiatorID, otherID string) (model.Conversation, bool, error) {
	if r.pool == nil {
		return model.Conversation{}, false, ErrPoolUnavailable
	}

	var (
		item    model.Conversation
		created bool
	)
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		if err := lockKey(txCtx, tx, pairKey(initiatorID, otherID)); err != nil {
			return err
		}

		err := tx.QueryRow(txCtx, `
SELECT c.id::text, c.created_at
FROM conversations c
JOIN conversation_participants a ON a.conversation_id = c.id AND a.user_id = $1
JOIN conversation_participants b ON b.conversation_id = c.id AND b.user_id = $2
ORDER BY c.created_at ASC, c.id ASC
LIMIT 1
`, initiatorID, otherID).Scan(&item.ID, &item.CreatedAt)
		if err == nil {
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("recheck shared conversation: %w", err)
		}

		if err := tx.QueryRow(txCtx, `
INSERT INTO conversations DEFAULT VALUES
RETURNING id::text, created_at
`).Scan(&item.ID, &item.CreatedAt); err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}

		for _, userID := range []string{initiatorID, otherID} {
			if _, err := tx.Exec(txCtx, `
INSERT INTO conversation_participants (conversation_id, user_id)
VALUES ($1, $2)
`, item.ID, userID); err != nil {
				if isForeignKeyViolation(err) {
					return ErrUnknownUser
				}
				return fmt.Errorf("insert conversation participant: %w", err)
			}
		}

		created = true
		return nil
	})
	if err != nil {
		return model.Conversation{}, false, err
	}

	return item, created, nil
}

func (r *ConversationRepo) Get(ctx context.Context, conversationID string) (model.Conversation, error) {
	if r.pool == nil {
		return model.Conversation{}, ErrPoolUnavailable
	}

	var item model.Conversation
	err := r.pool.QueryRow(ctx, `
SELECT id::text, created_at
FROM conversations
WHERE id = $1
`, conversationID).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Conversation{}, ErrConversationNotFound
		}
		return model.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}

	return item, nil
}

// OtherParticipants lists everyone in the conversation except userID, in join order.
// A participant without a profile row is returned with only its id set.
func (r *ConversationRepo) OtherParticipants(ctx context.Context, conversationID, userID string) ([]model.ProfileSummary, error) {
	if r.pool == nil {
		return nil, ErrPoolUnavailable
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	cp.user_id::text,
	COALESCE(p.display_name, ''),
	COALESCE(p.primary_photo_url, '')
FROM conversation_participants cp
LEFT JOIN profiles p ON p.id = cp.user_id
WHERE cp.conversation_id = $1
  AND cp.user_id <> $2
ORDER BY cp.joined_at ASC, cp.user_id ASC
`, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("list other participants: %w", err)
	}
	defer rows.Close()

	items := make([]model.ProfileSummary, 0, 1)
	for rows.Next() {
		var item model.ProfileSummary
		if err := rows.Scan(&item.ID, &item.DisplayName, &item.PrimaryPhotoURL); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}

	return items, nil
}

// AddParticipant is idempotent for users already in the conversation.
func (r *ConversationRepo) AddParticipant(ctx context.Context, conversationID, userID string) error {
	if r.pool == nil {
		return ErrPoolUnavailable
	}

	_, err := r.pool.Exec(ctx, `
INSERT INTO conversation_participants (conversation_id, user_id)
VALUES ($1, $2)
ON CONFLICT (conversation_id, user_id) DO NOTHING
`, conversationID, userID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUnknownUser
		}
		return fmt.Errorf("add conversation participant: %w", err)
	}

	return nil
}

// DeleteOrphans removes conversations with fewer than two participants and no
// messages, created before cutoff.
func (r *ConversationRepo) DeleteOrphans(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, ErrPoolUnavailable
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM conversations c
WHERE c.created_at < $1
  AND (
	SELECT COUNT(*)
	FROM conversation_participants cp
	WHERE cp.conversation_id = c.id
  ) < 2
  AND NOT EXISTS (
	SELECT 1
	FROM messages m
	WHERE m.conversation_id = c.id
  )
`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete orphan conversations: %w", err)
	}

	return tag.RowsAffected(), nil
}

// pairKey is order independent so both directions take the same lock.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return "conversation-pair:" + a + ":" + b
}
