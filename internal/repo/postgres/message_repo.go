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

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

const selectMessages = `
SELECT
	m.id::text,
	m.conversation_id::text,
	m.sender_id::text,
	m.content,
	m.created_at,
	COALESCE(p.display_name, ''),
	COALESCE(p.primary_photo_url, '')
FROM messages m
LEFT JOIN profiles p ON p.id = m.sender_id
`

// List returns the conversation's messages oldest first. A non-zero since
// restricts the result to messages created strictly after it.
func (r *MessageRepo) List(ctx context.Context, conversationID string, since time.Time) ([]model.Message, error) {
	if r.pool == nil {
		return nil, ErrPoolUnavailable
	}

	var (
		rows pgx.Rows
		err  error
	)
	if since.IsZero() {
		rows, err = r.pool.Query(ctx, selectMessages+`
WHERE m.conversation_id = $1
ORDER BY m.created_at ASC, m.id ASC
`, conversationID)
	} else {
		rows, err = r.pool.Query(ctx, selectMessages+`
WHERE m.conversation_id = $1
  AND m.created_at > $2
ORDER BY m.created_at ASC, m.id ASC
`, conversationID, since.UTC())
	}
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]model.Message, 0)
	for rows.Next() {
		item, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return items, nil
}

func (r *MessageRepo) Insert(ctx context.Context, conversationID, senderID, content string) (model.Message, error) {
	if r.pool == nil {
		return model.Message{}, ErrPoolUnavailable
	}

	row := r.pool.QueryRow(ctx, `
WITH inserted AS (
	INSERT INTO messages (conversation_id, sender_id, content)
	VALUES ($1, $2, $3)
	RETURNING id, conversation_id, sender_id, content, created_at
)
SELECT
	m.id::text,
	m.conversation_id::text,
	m.sender_id::text,
	m.content,
	m.created_at,
	COALESCE(p.display_name, ''),
	COALESCE(p.primary_photo_url, '')
FROM inserted m
LEFT JOIN profiles p ON p.id = m.sender_id
`, conversationID, senderID, content)

	item, err := scanMessage(row)
	if err != nil {
		if isForeignKeyViolation(err) {
			return model.Message{}, ErrUnknownUser
		}
		return model.Message{}, fmt.Errorf("insert message: %w", err)
	}

	return item, nil
}

// Last returns nil when the conversation has no messages.
func (r *MessageRepo) Last(ctx context.Context, conversationID string) (*model.LastMessage, error) {
	if r.pool == nil {
		return nil, ErrPoolUnavailable
	}

	var item model.LastMessage
	err := r.pool.QueryRow(ctx, `
SELECT content, created_at
FROM messages
WHERE conversation_id = $1
ORDER BY created_at DESC, id DESC
LIMIT 1
`, conversationID).Scan(&item.Content, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last message: %w", err)
	}

	return &item, nil
}

func scanMessage(row pgx.Row) (model.Message, error) {
	var item model.Message
	if err := row.Scan(
		&item.ID,
		&item.ConversationID,
		&item.SenderID,
		&item.Content,
		&item.CreatedAt,
		&item.Sender.DisplayName,
		&item.Sender.PrimaryPhotoURL,
	); err != nil {
		return model.Message{}, fmt.Errorf("scan message: %w", err)
	}
	item.Sender.ID = item.SenderID
	return item, nil
}
