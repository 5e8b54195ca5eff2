package model

import "time"

type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type LastMessage struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationPreview is one row of a user's inbox.
type ConversationPreview struct {
	Conversation
	Participant *ProfileSummary
	LastMessage *LastMessage
}

// ActivityAt is the time the inbox is ordered by.
func (p ConversationPreview) ActivityAt() time.Time {
	if p.LastMessage != nil {
		return p.LastMessage.CreatedAt
	}
	return p.CreatedAt
}
