package model

import "time"

type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	SenderID       string         `json:"sender_id"`
	Content        string         `json:"content"`
	CreatedAt      time.Time      `json:"created_at"`
	Sender         ProfileSummary `json:"sender"`
}
