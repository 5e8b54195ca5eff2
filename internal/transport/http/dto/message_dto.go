package dto

import "time"

type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type MessageSenderResponse struct {
	DisplayName     string `json:"display_name"`
	PrimaryPhotoURL string `json:"primary_photo_url"`
}

type MessageResponse struct {
	ID        string                `json:"id"`
	Content   string                `json:"content"`
	SenderID  string                `json:"sender_id"`
	CreatedAt time.Time             `json:"created_at"`
	Sender    MessageSenderResponse `json:"sender"`
}

// StreamFrame is one server-to-client WebSocket frame.
type StreamFrame struct {
	Type    string           `json:"type"`
	Message *MessageResponse `json:"message,omitempty"`
}
