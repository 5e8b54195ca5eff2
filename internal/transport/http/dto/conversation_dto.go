package dto

import "time"

type CreateConversationRequest struct {
	OtherUserID string `json:"otherUserId" validate:"required"`
}

type CreateConversationResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type AddParticipantRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type ParticipantResponse struct {
	ID              string `json:"id"`
	DisplayName     string `json:"display_name"`
	PrimaryPhotoURL string `json:"primary_photo_url"`
}

type LastMessageResponse struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ConversationItemResponse struct {
	ID          string               `json:"id"`
	Participant *ParticipantResponse `json:"participant"`
	LastMessage *LastMessageResponse `json:"lastMessage"`
	UnreadCount int                  `json:"unreadCount"`
}

type ConversationResponse struct {
	ID           string                `json:"id"`
	Participants []ParticipantResponse `json:"participants"`
}
