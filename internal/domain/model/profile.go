package model

import "time"

type Profile struct {
	ID              string    `json:"id"`
	DisplayName     string    `json:"display_name"`
	LocationCity    string    `json:"location_city"`
	LocationCountry string    `json:"location_country"`
	Interests       []string  `json:"interests"`
	PrimaryPhotoURL string    `json:"primary_photo_url"`
	ExtraPhotoURLs  []string  `json:"extra_photo_urls"`
	SummaryIntro    []string  `json:"summary_intro"`
	SummaryOutro    string    `json:"summary_outro"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ProfileSummary is the public card shown next to conversations and messages.
type ProfileSummary struct {
	ID              string `json:"id"`
	DisplayName     string `json:"display_name"`
	PrimaryPhotoURL string `json:"primary_photo_url"`
}

type ProfileAnswer struct {
	QuestionKey string    `json:"question_key"`
	AnswerText  string    `json:"answer_text"`
	CreatedAt   time.Time `json:"created_at"`
}
