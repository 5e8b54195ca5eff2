package dto

import "time"

// SaveProfileRequest is a partial profile; absent fields keep their stored value.
// id and the timestamps are accepted for client convenience and ignored.
type SaveProfileRequest struct {
	ID              *string    `json:"id,omitempty"`
	DisplayName     *string    `json:"display_name,omitempty" validate:"omitempty,max=80"`
	LocationCity    *string    `json:"location_city,omitempty" validate:"omitempty,max=120"`
	LocationCountry *string    `json:"location_country,omitempty" validate:"omitempty,max=120"`
	Interests       *[]string  `json:"interests,omitempty" validate:"omitempty,max=20,dive,max=40"`
	PrimaryPhotoURL *string    `json:"primary_photo_url,omitempty" validate:"omitempty,url"`
	ExtraPhotoURLs  *[]string  `json:"extra_photo_urls,omitempty" validate:"omitempty,max=6,dive,url"`
	SummaryIntro    *[]string  `json:"summary_intro,omitempty" validate:"omitempty,max=3,dive,max=2000"`
	SummaryOutro    *string    `json:"summary_outro,omitempty" validate:"omitempty,max=500"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

type ProfileAnswersRequest struct {
	Answers map[string]string `json:"answers" validate:"required,max=50,dive,keys,max=64,endkeys,max=4000"`
}

type ProfileAnswersResponse struct {
	Answers map[string]string `json:"answers"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type SearchProfileResponse struct {
	ID              string   `json:"id"`
	DisplayName     string   `json:"display_name"`
	PrimaryPhotoURL string   `json:"primary_photo_url"`
	LocationCity    string   `json:"location_city"`
	LocationCountry string   `json:"location_country"`
	Interests       []string `json:"interests"`
}

type SearchResponse struct {
	Profiles []SearchProfileResponse `json:"profiles"`
}
