package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ivankudzin/shipyard/internal/domain/model"
	pgrepo "github.com/ivankudzin/shipyard/internal/repo/postgres"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("profile not found")
)

type ProfileStore interface {
	Get(ctx context.Context, userID string) (model.Profile, error)
	Upsert(ctx context.Context, p model.Profile) (model.Profile, error)
	Search(ctx context.Context, filter pgrepo.SearchFilter) ([]model.Profile, error)
	ReplaceAnswers(ctx context.Context, userID string, answers map[string]string) error
	ListAnswers(ctx context.Context, userID string) ([]model.ProfileAnswer, error)
}

type Service struct {
	store ProfileStore
	now   func() time.Time
}

// Input is a partial profile. Nil fields keep their stored value.
type Input struct {
	DisplayName     *string
	LocationCity    *string
	LocationCountry *string
	Interests       *[]string
	PrimaryPhotoURL *string
	ExtraPhotoURLs  *[]string
	SummaryIntro    *[]string
	SummaryOutro    *string
}

type SearchQuery struct {
	Text    string
	Country string
	City    string
}

func NewService(store ProfileStore) *Service {
	return &Service{
		store: store,
		now:   time.Now,
	}
}

func (s *Service) Get(ctx context.Context, userID string) (model.Profile, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return model.Profile{}, ErrNotFound
	}
	if s.store == nil {
		return model.Profile{}, fmt.Errorf("profile store is nil")
	}

	p, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrProfileNotFound) {
			return model.Profile{}, ErrNotFound
		}
		return model.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Save creates or updates the caller's own profile and always stamps updated_at.
func (s *Service) Save(ctx context.Context, userID string, in Input) (model.Profile, error) {
	if s.store == nil {
		return model.Profile{}, fmt.Errorf("profile store is nil")
	}

	normalized, err := normalizeInput(in)
	if err != nil {
		return model.Profile{}, err
	}

	current, err := s.store.Get(ctx, userID)
	switch {
	case errors.Is(err, pgrepo.ErrProfileNotFound):
		current = model.Profile{ID: userID}
	case err != nil:
		return model.Profile{}, fmt.Errorf("load profile: %w", err)
	}

	merged := apply(current, normalized)
	merged.ID = userID
	merged.UpdatedAt = s.now().UTC()

	saved, err := s.store.Upsert(ctx, merged)
	if err != nil {
		return model.Profile{}, fmt.Errorf("save profile: %w", err)
	}
	return saved, nil
}

// SaveAnswers replaces the caller's questionnaire answers with answers.
func (s *Service) SaveAnswers(ctx context.Context, userID string, answers map[string]string) error {
	if answers == nil {
		return fmt.Errorf("answers object is required: %w", ErrValidation)
	}
	if s.store == nil {
		return fmt.Errorf("profile store is nil")
	}

	cleaned := make(map[string]string, len(answers))
	for key, text := range answers {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("empty question key: %w", ErrValidation)
		}
		cleaned[key] = strings.TrimSpace(text)
	}

	if err := s.store.ReplaceAnswers(ctx, userID, cleaned); err != nil {
		return fmt.Errorf("replace answers: %w", err)
	}
	return nil
}

func (s *Service) Answers(ctx context.Context, userID string) ([]model.ProfileAnswer, error) {
	if s.store == nil {
		return nil, fmt.Errorf("profile store is nil")
	}
	items, err := s.store.ListAnswers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return items, nil
}

// Search narrows by location in the database, then keeps profiles where any
// query token appears in the name, interests or summary intro. Matching is a
// case-insensitive substring test; there is no ranking.
func (s *Service) Search(ctx context.Context, q SearchQuery) ([]model.Profile, error) {
	if s.store == nil {
		return nil, fmt.Errorf("profile store is nil")
	}

	candidates, err := s.store.Search(ctx, pgrepo.SearchFilter{
		Country: strings.TrimSpace(q.Country),
		City:    strings.TrimSpace(q.City),
	})
	if err != nil {
		return nil, fmt.Errorf("search profiles: %w", err)
	}

	tokens := strings.Fields(strings.ToLower(q.Text))
	if len(tokens) == 0 {
		return candidates, nil
	}

	out := make([]model.Profile, 0, len(candidates))
	for _, p := range candidates {
		if matchesAny(p, tokens) {
			out = append(out, p)
		}
	}
	return out, nil
}

func matchesAny(p model.Profile, tokens []string) bool {
	fields := []string{
		strings.ToLower(p.DisplayName),
		strings.ToLower(strings.Join(p.Interests, " ")),
		strings.ToLower(strings.Join(p.SummaryIntro, " ")),
	}
	for _, token := range tokens {
		for _, field := range fields {
			if strings.Contains(field, token) {
				return true
			}
		}
	}
	return false
}

func apply(p model.Profile, in Input) model.Profile {
	if in.DisplayName != nil {
		p.DisplayName = *in.DisplayName
	}
	if in.LocationCity != nil {
		p.LocationCity = *in.LocationCity
	}
	if in.LocationCountry != nil {
		p.LocationCountry = *in.LocationCountry
	}
	if in.Interests != nil {
		p.Interests = *in.Interests
	}
	if in.PrimaryPhotoURL != nil {
		p.PrimaryPhotoURL = *in.PrimaryPhotoURL
	}
	if in.ExtraPhotoURLs != nil {
		p.ExtraPhotoURLs = *in.ExtraPhotoURLs
	}
	if in.SummaryIntro != nil {
		p.SummaryIntro = *in.SummaryIntro
	}
	if in.SummaryOutro != nil {
		p.SummaryOutro = *in.SummaryOutro
	}
	return p
}

func normalizeInput(in Input) (Input, error) {
	out := in
	out.DisplayName = trimmed(in.DisplayName)
	out.LocationCity = trimmed(in.LocationCity)
	out.LocationCountry = trimmed(in.LocationCountry)
	out.PrimaryPhotoURL = trimmed(in.PrimaryPhotoURL)
	out.SummaryOutro = trimmed(in.SummaryOutro)
	if in.Interests != nil {
		list, err := normalizeList("interests", *in.Interests)
		if err != nil {
			return Input{}, err
		}
		out.Interests = &list
	}
	if in.ExtraPhotoURLs != nil {
		list, err := normalizeList("extra_photo_urls", *in.ExtraPhotoURLs)
		if err != nil {
			return Input{}, err
		}
		out.ExtraPhotoURLs = &list
	}
	return out, nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

// normalizeList trims items. Blank items and case-insensitive duplicates are
// rejected rather than dropped.
func normalizeList(field string, values []string) ([]string, error) {
	result := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			return nil, fmt.Errorf("%s has a blank item: %w", field, ErrValidation)
		}
		key := strings.ToLower(value)
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("%s has duplicate %q: %w", field, value, ErrValidation)
		}
		seen[key] = struct{}{}
		result = append(result, value)
	}
	return result, nil
}
