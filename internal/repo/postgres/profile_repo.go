package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/shipyard/internal/domain/model"
)

var ErrProfileNotFound = errors.New("profile not found")

type ProfileRepo struct {
	pool *pgxpool.Pool
}

// SearchFilter holds the equality filters evaluated by the database.
type SearchFilter struct {
	Country string
	City    string
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

const selectProfiles = `
SELECT
	id::text,
	COALESCE(display_name, ''),
	COALESCE(location_city, ''),
	COALESCE(location_country, ''),
	interests,
	COALESCE(primary_photo_url, ''),
	extra_photo_urls,
	summary_intro,
	COALESCE(summary_outro, ''),
	created_at,
	updated_at
FROM profiles
`

func (r *ProfileRepo) Get(ctx context.Context, userID string) (model.Profile, error) {
	if r.pool == nil {
		return model.Profile{}, ErrPoolUnavailable
	}

	item, err := scanProfile(r.pool.QueryRow(ctx, selectProfiles+`WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Profile{}, ErrProfileNotFound
		}
		return model.Profile{}, fmt.Errorf("get profile: %w", err)
	}

	return item, nil
}

// Upsert writes every column of p. updated_at is set by the caller.
func (r *ProfileRepo) Upsert(ctx context.Context, p model.Profile) (model.Profile, error) {
	if r.pool == nil {
		return model.Profile{}, ErrPoolUnavailable
	}

	const query = `
INSERT INTO profiles (
	id,
	display_name,
	location_city,
	location_country,
	interests,
	primary_photo_url,
	extra_photo_urls,
	summary_intro,
	summary_outro,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
	display_name = EXCLUDED.display_name,
	location_city = EXCLUDED.location_city,
	location_country = EXCLUDED.location_country,
	interests = EXCLUDED.interests,
	primary_photo_url = EXCLUDED.primary_photo_url,
	extra_photo_urls = EXCLUDED.extra_photo_urls,
	summary_intro = EXCLUDED.summary_intro,
	summary_outro = EXCLUDED.summary_outro,
	updated_at = EXCLUDED.updated_at
RETURNING
	id::text,
	COALESCE(display_name, ''),
	COALESCE(location_city, ''),
	COALESCE(location_country, ''),
	interests,
	COALESCE(primary_photo_url, ''),
	extra_photo_urls,
	summary_intro,
	COALESCE(summary_outro, ''),
	created_at,
	updated_at
`

	item, err := scanProfile(r.pool.QueryRow(ctx, query,
		p.ID,
		p.DisplayName,
		p.LocationCity,
		p.LocationCountry,
		nonNil(p.Interests),
		p.PrimaryPhotoURL,
		nonNil(p.ExtraPhotoURLs),
		nonNil(p.SummaryIntro),
		p.SummaryOutro,
		p.UpdatedAt.UTC(),
	))
	if err != nil {
		return model.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}

	return item, nil
}

// Search applies the location filters; keyword matching happens in the caller.
func (r *ProfileRepo) Search(ctx context.Context, filter SearchFilter) ([]model.Profile, error) {
	if r.pool == nil {
		return nil, ErrPoolUnavailable
	}

	rows, err := r.pool.Query(ctx, selectProfiles+`
WHERE ($1 = '' OR location_country = $1)
  AND ($2 = '' OR location_city = $2)
ORDER BY updated_at DESC, id ASC
`, filter.Country, filter.City)
	if err != nil {
		return nil, fmt.Errorf("search profiles: %w", err)
	}
	defer rows.Close()

	items := make([]model.Profile, 0)
	for rows.Next() {
		item, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}

	return items, nil
}

// ReplaceAnswers makes sure the profile row exists and swaps the whole answer
// set in one transaction.
func (r *ProfileRepo) ReplaceAnswers(ctx context.Context, userID string, answers map[string]string) error {
	if r.pool == nil {
		return ErrPoolUnavailable
	}

	keys := make([]string, 0, len(answers))
	for key := range answers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(txCtx, `
INSERT INTO profiles (id, updated_at)
VALUES ($1, NOW())
ON CONFLICT (id) DO NOTHING
`, userID); err != nil {
			return fmt.Errorf("ensure profile row: %w", err)
		}

		if _, err := tx.Exec(txCtx, `DELETE FROM profile_answers WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("delete profile answers: %w", err)
		}

		if len(keys) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, key := range keys {
			batch.Queue(`
INSERT INTO profile_answers (user_id, question_key, answer_text)
VALUES ($1, $2, $3)
`, userID, key, answers[key])
		}
		if err := tx.SendBatch(txCtx, batch).Close(); err != nil {
			return fmt.Errorf("insert profile answers: %w", err)
		}

		return nil
	})
}

func (r *ProfileRepo) ListAnswers(ctx context.Context, userID string) ([]model.ProfileAnswer, error) {
	if r.pool == nil {
		return nil, ErrPoolUnavailable
	}

	rows, err := r.pool.Query(ctx, `
SELECT question_key, answer_text, created_at
FROM profile_answers
WHERE user_id = $1
ORDER BY question_key ASC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list profile answers: %w", err)
	}
	defer rows.Close()

	items := make([]model.ProfileAnswer, 0)
	for rows.Next() {
		var item model.ProfileAnswer
		if err := rows.Scan(&item.QuestionKey, &item.AnswerText, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile answer: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile answers: %w", err)
	}

	return items, nil
}

func scanProfile(row pgx.Row) (model.Profile, error) {
	var item model.Profile
	err := row.Scan(
		&item.ID,
		&item.DisplayName,
		&item.LocationCity,
		&item.LocationCountry,
		&item.Interests,
		&item.PrimaryPhotoURL,
		&item.ExtraPhotoURLs,
		&item.SummaryIntro,
		&item.SummaryOutro,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
