package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/quill/internal/style"
)

// InsertStyleProfile appends a profile. Earlier profiles are kept as history.
// A zero CreatedAt is stamped with the current time.
func (s *Store) InsertStyleProfile(ctx context.Context, userID uuid.UUID, p style.StyleProfile) (uuid.UUID, error) {
	cats := p.Categories
	if cats == nil {
		cats = []style.Category{}
	}
	body, err := json.Marshal(cats)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode categories: %w", err)
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	id := uuid.New()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO style_profiles (id, user_id, overall_summary, categories, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		id, userID, p.OverallSummary, string(body), createdAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert style profile: %w", err)
	}
	return id, nil
}

// LatestStyleProfile returns the most recently created profile.
func (s *Store) LatestStyleProfile(ctx context.Context, userID uuid.UUID) (*style.StyleProfile, error) {
	var (
		p    style.StyleProfile
		cats []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, overall_summary, categories, created_at FROM style_profiles
		WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT 1`,
		userID,
	).Scan(&p.ID, &p.OverallSummary, &cats, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest style profile: %w", err)
	}
	if err := json.Unmarshal(cats, &p.Categories); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return &p, nil
}
