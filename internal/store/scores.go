package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/quill/internal/scoring"
)

// CategoryScore is the running review score of one style category.
type CategoryScore struct {
	UserID     uuid.UUID `json:"-"`
	Category   string    `json:"category"`
	Score      float64   `json:"score"`
	Approvals  int       `json:"approvals"`
	Rejections int       `json:"rejections"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// GetCategoryScore fetches the score for a user/category pair.
func (s *Store) GetCategoryScore(ctx context.Context, userID uuid.UUID, category string) (*CategoryScore, error) {
	sc := CategoryScore{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT category, score, approvals, rejections, updated_at
		FROM category_scores
		WHERE user_id = $1 AND category = $2`,
		userID, category,
	).Scan(&sc.Category, &sc.Score, &sc.Approvals, &sc.Rejections, &sc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category score: %w", err)
	}
	return &sc, nil
}

// ScoreReview is one review decision to fold into a category score.
type ScoreReview struct {
	UserID   uuid.UUID
	Category string
	Approved bool
	Rating   *int
}

// RecordCategoryReview applies a review to the category score in a single
// statement, so concurrent reviews of the same category all count. A
// category with no row starts from scoring.Initial.
func (s *Store) RecordCategoryReview(ctx context.Context, r ScoreReview) (*CategoryScore, error) {
	approvals, rejections := 0, 1
	if r.Approved {
		approvals, rejections = 1, 0
	}
	sc := CategoryScore{UserID: r.UserID, Category: r.Category}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO category_scores (user_id, category, score, approvals, rejections, updated_at)
		VALUES ($1, $2, LEAST($3::double precision, GREATEST(0, $4::double precision + $5::double precision)), $6, $7, $8)
		ON CONFLICT (user_id, category)
		DO UPDATE SET
			score = LEAST($3::double precision, GREATEST(0, category_scores.score + $5::double precision)),
			approvals = category_scores.approvals + EXCLUDED.approvals,
			rejections = category_scores.rejections + EXCLUDED.rejections,
			updated_at = EXCLUDED.updated_at
		RETURNING score, approvals, rejections, updated_at`,
		r.UserID, r.Category, scoring.Max, scoring.Initial, scoring.Delta(r.Approved, r.Rating),
		approvals, rejections, time.Now().UTC(),
	).Scan(&sc.Score, &sc.Approvals, &sc.Rejections, &sc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("record category review: %w", err)
	}
	return &sc, nil
}

func (s *Store) ListCategoryScores(ctx context.Context, userID uuid.UUID) ([]CategoryScore, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, score, approvals, rejections, updated_at
		FROM category_scores
		WHERE user_id = $1
		ORDER BY category`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list category scores: %w", err)
	}
	defer rows.Close()

	var out []CategoryScore
	for rows.Next() {
		sc := CategoryScore{UserID: userID}
		if err := rows.Scan(&sc.Category, &sc.Score, &sc.Approvals, &sc.Rejections, &sc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category score: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}
