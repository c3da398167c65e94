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

// SaveStyleSnapshot freezes the user's approved synthetic emails as their
// saved style corpus. It reports false when nothing is approved yet.
func (s *Store) SaveStyleSnapshot(ctx context.Context, userID uuid.UUID) (bool, error) {
	corpus, err := s.ApprovedSyntheticEmails(ctx, userID)
	if err != nil {
		return false, err
	}
	if corpus.Total() == 0 {
		return false, nil
	}

	body, err := json.Marshal(corpus)
	if err != nil {
		return false, fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO style_snapshots (id, user_id, corpus, created_at)
		VALUES ($1, $2, $3, $4)`,
		uuid.New(), userID, string(body), time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("insert style snapshot: %w", err)
	}
	return true, nil
}

// GetStyleSnapshot returns the most recent saved corpus.
func (s *Store) GetStyleSnapshot(ctx context.Context, userID uuid.UUID) (style.Corpus, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT corpus FROM style_snapshots
		WHERE user_id = $1
		ORDER BY seq DESC
		LIMIT 1`,
		userID,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get style snapshot: %w", err)
	}

	var corpus style.Corpus
	if err := json.Unmarshal(body, &corpus); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return corpus, nil
}
