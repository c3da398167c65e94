package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/quill/internal/style"
)

// InsertEmailPairs writes all pairs in one transaction.
func (s *Store) InsertEmailPairs(ctx context.Context, userID uuid.UUID, pairs []style.EmailPair) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, p := range pairs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO email_pairs (id, user_id, question, answer, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), userID, p.Question, p.Answer, now,
		)
		if err != nil {
			return 0, fmt.Errorf("insert email pair: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(pairs), nil
}

func (s *Store) ListEmailPairs(ctx context.Context, userID uuid.UUID) ([]style.EmailPair, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question, answer FROM email_pairs
		WHERE user_id = $1
		ORDER BY seq`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list email pairs: %w", err)
	}
	defer rows.Close()

	var out []style.EmailPair
	for rows.Next() {
		var p style.EmailPair
		if err := rows.Scan(&p.ID, &p.Question, &p.Answer); err != nil {
			return nil, fmt.Errorf("scan email pair: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
