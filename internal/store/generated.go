package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/quill/internal/style"
)

// InsertGeneratedEmail appends a draft to the user's log.
func (s *Store) InsertGeneratedEmail(ctx context.Context, userID uuid.UUID, e style.GeneratedEmail) (uuid.UUID, error) {
	points := e.KeyPoints
	if points == nil {
		points = []string{}
	}
	body, err := json.Marshal(points)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode key points: %w", err)
	}

	id := uuid.New()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO generated_emails (id, user_id, recipient, topic, key_points, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, userID, e.Recipient, e.Topic, string(body), e.Content, time.Now().UTC(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert generated email: %w", err)
	}
	return id, nil
}

func (s *Store) ListGeneratedEmails(ctx context.Context, userID uuid.UUID) ([]style.GeneratedEmail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, recipient, topic, key_points, content, created_at FROM generated_emails
		WHERE user_id = $1
		ORDER BY seq`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list generated emails: %w", err)
	}
	defer rows.Close()

	var out []style.GeneratedEmail
	for rows.Next() {
		var (
			e      style.GeneratedEmail
			points []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Recipient, &e.Topic, &points, &e.Content, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan generated email: %w", err)
		}
		if err := json.Unmarshal(points, &e.KeyPoints); err != nil {
			return nil, fmt.Errorf("decode key points: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
