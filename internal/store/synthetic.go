package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/quill/internal/style"
)

const syntheticColumns = `id, user_id, category, content, status, approved, rating, feedback, lineage, version, created_at, updated_at`

// InsertSyntheticEmails writes the corpus one category per transaction, so a
// failing category never rolls back one already committed. It returns the
// records committed before any error.
func (s *Store) InsertSyntheticEmails(ctx context.Context, userID uuid.UUID, corpus style.Corpus) ([]style.SyntheticEmail, error) {
	var out []style.SyntheticEmail
	for _, ce := range corpus {
		recs, err := s.insertCategory(ctx, userID, ce)
		if err != nil {
			return out, fmt.Errorf("insert category %q: %w", ce.Category, err)
		}
		out = append(out, recs...)
	}
	return out, nil
}

func (s *Store) insertCategory(ctx context.Context, userID uuid.UUID, ce style.CategoryEmails) ([]style.SyntheticEmail, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	recs := make([]style.SyntheticEmail, 0, len(ce.Emails))
	for _, content := range ce.Emails {
		rec := newSynthetic(userID, ce.Category, content, nil, now)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO synthetic_emails (id, user_id, category, content, status, approved, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, false, 1, $6, $6)`,
			rec.ID, userID, rec.Category, rec.Content, string(rec.Status), now,
		)
		if err != nil {
			return nil, fmt.Errorf("insert synthetic email: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return recs, nil
}

// InsertSyntheticEmail writes one pending record, optionally chained to the
// record it replaces.
func (s *Store) InsertSyntheticEmail(ctx context.Context, userID uuid.UUID, category, content string, lineage *uuid.UUID) (uuid.UUID, error) {
	rec := newSynthetic(userID, category, content, lineage, time.Now().UTC())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO synthetic_emails (id, user_id, category, content, status, approved, lineage, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, false, $6, 1, $7, $7)`,
		rec.ID, userID, category, content, string(rec.Status), nullUUID(lineage), rec.CreatedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert synthetic email: %w", err)
	}
	return rec.ID, nil
}

func (s *Store) GetSyntheticEmail(ctx context.Context, id uuid.UUID) (*style.SyntheticEmail, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+syntheticColumns+` FROM synthetic_emails WHERE id = $1`, id)
	rec, err := scanSynthetic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get synthetic email: %w", err)
	}
	return rec, nil
}

// UpdateSyntheticEmailFeedback records a decision on a pending record. The
// stored version must equal u.Version and is bumped on success.
func (s *Store) UpdateSyntheticEmailFeedback(ctx context.Context, u FeedbackUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := lockPending(ctx, tx, u.ID, u.UserID, u.Version); err != nil {
		return err
	}

	status := style.StatusPending
	if u.Approved {
		status = style.StatusApproved
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE synthetic_emails
		SET status = $1, approved = $2, rating = $3, feedback = $4, version = version + 1, updated_at = $5
		WHERE id = $6`,
		string(status), u.Approved, u.Rating, u.Comments, time.Now().UTC(), u.ID,
	)
	if err != nil {
		return fmt.Errorf("update feedback: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ReplaceSyntheticEmail inserts the successor and marks the original replaced
// in one transaction. The successor inherits the original's user and category.
func (s *Store) ReplaceSyntheticEmail(ctx context.Context, r Replacement) (*style.SyntheticEmail, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	category, err := lockPending(ctx, tx, r.OriginalID, r.UserID, r.Version)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	origID := r.OriginalID
	next := newSynthetic(r.UserID, category, r.Content, &origID, now)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO synthetic_emails (id, user_id, category, content, status, approved, lineage, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, false, $6, 1, $7, $7)`,
		next.ID, r.UserID, category, r.Content, string(next.Status), origID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert successor: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE synthetic_emails
		SET status = $1, approved = false, rating = $2, feedback = $3, version = version + 1, updated_at = $4
		WHERE id = $5`,
		string(style.StatusReplaced), r.Rating, r.Comments, now, origID,
	)
	if err != nil {
		return nil, fmt.Errorf("mark replaced: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &next, nil
}

// ListSyntheticEmails returns every record for the user in creation order,
// replaced ones included. An empty category means all categories.
func (s *Store) ListSyntheticEmails(ctx context.Context, userID uuid.UUID, category string) ([]style.SyntheticEmail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+syntheticColumns+` FROM synthetic_emails
		WHERE user_id = $1 AND ($2 = '' OR category = $2)
		ORDER BY seq`,
		userID, category,
	)
	if err != nil {
		return nil, fmt.Errorf("list synthetic emails: %w", err)
	}
	defer rows.Close()

	var out []style.SyntheticEmail
	for rows.Next() {
		rec, err := scanSynthetic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan synthetic email: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ApprovedSyntheticEmails groups approved content by category in the order
// categories were first seen.
func (s *Store) ApprovedSyntheticEmails(ctx context.Context, userID uuid.UUID) (style.Corpus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, content FROM synthetic_emails
		WHERE user_id = $1 AND status = 'approved'
		ORDER BY seq`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("approved synthetic emails: %w", err)
	}
	defer rows.Close()

	var corpus style.Corpus
	index := map[string]int{}
	for rows.Next() {
		var category, content string
		if err := rows.Scan(&category, &content); err != nil {
			return nil, fmt.Errorf("scan approved email: %w", err)
		}
		corpus = appendToCorpus(corpus, index, category, content)
	}
	return corpus, rows.Err()
}

func appendToCorpus(corpus style.Corpus, index map[string]int, category, content string) style.Corpus {
	i, ok := index[category]
	if !ok {
		i = len(corpus)
		index[category] = i
		corpus = append(corpus, style.CategoryEmails{Category: category})
	}
	corpus[i].Emails = append(corpus[i].Emails, content)
	return corpus
}

// lockPending row-locks a record and checks ownership, status and version.
// It returns the record's category.
func lockPending(ctx context.Context, tx *sql.Tx, id, userID uuid.UUID, version int) (string, error) {
	var (
		owner    uuid.UUID
		category string
		status   string
		current  int
	)
	err := tx.QueryRowContext(ctx, `
		SELECT user_id, category, status, version FROM synthetic_emails
		WHERE id = $1
		FOR UPDATE`,
		id,
	).Scan(&owner, &category, &status, &current)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lock synthetic email: %w", err)
	}
	if owner != userID {
		return "", ErrNotFound
	}
	if current != version || style.Status(status) != style.StatusPending {
		return "", ErrConflict
	}
	return category, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSynthetic(row scanner) (*style.SyntheticEmail, error) {
	var (
		rec      style.SyntheticEmail
		status   string
		rating   sql.NullInt64
		feedback sql.NullString
		lineage  uuid.NullUUID
	)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Category, &rec.Content, &status, &rec.Approved,
		&rating, &feedback, &lineage, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Status = style.Status(status)
	if rating.Valid {
		v := int(rating.Int64)
		rec.Rating = &v
	}
	if feedback.Valid {
		rec.Feedback = &feedback.String
	}
	if lineage.Valid {
		rec.Lineage = &lineage.UUID
	}
	return &rec, nil
}

func newSynthetic(userID uuid.UUID, category, content string, lineage *uuid.UUID, now time.Time) style.SyntheticEmail {
	return style.SyntheticEmail{
		ID:        uuid.New(),
		UserID:    userID,
		Category:  category,
		Content:   content,
		Status:    style.StatusPending,
		Lineage:   lineage,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
