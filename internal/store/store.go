// Package store persists users, email pairs, style profiles, synthetic and
// generated emails in Postgres.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/MikeSquared-Agency/quill/internal/style"
)

var (
	// ErrNotFound is returned when a record does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a versioned write lost to a concurrent one.
	ErrConflict = errors.New("version conflict")
)

//go:embed schema.sql
var schema string

// Repository is the persistence surface the pipeline runs against.
type Repository interface {
	GetOrCreateUser(ctx context.Context, identifier string) (uuid.UUID, error)
	ResolveUser(ctx context.Context, identifier string) (uuid.UUID, error)

	InsertEmailPairs(ctx context.Context, userID uuid.UUID, pairs []style.EmailPair) (int, error)
	ListEmailPairs(ctx context.Context, userID uuid.UUID) ([]style.EmailPair, error)

	InsertStyleProfile(ctx context.Context, userID uuid.UUID, p style.StyleProfile) (uuid.UUID, error)
	LatestStyleProfile(ctx context.Context, userID uuid.UUID) (*style.StyleProfile, error)

	InsertSyntheticEmails(ctx context.Context, userID uuid.UUID, corpus style.Corpus) ([]style.SyntheticEmail, error)
	InsertSyntheticEmail(ctx context.Context, userID uuid.UUID, category, content string, lineage *uuid.UUID) (uuid.UUID, error)
	GetSyntheticEmail(ctx context.Context, id uuid.UUID) (*style.SyntheticEmail, error)
	UpdateSyntheticEmailFeedback(ctx context.Context, u FeedbackUpdate) error
	ReplaceSyntheticEmail(ctx context.Context, r Replacement) (*style.SyntheticEmail, error)
	ListSyntheticEmails(ctx context.Context, userID uuid.UUID, category string) ([]style.SyntheticEmail, error)
	ApprovedSyntheticEmails(ctx context.Context, userID uuid.UUID) (style.Corpus, error)

	InsertGeneratedEmail(ctx context.Context, userID uuid.UUID, e style.GeneratedEmail) (uuid.UUID, error)
	ListGeneratedEmails(ctx context.Context, userID uuid.UUID) ([]style.GeneratedEmail, error)

	SaveStyleSnapshot(ctx context.Context, userID uuid.UUID) (bool, error)
	GetStyleSnapshot(ctx context.Context, userID uuid.UUID) (style.Corpus, error)

	GetCategoryScore(ctx context.Context, userID uuid.UUID, category string) (*CategoryScore, error)
	RecordCategoryReview(ctx context.Context, r ScoreReview) (*CategoryScore, error)
	ListCategoryScores(ctx context.Context, userID uuid.UUID) ([]CategoryScore, error)
}

// FeedbackUpdate records a review decision on a pending synthetic email.
// Version must match the stored version.
type FeedbackUpdate struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Version  int
	Approved bool
	Rating   *int
	Comments *string
}

// Replacement supersedes a pending synthetic email with regenerated content.
type Replacement struct {
	OriginalID uuid.UUID
	UserID     uuid.UUID
	Version    int
	Rating     *int
	Comments   *string
	Content    string
}

type Store struct {
	pool *pgxpool.Pool
	db   *sql.DB
}

var _ Repository = (*Store)(nil)

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, db: stdlib.OpenDBFromPool(pool)}, nil
}

// NewWithDB wraps an existing handle. The caller owns its lifecycle.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() {
	if s.pool == nil {
		return
	}
	s.db.Close()
	s.pool.Close()
}

// EnsureSchema applies the embedded schema. Statements are idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stripComments(stmt)) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func stripComments(stmt string) string {
	var b strings.Builder
	for _, line := range strings.Split(stmt, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
