package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GetOrCreateUser resolves identifier to a user id. A UUID must name an
// existing user; any other identifier (an email address) is created on
// first reference.
func (s *Store) GetOrCreateUser(ctx context.Context, identifier string) (uuid.UUID, error) {
	if id, err := uuid.Parse(strings.TrimSpace(identifier)); err == nil {
		return s.userByID(ctx, id)
	}
	key := NormalizeIdentifier(identifier)
	if key == "" {
		return uuid.Nil, ErrNotFound
	}

	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, identifier, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (identifier) DO UPDATE SET identifier = EXCLUDED.identifier
		RETURNING id`,
		uuid.New(), key, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert user: %w", err)
	}
	return id, nil
}

// ResolveUser looks identifier up without creating it.
func (s *Store) ResolveUser(ctx context.Context, identifier string) (uuid.UUID, error) {
	if id, err := uuid.Parse(strings.TrimSpace(identifier)); err == nil {
		return s.userByID(ctx, id)
	}
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE identifier = $1`, NormalizeIdentifier(identifier)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve user: %w", err)
	}
	return id, nil
}

func (s *Store) userByID(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var found uuid.UUID
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1`, id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("get user: %w", err)
	}
	return found, nil
}

// NormalizeIdentifier is the canonical form external identifiers are keyed by.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
