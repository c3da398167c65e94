//go:build integration

package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/quill/internal/style"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func testUser(t *testing.T, s *Store) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	email := "integration-" + uuid.New().String()[:8] + "@example.com"
	id, err := s.GetOrCreateUser(ctx, email)
	if err != nil {
		t.Fatalf("GetOrCreateUser failed: %v", err)
	}

	again, err := s.GetOrCreateUser(ctx, email)
	if err != nil {
		t.Fatalf("GetOrCreateUser (repeat) failed: %v", err)
	}
	if again != id {
		t.Fatalf("expected the same user on repeat, got %s and %s", id, again)
	}

	t.Cleanup(func() {
		for _, table := range []string{"category_scores", "style_snapshots", "generated_emails", "style_profiles", "email_pairs"} {
			s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE user_id = $1", id)
		}
		s.db.ExecContext(ctx, "UPDATE synthetic_emails SET lineage = NULL WHERE user_id = $1", id)
		s.db.ExecContext(ctx, "DELETE FROM synthetic_emails WHERE user_id = $1", id)
		s.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	})
	return id
}

func TestIntegration_ProfileHistory(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	userID := testUser(t, s)

	if _, err := s.LatestStyleProfile(ctx, userID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before any profile, got %v", err)
	}

	for _, summary := range []string{"first", "second"} {
		_, err := s.InsertStyleProfile(ctx, userID, style.StyleProfile{
			OverallSummary: summary,
			Categories:     []style.Category{{Name: "Formal", KeyCharacteristics: []string{"polite"}}},
		})
		if err != nil {
			t.Fatalf("InsertStyleProfile failed: %v", err)
		}
	}

	p, err := s.LatestStyleProfile(ctx, userID)
	if err != nil {
		t.Fatalf("LatestStyleProfile failed: %v", err)
	}
	if p.OverallSummary != "second" {
		t.Errorf("expected latest profile, got %q", p.OverallSummary)
	}
}

func TestIntegration_FeedbackLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	userID := testUser(t, s)

	recs, err := s.InsertSyntheticEmails(ctx, userID, style.Corpus{
		{Category: "Formal", Emails: []string{"f1", "f2"}},
		{Category: "Casual", Emails: []string{"c1"}},
	})
	if err != nil {
		t.Fatalf("InsertSyntheticEmails failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}

	// Approve the first
	err = s.UpdateSyntheticEmailFeedback(ctx, FeedbackUpdate{ID: recs[0].ID, UserID: userID, Version: 1, Approved: true})
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	// A second write against the old version loses
	err = s.UpdateSyntheticEmailFeedback(ctx, FeedbackUpdate{ID: recs[0].ID, UserID: userID, Version: 1, Approved: true})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// Replace the second
	rating, comments := 20, "too stiff"
	next, err := s.ReplaceSyntheticEmail(ctx, Replacement{
		OriginalID: recs[1].ID, UserID: userID, Version: 1, Rating: &rating, Comments: &comments, Content: "f2 improved",
	})
	if err != nil {
		t.Fatalf("ReplaceSyntheticEmail failed: %v", err)
	}

	orig, err := s.GetSyntheticEmail(ctx, recs[1].ID)
	if err != nil {
		t.Fatalf("GetSyntheticEmail failed: %v", err)
	}
	if orig.Status != style.StatusReplaced {
		t.Errorf("expected original replaced, got %q", orig.Status)
	}
	if orig.Rating == nil || *orig.Rating != 20 {
		t.Errorf("expected rating recorded on original, got %v", orig.Rating)
	}
	if next.Lineage == nil || *next.Lineage != recs[1].ID {
		t.Errorf("expected lineage to original, got %v", next.Lineage)
	}

	all, err := s.ListSyntheticEmails(ctx, userID, "Formal")
	if err != nil {
		t.Fatalf("ListSyntheticEmails failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 Formal records, got %d", len(all))
	}

	saved, err := s.SaveStyleSnapshot(ctx, userID)
	if err != nil || !saved {
		t.Fatalf("SaveStyleSnapshot failed: saved=%v err=%v", saved, err)
	}
	snap, err := s.GetStyleSnapshot(ctx, userID)
	if err != nil {
		t.Fatalf("GetStyleSnapshot failed: %v", err)
	}
	if got := snap.Texts(); len(got) != 1 || got[0] != "f1" {
		t.Errorf("expected snapshot [f1], got %v", got)
	}
}

func TestIntegration_RecordCategoryReview(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	userID := testUser(t, s)

	if _, err := s.RecordCategoryReview(ctx, ScoreReview{UserID: userID, Category: "Formal", Approved: true}); err != nil {
		t.Fatalf("RecordCategoryReview (create) failed: %v", err)
	}
	sc, err := s.RecordCategoryReview(ctx, ScoreReview{UserID: userID, Category: "Formal"})
	if err != nil {
		t.Fatalf("RecordCategoryReview (update) failed: %v", err)
	}
	if sc.Score != 45 || sc.Approvals != 1 || sc.Rejections != 1 {
		t.Errorf("unexpected score record %+v", sc)
	}

	got, err := s.GetCategoryScore(ctx, userID, "Formal")
	if err != nil {
		t.Fatalf("GetCategoryScore failed: %v", err)
	}
	if got.Score != sc.Score {
		t.Errorf("stored score %f, returned %f", got.Score, sc.Score)
	}
}
