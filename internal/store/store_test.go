package store

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/quill/internal/style"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewWithDB(db), mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestGetOrCreateUser_EmailUpserts(t *testing.T) {
	s, mock := newMock(t)
	id := uuid.New()

	mock.ExpectQuery(q("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), "ada@example.com", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id.String()))

	got, err := s.GetOrCreateUser(context.Background(), "  Ada@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestGetOrCreateUser_UnknownUUID(t *testing.T) {
	s, mock := newMock(t)
	id := uuid.New()

	mock.ExpectQuery(q("SELECT id FROM users WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetOrCreateUser(context.Background(), id.String())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertEmailPairs_OneTransaction(t *testing.T) {
	s, mock := newMock(t)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO email_pairs")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO email_pairs")).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.InsertEmailPairs(context.Background(), userID, []style.EmailPair{
		{Question: "q1", Answer: "a1"},
		{Question: "q2", Answer: "a2"},
	})
	assert.Error(t, err)
}

func TestInsertSyntheticEmails_CommitsPerCategory(t *testing.T) {
	s, mock := newMock(t)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO synthetic_emails")).
		WithArgs(sqlmock.AnyArg(), userID, "Formal", "f1", "pending", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO synthetic_emails")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO synthetic_emails")).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	recs, err := s.InsertSyntheticEmails(context.Background(), userID, style.Corpus{
		{Category: "Formal", Emails: []string{"f1", "f2"}},
		{Category: "Casual", Emails: []string{"c1"}},
		{Category: "Never", Emails: []string{"n1"}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Casual"`)
	require.Len(t, recs, 2)
	assert.Equal(t, "Formal", recs[0].Category)
	assert.Equal(t, style.StatusPending, recs[1].Status)
	assert.Equal(t, 1, recs[1].Version)
}

func lockRows(owner uuid.UUID, category, status string, version int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"user_id", "category", "status", "version"}).
		AddRow(owner.String(), category, status, version)
}

func TestInsertSyntheticEmail_WithLineage(t *testing.T) {
	s, mock := newMock(t)
	userID, prev := uuid.New(), uuid.New()

	mock.ExpectExec(q("INSERT INTO synthetic_emails")).
		WithArgs(sqlmock.AnyArg(), userID, "Formal", "v2", "pending", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := s.InsertSyntheticEmail(context.Background(), userID, "Formal", "v2", &prev)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
}

func TestRecordCategoryReview_IncrementsInSQL(t *testing.T) {
	s, mock := newMock(t)
	userID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(q("category_scores.approvals + EXCLUDED.approvals")).
		WithArgs(userID, "Formal", 100.0, 50.0, -7.5, 0, 1, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"score", "approvals", "rejections", "updated_at"}).
			AddRow(42.5, 3, 1, now))

	rating := 40
	sc, err := s.RecordCategoryReview(context.Background(), ScoreReview{UserID: userID, Category: "Formal", Rating: &rating})
	require.NoError(t, err)
	assert.Equal(t, 42.5, sc.Score)
	assert.Equal(t, 3, sc.Approvals)
	assert.Equal(t, 1, sc.Rejections)
	assert.Equal(t, "Formal", sc.Category)
}

func TestUpdateSyntheticEmailFeedback_Approve(t *testing.T) {
	s, mock := newMock(t)
	id, userID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).WithArgs(id).WillReturnRows(lockRows(userID, "Formal", "pending", 1))
	mock.ExpectExec(q("UPDATE synthetic_emails")).
		WithArgs("approved", true, nil, nil, sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.UpdateSyntheticEmailFeedback(context.Background(), FeedbackUpdate{ID: id, UserID: userID, Version: 1, Approved: true})
	require.NoError(t, err)
}

func TestUpdateSyntheticEmailFeedback_StaleVersion(t *testing.T) {
	s, mock := newMock(t)
	id, userID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).WithArgs(id).WillReturnRows(lockRows(userID, "Formal", "pending", 2))
	mock.ExpectRollback()

	err := s.UpdateSyntheticEmailFeedback(context.Background(), FeedbackUpdate{ID: id, UserID: userID, Version: 1, Approved: true})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdateSyntheticEmailFeedback_OtherUser(t *testing.T) {
	s, mock := newMock(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).WithArgs(id).WillReturnRows(lockRows(uuid.New(), "Formal", "pending", 1))
	mock.ExpectRollback()

	err := s.UpdateSyntheticEmailFeedback(context.Background(), FeedbackUpdate{ID: id, UserID: uuid.New(), Version: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplaceSyntheticEmail(t *testing.T) {
	s, mock := newMock(t)
	id, userID := uuid.New(), uuid.New()
	rating, comments := 20, "too stiff"

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).WithArgs(id).WillReturnRows(lockRows(userID, "Formal", "pending", 1))
	mock.ExpectExec(q("INSERT INTO synthetic_emails")).
		WithArgs(sqlmock.AnyArg(), userID, "Formal", "better", "pending", id, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE synthetic_emails")).
		WithArgs("replaced", 20, "too stiff", sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	next, err := s.ReplaceSyntheticEmail(context.Background(), Replacement{
		OriginalID: id, UserID: userID, Version: 1, Rating: &rating, Comments: &comments, Content: "better",
	})
	require.NoError(t, err)
	assert.Equal(t, "Formal", next.Category)
	require.NotNil(t, next.Lineage)
	assert.Equal(t, id, *next.Lineage)
	assert.Equal(t, style.StatusPending, next.Status)
}

func TestReplaceSyntheticEmail_AlreadyReplaced(t *testing.T) {
	s, mock := newMock(t)
	id, userID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).WithArgs(id).WillReturnRows(lockRows(userID, "Formal", "replaced", 1))
	mock.ExpectRollback()

	_, err := s.ReplaceSyntheticEmail(context.Background(), Replacement{OriginalID: id, UserID: userID, Version: 1, Content: "x"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestGetSyntheticEmail_ScansNullables(t *testing.T) {
	s, mock := newMock(t)
	id, userID, prev := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(q("FROM synthetic_emails WHERE id = $1")).WithArgs(id).WillReturnRows(
		sqlmock.NewRows([]string{"id", "user_id", "category", "content", "status", "approved", "rating", "feedback", "lineage", "version", "created_at", "updated_at"}).
			AddRow(id.String(), userID.String(), "Formal", "body", "pending", false, int64(40), "warmer please", prev.String(), int64(3), now, now),
	)

	rec, err := s.GetSyntheticEmail(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec.Rating)
	assert.Equal(t, 40, *rec.Rating)
	assert.Equal(t, "warmer please", *rec.Feedback)
	assert.Equal(t, prev, *rec.Lineage)
	assert.Equal(t, 3, rec.Version)
}

func TestGetSyntheticEmail_NotFound(t *testing.T) {
	s, mock := newMock(t)
	id := uuid.New()

	mock.ExpectQuery(q("FROM synthetic_emails WHERE id = $1")).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetSyntheticEmail(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApprovedSyntheticEmails_GroupsInFirstSeenOrder(t *testing.T) {
	s, mock := newMock(t)
	userID := uuid.New()

	mock.ExpectQuery(q("status = 'approved'")).WithArgs(userID).WillReturnRows(
		sqlmock.NewRows([]string{"category", "content"}).
			AddRow("Casual", "c1").
			AddRow("Formal", "f1").
			AddRow("Casual", "c2"),
	)

	corpus, err := s.ApprovedSyntheticEmails(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, style.Corpus{
		{Category: "Casual", Emails: []string{"c1", "c2"}},
		{Category: "Formal", Emails: []string{"f1"}},
	}, corpus)
}

func TestSaveStyleSnapshot_NothingApproved(t *testing.T) {
	s, mock := newMock(t)
	userID := uuid.New()

	mock.ExpectQuery(q("status = 'approved'")).WillReturnRows(sqlmock.NewRows([]string{"category", "content"}))

	saved, err := s.SaveStyleSnapshot(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, saved)
}

func TestSaveAndGetStyleSnapshot(t *testing.T) {
	s, mock := newMock(t)
	userID := uuid.New()

	mock.ExpectQuery(q("status = 'approved'")).WillReturnRows(
		sqlmock.NewRows([]string{"category", "content"}).AddRow("Formal", "f1"),
	)
	mock.ExpectExec(q("INSERT INTO style_snapshots")).WillReturnResult(sqlmock.NewResult(0, 1))

	saved, err := s.SaveStyleSnapshot(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, saved)

	body, _ := json.Marshal(style.Corpus{{Category: "Formal", Emails: []string{"f1"}}})
	mock.ExpectQuery(q("FROM style_snapshots")).WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"corpus"}).AddRow(body))

	corpus, err := s.GetStyleSnapshot(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, []string{"f1"}, corpus.Texts())
}

func TestLatestStyleProfile(t *testing.T) {
	s, mock := newMock(t)
	userID, id := uuid.New(), uuid.New()
	cats, _ := json.Marshal([]style.Category{{Name: "Formal", KeyCharacteristics: []string{"polite"}}})

	mock.ExpectQuery(q("FROM style_profiles")).WithArgs(userID).WillReturnRows(
		sqlmock.NewRows([]string{"id", "overall_summary", "categories", "created_at"}).
			AddRow(id.String(), "Measured.", cats, time.Now()),
	)

	p, err := s.LatestStyleProfile(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "Measured.", p.OverallSummary)
	assert.Equal(t, "Formal", p.Categories[0].Name)

	mock.ExpectQuery(q("FROM style_profiles")).WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "overall_summary", "categories", "created_at"}))

	_, err = s.LatestStyleProfile(context.Background(), userID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListGeneratedEmails_DecodesKeyPoints(t *testing.T) {
	s, mock := newMock(t)
	userID := uuid.New()

	mock.ExpectQuery(q("FROM generated_emails")).WithArgs(userID).WillReturnRows(
		sqlmock.NewRows([]string{"id", "user_id", "recipient", "topic", "key_points", "content", "created_at"}).
			AddRow(uuid.NewString(), userID.String(), "Sam", "Launch", []byte(`["date","owner"]`), "Hi Sam", time.Now()),
	)

	out, err := s.ListGeneratedEmails(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"date", "owner"}, out[0].KeyPoints)
}

func TestEnsureSchema_RunsEachStatement(t *testing.T) {
	s, mock := newMock(t)

	n := 0
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stripComments(stmt)) == "" {
			continue
		}
		mock.ExpectExec(".+").WillReturnResult(sqlmock.NewResult(0, 0))
		n++
	}
	require.Greater(t, n, 5)
	require.NoError(t, s.EnsureSchema(context.Background()))
}
