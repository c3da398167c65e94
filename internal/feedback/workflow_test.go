package feedback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/quill/internal/guard"
	"github.com/MikeSquared-Agency/quill/internal/llm"
	"github.com/MikeSquared-Agency/quill/internal/store"
	"github.com/MikeSquared-Agency/quill/internal/store/memory"
	"github.com/MikeSquared-Agency/quill/internal/style"
)

type fixture struct {
	store  *memory.Store
	userID uuid.UUID
	recs   []style.SyntheticEmail
	calls  *int32
	prompt *string
}

func setup(t *testing.T, reply string, replyErr error) (*Workflow, fixture) {
	t.Helper()
	s := memory.New()
	userID := uuid.New()
	recs, err := s.InsertSyntheticEmails(context.Background(), userID, style.Corpus{
		{Category: "Formal", Emails: []string{"Subject: A\n\nDear Sir", "Subject: B\n\nDear Madam"}},
		{Category: "Casual", Emails: []string{"Subject: C\n\nhey"}},
	})
	require.NoError(t, err)

	var calls int32
	var prompt string
	p := llm.ProviderFunc(func(ctx context.Context, system, user string) (string, error) {
		atomic.AddInt32(&calls, 1)
		prompt = user
		return reply, replyErr
	})
	w := New(s, p, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return w, fixture{store: s, userID: userID, recs: recs, calls: &calls, prompt: &prompt}
}

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

func TestSubmit_Approve(t *testing.T) {
	w, f := setup(t, "unused", nil)
	ctx := context.Background()

	out, err := w.Submit(ctx, Request{EmailID: f.recs[0].ID, UserID: f.userID, Approved: true, Rating: intp(90)})
	require.NoError(t, err)
	assert.Equal(t, ActionApproved, out.Action)
	assert.Nil(t, out.Replacement)
	assert.Equal(t, "Formal", out.Original.Category)
	assert.Zero(t, atomic.LoadInt32(f.calls))

	rec, _ := f.store.GetSyntheticEmail(ctx, f.recs[0].ID)
	assert.Equal(t, style.StatusApproved, rec.Status)
	assert.True(t, rec.Approved)
	assert.Equal(t, 90, *rec.Rating)
}

func TestSubmit_RejectWithoutFeedbackIsRecorded(t *testing.T) {
	w, f := setup(t, "unused", nil)
	ctx := context.Background()

	cases := []Request{
		{EmailID: f.recs[0].ID, UserID: f.userID},
		{EmailID: f.recs[0].ID, UserID: f.userID, Rating: intp(30)},
		{EmailID: f.recs[0].ID, UserID: f.userID, Comments: strp("meh")},
		{EmailID: f.recs[0].ID, UserID: f.userID, Rating: intp(30), Comments: strp("   ")},
	}
	for _, req := range cases {
		out, err := w.Submit(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, ActionRecorded, out.Action)
	}

	assert.Zero(t, atomic.LoadInt32(f.calls))
	rec, _ := f.store.GetSyntheticEmail(ctx, f.recs[0].ID)
	assert.Equal(t, style.StatusPending, rec.Status)
	assert.False(t, rec.Approved)
	assert.Equal(t, 5, rec.Version)
}

func TestSubmit_RejectWithFeedbackRegenerates(t *testing.T) {
	w, f := setup(t, "```\nSubject: B\n\nHi there,\n\nWarmer now.\n```", nil)
	ctx := context.Background()
	orig := f.recs[1]

	out, err := w.Submit(ctx, Request{EmailID: orig.ID, UserID: f.userID, Rating: intp(20), Comments: strp("too stiff")})
	require.NoError(t, err)
	require.Equal(t, ActionRegenerated, out.Action)
	require.NotNil(t, out.Replacement)

	assert.Contains(t, *f.prompt, "too stiff")
	assert.Contains(t, *f.prompt, "Dear Madam")
	assert.Contains(t, *f.prompt, "Category: Formal")

	next := out.Replacement
	assert.Equal(t, "Subject: B\n\nHi there,\n\nWarmer now.", next.Content)
	assert.Equal(t, "Formal", next.Category)
	assert.Equal(t, f.userID, next.UserID)
	assert.Equal(t, style.StatusPending, next.Status)
	require.NotNil(t, next.Lineage)
	assert.Equal(t, orig.ID, *next.Lineage)

	old, _ := f.store.GetSyntheticEmail(ctx, orig.ID)
	assert.Equal(t, style.StatusReplaced, old.Status)
	assert.Equal(t, "too stiff", *old.Feedback)

	all, _ := f.store.ListSyntheticEmails(ctx, f.userID, "Formal")
	var successors int
	for _, r := range all {
		if r.Lineage != nil && *r.Lineage == orig.ID {
			successors++
		}
	}
	assert.Equal(t, 1, successors)

	current := Current(all, "Formal")
	require.Len(t, current, 2)
	assert.Equal(t, f.recs[0].ID, current[0].ID)
	assert.Equal(t, next.ID, current[1].ID)
}

func TestSubmit_ProviderFailureChangesNothing(t *testing.T) {
	cases := map[string]struct {
		reply string
		err   error
	}{
		"call fails":       {"", errors.New("upstream 529")},
		"empty completion": {"  ```\n\n```  ", nil},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w, f := setup(t, tc.reply, tc.err)
			ctx := context.Background()

			_, err := w.Submit(ctx, Request{EmailID: f.recs[0].ID, UserID: f.userID, Rating: intp(10), Comments: strp("no")})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrRegenerate)

			rec, _ := f.store.GetSyntheticEmail(ctx, f.recs[0].ID)
			assert.Equal(t, style.StatusPending, rec.Status)
			assert.Equal(t, 1, rec.Version)
			all, _ := f.store.ListSyntheticEmails(ctx, f.userID, "")
			assert.Len(t, all, 3)
		})
	}
}

func TestSubmit_OnlyPendingAcceptsFeedback(t *testing.T) {
	w, f := setup(t, "Subject: new", nil)
	ctx := context.Background()

	_, err := w.Submit(ctx, Request{EmailID: f.recs[0].ID, UserID: f.userID, Approved: true})
	require.NoError(t, err)
	_, err = w.Submit(ctx, Request{EmailID: f.recs[0].ID, UserID: f.userID, Approved: true})
	assert.ErrorIs(t, err, ErrNotPending)

	_, err = w.Submit(ctx, Request{EmailID: f.recs[1].ID, UserID: f.userID, Rating: intp(1), Comments: strp("x")})
	require.NoError(t, err)
	_, err = w.Submit(ctx, Request{EmailID: f.recs[1].ID, UserID: f.userID, Approved: true})
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestSubmit_OwnershipAndMissing(t *testing.T) {
	w, f := setup(t, "unused", nil)
	ctx := context.Background()

	_, err := w.Submit(ctx, Request{EmailID: f.recs[0].ID, UserID: uuid.New(), Approved: true})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = w.Submit(ctx, Request{EmailID: uuid.New(), UserID: f.userID, Approved: true})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubmit_BusyWhileLocked(t *testing.T) {
	_, f := setup(t, "unused", nil)
	locker := guard.NewLocal()
	w := New(f.store, llm.ProviderFunc(func(ctx context.Context, s, u string) (string, error) { return "x", nil }), locker, slog.New(slog.NewTextHandler(io.Discard, nil)))

	unlock, err := locker.TryLock(context.Background(), "feedback:"+f.recs[0].ID.String())
	require.NoError(t, err)

	_, err = w.Submit(context.Background(), Request{EmailID: f.recs[0].ID, UserID: f.userID, Approved: true})
	assert.ErrorIs(t, err, ErrBusy)

	unlock()
	_, err = w.Submit(context.Background(), Request{EmailID: f.recs[0].ID, UserID: f.userID, Approved: true})
	assert.NoError(t, err)
}

func TestCurrent_FollowsLineageChain(t *testing.T) {
	a := style.SyntheticEmail{ID: uuid.New(), Category: "Formal", Status: style.StatusReplaced}
	b := style.SyntheticEmail{ID: uuid.New(), Category: "Formal", Status: style.StatusPending}
	c := style.SyntheticEmail{ID: uuid.New(), Category: "Formal", Status: style.StatusReplaced, Lineage: &a.ID}
	d := style.SyntheticEmail{ID: uuid.New(), Category: "Casual", Status: style.StatusApproved}
	e := style.SyntheticEmail{ID: uuid.New(), Category: "Formal", Status: style.StatusPending, Lineage: &c.ID}

	records := []style.SyntheticEmail{a, b, c, d, e}

	got := Current(records, "Formal")
	ids := make([]uuid.UUID, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	assert.Equal(t, []uuid.UUID{e.ID, b.ID}, ids)

	all := Current(records, "")
	assert.Len(t, all, 3)

	grouped := GroupCurrent(records)
	assert.Len(t, grouped["Formal"], 2)
	assert.Len(t, grouped["Casual"], 1)
}

func TestCurrent_DropsReplacedWithoutSuccessor(t *testing.T) {
	orphan := style.SyntheticEmail{ID: uuid.New(), Category: "Formal", Status: style.StatusReplaced}
	assert.Empty(t, Current([]style.SyntheticEmail{orphan}, ""))
}

func TestRequest_Actionable(t *testing.T) {
	assert.True(t, Request{Rating: intp(0), Comments: strp("x")}.Actionable())
	assert.False(t, Request{Approved: true, Rating: intp(0), Comments: strp("x")}.Actionable())
	assert.False(t, Request{Comments: strp("x")}.Actionable())
	assert.False(t, Request{Rating: intp(5), Comments: strp(strings.Repeat(" ", 3))}.Actionable())
}
