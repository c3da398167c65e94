// Package feedback applies review decisions to synthetic emails.
//
// A pending email is either approved, which is terminal, or rejected. A
// rejection that carries both a rating and a comment is regenerated: the
// model rewrites the email, the rewrite is stored as a new pending record
// whose lineage points at the original, and the original becomes replaced.
// A rejection without actionable feedback is recorded and the email stays
// pending.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/quill/internal/guard"
	"github.com/MikeSquared-Agency/quill/internal/llm"
	"github.com/MikeSquared-Agency/quill/internal/normalize"
	"github.com/MikeSquared-Agency/quill/internal/store"
	"github.com/MikeSquared-Agency/quill/internal/style"
)

var (
	ErrNotPending = errors.New("synthetic email is not pending")
	ErrBusy       = errors.New("feedback already in progress for this email")
	// ErrRegenerate marks a failed rewrite. Nothing is changed when it occurs.
	ErrRegenerate = errors.New("regeneration failed")
)

// Records is the slice of the store the workflow needs.
type Records interface {
	GetSyntheticEmail(ctx context.Context, id uuid.UUID) (*style.SyntheticEmail, error)
	UpdateSyntheticEmailFeedback(ctx context.Context, u store.FeedbackUpdate) error
	ReplaceSyntheticEmail(ctx context.Context, r store.Replacement) (*style.SyntheticEmail, error)
}

type Request struct {
	EmailID  uuid.UUID
	UserID   uuid.UUID
	Approved bool
	Rating   *int
	Comments *string
}

// Actionable reports whether a rejection carries enough to regenerate from.
func (r Request) Actionable() bool {
	return !r.Approved && r.Rating != nil && r.Comments != nil && strings.TrimSpace(*r.Comments) != ""
}

type Action string

const (
	ActionApproved    Action = "approved"
	ActionRecorded    Action = "recorded"
	ActionRegenerated Action = "regenerated"
)

// Outcome describes what Submit did. Original is the record as it was before
// the decision; Replacement is set only for ActionRegenerated. Repeat marks a
// rejection recorded on an email that had already been rejected.
type Outcome struct {
	Action      Action
	Original    style.SyntheticEmail
	Replacement *style.SyntheticEmail
	Repeat      bool
}

type Workflow struct {
	records Records
	llm     llm.Provider
	locker  guard.Locker
	logger  *slog.Logger
}

// New builds a workflow. A nil locker uses an in-process one.
func New(records Records, p llm.Provider, locker guard.Locker, logger *slog.Logger) *Workflow {
	if locker == nil {
		locker = guard.NewLocal()
	}
	return &Workflow{records: records, llm: p, locker: locker, logger: logger}
}

// Submit applies one review decision. Only pending records owned by the
// requesting user accept feedback.
func (w *Workflow) Submit(ctx context.Context, req Request) (*Outcome, error) {
	unlock, err := w.locker.TryLock(ctx, "feedback:"+req.EmailID.String())
	if errors.Is(err, guard.ErrHeld) {
		return nil, ErrBusy
	}
	if err != nil {
		return nil, fmt.Errorf("lock email: %w", err)
	}
	defer unlock()

	rec, err := w.records.GetSyntheticEmail(ctx, req.EmailID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != req.UserID {
		return nil, store.ErrNotFound
	}
	if rec.Status != style.StatusPending {
		return nil, ErrNotPending
	}

	if !req.Actionable() {
		err := w.records.UpdateSyntheticEmailFeedback(ctx, store.FeedbackUpdate{
			ID:       rec.ID,
			UserID:   rec.UserID,
			Version:  rec.Version,
			Approved: req.Approved,
			Rating:   req.Rating,
			Comments: req.Comments,
		})
		if err != nil {
			return nil, fmt.Errorf("record feedback: %w", err)
		}
		action := ActionRecorded
		if req.Approved {
			action = ActionApproved
		}
		// A pending record only moves past version 1 through a recorded
		// rejection.
		repeat := !req.Approved && rec.Version > 1
		w.logger.Info("feedback recorded", "email_id", rec.ID, "category", rec.Category, "action", action, "repeat", repeat)
		return &Outcome{Action: action, Original: *rec, Repeat: repeat}, nil
	}

	content, err := w.regenerate(ctx, rec, *req.Rating, *req.Comments)
	if err != nil {
		return nil, err
	}

	next, err := w.records.ReplaceSyntheticEmail(ctx, store.Replacement{
		OriginalID: rec.ID,
		UserID:     rec.UserID,
		Version:    rec.Version,
		Rating:     req.Rating,
		Comments:   req.Comments,
		Content:    content,
	})
	if err != nil {
		return nil, fmt.Errorf("replace synthetic email: %w", err)
	}

	w.logger.Info("synthetic email regenerated",
		"email_id", rec.ID,
		"new_email_id", next.ID,
		"category", rec.Category,
		"rating", *req.Rating,
	)
	return &Outcome{Action: ActionRegenerated, Original: *rec, Replacement: next}, nil
}

func (w *Workflow) regenerate(ctx context.Context, rec *style.SyntheticEmail, rating int, comments string) (string, error) {
	prompt := fmt.Sprintf(regenerateUserPrompt, rec.Category, rating, comments, rec.Content)

	raw, err := w.llm.Complete(ctx, regenerateSystemPrompt, prompt)
	if err != nil {
		w.logger.Error("regeneration call failed", "email_id", rec.ID, "error", err)
		return "", fmt.Errorf("%w: %w", ErrRegenerate, err)
	}
	content := normalize.Text(raw)
	if content == "" {
		return "", fmt.Errorf("%w: empty completion", ErrRegenerate)
	}
	return content, nil
}

// Current returns the live records, optionally for one category. A replaced
// record is substituted in place by the live end of its lineage chain; each
// record appears once.
func Current(records []style.SyntheticEmail, category string) []style.SyntheticEmail {
	successor := make(map[uuid.UUID]int, len(records))
	for i, r := range records {
		if r.Lineage != nil {
			successor[*r.Lineage] = i
		}
	}

	emitted := make(map[uuid.UUID]bool, len(records))
	var out []style.SyntheticEmail
	for _, r := range records {
		if category != "" && r.Category != category {
			continue
		}
		cur, ok := r, true
		for steps := 0; cur.Status == style.StatusReplaced; steps++ {
			j, found := successor[cur.ID]
			if !found || steps > len(records) {
				ok = false
				break
			}
			cur = records[j]
		}
		if !ok || emitted[cur.ID] {
			continue
		}
		emitted[cur.ID] = true
		out = append(out, cur)
	}
	return out
}

// GroupCurrent returns Current for every category, keyed by category name.
func GroupCurrent(records []style.SyntheticEmail) map[string][]style.SyntheticEmail {
	out := map[string][]style.SyntheticEmail{}
	for _, r := range Current(records, "") {
		out[r.Category] = append(out[r.Category], r)
	}
	return out
}
