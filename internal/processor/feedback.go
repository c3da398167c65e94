package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/quill/internal/feedback"
	"github.com/MikeSquared-Agency/quill/internal/hermes"
	"github.com/MikeSquared-Agency/quill/internal/scoring"
	"github.com/MikeSquared-Agency/quill/internal/slack"
	"github.com/MikeSquared-Agency/quill/internal/store"
)

// FeedbackInput is one review decision from a caller.
type FeedbackInput struct {
	UserIdentifier string
	EmailID        uuid.UUID
	Approved       bool
	Rating         *int
	Comments       *string
}

// FeedbackResult reports what happened to the reviewed email. NewEmailID and
// ImprovedContent are set only when the email was regenerated.
type FeedbackResult struct {
	Action          feedback.Action `json:"action"`
	EmailID         uuid.UUID       `json:"emailId"`
	Category        string          `json:"category"`
	NewEmailID      *uuid.UUID      `json:"newEmailId,omitempty"`
	ImprovedContent string          `json:"improvedContent,omitempty"`
	Score           float64         `json:"score"`

	repeat bool
}

const reviewRejectPrompt = "Noted. To get a rewrite, send a rating and a comment for this email through the feedback endpoint."

// Feedback applies a review decision and updates the category score.
func (p *Processor) Feedback(ctx context.Context, in FeedbackInput) (*FeedbackResult, error) {
	var msgs []string
	if strings.TrimSpace(in.UserIdentifier) == "" {
		msgs = append(msgs, "User ID is required")
	}
	if in.EmailID == uuid.Nil {
		msgs = append(msgs, "Email ID is required")
	}
	if in.Rating != nil && (*in.Rating < 0 || *in.Rating > 100) {
		msgs = append(msgs, "Rating must be between 0 and 100")
	}
	if err := invalid(msgs...); err != nil {
		return nil, err
	}

	userID, err := p.resolve(ctx, in.UserIdentifier)
	if err != nil {
		return nil, err
	}
	return p.applyFeedback(ctx, feedback.Request{
		EmailID:  in.EmailID,
		UserID:   userID,
		Approved: in.Approved,
		Rating:   in.Rating,
		Comments: in.Comments,
	})
}

func (p *Processor) applyFeedback(ctx context.Context, req feedback.Request) (*FeedbackResult, error) {
	outcome, err := p.workflow.Submit(ctx, req)
	switch {
	case errors.Is(err, feedback.ErrRegenerate):
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrConflict),
		errors.Is(err, feedback.ErrNotPending), errors.Is(err, feedback.ErrBusy):
		return nil, err
	case err != nil:
		return nil, step("save feedback", err)
	}

	rec := outcome.Original
	res := &FeedbackResult{Action: outcome.Action, EmailID: rec.ID, Category: rec.Category, repeat: outcome.Repeat}
	if outcome.Replacement != nil {
		id := outcome.Replacement.ID
		res.NewEmailID = &id
		res.ImprovedContent = outcome.Replacement.Content
	}
	if outcome.Repeat {
		res.Score = p.currentScore(ctx, req.UserID, rec.Category)
	} else {
		res.Score = p.recordScore(ctx, req, rec.Category)
	}

	p.emit(hermes.FeedbackRecorded{
		UserID:    req.UserID,
		EmailID:   rec.ID,
		Category:  rec.Category,
		Action:    string(outcome.Action),
		Rating:    req.Rating,
		Score:     res.Score,
		Timestamp: time.Now().UTC(),
	})
	if outcome.Replacement != nil {
		p.emit(hermes.EmailRegenerated{
			UserID:     req.UserID,
			OriginalID: rec.ID,
			NewEmailID: outcome.Replacement.ID,
			Category:   rec.Category,
			Timestamp:  time.Now().UTC(),
		})
	}
	return res, nil
}

// recordScore folds the decision into the category score. The score is
// derived data: a failed write is logged and the decision still stands.
func (p *Processor) recordScore(ctx context.Context, req feedback.Request, category string) float64 {
	sc, err := p.repo.RecordCategoryReview(ctx, store.ScoreReview{
		UserID:   req.UserID,
		Category: category,
		Approved: req.Approved,
		Rating:   req.Rating,
	})
	if err != nil {
		p.logger.Error("failed to save category score", "user_id", req.UserID, "category", category, "error", err)
		return p.currentScore(ctx, req.UserID, category)
	}
	return sc.Score
}

func (p *Processor) currentScore(ctx context.Context, userID uuid.UUID, category string) float64 {
	sc, err := p.repo.GetCategoryScore(ctx, userID, category)
	switch {
	case err == nil:
		return sc.Score
	case !errors.Is(err, store.ErrNotFound):
		p.logger.Error("failed to load category score", "user_id", userID, "category", category, "error", err)
	}
	return scoring.Initial
}

// HandleReaction processes Slack reaction feedback forwarded over NATS.
// Reactions on a posted synthetic email approve it or record a rejection.
func (p *Processor) HandleReaction(subject string, data []byte) {
	ctx := context.Background()

	evt, err := slack.ParseReactionEvent(data, p.logger)
	if err != nil {
		p.logger.Error("failed to parse reaction", "error", err)
		return
	}

	verdict := slack.ParseReaction(evt.Reaction)
	if evt.Removed || verdict == slack.VerdictUnknown || verdict == slack.VerdictSkip {
		return
	}

	p.mu.Lock()
	item, ok := p.reviewItems[evt.MessageTS]
	p.mu.Unlock()
	if !ok {
		return // not a message we're tracking
	}

	p.logger.Info("processing review reaction",
		"reaction", evt.Reaction,
		"verdict", string(verdict),
		"email_id", item.EmailID,
	)

	approved := verdict == slack.VerdictApprove
	res, err := p.applyFeedback(ctx, feedback.Request{
		EmailID:  item.EmailID,
		UserID:   item.UserID,
		Approved: approved,
	})
	switch {
	case errors.Is(err, feedback.ErrNotPending), errors.Is(err, store.ErrNotFound):
		p.untrack(evt.MessageTS)
		return
	case err != nil:
		p.logger.Error("failed to apply review reaction", "email_id", item.EmailID, "error", err)
		return
	}

	if approved {
		p.untrack(evt.MessageTS)
		return
	}
	if p.notifier != nil && !res.repeat {
		if err := p.notifier.PostThread(ctx, evt.MessageTS, reviewRejectPrompt); err != nil {
			p.logger.Error("failed to post rejection thread", "error", err)
		}
	}
}

func (p *Processor) untrack(ts string) {
	p.mu.Lock()
	delete(p.reviewItems, ts)
	p.mu.Unlock()
}
