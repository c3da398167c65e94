package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/quill/internal/drafter"
	"github.com/MikeSquared-Agency/quill/internal/hermes"
	"github.com/MikeSquared-Agency/quill/internal/store"
	"github.com/MikeSquared-Agency/quill/internal/style"
)

// DraftInput is a request for a new email.
type DraftInput struct {
	UserIdentifier string
	Recipient      string
	Topic          string
	KeyPoints      []string
}

// DraftResult is a stored draft.
type DraftResult struct {
	EmailID uuid.UUID      `json:"emailId"`
	Content string         `json:"content"`
	Source  drafter.Source `json:"source"`
}

// Draft writes a new email grounded in the user's best available examples
// and stores it. A provider failure is returned wrapped in ErrProvider.
func (p *Processor) Draft(ctx context.Context, in DraftInput) (*DraftResult, error) {
	keyPoints := make([]string, 0, len(in.KeyPoints))
	for _, kp := range in.KeyPoints {
		if kp = strings.TrimSpace(kp); kp != "" {
			keyPoints = append(keyPoints, kp)
		}
	}

	var msgs []string
	if strings.TrimSpace(in.UserIdentifier) == "" {
		msgs = append(msgs, "User ID is required")
	}
	if strings.TrimSpace(in.Recipient) == "" {
		msgs = append(msgs, "Recipient is required")
	}
	if strings.TrimSpace(in.Topic) == "" {
		msgs = append(msgs, "Topic is required")
	}
	if len(keyPoints) == 0 {
		msgs = append(msgs, "At least one key point is required")
	}
	if err := invalid(msgs...); err != nil {
		return nil, err
	}

	userID, err := p.repo.GetOrCreateUser(ctx, in.UserIdentifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, step("resolve user", err)
	}

	src, profile, err := p.draftSources(ctx, userID)
	if err != nil {
		return nil, err
	}

	req := drafter.Request{Recipient: in.Recipient, Topic: in.Topic, KeyPoints: keyPoints}
	draft, err := p.composer.Compose(ctx, req, src, profile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}

	emailID, err := p.repo.InsertGeneratedEmail(ctx, userID, style.GeneratedEmail{
		UserID:    userID,
		Recipient: in.Recipient,
		Topic:     in.Topic,
		KeyPoints: keyPoints,
		Content:   draft.Content,
	})
	if err != nil {
		return nil, step("save generated email", err)
	}

	p.emit(hermes.DraftCreated{
		UserID:    userID,
		EmailID:   emailID,
		Topic:     in.Topic,
		Source:    string(draft.Source),
		Timestamp: time.Now().UTC(),
	})
	p.logger.Info("draft created", "user_id", userID, "email_id", emailID, "source", draft.Source)

	return &DraftResult{EmailID: emailID, Content: draft.Content, Source: draft.Source}, nil
}

// draftSources loads every example level and the latest profile. Missing
// snapshot or profile is not an error.
func (p *Processor) draftSources(ctx context.Context, userID uuid.UUID) (drafter.Sources, *style.StyleProfile, error) {
	var src drafter.Sources

	snapshot, err := p.repo.GetStyleSnapshot(ctx, userID)
	switch {
	case err == nil:
		src.Snapshot = snapshot
	case !errors.Is(err, store.ErrNotFound):
		return src, nil, step("load style snapshot", err)
	}

	if src.Approved, err = p.repo.ApprovedSyntheticEmails(ctx, userID); err != nil {
		return src, nil, step("load approved emails", err)
	}
	if src.Pairs, err = p.repo.ListEmailPairs(ctx, userID); err != nil {
		return src, nil, step("load email pairs", err)
	}

	profile, err := p.repo.LatestStyleProfile(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return src, nil, step("load style profile", err)
	}
	return src, profile, nil
}
