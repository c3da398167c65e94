package processor

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/quill/internal/feedback"
	"github.com/MikeSquared-Agency/quill/internal/store"
	"github.com/MikeSquared-Agency/quill/internal/style"
)

// SaveStyleProfile snapshots the user's approved synthetic emails as the
// preferred drafting examples.
func (p *Processor) SaveStyleProfile(ctx context.Context, identifier string) error {
	userID, err := p.resolve(ctx, identifier)
	if err != nil {
		return err
	}
	saved, err := p.repo.SaveStyleSnapshot(ctx, userID)
	if err != nil {
		return step("save style profile", err)
	}
	if !saved {
		return invalid("No approved emails found to save as style profile")
	}
	p.logger.Info("style snapshot saved", "user_id", userID)
	return nil
}

// StyleView is the current profile with per-category review scores.
type StyleView struct {
	UserID  uuid.UUID             `json:"userId"`
	Profile style.StyleProfile    `json:"styleProfile"`
	Scores  []store.CategoryScore `json:"scores"`
}

// StyleProfile returns the latest profile. ErrNotFound when none exists.
func (p *Processor) StyleProfile(ctx context.Context, identifier string) (*StyleView, error) {
	userID, err := p.resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	profile, err := p.repo.LatestStyleProfile(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, step("load style profile", err)
	}
	scores, err := p.repo.ListCategoryScores(ctx, userID)
	if err != nil {
		return nil, step("load category scores", err)
	}
	return &StyleView{UserID: userID, Profile: *profile, Scores: scores}, nil
}

// CurrentEmails returns the live synthetic emails, optionally for one
// category, with replaced records substituted by their successors.
func (p *Processor) CurrentEmails(ctx context.Context, identifier, category string) ([]style.SyntheticEmail, error) {
	userID, err := p.resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	records, err := p.repo.ListSyntheticEmails(ctx, userID, "")
	if err != nil {
		return nil, step("load synthetic emails", err)
	}
	return feedback.Current(records, category), nil
}

// UserData is everything stored for one user.
type UserData struct {
	UserID          uuid.UUID                         `json:"userId"`
	EmailPairs      []style.EmailPair                 `json:"emailPairs"`
	StyleProfile    *style.StyleProfile               `json:"styleProfile"`
	SyntheticEmails []style.SyntheticEmail            `json:"syntheticEmails"`
	CurrentEmails   map[string][]style.SyntheticEmail `json:"currentEmails"`
	GeneratedEmails []style.GeneratedEmail            `json:"generatedEmails"`
	Scores          []store.CategoryScore             `json:"scores"`
}

// UserData loads the full record set for a user.
func (p *Processor) UserData(ctx context.Context, identifier string) (*UserData, error) {
	userID, err := p.resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	data := &UserData{UserID: userID}

	if data.EmailPairs, err = p.repo.ListEmailPairs(ctx, userID); err != nil {
		return nil, step("load email pairs", err)
	}
	data.StyleProfile, err = p.repo.LatestStyleProfile(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, step("load style profile", err)
	}
	if data.SyntheticEmails, err = p.repo.ListSyntheticEmails(ctx, userID, ""); err != nil {
		return nil, step("load synthetic emails", err)
	}
	data.CurrentEmails = feedback.GroupCurrent(data.SyntheticEmails)
	if data.GeneratedEmails, err = p.repo.ListGeneratedEmails(ctx, userID); err != nil {
		return nil, step("load generated emails", err)
	}
	if data.Scores, err = p.repo.ListCategoryScores(ctx, userID); err != nil {
		return nil, step("load category scores", err)
	}
	return data, nil
}
