// Package processor runs quill's pipelines: intake of example pairs through
// analysis and synthetic generation, review feedback, and drafting.
package processor

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/quill/internal/drafter"
	"github.com/MikeSquared-Agency/quill/internal/feedback"
	"github.com/MikeSquared-Agency/quill/internal/guard"
	"github.com/MikeSquared-Agency/quill/internal/hermes"
	"github.com/MikeSquared-Agency/quill/internal/llm"
	"github.com/MikeSquared-Agency/quill/internal/slack"
	"github.com/MikeSquared-Agency/quill/internal/store"
	"github.com/MikeSquared-Agency/quill/internal/style"
)

// Publisher emits domain events. *hermes.Client satisfies it.
type Publisher interface {
	Emit(e hermes.Event) error
}

// Notifier posts review threads. *slack.Poster satisfies it.
type Notifier interface {
	PostReviewSummary(ctx context.Context, batch slack.ReviewBatch) (string, error)
	PostEmail(ctx context.Context, threadTS string, e style.SyntheticEmail) (string, error)
	PostThread(ctx context.Context, threadTS, text string) error
}

// Deps wires a Processor. Publisher and Notifier are optional.
type Deps struct {
	Repo        store.Repository
	LLM         llm.Provider
	Locker      guard.Locker
	Publisher   Publisher
	Notifier    Notifier
	PerCategory int
	Workers     int
}

// Processor orchestrates quill's pipelines.
type Processor struct {
	repo        store.Repository
	analyzer    *style.Analyzer
	generator   *style.Generator
	workflow    *feedback.Workflow
	composer    *drafter.Composer
	publisher   Publisher
	notifier    Notifier
	logger      *slog.Logger
	perCategory int

	mu          sync.Mutex
	reviewItems map[string]reviewItem // keyed by Slack message TS of the posted email
}

// reviewItem maps one posted Slack message to the synthetic email it shows.
type reviewItem struct {
	EmailID  uuid.UUID
	UserID   uuid.UUID
	Category string
}

func New(d Deps, logger *slog.Logger) *Processor {
	perCategory := d.PerCategory
	if perCategory <= 0 {
		perCategory = style.DefaultPerCategory
	}
	return &Processor{
		repo:        d.Repo,
		analyzer:    style.NewAnalyzer(d.LLM, logger),
		generator:   style.NewGenerator(d.LLM, logger, d.Workers),
		workflow:    feedback.New(d.Repo, d.LLM, d.Locker, logger),
		composer:    drafter.NewComposer(d.LLM, logger),
		publisher:   d.Publisher,
		notifier:    d.Notifier,
		logger:      logger,
		perCategory: perCategory,
		reviewItems: make(map[string]reviewItem),
	}
}

// SubmitResult is the outcome of one intake run.
type SubmitResult struct {
	UserID          uuid.UUID              `json:"userId"`
	StyleProfile    style.StyleProfile     `json:"styleProfile"`
	SyntheticEmails []style.SyntheticEmail `json:"syntheticEmails"`
}

// Submit stores the valid pairs, analyzes the style, generates synthetic
// emails for every category and stores them. Analysis and generation
// degrade to defaults; persistence failures are returned as a StepError.
func (p *Processor) Submit(ctx context.Context, identifier string, pairs []style.EmailPair) (*SubmitResult, error) {
	var msgs []string
	if strings.TrimSpace(identifier) == "" {
		msgs = append(msgs, "User ID is required")
	}
	if len(pairs) == 0 {
		msgs = append(msgs, "Email pairs are required and must be a list")
	}
	if err := invalid(msgs...); err != nil {
		return nil, err
	}

	valid := make([]style.EmailPair, 0, len(pairs))
	for _, pair := range pairs {
		if pair.Valid() {
			valid = append(valid, pair)
		}
	}
	if len(valid) == 0 {
		return nil, invalid("No valid email pairs were provided")
	}
	if skipped := len(pairs) - len(valid); skipped > 0 {
		p.logger.Warn("skipped invalid email pairs", "skipped", skipped, "kept", len(valid))
	}

	userID, err := p.repo.GetOrCreateUser(ctx, identifier)
	if err != nil {
		return nil, step("resolve user", err)
	}

	if _, err := p.repo.InsertEmailPairs(ctx, userID, valid); err != nil {
		return nil, step("save email pairs", err)
	}

	profile := p.analyzer.Analyze(ctx, valid)
	profile.CreatedAt = time.Now().UTC()
	profileID, err := p.repo.InsertStyleProfile(ctx, userID, profile)
	if err != nil {
		return nil, step("save style analysis", err)
	}
	profile.ID = profileID

	p.emit(hermes.StyleAnalyzed{
		UserID:     userID,
		ProfileID:  profileID,
		Categories: categoryNames(profile),
		Default:    isDefault(profile),
		Timestamp:  time.Now().UTC(),
	})

	corpus := p.generator.Generate(ctx, profile, valid, p.perCategory)
	records, err := p.repo.InsertSyntheticEmails(ctx, userID, corpus)
	if err != nil {
		return nil, step("save synthetic emails", err)
	}

	var placeholders []string
	for _, ce := range corpus {
		if ce.Placeholder {
			placeholders = append(placeholders, ce.Category)
		}
	}
	p.emit(hermes.SyntheticGenerated{
		UserID:       userID,
		Emails:       len(records),
		Categories:   categoryNames(profile),
		Placeholders: placeholders,
		Timestamp:    time.Now().UTC(),
	})

	p.logger.Info("submission processed",
		"user_id", userID,
		"pairs", len(valid),
		"categories", len(profile.Categories),
		"synthetic_emails", len(records),
		"placeholder_categories", len(placeholders),
	)

	p.notifyReview(ctx, userID, profile, corpus, records)

	return &SubmitResult{UserID: userID, StyleProfile: profile, SyntheticEmails: records}, nil
}

// notifyReview posts the batch to Slack, one threaded message per email, and
// remembers which message shows which email so reactions can be applied.
func (p *Processor) notifyReview(ctx context.Context, userID uuid.UUID, profile style.StyleProfile, corpus style.Corpus, records []style.SyntheticEmail) {
	if p.notifier == nil || len(records) == 0 {
		return
	}

	headerTS, err := p.notifier.PostReviewSummary(ctx, slack.ReviewBatch{UserID: userID, Profile: profile, Corpus: corpus})
	if err != nil {
		p.logger.Error("slack post failed", "user_id", userID, "error", err)
		return
	}

	for _, rec := range records {
		ts, err := p.notifier.PostEmail(ctx, headerTS, rec)
		if err != nil {
			p.logger.Error("slack email post failed", "email_id", rec.ID, "error", err)
			continue
		}
		p.track(ts, rec)
	}
}

func (p *Processor) track(ts string, rec style.SyntheticEmail) {
	p.mu.Lock()
	p.reviewItems[ts] = reviewItem{EmailID: rec.ID, UserID: rec.UserID, Category: rec.Category}
	p.mu.Unlock()
}

func (p *Processor) emit(e hermes.Event) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Emit(e); err != nil {
		p.logger.Error("failed to publish event", "subject", e.Subject(), "error", err)
	}
}

// resolve looks up an existing user. Unknown identifiers are ErrNotFound.
func (p *Processor) resolve(ctx context.Context, identifier string) (uuid.UUID, error) {
	if strings.TrimSpace(identifier) == "" {
		return uuid.Nil, invalid("User ID is required")
	}
	userID, err := p.repo.ResolveUser(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) {
		return uuid.Nil, err
	}
	if err != nil {
		return uuid.Nil, step("resolve user", err)
	}
	return userID, nil
}

func categoryNames(profile style.StyleProfile) []string {
	out := make([]string, 0, len(profile.Categories))
	for _, c := range profile.Categories {
		out = append(out, c.Name)
	}
	return out
}

func isDefault(profile style.StyleProfile) bool {
	return len(profile.Categories) == 1 && profile.Categories[0].Name == style.DefaultCategoryName
}
