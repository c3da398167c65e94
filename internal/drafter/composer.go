// Package drafter writes new emails in a user's established style.
package drafter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/quill/internal/llm"
	"github.com/MikeSquared-Agency/quill/internal/style"
)

const (
	MaxExamples       = 3
	FirstExampleLimit = 200
	NeutralExample    = "Thank you for your email. I appreciate your time."
)

// Source names where the grounding examples came from.
type Source string

const (
	SourceSnapshot Source = "snapshot"
	SourceApproved Source = "approved"
	SourcePairs    Source = "pairs"
	SourceNeutral  Source = "neutral"
)

// Sources holds every candidate example set, most preferred first.
type Sources struct {
	Snapshot style.Corpus
	Approved style.Corpus
	Pairs    []style.EmailPair
}

// ResolveExamples picks the first non-empty level of saved snapshot,
// approved synthetic emails, original answers and finally the neutral
// sentence. At most MaxExamples are returned and the result is never empty.
func ResolveExamples(src Sources) ([]string, Source) {
	if ex := nonEmpty(src.Snapshot.Texts()); len(ex) > 0 {
		return ex, SourceSnapshot
	}
	if ex := nonEmpty(src.Approved.Texts()); len(ex) > 0 {
		return ex, SourceApproved
	}
	answers := make([]string, 0, len(src.Pairs))
	for _, p := range src.Pairs {
		answers = append(answers, p.Answer)
	}
	if ex := nonEmpty(answers); len(ex) > 0 {
		return ex, SourcePairs
	}
	return []string{NeutralExample}, SourceNeutral
}

func nonEmpty(texts []string) []string {
	var out []string
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		out = append(out, t)
		if len(out) == MaxExamples {
			break
		}
	}
	return out
}

type Request struct {
	Recipient string
	Topic     string
	KeyPoints []string
}

// BuildPrompt renders the drafting prompt. The first example is cut to
// FirstExampleLimit characters.
func BuildPrompt(req Request, examples []string, profile *style.StyleProfile) string {
	summary := style.DefaultSummary
	if profile != nil && strings.TrimSpace(profile.OverallSummary) != "" {
		summary = profile.OverallSummary
	}

	points := make([]string, len(req.KeyPoints))
	for i, p := range req.KeyPoints {
		points[i] = "- " + p
	}

	shown := make([]string, 0, MaxExamples)
	for i, ex := range examples {
		if i == MaxExamples {
			break
		}
		if i == 0 {
			ex = truncate(ex, FirstExampleLimit)
		}
		shown = append(shown, ex)
	}

	return fmt.Sprintf(userPrompt,
		req.Recipient, req.Topic, strings.Join(points, "\n"), summary, strings.Join(shown, "\n---\n"))
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}

// Draft is a composed email and the example level that grounded it.
type Draft struct {
	Content string
	Source  Source
}

type Composer struct {
	llm    llm.Provider
	logger *slog.Logger
}

func NewComposer(p llm.Provider, logger *slog.Logger) *Composer {
	return &Composer{llm: p, logger: logger}
}

// Compose drafts one email. Provider failures are returned, never replaced
// with a placeholder.
func (c *Composer) Compose(ctx context.Context, req Request, src Sources, profile *style.StyleProfile) (*Draft, error) {
	examples, source := ResolveExamples(src)
	prompt := BuildPrompt(req, examples, profile)

	c.logger.Info("composing draft", "topic", req.Topic, "examples", len(examples), "source", source)

	raw, err := c.llm.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("draft completion: %w", err)
	}
	return &Draft{Content: raw, Source: source}, nil
}
