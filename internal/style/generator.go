package style

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/quill/internal/llm"
	"github.com/MikeSquared-Agency/quill/internal/metrics"
	"github.com/MikeSquared-Agency/quill/internal/normalize"
)

const (
	DefaultPerCategory = 3
	defaultWorkers     = 4
)

// Placeholder is the stand-in email used when a category produced nothing
// usable. i is 1-based.
func Placeholder(category string, i int) string {
	return fmt.Sprintf("Subject: Sample Email %d for %s\n\nDear recipient,\n\nThis is a sample email for the %s category.\n\nBest regards,\nThe System", i, category, category)
}

// Placeholders returns n placeholder emails for category.
func Placeholders(category string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = Placeholder(category, i+1)
	}
	return out
}

// Generator produces synthetic emails per style category.
type Generator struct {
	llm     llm.Provider
	logger  *slog.Logger
	workers int
}

func NewGenerator(p llm.Provider, logger *slog.Logger, workers int) *Generator {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Generator{llm: p, logger: logger, workers: workers}
}

// Generate returns a corpus with one entry per distinct profile category, in
// profile order. Categories are generated concurrently and fail
// independently: a category whose call fails or whose output is unusable
// gets perCategory placeholders and the rest are unaffected.
func (g *Generator) Generate(ctx context.Context, profile StyleProfile, pairs []EmailPair, perCategory int) Corpus {
	if perCategory <= 0 {
		perCategory = DefaultPerCategory
	}

	cats := make([]Category, 0, len(profile.Categories))
	seen := make(map[string]bool, len(profile.Categories))
	for _, c := range profile.Categories {
		if c.Name == "" || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		cats = append(cats, c)
	}

	reference := referenceEmails(pairs)
	corpus := make(Corpus, len(cats))

	var eg errgroup.Group
	eg.SetLimit(g.workers)
	for i, c := range cats {
		i, c := i, c
		eg.Go(func() error {
			corpus[i] = g.generateCategory(ctx, c, reference, perCategory)
			return nil
		})
	}
	_ = eg.Wait()

	g.logger.Info("synthetic emails generated",
		"categories", len(corpus),
		"emails", corpus.Total(),
	)
	return corpus
}

func (g *Generator) generateCategory(ctx context.Context, c Category, reference string, n int) CategoryEmails {
	prompt := fmt.Sprintf(generatorUserPrompt,
		n, c.Name, c.Description, strings.Join(c.KeyCharacteristics, ", "), reference, n)

	raw, err := g.llm.Complete(ctx, generatorSystemPrompt, prompt)
	if err != nil {
		g.logger.Error("synthetic generation failed", "category", c.Name, "error", err)
		return placeholderEntry(c.Name, n, "provider_error")
	}

	res := normalize.Parse(raw, normalize.ShapeArray)
	metrics.NormalizerRungs.WithLabelValues(normalize.ShapeArray.String(), string(res.Rung)).Inc()
	if !res.OK {
		g.logger.Warn("synthetic output unparseable", "category", c.Name, "raw_len", len(raw))
		return placeholderEntry(c.Name, n, "unparseable")
	}

	emails := normalize.Texts(res.Value.([]any))
	if len(emails) == 0 {
		g.logger.Warn("synthetic output empty", "category", c.Name, "rung", res.Rung)
		return placeholderEntry(c.Name, n, "empty")
	}
	return CategoryEmails{Category: c.Name, Emails: emails}
}

func placeholderEntry(category string, n int, reason string) CategoryEmails {
	metrics.Placeholders.WithLabelValues("generator", reason).Inc()
	return CategoryEmails{Category: category, Emails: Placeholders(category, n), Placeholder: true}
}

func referenceEmails(pairs []EmailPair) string {
	answers := make([]string, 0, len(pairs))
	for _, p := range pairs {
		answers = append(answers, p.Answer)
	}
	b, err := json.MarshalIndent(answers, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}
