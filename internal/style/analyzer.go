package style

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/quill/internal/llm"
	"github.com/MikeSquared-Agency/quill/internal/metrics"
	"github.com/MikeSquared-Agency/quill/internal/normalize"
)

const (
	// MaxCategories caps how many categories a profile may carry.
	MaxCategories = 5

	DefaultCategoryName = "Default Category"
	DefaultSummary      = "Professional, clear, and concise style."
)

var summaryKeys = []string{"overall_style_summary", "overall_summary", "summary"}

// Analyzer derives a StyleProfile from a user's email pairs.
type Analyzer struct {
	llm    llm.Provider
	logger *slog.Logger
}

func NewAnalyzer(p llm.Provider, logger *slog.Logger) *Analyzer {
	return &Analyzer{llm: p, logger: logger}
}

// Analyze asks the model for a style profile. It always returns a usable
// profile with at least one category: provider errors and unusable output
// produce the default profile.
func (a *Analyzer) Analyze(ctx context.Context, pairs []EmailPair) StyleProfile {
	body, err := json.MarshalIndent(promptPairs(pairs), "", "  ")
	if err != nil {
		body = []byte("[]")
	}
	prompt := fmt.Sprintf(analyzerUserPrompt, MaxCategories, string(body))

	a.logger.Info("analyzing style", "pairs", len(pairs))

	raw, err := a.llm.Complete(ctx, analyzerSystemPrompt, prompt)
	if err != nil {
		a.logger.Error("style analysis call failed", "error", err)
		metrics.Placeholders.WithLabelValues("analyzer", "provider_error").Inc()
		return ProviderErrorProfile(err)
	}

	res := normalize.Parse(raw, normalize.ShapeObject)
	metrics.NormalizerRungs.WithLabelValues(normalize.ShapeObject.String(), string(res.Rung)).Inc()
	if !res.OK {
		a.logger.Warn("style analysis unparseable", "raw_len", len(raw))
		metrics.Placeholders.WithLabelValues("analyzer", "unparseable").Inc()
		return ParseFailureProfile()
	}

	profile, ok := profileFromMap(res.Value.(map[string]any))
	if !ok {
		a.logger.Warn("style analysis had no usable categories", "rung", res.Rung)
		metrics.Placeholders.WithLabelValues("analyzer", "no_categories").Inc()
		return ParseFailureProfile()
	}

	a.logger.Info("style analyzed",
		"categories", len(profile.Categories),
		"rung", res.Rung,
	)
	return profile
}

// ParseFailureProfile is the profile used when the model answered but no
// profile could be recovered from it.
func ParseFailureProfile() StyleProfile {
	return defaultProfile(
		"Analysis failed to generate valid JSON. Please try again.",
		"No categories could be extracted from the analysis.",
	)
}

// ProviderErrorProfile is the profile used when the model call failed.
func ProviderErrorProfile(err error) StyleProfile {
	return defaultProfile(
		fmt.Sprintf("Analysis failed due to an API error: %v. Please try again.", err),
		"No analysis could be performed due to an error.",
	)
}

func defaultProfile(summary, description string) StyleProfile {
	return StyleProfile{
		OverallSummary: summary,
		Categories: []Category{{
			Name:               DefaultCategoryName,
			Description:        description,
			KeyCharacteristics: []string{"None available"},
		}},
	}
}

// profileFromMap reads a profile out of loosely typed model output. Unnamed
// and duplicate categories are dropped; missing summaries get the default.
func profileFromMap(m map[string]any) (StyleProfile, bool) {
	var p StyleProfile
	for _, k := range summaryKeys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			p.OverallSummary = strings.TrimSpace(s)
			break
		}
	}
	if p.OverallSummary == "" {
		p.OverallSummary = DefaultSummary
	}

	items, _ := m["categories"].([]any)
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if len(p.Categories) == MaxCategories {
			break
		}
		c, ok := categoryFromAny(item)
		if !ok || seen[strings.ToLower(c.Name)] {
			continue
		}
		seen[strings.ToLower(c.Name)] = true
		p.Categories = append(p.Categories, c)
	}
	return p, len(p.Categories) > 0
}

func categoryFromAny(v any) (Category, bool) {
	switch t := v.(type) {
	case string:
		name := strings.TrimSpace(t)
		return Category{Name: name, KeyCharacteristics: []string{}}, name != ""
	case map[string]any:
		name, _ := t["name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			return Category{}, false
		}
		desc, _ := t["description"].(string)
		chars := stringList(t["key_characteristics"])
		if len(chars) == 0 {
			chars = stringList(t["characteristics"])
		}
		return Category{
			Name:               name,
			Description:        strings.TrimSpace(desc),
			KeyCharacteristics: chars,
		}, true
	}
	return Category{}, false
}

func stringList(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}

type promptPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// promptPairs strips the stored identity off pairs before they go into a
// prompt.
func promptPairs(pairs []EmailPair) []promptPair {
	out := make([]promptPair, len(pairs))
	for i, p := range pairs {
		out[i] = promptPair{Question: p.Question, Answer: p.Answer}
	}
	return out
}
