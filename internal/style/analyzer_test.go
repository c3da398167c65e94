package style

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/quill/internal/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func reply(text string) llm.Provider {
	return llm.ProviderFunc(func(ctx context.Context, system, user string) (string, error) {
		return text, nil
	})
}

var samplePairs = []EmailPair{
	{Question: "Can we meet Tuesday?", Answer: "Tuesday works. See you at 10."},
	{Question: "Did you review the doc?", Answer: "Yes, left a few comments. Looks good overall."},
}

func TestAnalyze_Success(t *testing.T) {
	raw := `{"overall_style_summary": "Short and direct.", "categories": [
		{"name": "Quick reply", "description": "One-liners", "key_characteristics": ["brief", "no greeting"]},
		{"name": "Review", "description": "Feedback on work", "key_characteristics": ["specific"]}
	]}`

	p := NewAnalyzer(reply(raw), discardLogger()).Analyze(context.Background(), samplePairs)

	if p.OverallSummary != "Short and direct." {
		t.Errorf("expected summary, got %q", p.OverallSummary)
	}
	if len(p.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(p.Categories))
	}
	if p.Categories[0].Name != "Quick reply" || p.Categories[1].Name != "Review" {
		t.Errorf("unexpected category order: %+v", p.Categories)
	}
	if got := p.Categories[0].KeyCharacteristics; len(got) != 2 || got[1] != "no greeting" {
		t.Errorf("unexpected characteristics: %v", got)
	}
}

func TestAnalyze_PromptCarriesPairs(t *testing.T) {
	var seen string
	p := llm.ProviderFunc(func(ctx context.Context, system, user string) (string, error) {
		seen = user
		return `{"categories": [{"name": "A"}]}`, nil
	})

	NewAnalyzer(p, discardLogger()).Analyze(context.Background(), samplePairs)

	if !strings.Contains(seen, "Tuesday works. See you at 10.") {
		t.Errorf("prompt missing pair content: %q", seen)
	}
	if strings.Contains(seen, `"id"`) {
		t.Errorf("prompt leaks pair ids: %q", seen)
	}
}

func TestAnalyze_FencedWithProse(t *testing.T) {
	raw := "Here is the analysis:\n```json\n{\"overall_style_summary\": \"Warm\", \"categories\": [{\"name\": \"Friendly\"}]}\n```"

	p := NewAnalyzer(reply(raw), discardLogger()).Analyze(context.Background(), samplePairs)

	if p.OverallSummary != "Warm" || len(p.Categories) != 1 || p.Categories[0].Name != "Friendly" {
		t.Errorf("unexpected profile: %+v", p)
	}
}

func TestAnalyze_MissingSummaryGetsDefault(t *testing.T) {
	p := NewAnalyzer(reply(`{"categories": [{"name": "Formal"}]}`), discardLogger()).Analyze(context.Background(), samplePairs)

	if p.OverallSummary != DefaultSummary {
		t.Errorf("expected default summary, got %q", p.OverallSummary)
	}
}

func TestAnalyze_DropsDuplicateAndUnnamedCategories(t *testing.T) {
	raw := `{"overall_style_summary": "x", "categories": [
		{"name": "Formal"}, {"name": ""}, {"description": "no name"}, {"name": "formal"}, "Casual", 7
	]}`

	p := NewAnalyzer(reply(raw), discardLogger()).Analyze(context.Background(), samplePairs)

	if len(p.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %+v", p.Categories)
	}
	if p.Categories[0].Name != "Formal" || p.Categories[1].Name != "Casual" {
		t.Errorf("unexpected categories: %+v", p.Categories)
	}
}

func TestAnalyze_CapsCategories(t *testing.T) {
	raw := `{"categories": ["a", "b", "c", "d", "e", "f", "g"]}`

	p := NewAnalyzer(reply(raw), discardLogger()).Analyze(context.Background(), samplePairs)

	if len(p.Categories) != MaxCategories {
		t.Errorf("expected %d categories, got %d", MaxCategories, len(p.Categories))
	}
}

func TestAnalyze_UnparseableGivesDefault(t *testing.T) {
	p := NewAnalyzer(reply("I'm not able to analyze this."), discardLogger()).Analyze(context.Background(), samplePairs)

	if len(p.Categories) != 1 || p.Categories[0].Name != DefaultCategoryName {
		t.Fatalf("expected default category, got %+v", p.Categories)
	}
	if p.Categories[0].KeyCharacteristics[0] != "None available" {
		t.Errorf("unexpected characteristics: %v", p.Categories[0].KeyCharacteristics)
	}
	if !strings.Contains(p.OverallSummary, "valid JSON") {
		t.Errorf("expected parse failure summary, got %q", p.OverallSummary)
	}
}

func TestAnalyze_NoCategoriesGivesDefault(t *testing.T) {
	p := NewAnalyzer(reply(`{"overall_style_summary": "fine", "categories": []}`), discardLogger()).Analyze(context.Background(), samplePairs)

	if len(p.Categories) != 1 || p.Categories[0].Name != DefaultCategoryName {
		t.Errorf("expected default profile, got %+v", p)
	}
}

func TestAnalyze_ProviderErrorGivesDefault(t *testing.T) {
	failing := llm.ProviderFunc(func(ctx context.Context, system, user string) (string, error) {
		return "", errors.New("rate limited")
	})

	p := NewAnalyzer(failing, discardLogger()).Analyze(context.Background(), samplePairs)

	if len(p.Categories) != 1 || p.Categories[0].Name != DefaultCategoryName {
		t.Fatalf("expected default category, got %+v", p.Categories)
	}
	if !strings.Contains(p.OverallSummary, "rate limited") {
		t.Errorf("expected provider error in summary, got %q", p.OverallSummary)
	}
	if p.OverallSummary == ParseFailureProfile().OverallSummary {
		t.Error("provider error and parse failure summaries must differ")
	}
}
