package hermes

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestEventSubjects(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{StyleAnalyzed{}, "quill.style.analyzed"},
		{SyntheticGenerated{}, "quill.synthetic.generated"},
		{FeedbackRecorded{}, "quill.feedback.recorded"},
		{EmailRegenerated{}, "quill.email.regenerated"},
		{DraftCreated{}, "quill.draft.created"},
	}

	for _, tt := range tests {
		if got := tt.event.Subject(); got != tt.want {
			t.Errorf("%T.Subject() = %q, want %q", tt.event, got, tt.want)
		}
	}
}

func TestFeedbackRecordedParsing(t *testing.T) {
	raw := `{
		"user_id": "9f6ed519-0000-0000-0000-000000000000",
		"email_id": "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
		"category": "Formal",
		"action": "regenerated",
		"rating": 20,
		"score": 40,
		"timestamp": "2025-01-02T03:04:05Z"
	}`

	var evt FeedbackRecorded
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		t.Fatalf("failed to parse FeedbackRecorded: %v", err)
	}

	if evt.UserID != uuid.MustParse("9f6ed519-0000-0000-0000-000000000000") {
		t.Errorf("unexpected user_id %s", evt.UserID)
	}
	if evt.Category != "Formal" {
		t.Errorf("expected category 'Formal', got '%s'", evt.Category)
	}
	if evt.Action != "regenerated" {
		t.Errorf("expected action 'regenerated', got '%s'", evt.Action)
	}
	if evt.Rating == nil || *evt.Rating != 20 {
		t.Errorf("expected rating 20, got %v", evt.Rating)
	}
	if evt.Score != 40 {
		t.Errorf("expected score 40, got %f", evt.Score)
	}
	if !evt.Timestamp.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("unexpected timestamp %s", evt.Timestamp)
	}
}

func TestSyntheticGeneratedOmitsEmptyPlaceholders(t *testing.T) {
	data, err := json.Marshal(SyntheticGenerated{UserID: uuid.New(), Emails: 6, Categories: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if _, ok := m["placeholders"]; ok {
		t.Errorf("expected placeholders to be omitted, got %v", m["placeholders"])
	}
	if m["emails"] != float64(6) {
		t.Errorf("expected emails 6, got %v", m["emails"])
	}
}
