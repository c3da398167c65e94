package hermes

import (
	"time"

	"github.com/google/uuid"
)

const (
	SubjectStyleAnalyzed      = "quill.style.analyzed"
	SubjectSyntheticGenerated = "quill.synthetic.generated"
	SubjectFeedbackRecorded   = "quill.feedback.recorded"
	SubjectEmailRegenerated   = "quill.email.regenerated"
	SubjectDraftCreated       = "quill.draft.created"

	// SubjectSlackReaction carries reactions forwarded from Slack.
	SubjectSlackReaction = "swarm.slack.reaction"
)

// Event is a payload with a fixed subject.
type Event interface {
	Subject() string
}

// StyleAnalyzed is emitted after a profile is stored. Default is set when the
// analyzer fell back to the default profile.
type StyleAnalyzed struct {
	UserID     uuid.UUID `json:"user_id"`
	ProfileID  uuid.UUID `json:"profile_id"`
	Categories []string  `json:"categories"`
	Default    bool      `json:"default"`
	Timestamp  time.Time `json:"timestamp"`
}

func (StyleAnalyzed) Subject() string { return SubjectStyleAnalyzed }

// SyntheticGenerated is emitted after a synthetic batch is stored.
type SyntheticGenerated struct {
	UserID       uuid.UUID `json:"user_id"`
	Emails       int       `json:"emails"`
	Categories   []string  `json:"categories"`
	Placeholders []string  `json:"placeholders,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func (SyntheticGenerated) Subject() string { return SubjectSyntheticGenerated }

// FeedbackRecorded is emitted for every applied review decision.
type FeedbackRecorded struct {
	UserID    uuid.UUID `json:"user_id"`
	EmailID   uuid.UUID `json:"email_id"`
	Category  string    `json:"category"`
	Action    string    `json:"action"`
	Rating    *int      `json:"rating,omitempty"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

func (FeedbackRecorded) Subject() string { return SubjectFeedbackRecorded }

// EmailRegenerated is emitted when a rejected email is replaced.
type EmailRegenerated struct {
	UserID     uuid.UUID `json:"user_id"`
	OriginalID uuid.UUID `json:"original_id"`
	NewEmailID uuid.UUID `json:"new_email_id"`
	Category   string    `json:"category"`
	Timestamp  time.Time `json:"timestamp"`
}

func (EmailRegenerated) Subject() string { return SubjectEmailRegenerated }

// DraftCreated is emitted after a draft is stored.
type DraftCreated struct {
	UserID    uuid.UUID `json:"user_id"`
	EmailID   uuid.UUID `json:"email_id"`
	Topic     string    `json:"topic"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

func (DraftCreated) Subject() string { return SubjectDraftCreated }
