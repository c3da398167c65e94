package style

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EmailPair is one user-supplied training example.
type EmailPair struct {
	ID       uuid.UUID `json:"id"`
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
}

// Valid reports whether both halves of the pair carry text.
func (p EmailPair) Valid() bool {
	return strings.TrimSpace(p.Question) != "" && strings.TrimSpace(p.Answer) != ""
}

// Category is one facet of a user's writing style.
type Category struct {
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	KeyCharacteristics []string `json:"key_characteristics"`
}

// StyleProfile is the analyzed writing style of a user. The most recent
// profile for a user is the current one; older ones are kept as history.
type StyleProfile struct {
	ID             uuid.UUID  `json:"id"`
	OverallSummary string     `json:"overall_style_summary"`
	Categories     []Category `json:"categories"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CategoryEmails is the set of email texts for one category.
type CategoryEmails struct {
	Category    string   `json:"category"`
	Emails      []string `json:"emails"`
	Placeholder bool     `json:"placeholder,omitempty"`
}

// Corpus is an ordered list of per-category email texts.
type Corpus []CategoryEmails

// Total returns the number of emails across all categories.
func (c Corpus) Total() int {
	n := 0
	for _, ce := range c {
		n += len(ce.Emails)
	}
	return n
}

// Texts flattens the corpus in category order.
func (c Corpus) Texts() []string {
	out := make([]string, 0, c.Total())
	for _, ce := range c {
		out = append(out, ce.Emails...)
	}
	return out
}

// Map returns the corpus keyed by category name.
func (c Corpus) Map() map[string][]string {
	m := make(map[string][]string, len(c))
	for _, ce := range c {
		m[ce.Category] = append(m[ce.Category], ce.Emails...)
	}
	return m
}

// Status is the review state of a synthetic email.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusReplaced Status = "replaced"
)

// SyntheticEmail is a model-generated example email awaiting or past review.
// Lineage points at the record this one replaced.
type SyntheticEmail struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Category  string     `json:"category"`
	Content   string     `json:"content"`
	Status    Status     `json:"status"`
	Approved  bool       `json:"approved"`
	Rating    *int       `json:"rating,omitempty"`
	Feedback  *string    `json:"feedback,omitempty"`
	Lineage   *uuid.UUID `json:"lineage,omitempty"`
	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// GeneratedEmail is one drafted email.
type GeneratedEmail struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Recipient string    `json:"recipient"`
	Topic     string    `json:"topic"`
	KeyPoints []string  `json:"key_points"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
