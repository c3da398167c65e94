// Package slack posts synthetic emails for review and reads the reactions
// reviewers leave on them.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/quill/internal/style"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

// previewLimit caps how much of an email body goes into one message.
const previewLimit = 1500

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// ReviewBatch is one freshly generated set of synthetic emails.
type ReviewBatch struct {
	UserID  uuid.UUID
	Profile style.StyleProfile
	Corpus  style.Corpus
}

// PostReviewSummary announces a batch. Returns the message timestamp that
// per-email messages are threaded under.
func (p *Poster) PostReviewSummary(ctx context.Context, batch ReviewBatch) (string, error) {
	text := formatReviewMessage(batch)
	ts, err := p.post(ctx, map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{"type": "mrkdwn", "text": text},
			},
			{
				"type": "context",
				"elements": []map[string]any{
					{"type": "mrkdwn", "text": "React on each email in the thread: :+1: approve | :-1: reject | :shrug: skip"},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	p.logger.Info("posted review to slack", "ts", ts, "user_id", batch.UserID)
	return ts, nil
}

// PostEmail posts one synthetic email into the review thread. Reactions on
// the returned timestamp refer to this email.
func (p *Poster) PostEmail(ctx context.Context, threadTS string, e style.SyntheticEmail) (string, error) {
	return p.post(ctx, map[string]any{
		"channel":   p.channel,
		"thread_ts": threadTS,
		"text":      formatEmailMessage(e),
	})
}

// PostThread posts a threaded reply to a message.
func (p *Poster) PostThread(ctx context.Context, threadTS, text string) error {
	_, err := p.post(ctx, map[string]any{
		"channel":   p.channel,
		"thread_ts": threadTS,
		"text":      text,
	})
	return err
}

func (p *Poster) post(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

func formatReviewMessage(batch ReviewBatch) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*Style review ready* for user %s\n", batch.UserID.String())
	if batch.Profile.OverallSummary != "" {
		fmt.Fprintf(&sb, "*Style:* %s\n", batch.Profile.OverallSummary)
	}
	sb.WriteString("\n")

	if len(batch.Corpus) == 0 {
		sb.WriteString("_No synthetic emails were generated._")
		return sb.String()
	}

	fmt.Fprintf(&sb, "*Categories: %d* (%d emails)\n", len(batch.Corpus), batch.Corpus.Total())
	for i, ce := range batch.Corpus {
		note := ""
		if ce.Placeholder {
			note = " _placeholders, generation failed_"
		}
		fmt.Fprintf(&sb, "%d. %s: %d emails%s\n", i+1, ce.Category, len(ce.Emails), note)
	}
	return sb.String()
}

func formatEmailMessage(e style.SyntheticEmail) string {
	content := e.Content
	if r := []rune(content); len(r) > previewLimit {
		content = string(r[:previewLimit]) + "..."
	}
	return fmt.Sprintf("*%s* `%s`\n```%s```", e.Category, e.ID.String(), content)
}
