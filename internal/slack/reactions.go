package slack

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// ReactionEvent is one reaction on a posted message. It is read either from
// the slack-forwarder wrapper ({"metadata": {...}}) or from a raw Slack
// reaction_added event.
type ReactionEvent struct {
	Reaction  string
	UserID    string
	Channel   string
	MessageTS string
	// Removed is set for reaction_removed events, which never change a review.
	Removed bool
}

// ReviewVerdict is what a reviewer meant by a reaction.
type ReviewVerdict string

const (
	VerdictApprove ReviewVerdict = "approve"
	VerdictReject  ReviewVerdict = "reject"
	VerdictSkip    ReviewVerdict = "skip"
	VerdictUnknown ReviewVerdict = "unknown"
)

var verdicts = map[string]ReviewVerdict{
	"+1":               VerdictApprove,
	"thumbsup":         VerdictApprove,
	"white_check_mark": VerdictApprove,
	"heavy_check_mark": VerdictApprove,
	"-1":               VerdictReject,
	"thumbsdown":       VerdictReject,
	"x":                VerdictReject,
	"shrug":            VerdictSkip,
	"thinking_face":    VerdictSkip,
}

// ParseReaction maps an emoji name to a verdict. Surrounding colons and
// skin-tone modifiers (":+1::skin-tone-3:") are ignored.
func ParseReaction(reaction string) ReviewVerdict {
	if v, ok := verdicts[normalizeEmoji(reaction)]; ok {
		return v
	}
	return VerdictUnknown
}

func normalizeEmoji(reaction string) string {
	r := strings.Trim(strings.TrimSpace(reaction), ":")
	if i := strings.Index(r, "::skin-tone-"); i >= 0 {
		r = r[:i]
	}
	return strings.ToLower(r)
}

type forwarded struct {
	Metadata map[string]string `json:"metadata"`

	// Raw Slack event fields.
	Type     string `json:"type"`
	Reaction string `json:"reaction"`
	User     string `json:"user"`
	Item     struct {
		Channel string `json:"channel"`
		TS      string `json:"ts"`
	} `json:"item"`
}

// ParseReactionEvent decodes a reaction payload received over NATS.
func ParseReactionEvent(data []byte, logger *slog.Logger) (*ReactionEvent, error) {
	var f forwarded
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse reaction payload: %w", err)
	}

	var evt ReactionEvent
	if len(f.Metadata) > 0 {
		evt = ReactionEvent{
			Reaction:  f.Metadata["text"],
			UserID:    f.Metadata["user_id"],
			Channel:   f.Metadata["channel_id"],
			MessageTS: f.Metadata["message_ts"],
			Removed:   f.Metadata["event_type"] == "reaction_removed",
		}
	} else {
		evt = ReactionEvent{
			Reaction:  f.Reaction,
			UserID:    f.User,
			Channel:   f.Item.Channel,
			MessageTS: f.Item.TS,
			Removed:   f.Type == "reaction_removed",
		}
	}
	evt.Reaction = normalizeEmoji(evt.Reaction)

	if evt.MessageTS == "" {
		logger.Debug("reaction without message_ts", "reaction", evt.Reaction)
	}
	return &evt, nil
}
