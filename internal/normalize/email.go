package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Email is one generated email as the model emitted it. Models return either
// bare strings or objects carrying the text in a field; both reduce to plain
// text here so consumers never re-check the representation.
type Email interface {
	Text() string
}

// RawEmail is an email emitted as a bare string.
type RawEmail string

func (e RawEmail) Text() string { return strings.TrimSpace(string(e)) }

// StructuredEmail is an email emitted as an object.
type StructuredEmail struct {
	Subject string
	Content string
	Fields  map[string]any
}

// Text returns the content, prefixed with a Subject line when the subject
// was carried separately. Objects without any content field render as
// compact JSON.
func (e StructuredEmail) Text() string {
	content := strings.TrimSpace(e.Content)
	if content == "" {
		if hasContentKey(e.Fields) {
			return ""
		}
		b, err := json.Marshal(e.Fields)
		if err != nil {
			return ""
		}
		return string(b)
	}
	if e.Subject != "" && !strings.HasPrefix(content, subjectTag) {
		return fmt.Sprintf("%s %s\n\n%s", subjectTag, e.Subject, content)
	}
	return content
}

// contentKeys are checked in order for the email body of an object.
var contentKeys = []string{"content", "body", "email", "text"}

// Emails converts parsed list items into the tagged variant. Items that are
// neither strings nor objects are rendered with fmt.
func Emails(items []any) []Email {
	out := make([]Email, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, RawEmail(v))
		case map[string]any:
			se := StructuredEmail{Fields: v}
			for _, k := range contentKeys {
				if s, ok := v[k].(string); ok {
					se.Content = s
					break
				}
			}
			if s, ok := v["subject"].(string); ok {
				se.Subject = strings.TrimSpace(s)
			}
			out = append(out, se)
		case nil:
		default:
			out = append(out, RawEmail(fmt.Sprint(v)))
		}
	}
	return out
}

// Texts reduces parsed list items to non-empty email texts.
func Texts(items []any) []string {
	var out []string
	for _, e := range Emails(items) {
		if t := e.Text(); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func hasContentKey(fields map[string]any) bool {
	for _, k := range contentKeys {
		if _, ok := fields[k].(string); ok {
			return true
		}
	}
	return false
}
