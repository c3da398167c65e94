// Package normalize turns raw model completions into structured values.
//
// Model output is not a trustworthy grammar. Parse applies an ordered ladder
// of recoveries and stops at the first one that yields a value of the
// requested shape. It never panics and never returns an error: the caller
// gets a value or OK=false and supplies its own placeholder.
package normalize

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// Shape is the top-level JSON kind a caller expects.
type Shape int

const (
	ShapeObject Shape = iota
	ShapeArray
)

func (s Shape) String() string {
	if s == ShapeArray {
		return "array"
	}
	return "object"
}

// Rung names the ladder step that produced a value.
type Rung string

const (
	RungDirect   Rung = "direct"
	RungFenced   Rung = "fenced"
	RungSliced   Rung = "sliced"
	RungNested   Rung = "nested"
	RungRepaired Rung = "repaired"
	RungSplit    Rung = "split"
	RungNone     Rung = "none"
)

// Result is the outcome of Parse. Value is map[string]any for ShapeObject
// and []any for ShapeArray when OK is true.
type Result struct {
	Value any
	Rung  Rung
	OK    bool
}

var (
	fenceRe   = regexp.MustCompile("(?s)^\\s*```[A-Za-z0-9_+.-]*[ \\t]*\\r?\\n?(.*?)\\r?\\n?\\s*```\\s*$")
	undefRe   = regexp.MustCompile(`\bundefined\b`)
	bareKeyRe = regexp.MustCompile(`([{,])\s*([A-Za-z0-9_]+)\s*:`)
	subjectRe = regexp.MustCompile(`\n\s*Subject:`)
)

const subjectTag = "Subject:"

// Parse runs the fallback ladder over raw for the expected shape.
func Parse(raw string, shape Shape) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Rung: RungNone}
		}
	}()

	content, fenced := stripFence(raw)

	if v, ok := parseShaped(content, shape); ok {
		rung := RungDirect
		if fenced {
			rung = RungFenced
		}
		return withNested(v, rung)
	}

	if v, ok := parseShaped(slice(content, shape), shape); ok {
		return withNested(v, RungSliced)
	}

	if shape != ShapeArray {
		return Result{Rung: RungNone}
	}

	repaired := repair(content)
	if v, ok := parseShaped(repaired, shape); ok {
		return withNested(v, RungRepaired)
	}
	if v, ok := parseShaped(slice(repaired, shape), shape); ok {
		return withNested(v, RungRepaired)
	}

	if parts := splitEmails(content); len(parts) > 0 {
		return Result{Value: parts, Rung: RungSplit, OK: true}
	}

	return Result{Rung: RungNone}
}

// Object parses raw expecting a JSON object.
func Object(raw string) (map[string]any, bool) {
	res := Parse(raw, ShapeObject)
	if !res.OK {
		return nil, false
	}
	m, ok := res.Value.(map[string]any)
	return m, ok
}

// Array parses raw expecting a JSON array.
func Array(raw string) ([]any, bool) {
	res := Parse(raw, ShapeArray)
	if !res.OK {
		return nil, false
	}
	a, ok := res.Value.([]any)
	return a, ok
}

// Text cleans a free-text completion: a wrapping fence is removed and
// surrounding whitespace trimmed.
func Text(raw string) string {
	content, _ := stripFence(raw)
	return strings.TrimSpace(content)
}

// shaped is a parsed value plus, when an object arrived where an array was
// expected, the nested list adopted from it.
type shaped struct {
	value  any
	nested bool
}

func withNested(v shaped, rung Rung) Result {
	if v.nested {
		rung = RungNested
	}
	return Result{Value: v.value, Rung: rung, OK: true}
}

// stripFence removes a single leading/trailing ``` block, tolerating a
// language tag on the opening fence.
func stripFence(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return trimmed, false
}

func parseShaped(s string, shape Shape) (shaped, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return shaped{}, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return shaped{}, false
	}

	switch shape {
	case ShapeObject:
		if m, ok := v.(map[string]any); ok {
			return shaped{value: m}, true
		}
	case ShapeArray:
		if a, ok := v.([]any); ok {
			return shaped{value: a}, true
		}
		if _, ok := v.(map[string]any); ok {
			if a, ok := firstList([]byte(s)); ok {
				return shaped{value: a, nested: true}, true
			}
		}
	}
	return shaped{}, false
}

// slice cuts s from the first opening bracket of the shape to the last
// closing one. It returns "" when either is missing.
func slice(s string, shape Shape) string {
	open, closing := "{", "}"
	if shape == ShapeArray {
		open, closing = "[", "]"
	}
	start := strings.Index(s, open)
	end := strings.LastIndex(s, closing)
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// firstList walks the top-level keys of a JSON object in document order and
// returns the first value that is a non-empty list.
func firstList(data []byte) ([]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil, false
	}
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, false
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, false
		}
		if len(raw) == 0 || raw[0] != '[' {
			continue
		}
		var list []any
		if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
			return list, true
		}
	}
	return nil, false
}

// repair applies low-fidelity fixes for loosely quoted output.
func repair(s string) string {
	s = strings.ReplaceAll(s, "'", `"`)
	s = undefRe.ReplaceAllString(s, "null")
	return bareKeyRe.ReplaceAllString(s, `$1"$2":`)
}

// splitEmails reconstructs a list from prose that contains Subject: headers,
// one entry per header. Text before the first header is dropped.
func splitEmails(s string) []any {
	idx := strings.Index(s, subjectTag)
	if idx < 0 {
		return nil
	}
	var out []any
	for _, part := range subjectRe.Split("\n"+s[idx:], -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, subjectTag) {
			part = subjectTag + " " + part
		}
		out = append(out, part)
	}
	return out
}
