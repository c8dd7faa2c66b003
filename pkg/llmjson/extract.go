// Package llmjson recovers a JSON payload from free-form language model output.
//
// Models frequently wrap the JSON they were asked for in prose or in a
// markdown code fence. Extract tries an ordered list of strategies and reports
// which one succeeded, or a *ParseError describing why every one of them failed.
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Method names the strategy that produced an extraction.
type Method string

const (
	MethodDirect Method = "direct"
	MethodFenced Method = "fenced"
	MethodBraces Method = "braces"
)

var (
	// ErrEmptyText is reported when the input is empty or whitespace only.
	ErrEmptyText = errors.New("empty text")
	// ErrNoJSON is reported when no strategy produced valid JSON.
	ErrNoJSON = errors.New("no json found")
)

// Strategy selects the candidate substring that should hold the JSON value.
type Strategy struct {
	Method Method
	// Candidate returns false when the strategy does not apply to text.
	Candidate func(text string) (string, bool)
}

// fencePattern matches the first ``` block, optionally tagged json.
var fencePattern = regexp.MustCompile("(?s)```(?:[jJ][sS][oO][nN])?[ \t]*\r?\n?(.*?)```")

var strategies = []Strategy{
	{Method: MethodDirect, Candidate: directCandidate},
	{Method: MethodFenced, Candidate: fencedCandidate},
	{Method: MethodBraces, Candidate: bracesCandidate},
}

// Strategies returns the strategies in the order Extract applies them.
func Strategies() []Strategy { return slices.Clone(strategies) }

func directCandidate(text string) (string, bool) {
	return strings.TrimSpace(text), true
}

func fencedCandidate(text string) (string, bool) {
	m := fencePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// bracesCandidate slices from the first '{' to the last '}'. It does not track
// depth or string literals, so "{a} prose {b}" yields an invalid candidate.
func bracesCandidate(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// Extraction is a successfully recovered JSON value.
type Extraction struct {
	Method Method
	Raw    json.RawMessage
}

// Attempt records why one strategy was rejected.
type Attempt struct {
	Method Method
	Reason string
}

// ParseError carries the original text so callers can log what the model returned.
type ParseError struct {
	Text     string
	Attempts []Attempt
	Err      error
}

func (e *ParseError) Error() string {
	if len(e.Attempts) == 0 {
		return "llmjson: " + e.Err.Error()
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Method, a.Reason))
	}
	return fmt.Sprintf("llmjson: %v (%s)", e.Err, strings.Join(parts, "; "))
}

func (e *ParseError) Unwrap() error { return e.Err }

// Snippet returns at most n runes of the original text for log lines.
func (e *ParseError) Snippet(n int) string {
	r := []rune(e.Text)
	if len(r) <= n {
		return e.Text
	}
	return string(r[:n]) + "..."
}

// Extract applies the strategies in order and returns the first candidate that
// is valid JSON. The value is not checked against any schema.
func Extract(text string) (Extraction, error) {
	if strings.TrimSpace(text) == "" {
		return Extraction{}, &ParseError{Text: text, Err: ErrEmptyText}
	}
	attempts := make([]Attempt, 0, len(strategies))
	for _, s := range strategies {
		cand, ok := s.Candidate(text)
		if !ok {
			attempts = append(attempts, Attempt{Method: s.Method, Reason: "not applicable"})
			continue
		}
		var raw json.RawMessage
		if err := json.Unmarshal([]byte(cand), &raw); err != nil {
			attempts = append(attempts, Attempt{Method: s.Method, Reason: err.Error()})
			continue
		}
		return Extraction{Method: s.Method, Raw: raw}, nil
	}
	return Extraction{}, &ParseError{Text: text, Attempts: attempts, Err: ErrNoJSON}
}

// Decode extracts JSON from text and unmarshals it into v. A value that does
// not fit v is reported as a *ParseError as well.
func Decode(text string, v any) (Method, error) {
	ext, err := Extract(text)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(ext.Raw, v); err != nil {
		return ext.Method, &ParseError{Text: text, Attempts: []Attempt{{Method: ext.Method, Reason: err.Error()}}, Err: err}
	}
	return ext.Method, nil
}
