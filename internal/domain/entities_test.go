package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorConstants(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"ErrInvalidArgument", ErrInvalidArgument, "invalid argument"},
		{"ErrUnauthorized", ErrUnauthorized, "unauthorized"},
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrConflict", ErrConflict, "conflict"},
		{"ErrPayloadTooLarge", ErrPayloadTooLarge, "payload too large"},
		{"ErrRateLimited", ErrRateLimited, "rate limited"},
		{"ErrUpstream", ErrUpstream, "upstream failure"},
		{"ErrUpstreamParse", ErrUpstreamParse, "upstream response unparseable"},
		{"ErrInternal", ErrInternal, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.expected {
				t.Errorf("Expected %s to be %q, got %q", tt.name, tt.expected, tt.err.Error())
			}
		})
	}
}

func TestWrappedSentinelsStillMatch(t *testing.T) {
	err := fmt.Errorf("op=diagnosis.Get: %w", fmt.Errorf("%w: diagnosis abc", ErrNotFound))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected wrapped ErrNotFound to match")
	}
	if errors.Is(err, ErrUpstream) {
		t.Fatalf("unexpected match with ErrUpstream")
	}
}

func TestInterviewSession_NextQuestion(t *testing.T) {
	s := InterviewSession{Questions: []InterviewQuestion{{Index: 0, Question: "a"}, {Index: 1, Question: "b"}, {Index: 2, Question: "c"}}}

	q, ok := s.NextQuestion()
	if !ok || q.Index != 0 {
		t.Fatalf("want first question, got %+v ok=%v", q, ok)
	}

	// Answers may arrive out of order; the lowest unanswered index wins.
	s.Answers = append(s.Answers, InterviewAnswer{QuestionIndex: 1}, InterviewAnswer{QuestionIndex: 0})
	q, ok = s.NextQuestion()
	if !ok || q.Index != 2 {
		t.Fatalf("want question 2, got %+v ok=%v", q, ok)
	}
	if !s.Answered(1) || s.Answered(2) {
		t.Fatalf("Answered bookkeeping mismatch")
	}

	s.Answers = append(s.Answers, InterviewAnswer{QuestionIndex: 2})
	if _, ok := s.NextQuestion(); ok {
		t.Fatalf("expected no remaining question")
	}
}

func TestShareKind_Valid(t *testing.T) {
	for _, k := range []ShareKind{ShareResult, ShareInterview, ShareProfile} {
		if !k.Valid() {
			t.Errorf("%q should be valid", k)
		}
	}
	if ShareKind("diagnosis").Valid() {
		t.Errorf("unknown kind should be invalid")
	}
}
