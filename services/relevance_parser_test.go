package services

import (
	"errors"
	"strings"
	"testing"

	"trends-backend/models"
)

func TestParseRelevanceReply(t *testing.T) {
	batch := map[string]bool{"a": true, "b": true, "c": true}

	tests := []struct {
		name      string
		content   string
		wantIDs   []string
		rejected  int
		malformed bool
	}{
		{
			name:    "valid",
			content: `{"results":[{"video_id":"a","score":0.5,"confidence":0.7,"rationale":"r","origin":"DE"}]}`,
			wantIDs: []string{"a"},
		},
		{
			name:    "fenced",
			content: "```json\n{\"results\":[{\"video_id\":\"b\",\"score\":1,\"confidence\":1,\"rationale\":\"r\",\"origin\":\"US\"}]}\n```",
			wantIDs: []string{"b"},
		},
		{
			name:     "missing score",
			content:  `{"results":[{"video_id":"a","confidence":0.7,"rationale":"r"}]}`,
			rejected: 1,
		},
		{
			name:     "negative score",
			content:  `{"results":[{"video_id":"a","score":-0.1,"confidence":0.7}]}`,
			rejected: 1,
		},
		{
			name:     "score as string",
			content:  `{"results":[{"video_id":"a","score":"0.5","confidence":0.7}]}`,
			rejected: 1,
		},
		{
			name:     "unknown and duplicate ids",
			content:  `{"results":[{"video_id":"z","score":0.5,"confidence":0.5},{"video_id":"c","score":0.5,"confidence":0.5},{"video_id":"c","score":0.9,"confidence":0.5}]}`,
			wantIDs:  []string{"c"},
			rejected: 2,
		},
		{
			name:      "bare array",
			content:   `[{"video_id":"a","score":0.5,"confidence":0.5}]`,
			malformed: true,
		},
		{
			name:      "no results key",
			content:   `{"scores":[]}`,
			malformed: true,
		},
		{
			name:      "not json",
			content:   `Here are the scores: a=0.5`,
			malformed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rejected, err := parseRelevanceReply(tt.content, batch)
			if tt.malformed {
				if !errors.Is(err, ErrMalformedReply) {
					t.Fatalf("expected ErrMalformedReply, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rejected != tt.rejected {
				t.Errorf("rejected = %d, want %d", rejected, tt.rejected)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d entries, want %d", len(got), len(tt.wantIDs))
			}
			for _, id := range tt.wantIDs {
				if _, ok := got[id]; !ok {
					t.Errorf("missing entry for %s", id)
				}
			}
		})
	}
}

func TestParseRelevanceReplyKeepsFirstDuplicate(t *testing.T) {
	got, _, err := parseRelevanceReply(`{"results":[{"video_id":"c","score":0.2,"confidence":0.5},{"video_id":"c","score":0.9,"confidence":0.5}]}`, map[string]bool{"c": true})
	if err != nil {
		t.Fatal(err)
	}
	if got["c"].Score != 0.2 {
		t.Errorf("score = %v, want 0.2", got["c"].Score)
	}
}

func TestNormalizeOrigin(t *testing.T) {
	tests := map[string]string{
		"de":      "DE",
		" jp ":    "JP",
		"":        models.OriginUnknown,
		"unknown": models.OriginUnknown,
		"U5":      models.OriginUnknown,
		"USA":     models.OriginUnknown,
	}
	for in, want := range tests {
		if got := normalizeOrigin(in); got != want {
			t.Errorf("normalizeOrigin(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncateRationale(t *testing.T) {
	long := strings.Repeat("ä", maxRationaleRunes+10)
	if got := []rune(truncateRationale(long)); len(got) != maxRationaleRunes {
		t.Errorf("len = %d, want %d", len(got), maxRationaleRunes)
	}
	if got := truncateRationale("short"); got != "short" {
		t.Errorf("got %q", got)
	}
}
