package utils

import (
	"testing"
	"time"
)

func TestRankByMomentumScenario(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	candidates := []RankCandidate{
		{ID: "B", Views: 500000, Likes: 1000, Comments: 50, PublishedAt: now.Add(-40 * time.Hour), Relevance: ptr(0.3)},
		{ID: "A", Views: 100000, Likes: 5000, Comments: 200, PublishedAt: now.Add(-10 * time.Hour), Relevance: ptr(0.9), InTrendingFeed: true},
	}

	ranked := RankByMomentum(candidates, 48, now, 10, DefaultMomentumWeights())
	if len(ranked) != 2 {
		t.Fatalf("expected 2 results, got %d", len(ranked))
	}
	if ranked[0].ID != "A" || ranked[1].ID != "B" {
		t.Errorf("order = [%s %s], expected [A B]", ranked[0].ID, ranked[1].ID)
	}
	if ranked[0].Index != 1 {
		t.Errorf("Index = %d, expected 1", ranked[0].Index)
	}
	if ranked[0].AgeHours != 10 {
		t.Errorf("AgeHours = %v, expected 10", ranked[0].AgeHours)
	}
}

func TestRankByMomentumTieBreaks(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	zero := MomentumWeights{DecayHours: 24, RelevanceBase: 0.5, RelevanceSpan: 1.5, TrendingBoost: 1.5}

	tests := []struct {
		name       string
		candidates []RankCandidate
		expected   []string
	}{
		{
			name: "Higher views wins on equal score",
			candidates: []RankCandidate{
				{ID: "low", Views: 10, PublishedAt: now.Add(-time.Hour)},
				{ID: "high", Views: 20, PublishedAt: now.Add(-time.Hour)},
			},
			expected: []string{"high", "low"},
		},
		{
			name: "Newer wins on equal score and views",
			candidates: []RankCandidate{
				{ID: "old", Views: 10, PublishedAt: now.Add(-5 * time.Hour)},
				{ID: "new", Views: 10, PublishedAt: now.Add(-time.Hour)},
			},
			expected: []string{"new", "old"},
		},
		{
			name: "Identifier decides full ties",
			candidates: []RankCandidate{
				{ID: "b", Views: 10, PublishedAt: now},
				{ID: "a", Views: 10, PublishedAt: now},
			},
			expected: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranked := RankByMomentum(tt.candidates, 24, now, 0, zero)
			for i, id := range tt.expected {
				if ranked[i].ID != id {
					t.Errorf("position %d = %s, expected %s", i, ranked[i].ID, id)
				}
			}
		})
	}
}

func TestRankByMomentumLimitAndDeterminism(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var candidates []RankCandidate
	for i := 0; i < 30; i++ {
		candidates = append(candidates, RankCandidate{
			ID:          string(rune('a'+i%26)) + string(rune('0'+i/26)),
			Views:       int64(1000 * (i%7 + 1)),
			Likes:       int64(10 * (i % 3)),
			PublishedAt: now.Add(-time.Duration(i%5) * time.Hour),
		})
	}

	first := RankByMomentum(candidates, 24, now, 10, DefaultMomentumWeights())
	second := RankByMomentum(candidates, 24, now, 10, DefaultMomentumWeights())

	if len(first) != 10 {
		t.Fatalf("expected 10 results, got %d", len(first))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("position %d differs between runs: %s vs %s", i, first[i].ID, second[i].ID)
		}
		if i > 0 && first[i].Momentum.FinalScore > first[i-1].Momentum.FinalScore {
			t.Errorf("position %d scores higher than position %d", i, i-1)
		}
	}
}
