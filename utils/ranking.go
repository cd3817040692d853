package utils

import (
	"sort"
	"time"
)

// RankCandidate is one video as seen by the ranker
type RankCandidate struct {
	ID             string
	Views          int64
	Likes          int64
	Comments       int64
	PublishedAt    time.Time
	Relevance      *float64
	InTrendingFeed bool
}

// Ranked is a candidate with its computed momentum.
// Index points back into the slice passed to RankByMomentum.
type Ranked struct {
	Index    int
	ID       string
	AgeHours float64
	Momentum Momentum
}

// AgeHours returns hours since publish at now, never negative
func AgeHours(publishedAt, now time.Time) float64 {
	if publishedAt.IsZero() {
		return 0
	}
	h := now.Sub(publishedAt).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// RankByMomentum scores and orders candidates, returning at most limit entries
// (limit <= 0 returns all). Ties break by views, then newer publish time, then
// id so that the order is total and deterministic.
func RankByMomentum(candidates []RankCandidate, windowHours float64, now time.Time, limit int, w MomentumWeights) []Ranked {
	ranked := make([]Ranked, len(candidates))
	for i, c := range candidates {
		age := AgeHours(c.PublishedAt, now)
		ranked[i] = Ranked{
			Index:    i,
			ID:       c.ID,
			AgeHours: age,
			Momentum: ComputeMomentum(MomentumInput{
				Views:          c.Views,
				Likes:          c.Likes,
				Comments:       c.Comments,
				AgeHours:       age,
				WindowHours:    windowHours,
				Relevance:      c.Relevance,
				InTrendingFeed: c.InTrendingFeed,
			}, w),
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Momentum.FinalScore != b.Momentum.FinalScore {
			return a.Momentum.FinalScore > b.Momentum.FinalScore
		}
		ca, cb := candidates[a.Index], candidates[b.Index]
		if ca.Views != cb.Views {
			return ca.Views > cb.Views
		}
		if !ca.PublishedAt.Equal(cb.PublishedAt) {
			return ca.PublishedAt.After(cb.PublishedAt)
		}
		return a.ID < b.ID
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
