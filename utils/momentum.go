package utils

import (
	"math"
)

// =============================================================================
// Momentum Score
// =============================================================================

// MomentumWeights are the tunable constants of the momentum formula
type MomentumWeights struct {
	ViewsPerHour  float64 // w1
	Engagement    float64 // w2
	Recency       float64 // w3
	DecayHours    float64
	RelevanceBase float64
	RelevanceSpan float64
	TrendingBoost float64
}

// DefaultMomentumWeights returns the production weights
func DefaultMomentumWeights() MomentumWeights {
	return MomentumWeights{
		ViewsPerHour:  0.6,
		Engagement:    0.3,
		Recency:       0.1,
		DecayHours:    24,
		RelevanceBase: 0.5,
		RelevanceSpan: 1.5,
		TrendingBoost: 1.5,
	}
}

// MomentumInput is everything the formula needs about one video
type MomentumInput struct {
	Views          int64
	Likes          int64
	Comments       int64
	AgeHours       float64
	WindowHours    float64
	Relevance      *float64 // nil when unscored
	InTrendingFeed bool
}

// Momentum is the score with every intermediate term
type Momentum struct {
	ViewsPerHour        float64
	EngagementRate      float64
	RecencyWeight       float64
	BaseMomentum        float64
	RelevanceMultiplier float64
	TrendingBoost       float64
	FinalScore          float64
}

// ComputeMomentum scores one video.
// WindowHours must be positive; callers validate the window before ranking.
func ComputeMomentum(in MomentumInput, w MomentumWeights) Momentum {
	var m Momentum
	views := float64(max(in.Views, 0))

	if in.WindowHours > 0 {
		m.ViewsPerHour = views / in.WindowHours
	}
	m.EngagementRate = EngagementRate(in.Views, in.Likes, in.Comments)
	m.RecencyWeight = CalculateRecencyFactor(in.AgeHours, w.DecayHours)

	m.BaseMomentum = w.ViewsPerHour*m.ViewsPerHour +
		w.Engagement*m.EngagementRate*views +
		w.Recency*views*m.RecencyWeight

	m.RelevanceMultiplier = RelevanceMultiplier(in.Relevance, w)
	m.TrendingBoost = 1.0
	if in.InTrendingFeed {
		m.TrendingBoost = w.TrendingBoost
	}

	m.FinalScore = m.BaseMomentum * m.RelevanceMultiplier * m.TrendingBoost
	return m
}

// EngagementRate is (likes + comments) / max(views, 1), and 0 when there are no views
func EngagementRate(views, likes, comments int64) float64 {
	if views <= 0 {
		return 0
	}
	return float64(max(likes, 0)+max(comments, 0)) / float64(max(views, 1))
}

// CalculateRecencyFactor is exp(-age/decay); negative ages count as brand new
func CalculateRecencyFactor(ageHours, decayHours float64) float64 {
	if ageHours < 0 {
		ageHours = 0
	}
	if decayHours <= 0 {
		return 1
	}
	return math.Exp(-ageHours / decayHours)
}

// RelevanceMultiplier maps a [0,1] relevance score to base + r*span.
// Unscored videos get a neutral 1.0.
func RelevanceMultiplier(relevance *float64, w MomentumWeights) float64 {
	if relevance == nil {
		return 1.0
	}
	r := math.Min(math.Max(*relevance, 0), 1)
	return w.RelevanceBase + r*w.RelevanceSpan
}
