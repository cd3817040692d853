package models

import "time"

// MomentumBreakdown exposes every term of the momentum score
type MomentumBreakdown struct {
	ViewsPerHour        float64 `json:"views_per_hour"`
	EngagementRate      float64 `json:"engagement_rate"`
	RecencyWeight       float64 `json:"recency_weight"`
	BaseMomentum        float64 `json:"base_momentum"`
	RelevanceMultiplier float64 `json:"relevance_multiplier"`
	TrendingBoost       float64 `json:"trending_boost"`
	FinalScore          float64 `json:"final_score"`
	AgeHours            float64 `json:"age_hours"`
}

// RankedItem is one ranked video inside a RankedResult
type RankedItem struct {
	Video          VideoRecord       `json:"video"`
	Momentum       MomentumBreakdown `json:"momentum"`
	RelevanceScore *float64          `json:"relevance_score"`
	Confidence     *float64          `json:"confidence,omitempty"`
	OriginCountry  string            `json:"origin_country,omitempty"`
	Rationale      string            `json:"rationale"`
	InTrendingFeed bool              `json:"in_trending_feed"`
	TrendingRank   int               `json:"trending_rank,omitempty"`
}

// PipelineMetadata describes how a RankedResult was produced
type PipelineMetadata struct {
	TotalCandidates        int      `json:"total_candidates"`
	VideosFromSearch       int      `json:"videos_from_search"`
	VideosFromTrendingFeed int      `json:"videos_from_trending_feed"`
	DuplicatesRemoved      int      `json:"duplicates_removed"`
	OutsideWindow          int      `json:"outside_window"`
	FailedQueries          int      `json:"failed_queries"`
	TrendingFeedFailed     bool     `json:"trending_feed_failed"`
	TiersUsed              int      `json:"tiers_used"`
	SearchTerms            []string `json:"search_terms"`
	ExpansionSource        string   `json:"expansion_source"`
	ScoredCount            int      `json:"scored_count"`
	CachedScores           int      `json:"cached_scores"`
	UnscoredCount          int      `json:"unscored_count"`
	BatchesSent            int      `json:"batches_sent"`
	BatchesSkipped         int      `json:"batches_skipped"`
	BatchesFailed          int      `json:"batches_failed"`
	EstimatedCost          float64  `json:"estimated_cost"`
	Degraded               bool     `json:"degraded"`
	Message                string   `json:"message,omitempty"`
	ProcessingTimeMS       int64    `json:"processing_time_ms"`
}

// RankedResult is the cached outcome of one pipeline run.
// It is never mutated after it has been written to the cache.
type RankedResult struct {
	Topic       string           `json:"topic"`
	Country     string           `json:"country"`
	Window      Window           `json:"window"`
	Items       []RankedItem     `json:"items"`
	Metadata    PipelineMetadata `json:"metadata"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// =============================================================================
// API Responses
// =============================================================================

// TrendingResponse is returned by the trending endpoint
type TrendingResponse struct {
	Success   bool             `json:"success"`
	Query     string           `json:"query"`
	Country   string           `json:"country"`
	Window    Window           `json:"window"`
	Algorithm string           `json:"algorithm"`
	Results   []VideoResult    `json:"results"`
	Metadata  ResponseMetadata `json:"metadata"`
}

// VideoResult is one ranked video in the API response
type VideoResult struct {
	Rank           int       `json:"rank"`
	VideoID        string    `json:"video_id"`
	Title          string    `json:"title"`
	Channel        string    `json:"channel"`
	ChannelCountry string    `json:"channel_country,omitempty"`
	Views          int64     `json:"views"`
	Likes          int64     `json:"likes"`
	Comments       int64     `json:"comments"`
	EngagementRate float64   `json:"engagement_rate"` // percent
	MomentumScore  float64   `json:"momentum_score"`
	RelevanceScore *float64  `json:"relevance_score"`
	Confidence     *float64  `json:"confidence,omitempty"`
	OriginCountry  string    `json:"origin_country,omitempty"`
	Rationale      string    `json:"rationale"`
	InTrendingFeed bool      `json:"in_trending_feed"`
	TrendingRank   int       `json:"trending_rank,omitempty"`
	URL            string    `json:"url"`
	ThumbnailURL   string    `json:"thumbnail_url,omitempty"`
	PublishedAt    time.Time `json:"published_at"`
	AgeHours       float64   `json:"age_hours"`
}

// ResponseMetadata carries pipeline transparency fields
type ResponseMetadata struct {
	TotalCandidates        int       `json:"total_candidates"`
	ScoredCount            int       `json:"scored_count"`
	CacheHit               bool      `json:"cache_hit"`
	TrendingFeedMatches    int       `json:"trending_feed_matches"`
	EstimatedCost          float64   `json:"estimated_cost"`
	VideosFromSearch       int       `json:"videos_from_search"`
	VideosFromTrendingFeed int       `json:"videos_from_trending_feed"`
	DuplicatesRemoved      int       `json:"duplicates_removed"`
	SearchTerms            []string  `json:"search_terms,omitempty"`
	Count                  int       `json:"count"`
	Degraded               bool      `json:"degraded"`
	Message                string    `json:"message,omitempty"`
	GeneratedAt            time.Time `json:"generated_at"`
	ProcessingTimeMS       int64     `json:"processing_time_ms"`
}
