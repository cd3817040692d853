package models

import "time"

// OriginUnknown is used when the model cannot tell where a video comes from
const OriginUnknown = "UNKNOWN"

// CountryRelevanceScore is one semantic judgment of a video for a country.
// Rows are append-only; the current score is the newest row that is still
// inside the validity window.
type CountryRelevanceScore struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	VideoID       string    `gorm:"size:32;index:idx_relevance_lookup,priority:1" json:"video_id"`
	Country       string    `gorm:"size:2;index:idx_relevance_lookup,priority:2" json:"country"`
	Score         float64   `json:"relevance_score"`
	Rationale     string    `json:"rationale"`
	Confidence    float64   `json:"confidence"`
	OriginCountry string    `gorm:"size:16" json:"origin_country,omitempty"`
	Model         string    `gorm:"size:64" json:"model"`
	AnalyzedAt    time.Time `gorm:"index:idx_relevance_lookup,priority:3" json:"analyzed_at"`
}

// IsFresh reports whether the score is still usable at now
func (s CountryRelevanceScore) IsFresh(now time.Time, validity time.Duration) bool {
	return !s.AnalyzedAt.Before(now.Add(-validity))
}

// LLM usage statuses
const (
	UsageStatusOK         = "ok"
	UsageStatusParseError = "parse_error"
	UsageStatusFailed     = "failed"
)

// LLMUsageLog records one scoring call and what it cost
type LLMUsageLog struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	RequestID    string    `gorm:"size:36;uniqueIndex" json:"request_id"`
	Model        string    `gorm:"size:64" json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostEUR      float64   `json:"cost_eur"`
	Country      string    `gorm:"size:2" json:"country"`
	VideoCount   int       `json:"video_count"`
	Status       string    `gorm:"size:16" json:"status"`
	CreatedAt    time.Time `gorm:"index:idx_usage_created_at" json:"created_at"`
}

// TableName keeps the historical table name
func (LLMUsageLog) TableName() string {
	return "llm_usage_log"
}

// BudgetStatus is a point-in-time view of the monthly LLM budget
type BudgetStatus struct {
	Month       string  `json:"month"`
	Budget      float64 `json:"budget_eur"`
	Spent       float64 `json:"spent_eur"`
	Reserved    float64 `json:"reserved_eur"`
	Remaining   float64 `json:"remaining_eur"`
	PercentUsed float64 `json:"percent_used"`
}
