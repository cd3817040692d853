package models

import (
	"fmt"
	"strings"
	"time"
)

// Window is a supported trend time window
type Window string

const (
	Window24h Window = "24h"
	Window48h Window = "48h"
	Window7d  Window = "7d"
)

var windowAliases = map[string]Window{
	"24h": Window24h, "24": Window24h, "1d": Window24h, "day": Window24h,
	"48h": Window48h, "48": Window48h, "2d": Window48h, "2days": Window48h,
	"7d": Window7d, "7": Window7d, "1w": Window7d, "week": Window7d,
}

// ParseWindow normalizes a window string or one of its aliases
func ParseWindow(raw string) (Window, error) {
	w, ok := windowAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", &InputError{Field: "timeframe", Reason: fmt.Sprintf("unsupported window %q (use 24h, 48h or 7d)", raw)}
	}
	return w, nil
}

// Hours returns the window length in hours
func (w Window) Hours() int {
	switch w {
	case Window24h:
		return 24
	case Window48h:
		return 48
	case Window7d:
		return 168
	}
	return 0
}

// Duration returns the window length
func (w Window) Duration() time.Duration {
	return time.Duration(w.Hours()) * time.Hour
}

// TrendingQuery is the inbound trending request.
// Window accepts both the timeframe and window parameter names.
type TrendingQuery struct {
	Topic       string `json:"query" form:"query"`
	Country     string `json:"country" form:"country"`
	Window      string `json:"timeframe" form:"timeframe"`
	WindowAlias string `json:"window,omitempty" form:"window"`
	Limit       int    `json:"limit" form:"limit" binding:"omitempty,min=0,max=50"`
}

// RawWindow returns whichever window parameter was supplied
func (q TrendingQuery) RawWindow() string {
	if strings.TrimSpace(q.Window) != "" {
		return q.Window
	}
	return q.WindowAlias
}

// InvalidateRequest selects cache entries to drop; empty fields match everything
type InvalidateRequest struct {
	Country string `json:"country" binding:"omitempty,len=2,alpha"`
	Query   string `json:"query" binding:"omitempty,max=100"`
}

// SearchRequest is one keyword search against the video provider
type SearchRequest struct {
	Query          string
	Country        string
	Language       string
	MaxResults     int
	PublishedAfter time.Time
}

// SearchPlan holds the tiered search terms for one topic/country
type SearchPlan struct {
	Topic    string     `json:"query"`
	Country  string     `json:"country"`
	Window   Window     `json:"timeframe"`
	Tiers    [][]string `json:"tiers"`
	Source   string     `json:"source"`
	CacheHit bool       `json:"cache_hit"`
}

// Terms flattens all tiers in order
func (p SearchPlan) Terms() []string {
	var terms []string
	for _, tier := range p.Tiers {
		terms = append(terms, tier...)
	}
	return terms
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
