package services

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"trends-backend/config"
	"trends-backend/models"
)

// VideoSearcher is the keyword search and statistics side of the video provider
type VideoSearcher interface {
	SearchVideos(ctx context.Context, req models.SearchRequest) ([]models.VideoRecord, error)
	VideoDetails(ctx context.Context, ids []string) ([]models.VideoRecord, error)
}

// TrendingFeedFetcher pulls the official trending feed
type TrendingFeedFetcher interface {
	TrendingFeed(ctx context.Context, country string, max int) ([]models.TrendingVideo, error)
}

// TermSource produces topic variants for a country; an empty result means
// "nothing useful" and lets the next source try.
type TermSource interface {
	Name() string
	ExpandTerms(ctx context.Context, topic string, country config.CountryProfile, window models.Window, max int) ([]string, error)
}

// sourceTimeouter lets a TermSource override the expander's default per-call timeout
type sourceTimeouter interface {
	Timeout() time.Duration
}

// ChatCompleter is the part of the OpenAI client the services use
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// RelevanceStore persists relevance judgments
type RelevanceStore interface {
	LoadCurrent(ctx context.Context, country string, videoIDs []string, since time.Time) (map[string]models.CountryRelevanceScore, error)
	Append(ctx context.Context, scores []models.CountryRelevanceScore) error
}

// FeedStore persists feed captures and video snapshots
type FeedStore interface {
	AppendEntries(ctx context.Context, entries []models.TrendingFeedEntry) error
	RecentEntries(ctx context.Context, country string, since time.Time) ([]models.TrendingFeedEntry, error)
	UpsertVideos(ctx context.Context, videos []models.VideoRecord) error
}

// UsageRecorder appends LLM usage rows
type UsageRecorder interface {
	Append(ctx context.Context, entry *models.LLMUsageLog) error
}

// TrendingAnalyzer is what the HTTP layer needs from the orchestrator
type TrendingAnalyzer interface {
	GetTrending(ctx context.Context, q models.TrendingQuery) (*models.TrendingResponse, error)
	SearchTerms(ctx context.Context, q models.TrendingQuery) (*models.SearchPlan, error)
	TrendingFeed(ctx context.Context, country string) ([]models.TrendingVideo, error)
	InvalidateCache(ctx context.Context, req models.InvalidateRequest) (int, error)
	BudgetStatus() models.BudgetStatus
}
