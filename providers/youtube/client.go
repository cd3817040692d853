// Package youtube is a small client for the YouTube Data API v3 endpoints the
// trend pipeline needs.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"trends-backend/logging"
	"trends-backend/metrics"
	"trends-backend/models"
)

const (
	providerName = "youtube"
	maxPageSize  = 50
	maxBodyBytes = 10 << 20
)

// ErrMissingAPIKey is returned by every call when no key is configured
var ErrMissingAPIKey = errors.New("youtube api key not configured")

type Config struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	BreakerFailures   uint32
	BreakerTimeout    time.Duration
}

// Client calls the Data API with quota pacing and a circuit breaker
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	now     func() time.Time
}

// NewClient builds a client; httpClient may be nil
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	name := "youtube-api"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
		IsSuccessful: isBreakerSuccess,
	})

	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		breaker: breaker,
		now:     time.Now,
	}
}

// isBreakerSuccess keeps client-side rejections from tripping the breaker:
// quota errors and 4xx mean the API itself is healthy.
func isBreakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var pe *models.ProviderError
	if errors.As(err, &pe) && pe.StatusCode >= 400 && pe.StatusCode < 500 {
		return true
	}
	return false
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// SearchVideos runs search.list. Results carry snippet data only, so their
// ObservedAt is zero until statistics are fetched.
func (c *Client) SearchVideos(ctx context.Context, req models.SearchRequest) ([]models.VideoRecord, error) {
	params := url.Values{}
	params.Set("part", "id,snippet")
	params.Set("type", "video")
	params.Set("order", "relevance")
	params.Set("q", req.Query)
	params.Set("maxResults", fmt.Sprint(clampPage(req.MaxResults)))
	if req.Country != "" {
		params.Set("regionCode", req.Country)
	}
	if req.Language != "" {
		params.Set("relevanceLanguage", req.Language)
	}
	if !req.PublishedAfter.IsZero() {
		params.Set("publishedAfter", req.PublishedAfter.UTC().Format(time.RFC3339))
	}

	body, err := c.get(ctx, "search", "search", params)
	if err != nil {
		return nil, err
	}

	var resp searchListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &models.ProviderError{Provider: providerName, Op: "search", Err: fmt.Errorf("decode response: %w", err)}
	}

	videos := make([]models.VideoRecord, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID.VideoID == "" {
			continue
		}
		rec := item.Snippet.toRecord(item.ID.VideoID)
		rec.Sources = []models.VideoSource{models.SourceSearch}
		videos = append(videos, rec)
	}
	return videos, nil
}

// VideoDetails runs videos.list for ids, 50 per call
func (c *Client) VideoDetails(ctx context.Context, ids []string) ([]models.VideoRecord, error) {
	var videos []models.VideoRecord
	for start := 0; start < len(ids); start += maxPageSize {
		end := min(start+maxPageSize, len(ids))

		params := url.Values{}
		params.Set("part", "snippet,statistics,contentDetails")
		params.Set("id", strings.Join(ids[start:end], ","))
		params.Set("maxResults", fmt.Sprint(maxPageSize))

		body, err := c.get(ctx, "videos", "videos", params)
		if err != nil {
			return videos, err
		}
		var resp videoListResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return videos, &models.ProviderError{Provider: providerName, Op: "videos", Err: fmt.Errorf("decode response: %w", err)}
		}
		observed := c.now().UTC()
		for _, item := range resp.Items {
			videos = append(videos, item.toRecord(observed))
		}
	}
	return videos, nil
}

// TrendingFeed pulls the mostPopular chart for country, up to max videos
func (c *Client) TrendingFeed(ctx context.Context, country string, max int) ([]models.TrendingVideo, error) {
	if max <= 0 {
		max = maxPageSize
	}
	var (
		feed      []models.TrendingVideo
		pageToken string
	)
	captured := c.now().UTC()

	for len(feed) < max {
		params := url.Values{}
		params.Set("part", "snippet,statistics,contentDetails")
		params.Set("chart", "mostPopular")
		params.Set("regionCode", country)
		params.Set("maxResults", fmt.Sprint(clampPage(max-len(feed))))
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		body, err := c.get(ctx, "trending", "videos", params)
		if err != nil {
			if len(feed) > 0 {
				logging.Ctx(ctx).Warn().Err(err).Int("videos", len(feed)).Msg("trending feed truncated")
				return feed, nil
			}
			return nil, err
		}
		var resp videoListResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, &models.ProviderError{Provider: providerName, Op: "trending", Err: fmt.Errorf("decode response: %w", err)}
		}

		for _, item := range resp.Items {
			if len(feed) == max {
				break
			}
			rank := len(feed) + 1
			rec := item.toRecord(captured)
			rec.Sources = []models.VideoSource{models.SourceTrendingFeed}
			rec.TrendingRank = rank
			feed = append(feed, models.TrendingVideo{
				Entry: models.TrendingFeedEntry{
					VideoID:    item.ID,
					Country:    country,
					Rank:       rank,
					Category:   item.Snippet.CategoryID,
					CapturedAt: captured,
				},
				Video: rec,
			})
		}

		if resp.NextPageToken == "" || len(resp.Items) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}
	return feed, nil
}

func clampPage(n int) int {
	if n <= 0 || n > maxPageSize {
		return maxPageSize
	}
	return n
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values) ([]byte, error) {
	if c.cfg.APIKey == "" {
		return nil, &models.ProviderError{Provider: providerName, Op: op, Err: ErrMissingAPIKey}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.RecordProviderCall(providerName, op, "error")
		return nil, &models.ProviderError{Provider: providerName, Op: op, Err: err}
	}
	params.Set("key", c.cfg.APIKey)

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, op, path, params)
	})
	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
			outcome = "open"
			err = &models.ProviderError{Provider: providerName, Op: op, Err: err}
		case models.IsQuotaError(err):
			outcome = "quota"
		}
		metrics.RecordProviderCall(providerName, op, outcome)
		return nil, err
	}
	metrics.RecordProviderCall(providerName, op, "ok")
	return body, nil
}

func (c *Client) do(ctx context.Context, op, path string, params url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &models.ProviderError{Provider: providerName, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &models.ProviderError{Provider: providerName, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &models.ProviderError{Provider: providerName, Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &models.ProviderError{
			Provider:   providerName,
			Op:         op,
			StatusCode: resp.StatusCode,
			Quota:      resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests,
			Err:        errors.New(apiErrorMessage(body)),
		}
	}
	return body, nil
}

func apiErrorMessage(body []byte) string {
	var e apiErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		if len(e.Error.Errors) > 0 && e.Error.Errors[0].Reason != "" {
			return e.Error.Errors[0].Reason + ": " + e.Error.Message
		}
		return e.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = "empty error response"
	}
	return msg
}
