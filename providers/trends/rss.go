// Package trends reads daily trending searches from the Google Trends RSS feed.
package trends

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"trends-backend/config"
	"trends-backend/metrics"
	"trends-backend/models"
)

const providerName = "google_trends"

// RSSSource turns trending searches into search-term variants
type RSSSource struct {
	client      *http.Client
	urlTemplate string
}

// NewRSSSource builds a source; urlTemplate contains one %s for the country code
func NewRSSSource(urlTemplate string, timeout time.Duration, client *http.Client) *RSSSource {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &RSSSource{client: client, urlTemplate: urlTemplate}
}

func (s *RSSSource) Name() string {
	return providerName
}

// TrendingSearches returns today's trending search phrases for country
func (s *RSSSource) TrendingSearches(ctx context.Context, country string) ([]string, error) {
	feedURL := fmt.Sprintf(s.urlTemplate, strings.ToUpper(country))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, &models.ProviderError{Provider: providerName, Op: "rss", Err: err}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.RecordProviderCall(providerName, "rss", "error")
		return nil, &models.ProviderError{Provider: providerName, Op: "rss", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		metrics.RecordProviderCall(providerName, "rss", "error")
		return nil, &models.ProviderError{
			Provider:   providerName,
			Op:         "rss",
			StatusCode: resp.StatusCode,
			Quota:      resp.StatusCode == http.StatusTooManyRequests,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		metrics.RecordProviderCall(providerName, "rss", "error")
		return nil, &models.ProviderError{Provider: providerName, Op: "rss", Err: fmt.Errorf("parse feed: %w", err)}
	}
	metrics.RecordProviderCall(providerName, "rss", "ok")

	searches := make([]string, 0, len(feed.Items))
	for _, it := range feed.Items {
		if title := strings.TrimSpace(it.Title); title != "" {
			searches = append(searches, title)
		}
	}
	return searches, nil
}

// ExpandTerms returns trending searches that share a word with topic.
// No overlap yields an empty list so the next source can be tried.
func (s *RSSSource) ExpandTerms(ctx context.Context, topic string, country config.CountryProfile, _ models.Window, max int) ([]string, error) {
	searches, err := s.TrendingSearches(ctx, country.Code)
	if err != nil {
		return nil, err
	}

	words := significantWords(topic)
	if len(words) == 0 {
		return nil, nil
	}

	var terms []string
	for _, search := range searches {
		if strings.EqualFold(search, topic) {
			continue
		}
		for w := range significantWords(search) {
			if words[w] {
				terms = append(terms, search)
				break
			}
		}
		if max > 0 && len(terms) == max {
			break
		}
	}
	return terms, nil
}

// significantWords lower-cases and keeps words of three or more runes
func significantWords(s string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if len([]rune(w)) >= 3 {
			words[w] = true
		}
	}
	return words
}
