package services

import (
	"context"
	"time"

	"trends-backend/logging"
)

// FeedCrawler periodically captures the official trending feed of every
// supported country so that stored entries exist when a live pull fails.
type FeedCrawler struct {
	collector *Collector
	countries []string
	interval  time.Duration
}

func NewFeedCrawler(collector *Collector, countries []string, interval time.Duration) *FeedCrawler {
	if interval <= 0 {
		interval = 2 * time.Hour
	}
	return &FeedCrawler{collector: collector, countries: countries, interval: interval}
}

// Serve implements suture.Service
func (c *FeedCrawler) Serve(ctx context.Context) error {
	c.CrawlOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.CrawlOnce(ctx)
		}
	}
}

// CrawlOnce refreshes every country and returns how many succeeded
func (c *FeedCrawler) CrawlOnce(ctx context.Context) int {
	log := logging.WithComponent("feed-crawler")
	ok := 0
	for _, country := range c.countries {
		if ctx.Err() != nil {
			break
		}
		videos, err := c.collector.RefreshFeed(ctx, country)
		if err != nil {
			log.Warn().Err(err).Str("country", country).Msg("feed crawl failed")
			continue
		}
		ok++
		log.Debug().Str("country", country).Int("videos", len(videos)).Msg("feed captured")
	}
	log.Info().Int("countries", len(c.countries)).Int("succeeded", ok).Msg("feed crawl finished")
	return ok
}

func (c *FeedCrawler) String() string {
	return "feed-crawler"
}
