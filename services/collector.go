package services

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"trends-backend/cache"
	"trends-backend/config"
	"trends-backend/logging"
	"trends-backend/metrics"
	"trends-backend/models"
)

const (
	detailsChunkSize = 50
	storeTimeout     = 5 * time.Second
)

var errFeedUnavailable = errors.New("no trending feed provider configured")

// CollectorConfig bounds one collection run
type CollectorConfig struct {
	TargetPoolSize     int
	SearchParallelism  int
	MaxResultsPerQuery int
	TrendingFeedSize   int
	FeedFreshness      time.Duration
	FeedTTL            time.Duration
	DetailsEnabled     bool
}

// CollectionStats reports where candidates came from and what was lost
type CollectionStats struct {
	VideosFromSearch       int
	VideosFromTrendingFeed int
	DuplicatesRemoved      int
	OutsideWindow          int
	FailedQueries          int
	TrendingFeedFailed     bool
	TiersUsed              int
	SearchTerms            []string
}

// Collection is the deduplicated candidate pool of one run
type Collection struct {
	Videos []models.VideoRecord
	Stats  CollectionStats
}

// Collector gathers candidate videos from keyword search and the trending feed
type Collector struct {
	searcher VideoSearcher
	feed     TrendingFeedFetcher
	store    FeedStore
	cfg      CollectorConfig
	feeds    *cache.TTL[[]models.TrendingVideo]
	now      func() time.Time
}

// NewCollector wires the providers. store may be nil.
func NewCollector(searcher VideoSearcher, feed TrendingFeedFetcher, store FeedStore, cfg CollectorConfig, now func() time.Time) *Collector {
	if now == nil {
		now = time.Now
	}
	if cfg.SearchParallelism <= 0 {
		cfg.SearchParallelism = 1
	}
	if cfg.TrendingFeedSize <= 0 {
		cfg.TrendingFeedSize = 50
	}
	return &Collector{
		searcher: searcher,
		feed:     feed,
		store:    store,
		cfg:      cfg,
		feeds:    cache.NewTTLWithClock[[]models.TrendingVideo](cfg.FeedTTL, now),
		now:      now,
	}
}

type feedOutcome struct {
	videos []models.TrendingVideo
	err    error
}

// pool keeps first-seen order so results are deterministic
type pool struct {
	byID  map[string]*models.VideoRecord
	order []string
	dups  int
}

func newPool() *pool {
	return &pool{byID: make(map[string]*models.VideoRecord)}
}

func (p *pool) add(v models.VideoRecord) {
	if v.ID == "" {
		return
	}
	if existing, ok := p.byID[v.ID]; ok {
		existing.Merge(v)
		p.dups++
		return
	}
	rec := v
	p.byID[v.ID] = &rec
	p.order = append(p.order, v.ID)
}

func (p *pool) size() int {
	return len(p.order)
}

// Collect runs the tier searches and the feed pull concurrently and merges them.
// It never fails: provider errors are logged and counted in the stats.
func (c *Collector) Collect(ctx context.Context, plan models.SearchPlan, country config.CountryProfile) *Collection {
	now := c.now()
	since := now.Add(-plan.Window.Duration())
	log := logging.Ctx(ctx)

	feedCh := make(chan feedOutcome, 1)
	go func() {
		videos, err := c.TrendingFeed(ctx, country.Code)
		feedCh <- feedOutcome{videos: videos, err: err}
	}()

	p := newPool()
	stats := CollectionStats{}

	for _, tier := range plan.Tiers {
		if len(tier) == 0 {
			continue
		}
		if c.cfg.TargetPoolSize > 0 && p.size() >= c.cfg.TargetPoolSize {
			break
		}
		if ctx.Err() != nil {
			break
		}
		stats.TiersUsed++
		stats.SearchTerms = append(stats.SearchTerms, tier...)

		results := make([][]models.VideoRecord, len(tier))
		failed := make([]bool, len(tier))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.cfg.SearchParallelism)
		for i, term := range tier {
			g.Go(func() error {
				videos, err := c.searcher.SearchVideos(gctx, models.SearchRequest{
					Query:          term,
					Country:        country.Code,
					Language:       country.Language,
					MaxResults:     c.cfg.MaxResultsPerQuery,
					PublishedAfter: since,
				})
				if err != nil {
					log.Warn().Err(err).Str("term", term).Bool("quota", models.IsQuotaError(err)).Msg("search query failed")
					failed[i] = true
					return nil
				}
				results[i] = videos
				return nil
			})
		}
		_ = g.Wait()

		for i, videos := range results {
			if failed[i] {
				stats.FailedQueries++
				continue
			}
			for _, v := range videos {
				v.AddSource(models.SourceSearch)
				p.add(v)
			}
		}
	}

	c.enrich(ctx, p)

	var feed feedOutcome
	select {
	case feed = <-feedCh:
	case <-ctx.Done():
		feed = feedOutcome{err: ctx.Err()}
	}

	if feed.err != nil {
		stats.TrendingFeedFailed = true
		log.Warn().Err(feed.err).Str("country", country.Code).Msg("trending feed pull failed, using stored entries")
		c.markFromStoredFeed(ctx, p, country.Code, now)
	} else {
		for _, tv := range feed.videos {
			v := tv.Video
			v.AddSource(models.SourceTrendingFeed)
			v.TrendingRank = tv.Entry.Rank
			p.add(v)
		}
	}
	stats.DuplicatesRemoved = p.dups

	out := make([]models.VideoRecord, 0, p.size())
	for _, id := range p.order {
		v := *p.byID[id]
		if !v.PublishedAt.IsZero() && v.PublishedAt.Before(since) {
			stats.OutsideWindow++
			continue
		}
		if v.HasSource(models.SourceSearch) {
			stats.VideosFromSearch++
		}
		if v.InTrendingFeed() {
			stats.VideosFromTrendingFeed++
		}
		out = append(out, v)
	}

	if c.store != nil && len(out) > 0 {
		sctx, cancel := storeContext(ctx)
		if err := c.store.UpsertVideos(sctx, out); err != nil {
			log.Warn().Err(err).Msg("storing video snapshots failed")
		}
		cancel()
	}

	log.Info().
		Str("country", country.Code).
		Int("candidates", len(out)).
		Int("from_search", stats.VideosFromSearch).
		Int("from_feed", stats.VideosFromTrendingFeed).
		Int("duplicates", stats.DuplicatesRemoved).
		Int("failed_queries", stats.FailedQueries).
		Msg("candidates collected")

	return &Collection{Videos: out, Stats: stats}
}

// enrich fills statistics for videos that have never been observed in detail
func (c *Collector) enrich(ctx context.Context, p *pool) {
	if !c.cfg.DetailsEnabled {
		return
	}
	var ids []string
	for _, id := range p.order {
		if p.byID[id].ObservedAt.IsZero() {
			ids = append(ids, id)
		}
	}
	for start := 0; start < len(ids); start += detailsChunkSize {
		end := min(start+detailsChunkSize, len(ids))
		details, err := c.searcher.VideoDetails(ctx, ids[start:end])
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Int("videos", end-start).Msg("video details lookup failed")
			continue
		}
		for _, d := range details {
			if existing, ok := p.byID[d.ID]; ok {
				existing.Merge(d)
			}
		}
	}
}

func (c *Collector) markFromStoredFeed(ctx context.Context, p *pool, country string, now time.Time) {
	if c.store == nil {
		return
	}
	sctx, cancel := storeContext(ctx)
	defer cancel()
	entries, err := c.store.RecentEntries(sctx, country, now.Add(-c.cfg.FeedFreshness))
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("country", country).Msg("loading stored feed entries failed")
		return
	}
	for _, e := range entries {
		if v, ok := p.byID[e.VideoID]; ok {
			v.Merge(models.VideoRecord{Sources: []models.VideoSource{models.SourceTrendingFeed}, TrendingRank: e.Rank})
		}
	}
}

// TrendingFeed returns the country's official feed, pulled at most once per feed TTL.
// Every live pull is persisted.
func (c *Collector) TrendingFeed(ctx context.Context, country string) ([]models.TrendingVideo, error) {
	if videos, ok := c.feeds.Get(country); ok {
		return videos, nil
	}
	return c.RefreshFeed(ctx, country)
}

// RefreshFeed pulls the live feed, bypassing the in-memory copy
func (c *Collector) RefreshFeed(ctx context.Context, country string) ([]models.TrendingVideo, error) {
	if c.feed == nil {
		return nil, &models.ProviderError{Provider: "youtube", Op: "trending_feed", Err: errFeedUnavailable}
	}
	videos, err := c.feed.TrendingFeed(ctx, country, c.cfg.TrendingFeedSize)
	if err != nil {
		metrics.FeedCrawls.WithLabelValues(country, "error").Inc()
		return nil, err
	}
	metrics.FeedCrawls.WithLabelValues(country, "ok").Inc()
	c.feeds.Set(country, videos)

	if c.store != nil && len(videos) > 0 {
		entries := make([]models.TrendingFeedEntry, len(videos))
		records := make([]models.VideoRecord, len(videos))
		for i, tv := range videos {
			entries[i] = tv.Entry
			records[i] = tv.Video
		}
		sctx, cancel := storeContext(ctx)
		defer cancel()
		if err := c.store.AppendEntries(sctx, entries); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("country", country).Msg("storing feed entries failed")
		}
		if err := c.store.UpsertVideos(sctx, records); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("country", country).Msg("storing feed videos failed")
		}
	}
	return videos, nil
}

// storeContext outlives the pipeline deadline so that the degraded path can
// still read stored feed entries and persist snapshots
func storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
}
