package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"trends-backend/cache"
	"trends-backend/config"
	"trends-backend/logging"
	"trends-backend/metrics"
	"trends-backend/models"
	"trends-backend/utils"
)

// AlgorithmVersion is reported with every trending response
const AlgorithmVersion = "momentum-llm-v1"

// TrendingService drives expand, collect, score and rank behind the result cache
type TrendingService struct {
	cfg       *config.Config
	expander  *Expander
	collector *Collector
	scorer    *Scorer
	budget    *BudgetTracker
	results   *cache.FingerprintCache
	weights   utils.MomentumWeights
	now       func() time.Time
}

// NewTrendingService creates the orchestrator
func NewTrendingService(cfg *config.Config, expander *Expander, collector *Collector, scorer *Scorer, budget *BudgetTracker, results *cache.FingerprintCache) *TrendingService {
	return &TrendingService{
		cfg:       cfg,
		expander:  expander,
		collector: collector,
		scorer:    scorer,
		budget:    budget,
		results:   results,
		weights:   MomentumWeights(cfg.Momentum),
		now:       time.Now,
	}
}

// MomentumWeights maps configuration onto the ranking formula
func MomentumWeights(m config.MomentumConfig) utils.MomentumWeights {
	return utils.MomentumWeights{
		ViewsPerHour:  m.ViewsPerHourWeight,
		Engagement:    m.EngagementWeight,
		Recency:       m.RecencyWeight,
		DecayHours:    m.RecencyDecayHours,
		RelevanceBase: m.RelevanceBase,
		RelevanceSpan: m.RelevanceSpan,
		TrendingBoost: m.TrendingBoost,
	}
}

// NormalizedQuery is a validated trending request
type NormalizedQuery struct {
	Topic   string
	Country config.CountryProfile
	Window  models.Window
	Limit   int
}

// NormalizeQuery validates and canonicalizes a request before any stage runs
func (s *TrendingService) NormalizeQuery(q models.TrendingQuery) (NormalizedQuery, error) {
	topic := strings.Join(strings.Fields(q.Topic), " ")
	if err := validate.Var(topic, "required,min=2,max=100"); err != nil {
		return NormalizedQuery{}, &models.InputError{Field: "query", Reason: "must be between 2 and 100 characters"}
	}

	code := strings.ToUpper(strings.TrimSpace(q.Country))
	profile, ok := s.cfg.Countries.Lookup(code)
	if !ok {
		return NormalizedQuery{}, &models.InputError{
			Field:  "country",
			Reason: fmt.Sprintf("unsupported country %q (supported: %s)", q.Country, strings.Join(s.cfg.Countries.Codes(), ", ")),
		}
	}

	window, err := models.ParseWindow(q.RawWindow())
	if err != nil {
		return NormalizedQuery{}, err
	}

	limit := q.Limit
	if limit == 0 {
		limit = s.cfg.Pipeline.DefaultLimit
	}
	if limit < 0 || limit > s.cfg.Pipeline.MaxLimit {
		return NormalizedQuery{}, &models.InputError{Field: "limit", Reason: fmt.Sprintf("must be between 1 and %d", s.cfg.Pipeline.MaxLimit)}
	}

	return NormalizedQuery{Topic: topic, Country: profile, Window: window, Limit: limit}, nil
}

// GetTrending returns the ranked videos for a query, computing them at most
// once per cache key across concurrent callers.
func (s *TrendingService) GetTrending(ctx context.Context, q models.TrendingQuery) (*models.TrendingResponse, error) {
	start := time.Now()
	nq, err := s.NormalizeQuery(q)
	if err != nil {
		return nil, err
	}

	key := cache.Key(nq.Topic, nq.Country.Code, nq.Window)
	res, hit, err := s.results.GetOrCompute(ctx, key, func(cctx context.Context) (*models.RankedResult, time.Duration, error) {
		r := s.runPipeline(cctx, nq)
		ttl := s.cfg.Cache.ResultTTL
		if r.Metadata.Degraded || len(r.Items) == 0 {
			ttl = s.cfg.Cache.DegradedTTL
		}
		return r, ttl, nil
	})
	if err != nil {
		return nil, fmt.Errorf("trending %s/%s: %w", nq.Country.Code, nq.Window, err)
	}

	logging.Ctx(ctx).Info().
		Str("query", nq.Topic).
		Str("country", nq.Country.Code).
		Str("window", string(nq.Window)).
		Bool("cache_hit", hit).
		Int("results", min(len(res.Items), nq.Limit)).
		Msg("trending request served")

	return buildResponse(res, nq.Limit, hit, time.Since(start)), nil
}

// runPipeline never fails; every stage degrades instead
func (s *TrendingService) runPipeline(ctx context.Context, q NormalizedQuery) *models.RankedResult {
	start := time.Now()
	pctx, cancel := context.WithTimeout(ctx, s.cfg.Pipeline.Timeout)
	defer cancel()

	plan := s.expander.Expand(pctx, q.Topic, q.Country, q.Window)
	col := s.collector.Collect(pctx, plan, q.Country)
	scored := s.scorer.Score(pctx, col.Videos, q.Country)
	timedOut := pctx.Err() != nil

	now := s.now()
	items := s.rank(col.Videos, scored.Scores, q.Window, now)

	meta := models.PipelineMetadata{
		TotalCandidates:        len(col.Videos),
		VideosFromSearch:       col.Stats.VideosFromSearch,
		VideosFromTrendingFeed: col.Stats.VideosFromTrendingFeed,
		DuplicatesRemoved:      col.Stats.DuplicatesRemoved,
		OutsideWindow:          col.Stats.OutsideWindow,
		FailedQueries:          col.Stats.FailedQueries,
		TrendingFeedFailed:     col.Stats.TrendingFeedFailed,
		TiersUsed:              col.Stats.TiersUsed,
		SearchTerms:            col.Stats.SearchTerms,
		ExpansionSource:        plan.Source,
		ScoredCount:            scored.Stats.ScoredCount,
		CachedScores:           scored.Stats.CachedScores,
		UnscoredCount:          scored.Stats.UnscoredCount,
		BatchesSent:            scored.Stats.BatchesSent,
		BatchesSkipped:         scored.Stats.BatchesSkipped,
		BatchesFailed:          scored.Stats.BatchesFailed,
		EstimatedCost:          scored.Stats.EstimatedCost,
		Degraded:               timedOut || col.Stats.FailedQueries > 0 || col.Stats.TrendingFeedFailed || scored.Stats.BatchesFailed > 0,
		ProcessingTimeMS:       time.Since(start).Milliseconds(),
	}

	outcome := "ok"
	switch {
	case len(items) == 0:
		outcome = "empty"
		meta.Message = fmt.Sprintf("no videos found for %q in %s within %s", q.Topic, q.Country.Code, q.Window)
		if col.Stats.FailedQueries > 0 && col.Stats.TrendingFeedFailed {
			meta.Message += "; all video sources failed"
		}
	case timedOut:
		outcome = "degraded"
		meta.Message = "pipeline time budget exceeded, results are partial"
	case meta.Degraded:
		outcome = "degraded"
	}
	metrics.PipelineDuration.WithLabelValues(q.Country.Code, outcome).Observe(time.Since(start).Seconds())
	metrics.PipelineCandidates.WithLabelValues(q.Country.Code).Observe(float64(len(col.Videos)))

	return &models.RankedResult{
		Topic:       q.Topic,
		Country:     q.Country.Code,
		Window:      q.Window,
		Items:       items,
		Metadata:    meta,
		GeneratedAt: now,
	}
}

// rank orders candidates at full depth; requests slice the cached list
func (s *TrendingService) rank(videos []models.VideoRecord, scores map[string]models.CountryRelevanceScore, window models.Window, now time.Time) []models.RankedItem {
	cands := make([]utils.RankCandidate, len(videos))
	for i, v := range videos {
		var rel *float64
		if sc, ok := scores[v.ID]; ok {
			r := sc.Score
			rel = &r
		}
		cands[i] = utils.RankCandidate{
			ID:             v.ID,
			Views:          v.Views,
			Likes:          v.Likes,
			Comments:       v.Comments,
			PublishedAt:    v.PublishedAt,
			Relevance:      rel,
			InTrendingFeed: v.InTrendingFeed(),
		}
	}

	ranked := utils.RankByMomentum(cands, float64(window.Hours()), now, s.cfg.Pipeline.MaxLimit, s.weights)
	items := make([]models.RankedItem, 0, len(ranked))
	for _, r := range ranked {
		v := videos[r.Index]
		item := models.RankedItem{
			Video: v,
			Momentum: models.MomentumBreakdown{
				ViewsPerHour:        r.Momentum.ViewsPerHour,
				EngagementRate:      r.Momentum.EngagementRate,
				RecencyWeight:       r.Momentum.RecencyWeight,
				BaseMomentum:        r.Momentum.BaseMomentum,
				RelevanceMultiplier: r.Momentum.RelevanceMultiplier,
				TrendingBoost:       r.Momentum.TrendingBoost,
				FinalScore:          r.Momentum.FinalScore,
				AgeHours:            r.AgeHours,
			},
			InTrendingFeed: v.InTrendingFeed(),
			TrendingRank:   v.TrendingRank,
		}
		if sc, ok := scores[v.ID]; ok {
			score, conf := sc.Score, sc.Confidence
			item.RelevanceScore = &score
			item.Confidence = &conf
			item.OriginCountry = sc.OriginCountry
			item.Rationale = sc.Rationale
		}
		items = append(items, item)
	}
	return items
}

func buildResponse(res *models.RankedResult, limit int, hit bool, elapsed time.Duration) *models.TrendingResponse {
	items := res.Items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	results := make([]models.VideoResult, 0, len(items))
	feedMatches := 0
	for i, it := range items {
		if it.InTrendingFeed {
			feedMatches++
		}
		v := it.Video
		results = append(results, models.VideoResult{
			Rank:           i + 1,
			VideoID:        v.ID,
			Title:          v.Title,
			Channel:        v.ChannelName,
			ChannelCountry: v.ChannelCountry,
			Views:          v.Views,
			Likes:          v.Likes,
			Comments:       v.Comments,
			EngagementRate: round(it.Momentum.EngagementRate*100, 2),
			MomentumScore:  round(it.Momentum.FinalScore, 2),
			RelevanceScore: it.RelevanceScore,
			Confidence:     it.Confidence,
			OriginCountry:  it.OriginCountry,
			Rationale:      it.Rationale,
			InTrendingFeed: it.InTrendingFeed,
			TrendingRank:   it.TrendingRank,
			URL:            v.URL(),
			ThumbnailURL:   v.ThumbnailURL,
			PublishedAt:    v.PublishedAt,
			AgeHours:       round(it.Momentum.AgeHours, 1),
		})
	}

	m := res.Metadata
	return &models.TrendingResponse{
		Success:   true,
		Query:     res.Topic,
		Country:   res.Country,
		Window:    res.Window,
		Algorithm: AlgorithmVersion,
		Results:   results,
		Metadata: models.ResponseMetadata{
			TotalCandidates:        m.TotalCandidates,
			ScoredCount:            m.ScoredCount + m.CachedScores,
			CacheHit:               hit,
			TrendingFeedMatches:    feedMatches,
			EstimatedCost:          m.EstimatedCost,
			VideosFromSearch:       m.VideosFromSearch,
			VideosFromTrendingFeed: m.VideosFromTrendingFeed,
			DuplicatesRemoved:      m.DuplicatesRemoved,
			SearchTerms:            m.SearchTerms,
			Count:                  len(results),
			Degraded:               m.Degraded,
			Message:                m.Message,
			GeneratedAt:            res.GeneratedAt,
			ProcessingTimeMS:       elapsed.Milliseconds(),
		},
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// SearchTerms returns the expansion plan without running the pipeline
func (s *TrendingService) SearchTerms(ctx context.Context, q models.TrendingQuery) (*models.SearchPlan, error) {
	if q.Limit < 0 || q.Limit > s.cfg.Pipeline.MaxLimit {
		q.Limit = 0
	}
	nq, err := s.NormalizeQuery(q)
	if err != nil {
		return nil, err
	}
	plan := s.expander.Expand(ctx, nq.Topic, nq.Country, nq.Window)
	return &plan, nil
}

// TrendingFeed returns the current official feed for a country
func (s *TrendingService) TrendingFeed(ctx context.Context, country string) ([]models.TrendingVideo, error) {
	profile, ok := s.cfg.Countries.Lookup(strings.TrimSpace(country))
	if !ok {
		return nil, &models.InputError{Field: "country", Reason: fmt.Sprintf("unsupported country %q", country)}
	}
	return s.collector.TrendingFeed(ctx, profile.Code)
}

// InvalidateCache drops cached results; empty fields match everything
func (s *TrendingService) InvalidateCache(ctx context.Context, req models.InvalidateRequest) (int, error) {
	n, err := s.results.Invalidate(ctx, req.Country, req.Query)
	if err != nil {
		return 0, err
	}
	logging.Ctx(ctx).Info().Str("country", req.Country).Str("query", req.Query).Int("removed", n).Msg("result cache invalidated")
	return n, nil
}

// BudgetStatus reports the current month's LLM spend
func (s *TrendingService) BudgetStatus() models.BudgetStatus {
	return s.budget.Status()
}
