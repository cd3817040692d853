package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"trends-backend/config"
	"trends-backend/logging"
	"trends-backend/metrics"
	"trends-backend/models"
	"trends-backend/prompts"
)

// ScorerConfig controls batching, retries and cost estimation
type ScorerConfig struct {
	Model                string
	BatchSize            int
	Parallelism          int
	OutputTokensPerVideo int
	MaxRetries           int
	ScoreValidity        time.Duration
	BatchTimeout         time.Duration
	RetryInterval        time.Duration
	Temperature          float64
}

// ScoreStats summarizes one scoring run
type ScoreStats struct {
	ScoredCount    int
	CachedScores   int
	UnscoredCount  int
	BatchesSent    int
	BatchesSkipped int
	BatchesFailed  int
	EstimatedCost  float64
}

// ScoreOutcome maps video id to its current score; unscored videos are absent
type ScoreOutcome struct {
	Scores map[string]models.CountryRelevanceScore
	Stats  ScoreStats
}

// Scorer assigns country relevance scores through the language model
type Scorer struct {
	client ChatCompleter
	store  RelevanceStore
	usage  UsageRecorder
	budget *BudgetTracker
	cfg    ScorerConfig
	now    func() time.Time
}

// NewScorer wires the scorer. client, store and usage may be nil; without a
// client every video without a fresh score stays unscored.
func NewScorer(client ChatCompleter, store RelevanceStore, usage UsageRecorder, budget *BudgetTracker, cfg ScorerConfig, now func() time.Time) *Scorer {
	if now == nil {
		now = time.Now
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}
	return &Scorer{client: client, store: store, usage: usage, budget: budget, cfg: cfg, now: now}
}

type batchResult struct {
	scores []models.CountryRelevanceScore
	status string
	cost   float64
}

const batchStatusSkipped = "skipped"

// Score returns the current score for every video it could judge.
// Provider and budget failures leave videos unscored and never fail the run.
func (s *Scorer) Score(ctx context.Context, videos []models.VideoRecord, country config.CountryProfile) *ScoreOutcome {
	log := logging.Ctx(ctx)
	now := s.now()
	out := &ScoreOutcome{Scores: make(map[string]models.CountryRelevanceScore)}

	unique := make([]models.VideoRecord, 0, len(videos))
	seen := make(map[string]bool, len(videos))
	for _, v := range videos {
		if v.ID != "" && !seen[v.ID] {
			seen[v.ID] = true
			unique = append(unique, v)
		}
	}
	if len(unique) == 0 {
		return out
	}

	if s.store != nil {
		ids := make([]string, len(unique))
		for i, v := range unique {
			ids[i] = v.ID
		}
		fresh, err := s.store.LoadCurrent(ctx, country.Code, ids, now.Add(-s.cfg.ScoreValidity))
		if err != nil {
			log.Warn().Err(err).Str("country", country.Code).Msg("loading stored relevance scores failed")
		}
		for id, sc := range fresh {
			if sc.IsFresh(now, s.cfg.ScoreValidity) {
				out.Scores[id] = sc
			}
		}
	}
	out.Stats.CachedScores = len(out.Scores)

	var pending []models.VideoRecord
	for _, v := range unique {
		if _, ok := out.Scores[v.ID]; !ok {
			pending = append(pending, v)
		}
	}
	batches := chunkVideos(pending, s.cfg.BatchSize)

	if s.client == nil || s.budget == nil {
		out.Stats.BatchesSkipped = len(batches)
		out.Stats.UnscoredCount = len(pending)
		return out
	}

	var (
		mu        sync.Mutex
		newScores []models.CountryRelevanceScore
		exhausted atomic.Bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for _, batch := range batches {
		g.Go(func() error {
			var res batchResult
			if exhausted.Load() || gctx.Err() != nil {
				res = batchResult{status: batchStatusSkipped}
			} else {
				res = s.scoreBatch(gctx, batch, country, &exhausted)
			}

			mu.Lock()
			defer mu.Unlock()
			switch res.status {
			case batchStatusSkipped:
				out.Stats.BatchesSkipped++
			case models.UsageStatusFailed:
				out.Stats.BatchesSent++
				out.Stats.BatchesFailed++
			default:
				out.Stats.BatchesSent++
			}
			out.Stats.EstimatedCost += res.cost
			newScores = append(newScores, res.scores...)
			metrics.LLMBatches.WithLabelValues(res.status).Inc()
			return nil
		})
	}
	_ = g.Wait()

	for _, sc := range newScores {
		out.Scores[sc.VideoID] = sc
	}
	out.Stats.ScoredCount = len(newScores)
	out.Stats.UnscoredCount = len(unique) - len(out.Scores)

	if s.store != nil && len(newScores) > 0 {
		if err := s.store.Append(context.WithoutCancel(ctx), newScores); err != nil {
			log.Warn().Err(err).Int("scores", len(newScores)).Msg("storing relevance scores failed")
		}
	}

	log.Info().
		Str("country", country.Code).
		Int("cached", out.Stats.CachedScores).
		Int("scored", out.Stats.ScoredCount).
		Int("unscored", out.Stats.UnscoredCount).
		Int("batches_sent", out.Stats.BatchesSent).
		Int("batches_skipped", out.Stats.BatchesSkipped).
		Float64("cost_eur", out.Stats.EstimatedCost).
		Msg("relevance scoring finished")
	return out
}

func (s *Scorer) scoreBatch(ctx context.Context, batch []models.VideoRecord, country config.CountryProfile, exhausted *atomic.Bool) batchResult {
	log := logging.Ctx(ctx)
	userPrompt := prompts.BuildRelevancePrompt(country, batch)
	inTokens := prompts.EstimateTokens(prompts.RelevanceScoringPrompt) + prompts.EstimateTokens(userPrompt)
	outTokens := s.cfg.OutputTokensPerVideo * len(batch)

	reservation, err := s.budget.Reserve(s.budget.EstimateCost(inTokens, outTokens))
	if err != nil {
		if errors.Is(err, models.ErrBudgetExceeded) {
			exhausted.Store(true)
		}
		log.Warn().Err(err).Int("videos", len(batch)).Msg("scoring batch skipped")
		return batchResult{status: batchStatusSkipped}
	}

	req := openai.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompts.RelevanceScoringPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature:    float32(s.cfg.Temperature),
		MaxTokens:      outTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := s.complete(ctx, req)
	usage := &models.LLMUsageLog{
		RequestID:  uuid.NewString(),
		Model:      s.cfg.Model,
		Country:    country.Code,
		VideoCount: len(batch),
		CreatedAt:  s.now(),
	}
	if err != nil {
		s.budget.Release(reservation)
		usage.Status = models.UsageStatusFailed
		s.recordUsage(ctx, usage)
		log.Warn().Err(err).Int("videos", len(batch)).Msg("scoring batch failed")
		return batchResult{status: models.UsageStatusFailed}
	}

	usage.InputTokens, usage.OutputTokens = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	if usage.InputTokens == 0 && usage.OutputTokens == 0 {
		usage.InputTokens, usage.OutputTokens = inTokens, outTokens
	}
	if resp.Model != "" {
		usage.Model = resp.Model
	}
	usage.CostEUR = s.budget.Commit(reservation, s.budget.EstimateCost(usage.InputTokens, usage.OutputTokens))
	metrics.LLMTokens.WithLabelValues("input").Add(float64(usage.InputTokens))
	metrics.LLMTokens.WithLabelValues("output").Add(float64(usage.OutputTokens))

	ids := make(map[string]bool, len(batch))
	for _, v := range batch {
		ids[v.ID] = true
	}

	content, err := firstChoice(resp)
	var parsed map[string]parsedRelevance
	rejected := 0
	if err == nil {
		parsed, rejected, err = parseRelevanceReply(content, ids)
	}
	if err != nil {
		usage.Status = models.UsageStatusParseError
		s.recordUsage(ctx, usage)
		log.Warn().Err(err).Int("videos", len(batch)).Msg("relevance reply rejected")
		return batchResult{status: models.UsageStatusParseError, cost: usage.CostEUR}
	}
	if rejected > 0 || len(parsed) < len(batch) {
		log.Debug().Int("rejected", rejected).Int("missing", len(batch)-len(parsed)).Msg("partial relevance reply")
	}

	usage.Status = models.UsageStatusOK
	s.recordUsage(ctx, usage)

	analyzedAt := s.now()
	scores := make([]models.CountryRelevanceScore, 0, len(parsed))
	for _, v := range batch {
		p, ok := parsed[v.ID]
		if !ok {
			continue
		}
		scores = append(scores, models.CountryRelevanceScore{
			VideoID:       v.ID,
			Country:       country.Code,
			Score:         p.Score,
			Rationale:     p.Rationale,
			Confidence:    p.Confidence,
			OriginCountry: p.Origin,
			Model:         usage.Model,
			AnalyzedAt:    analyzedAt,
		})
	}
	return batchResult{scores: scores, status: models.UsageStatusOK, cost: usage.CostEUR}
}

// complete sends the request, retrying transport failures with exponential backoff.
// Each attempt gets its own timeout.
func (s *Scorer) complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var resp openai.ChatCompletionResponse
	op := func() error {
		actx, cancel := ctx, context.CancelFunc(func() {})
		if s.cfg.BatchTimeout > 0 {
			actx, cancel = context.WithTimeout(ctx, s.cfg.BatchTimeout)
		}
		defer cancel()

		r, err := s.client.CreateChatCompletion(actx, req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryInterval
	b.MaxElapsedTime = 0
	retries := uint64(max(s.cfg.MaxRetries, 0))
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx))
	if err != nil {
		return resp, &models.ProviderError{Provider: "llm", Op: "score", Err: err}
	}
	return resp, nil
}

func (s *Scorer) recordUsage(ctx context.Context, entry *models.LLMUsageLog) {
	if s.usage == nil {
		return
	}
	if err := s.usage.Append(context.WithoutCancel(ctx), entry); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("request_id", entry.RequestID).Msg("storing llm usage failed")
	}
}

func chunkVideos(videos []models.VideoRecord, size int) [][]models.VideoRecord {
	var out [][]models.VideoRecord
	for start := 0; start < len(videos); start += size {
		out = append(out, videos[start:min(start+size, len(videos))])
	}
	return out
}
