package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	openai "github.com/sashabaranov/go-openai"

	"trends-backend/config"
	"trends-backend/models"
)

var errProviderDown = errors.New("provider down")

var baseTime = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return baseTime }

func video(id string, views int64, age time.Duration) models.VideoRecord {
	return models.VideoRecord{
		ID:          id,
		Title:       "video " + id,
		ChannelName: "channel " + id,
		Views:       views,
		Likes:       views / 20,
		Comments:    views / 100,
		PublishedAt: baseTime.Add(-age),
		ObservedAt:  baseTime.Add(-time.Minute),
	}
}

// searcher

type fakeSearcher struct {
	mu          sync.Mutex
	results     map[string][]models.VideoRecord
	errs        map[string]error
	failAll     error
	details     map[string]models.VideoRecord
	detailsErr  error
	queries     []string
	detailCalls [][]string
	delay       time.Duration
}

func (f *fakeSearcher) SearchVideos(ctx context.Context, req models.SearchRequest) ([]models.VideoRecord, error) {
	f.mu.Lock()
	f.queries = append(f.queries, req.Query)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failAll != nil {
		return nil, f.failAll
	}
	if err := f.errs[req.Query]; err != nil {
		return nil, err
	}
	return append([]models.VideoRecord(nil), f.results[req.Query]...), nil
}

func (f *fakeSearcher) VideoDetails(_ context.Context, ids []string) ([]models.VideoRecord, error) {
	f.mu.Lock()
	f.detailCalls = append(f.detailCalls, append([]string(nil), ids...))
	f.mu.Unlock()

	if f.failAll != nil {
		return nil, f.failAll
	}
	if f.detailsErr != nil {
		return nil, f.detailsErr
	}
	var out []models.VideoRecord
	for _, id := range ids {
		if v, ok := f.details[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeSearcher) queried() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.queries...)
	sort.Strings(out)
	return out
}

// trending feed

type fakeFeed struct {
	videos []models.TrendingVideo
	err    error
	calls  atomic.Int32
}

func (f *fakeFeed) TrendingFeed(_ context.Context, country string, max int) ([]models.TrendingVideo, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.TrendingVideo, 0, len(f.videos))
	for _, tv := range f.videos {
		tv.Entry.Country = country
		out = append(out, tv)
		if len(out) == max {
			break
		}
	}
	return out, nil
}

func feedVideo(v models.VideoRecord, rank int) models.TrendingVideo {
	return models.TrendingVideo{
		Entry: models.TrendingFeedEntry{VideoID: v.ID, Rank: rank, CapturedAt: baseTime},
		Video: v,
	}
}

// feed store

type memFeedStore struct {
	mu      sync.Mutex
	entries []models.TrendingFeedEntry
	videos  map[string]models.VideoRecord
	err     error
}

func newMemFeedStore() *memFeedStore {
	return &memFeedStore{videos: make(map[string]models.VideoRecord)}
}

func (s *memFeedStore) AppendEntries(ctx context.Context, entries []models.TrendingFeedEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *memFeedStore) RecentEntries(ctx context.Context, country string, since time.Time) ([]models.TrendingFeedEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	var out []models.TrendingFeedEntry
	for _, e := range s.entries {
		if e.Country == country && !e.CapturedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memFeedStore) UpsertVideos(ctx context.Context, videos []models.VideoRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.err != nil {
		return s.err
	}
	for _, v := range videos {
		s.videos[v.ID] = v
	}
	return nil
}

// relevance store

type memRelevanceStore struct {
	mu        sync.Mutex
	rows      []models.CountryRelevanceScore
	appendErr error
	loadErr   error
}

func (s *memRelevanceStore) LoadCurrent(_ context.Context, country string, ids []string, since time.Time) (map[string]models.CountryRelevanceScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make(map[string]models.CountryRelevanceScore)
	for _, r := range s.rows {
		if r.Country != country || !want[r.VideoID] || r.AnalyzedAt.Before(since) {
			continue
		}
		if cur, ok := out[r.VideoID]; !ok || r.AnalyzedAt.After(cur.AnalyzedAt) {
			out[r.VideoID] = r
		}
	}
	return out, nil
}

func (s *memRelevanceStore) Append(_ context.Context, scores []models.CountryRelevanceScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.rows = append(s.rows, scores...)
	return nil
}

func (s *memRelevanceStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// usage

type memUsage struct {
	mu   sync.Mutex
	rows []models.LLMUsageLog
}

func (u *memUsage) Append(_ context.Context, entry *models.LLMUsageLog) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rows = append(u.rows, *entry)
	return nil
}

func (u *memUsage) snapshot() []models.LLMUsageLog {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]models.LLMUsageLog(nil), u.rows...)
}

// chat

var promptIDPattern = regexp.MustCompile(`video_id: (\S+)`)

func promptIDs(req openai.ChatCompletionRequest) []string {
	var ids []string
	for _, m := range promptIDPattern.FindAllStringSubmatch(req.Messages[len(req.Messages)-1].Content, -1) {
		ids = append(ids, m[1])
	}
	return ids
}

type fakeChat struct {
	mu         sync.Mutex
	calls      int
	batchSizes []int
	respond    func(call int, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.batchSizes = append(f.batchSizes, len(promptIDs(req)))
	f.mu.Unlock()
	return f.respond(call, req)
}

func (f *fakeChat) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeChat) sizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]int(nil), f.batchSizes...)
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

func chatReply(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Model: "test-model",
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
		},
		Usage: openai.Usage{PromptTokens: 1000, CompletionTokens: 200, TotalTokens: 1200},
	}
}

// scoreEverything answers every id in the prompt with the same score
func scoreEverything(score float64) func(int, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return func(_ int, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		type entry struct {
			VideoID    string  `json:"video_id"`
			Score      float64 `json:"score"`
			Confidence float64 `json:"confidence"`
			Rationale  string  `json:"rationale"`
			Origin     string  `json:"origin"`
		}
		var results []entry
		for _, id := range promptIDs(req) {
			results = append(results, entry{VideoID: id, Score: score, Confidence: 0.8, Rationale: "local creator", Origin: "de"})
		}
		data, err := json.Marshal(map[string]any{"results": results})
		if err != nil {
			return openai.ChatCompletionResponse{}, err
		}
		return chatReply(string(data)), nil
	}
}

func failingChat(err error) func(int, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return func(int, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{}, err
	}
}

// term sources

type stubTermSource struct {
	name  string
	terms []string
	err   error
	calls atomic.Int32
}

func (s *stubTermSource) Name() string { return s.name }

func (s *stubTermSource) ExpandTerms(_ context.Context, topic string, _ config.CountryProfile, _ models.Window, _ int) ([]string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.terms, nil
}

func testCountry(code string) config.CountryProfile {
	p, ok := config.DefaultCountries().Lookup(code)
	if !ok {
		panic(fmt.Sprintf("unknown test country %s", code))
	}
	return p
}

func lowerAll(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = strings.ToLower(t)
	}
	return out
}
