package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trends-backend/config"
	"trends-backend/models"
)

func TestExpanderUsesFirstNonEmptySource(t *testing.T) {
	empty := &stubTermSource{name: "llm"}
	rss := &stubTermSource{name: "google_trends", terms: []string{"gaming news", "Gaming News", "new games"}}
	e := NewExpander([]TermSource{empty, rss}, 4, time.Second, time.Hour)

	plan := e.Expand(context.Background(), "gaming", testCountry("DE"), models.Window24h)

	assert.Equal(t, "google_trends", plan.Source)
	require.Len(t, plan.Tiers, 3)
	assert.Equal(t, []string{"gaming", "gaming news", "new games"}, plan.Tiers[0])
	assert.Equal(t, int32(1), empty.calls.Load())
}

func TestExpanderFallsBackToStaticVariants(t *testing.T) {
	down := &stubTermSource{name: "llm", err: errProviderDown}
	e := NewExpander([]TermSource{down}, 4, time.Second, time.Hour)

	plan := e.Expand(context.Background(), "minecraft", testCountry("DE"), models.Window48h)

	assert.Equal(t, ExpansionSourceStatic, plan.Source)
	assert.Equal(t, "minecraft", plan.Tiers[0][0])
	assert.Equal(t, []string{"minecraft", "minecraft deutsch", "deutsche minecraft", "minecraft germany", "minecraft deutschland"}, plan.Tiers[0])
	assert.Equal(t, []string{"gaming deutsch", "lets play deutsch"}, plan.Tiers[1])
	assert.Equal(t, []string{"trends deutschland", "aktuell", "viral deutschland"}, plan.Tiers[2])
}

func TestExpanderKeepsTopicUnmodified(t *testing.T) {
	e := NewExpander(nil, 2, 0, time.Hour)
	plan := e.Expand(context.Background(), "  Super   Mario  ", testCountry("US"), models.Window24h)

	assert.Equal(t, "Super Mario", plan.Topic)
	assert.Equal(t, "Super Mario", plan.Tiers[0][0])
	assert.Len(t, plan.Tiers[0], 3)
}

func TestExpanderDedupesAcrossTiers(t *testing.T) {
	// "gaming" is both the topic and the first US gaming category term
	e := NewExpander(nil, 4, 0, time.Hour)
	plan := e.Expand(context.Background(), "Gaming", testCountry("US"), models.Window24h)

	seen := map[string]bool{}
	for _, term := range lowerAll(plan.Terms()) {
		assert.False(t, seen[term], "duplicate term %q", term)
		seen[term] = true
	}
	assert.NotContains(t, plan.Tiers[1], "gaming")
	assert.Contains(t, plan.Tiers[1], "gameplay walkthrough")
}

func TestExpanderCachesSuccessfulPlans(t *testing.T) {
	src := &stubTermSource{name: "llm", terms: []string{"ゲーム実況"}}
	e := NewExpander([]TermSource{src}, 4, time.Second, time.Hour)
	ctx := context.Background()

	first := e.Expand(ctx, "gaming", testCountry("JP"), models.Window24h)
	second := e.Expand(ctx, "GAMING", testCountry("JP"), models.Window24h)

	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.Equal(t, int32(1), src.calls.Load())

	// other windows are separate entries
	e.Expand(ctx, "gaming", testCountry("JP"), models.Window7d)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestExpanderDoesNotCacheAfterSourceFailure(t *testing.T) {
	src := &stubTermSource{name: "llm", err: errProviderDown}
	e := NewExpander([]TermSource{src}, 4, time.Second, time.Hour)
	ctx := context.Background()

	e.Expand(ctx, "music", testCountry("FR"), models.Window24h)
	plan := e.Expand(ctx, "music", testCountry("FR"), models.Window24h)

	assert.False(t, plan.CacheHit)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestExpanderCapsExternalVariants(t *testing.T) {
	src := &stubTermSource{name: "llm", terms: []string{"a1", "a2", "a3", "a4", "a5", "a6"}}
	e := NewExpander([]TermSource{src}, 3, time.Second, time.Hour)

	plan := e.Expand(context.Background(), "topic", testCountry("US"), models.Window24h)
	assert.Equal(t, []string{"topic", "a1", "a2", "a3"}, plan.Tiers[0])
}

// deadlineSource records how much time each call was given
type deadlineSource struct {
	stubTermSource
	timeout time.Duration
	budgets []time.Duration
}

func (s *deadlineSource) Timeout() time.Duration { return s.timeout }

func (s *deadlineSource) ExpandTerms(ctx context.Context, topic string, country config.CountryProfile, window models.Window, max int) ([]string, error) {
	if dl, ok := ctx.Deadline(); ok {
		s.budgets = append(s.budgets, time.Until(dl))
	}
	return s.stubTermSource.ExpandTerms(ctx, topic, country, window, max)
}

func TestExpanderHonoursPerSourceTimeout(t *testing.T) {
	slow := &deadlineSource{stubTermSource: stubTermSource{name: "llm"}, timeout: 30 * time.Second}
	fast := &deadlineSource{stubTermSource: stubTermSource{name: "google_trends", terms: []string{"gaming trends"}}}
	e := NewExpander([]TermSource{slow, fast}, 4, 2*time.Second, time.Hour)

	plan := e.Expand(context.Background(), "gaming", testCountry("DE"), models.Window24h)
	assert.Equal(t, "google_trends", plan.Source)

	require.Len(t, slow.budgets, 1)
	assert.Greater(t, slow.budgets[0], 2*time.Second)
	require.Len(t, fast.budgets, 1)
	assert.LessOrEqual(t, fast.budgets[0], 2*time.Second)
}

func TestLLMTermSourceTimeout(t *testing.T) {
	src := NewLLMTermSource(nil, "llama", 8*time.Second)
	assert.Equal(t, 8*time.Second, src.Timeout())
	assert.Equal(t, "llm", src.Name())
}
