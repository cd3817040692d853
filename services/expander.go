package services

import (
	"context"
	"strings"
	"time"

	"trends-backend/cache"
	"trends-backend/config"
	"trends-backend/logging"
	"trends-backend/models"
)

// Expansion sources reported in SearchPlan.Source
const (
	ExpansionSourceStatic = "static"
)

// Expander turns a topic into tiered search terms for a country
type Expander struct {
	sources       []TermSource
	maxVariants   int
	sourceTimeout time.Duration
	plans         *cache.TTL[models.SearchPlan]
}

// NewExpander tries sources in order and falls back to the country's static
// variant templates. sourceTimeout applies to sources without their own
// Timeout. Plans are cached for ttl.
func NewExpander(sources []TermSource, maxVariants int, sourceTimeout, ttl time.Duration) *Expander {
	if maxVariants <= 0 {
		maxVariants = 4
	}
	return &Expander{
		sources:       sources,
		maxVariants:   maxVariants,
		sourceTimeout: sourceTimeout,
		plans:         cache.NewTTL[models.SearchPlan](ttl),
	}
}

// Expand never fails: when every external source fails the static variants are used
func (e *Expander) Expand(ctx context.Context, topic string, country config.CountryProfile, window models.Window) models.SearchPlan {
	topic = strings.Join(strings.Fields(topic), " ")
	key := country.Code + "|" + cache.NormalizeTopic(topic) + "|" + string(window)
	if plan, ok := e.plans.Get(key); ok {
		plan.CacheHit = true
		return plan
	}

	variants, source, failed := e.externalVariants(ctx, topic, country, window)
	if len(variants) == 0 {
		variants = country.LocalVariants(topic, e.maxVariants)
		source = ExpansionSourceStatic
	}

	plan := models.SearchPlan{
		Topic:   topic,
		Country: country.Code,
		Window:  window,
		Tiers: dedupeTiers(
			append([]string{topic}, variants...),
			country.CategoryTermsFor(topic),
			country.TrendingTerms,
		),
		Source: source,
	}

	// a failed source may recover; only cache plans that did not depend on a failure
	if !failed {
		e.plans.Set(key, plan)
	}
	return plan
}

func (e *Expander) externalVariants(ctx context.Context, topic string, country config.CountryProfile, window models.Window) ([]string, string, bool) {
	failed := false
	for _, src := range e.sources {
		if ctx.Err() != nil {
			return nil, "", true
		}

		timeout := e.sourceTimeout
		if ts, ok := src.(sourceTimeouter); ok && ts.Timeout() > 0 {
			timeout = ts.Timeout()
		}
		sctx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			sctx, cancel = context.WithTimeout(ctx, timeout)
		}
		terms, err := src.ExpandTerms(sctx, topic, country, window, e.maxVariants)
		cancel()

		if err != nil {
			failed = true
			logging.Ctx(ctx).Warn().Err(err).Str("source", src.Name()).Str("country", country.Code).Msg("term expansion source failed")
			continue
		}
		if len(terms) > 0 {
			if len(terms) > e.maxVariants {
				terms = terms[:e.maxVariants]
			}
			return terms, src.Name(), false
		}
	}
	return nil, "", failed
}

// dedupeTiers removes case-insensitive duplicates across tiers, keeping the
// first occurrence. The result always has one slice per tier.
func dedupeTiers(tiers ...[]string) [][]string {
	seen := make(map[string]bool)
	out := make([][]string, len(tiers))
	for i, tier := range tiers {
		out[i] = []string{}
		for _, term := range tier {
			term = strings.Join(strings.Fields(term), " ")
			key := strings.ToLower(term)
			if term == "" || seen[key] {
				continue
			}
			seen[key] = true
			out[i] = append(out[i], term)
		}
	}
	return out
}
