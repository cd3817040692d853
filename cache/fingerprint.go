package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"trends-backend/logging"
	"trends-backend/metrics"
	"trends-backend/models"
)

// KeyPrefix versions the key layout; bump it when RankedResult changes shape
const KeyPrefix = "trend:v1:"

// NormalizeTopic trims, lower-cases and collapses whitespace
func NormalizeTopic(topic string) string {
	return strings.Join(strings.Fields(strings.ToLower(topic)), " ")
}

// TopicHash is the fingerprint segment for a topic
func TopicHash(topic string) string {
	sum := sha256.Sum256([]byte(NormalizeTopic(topic)))
	return hex.EncodeToString(sum[:])[:16]
}

// Key builds the fingerprint key trend:v1:<CC>:<topic hash>:<window>
func Key(topic, country string, window models.Window) string {
	return fmt.Sprintf("%s%s:%s:%s", KeyPrefix, strings.ToUpper(country), TopicHash(topic), window)
}

// ComputeFunc produces a fresh result and the TTL to store it with (0 = default)
type ComputeFunc func(ctx context.Context) (*models.RankedResult, time.Duration, error)

// FingerprintCache stores RankedResults by fingerprint and runs at most one
// computation per key at a time.
type FingerprintCache struct {
	store Store
	ttl   time.Duration
	group singleflight.Group
}

// NewFingerprintCache wraps store; ttl is the default result lifetime
func NewFingerprintCache(store Store, ttl time.Duration) *FingerprintCache {
	return &FingerprintCache{store: store, ttl: ttl}
}

// Get returns the cached result for key. Backend errors are logged and
// reported as a miss.
func (c *FingerprintCache) Get(ctx context.Context, key string) (*models.RankedResult, bool) {
	res, outcome := c.lookup(ctx, key)
	metrics.CacheRequests.WithLabelValues(outcome).Inc()
	return res, res != nil
}

// lookup reads key without touching request metrics; outcome is hit, miss or error
func (c *FingerprintCache) lookup(ctx context.Context, key string) (*models.RankedResult, string) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(&models.CacheError{Op: "get", Key: key, Err: err}).Msg("cache read failed, treating as miss")
		return nil, "error"
	}
	if !ok {
		return nil, "miss"
	}

	var res models.RankedResult
	if err := json.Unmarshal(data, &res); err != nil {
		logging.Ctx(ctx).Warn().Err(&models.CacheError{Op: "decode", Key: key, Err: err}).Msg("corrupt cache entry, treating as miss")
		return nil, "error"
	}
	return &res, "hit"
}

// Set serializes res under key. A non-positive ttl uses the default.
func (c *FingerprintCache) Set(ctx context.Context, key string, res *models.RankedResult, ttl time.Duration) error {
	data, err := json.Marshal(res)
	if err != nil {
		return &models.CacheError{Op: "encode", Key: key, Err: err}
	}
	return c.put(ctx, key, data, ttl)
}

func (c *FingerprintCache) put(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		return &models.CacheError{Op: "set", Key: key, Err: err}
	}
	return nil
}

type flightResult struct {
	result *models.RankedResult
	hit    bool
}

// GetOrCompute returns the cached result for key or computes it once for all
// concurrent callers. The computation runs on a context detached from the
// caller, so a caller giving up only stops that caller's wait. Every caller
// receives the canonical decoded copy of what was written to the store.
func (c *FingerprintCache) GetOrCompute(ctx context.Context, key string, compute ComputeFunc) (*models.RankedResult, bool, error) {
	if res, ok := c.Get(ctx, key); ok {
		return res, true, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// a flight for this key may have finished between our miss and now
		if res, _ := c.lookup(detached, key); res != nil {
			return flightResult{result: res, hit: true}, nil
		}

		res, ttl, err := compute(detached)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("encode ranked result: %w", err)
		}
		var canonical models.RankedResult
		if err := json.Unmarshal(data, &canonical); err != nil {
			return nil, fmt.Errorf("decode ranked result: %w", err)
		}

		if err := c.put(detached, key, data, ttl); err != nil {
			logging.Ctx(detached).Warn().Err(err).Msg("cache write failed, returning uncached result")
		}
		return flightResult{result: &canonical}, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, false, r.Err
		}
		if r.Shared {
			metrics.CacheSharedFlights.Inc()
		}
		fr := r.Val.(flightResult)
		return fr.result, fr.hit, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Invalidate removes entries for country and/or topic; empty arguments match all
func (c *FingerprintCache) Invalidate(ctx context.Context, country, topic string) (int, error) {
	prefix := KeyPrefix
	if country != "" {
		prefix += strings.ToUpper(strings.TrimSpace(country)) + ":"
	}

	var match func(string) bool
	if strings.TrimSpace(topic) != "" {
		segment := ":" + TopicHash(topic) + ":"
		match = func(key string) bool {
			return strings.Contains(strings.TrimPrefix(key, KeyPrefix), segment)
		}
	}

	n, err := c.store.DeleteMatching(ctx, prefix, match)
	if err != nil {
		return 0, &models.CacheError{Op: "invalidate", Key: prefix, Err: err}
	}
	metrics.CacheInvalidations.Add(float64(n))
	return n, nil
}
