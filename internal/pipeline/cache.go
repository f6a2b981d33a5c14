package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/jobs"
)

// KV is the key-value store backing the result cache. Get errors, including
// key-not-found, are treated as misses.
type KV interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// CacheEntry is the cached output of a full pipeline run: the categorized
// result, a URL-to-score index, the total count, and an absolute expiry.
type CacheEntry struct {
	Result    jobs.CategorizedResult `json:"result"`
	Scores    map[string]float64     `json:"scores"`
	Total     int                    `json:"total"`
	ExpiresAt time.Time              `json:"expires_at"`
}

// ResultCache stores pipeline output keyed by query fingerprint. Overlapping
// runs for the same fingerprint may both write; the value is identical so
// the race is harmless (at-least-once caching).
type ResultCache struct {
	kv     KV
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
	logger *slog.Logger
}

// Stats is a snapshot of cache hit/miss counters since process start.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// NewResultCache creates a ResultCache with the given TTL.
func NewResultCache(kv KV, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ResultCache{
		kv:     kv,
		ttl:    ttl,
		logger: slog.Default().With("component", "result-cache"),
	}
}

// Fingerprint derives the cache key from the query text and the canonical
// profile JSON.
func Fingerprint(queryText string, profile jobs.Profile) string {
	sum := sha256.Sum256(append([]byte(queryText), profile.CanonicalJSON()...))
	return hex.EncodeToString(sum[:])
}

// Get returns the entry for fingerprint, or nil on miss. An entry past its
// expiry is a miss.
func (c *ResultCache) Get(ctx context.Context, fingerprint string) *CacheEntry {
	if c.kv == nil {
		return nil
	}
	var entry CacheEntry
	if err := c.kv.GetJSON(ctx, "search:"+fingerprint, &entry); err != nil {
		c.misses.Add(1)
		return nil
	}
	if time.Now().After(entry.ExpiresAt) {
		c.misses.Add(1)
		return nil
	}
	c.hits.Add(1)
	return &entry
}

// Stats returns the hit/miss counters.
func (c *ResultCache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// flusher is the optional bulk-delete capability of the backing store.
type flusher interface {
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Invalidate removes every cached search result and returns the number of
// entries deleted. A backing store without bulk delete invalidates nothing.
func (c *ResultCache) Invalidate(ctx context.Context) (int64, error) {
	f, ok := c.kv.(flusher)
	if !ok {
		return 0, nil
	}
	deleted, err := f.FlushByPattern(ctx, "search:*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating result cache: %w", err)
	}
	c.logger.Info("result cache invalidated", "deleted", deleted)
	return deleted, nil
}

// Put writes the entry under fingerprint with the configured TTL. Failure
// is logged only; the response this entry came from is already computed.
func (c *ResultCache) Put(ctx context.Context, fingerprint string, result jobs.CategorizedResult) {
	if c.kv == nil {
		return
	}
	entry := CacheEntry{
		Result:    result,
		Scores:    scoreIndex(result),
		Total:     result.Total(),
		ExpiresAt: time.Now().Add(c.ttl),
	}
	if err := c.kv.SetJSON(ctx, "search:"+fingerprint, entry, c.ttl); err != nil {
		c.logger.Warn("result cache write failed", "fingerprint", fingerprint, "error", err)
	}
}

func scoreIndex(result jobs.CategorizedResult) map[string]float64 {
	scores := make(map[string]float64, result.Total())
	for _, bucket := range [][]jobs.StructuredPosting{result.JobBoards, result.CareerPages, result.HiringPosts} {
		for _, p := range bucket {
			scores[p.URL] = p.MatchScore
		}
	}
	return scores
}
