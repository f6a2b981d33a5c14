package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/jobs"
)

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) GetJSON(ctx context.Context, key string, dest any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return errors.New("miss")
	}
	return json.Unmarshal(raw, dest)
}

func (m *memKV) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

func (m *memKV) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
			deleted++
		}
	}
	return deleted, nil
}

func sampleResult() jobs.CategorizedResult {
	return jobs.CategorizedResult{
		JobBoards: []jobs.StructuredPosting{
			{RawPosting: jobs.RawPosting{URL: "u1", Source: "linkedin"}, MatchScore: 80.0},
			{RawPosting: jobs.RawPosting{URL: "u2", Source: "indeed"}, MatchScore: 60.0},
		},
	}
}

func TestResultCacheRoundTrip(t *testing.T) {
	cache := NewResultCache(newMemKV(), time.Hour)
	ctx := context.Background()

	fp := Fingerprint("senior go engineer", jobs.Profile{Skills: []string{"go"}})
	if cache.Get(ctx, fp) != nil {
		t.Fatal("unexpected hit before write")
	}

	cache.Put(ctx, fp, sampleResult())
	entry := cache.Get(ctx, fp)
	if entry == nil {
		t.Fatal("miss after write")
	}
	if entry.Total != 2 {
		t.Fatalf("Total = %d", entry.Total)
	}
	if entry.Scores["u1"] != 80.0 || entry.Scores["u2"] != 60.0 {
		t.Fatalf("score index = %v", entry.Scores)
	}
	if len(entry.Result.JobBoards) != 2 || entry.Result.JobBoards[0].URL != "u1" {
		t.Fatalf("result = %+v", entry.Result)
	}
}

func TestResultCacheExpiryIsMiss(t *testing.T) {
	kv := newMemKV()
	cache := NewResultCache(kv, time.Hour)
	ctx := context.Background()

	fp := Fingerprint("query", jobs.Profile{})
	entry := CacheEntry{
		Result:    sampleResult(),
		Total:     2,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	if err := kv.SetJSON(ctx, "search:"+fp, entry, time.Hour); err != nil {
		t.Fatal(err)
	}
	if cache.Get(ctx, fp) != nil {
		t.Fatal("expired entry must be treated as a miss")
	}
}

func TestResultCacheStatsAndInvalidate(t *testing.T) {
	kv := newMemKV()
	cache := NewResultCache(kv, time.Hour)
	ctx := context.Background()

	fp := Fingerprint("query", jobs.Profile{})
	cache.Get(ctx, fp)
	cache.Put(ctx, fp, sampleResult())
	cache.Get(ctx, fp)

	if stats := cache.Stats(); stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	deleted, err := cache.Invalidate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d", deleted)
	}
	if cache.Get(ctx, fp) != nil {
		t.Fatal("hit after invalidation")
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	base := jobs.Profile{Skills: []string{"go"}, YearsExperience: 5}
	fp := Fingerprint("query a", base)

	if fp != Fingerprint("query a", jobs.Profile{Skills: []string{"go"}, YearsExperience: 5}) {
		t.Fatal("identical inputs must produce identical fingerprints")
	}
	if fp == Fingerprint("query b", base) {
		t.Fatal("different query text must change the fingerprint")
	}
	other := base
	other.YearsExperience = 6
	if fp == Fingerprint("query a", other) {
		t.Fatal("different profile must change the fingerprint")
	}
}
