package crawler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/jobs"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/metrics"
)

// Orchestrator fans a search out across all registered crawlers, merges and
// deduplicates the results, and detail-enriches a bounded prefix.
type Orchestrator struct {
	crawlers    map[string]Crawler
	detailLimit int
	batchSize   int
	batchPause  time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// OrchestratorOptions bounds the detail-enrichment pass.
type OrchestratorOptions struct {
	DetailLimit int
	BatchSize   int
	BatchPause  time.Duration
}

// NewOrchestrator registers the given crawlers. The metrics parameter may
// be nil.
func NewOrchestrator(crawlers []Crawler, opts OrchestratorOptions, m *metrics.Metrics) *Orchestrator {
	if opts.DetailLimit <= 0 {
		opts.DetailLimit = 50
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.BatchPause <= 0 {
		opts.BatchPause = time.Second
	}
	byName := make(map[string]Crawler, len(crawlers))
	for _, c := range crawlers {
		byName[c.Name()] = c
	}
	return &Orchestrator{
		crawlers:    byName,
		detailLimit: opts.DetailLimit,
		batchSize:   opts.BatchSize,
		batchPause:  opts.BatchPause,
		metrics:     m,
		logger:      slog.Default().With("component", "crawl-orchestrator"),
	}
}

// SearchAllSources runs every crawler concurrently. A crawler failure is
// logged and becomes an empty slice for that source; it never blocks or
// fails the others.
func (o *Orchestrator) SearchAllSources(ctx context.Context, query string, location string, maxPerSource int) map[string][]jobs.RawPosting {
	results := make(map[string][]jobs.RawPosting, len(o.crawlers))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)

	for name, c := range o.crawlers {
		g.Go(func() error {
			start := time.Now()
			postings, err := c.Search(ctx, query, location, maxPerSource)
			if o.metrics != nil {
				o.metrics.CrawlLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
				o.metrics.CrawledPostingsTotal.WithLabelValues(name).Add(float64(len(postings)))
			}
			if err != nil {
				o.logger.Warn("source crawl failed", "source", name, "error", err)
				postings = nil
			} else {
				o.logger.Info("source crawl complete", "source", name, "postings", len(postings))
			}
			mu.Lock()
			results[name] = postings
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}

// MergeResults flattens per-source results in sorted source-name order so
// the merged sequence is deterministic regardless of completion order.
func MergeResults(bySource map[string][]jobs.RawPosting) []jobs.RawPosting {
	names := make([]string, 0, len(bySource))
	for name := range bySource {
		names = append(names, name)
	}
	sort.Strings(names)
	var merged []jobs.RawPosting
	for _, name := range names {
		merged = append(merged, bySource[name]...)
	}
	return merged
}

// DeduplicateJobs removes postings with repeated URLs. The first occurrence
// wins and relative order is preserved.
func DeduplicateJobs(postings []jobs.RawPosting) []jobs.RawPosting {
	seen := make(map[string]struct{}, len(postings))
	unique := make([]jobs.RawPosting, 0, len(postings))
	for _, p := range postings {
		if _, ok := seen[p.URL]; ok {
			continue
		}
		seen[p.URL] = struct{}{}
		unique = append(unique, p)
	}
	return unique
}

// EnrichJobDetails fills in full descriptions for the first DetailLimit
// postings, in fixed-size batches: concurrent within a batch, sequential
// across batches with a pause between them. A failed detail fetch leaves
// the posting unchanged.
func (o *Orchestrator) EnrichJobDetails(ctx context.Context, postings []jobs.RawPosting) []jobs.RawPosting {
	limit := o.detailLimit
	if limit > len(postings) {
		limit = len(postings)
	}
	for i := 0; i < limit; i += o.batchSize {
		end := i + o.batchSize
		if end > limit {
			end = limit
		}
		var wg sync.WaitGroup
		for j := i; j < end; j++ {
			wg.Add(1)
			go func(p *jobs.RawPosting) {
				defer wg.Done()
				o.enrichOne(ctx, p)
			}(&postings[j])
		}
		wg.Wait()

		if end < limit {
			select {
			case <-time.After(o.batchPause):
			case <-ctx.Done():
				return postings
			}
		}
	}
	return postings
}

func (o *Orchestrator) enrichOne(ctx context.Context, p *jobs.RawPosting) {
	c, ok := o.crawlers[p.Source]
	if !ok {
		return
	}
	details, err := c.FetchDetails(ctx, p.URL)
	if err != nil {
		o.logger.Debug("detail fetch failed", "url", p.URL, "error", err)
		return
	}
	if details != nil && details.Description != "" {
		p.Description = details.Description
		p.RawMarkup = details.RawMarkup
	}
}
