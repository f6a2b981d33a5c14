// Package pipeline owns the end-to-end search run: enrichment, crawling,
// extraction, filtering, categorization, result caching, and progress
// notification. All collaborators are injected so the pipeline has no
// global state.
package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/categorizer"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/crawler"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/enrich"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/extractor"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/filter"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/jobs"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/store"
	apperrors "github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/errors"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/logger"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/metrics"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/tracing"
)

// ProfileStore supplies the caller's stored profile. A nil profile with a
// nil error means the caller has none.
type ProfileStore interface {
	Fetch(ctx context.Context, callerID string) (*jobs.Profile, error)
}

// SearchRecorder receives the search-completed event after a full run.
type SearchRecorder interface {
	Record(event store.SearchCompleted)
}

// Options bounds a pipeline run.
type Options struct {
	MaxPerSource int
}

// Pipeline wires the discovery stages together.
type Pipeline struct {
	enricher     *enrich.Enricher
	orchestrator *crawler.Orchestrator
	extractor    *extractor.Extractor
	machine      *filter.Machine
	cache        *ResultCache
	notifier     *Notifier
	profiles     ProfileStore
	recorder     SearchRecorder
	metrics      *metrics.Metrics
	maxPerSource int
	logger       *slog.Logger
}

// New creates a Pipeline. recorder and metrics may be nil.
func New(
	enricher *enrich.Enricher,
	orchestrator *crawler.Orchestrator,
	ex *extractor.Extractor,
	machine *filter.Machine,
	cache *ResultCache,
	notifier *Notifier,
	profiles ProfileStore,
	recorder SearchRecorder,
	m *metrics.Metrics,
	opts Options,
) *Pipeline {
	if opts.MaxPerSource <= 0 {
		opts.MaxPerSource = 100
	}
	return &Pipeline{
		enricher:     enricher,
		orchestrator: orchestrator,
		extractor:    ex,
		machine:      machine,
		cache:        cache,
		notifier:     notifier,
		profiles:     profiles,
		recorder:     recorder,
		metrics:      m,
		maxPerSource: opts.MaxPerSource,
		logger:       slog.Default().With("component", "pipeline"),
	}
}

// Notifier exposes the progress notifier for the transport layer.
func (p *Pipeline) Notifier() *Notifier {
	return p.notifier
}

// CacheStats returns result-cache hit/miss counters.
func (p *Pipeline) CacheStats() Stats {
	return p.cache.Stats()
}

// InvalidateCache drops all cached search results.
func (p *Pipeline) InvalidateCache(ctx context.Context) (int64, error) {
	return p.cache.Invalidate(ctx)
}

// RunSearch executes the discovery pipeline for one query. The caller always
// receives a best-effort categorized result or a profile-required error;
// partial dependency outages degrade the result instead of failing it.
func (p *Pipeline) RunSearch(ctx context.Context, callerID string, queryText string) (*jobs.CategorizedResult, error) {
	start := time.Now()
	log := logger.FromContext(ctx).With("component", "pipeline", "caller_id", callerID)
	ctx, span := tracing.StartSpan(ctx, "run_search", logger.RequestID(ctx))
	defer func() {
		span.End()
		span.Log()
	}()

	p.notifier.Publish(callerID, StageStarted, map[string]any{"query": queryText})

	profile, err := p.profiles.Fetch(ctx, callerID)
	if err != nil {
		log.Error("profile lookup failed", "error", err)
		p.notifier.Publish(callerID, StageFailed, map[string]any{"error": "profile lookup failed"})
		p.countSearch("failed")
		return nil, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "profile lookup failed")
	}
	if profile == nil {
		p.notifier.Publish(callerID, StageFailed, map[string]any{"error": "profile required"})
		p.countSearch("failed")
		return nil, apperrors.New(apperrors.ErrProfileRequired, http.StatusBadRequest, "no stored profile for caller")
	}

	fingerprint := Fingerprint(queryText, *profile)
	span.SetAttr("fingerprint", fingerprint)

	if entry := p.cache.Get(ctx, fingerprint); entry != nil {
		log.Info("result cache hit", "fingerprint", fingerprint, "total", entry.Total)
		p.observeSearch("hit", start, entry.Total)
		p.notifier.Publish(callerID, StageComplete, map[string]any{"total": entry.Total, "cached": true})
		return &entry.Result, nil
	}
	if p.metrics != nil {
		p.metrics.CacheMissesTotal.Inc()
	}

	enriched := p.enrichQuery(ctx, callerID, queryText, *profile)
	raw := p.crawl(ctx, callerID, enriched)
	structured := p.extract(ctx, callerID, raw)
	result := p.filterAndCategorize(ctx, callerID, enriched, *profile, structured)

	p.finishRun(callerID, fingerprint, queryText, result)

	total := result.Total()
	log.Info("search complete", "fingerprint", fingerprint, "total", total, "elapsed", time.Since(start).Round(time.Millisecond))
	p.observeSearch("miss", start, total)
	p.notifier.Publish(callerID, StageComplete, map[string]any{"total": total, "cached": false})
	return &result, nil
}

func (p *Pipeline) enrichQuery(ctx context.Context, callerID string, queryText string, profile jobs.Profile) *jobs.EnrichedQuery {
	ctx, span := tracing.StartChildSpan(ctx, "enrich")
	defer span.End()

	enriched := p.enricher.Enrich(ctx, queryText, profile)
	p.notifier.Publish(callerID, StageQueryParsed, map[string]any{
		"job_title":      enriched.Query.JobTitle,
		"related_skills": len(enriched.RelatedSkills),
	})
	return enriched
}

func (p *Pipeline) crawl(ctx context.Context, callerID string, enriched *jobs.EnrichedQuery) []jobs.RawPosting {
	ctx, span := tracing.StartChildSpan(ctx, "crawl")
	defer span.End()

	p.notifier.Publish(callerID, StageCrawling, nil)
	bySource := p.orchestrator.SearchAllSources(ctx, enriched.Query.JobTitle, enriched.Query.Location, p.maxPerSource)
	merged := crawler.MergeResults(bySource)
	unique := crawler.DeduplicateJobs(merged)
	enrichedDetails := p.orchestrator.EnrichJobDetails(ctx, unique)

	span.SetAttr("merged", len(merged))
	span.SetAttr("unique", len(unique))
	p.notifier.Publish(callerID, StageCrawlingComplete, map[string]any{
		"sources": len(bySource),
		"unique":  len(unique),
	})
	return enrichedDetails
}

func (p *Pipeline) extract(ctx context.Context, callerID string, raw []jobs.RawPosting) []jobs.StructuredPosting {
	ctx, span := tracing.StartChildSpan(ctx, "extract")
	defer span.End()

	p.notifier.Publish(callerID, StageExtracting, map[string]any{"postings": len(raw)})
	structured := make([]jobs.StructuredPosting, 0, len(raw))
	for _, posting := range raw {
		structured = append(structured, p.extractor.Extract(ctx, posting))
	}
	return structured
}

func (p *Pipeline) filterAndCategorize(ctx context.Context, callerID string, enriched *jobs.EnrichedQuery, profile jobs.Profile, structured []jobs.StructuredPosting) jobs.CategorizedResult {
	_, span := tracing.StartChildSpan(ctx, "filter")
	defer span.End()

	p.notifier.Publish(callerID, StageFiltering, map[string]any{"candidates": len(structured)})
	state := p.machine.Run(enriched, profile, structured)
	span.SetAttr("survivors", len(state.Candidates))
	span.SetAttr("rejections", len(state.Rejections))
	return categorizer.Categorize(state.Candidates)
}

// finishRun performs the fire-and-forget side effects of a completed run:
// the cache write-back and the search-completed event.
func (p *Pipeline) finishRun(callerID string, fingerprint string, queryText string, result jobs.CategorizedResult) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		p.cache.Put(ctx, fingerprint, result)
	}()
	if p.recorder != nil {
		p.recorder.Record(store.SearchCompleted{
			Fingerprint: fingerprint,
			CallerID:    callerID,
			QueryText:   queryText,
			Total:       result.Total(),
			Result:      result,
			CompletedAt: time.Now().UTC(),
		})
	}
}

func (p *Pipeline) observeSearch(cacheStatus string, start time.Time, total int) {
	if p.metrics == nil {
		return
	}
	if cacheStatus == "hit" {
		p.metrics.CacheHitsTotal.Inc()
	}
	p.metrics.SearchesTotal.WithLabelValues("completed").Inc()
	p.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	p.metrics.SearchResultsCount.Observe(float64(total))
}

func (p *Pipeline) countSearch(outcome string) {
	if p.metrics != nil {
		p.metrics.SearchesTotal.WithLabelValues(outcome).Inc()
	}
}
