package enrich

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/jobs"
)

// Cache is the key-value store fronting enrichment. Any Get error is
// treated as a miss.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Enricher produces an EnrichedQuery from free text: parse, expand through
// the knowledge graph, cache the result.
type Enricher struct {
	parser *Parser
	graph  GraphStore
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewEnricher creates an Enricher. graph and cache may be nil, in which case
// those steps are skipped.
func NewEnricher(parser *Parser, graph GraphStore, cache Cache, ttl time.Duration) *Enricher {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Enricher{
		parser: parser,
		graph:  graph,
		cache:  cache,
		ttl:    ttl,
		logger: slog.Default().With("component", "enricher"),
	}
}

// Enrich returns the enriched form of queryText for the given profile. It
// never returns an error: every failure along the way degrades the result
// instead of aborting it.
func (e *Enricher) Enrich(ctx context.Context, queryText string, profile jobs.Profile) *jobs.EnrichedQuery {
	key := CacheKey(queryText, profile)

	if e.cache != nil {
		var cached jobs.EnrichedQuery
		if err := e.cache.GetJSON(ctx, key, &cached); err == nil {
			e.logger.Debug("enrichment cache hit", "key", key)
			return &cached
		}
	}

	parsed := e.parser.Parse(ctx, queryText)
	enriched := &jobs.EnrichedQuery{Query: parsed}
	if e.graph != nil {
		e.expand(ctx, enriched)
	}

	if e.cache != nil {
		if err := e.cache.SetJSON(ctx, key, enriched, e.ttl); err != nil {
			e.logger.Warn("enrichment cache write failed", "key", key, "error", err)
		}
	}
	return enriched
}

// expand runs the four graph lookups concurrently. Each lookup failure
// leaves its field empty without affecting the others.
func (e *Enricher) expand(ctx context.Context, enriched *jobs.EnrichedQuery) {
	query := enriched.Query
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		skills, err := e.graph.RelatedSkills(ctx, query.Skills)
		if err != nil {
			e.logger.Warn("related skills lookup failed", "error", err)
			return
		}
		enriched.RelatedSkills = dedupe(skills)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		titles, err := e.graph.TitleSynonyms(ctx, query.JobTitle)
		if err != nil {
			e.logger.Warn("title synonyms lookup failed", "error", err)
			return
		}
		enriched.TitleSynonyms = dedupe(titles)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if query.VisaRequirement == "" {
			return
		}
		companies, err := e.graph.SponsorCompanies(ctx, query.VisaRequirement)
		if err != nil {
			e.logger.Warn("sponsor companies lookup failed", "error", err)
			return
		}
		enriched.SponsorCompanies = companies
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if query.EducationLevel == "" {
			return
		}
		alts, err := e.graph.EducationAlternatives(ctx, query.EducationLevel)
		if err != nil {
			e.logger.Warn("education alternatives lookup failed", "error", err)
			return
		}
		enriched.EducationAlts = alts
	}()

	wg.Wait()
}

// CacheKey derives the enrichment cache key from the normalized query text
// and a stable hash of the profile context.
func CacheKey(queryText string, profile jobs.Profile) string {
	normalized := strings.ToLower(strings.TrimSpace(queryText))
	queryHash := sha256.Sum256([]byte(normalized))
	profileHash := sha256.Sum256(profile.CanonicalJSON())
	return "query:" + hex.EncodeToString(queryHash[:])[:12] + ":" + hex.EncodeToString(profileHash[:])[:8]
}

// dedupe removes duplicates preserving first-seen order.
func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
