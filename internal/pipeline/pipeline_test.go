package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/crawler"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/enrich"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/extractor"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/filter"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/jobs"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/store"
	apperrors "github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/errors"
)

// scriptedCompleter answers the parse and extraction prompts for the
// senior-python scenario.
type scriptedCompleter struct {
	mu         sync.Mutex
	parseCalls int
}

func (s *scriptedCompleter) Complete(ctx context.Context, operation string, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch operation {
	case "query_parse":
		s.parseCalls++
		return `{"job_title":"senior python backend engineer","skills":["python"]}`, nil
	case "extraction":
		if strings.Contains(prompt, "Backend Engineer A") {
			return `{"skills":["python","django","postgresql"],"years_experience_min":5,"education_required":"Bachelor","visa_sponsorship":false,"requires_citizenship":false}`, nil
		}
		return `{"skills":["java","spring"],"years_experience_min":3,"education_required":"Bachelor","visa_sponsorship":false,"requires_citizenship":false}`, nil
	}
	return "", errors.New("unexpected operation " + operation)
}

type seededCrawler struct {
	postings []jobs.RawPosting
}

func (s *seededCrawler) Name() string { return "linkedin" }

func (s *seededCrawler) Search(ctx context.Context, query, location string, maxResults int) ([]jobs.RawPosting, error) {
	return s.postings, nil
}

func (s *seededCrawler) FetchDetails(ctx context.Context, url string) (*jobs.RawPosting, error) {
	return &jobs.RawPosting{URL: url, Description: "detailed description"}, nil
}

type staticProfiles struct {
	profile *jobs.Profile
	err     error
}

func (s *staticProfiles) Fetch(ctx context.Context, callerID string) (*jobs.Profile, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.profile, nil
}

type captureRecorder struct {
	mu     sync.Mutex
	events []store.SearchCompleted
}

func (c *captureRecorder) Record(event store.SearchCompleted) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureRecorder) last() *store.SearchCompleted {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return nil
	}
	return &c.events[len(c.events)-1]
}

func newTestPipeline(t *testing.T, completer *scriptedCompleter, profile *jobs.Profile) (*Pipeline, *memKV, *captureRecorder) {
	t.Helper()
	seeded := &seededCrawler{postings: []jobs.RawPosting{
		{Title: "Backend Engineer A", Company: "Initech", URL: "https://jobs.example/a", Source: "linkedin", Category: jobs.CategoryJobBoard},
		{Title: "Backend Engineer B", Company: "Globex", URL: "https://jobs.example/b", Source: "linkedin", Category: jobs.CategoryJobBoard},
	}}
	kv := newMemKV()
	recorder := &captureRecorder{}
	p := New(
		enrich.NewEnricher(enrich.NewParser(completer), nil, nil, time.Hour),
		crawler.NewOrchestrator([]crawler.Crawler{seeded}, crawler.OrchestratorOptions{BatchPause: time.Millisecond}, nil),
		extractor.New(completer, nil),
		filter.NewMachine(nil),
		NewResultCache(kv, time.Hour),
		NewNotifier(64),
		&staticProfiles{profile: profile},
		recorder,
		nil,
		Options{MaxPerSource: 10},
	)
	return p, kv, recorder
}

func seniorPythonProfile() *jobs.Profile {
	return &jobs.Profile{
		Skills:          []string{"python", "django"},
		YearsExperience: 6,
		VisaStatus:      "citizen",
		Education:       "Bachelor",
	}
}

func TestRunSearchSeniorPythonScenario(t *testing.T) {
	completer := &scriptedCompleter{}
	p, _, recorder := newTestPipeline(t, completer, seniorPythonProfile())

	events := p.Notifier().Subscribe("caller-1")
	result, err := p.RunSearch(context.Background(), "caller-1", "senior python backend engineer")
	if err != nil {
		t.Fatalf("RunSearch: %v", err)
	}
	if result.Total() != 1 {
		t.Fatalf("total = %d, want only posting A to survive", result.Total())
	}
	survivor := result.JobBoards[0]
	if survivor.URL != "https://jobs.example/a" {
		t.Fatalf("survivor = %q", survivor.URL)
	}
	if survivor.MatchScore != 66.7 {
		t.Fatalf("score = %v, want 66.7", survivor.MatchScore)
	}

	wantStages := []string{StageStarted, StageQueryParsed, StageCrawling, StageCrawlingComplete, StageExtracting, StageFiltering, StageComplete}
	for _, want := range wantStages {
		select {
		case got := <-events:
			if got.Stage != want {
				t.Fatalf("stage = %q, want %q", got.Stage, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing stage event %q", want)
		}
	}

	deadline := time.After(2 * time.Second)
	for recorder.last() == nil {
		select {
		case <-deadline:
			t.Fatal("search-completed event never recorded")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	if got := recorder.last(); got.Total != 1 || got.QueryText != "senior python backend engineer" {
		t.Fatalf("recorded event = %+v", got)
	}
}

func TestRunSearchProfileRequired(t *testing.T) {
	completer := &scriptedCompleter{}
	p, _, _ := newTestPipeline(t, completer, nil)

	_, err := p.RunSearch(context.Background(), "caller-1", "any query")
	if !errors.Is(err, apperrors.ErrProfileRequired) {
		t.Fatalf("err = %v, want ErrProfileRequired", err)
	}
	if completer.parseCalls != 0 {
		t.Fatal("pipeline must not run without a profile")
	}
}

func TestRunSearchProfileLookupFailureIsInternal(t *testing.T) {
	completer := &scriptedCompleter{}
	p, _, _ := newTestPipeline(t, completer, nil)
	p.profiles = &staticProfiles{err: errors.New("postgres: connection refused")}

	_, err := p.RunSearch(context.Background(), "caller-1", "any query")
	if !errors.Is(err, apperrors.ErrInternal) {
		t.Fatalf("err = %v, want ErrInternal for a store failure", err)
	}
	if errors.Is(err, apperrors.ErrProfileRequired) {
		t.Fatal("store failure must not be reported as a missing profile")
	}
	if status := apperrors.HTTPStatusCode(err); status != 500 {
		t.Fatalf("status = %d, want 500", status)
	}
	if completer.parseCalls != 0 {
		t.Fatal("pipeline must not run when the profile lookup fails")
	}
}

func TestRunSearchCacheHitSkipsCrawl(t *testing.T) {
	completer := &scriptedCompleter{}
	p, kv, _ := newTestPipeline(t, completer, seniorPythonProfile())
	ctx := context.Background()

	if _, err := p.RunSearch(ctx, "caller-1", "senior python backend engineer"); err != nil {
		t.Fatalf("first RunSearch: %v", err)
	}

	// Cache write-back is fire-and-forget; wait for it to land.
	fp := Fingerprint("senior python backend engineer", *seniorPythonProfile())
	deadline := time.After(2 * time.Second)
	for {
		var entry CacheEntry
		if err := kv.GetJSON(ctx, "search:"+fp, &entry); err == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("cache write never landed")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	events := p.Notifier().Subscribe("caller-1")
	parseCallsBefore := completer.parseCalls
	result, err := p.RunSearch(ctx, "caller-1", "senior python backend engineer")
	if err != nil {
		t.Fatalf("second RunSearch: %v", err)
	}
	if result.Total() != 1 {
		t.Fatalf("cached total = %d", result.Total())
	}
	if completer.parseCalls != parseCallsBefore {
		t.Fatal("cache hit must not invoke the parser")
	}

	got := <-events
	if got.Stage != StageStarted {
		t.Fatalf("first event = %q", got.Stage)
	}
	got = <-events
	if got.Stage != StageComplete {
		t.Fatalf("cache hit must skip crawl stages, got %q", got.Stage)
	}
	if cached, _ := got.Data["cached"].(bool); !cached {
		t.Fatalf("complete event data = %v, want cached=true", got.Data)
	}
}
