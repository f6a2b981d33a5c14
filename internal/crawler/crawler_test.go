package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/jobs"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/config"
)

func linkedInCard(title, company, location, href string) string {
	return fmt.Sprintf(`<div class="base-card">
		<h3 class="base-search-card__title">%s</h3>
		<h4 class="base-search-card__subtitle">%s</h4>
		<span class="job-search-card__location">%s</span>
		<a class="base-card__full-link" href="%s">view</a>
	</div>`, title, company, location, href)
}

func TestLinkedInSearchParsesCards(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") != "0" {
			fmt.Fprint(w, "<html><body></body></html>")
			return
		}
		fmt.Fprint(w, "<html><body>"+
			linkedInCard("Go Engineer", "Initech", "Remote", "https://www.linkedin.com/jobs/view/12345?refId=abc")+
			linkedInCard("", "NoTitle Inc", "NYC", "https://www.linkedin.com/jobs/view/99")+
			"</body></html>")
	}))
	defer srv.Close()

	c := NewLinkedIn(config.SourceConfig{BaseURL: srv.URL, RateLimit: 100}, time.Second)
	postings, err := c.Search(context.Background(), "go engineer", "Remote", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("got %d postings, want 1 (malformed card skipped)", len(postings))
	}
	p := postings[0]
	if p.Title != "Go Engineer" || p.Company != "Initech" {
		t.Fatalf("posting = %+v", p)
	}
	if p.URL != "https://www.linkedin.com/jobs/view/12345" {
		t.Fatalf("URL = %q, want query string stripped", p.URL)
	}
	if p.ExternalID != "12345" {
		t.Fatalf("ExternalID = %q", p.ExternalID)
	}
	if p.Category != jobs.CategoryJobBoard {
		t.Fatalf("Category = %q", p.Category)
	}
}

func TestLinkedInSearchStopsOnNon200(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewLinkedIn(config.SourceConfig{BaseURL: srv.URL, RateLimit: 100}, time.Second)
	postings, err := c.Search(context.Background(), "any", "", 10)
	if err != nil {
		t.Fatalf("non-200 must not be an error, got %v", err)
	}
	if len(postings) != 0 || calls != 1 {
		t.Fatalf("postings=%d calls=%d, want paging to stop immediately", len(postings), calls)
	}
}

func TestIndeedSearchBuildsViewjobURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs" || r.URL.Query().Get("start") != "0" {
			fmt.Fprint(w, "<html></html>")
			return
		}
		fmt.Fprint(w, `<html><body><div class="job_seen_beacon">
			<h2 class="jobTitle">Platform Engineer</h2>
			<span class="companyName">Globex</span>
			<div class="companyLocation">Austin, TX</div>
			<a data-jk="abc123" href="/rc/clk?jk=abc123">apply</a>
		</div></body></html>`)
	}))
	defer srv.Close()

	c := NewIndeed(config.SourceConfig{BaseURL: srv.URL, RateLimit: 100}, time.Second)
	postings, err := c.Search(context.Background(), "platform engineer", "Austin", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("got %d postings, want 1", len(postings))
	}
	if want := srv.URL + "/viewjob?jk=abc123"; postings[0].URL != want {
		t.Fatalf("URL = %q, want %q", postings[0].URL, want)
	}
	if postings[0].ExternalID != "abc123" {
		t.Fatalf("ExternalID = %q", postings[0].ExternalID)
	}
}

func TestIndeedFetchDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div id="jobDescriptionText">Build   and run
			the platform.</div></body></html>`)
	}))
	defer srv.Close()

	c := NewIndeed(config.SourceConfig{BaseURL: srv.URL, RateLimit: 100}, time.Second)
	details, err := c.FetchDetails(context.Background(), srv.URL+"/viewjob?jk=x")
	if err != nil {
		t.Fatalf("FetchDetails: %v", err)
	}
	if details.Description != "Build and run the platform." {
		t.Fatalf("Description = %q", details.Description)
	}
}

func TestCareerPageSearchScansAnchors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<a href="/jobs/1">Senior Backend Engineer</a>
			<a href="/about">About us</a>
			<a href="https://example.org/jobs/2">Backend Developer</a>
		</body></html>`)
	}))
	defer srv.Close()

	c := NewCareerPage(config.CareerConfig{URLs: []string{srv.URL + "/careers"}, RateLimit: 100}, time.Second)
	postings, err := c.Search(context.Background(), "backend", "", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(postings) != 2 {
		t.Fatalf("got %d postings, want 2 keyword matches", len(postings))
	}
	if !strings.HasPrefix(postings[0].URL, srv.URL) {
		t.Fatalf("relative href not resolved: %q", postings[0].URL)
	}
	if postings[1].URL != "https://example.org/jobs/2" {
		t.Fatalf("absolute href rewritten: %q", postings[1].URL)
	}
	if postings[0].Category != jobs.CategoryCareerPage {
		t.Fatalf("Category = %q", postings[0].Category)
	}
}

type stubCrawler struct {
	name       string
	postings   []jobs.RawPosting
	searchErr  error
	details    map[string]string
	detailErr  error
	detailHits atomic.Int32
}

func (s *stubCrawler) Name() string { return s.name }

func (s *stubCrawler) Search(ctx context.Context, query, location string, maxResults int) ([]jobs.RawPosting, error) {
	return s.postings, s.searchErr
}

func (s *stubCrawler) FetchDetails(ctx context.Context, url string) (*jobs.RawPosting, error) {
	s.detailHits.Add(1)
	if s.detailErr != nil {
		return nil, s.detailErr
	}
	return &jobs.RawPosting{URL: url, Description: s.details[url]}, nil
}

func TestSearchAllSourcesIsolatesFailures(t *testing.T) {
	good := &stubCrawler{name: "alpha", postings: []jobs.RawPosting{{Title: "A", Company: "X", URL: "u1", Source: "alpha"}}}
	bad := &stubCrawler{name: "beta", searchErr: errors.New("boom")}
	o := NewOrchestrator([]Crawler{good, bad}, OrchestratorOptions{}, nil)

	results := o.SearchAllSources(context.Background(), "q", "", 10)
	if len(results["alpha"]) != 1 {
		t.Fatalf("alpha results = %v", results["alpha"])
	}
	if got, ok := results["beta"]; !ok || len(got) != 0 {
		t.Fatalf("failed source must map to empty slice, got %v (present=%v)", got, ok)
	}
}

func TestMergeResultsDeterministicOrder(t *testing.T) {
	bySource := map[string][]jobs.RawPosting{
		"zeta":  {{URL: "z1"}},
		"alpha": {{URL: "a1"}, {URL: "a2"}},
	}
	merged := MergeResults(bySource)
	if len(merged) != 3 {
		t.Fatalf("len = %d", len(merged))
	}
	if merged[0].URL != "a1" || merged[1].URL != "a2" || merged[2].URL != "z1" {
		t.Fatalf("merge order = %v, want sorted by source name", []string{merged[0].URL, merged[1].URL, merged[2].URL})
	}
}

func TestDeduplicateJobsFirstSeenWins(t *testing.T) {
	postings := []jobs.RawPosting{
		{URL: "u1", Title: "first"},
		{URL: "u2", Title: "second"},
		{URL: "u1", Title: "dupe"},
		{URL: "u3", Title: "third"},
	}
	unique := DeduplicateJobs(postings)
	if len(unique) != 3 {
		t.Fatalf("len = %d, want 3", len(unique))
	}
	if unique[0].Title != "first" || unique[1].Title != "second" || unique[2].Title != "third" {
		t.Fatalf("order not preserved: %v", unique)
	}
}

func TestEnrichJobDetailsKeepsFailedPostings(t *testing.T) {
	c := &stubCrawler{
		name:      "alpha",
		details:   map[string]string{"u1": "full description"},
		detailErr: nil,
	}
	failing := &stubCrawler{name: "beta", detailErr: errors.New("blocked")}
	o := NewOrchestrator([]Crawler{c, failing}, OrchestratorOptions{BatchSize: 2, BatchPause: time.Millisecond}, nil)

	postings := []jobs.RawPosting{
		{URL: "u1", Source: "alpha"},
		{URL: "u2", Source: "beta", Description: ""},
	}
	enriched := o.EnrichJobDetails(context.Background(), postings)
	if len(enriched) != 2 {
		t.Fatalf("len = %d, postings must never be dropped", len(enriched))
	}
	if enriched[0].Description != "full description" {
		t.Fatalf("Description = %q", enriched[0].Description)
	}
	if enriched[1].Description != "" {
		t.Fatalf("failed fetch must leave description unchanged, got %q", enriched[1].Description)
	}
}

func TestEnrichJobDetailsHonorsLimit(t *testing.T) {
	c := &stubCrawler{name: "alpha", details: map[string]string{}}
	o := NewOrchestrator([]Crawler{c}, OrchestratorOptions{DetailLimit: 2, BatchSize: 2, BatchPause: time.Millisecond}, nil)

	postings := make([]jobs.RawPosting, 5)
	for i := range postings {
		postings[i] = jobs.RawPosting{URL: fmt.Sprintf("u%d", i), Source: "alpha"}
	}
	o.EnrichJobDetails(context.Background(), postings)
	if got := c.detailHits.Load(); got != 2 {
		t.Fatalf("detail fetches = %d, want 2 (limit)", got)
	}
}
