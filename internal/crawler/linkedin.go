package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/jobs"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/config"
)

var linkedInJobIDPattern = regexp.MustCompile(`/jobs/view/(\d+)`)

// LinkedIn crawls the public LinkedIn jobs search. Result pages step by 25.
type LinkedIn struct {
	baseURL  string
	client   *http.Client
	timeout  time.Duration
	throttle throttle
	logger   *slog.Logger
}

// NewLinkedIn creates a LinkedIn crawler.
func NewLinkedIn(cfg config.SourceConfig, requestTimeout time.Duration) *LinkedIn {
	return &LinkedIn{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		client:   &http.Client{},
		timeout:  requestTimeout,
		throttle: newThrottle(cfg.RateLimit),
		logger:   slog.Default().With("component", "crawler", "source", "linkedin"),
	}
}

func (l *LinkedIn) Name() string { return "linkedin" }

// Search pages through results until maxResults postings are collected or a
// page comes back non-200 or empty. Transport errors end paging with what
// was already accumulated.
func (l *LinkedIn) Search(ctx context.Context, query string, location string, maxResults int) ([]jobs.RawPosting, error) {
	var postings []jobs.RawPosting
	for start := 0; len(postings) < maxResults; start += 25 {
		params := url.Values{}
		params.Set("keywords", query)
		params.Set("location", location)
		params.Set("start", fmt.Sprint(start))
		params.Set("f_TPR", "r86400")

		body, ok, err := fetchPage(ctx, l.client, l.timeout, l.baseURL+"?"+params.Encode())
		if err != nil {
			l.logger.Warn("page fetch failed, stopping", "start", start, "error", err)
			break
		}
		if !ok {
			break
		}
		cards := findAll(parseHTML(body), "div", "base-card")
		if len(cards) == 0 {
			break
		}
		for _, card := range cards {
			if posting, ok := l.parseCard(card); ok {
				postings = append(postings, posting)
			}
		}
		if err := l.throttle.wait(ctx); err != nil {
			break
		}
	}
	if len(postings) > maxResults {
		postings = postings[:maxResults]
	}
	return postings, nil
}

// parseCard extracts a posting from one search-result card. Cards missing a
// title, company, or link are skipped.
func (l *LinkedIn) parseCard(card *html.Node) (jobs.RawPosting, bool) {
	title := innerText(findFirst(card, "h3", "base-search-card__title"))
	company := innerText(findFirst(card, "h4", "base-search-card__subtitle"))
	link := findFirst(card, "a", "base-card__full-link")
	if title == "" || company == "" || link == nil {
		return jobs.RawPosting{}, false
	}
	jobURL, _, _ := strings.Cut(attr(link, "href"), "?")
	if jobURL == "" {
		return jobs.RawPosting{}, false
	}
	var externalID string
	if m := linkedInJobIDPattern.FindStringSubmatch(jobURL); m != nil {
		externalID = m[1]
	}
	return jobs.RawPosting{
		Title:      title,
		Company:    company,
		Location:   innerText(findFirst(card, "span", "job-search-card__location")),
		URL:        jobURL,
		Source:     "linkedin",
		Category:   jobs.CategoryJobBoard,
		ExternalID: externalID,
	}, true
}

// FetchDetails retrieves the full job description for a posting URL.
func (l *LinkedIn) FetchDetails(ctx context.Context, jobURL string) (*jobs.RawPosting, error) {
	body, ok, err := fetchPage(ctx, l.client, l.timeout, jobURL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fetching linkedin details: unexpected status for %s", jobURL)
	}
	description := innerText(findFirst(parseHTML(body), "div", "show-more-less-html__markup"))
	return &jobs.RawPosting{
		Description: description,
		URL:         jobURL,
		Source:      "linkedin",
		Category:    jobs.CategoryJobBoard,
		RawMarkup:   body,
	}, nil
}
