package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/jobs"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/config"
)

// Indeed crawls Indeed's job search. Result pages step by 10 and detail
// pages live at /viewjob?jk=<id>.
type Indeed struct {
	baseURL  string
	client   *http.Client
	timeout  time.Duration
	throttle throttle
	logger   *slog.Logger
}

// NewIndeed creates an Indeed crawler.
func NewIndeed(cfg config.SourceConfig, requestTimeout time.Duration) *Indeed {
	return &Indeed{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		client:   &http.Client{},
		timeout:  requestTimeout,
		throttle: newThrottle(cfg.RateLimit),
		logger:   slog.Default().With("component", "crawler", "source", "indeed"),
	}
}

func (i *Indeed) Name() string { return "indeed" }

// Search pages through results until maxResults postings are collected or a
// page comes back non-200 or empty.
func (i *Indeed) Search(ctx context.Context, query string, location string, maxResults int) ([]jobs.RawPosting, error) {
	var postings []jobs.RawPosting
	for start := 0; len(postings) < maxResults; start += 10 {
		params := url.Values{}
		params.Set("q", query)
		params.Set("l", location)
		params.Set("start", fmt.Sprint(start))
		params.Set("fromage", "1")

		body, ok, err := fetchPage(ctx, i.client, i.timeout, i.baseURL+"/jobs?"+params.Encode())
		if err != nil {
			i.logger.Warn("page fetch failed, stopping", "start", start, "error", err)
			break
		}
		if !ok {
			break
		}
		cards := findAll(parseHTML(body), "div", "job_seen_beacon")
		if len(cards) == 0 {
			break
		}
		for _, card := range cards {
			if posting, ok := i.parseCard(card); ok {
				postings = append(postings, posting)
			}
		}
		if err := i.throttle.wait(ctx); err != nil {
			break
		}
	}
	if len(postings) > maxResults {
		postings = postings[:maxResults]
	}
	return postings, nil
}

func (i *Indeed) parseCard(card *html.Node) (jobs.RawPosting, bool) {
	title := innerText(findFirst(card, "h2", "jobTitle"))
	company := innerText(findFirst(card, "span", "companyName"))
	link := findFirst(card, "a", "")
	if title == "" || company == "" || link == nil {
		return jobs.RawPosting{}, false
	}
	jobID := attr(link, "data-jk")
	if jobID == "" {
		return jobs.RawPosting{}, false
	}
	return jobs.RawPosting{
		Title:      title,
		Company:    company,
		Location:   innerText(findFirst(card, "div", "companyLocation")),
		URL:        i.baseURL + "/viewjob?jk=" + jobID,
		Source:     "indeed",
		Category:   jobs.CategoryJobBoard,
		ExternalID: jobID,
	}, true
}

// FetchDetails retrieves the full description from a viewjob page.
func (i *Indeed) FetchDetails(ctx context.Context, jobURL string) (*jobs.RawPosting, error) {
	body, ok, err := fetchPage(ctx, i.client, i.timeout, jobURL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fetching indeed details: unexpected status for %s", jobURL)
	}
	description := innerText(findByID(parseHTML(body), "jobDescriptionText"))
	return &jobs.RawPosting{
		Description: description,
		URL:         jobURL,
		Source:      "indeed",
		Category:    jobs.CategoryJobBoard,
		RawMarkup:   body,
	}, nil
}
