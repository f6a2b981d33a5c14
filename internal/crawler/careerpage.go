package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/jobs"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/config"
)

// CareerPage crawls a configured set of company career pages by scanning
// anchors whose text mentions the query keywords.
type CareerPage struct {
	pages    []string
	client   *http.Client
	timeout  time.Duration
	throttle throttle
	logger   *slog.Logger
}

// NewCareerPage creates a CareerPage crawler over the configured URLs.
func NewCareerPage(cfg config.CareerConfig, requestTimeout time.Duration) *CareerPage {
	return &CareerPage{
		pages:    cfg.URLs,
		client:   &http.Client{},
		timeout:  requestTimeout,
		throttle: newThrottle(cfg.RateLimit),
		logger:   slog.Default().With("component", "crawler", "source", "career_page"),
	}
}

func (c *CareerPage) Name() string { return "career_pages" }

// Search scans each configured career page for anchors matching the query
// keywords. A page that fails to load is skipped.
func (c *CareerPage) Search(ctx context.Context, query string, location string, maxResults int) ([]jobs.RawPosting, error) {
	keywords := strings.Fields(strings.ToLower(query))
	var postings []jobs.RawPosting
	for _, page := range c.pages {
		if len(postings) >= maxResults {
			break
		}
		body, ok, err := fetchPage(ctx, c.client, c.timeout, page)
		if err != nil {
			c.logger.Warn("career page fetch failed, skipping", "url", page, "error", err)
			continue
		}
		if !ok {
			continue
		}
		postings = append(postings, c.scanAnchors(page, body, keywords)...)
		if err := c.throttle.wait(ctx); err != nil {
			break
		}
	}
	if len(postings) > maxResults {
		postings = postings[:maxResults]
	}
	return postings, nil
}

// scanAnchors collects anchors whose visible text contains any keyword.
func (c *CareerPage) scanAnchors(pageURL string, body string, keywords []string) []jobs.RawPosting {
	var postings []jobs.RawPosting
	for _, anchor := range findAll(parseHTML(body), "a", "") {
		href := attr(anchor, "href")
		text := innerText(anchor)
		if href == "" || text == "" {
			continue
		}
		lower := strings.ToLower(text)
		matched := false
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		postings = append(postings, jobs.RawPosting{
			Title:    text,
			Company:  companyFromURL(pageURL),
			URL:      resolveHref(pageURL, href),
			Source:   "career_pages",
			Category: jobs.CategoryCareerPage,
		})
	}
	return postings
}

// FetchDetails tries a fixed list of description containers in order.
func (c *CareerPage) FetchDetails(ctx context.Context, jobURL string) (*jobs.RawPosting, error) {
	body, ok, err := fetchPage(ctx, c.client, c.timeout, jobURL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fetching career page details: unexpected status for %s", jobURL)
	}
	root := parseHTML(body)
	var description string
	for _, sel := range []struct{ tag, class string }{
		{"div", "job-description"},
		{"div", "description"},
		{"article", ""},
		{"main", ""},
	} {
		if node := findFirst(root, sel.tag, sel.class); node != nil {
			description = innerText(node)
			break
		}
	}
	return &jobs.RawPosting{
		Description: description,
		URL:         jobURL,
		Source:      "career_pages",
		Category:    jobs.CategoryCareerPage,
		RawMarkup:   body,
	}, nil
}

// companyFromURL derives a display company name from the page host,
// e.g. https://www.initech.com/careers -> Initech.
func companyFromURL(pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(parsed.Host, "www.")
	name, _, _ := strings.Cut(host, ".")
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// resolveHref makes relative hrefs absolute against the page URL.
func resolveHref(pageURL string, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
