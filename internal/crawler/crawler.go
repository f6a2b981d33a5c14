// Package crawler implements the per-source job crawlers and the
// orchestrator that fans out across them, deduplicates by URL, and enriches
// a bounded prefix with full descriptions.
package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/jobs"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Crawler is the capability set every job source implements.
type Crawler interface {
	Name() string
	Search(ctx context.Context, query string, location string, maxResults int) ([]jobs.RawPosting, error)
	FetchDetails(ctx context.Context, url string) (*jobs.RawPosting, error)
}

// throttle enforces a fixed inter-request delay of 1s / rateLimit, paid once
// per HTTP request.
type throttle struct {
	delay time.Duration
}

func newThrottle(rateLimit int) throttle {
	if rateLimit <= 0 {
		rateLimit = 1
	}
	return throttle{delay: time.Second / time.Duration(rateLimit)}
}

func (t throttle) wait(ctx context.Context) error {
	select {
	case <-time.After(t.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fetchPage issues a bounded GET and returns the body. A non-200 status is
// reported through the ok flag, not an error, so callers can stop paging
// without treating it as a failure.
func fetchPage(ctx context.Context, client *http.Client, timeout time.Duration, url string) (body string, ok bool, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false, nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("reading body of %s: %w", url, err)
	}
	return string(data), true, nil
}
