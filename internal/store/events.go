// Package store materializes pipeline output into the relational store. The
// pipeline publishes a search-completed event to Kafka through the Recorder;
// the Persister consumes it in the background and writes postings and the
// search record to Postgres. Search responses never block on either half.
package store

import (
	"time"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/jobs"
)

// SearchCompleted is the event published after a full pipeline run.
type SearchCompleted struct {
	Fingerprint string                 `json:"fingerprint"`
	CallerID    string                 `json:"caller_id"`
	QueryText   string                 `json:"query_text"`
	Total       int                    `json:"total"`
	Result      jobs.CategorizedResult `json:"result"`
	CompletedAt time.Time              `json:"completed_at"`
}
