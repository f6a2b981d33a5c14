package pipeline

import "time"

// Stage event names, emitted in this order during a full run. A cache hit
// emits only started and complete; failed replaces complete on a terminal
// error.
const (
	StageStarted          = "started"
	StageQueryParsed      = "query_parsed"
	StageCrawling         = "crawling"
	StageCrawlingComplete = "crawling_complete"
	StageExtracting       = "extracting"
	StageFiltering        = "filtering"
	StageComplete         = "complete"
	StageFailed           = "failed"
)

// StageEvent is one progress notification delivered to a subscriber.
type StageEvent struct {
	Stage     string         `json:"stage"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}
