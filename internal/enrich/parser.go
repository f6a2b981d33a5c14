// Package enrich turns free-text search queries into enriched structured
// queries: an LLM parsing step with a deterministic fallback, plus
// best-effort knowledge-graph expansion, fronted by a Redis cache.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/jobs"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/llm"
)

const parsePromptTemplate = `You are a job search query parser. Convert the user's natural language query into a structured JSON object.

Query: %q

Respond with ONLY a JSON object, no prose, matching this schema:
{
  "job_title": string,
  "skills": [string],
  "years_experience": int or null,
  "location": string or null,
  "remote": bool,
  "visa_requirement": string or null,
  "education_level": "Bachelor" | "Master" | "PhD" | null,
  "salary_min": int or null,
  "salary_max": int or null,
  "company_size": string or null,
  "industry": string or null
}

Omit fields the query does not mention.`

// Parser converts free text into a StructuredQuery via the LLM, falling back
// to a minimal query when parsing fails.
type Parser struct {
	completer llm.Completer
	logger    *slog.Logger
}

// NewParser creates a Parser.
func NewParser(completer llm.Completer) *Parser {
	return &Parser{
		completer: completer,
		logger:    slog.Default().With("component", "query-parser"),
	}
}

// Parse returns the structured form of queryText. It never returns an
// error: any LLM or decode failure yields a minimal query carrying the raw
// text as the job title.
func (p *Parser) Parse(ctx context.Context, queryText string) jobs.StructuredQuery {
	reply, err := p.completer.Complete(ctx, "query_parse", fmt.Sprintf(parsePromptTemplate, queryText))
	if err != nil {
		p.logger.Warn("query parse call failed, using minimal query", "error", err)
		return minimalQuery(queryText)
	}
	parsed, err := decodeStructuredQuery(reply)
	if err != nil {
		p.logger.Warn("query parse reply malformed, using minimal query", "error", err)
		return minimalQuery(queryText)
	}
	if parsed.JobTitle == "" {
		parsed.JobTitle = strings.TrimSpace(queryText)
	}
	return parsed
}

func minimalQuery(queryText string) jobs.StructuredQuery {
	return jobs.StructuredQuery{JobTitle: strings.TrimSpace(queryText)}
}

// decodeStructuredQuery parses a model reply, tolerating code fences and
// surrounding prose around the JSON object.
func decodeStructuredQuery(reply string) (jobs.StructuredQuery, error) {
	var query jobs.StructuredQuery
	payload := extractJSONObject(reply)
	if payload == "" {
		return query, fmt.Errorf("no JSON object in reply")
	}
	if err := json.Unmarshal([]byte(payload), &query); err != nil {
		return query, fmt.Errorf("decoding structured query: %w", err)
	}
	return query, nil
}

// extractJSONObject returns the first balanced {...} region of s, or "".
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
