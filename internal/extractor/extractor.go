// Package extractor converts raw job postings into structured records. The
// primary path asks the LLM for a JSON-only extraction; any failure drops
// to a deterministic regex/keyword fallback, so extraction always produces
// a result.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/jobs"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/llm"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/metrics"
)

// descriptionBudget caps the prompt's description length to bound token cost.
const descriptionBudget = 3000

const extractionPromptTemplate = `Extract structured information from this job posting.

**Job Title:** %s
**Company:** %s
**Description:**
%s

Extract the following (return JSON only):
{
  "skills": ["skill1", "skill2", ...],
  "years_experience_min": integer or null,
  "years_experience_max": integer or null,
  "education_required": "Bachelor" or "Master" or "PhD" or null,
  "salary_min": integer or null,
  "salary_max": integer or null,
  "visa_sponsorship": boolean,
  "requires_citizenship": boolean,
  "work_authorization": ["H1B", "Green Card", "US Citizen"]
}

Rules:
- Extract ALL technical skills mentioned (programming languages, frameworks, tools)
- Infer experience from phrases like "3+ years", "5-7 years experience"
- Detect visa keywords: "sponsorship", "H1B", "work authorization", "visa available"
- Citizenship: Look for "US Citizen required", "must be authorized to work"
- Salary: Extract from "$100k-$150k", "100-150K", etc.
- If not found, return null (not "null" string, actual JSON null)

Return ONLY the JSON object, no additional text.`

// extraction is the attribute set pulled out of a posting description. It is
// the success variant of the LLM parse; a failed parse triggers the fallback.
type extraction struct {
	Skills              []string `json:"skills"`
	YearsExperienceMin  *int     `json:"years_experience_min"`
	YearsExperienceMax  *int     `json:"years_experience_max"`
	EducationRequired   string   `json:"education_required"`
	SalaryMin           *int     `json:"salary_min"`
	SalaryMax           *int     `json:"salary_max"`
	VisaSponsorship     bool     `json:"visa_sponsorship"`
	RequiresCitizenship bool     `json:"requires_citizenship"`
	WorkAuthorization   []string `json:"work_authorization"`
}

// Extractor turns RawPostings into StructuredPostings.
type Extractor struct {
	completer llm.Completer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates an Extractor. The metrics parameter may be nil.
func New(completer llm.Completer, m *metrics.Metrics) *Extractor {
	return &Extractor{
		completer: completer,
		metrics:   m,
		logger:    slog.Default().With("component", "extractor"),
	}
}

// Extract always returns a StructuredPosting. LLM or parse failure degrades
// to the rule-based fallback rather than surfacing an error.
func (e *Extractor) Extract(ctx context.Context, raw jobs.RawPosting) jobs.StructuredPosting {
	extracted, err := e.extractWithLLM(ctx, raw)
	outcome := "llm"
	if err != nil {
		e.logger.Warn("llm extraction failed, using fallback", "url", raw.URL, "error", err)
		extracted = fallbackExtraction(raw.Description)
		outcome = "fallback"
	}
	if e.metrics != nil {
		e.metrics.ExtractionsTotal.WithLabelValues(outcome).Inc()
	}
	return jobs.StructuredPosting{
		RawPosting:          raw,
		Skills:              extracted.Skills,
		YearsExperienceMin:  extracted.YearsExperienceMin,
		YearsExperienceMax:  extracted.YearsExperienceMax,
		EducationRequired:   extracted.EducationRequired,
		SalaryMin:           extracted.SalaryMin,
		SalaryMax:           extracted.SalaryMax,
		VisaSponsorship:     extracted.VisaSponsorship,
		RequiresCitizenship: extracted.RequiresCitizenship,
		WorkAuthorization:   extracted.WorkAuthorization,
	}
}

func (e *Extractor) extractWithLLM(ctx context.Context, raw jobs.RawPosting) (extraction, error) {
	description := raw.Description
	if len(description) > descriptionBudget {
		description = description[:descriptionBudget]
	}
	prompt := fmt.Sprintf(extractionPromptTemplate, raw.Title, raw.Company, description)

	reply, err := e.completer.Complete(ctx, "extraction", prompt)
	if err != nil {
		return extraction{}, err
	}
	return decodeExtraction(reply)
}

// decodeExtraction parses the model reply, tolerating code fences and prose
// around the JSON object.
func decodeExtraction(reply string) (extraction, error) {
	var result extraction
	payload := reply
	if start := strings.IndexByte(reply, '{'); start >= 0 {
		if end := strings.LastIndexByte(reply, '}'); end > start {
			payload = reply[start : end+1]
		}
	}
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return extraction{}, fmt.Errorf("decoding extraction reply: %w", err)
	}
	return result, nil
}
