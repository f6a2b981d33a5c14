// Package jobs defines the domain types shared by the discovery pipeline:
// queries, raw and structured postings, caller profiles, and the categorized
// result set.
package jobs

import (
	"encoding/json"
	"time"
)

// SourceCategory classifies the provenance of a posting.
type SourceCategory string

const (
	CategoryJobBoard   SourceCategory = "job_board"
	CategoryCareerPage SourceCategory = "career_page"
	CategoryHiringPost SourceCategory = "hiring_post"
)

// StructuredQuery is the parsed form of a free-text search query. It is
// immutable once parsed.
type StructuredQuery struct {
	JobTitle        string   `json:"job_title"`
	Skills          []string `json:"skills,omitempty"`
	YearsExperience *int     `json:"years_experience,omitempty"`
	Location        string   `json:"location,omitempty"`
	Remote          bool     `json:"remote,omitempty"`
	VisaRequirement string   `json:"visa_requirement,omitempty"`
	EducationLevel  string   `json:"education_level,omitempty"`
	SalaryMin       *int     `json:"salary_min,omitempty"`
	SalaryMax       *int     `json:"salary_max,omitempty"`
	CompanySize     string   `json:"company_size,omitempty"`
	Industry        string   `json:"industry,omitempty"`
}

// SponsorCompany is a company known to sponsor a given visa type.
type SponsorCompany struct {
	Name     string `json:"name"`
	ID       string `json:"id,omitempty"`
	Size     string `json:"size,omitempty"`
	Industry string `json:"industry,omitempty"`
}

// EnrichedQuery wraps a StructuredQuery with graph-derived expansions. The
// derived fields are best-effort: empty when the enrichment source failed.
type EnrichedQuery struct {
	Query            StructuredQuery  `json:"query"`
	TitleSynonyms    []string         `json:"title_synonyms,omitempty"`
	RelatedSkills    []string         `json:"related_skills,omitempty"`
	SponsorCompanies []SponsorCompany `json:"sponsor_companies,omitempty"`
	EducationAlts    []string         `json:"education_alternatives,omitempty"`
}

// RawPosting is a single crawl result. A crawler creates it, the
// orchestrator's detail-enrichment step may fill in Description and
// RawMarkup once, and the extractor consumes it read-only after that.
type RawPosting struct {
	Title       string         `json:"title"`
	Company     string         `json:"company"`
	Location    string         `json:"location,omitempty"`
	Description string         `json:"description,omitempty"`
	URL         string         `json:"url"`
	Source      string         `json:"source"`
	Category    SourceCategory `json:"category,omitempty"`
	ExternalID  string         `json:"external_id,omitempty"`
	PostedDate  *time.Time     `json:"posted_date,omitempty"`
	RawMarkup   string         `json:"-"`
}

// StructuredPosting is a RawPosting plus the attributes extracted from its
// description. MatchScore is assigned only by the scoring stage and is owned
// by a single pipeline run.
type StructuredPosting struct {
	RawPosting
	Skills              []string `json:"skills,omitempty"`
	YearsExperienceMin  *int     `json:"years_experience_min,omitempty"`
	YearsExperienceMax  *int     `json:"years_experience_max,omitempty"`
	EducationRequired   string   `json:"education_required,omitempty"`
	SalaryMin           *int     `json:"salary_min,omitempty"`
	SalaryMax           *int     `json:"salary_max,omitempty"`
	VisaSponsorship     bool     `json:"visa_sponsorship"`
	RequiresCitizenship bool     `json:"requires_citizenship"`
	WorkAuthorization   []string `json:"work_authorization,omitempty"`
	MatchScore          float64  `json:"match_score"`
}

// Profile is the caller's stored profile context, read-only per run.
type Profile struct {
	Skills          []string `json:"skills"`
	YearsExperience int      `json:"years_experience"`
	Location        string   `json:"location,omitempty"`
	VisaStatus      string   `json:"visa_status,omitempty"`
	Education       string   `json:"education,omitempty"`
}

// CanonicalJSON serialises the profile with deterministic field order.
// Encoding through a map lets json.Marshal sort the keys.
func (p Profile) CanonicalJSON() []byte {
	data, _ := json.Marshal(map[string]any{
		"skills":           p.Skills,
		"years_experience": p.YearsExperience,
		"location":         p.Location,
		"visa_status":      p.VisaStatus,
		"education":        p.Education,
	})
	return data
}

// CategorizedResult buckets the final postings by provenance.
type CategorizedResult struct {
	JobBoards   []StructuredPosting `json:"job_boards"`
	CareerPages []StructuredPosting `json:"career_pages"`
	HiringPosts []StructuredPosting `json:"hiring_posts"`
}

// Total returns the number of postings across all buckets.
func (r CategorizedResult) Total() int {
	return len(r.JobBoards) + len(r.CareerPages) + len(r.HiringPosts)
}

// EducationRank maps an education level to its ordinal: Bachelor=1,
// Master=2, PhD=3, anything else 0.
func EducationRank(level string) int {
	switch level {
	case "Bachelor":
		return 1
	case "Master":
		return 2
	case "PhD":
		return 3
	default:
		return 0
	}
}
