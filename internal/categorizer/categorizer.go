// Package categorizer buckets final postings into the three presentation
// groups by provenance.
package categorizer

import "github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/jobs"

// jobBoardSources is the fallback allow-list consulted when a posting
// carries no recognized category tag. Matching is case-sensitive and exact.
var jobBoardSources = map[string]struct{}{
	"linkedin":  {},
	"indeed":    {},
	"glassdoor": {},
	"monster":   {},
}

// Categorize splits postings into job boards, career pages, and hiring
// posts. The explicit category tag wins; an absent or unknown tag falls
// back to the source-name allow-list. Hiring posts are only ever selected
// by the explicit tag.
func Categorize(postings []jobs.StructuredPosting) jobs.CategorizedResult {
	var result jobs.CategorizedResult
	for _, p := range postings {
		switch p.Category {
		case jobs.CategoryJobBoard:
			result.JobBoards = append(result.JobBoards, p)
		case jobs.CategoryCareerPage:
			result.CareerPages = append(result.CareerPages, p)
		case jobs.CategoryHiringPost:
			result.HiringPosts = append(result.HiringPosts, p)
		default:
			if _, ok := jobBoardSources[p.Source]; ok {
				result.JobBoards = append(result.JobBoards, p)
			} else {
				result.CareerPages = append(result.CareerPages, p)
			}
		}
	}
	return result
}
