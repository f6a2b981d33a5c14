package categorizer

import (
	"testing"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/jobs"
)

func tagged(url string, category jobs.SourceCategory, source string) jobs.StructuredPosting {
	return jobs.StructuredPosting{
		RawPosting: jobs.RawPosting{URL: url, Category: category, Source: source},
	}
}

func TestCategorizeByExplicitTag(t *testing.T) {
	result := Categorize([]jobs.StructuredPosting{
		tagged("u1", jobs.CategoryJobBoard, "linkedin"),
		tagged("u2", jobs.CategoryCareerPage, "career_pages"),
		tagged("u3", jobs.CategoryHiringPost, "linkedin"),
	})
	if len(result.JobBoards) != 1 || result.JobBoards[0].URL != "u1" {
		t.Fatalf("JobBoards = %v", result.JobBoards)
	}
	if len(result.CareerPages) != 1 || result.CareerPages[0].URL != "u2" {
		t.Fatalf("CareerPages = %v", result.CareerPages)
	}
	if len(result.HiringPosts) != 1 || result.HiringPosts[0].URL != "u3" {
		t.Fatalf("HiringPosts = %v", result.HiringPosts)
	}
}

func TestCategorizeFallbackAllowList(t *testing.T) {
	result := Categorize([]jobs.StructuredPosting{
		tagged("board", "", "glassdoor"),
		tagged("page", "", "acme"),
		tagged("caseSensitive", "", "LinkedIn"),
		tagged("unknownTag", "something_else", "monster"),
	})
	if len(result.JobBoards) != 2 {
		t.Fatalf("JobBoards = %v, want glassdoor and monster via allow-list", result.JobBoards)
	}
	if len(result.CareerPages) != 2 {
		t.Fatalf("CareerPages = %v, want non-allow-list sources (matching is case-sensitive)", result.CareerPages)
	}
	if len(result.HiringPosts) != 0 {
		t.Fatal("hiring posts must never come from fallback inference")
	}
}
