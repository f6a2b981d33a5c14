package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/jobs"
)

type fakeCompleter struct {
	reply      string
	err        error
	lastPrompt string
}

func (f *fakeCompleter) Complete(ctx context.Context, operation string, prompt string) (string, error) {
	f.lastPrompt = prompt
	return f.reply, f.err
}

func TestExtractFromLLMReply(t *testing.T) {
	reply := `{
		"skills": ["python", "django", "postgresql"],
		"years_experience_min": 5,
		"years_experience_max": 8,
		"education_required": "Bachelor",
		"salary_min": 120000,
		"salary_max": 160000,
		"visa_sponsorship": true,
		"requires_citizenship": false,
		"work_authorization": ["H1B"]
	}`
	e := New(&fakeCompleter{reply: reply}, nil)

	p := e.Extract(context.Background(), jobs.RawPosting{
		Title:       "Backend Engineer",
		Company:     "Initech",
		Description: "long description",
		URL:         "u1",
	})
	if len(p.Skills) != 3 || p.Skills[0] != "python" {
		t.Fatalf("Skills = %v", p.Skills)
	}
	if p.YearsExperienceMin == nil || *p.YearsExperienceMin != 5 {
		t.Fatalf("YearsExperienceMin = %v", p.YearsExperienceMin)
	}
	if p.EducationRequired != "Bachelor" {
		t.Fatalf("EducationRequired = %q", p.EducationRequired)
	}
	if !p.VisaSponsorship || p.RequiresCitizenship {
		t.Fatalf("visa flags wrong: %+v", p)
	}
	if p.URL != "u1" {
		t.Fatal("raw posting fields must carry through")
	}
}

func TestExtractTruncatesDescription(t *testing.T) {
	completer := &fakeCompleter{reply: `{"skills":[]}`}
	e := New(completer, nil)

	long := strings.Repeat("x", 5000)
	e.Extract(context.Background(), jobs.RawPosting{Title: "T", Company: "C", Description: long})

	if strings.Contains(completer.lastPrompt, strings.Repeat("x", 3001)) {
		t.Fatal("description not truncated to the 3000-char budget")
	}
	if !strings.Contains(completer.lastPrompt, strings.Repeat("x", 3000)) {
		t.Fatal("truncated description missing from prompt")
	}
}

func TestExtractNeverFails(t *testing.T) {
	tests := []struct {
		name      string
		completer *fakeCompleter
		raw       jobs.RawPosting
	}{
		{"llm error", &fakeCompleter{err: errors.New("llm down")}, jobs.RawPosting{Description: "needs 3-5 years"}},
		{"garbage reply", &fakeCompleter{reply: "not json at all"}, jobs.RawPosting{Description: ""}},
		{"empty description and failing llm", &fakeCompleter{err: errors.New("down")}, jobs.RawPosting{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.completer, nil)
			p := e.Extract(context.Background(), tt.raw)
			if p.URL != tt.raw.URL {
				t.Fatal("raw posting must carry through")
			}
		})
	}
}

func TestFallbackExperiencePattern(t *testing.T) {
	tests := []struct {
		description string
		wantMin     *int
		wantMax     *int
	}{
		{"We need 3 to 5 years of experience", intPtr(3), intPtr(5)},
		{"Requires 5-7 years in backend work", intPtr(5), intPtr(7)},
		{"Minimum 4+ - 6 years", intPtr(4), intPtr(6)},
		{"8 – 10 YEARS preferred", intPtr(8), intPtr(10)},
		{"no experience mentioned", nil, nil},
	}
	for _, tt := range tests {
		got := fallbackExtraction(tt.description)
		if !intPtrEq(got.YearsExperienceMin, tt.wantMin) || !intPtrEq(got.YearsExperienceMax, tt.wantMax) {
			t.Errorf("%q: min=%v max=%v, want min=%v max=%v",
				tt.description, fmtPtr(got.YearsExperienceMin), fmtPtr(got.YearsExperienceMax), fmtPtr(tt.wantMin), fmtPtr(tt.wantMax))
		}
	}
}

func TestFallbackVisaAndCitizenshipKeywords(t *testing.T) {
	tests := []struct {
		description     string
		wantVisa        bool
		wantCitizenship bool
	}{
		{"We offer H1B sponsorship", true, false},
		{"Visa support available", true, false},
		{"Must be a US Citizen", false, true},
		{"Citizenship required for this role", false, true},
		{"Candidates must be authorized to work", false, true},
		{"A plain posting", false, false},
	}
	for _, tt := range tests {
		got := fallbackExtraction(tt.description)
		if got.VisaSponsorship != tt.wantVisa || got.RequiresCitizenship != tt.wantCitizenship {
			t.Errorf("%q: visa=%v citizenship=%v, want %v/%v",
				tt.description, got.VisaSponsorship, got.RequiresCitizenship, tt.wantVisa, tt.wantCitizenship)
		}
	}
}

func intPtr(v int) *int { return &v }

func intPtrEq(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func fmtPtr(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
