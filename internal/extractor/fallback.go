package extractor

import (
	"regexp"
	"strconv"
	"strings"
)

var experiencePattern = regexp.MustCompile(`(?i)(\d+)\+?\s*(?:to|-|–)\s*(\d+)?\s*years?`)

var visaKeywords = []string{"sponsorship", "h1b", "h-1b", "visa"}

var citizenshipKeywords = []string{"us citizen", "citizenship required", "must be authorized"}

// fallbackExtraction pulls experience bounds and visa/citizenship signals
// out of the description with fixed patterns. Everything else stays empty.
func fallbackExtraction(description string) extraction {
	var result extraction
	if m := experiencePattern.FindStringSubmatch(description); m != nil {
		if min, err := strconv.Atoi(m[1]); err == nil {
			result.YearsExperienceMin = &min
		}
		if m[2] != "" {
			if max, err := strconv.Atoi(m[2]); err == nil {
				result.YearsExperienceMax = &max
			}
		}
	}
	lower := strings.ToLower(description)
	result.VisaSponsorship = containsAny(lower, visaKeywords)
	result.RequiresCitizenship = containsAny(lower, citizenshipKeywords)
	return result
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
