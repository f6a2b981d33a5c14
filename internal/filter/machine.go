// Package filter implements the five-stage filtering state machine: role
// match, experience, visa, education, scoring. Stage order is fixed, every
// stage always runs, each stage only narrows the candidate set and appends
// rejection reasons.
package filter

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/jobs"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/metrics"
)

// skillMatchThreshold is the minimum overlap ratio a posting's skill list
// must have with the candidate's expanded skills to pass stage 1.
const skillMatchThreshold = 0.4

// State is the machine's working memory for one run. Rejections maps a
// posting URL to the reason it was excluded; it is append-only within a run.
type State struct {
	Query      *jobs.EnrichedQuery
	Profile    jobs.Profile
	Candidates []jobs.StructuredPosting
	Stage      string
	Rejections map[string]string
}

// Machine runs the five filter stages in order.
type Machine struct {
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewMachine creates a Machine. The metrics parameter may be nil.
func NewMachine(m *metrics.Metrics) *Machine {
	return &Machine{
		metrics: m,
		logger:  slog.Default().With("component", "filter"),
	}
}

// Run executes all five stages top to bottom and returns the final state.
// A stage that admits nothing still lets the remaining stages run so every
// rejection carries its reason.
func (m *Machine) Run(query *jobs.EnrichedQuery, profile jobs.Profile, candidates []jobs.StructuredPosting) *State {
	state := &State{
		Query:      query,
		Profile:    profile,
		Candidates: candidates,
		Rejections: make(map[string]string),
	}
	m.roleMatch(state)
	m.experience(state)
	m.visa(state)
	m.education(state)
	m.score(state)
	return state
}

// roleMatch admits postings whose skill overlap with the candidate's
// declared plus related skills is at least the threshold. Postings without
// a skill list are treated as unknown and kept.
func (m *Machine) roleMatch(state *State) {
	allSkills := make(map[string]struct{}, len(state.Profile.Skills))
	for _, s := range state.Profile.Skills {
		allSkills[s] = struct{}{}
	}
	if state.Query != nil {
		for _, s := range state.Query.RelatedSkills {
			allSkills[s] = struct{}{}
		}
	}

	before := len(state.Candidates)
	kept := state.Candidates[:0]
	for _, job := range state.Candidates {
		if len(job.Skills) == 0 {
			kept = append(kept, job)
			continue
		}
		overlap := 0
		for _, s := range job.Skills {
			if _, ok := allSkills[s]; ok {
				overlap++
			}
		}
		ratio := float64(overlap) / float64(len(job.Skills))
		if ratio >= skillMatchThreshold {
			kept = append(kept, job)
		} else {
			m.reject(state, job.URL, "role_match", fmt.Sprintf("Insufficient skill match (%.0f%%)", ratio*100))
		}
	}
	state.Candidates = kept
	state.Stage = "role_match_complete"
	m.logger.Info("filter stage complete", "stage", "role_match", "before", before, "after", len(kept))
}

// experience admits postings whose minimum experience the candidate meets.
// A missing minimum counts as 0.
func (m *Machine) experience(state *State) {
	before := len(state.Candidates)
	kept := state.Candidates[:0]
	for _, job := range state.Candidates {
		minExp := 0
		if job.YearsExperienceMin != nil {
			minExp = *job.YearsExperienceMin
		}
		if state.Profile.YearsExperience >= minExp {
			kept = append(kept, job)
		} else {
			m.reject(state, job.URL, "experience", fmt.Sprintf("Need %d+ years (have %d)", minExp, state.Profile.YearsExperience))
		}
	}
	state.Candidates = kept
	state.Stage = "experience_complete"
	m.logger.Info("filter stage complete", "stage", "experience", "before", before, "after", len(kept))
}

// visa constrains the set only when the candidate needs sponsorship.
func (m *Machine) visa(state *State) {
	visaStatus := strings.ToLower(state.Profile.VisaStatus)
	needsSponsorship := strings.Contains(visaStatus, "sponsorship") || strings.Contains(visaStatus, "h1b")

	before := len(state.Candidates)
	kept := state.Candidates[:0]
	for _, job := range state.Candidates {
		if !needsSponsorship {
			kept = append(kept, job)
			continue
		}
		if job.VisaSponsorship && !job.RequiresCitizenship {
			kept = append(kept, job)
		} else {
			m.reject(state, job.URL, "visa", "No visa sponsorship or requires citizenship")
		}
	}
	state.Candidates = kept
	state.Stage = "visa_complete"
	m.logger.Info("filter stage complete", "stage", "visa", "before", before, "after", len(kept))
}

// education compares ordinals: Bachelor=1, Master=2, PhD=3, absent=0.
func (m *Machine) education(state *State) {
	candidateRank := jobs.EducationRank(state.Profile.Education)

	before := len(state.Candidates)
	kept := state.Candidates[:0]
	for _, job := range state.Candidates {
		if job.EducationRequired == "" {
			kept = append(kept, job)
			continue
		}
		if candidateRank >= jobs.EducationRank(job.EducationRequired) {
			kept = append(kept, job)
		} else {
			have := state.Profile.Education
			if have == "" {
				have = "None"
			}
			m.reject(state, job.URL, "education", fmt.Sprintf("Requires %s (have %s)", job.EducationRequired, have))
		}
	}
	state.Candidates = kept
	state.Stage = "education_complete"
	m.logger.Info("filter stage complete", "stage", "education", "before", before, "after", len(kept))
}

// score assigns match scores against the candidate's declared skills only
// and stable-sorts descending. Postings without skills get a flat 50.0 to
// distinguish unknown fit from zero fit.
func (m *Machine) score(state *State) {
	profileSkills := make(map[string]struct{}, len(state.Profile.Skills))
	for _, s := range state.Profile.Skills {
		profileSkills[s] = struct{}{}
	}
	for i := range state.Candidates {
		job := &state.Candidates[i]
		if len(job.Skills) == 0 {
			job.MatchScore = 50.0
			continue
		}
		overlap := 0
		for _, s := range job.Skills {
			if _, ok := profileSkills[s]; ok {
				overlap++
			}
		}
		score := float64(overlap) / float64(len(job.Skills)) * 100
		job.MatchScore = math.Round(score*10) / 10
	}
	sort.SliceStable(state.Candidates, func(i, j int) bool {
		return state.Candidates[i].MatchScore > state.Candidates[j].MatchScore
	})
	state.Stage = "scoring_complete"
	m.logger.Info("filter stage complete", "stage", "scoring", "scored", len(state.Candidates))
}

func (m *Machine) reject(state *State, url string, stage string, reason string) {
	state.Rejections[url] = reason
	if m.metrics != nil {
		m.metrics.FilterRejectionsTotal.WithLabelValues(stage).Inc()
	}
}
