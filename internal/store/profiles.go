package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/jobs"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/postgres"
)

// ProfileStore reads caller profiles from Postgres.
type ProfileStore struct {
	db *postgres.Client
}

// NewProfileStore creates a ProfileStore over the database client.
func NewProfileStore(db *postgres.Client) *ProfileStore {
	return &ProfileStore{db: db}
}

// Fetch returns the stored profile for callerID, or (nil, nil) when the
// caller has not saved one.
func (s *ProfileStore) Fetch(ctx context.Context, callerID string) (*jobs.Profile, error) {
	const query = `
		SELECT skills, years_experience, location, visa_status, education
		FROM user_profiles
		WHERE caller_id = $1`

	var (
		profile  jobs.Profile
		skills   pq.StringArray
		location sql.NullString
		visa     sql.NullString
		edu      sql.NullString
	)
	row := s.db.DB.QueryRowContext(ctx, query, callerID)
	if err := row.Scan(&skills, &profile.YearsExperience, &location, &visa, &edu); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching profile for %s: %w", callerID, err)
	}
	profile.Skills = skills
	profile.Location = location.String
	profile.VisaStatus = visa.String
	profile.Education = edu.String
	return &profile, nil
}

// Save upserts the caller's profile.
func (s *ProfileStore) Save(ctx context.Context, callerID string, profile jobs.Profile) error {
	const query = `
		INSERT INTO user_profiles (caller_id, skills, years_experience, location, visa_status, education, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (caller_id) DO UPDATE SET
			skills = EXCLUDED.skills,
			years_experience = EXCLUDED.years_experience,
			location = EXCLUDED.location,
			visa_status = EXCLUDED.visa_status,
			education = EXCLUDED.education,
			updated_at = NOW()`

	_, err := s.db.DB.ExecContext(ctx, query,
		callerID,
		pq.Array(profile.Skills),
		profile.YearsExperience,
		profile.Location,
		profile.VisaStatus,
		profile.Education,
	)
	if err != nil {
		return fmt.Errorf("saving profile for %s: %w", callerID, err)
	}
	return nil
}
