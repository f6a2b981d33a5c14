package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/jobs"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/kafka"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/postgres"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/resilience"
)

// Persister consumes search-completed events and writes the postings plus
// the search record to Postgres in one transaction.
type Persister struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewPersister creates a Persister over the given database client.
func NewPersister(db *postgres.Client) *Persister {
	return &Persister{
		db:     db,
		logger: slog.Default().With("component", "persister"),
	}
}

// Handle is the kafka.MessageHandler for the search-completed topic. Write
// failures are retried with backoff; a message that still fails is logged
// and skipped so the consumer keeps moving.
func (p *Persister) Handle(ctx context.Context, key []byte, value []byte) error {
	event, err := kafka.DecodeJSON[SearchCompleted](value)
	if err != nil {
		p.logger.Error("dropping undecodable search-completed event", "error", err)
		return nil
	}
	err = resilience.Retry(ctx, "persist-search", resilience.RetryConfig{MaxAttempts: 3}, func() error {
		return p.persist(ctx, event)
	})
	if err != nil {
		p.logger.Error("failed to persist search result", "fingerprint", event.Fingerprint, "error", err)
		return nil
	}
	p.logger.Debug("search result persisted", "fingerprint", event.Fingerprint, "postings", event.Total)
	return nil
}

func (p *Persister) persist(ctx context.Context, event SearchCompleted) error {
	return p.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, bucket := range [][]jobs.StructuredPosting{
			event.Result.JobBoards,
			event.Result.CareerPages,
			event.Result.HiringPosts,
		} {
			for _, posting := range bucket {
				if err := upsertPosting(ctx, tx, posting); err != nil {
					return err
				}
			}
		}
		return insertSearchRecord(ctx, tx, event)
	})
}

func upsertPosting(ctx context.Context, tx *sql.Tx, posting jobs.StructuredPosting) error {
	const query = `
		INSERT INTO postings (
			url, title, company, location, description, source, category,
			external_id, skills, years_experience_min, years_experience_max,
			education_required, salary_min, salary_max, visa_sponsorship,
			requires_citizenship, work_authorization, match_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (url) DO UPDATE SET
			title = EXCLUDED.title,
			company = EXCLUDED.company,
			location = EXCLUDED.location,
			description = EXCLUDED.description,
			skills = EXCLUDED.skills,
			years_experience_min = EXCLUDED.years_experience_min,
			years_experience_max = EXCLUDED.years_experience_max,
			education_required = EXCLUDED.education_required,
			salary_min = EXCLUDED.salary_min,
			salary_max = EXCLUDED.salary_max,
			visa_sponsorship = EXCLUDED.visa_sponsorship,
			requires_citizenship = EXCLUDED.requires_citizenship,
			work_authorization = EXCLUDED.work_authorization,
			match_score = EXCLUDED.match_score,
			updated_at = now()`
	_, err := tx.ExecContext(ctx, query,
		posting.URL,
		posting.Title,
		posting.Company,
		posting.Location,
		posting.Description,
		posting.Source,
		string(posting.Category),
		posting.ExternalID,
		pq.Array(posting.Skills),
		posting.YearsExperienceMin,
		posting.YearsExperienceMax,
		nullableString(posting.EducationRequired),
		posting.SalaryMin,
		posting.SalaryMax,
		posting.VisaSponsorship,
		posting.RequiresCitizenship,
		pq.Array(posting.WorkAuthorization),
		posting.MatchScore,
	)
	if err != nil {
		return fmt.Errorf("upserting posting %s: %w", posting.URL, err)
	}
	return nil
}

func insertSearchRecord(ctx context.Context, tx *sql.Tx, event SearchCompleted) error {
	const query = `
		INSERT INTO search_results (fingerprint, caller_id, query_text, total, completed_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, query,
		event.Fingerprint,
		event.CallerID,
		event.QueryText,
		event.Total,
		event.CompletedAt,
	); err != nil {
		return fmt.Errorf("inserting search record %s: %w", event.Fingerprint, err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
