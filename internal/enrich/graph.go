package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/jobs"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/config"
)

// GraphStore is the knowledge-graph lookup capability consumed by the
// Enricher. Each method is a single independent lookup.
type GraphStore interface {
	RelatedSkills(ctx context.Context, skills []string) ([]string, error)
	TitleSynonyms(ctx context.Context, jobTitle string) ([]string, error)
	SponsorCompanies(ctx context.Context, visaType string) ([]jobs.SponsorCompany, error)
	EducationAlternatives(ctx context.Context, level string) ([]string, error)
}

// Neo4jGraph is a GraphStore backed by a Neo4j knowledge graph.
type Neo4jGraph struct {
	driver  neo4j.DriverWithContext
	timeout time.Duration
}

// NewNeo4jGraph connects to Neo4j and verifies connectivity.
func NewNeo4jGraph(cfg config.GraphConfig) (*Neo4jGraph, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("verifying neo4j connectivity: %w", err)
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Neo4jGraph{driver: driver, timeout: timeout}, nil
}

// Close releases the underlying driver.
func (g *Neo4jGraph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

// Ping verifies connectivity for health checks.
func (g *Neo4jGraph) Ping(ctx context.Context) error {
	return g.driver.VerifyConnectivity(ctx)
}

// RelatedSkills walks RELATED_TO edges up to two hops out from the given
// skills, ranked by popularity.
func (g *Neo4jGraph) RelatedSkills(ctx context.Context, skills []string) ([]string, error) {
	if len(skills) == 0 {
		return nil, nil
	}
	const query = `
		UNWIND $skills AS skill
		MATCH (s:Skill {name: skill})-[:RELATED_TO*1..2]-(rs:Skill)
		WHERE rs.name <> skill
		RETURN DISTINCT rs.name AS skill, rs.popularity AS popularity
		ORDER BY popularity DESC
		LIMIT 10`
	return g.readStrings(ctx, query, map[string]any{"skills": skills}, "skill")
}

// TitleSynonyms finds job titles matching or synonymous with jobTitle.
func (g *Neo4jGraph) TitleSynonyms(ctx context.Context, jobTitle string) ([]string, error) {
	const query = `
		MATCH (jt:JobTitle)
		WHERE toLower(jt.name) CONTAINS toLower($title)
		OPTIONAL MATCH (jt)-[:SYNONYM_OF]-(alt:JobTitle)
		RETURN DISTINCT COALESCE(alt.name, jt.name) AS title
		LIMIT 5`
	return g.readStrings(ctx, query, map[string]any{"title": jobTitle}, "title")
}

// SponsorCompanies lists companies sponsoring the given visa type. Only the
// first word of visaType is matched, so "H1B Sponsorship" queries "H1B".
func (g *Neo4jGraph) SponsorCompanies(ctx context.Context, visaType string) ([]jobs.SponsorCompany, error) {
	fields := strings.Fields(visaType)
	if len(fields) == 0 {
		return nil, nil
	}
	const query = `
		MATCH (c:Company)-[:SPONSORS_VISA]->(v:VisaType)
		WHERE v.type = $visa_type
		RETURN c.name AS name, c.id AS id, c.size AS size, c.industry AS industry
		LIMIT 50`
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"visa_type": fields[0]})
		if err != nil {
			return nil, err
		}
		var companies []jobs.SponsorCompany
		for res.Next(ctx) {
			rec := res.Record()
			companies = append(companies, jobs.SponsorCompany{
				Name:     stringValue(rec, "name"),
				ID:       stringValue(rec, "id"),
				Size:     stringValue(rec, "size"),
				Industry: stringValue(rec, "industry"),
			})
		}
		return companies, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("querying sponsor companies: %w", err)
	}
	return result.([]jobs.SponsorCompany), nil
}

// EducationAlternatives returns equivalent education levels for level.
func (g *Neo4jGraph) EducationAlternatives(ctx context.Context, level string) ([]string, error) {
	if level == "" {
		return nil, nil
	}
	const query = `
		MATCH (e:EducationLevel {level: $education})
		RETURN e.level AS level`
	return g.readStrings(ctx, query, map[string]any{"education": level}, "level")
}

func (g *Neo4jGraph) readStrings(ctx context.Context, query string, params map[string]any, field string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		var values []string
		for res.Next(ctx) {
			if v := stringValue(res.Record(), field); v != "" {
				values = append(values, v)
			}
		}
		return values, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("querying graph: %w", err)
	}
	return result.([]string), nil
}

func stringValue(rec *neo4j.Record, field string) string {
	raw, ok := rec.Get(field)
	if !ok || raw == nil {
		return ""
	}
	if s, ok := raw.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", raw)
}
