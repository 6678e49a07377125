// Package evidence retrieves and ranks external evidence for claims.
package evidence

import (
	"context"
	"fmt"
	"strings"

	"github.com/crisisguard/crisisguard/internal/model"
)

// Source is one external evidence capability. A failing source is skipped;
// the retriever accepts partial results.
type Source interface {
	// Name identifies the source in logs and results.
	Name() string

	// Search returns zero or more candidate documents for a query.
	Search(ctx context.Context, query string) ([]model.EvidenceSource, error)

	// Configured reports whether the source has what it needs (API key,
	// endpoint) to run. Unconfigured sources are excluded from fan-out.
	Configured() bool
}

// BuildQueries generates the search queries for a claim: the claim itself,
// an entity-focused fact-check query, and the quoted claim.
func BuildQueries(claimText string, entities []model.Entity) []string {
	queries := []string{claimText}

	var names []string
	for _, e := range entities {
		if e.Text != "" {
			names = append(names, e.Text)
		}
		if len(names) == 3 {
			break
		}
	}
	if len(names) > 0 {
		queries = append(queries, strings.Join(names, " ")+" fact check")
	}

	queries = append(queries, fmt.Sprintf("%q fact check", claimText))

	if len(queries) > 5 {
		queries = queries[:5]
	}
	return queries
}
