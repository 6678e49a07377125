// Package store persists claims, evidence, verdicts, clusters, alerts,
// and feedback. Two implementations exist: an in-memory store for tests
// and ephemeral runs, and a SQLite store for everything else.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/crisisguard/crisisguard/internal/model"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNoVerdict is returned when a claim exists but has never been
	// verified.
	ErrNoVerdict = errors.New("claim has no verdict")
)

// Store is the persistence boundary for the pipeline. Verdicts are
// append-only: re-verification adds a record, it never rewrites one.
type Store interface {
	SaveClaim(ctx context.Context, claim *model.Claim) error
	// SetClaimStatus and SetClaimEmbedding update a single field in place.
	// Verification and the async embedder run concurrently over the same
	// claim row; writing whole structs back would let one overwrite the
	// other's field.
	SetClaimStatus(ctx context.Context, claimID string, status model.ClaimStatus) error
	SetClaimEmbedding(ctx context.Context, claimID string, embedding []float32) error
	Claim(ctx context.Context, id string) (*model.Claim, error)
	ClaimsSince(ctx context.Context, since time.Time) ([]model.Claim, error)
	ClaimsWithoutEmbedding(ctx context.Context) ([]model.Claim, error)
	SearchClaims(ctx context.Context, query string, limit int) ([]model.Claim, error)

	SaveEvidence(ctx context.Context, set *model.EvidenceSet) error
	Evidence(ctx context.Context, claimID string) (*model.EvidenceSet, error)

	SaveVerdict(ctx context.Context, v *model.Verdict) error
	LatestVerdict(ctx context.Context, claimID string) (*model.Verdict, error)
	VerdictHistory(ctx context.Context, claimID string) ([]model.Verdict, error)

	SaveClusters(ctx context.Context, clusters []model.Cluster) error
	LatestClusters(ctx context.Context) ([]model.Cluster, error)

	SaveAlert(ctx context.Context, a *model.Alert) error
	Alerts(ctx context.Context, activeOnly bool) ([]model.Alert, error)
	ResolveAlert(ctx context.Context, id string) error

	SaveFeedback(ctx context.Context, f *model.Feedback) error

	Close() error
}
