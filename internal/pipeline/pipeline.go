// Package pipeline orchestrates the claim lifecycle: ingestion,
// verification, clustering, and alerting.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crisisguard/crisisguard/internal/alert"
	"github.com/crisisguard/crisisguard/internal/cache"
	"github.com/crisisguard/crisisguard/internal/cluster"
	"github.com/crisisguard/crisisguard/internal/detect"
	"github.com/crisisguard/crisisguard/internal/embed"
	"github.com/crisisguard/crisisguard/internal/evidence"
	"github.com/crisisguard/crisisguard/internal/logging"
	"github.com/crisisguard/crisisguard/internal/model"
	"github.com/crisisguard/crisisguard/internal/store"
	"github.com/crisisguard/crisisguard/internal/verdict"
	"github.com/crisisguard/crisisguard/internal/worker"
)

var (
	// ErrEmptyInput is returned when an ingest submission has no usable text.
	ErrEmptyInput = errors.New("submission text is empty")

	// ErrNoClaimDetected is returned when the detector finds no verifiable
	// claim in the submission.
	ErrNoClaimDetected = errors.New("no verifiable claim detected")

	// ErrClaimNotFound is returned when the referenced claim does not exist.
	ErrClaimNotFound = errors.New("claim not found")

	// ErrVerificationInFlight is returned when another verification already
	// holds the lease for the claim.
	ErrVerificationInFlight = errors.New("verification already in flight for claim")

	// ErrVerificationUnavailable is returned when the reasoning capability
	// cannot produce a verdict.
	ErrVerificationUnavailable = errors.New("verification temporarily unavailable")

	// ErrRefreshInProgress mirrors the cluster engine's refresh exclusion.
	ErrRefreshInProgress = cluster.ErrRefreshInProgress
)

// IngestRequest is a raw submission entering the pipeline.
type IngestRequest struct {
	Text       string
	Source     string
	SourceType string
}

// SimilarClaim pairs an indexed claim with its similarity to a query.
type SimilarClaim struct {
	Claim      model.Claim
	Similarity float64
}

// Pipeline wires the detector, retriever, reasoner, embedder, cluster
// engine, and alert engine over a single store and vector index.
type Pipeline struct {
	store     store.Store
	detector  *detect.Detector
	retriever *evidence.Retriever
	reasoner  *verdict.Reasoner
	embedder  embed.Embedder
	index     *embed.Index
	clusters  *cluster.Engine
	alerts    *alert.Engine
	verdicts  *cache.VerdictCache
	lease     *cache.Lease

	clusterWindow time.Duration
	embedWorkers  int
}

// Config carries the pipeline-level knobs.
type Config struct {
	ClusterWindow time.Duration
	VerdictTTL    time.Duration
	LeaseTTL      time.Duration
	EmbedWorkers  int
}

// New assembles a pipeline. embedder may be nil when no embedding backend
// is configured; ingestion then skips indexing and clustering degrades to
// the claims that already carry vectors.
func New(
	st store.Store,
	detector *detect.Detector,
	retriever *evidence.Retriever,
	reasoner *verdict.Reasoner,
	embedder embed.Embedder,
	index *embed.Index,
	clusters *cluster.Engine,
	alerts *alert.Engine,
	cfg Config,
) *Pipeline {
	if cfg.ClusterWindow <= 0 {
		cfg.ClusterWindow = 24 * time.Hour
	}
	if cfg.EmbedWorkers <= 0 {
		cfg.EmbedWorkers = 4
	}

	return &Pipeline{
		store:         st,
		detector:      detector,
		retriever:     retriever,
		reasoner:      reasoner,
		embedder:      embedder,
		index:         index,
		clusters:      clusters,
		alerts:        alerts,
		verdicts:      cache.NewVerdictCache(cfg.VerdictTTL),
		lease:         cache.NewLease(cfg.LeaseTTL),
		clusterWindow: cfg.ClusterWindow,
		embedWorkers:  cfg.EmbedWorkers,
	}
}

// Ingest runs claim detection over a submission and persists the claim.
// The embedding is computed asynchronously; a failure there leaves the
// claim with a nil vector for Reconcile to pick up, it never fails the
// ingest.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (*model.Claim, error) {
	if detect.Sanitize(req.Text) == "" {
		return nil, ErrEmptyInput
	}

	result, err := p.detector.Extract(ctx, req.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}
	if !result.IsClaim {
		return nil, ErrNoClaimDetected
	}

	claim := &model.Claim{
		ID:         uuid.NewString(),
		RawText:    req.Text,
		ClaimText:  result.ClaimText,
		ClaimType:  result.ClaimType,
		Entities:   result.Entities,
		Confidence: result.Confidence,
		Source:     req.Source,
		SourceType: req.SourceType,
		Status:     model.StatusPending,
		CreatedAt:  time.Now().UTC(),
	}

	if err := p.store.SaveClaim(ctx, claim); err != nil {
		return nil, fmt.Errorf("persist claim: %w", err)
	}

	logging.Info("claim ingested",
		"claim_id", claim.ID, "type", claim.ClaimType, "confidence", claim.Confidence)

	if p.embedder != nil {
		go p.embedClaim(context.WithoutCancel(ctx), claim.ID, claim.ClaimText)
	}
	return claim, nil
}

// embedClaim computes and indexes the vector for a stored claim.
func (p *Pipeline) embedClaim(ctx context.Context, claimID, text string) {
	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		logging.Warn("embedding failed, claim left unindexed", "claim_id", claimID, "error", err)
		return
	}
	if err := p.index.Add(claimID, vec); err != nil {
		logging.Error("vector index rejected claim", "claim_id", claimID, "error", err)
		return
	}

	if err := p.store.SetClaimEmbedding(ctx, claimID, vec); err != nil {
		logging.Warn("persist embedding failed", "claim_id", claimID, "error", err)
	}
}

// Verify produces a verdict for a claim. Unless force is set, an
// existing verdict is returned as-is: from the cache when warm, and
// otherwise the latest stored verdict of an already-verified claim, so
// repeated invocations never re-spend retrieval and reasoning calls. At
// most one verification runs per claim at a time; a concurrent request
// fails fast.
func (p *Pipeline) Verify(ctx context.Context, claimID string, force bool) (*model.Verdict, error) {
	claim, err := p.store.Claim(ctx, claimID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}

	if !force {
		if v, ok := p.verdicts.Get(claimID); ok {
			logging.Debug("verdict cache hit", "claim_id", claimID)
			return v, nil
		}
		if claim.Status == model.StatusVerified {
			v, err := p.store.LatestVerdict(ctx, claimID)
			if err == nil {
				p.verdicts.Put(v)
				return v, nil
			}
			if !errors.Is(err, store.ErrNoVerdict) {
				return nil, err
			}
		}
	}

	if !p.lease.Acquire(claimID) {
		return nil, ErrVerificationInFlight
	}
	defer p.lease.Release(claimID)

	if force {
		p.verdicts.Invalidate(claimID)
	}

	if err := p.store.SetClaimStatus(ctx, claimID, model.StatusProcessing); err != nil {
		return nil, err
	}

	set := p.retriever.Retrieve(ctx, claim)
	if err := p.store.SaveEvidence(ctx, set); err != nil {
		return nil, fmt.Errorf("persist evidence: %w", err)
	}

	v, err := p.reasoner.Reason(ctx, claim, set)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}

	if err := p.store.SaveVerdict(ctx, v); err != nil {
		return nil, fmt.Errorf("persist verdict: %w", err)
	}

	if err := p.store.SetClaimStatus(ctx, claimID, model.StatusVerified); err != nil {
		return nil, err
	}

	p.verdicts.Put(v)
	p.raiseVerdictAlert(ctx, v)

	logging.Info("claim verified",
		"claim_id", claimID, "verdict", v.Verdict, "confidence", v.Confidence,
		"harm", v.HarmScore, "action", v.Action)
	return v, nil
}

func (p *Pipeline) raiseVerdictAlert(ctx context.Context, v *model.Verdict) {
	active, err := p.store.Alerts(ctx, true)
	if err != nil {
		logging.Warn("active alert lookup failed", "error", err)
		return
	}
	if a := p.alerts.EvaluateVerdict(v, active); a != nil {
		if err := p.store.SaveAlert(ctx, a); err != nil {
			logging.Error("persist alert failed", "alert_id", a.ID, "error", err)
		}
	}
}

// FindSimilar returns up to k indexed claims nearest to the given claim's
// vector, most similar first. The claim itself is excluded.
func (p *Pipeline) FindSimilar(ctx context.Context, claimID string, k int) ([]SimilarClaim, error) {
	if k <= 0 {
		k = 5
	}

	vec, ok := p.index.Vector(claimID)
	if !ok {
		claim, err := p.store.Claim(ctx, claimID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrClaimNotFound
			}
			return nil, err
		}
		if !claim.HasEmbedding() {
			return nil, nil
		}
		vec = claim.Embedding
	}

	matches, err := p.index.Search(vec, k+1)
	if err != nil {
		return nil, err
	}

	var out []SimilarClaim
	for _, m := range matches {
		if m.ClaimID == claimID || len(out) == k {
			continue
		}
		claim, err := p.store.Claim(ctx, m.ClaimID)
		if err != nil {
			continue // index ahead of store, skip
		}
		out = append(out, SimilarClaim{Claim: *claim, Similarity: m.Similarity})
	}
	return out, nil
}

// RefreshClusters recomputes the cluster generation over claims inside
// the window, persists it, and raises trending alerts. Claims still
// missing a vector are reconciled first so a transient embedding outage
// does not silently shrink clusters.
func (p *Pipeline) RefreshClusters(ctx context.Context) ([]model.Cluster, error) {
	if err := p.Reconcile(ctx); err != nil {
		logging.Warn("reconcile before refresh failed", "error", err)
	}

	now := time.Now().UTC()
	claims, err := p.store.ClaimsSince(ctx, now.Add(-p.clusterWindow))
	if err != nil {
		return nil, err
	}

	members := make([]cluster.Member, 0, len(claims))
	for _, c := range claims {
		if !c.HasEmbedding() {
			continue
		}
		members = append(members, cluster.Member{
			ClaimID:    c.ID,
			Text:       c.ClaimText,
			Type:       c.ClaimType,
			Vector:     c.Embedding,
			Confidence: c.Confidence,
			CreatedAt:  c.CreatedAt,
		})
	}

	clusters, err := p.clusters.Refresh(ctx, members, now)
	if err != nil {
		return nil, err
	}

	if err := p.store.SaveClusters(ctx, clusters); err != nil {
		return nil, fmt.Errorf("persist clusters: %w", err)
	}

	active, err := p.store.Alerts(ctx, true)
	if err != nil {
		return clusters, nil
	}
	for _, a := range p.alerts.EvaluateClusters(clusters, active) {
		if err := p.store.SaveAlert(ctx, &a); err != nil {
			logging.Error("persist alert failed", "alert_id", a.ID, "error", err)
		}
	}
	return clusters, nil
}

// Reconcile computes embeddings for claims that missed theirs and makes
// sure every embedded claim is present in the vector index. It is safe to
// run repeatedly.
func (p *Pipeline) Reconcile(ctx context.Context) error {
	if p.embedder == nil {
		return nil
	}

	missing, err := p.store.ClaimsWithoutEmbedding(ctx)
	if err != nil {
		return err
	}

	if len(missing) > 0 {
		pool := worker.NewPool(p.embedWorkers)
		pool.Start()
		for _, c := range missing {
			pool.Submit(&embedJob{pipeline: p, claimID: c.ID, text: c.ClaimText})
		}
		failures := 0
		for _, res := range pool.Wait() {
			if res.GetError() != nil {
				failures++
			}
		}
		logging.Info("embedding reconcile finished",
			"claims", len(missing), "failures", failures)
	}

	// Re-seat stored vectors the index lost, e.g. after a restart without
	// a snapshot.
	embedded, err := p.store.ClaimsSince(ctx, time.Time{})
	if err != nil {
		return err
	}
	for _, c := range embedded {
		if !c.HasEmbedding() {
			continue
		}
		if _, ok := p.index.Vector(c.ID); ok {
			continue
		}
		if err := p.index.Add(c.ID, c.Embedding); err != nil {
			logging.Warn("reindex failed", "claim_id", c.ID, "error", err)
		}
	}
	return nil
}

// Feedback records commentary on a claim and forces a re-verification so
// the verdict reflects whatever prompted the feedback.
func (p *Pipeline) Feedback(ctx context.Context, claimID, content string) (*model.Verdict, error) {
	if _, err := p.store.Claim(ctx, claimID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}

	f := &model.Feedback{
		ID:        uuid.NewString(),
		ClaimID:   claimID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.store.SaveFeedback(ctx, f); err != nil {
		return nil, err
	}

	return p.Verify(ctx, claimID, true)
}

// embedJob is the worker pool unit for reconcile.
type embedJob struct {
	pipeline *Pipeline
	claimID  string
	text     string
}

type embedResult struct{ err error }

func (r embedResult) GetError() error { return r.err }

func (j *embedJob) Execute(ctx context.Context) worker.Result {
	vec, err := j.pipeline.embedder.Embed(ctx, j.text)
	if err != nil {
		return embedResult{err: err}
	}
	if err := j.pipeline.index.Add(j.claimID, vec); err != nil {
		return embedResult{err: err}
	}
	return embedResult{err: j.pipeline.store.SetClaimEmbedding(ctx, j.claimID, vec)}
}
