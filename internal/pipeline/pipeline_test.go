package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/crisisguard/crisisguard/internal/alert"
	"github.com/crisisguard/crisisguard/internal/cluster"
	"github.com/crisisguard/crisisguard/internal/detect"
	"github.com/crisisguard/crisisguard/internal/embed"
	"github.com/crisisguard/crisisguard/internal/evidence"
	"github.com/crisisguard/crisisguard/internal/llm"
	"github.com/crisisguard/crisisguard/internal/model"
	"github.com/crisisguard/crisisguard/internal/store"
	"github.com/crisisguard/crisisguard/internal/verdict"
	"github.com/crisisguard/crisisguard/internal/worker"
)

// routingProvider answers detection and verdict prompts with fixed JSON.
type routingProvider struct {
	detection    string
	verdict      string
	verdictCalls int
	onVerdict    func()
}

func (p *routingProvider) Name() string                         { return "routing" }
func (p *routingProvider) IsAvailable(ctx context.Context) bool { return true }

func (p *routingProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if strings.Contains(req.Prompt, "is_claim") {
		return &llm.CompletionResponse{Content: p.detection}, nil
	}
	p.verdictCalls++
	if p.onVerdict != nil {
		p.onVerdict()
	}
	return &llm.CompletionResponse{Content: p.verdict}, nil
}

// fixedEmbedder returns a constant-dimension vector derived from the text.
type fixedEmbedder struct{ dims int }

func (e *fixedEmbedder) Dimensions() int { return e.dims }

func (e *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)
	vec[0] = 1
	vec[1] = float32(len(text)%7) * 0.01
	return vec, nil
}

type fixedSource struct{ results []model.EvidenceSource }

func (s *fixedSource) Name() string     { return "fixed" }
func (s *fixedSource) Configured() bool { return true }
func (s *fixedSource) Search(ctx context.Context, query string) ([]model.EvidenceSource, error) {
	return s.results, nil
}

const detectionJSON = `{"is_claim":true,"claim_text":"Drinking bleach cures covid","claim_type":"health","confidence":0.9}`

const verdictJSON = `{"verdict":"False","confidence":0.95,
	"reasoning":"Health authorities refute this.",
	"sources":[{"link":"https://who.int/bleach"}],
	"explain_like_12":"Bleach is a poison, not a medicine.",
	"harm_score":90}`

func newTestPipeline(t *testing.T, withEmbedder bool) (*Pipeline, store.Store) {
	t.Helper()

	provider := &routingProvider{detection: detectionJSON, verdict: verdictJSON}
	st := store.NewMemory()

	sources := []evidence.Source{&fixedSource{results: []model.EvidenceSource{
		{URL: "https://who.int/bleach", Title: "WHO", Domain: "who.int", Reliability: 0.95},
	}}}
	retriever := evidence.NewRetriever(sources, worker.NewLimiter(100, 10), 10, 5*time.Second)

	var embedder embed.Embedder
	if withEmbedder {
		embedder = &fixedEmbedder{dims: 4}
	}

	p := New(
		st,
		detect.NewDetector(provider, model.DetectionConfig{}),
		retriever,
		verdict.NewReasoner(provider, model.VerdictConfig{}),
		embedder,
		embed.NewIndex(4),
		cluster.NewEngine(nil, model.ClusterConfig{}),
		alert.NewEngine(model.AlertConfig{}, 40),
		Config{},
	)
	return p, st
}

func TestPipeline_Ingest(t *testing.T) {
	p, st := newTestPipeline(t, false)
	ctx := context.Background()

	claim, err := p.Ingest(ctx, IngestRequest{Text: "drink bleach to cure covid!!", SourceType: "social"})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if claim.ClaimType != model.ClaimTypeHealth {
		t.Errorf("expected health claim, got %s", claim.ClaimType)
	}
	if claim.Status != model.StatusPending {
		t.Errorf("expected pending status, got %s", claim.Status)
	}

	stored, err := st.Claim(ctx, claim.ID)
	if err != nil {
		t.Fatalf("claim not persisted: %v", err)
	}
	if stored.RawText != "drink bleach to cure covid!!" {
		t.Errorf("raw text not preserved: %q", stored.RawText)
	}
}

func TestPipeline_IngestEmptyInput(t *testing.T) {
	p, _ := newTestPipeline(t, false)
	if _, err := p.Ingest(context.Background(), IngestRequest{Text: "   "}); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
}

func TestPipeline_IngestNonClaim(t *testing.T) {
	p, _ := newTestPipeline(t, false)
	provider := &routingProvider{detection: `{"is_claim":false}`}
	p.detector = detect.NewDetector(provider, model.DetectionConfig{})

	if _, err := p.Ingest(context.Background(), IngestRequest{Text: "I love sunsets"}); !errors.Is(err, ErrNoClaimDetected) {
		t.Errorf("expected ErrNoClaimDetected, got %v", err)
	}
}

func TestPipeline_VerifyUnknownClaim(t *testing.T) {
	p, _ := newTestPipeline(t, false)
	if _, err := p.Verify(context.Background(), "missing", false); !errors.Is(err, ErrClaimNotFound) {
		t.Errorf("expected ErrClaimNotFound, got %v", err)
	}
}

func TestPipeline_VerifyAndCache(t *testing.T) {
	p, st := newTestPipeline(t, false)
	ctx := context.Background()

	claim, err := p.Ingest(ctx, IngestRequest{Text: "bleach cures covid"})
	if err != nil {
		t.Fatal(err)
	}

	v1, err := p.Verify(ctx, claim.ID, false)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if v1.Verdict != model.VerdictFalse || v1.Action != model.ActionDebunk {
		t.Errorf("unexpected verdict: %+v", v1)
	}

	// Repeat without force returns the same record.
	v2, err := p.Verify(ctx, claim.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if v2.ID != v1.ID {
		t.Errorf("expected cached verdict %s, got %s", v1.ID, v2.ID)
	}

	// Force appends a fresh verdict.
	v3, err := p.Verify(ctx, claim.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if v3.ID == v1.ID {
		t.Error("forced re-verify must produce a new verdict record")
	}

	history, err := st.VerdictHistory(ctx, claim.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Errorf("expected 2 verdicts in history, got %d", len(history))
	}

	stored, _ := st.Claim(ctx, claim.ID)
	if stored.Status != model.StatusVerified {
		t.Errorf("expected verified status, got %s", stored.Status)
	}
}

func TestPipeline_VerifyReusesStoredVerdictAcrossInstances(t *testing.T) {
	provider := &routingProvider{detection: detectionJSON, verdict: verdictJSON}
	st := store.NewMemory()
	build := func() *Pipeline {
		sources := []evidence.Source{&fixedSource{results: []model.EvidenceSource{
			{URL: "https://who.int/bleach", Title: "WHO", Domain: "who.int", Reliability: 0.95},
		}}}
		retriever := evidence.NewRetriever(sources, worker.NewLimiter(100, 10), 10, 5*time.Second)
		return New(
			st,
			detect.NewDetector(provider, model.DetectionConfig{}),
			retriever,
			verdict.NewReasoner(provider, model.VerdictConfig{}),
			nil,
			embed.NewIndex(4),
			cluster.NewEngine(nil, model.ClusterConfig{}),
			alert.NewEngine(model.AlertConfig{}, 40),
			Config{},
		)
	}

	ctx := context.Background()
	first := build()
	claim, err := first.Ingest(ctx, IngestRequest{Text: "bleach cures covid"})
	if err != nil {
		t.Fatal(err)
	}
	v1, err := first.Verify(ctx, claim.ID, false)
	if err != nil {
		t.Fatal(err)
	}

	// A later CLI invocation builds a fresh pipeline with a cold cache; a
	// verified claim must still return the stored verdict unchanged.
	second := build()
	v2, err := second.Verify(ctx, claim.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if v2.ID != v1.ID {
		t.Errorf("expected stored verdict %s reused, got %s", v1.ID, v2.ID)
	}
	if provider.verdictCalls != 1 {
		t.Errorf("expected 1 reasoning call, got %d", provider.verdictCalls)
	}

	history, err := st.VerdictHistory(ctx, claim.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Errorf("expected 1 verdict in history, got %d", len(history))
	}
}

func TestPipeline_VerifyPreservesConcurrentEmbedding(t *testing.T) {
	p, st := newTestPipeline(t, false)
	ctx := context.Background()

	claim, err := p.Ingest(ctx, IngestRequest{Text: "bleach cures covid"})
	if err != nil {
		t.Fatal(err)
	}

	// Persist the vector mid-verification, exactly when the async embedder
	// would finish during an ingest-then-verify flow.
	provider := &routingProvider{detection: detectionJSON, verdict: verdictJSON}
	provider.onVerdict = func() {
		if err := st.SetClaimEmbedding(ctx, claim.ID, []float32{1, 0, 0, 0}); err != nil {
			t.Error(err)
		}
	}
	p.reasoner = verdict.NewReasoner(provider, model.VerdictConfig{})

	if _, err := p.Verify(ctx, claim.ID, false); err != nil {
		t.Fatal(err)
	}

	stored, err := st.Claim(ctx, claim.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.HasEmbedding() {
		t.Error("verification lost the embedding persisted during the run")
	}
	if stored.Status != model.StatusVerified {
		t.Errorf("expected verified status, got %s", stored.Status)
	}
}

func TestPipeline_VerifyRaisesHighHarmAlert(t *testing.T) {
	p, st := newTestPipeline(t, false)
	ctx := context.Background()

	claim, err := p.Ingest(ctx, IngestRequest{Text: "bleach cures covid"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Verify(ctx, claim.ID, false); err != nil {
		t.Fatal(err)
	}

	alerts, err := st.Alerts(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert for harm 90, got %d", len(alerts))
	}
	if alerts[0].Type != model.AlertHighHarm || alerts[0].Severity != model.SeverityCritical {
		t.Errorf("unexpected alert: %+v", alerts[0])
	}

	// A second verification must not duplicate the active alert.
	if _, err := p.Verify(ctx, claim.ID, true); err != nil {
		t.Fatal(err)
	}
	alerts, _ = st.Alerts(ctx, true)
	if len(alerts) != 1 {
		t.Errorf("expected alert dedup, got %d alerts", len(alerts))
	}
}

func TestPipeline_ReconcileAndFindSimilar(t *testing.T) {
	p, st := newTestPipeline(t, true)
	ctx := context.Background()

	// Seed claims directly with no embeddings, as if ingested during an
	// embedding outage.
	now := time.Now().UTC()
	for _, id := range []string{"c1", "c2", "c3"} {
		if err := st.SaveClaim(ctx, &model.Claim{
			ID: id, ClaimText: "bleach cures covid " + id, CreatedAt: now,
		}); err != nil {
			t.Fatal(err)
		}
	}

	if err := p.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	missing, _ := st.ClaimsWithoutEmbedding(ctx)
	if len(missing) != 0 {
		t.Fatalf("expected all embeddings backfilled, %d missing", len(missing))
	}
	if p.index.Len() != 3 {
		t.Fatalf("expected 3 indexed vectors, got %d", p.index.Len())
	}

	similar, err := p.FindSimilar(ctx, "c1", 2)
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	if len(similar) == 0 {
		t.Fatal("expected similar claims")
	}
	for _, s := range similar {
		if s.Claim.ID == "c1" {
			t.Error("FindSimilar must exclude the query claim")
		}
	}
}

func TestPipeline_RefreshClusters(t *testing.T) {
	p, st := newTestPipeline(t, true)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, id := range []string{"c1", "c2", "c3", "c4"} {
		if err := st.SaveClaim(ctx, &model.Claim{
			ID: id, ClaimText: "same narrative", ClaimType: model.ClaimTypeHealth,
			Confidence: 0.8, CreatedAt: now.Add(-time.Hour),
		}); err != nil {
			t.Fatal(err)
		}
	}

	clusters, err := p.RefreshClusters(ctx)
	if err != nil {
		t.Fatalf("RefreshClusters failed: %v", err)
	}
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster of near-duplicates, got %d", len(clusters))
	}
	if clusters[0].Size() != 4 {
		t.Errorf("expected 4 members, got %d", clusters[0].Size())
	}

	stored, err := st.LatestClusters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 {
		t.Errorf("clusters not persisted, got %d", len(stored))
	}
}

func TestPipeline_Feedback(t *testing.T) {
	p, st := newTestPipeline(t, false)
	ctx := context.Background()

	claim, err := p.Ingest(ctx, IngestRequest{Text: "bleach cures covid"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Verify(ctx, claim.ID, false); err != nil {
		t.Fatal(err)
	}

	v, err := p.Feedback(ctx, claim.ID, "the cited page moved")
	if err != nil {
		t.Fatalf("Feedback failed: %v", err)
	}
	if v == nil {
		t.Fatal("expected a fresh verdict")
	}

	history, _ := st.VerdictHistory(ctx, claim.ID)
	if len(history) != 2 {
		t.Errorf("feedback must force a re-verify, history has %d", len(history))
	}
}
