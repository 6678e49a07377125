package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crisisguard/crisisguard/internal/model"
)

func TestMemory_Claims(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := m.Claim(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	claim := &model.Claim{ID: "c1", ClaimText: "the earth is flat", Status: model.StatusPending, CreatedAt: now}
	if err := m.SaveClaim(ctx, claim); err != nil {
		t.Fatal(err)
	}

	got, err := m.Claim(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ClaimText != claim.ClaimText {
		t.Errorf("round-trip mismatch: %+v", got)
	}

	// Stored copies are independent of the caller's struct.
	claim.ClaimText = "mutated"
	got2, _ := m.Claim(ctx, "c1")
	if got2.ClaimText == "mutated" {
		t.Error("store leaked a reference to the caller's claim")
	}
}

func TestMemory_ClaimsSince(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	_ = m.SaveClaim(ctx, &model.Claim{ID: "old", CreatedAt: now.Add(-48 * time.Hour)})
	_ = m.SaveClaim(ctx, &model.Claim{ID: "new", CreatedAt: now.Add(-1 * time.Hour)})

	claims, err := m.ClaimsSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(claims) != 1 || claims[0].ID != "new" {
		t.Errorf("expected only the recent claim, got %+v", claims)
	}
}

func TestMemory_ClaimsWithoutEmbedding(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_ = m.SaveClaim(ctx, &model.Claim{ID: "bare"})
	_ = m.SaveClaim(ctx, &model.Claim{ID: "embedded", Embedding: []float32{1, 2}})

	claims, err := m.ClaimsWithoutEmbedding(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(claims) != 1 || claims[0].ID != "bare" {
		t.Errorf("expected only the bare claim, got %+v", claims)
	}
}

func TestMemory_VerdictsAppendOnly(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.LatestVerdict(ctx, "c1"); !errors.Is(err, ErrNoVerdict) {
		t.Errorf("expected ErrNoVerdict, got %v", err)
	}

	_ = m.SaveVerdict(ctx, &model.Verdict{ID: "v1", ClaimID: "c1", Verdict: model.VerdictUnverified})
	_ = m.SaveVerdict(ctx, &model.Verdict{ID: "v2", ClaimID: "c1", Verdict: model.VerdictFalse})

	latest, err := m.LatestVerdict(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != "v2" {
		t.Errorf("expected latest v2, got %s", latest.ID)
	}

	history, err := m.VerdictHistory(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0].ID != "v1" {
		t.Errorf("expected full ordered history, got %+v", history)
	}
}

func TestMemory_SearchClaims(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_ = m.SaveClaim(ctx, &model.Claim{ID: "c1", ClaimText: "Vaccines contain microchips"})
	_ = m.SaveClaim(ctx, &model.Claim{ID: "c2", ClaimText: "The moon landing was staged"})

	claims, err := m.SearchClaims(ctx, "microchips", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(claims) != 1 || claims[0].ID != "c1" {
		t.Errorf("unexpected search results: %+v", claims)
	}
}

func TestMemory_Alerts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_ = m.SaveAlert(ctx, &model.Alert{ID: "a1", Type: model.AlertHighHarm, EntityID: "c1", IsActive: true, CreatedAt: time.Now().UTC()})
	_ = m.SaveAlert(ctx, &model.Alert{ID: "a2", Type: model.AlertTrending, EntityID: "c2", IsActive: true, CreatedAt: time.Now().UTC()})

	if err := m.ResolveAlert(ctx, "a1"); err != nil {
		t.Fatal(err)
	}
	if err := m.ResolveAlert(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	active, err := m.Alerts(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != "a2" {
		t.Errorf("expected only a2 active, got %+v", active)
	}

	all, _ := m.Alerts(ctx, false)
	if len(all) != 2 {
		t.Errorf("expected 2 alerts total, got %d", len(all))
	}
	for _, a := range all {
		if a.ID == "a1" && a.ResolvedAt.IsZero() {
			t.Error("resolved alert missing resolved_at")
		}
	}
}

func TestMemory_ClustersReplacedPerGeneration(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_ = m.SaveClusters(ctx, []model.Cluster{{ID: "g1-0", Generation: "g1"}})
	_ = m.SaveClusters(ctx, []model.Cluster{{ID: "g2-0", Generation: "g2"}, {ID: "g2-1", Generation: "g2"}})

	clusters, err := m.LatestClusters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 2 || clusters[0].Generation != "g2" {
		t.Errorf("expected latest generation only, got %+v", clusters)
	}
}

func TestMemory_Evidence(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.Evidence(ctx, "c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	set := &model.EvidenceSet{ClaimID: "c1", Sources: []model.EvidenceSource{{URL: "https://who.int/x"}}}
	_ = m.SaveEvidence(ctx, set)

	got, err := m.Evidence(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Sources) != 1 {
		t.Errorf("round-trip mismatch: %+v", got)
	}
}

func TestMemory_SetClaimFields(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.SetClaimStatus(ctx, "missing", model.StatusVerified); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := m.SetClaimEmbedding(ctx, "missing", []float32{1}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_ = m.SaveClaim(ctx, &model.Claim{ID: "c1", Status: model.StatusPending})
	if err := m.SetClaimStatus(ctx, "c1", model.StatusProcessing); err != nil {
		t.Fatal(err)
	}
	if err := m.SetClaimEmbedding(ctx, "c1", []float32{1, 2}); err != nil {
		t.Fatal(err)
	}

	got, err := m.Claim(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusProcessing {
		t.Errorf("expected processing status, got %s", got.Status)
	}
	if !got.HasEmbedding() {
		t.Error("embedding update not applied")
	}

	// A status update must not clear the embedding and vice versa.
	if err := m.SetClaimStatus(ctx, "c1", model.StatusVerified); err != nil {
		t.Fatal(err)
	}
	got, _ = m.Claim(ctx, "c1")
	if !got.HasEmbedding() || got.Status != model.StatusVerified {
		t.Errorf("field updates interfered: %+v", got)
	}
}
