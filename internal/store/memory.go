package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/crisisguard/crisisguard/internal/model"
)

// Memory is a mutex-guarded in-memory Store. It backs tests and runs
// where persistence across restarts is not needed.
type Memory struct {
	mu       sync.RWMutex
	claims   map[string]model.Claim
	evidence map[string]model.EvidenceSet // by claim id
	verdicts map[string][]model.Verdict   // by claim id, append order
	clusters []model.Cluster              // latest generation only
	alerts   map[string]model.Alert
	feedback map[string][]model.Feedback
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		claims:   make(map[string]model.Claim),
		evidence: make(map[string]model.EvidenceSet),
		verdicts: make(map[string][]model.Verdict),
		alerts:   make(map[string]model.Alert),
		feedback: make(map[string][]model.Feedback),
	}
}

func (m *Memory) SaveClaim(_ context.Context, claim *model.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims[claim.ID] = *claim
	return nil
}

func (m *Memory) SetClaimStatus(_ context.Context, claimID string, status model.ClaimStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[claimID]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	m.claims[claimID] = c
	return nil
}

func (m *Memory) SetClaimEmbedding(_ context.Context, claimID string, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[claimID]
	if !ok {
		return ErrNotFound
	}
	c.Embedding = append([]float32(nil), embedding...)
	m.claims[claimID] = c
	return nil
}

func (m *Memory) Claim(_ context.Context, id string) (*model.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.claims[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *Memory) ClaimsSince(_ context.Context, since time.Time) ([]model.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Claim
	for _, c := range m.claims {
		if !c.CreatedAt.Before(since) {
			out = append(out, c)
		}
	}
	sortClaims(out)
	return out, nil
}

func (m *Memory) ClaimsWithoutEmbedding(_ context.Context) ([]model.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Claim
	for _, c := range m.claims {
		if !c.HasEmbedding() {
			out = append(out, c)
		}
	}
	sortClaims(out)
	return out, nil
}

func (m *Memory) SearchClaims(_ context.Context, query string, limit int) ([]model.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(query)
	var out []model.Claim
	for _, c := range m.claims {
		if strings.Contains(strings.ToLower(c.ClaimText), needle) {
			out = append(out, c)
		}
	}
	sortClaims(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) SaveEvidence(_ context.Context, set *model.EvidenceSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evidence[set.ClaimID] = *set
	return nil
}

func (m *Memory) Evidence(_ context.Context, claimID string) (*model.EvidenceSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.evidence[claimID]
	if !ok {
		return nil, ErrNotFound
	}
	return &set, nil
}

func (m *Memory) SaveVerdict(_ context.Context, v *model.Verdict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdicts[v.ClaimID] = append(m.verdicts[v.ClaimID], *v)
	return nil
}

func (m *Memory) LatestVerdict(_ context.Context, claimID string) (*model.Verdict, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := m.verdicts[claimID]
	if len(history) == 0 {
		return nil, ErrNoVerdict
	}
	latest := history[len(history)-1]
	return &latest, nil
}

func (m *Memory) VerdictHistory(_ context.Context, claimID string) ([]model.Verdict, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := m.verdicts[claimID]
	out := make([]model.Verdict, len(history))
	copy(out, history)
	return out, nil
}

func (m *Memory) SaveClusters(_ context.Context, clusters []model.Cluster) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clusters = make([]model.Cluster, len(clusters))
	copy(m.clusters, clusters)
	return nil
}

func (m *Memory) LatestClusters(_ context.Context) ([]model.Cluster, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Cluster, len(m.clusters))
	copy(out, m.clusters)
	return out, nil
}

func (m *Memory) SaveAlert(_ context.Context, a *model.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[a.ID] = *a
	return nil
}

func (m *Memory) Alerts(_ context.Context, activeOnly bool) ([]model.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Alert
	for _, a := range m.alerts {
		if activeOnly && !a.IsActive {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) ResolveAlert(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return ErrNotFound
	}
	if a.IsActive {
		a.IsActive = false
		a.ResolvedAt = time.Now().UTC()
		m.alerts[id] = a
	}
	return nil
}

func (m *Memory) SaveFeedback(_ context.Context, f *model.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback[f.ClaimID] = append(m.feedback[f.ClaimID], *f)
	return nil
}

func (m *Memory) Close() error { return nil }

func sortClaims(claims []model.Claim) {
	sort.Slice(claims, func(i, j int) bool {
		if !claims[i].CreatedAt.Equal(claims[j].CreatedAt) {
			return claims[i].CreatedAt.Before(claims[j].CreatedAt)
		}
		return claims[i].ID < claims[j].ID
	})
}
