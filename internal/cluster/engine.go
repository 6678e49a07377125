// Package cluster groups claims by vector proximity into trend clusters.
package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/coder/hnsw"

	"github.com/crisisguard/crisisguard/internal/llm"
	"github.com/crisisguard/crisisguard/internal/logging"
	"github.com/crisisguard/crisisguard/internal/model"
)

// ErrRefreshInProgress is returned when a refresh is requested while one is
// already running. Cluster reassignment is not commutative, so overlapping
// refreshes are rejected rather than queued.
var ErrRefreshInProgress = errors.New("cluster refresh already in progress")

// Member is one claim eligible for clustering: a claim with a computed
// embedding inside the refresh window.
type Member struct {
	ClaimID    string
	Text       string
	Type       model.ClaimType
	Vector     []float32
	Confidence float64
	CreatedAt  time.Time
}

// Engine recomputes cluster generations over recent claim vectors using
// density-based clustering. The algorithm has no random component and
// members are processed in a fixed order, so a refresh over the same input
// set is deterministic run to run.
type Engine struct {
	provider llm.Provider // optional, used for labels
	cfg      model.ClusterConfig

	refreshMu sync.Mutex
}

// NewEngine creates a cluster engine. provider may be nil; labels then
// fall back to deterministic truncation.
func NewEngine(provider llm.Provider, cfg model.ClusterConfig) *Engine {
	if cfg.MinClusterSize <= 0 {
		cfg.MinClusterSize = 3
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = 0.30
	}
	if cfg.TrendThreshold <= 0 {
		cfg.TrendThreshold = 40
	}
	if cfg.TrendHalfLifeHrs <= 0 {
		cfg.TrendHalfLifeHrs = 12
	}
	return &Engine{provider: provider, cfg: cfg}
}

// Refresh produces a new cluster generation from the given members. Only
// one refresh may run at a time; a concurrent call fails fast with
// ErrRefreshInProgress. Noise points join no cluster, and groups below the
// minimum size are dropped entirely.
func (e *Engine) Refresh(ctx context.Context, members []Member, now time.Time) ([]model.Cluster, error) {
	if !e.refreshMu.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer e.refreshMu.Unlock()

	if len(members) < e.cfg.MinClusterSize {
		logging.Info("not enough claims to cluster", "claims", len(members), "min", e.cfg.MinClusterSize)
		return nil, nil
	}

	// Fixed processing order makes assignment stable across runs.
	sorted := make([]Member, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ClaimID < sorted[j].ClaimID
	})

	groups := dbscan(sorted, float32(e.cfg.Epsilon), e.cfg.MinClusterSize)

	generation := now.UTC().Format("20060102T150405Z")
	clusters := make([]model.Cluster, 0, len(groups))
	for i, group := range groups {
		clusters = append(clusters, e.buildCluster(ctx, group, generation, i, now))
	}

	logging.Info("cluster refresh complete",
		"generation", generation, "claims", len(members), "clusters", len(clusters))
	return clusters, nil
}

func (e *Engine) buildCluster(ctx context.Context, group []Member, generation string, idx int, now time.Time) model.Cluster {
	rep := representative(group)

	claimIDs := make([]string, len(group))
	times := make([]time.Time, len(group))
	for i, m := range group {
		claimIDs[i] = m.ClaimID
		times[i] = m.CreatedAt
	}

	score := TrendScore(times, now, e.cfg.TrendHalfLifeHrs)

	label, category := e.label(ctx, group)
	if category == "" {
		category = majorityType(group)
	}

	return model.Cluster{
		ID:             fmt.Sprintf("%s-%d", generation, idx),
		Generation:     generation,
		ClaimIDs:       claimIDs,
		Representative: rep.ClaimID,
		Label:          label,
		Category:       category,
		TrendScore:     score,
		IsTrending:     score >= e.cfg.TrendThreshold,
		CreatedAt:      now.UTC(),
	}
}

// representative picks the member with the highest detection confidence,
// breaking ties by earliest creation and then claim id.
func representative(group []Member) Member {
	best := group[0]
	for _, m := range group[1:] {
		switch {
		case m.Confidence > best.Confidence:
			best = m
		case m.Confidence == best.Confidence && m.CreatedAt.Before(best.CreatedAt):
			best = m
		case m.Confidence == best.Confidence && m.CreatedAt.Equal(best.CreatedAt) && m.ClaimID < best.ClaimID:
			best = m
		}
	}
	return best
}

type labelPayload struct {
	Label    string `json:"label"`
	Category string `json:"category"`
}

// label synthesizes a short cluster label, falling back to a deterministic
// truncation of the representative claim when synthesis is unavailable.
func (e *Engine) label(ctx context.Context, group []Member) (string, model.ClaimType) {
	fallback := truncateLabel(representative(group).Text)

	if e.provider == nil {
		return fallback, ""
	}

	texts := make([]string, 0, len(group))
	for _, m := range group {
		texts = append(texts, m.Text)
	}

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		System:   llm.ClusterLabelSystem,
		Prompt:   llm.BuildClusterLabelPrompt(texts),
		JSONMode: true,
	})
	if err != nil {
		logging.Debug("cluster labeling failed, using truncation", "error", err)
		return fallback, ""
	}

	var payload labelPayload
	if err := json.Unmarshal([]byte(resp.Content), &payload); err != nil || payload.Label == "" {
		return fallback, ""
	}
	return payload.Label, model.ParseClaimType(payload.Category)
}

func majorityType(group []Member) model.ClaimType {
	counts := make(map[model.ClaimType]int)
	for _, m := range group {
		counts[m.Type]++
	}
	best := model.ClaimTypeGeneral
	bestCount := 0
	for _, t := range []model.ClaimType{
		model.ClaimTypeHealth, model.ClaimTypePolitics, model.ClaimTypeScience,
		model.ClaimTypeBusiness, model.ClaimTypeGeneral,
	} {
		if counts[t] > bestCount {
			best = t
			bestCount = counts[t]
		}
	}
	return best
}

func truncateLabel(text string) string {
	const maxLabel = 60
	if len(text) <= maxLabel {
		return text
	}
	cut := maxLabel - 3
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

// dbscan runs density-based clustering over cosine distance. Points
// without enough neighbors stay noise; they are never force-assigned.
func dbscan(members []Member, eps float32, minPts int) [][]Member {
	const (
		unvisited = 0
		noise     = -1
	)

	labels := make([]int, len(members)) // 0 unvisited, -1 noise, >0 cluster
	nextCluster := 0

	neighborsOf := func(i int) []int {
		var out []int
		for j := range members {
			if j == i {
				continue
			}
			if hnsw.CosineDistance(members[i].Vector, members[j].Vector) <= eps {
				out = append(out, j)
			}
		}
		return out
	}

	for i := range members {
		if labels[i] != unvisited {
			continue
		}

		neighbors := neighborsOf(i)
		if len(neighbors)+1 < minPts {
			labels[i] = noise
			continue
		}

		nextCluster++
		labels[i] = nextCluster

		// Expand the cluster breadth-first over density-reachable points.
		queue := append([]int(nil), neighbors...)
		for head := 0; head < len(queue); head++ {
			j := queue[head]
			if labels[j] == noise {
				labels[j] = nextCluster // border point
				continue
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = nextCluster

			jNeighbors := neighborsOf(j)
			if len(jNeighbors)+1 >= minPts {
				queue = append(queue, jNeighbors...)
			}
		}
	}

	groups := make([][]Member, nextCluster)
	for i, label := range labels {
		if label > 0 {
			groups[label-1] = append(groups[label-1], members[i])
		}
	}

	// Enforce the minimum size on final groups as well; border-point
	// reassignment can leave a group smaller than minPts.
	kept := groups[:0]
	for _, g := range groups {
		if len(g) >= minPts {
			kept = append(kept, g)
		}
	}
	return kept
}
