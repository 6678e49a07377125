// Package alert raises operator alerts for high-harm verdicts and
// trending clusters.
package alert

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/crisisguard/crisisguard/internal/logging"
	"github.com/crisisguard/crisisguard/internal/model"
)

// Engine decides when a verdict or cluster warrants an alert. Dedup is
// keyed on (type, entity): while an active alert exists for an entity,
// re-evaluating it never raises a second one.
type Engine struct {
	harmFloor      int
	trendThreshold float64
}

// NewEngine creates an alert engine.
func NewEngine(cfg model.AlertConfig, trendThreshold float64) *Engine {
	floor := cfg.HarmFloor
	if floor <= 0 {
		floor = 70
	}
	if trendThreshold <= 0 {
		trendThreshold = 40
	}
	return &Engine{harmFloor: floor, trendThreshold: trendThreshold}
}

// EvaluateVerdict returns a high-harm alert for the verdict, or nil when
// the harm score is below the floor or an active alert already covers the
// claim.
func (e *Engine) EvaluateVerdict(v *model.Verdict, active []model.Alert) *model.Alert {
	if v.HarmScore < e.harmFloor {
		return nil
	}
	if hasActive(active, model.AlertHighHarm, v.ClaimID) {
		return nil
	}

	a := &model.Alert{
		ID:          uuid.NewString(),
		Type:        model.AlertHighHarm,
		Severity:    SeverityForHarm(v.HarmScore),
		Title:       "High-harm " + string(v.Verdict) + " verdict (harm " + strconv.Itoa(v.HarmScore) + ")",
		Description: v.ExplainLike12,
		ClaimIDs:    []string{v.ClaimID},
		EntityID:    v.ClaimID,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	logging.Warn("high-harm alert raised",
		"claim_id", v.ClaimID, "harm", v.HarmScore, "severity", a.Severity)
	return a
}

// EvaluateClusters returns alerts for trending clusters in a fresh
// generation. The dedup entity is the representative claim rather than
// the cluster id, so a story that stays trending across refreshes does
// not alert on every generation.
func (e *Engine) EvaluateClusters(clusters []model.Cluster, active []model.Alert) []model.Alert {
	var out []model.Alert
	for _, c := range clusters {
		if !c.IsTrending {
			continue
		}
		if hasActive(active, model.AlertTrending, c.Representative) {
			continue
		}

		severity := model.SeverityMedium
		if c.TrendScore >= 2*e.trendThreshold {
			severity = model.SeverityHigh
		}

		out = append(out, model.Alert{
			ID:          uuid.NewString(),
			Type:        model.AlertTrending,
			Severity:    severity,
			Title:       "Trending cluster: " + c.Label,
			Description: "Cluster " + c.ID + " with " + strconv.Itoa(c.Size()) + " related claims",
			ClaimIDs:    c.ClaimIDs,
			EntityID:    c.Representative,
			IsActive:    true,
			CreatedAt:   time.Now().UTC(),
		})
		logging.Warn("trending cluster alert raised",
			"cluster_id", c.ID, "score", c.TrendScore, "size", c.Size())
	}
	return out
}

// SeverityForHarm maps a harm score to alert severity along the harm
// bands: crisis scores are critical, significant scores are high.
func SeverityForHarm(harm int) model.Severity {
	switch {
	case harm >= 81:
		return model.SeverityCritical
	case harm >= 61:
		return model.SeverityHigh
	case harm >= 41:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func hasActive(active []model.Alert, t model.AlertType, entityID string) bool {
	for _, a := range active {
		if a.IsActive && a.Type == t && a.EntityID == entityID {
			return true
		}
	}
	return false
}
