package model

import "time"

// Verdict is the append-only outcome of reasoning over a claim and its
// evidence set. Re-verification creates a new record, never mutates.
type Verdict struct {
	ID            string            `json:"id"`
	ClaimID       string            `json:"claim_id"`
	Verdict       VerdictLabel      `json:"verdict"`
	Confidence    float64           `json:"confidence"` // 0-1
	Reasoning     string            `json:"reasoning"`
	ExplainLike12 string            `json:"explain_like_12"`
	HarmScore     int               `json:"harm_score"` // 0-100
	Action        RecommendedAction `json:"recommended_action"`
	Citations     []Citation        `json:"citations,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Citation references one evidence source the verdict relies on. Every
// citation URL must be a member of the evidence set retrieved for the
// claim; that invariant is enforced before a verdict is persisted.
type Citation struct {
	URL         string  `json:"url"`
	Title       string  `json:"title,omitempty"`
	Excerpt     string  `json:"excerpt,omitempty"`
	Reliability float64 `json:"reliability"`
}

// VerdictLabel is the closed set of possible verdicts.
type VerdictLabel string

const (
	VerdictTrue          VerdictLabel = "True"
	VerdictFalse         VerdictLabel = "False"
	VerdictMisleading    VerdictLabel = "Misleading"
	VerdictPartiallyTrue VerdictLabel = "Partially True"
	VerdictUnverified    VerdictLabel = "Unverified"
)

// ParseVerdictLabel maps model output onto the closed enum, defaulting to
// Unverified for anything unrecognized.
func ParseVerdictLabel(s string) VerdictLabel {
	switch VerdictLabel(s) {
	case VerdictTrue, VerdictFalse, VerdictMisleading, VerdictPartiallyTrue:
		return VerdictLabel(s)
	default:
		return VerdictUnverified
	}
}

// RecommendedAction is derived deterministically from (verdict, harm score);
// see verdict.DeriveAction.
type RecommendedAction string

const (
	ActionDebunk      RecommendedAction = "debunk"
	ActionFlag        RecommendedAction = "flag"
	ActionMonitor     RecommendedAction = "monitor"
	ActionPublish     RecommendedAction = "publish"
	ActionHumanReview RecommendedAction = "human_review"
)

// HarmBand names the fixed harm score bands.
type HarmBand string

const (
	HarmHarmless    HarmBand = "harmless"    // 0-20
	HarmMinor       HarmBand = "minor"       // 21-40
	HarmModerate    HarmBand = "moderate"    // 41-60
	HarmSignificant HarmBand = "significant" // 61-80
	HarmCrisis      HarmBand = "crisis"      // 81-100
)

// BandForHarm returns the band a harm score falls in. Scores outside 0-100
// are clamped first.
func BandForHarm(score int) HarmBand {
	switch {
	case score <= 20:
		return HarmHarmless
	case score <= 40:
		return HarmMinor
	case score <= 60:
		return HarmModerate
	case score <= 80:
		return HarmSignificant
	default:
		return HarmCrisis
	}
}

// ClampHarm bounds a harm score to [0,100].
func ClampHarm(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// ClampConfidence bounds a confidence value to [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
