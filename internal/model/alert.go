package model

import "time"

// Alert is raised when a verdict harm score or a cluster trend score crosses
// its threshold. Alerts stay active until explicitly resolved.
type Alert struct {
	ID          string    `json:"id"`
	Type        AlertType `json:"alert_type"`
	Severity    Severity  `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	ClaimIDs    []string  `json:"related_claim_ids"`
	EntityID    string    `json:"entity_id"` // claim the alert keys on
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	ResolvedAt  time.Time `json:"resolved_at,omitzero"`
}

// AlertType distinguishes what triggered the alert.
type AlertType string

const (
	AlertHighHarm AlertType = "high_harm"
	AlertTrending AlertType = "trending_cluster"
)

// Severity of an alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Feedback is user-submitted commentary on a claim. The pipeline only reads
// it to decide whether to re-trigger verification; its full lifecycle lives
// outside the core.
type Feedback struct {
	ID        string    `json:"id"`
	ClaimID   string    `json:"claim_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
