package model

import "time"

// Cluster groups semantically similar claims within a time window. Clusters
// are recomputed per refresh: every refresh produces a new generation and a
// claim belongs to at most one cluster per generation. Membership is a
// non-owning reference; claims outlive cluster generations.
type Cluster struct {
	ID             string    `json:"cluster_id"`
	Generation     string    `json:"generation"`
	ClaimIDs       []string  `json:"claim_ids"` // size >= configured minimum
	Representative string    `json:"representative_claim"`
	Label          string    `json:"label"`
	Category       ClaimType `json:"category"`
	TrendScore     float64   `json:"trend_score"` // recency-weighted, >= 0
	IsTrending     bool      `json:"is_trending"`
	CreatedAt      time.Time `json:"created_at"`
}

// Size returns the member count.
func (c *Cluster) Size() int {
	return len(c.ClaimIDs)
}
