package model

import "time"

// Claim represents a normalized, verifiable factual statement extracted
// from a raw submission. Claim is the root entity: evidence and verdicts
// are created during verification and owned by it.
type Claim struct {
	ID         string     `json:"id"`
	RawText    string     `json:"raw_text"`
	ClaimText  string     `json:"claim_text"`
	ClaimType  ClaimType  `json:"claim_type"`
	Entities   []Entity   `json:"entities,omitempty"`
	Confidence float64    `json:"confidence"` // detection confidence, 0-1
	Source     string     `json:"source,omitempty"`
	SourceType string     `json:"source_type,omitempty"` // social, news, web, manual
	Embedding  []float32  `json:"embedding,omitempty"`   // nil until computed
	Status     ClaimStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
}

// HasEmbedding reports whether the claim's vector has been computed.
func (c *Claim) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// ClaimType categorizes the topic of a claim.
type ClaimType string

const (
	ClaimTypeHealth   ClaimType = "health"
	ClaimTypePolitics ClaimType = "politics"
	ClaimTypeGeneral  ClaimType = "general"
	ClaimTypeScience  ClaimType = "science"
	ClaimTypeBusiness ClaimType = "business"
)

// ParseClaimType maps free-form model output onto the closed enum,
// defaulting to general for anything unrecognized.
func ParseClaimType(s string) ClaimType {
	switch ClaimType(s) {
	case ClaimTypeHealth, ClaimTypePolitics, ClaimTypeScience, ClaimTypeBusiness:
		return ClaimType(s)
	default:
		return ClaimTypeGeneral
	}
}

// ClaimStatus tracks a claim through the verification lifecycle.
type ClaimStatus string

const (
	StatusPending    ClaimStatus = "pending"
	StatusProcessing ClaimStatus = "processing"
	StatusVerified   ClaimStatus = "verified"
)

// Entity is a named entity mentioned by a claim.
type Entity struct {
	Text string `json:"text"`
	Type string `json:"type"` // person, organization, location, date, number, other
}

// DetectionResult is the output of the claim extractor.
type DetectionResult struct {
	IsClaim    bool      `json:"is_claim"`
	ClaimText  string    `json:"claim_text,omitempty"`
	ClaimType  ClaimType `json:"claim_type,omitempty"`
	Entities   []Entity  `json:"entities,omitempty"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning,omitempty"`
}
