package model

import "time"

// EvidenceSource is a single external document retrieved for a claim.
// Reliability is assigned by the domain-reputation lookup, never by the
// reasoner.
type EvidenceSource struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Excerpt     string    `json:"excerpt,omitempty"`
	Domain      string    `json:"domain"`
	Reliability float64   `json:"reliability"` // 0-1
	SourceType  string    `json:"source_type"` // fact-check, article, web
	PublishedAt time.Time `json:"published_at,omitzero"`
}

// EvidenceSet is the ranked, deduplicated evidence retrieved for one claim.
type EvidenceSet struct {
	ClaimID     string           `json:"claim_id"`
	Sources     []EvidenceSource `json:"sources"`
	TotalFound  int              `json:"total_found"`
	Queries     []string         `json:"queries,omitempty"`
	RetrievedAt time.Time        `json:"retrieved_at"`
}

// Empty reports whether retrieval produced no usable sources. The reasoner
// must return Unverified in that case.
func (e *EvidenceSet) Empty() bool {
	return len(e.Sources) == 0
}

// URLs returns the allowlist of citable URLs for this evidence set.
func (e *EvidenceSet) URLs() []string {
	urls := make([]string, 0, len(e.Sources))
	for _, s := range e.Sources {
		urls = append(urls, s.URL)
	}
	return urls
}

// Contains reports whether url is a member of the evidence set.
func (e *EvidenceSet) Contains(url string) bool {
	for _, s := range e.Sources {
		if s.URL == url {
			return true
		}
	}
	return false
}
