// Package reliability scores evidence domains by reputation. Scores are
// assigned here, never by the verdict reasoner.
package reliability

import (
	"net/url"
	"strings"

	"github.com/crisisguard/crisisguard/internal/model"
)

// Scores for the built-in tiers.
const (
	scoreHigh      = 0.95
	scoreMedium    = 0.75
	scoreGovEdu    = 0.85
	scoreFactCheck = 0.90
)

// Lookup maps a domain to a reliability score in [0,1]. Unknown domains get
// a conservative mid-range default.
type Lookup struct {
	config    *model.ReliabilityConfig
	highMap   map[string]bool
	mediumMap map[string]bool
}

// NewLookup creates a reputation lookup from configuration.
func NewLookup(config *model.ReliabilityConfig) *Lookup {
	if config == nil {
		cfg := model.DefaultConfig().Reliability
		config = &cfg
	}

	l := &Lookup{
		config:    config,
		highMap:   make(map[string]bool),
		mediumMap: make(map[string]bool),
	}
	for _, d := range config.HighDomains {
		l.highMap[d] = true
	}
	for _, d := range config.MediumDomains {
		l.mediumMap[d] = true
	}
	return l
}

// Score returns the reliability score for a domain.
func (l *Lookup) Score(domain string) float64 {
	host := normalizeHost(domain)
	if host == "" {
		return l.defaultScore()
	}

	// Explicit overrides from config win.
	if l.config.DomainMap != nil {
		if score, ok := l.config.DomainMap[host]; ok {
			return clamp(score)
		}
	}

	if matchesDomain(host, l.highMap) {
		return scoreHigh
	}
	if matchesDomain(host, l.mediumMap) {
		return scoreMedium
	}

	// Government and academic TLDs get a boost even when unlisted.
	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".edu") ||
		strings.HasSuffix(host, ".ac.uk") || strings.HasSuffix(host, ".gov.uk") {
		return scoreGovEdu
	}

	return l.defaultScore()
}

// ScoreURL parses a URL and scores its host.
func (l *Lookup) ScoreURL(rawURL string) float64 {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return l.defaultScore()
	}
	return l.Score(parsed.Host)
}

// FactCheckScore is the fixed score for sources returned by dedicated
// fact-check services.
func (l *Lookup) FactCheckScore() float64 {
	return scoreFactCheck
}

func (l *Lookup) defaultScore() float64 {
	if l.config.Default > 0 {
		return clamp(l.config.Default)
	}
	return 0.5
}

// matchesDomain checks host against a domain set including subdomains
// (news.bbc.com matches bbc.com).
func matchesDomain(host string, domains map[string]bool) bool {
	if domains[host] {
		return true
	}
	for d := range domains {
		if strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func normalizeHost(domain string) string {
	host := strings.ToLower(strings.TrimSpace(domain))
	host = strings.TrimPrefix(host, "www.")
	if idx := strings.Index(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}

func clamp(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
