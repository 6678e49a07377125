package reliability

import (
	"testing"

	"github.com/crisisguard/crisisguard/internal/model"
)

func TestLookup_Score(t *testing.T) {
	l := NewLookup(nil)

	cases := []struct {
		domain string
		want   float64
	}{
		{"who.int", 0.95},
		{"www.who.int", 0.95},
		{"WHO.INT", 0.95},
		{"news.bbc.com", 0.95}, // subdomain of a high-tier domain
		{"nytimes.com", 0.75},
		{"cityhealth.gov", 0.85},
		{"mit.edu", 0.85},
		{"ox.ac.uk", 0.85},
		{"randomblog.example", 0.5},
		{"", 0.5},
	}

	for _, tc := range cases {
		if got := l.Score(tc.domain); got != tc.want {
			t.Errorf("Score(%q) = %v, want %v", tc.domain, got, tc.want)
		}
	}
}

func TestLookup_DomainMapOverride(t *testing.T) {
	cfg := model.DefaultConfig().Reliability
	cfg.DomainMap = map[string]float64{"who.int": 0.2, "shady.example": 1.5}
	l := NewLookup(&cfg)

	if got := l.Score("who.int"); got != 0.2 {
		t.Errorf("override should win over the high tier, got %v", got)
	}
	if got := l.Score("shady.example"); got != 1 {
		t.Errorf("override should clamp to 1, got %v", got)
	}
}

func TestLookup_ScoreURL(t *testing.T) {
	l := NewLookup(nil)

	if got := l.ScoreURL("https://www.reuters.com/article/x"); got != 0.95 {
		t.Errorf("ScoreURL reuters = %v, want 0.95", got)
	}
	if got := l.ScoreURL("https://reuters.com:8443/article"); got != 0.95 {
		t.Errorf("port must be stripped, got %v", got)
	}
}

func TestLookup_FactCheckScore(t *testing.T) {
	l := NewLookup(nil)
	if got := l.FactCheckScore(); got != 0.90 {
		t.Errorf("FactCheckScore = %v, want 0.90", got)
	}
}
