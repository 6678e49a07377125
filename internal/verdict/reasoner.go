package verdict

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/crisisguard/crisisguard/internal/llm"
	"github.com/crisisguard/crisisguard/internal/logging"
	"github.com/crisisguard/crisisguard/internal/model"
)

// escalatedConfidenceCap bounds confidence after a persistent citation
// violation forces human review.
const escalatedConfidenceCap = 0.4

// CitationViolation records URLs the reasoning capability cited that are
// not members of the evidence set.
type CitationViolation struct {
	ClaimID string
	URLs    []string
}

func (e *CitationViolation) Error() string {
	return fmt.Sprintf("verdict for claim %s cites %d non-evidence URLs", e.ClaimID, len(e.URLs))
}

// Reasoner produces verdicts. Every URL a verdict references must belong
// to the evidence set retrieved for the claim; a violating response gets
// one retry with the allowlist restated, and a second violation is
// stripped, downgraded, and escalated to human review. The reasoner never
// publishes a hallucinated citation.
type Reasoner struct {
	provider          llm.Provider
	unverifiedCeiling float64
	maxCitations      int
}

// NewReasoner creates a reasoner.
func NewReasoner(provider llm.Provider, cfg model.VerdictConfig) *Reasoner {
	ceiling := cfg.UnverifiedCeiling
	if ceiling <= 0 {
		ceiling = 0.3
	}
	maxCitations := cfg.MaxCitations
	if maxCitations <= 0 {
		maxCitations = 10
	}

	return &Reasoner{
		provider:          provider,
		unverifiedCeiling: ceiling,
		maxCitations:      maxCitations,
	}
}

type verdictPayload struct {
	Verdict    string  `json:"verdict"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Sources    []struct {
		Link    string `json:"link"`
		Excerpt string `json:"excerpt"`
		Title   string `json:"title"`
	} `json:"sources"`
	ExplainLike12 string   `json:"explain_like_12"`
	HarmScore     int      `json:"harm_score"`
	Tags          []string `json:"tags"`
}

// Reason produces a verdict for the claim over its evidence set.
//
// With an empty evidence set no reasoning call is made at all: the verdict
// is Unverified with confidence at most the configured ceiling. The system
// never asserts True or False without evidence.
func (r *Reasoner) Reason(ctx context.Context, claim *model.Claim, evidence *model.EvidenceSet) (*model.Verdict, error) {
	if evidence == nil || evidence.Empty() {
		return r.unverifiedVerdict(claim), nil
	}

	// Reasoned -> Validated.
	payload, err := r.complete(ctx, llm.BuildFactCheckPrompt(claim.ClaimText, evidence))
	if err != nil {
		return nil, fmt.Errorf("verdict reasoning: %w", err)
	}

	escalated := false
	if violation := validateCitations(claim.ID, payload, evidence); violation != nil {
		logging.Warn("citation violation, retrying with allowlist",
			"claim_id", claim.ID, "urls", violation.URLs)

		// Retried -> Validated. One bounded retry, never a loop.
		retried, err := r.complete(ctx, llm.BuildCitationRetryPrompt(claim.ClaimText, evidence))
		if err == nil {
			payload = retried
		}
		if violation := validateCitations(claim.ID, payload, evidence); violation != nil {
			logging.Error("persistent citation violation, stripping and escalating",
				"claim_id", claim.ID, "urls", violation.URLs)
			stripViolations(payload, evidence)
			escalated = true
		}
	}

	return r.buildVerdict(claim, evidence, payload, escalated), nil
}

func (r *Reasoner) complete(ctx context.Context, prompt string) (*verdictPayload, error) {
	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		System:   llm.FactCheckerSystem,
		Prompt:   prompt,
		JSONMode: true,
	})
	if err != nil {
		return nil, err
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(resp.Content), &payload); err != nil {
		return nil, fmt.Errorf("parse verdict response: %w", err)
	}
	return &payload, nil
}

func (r *Reasoner) buildVerdict(claim *model.Claim, evidence *model.EvidenceSet, payload *verdictPayload, escalated bool) *model.Verdict {
	label := model.ParseVerdictLabel(payload.Verdict)
	confidence := model.ClampConfidence(payload.Confidence)
	harm := model.ClampHarm(payload.HarmScore)

	action := DeriveAction(label, harm)
	if escalated {
		if confidence > escalatedConfidenceCap {
			confidence = escalatedConfidenceCap
		}
		action = model.ActionHumanReview
	}

	explain := strings.TrimSpace(payload.ExplainLike12)
	if explain == "" {
		explain = fallbackExplanation(label)
	}

	tags := payload.Tags
	if len(tags) > 10 {
		tags = tags[:10]
	}

	return &model.Verdict{
		ID:            uuid.NewString(),
		ClaimID:       claim.ID,
		Verdict:       label,
		Confidence:    confidence,
		Reasoning:     truncate(payload.Reasoning, 3000),
		ExplainLike12: truncate(explain, 1000),
		HarmScore:     harm,
		Action:        action,
		Citations:     r.buildCitations(payload, evidence),
		Tags:          tags,
		CreatedAt:     time.Now().UTC(),
	}
}

// buildCitations keeps only cited URLs that exist in the evidence set and
// attaches the reliability assigned at retrieval time. If the model cited
// nothing usable, the top evidence sources stand in.
func (r *Reasoner) buildCitations(payload *verdictPayload, evidence *model.EvidenceSet) []model.Citation {
	var citations []model.Citation
	for _, s := range payload.Sources {
		if len(citations) == r.maxCitations {
			break
		}
		match, ok := findSource(evidence, s.Link)
		if !ok {
			continue
		}
		title := s.Title
		if title == "" {
			title = match.Title
		}
		citations = append(citations, model.Citation{
			URL:         match.URL,
			Title:       title,
			Excerpt:     truncate(s.Excerpt, 500),
			Reliability: match.Reliability,
		})
	}

	if len(citations) == 0 {
		for i, s := range evidence.Sources {
			if i == 3 {
				break
			}
			citations = append(citations, model.Citation{
				URL:         s.URL,
				Title:       s.Title,
				Excerpt:     truncate(s.Excerpt, 500),
				Reliability: s.Reliability,
			})
		}
	}
	return citations
}

func (r *Reasoner) unverifiedVerdict(claim *model.Claim) *model.Verdict {
	confidence := 0.0
	if confidence > r.unverifiedCeiling {
		confidence = r.unverifiedCeiling
	}
	return &model.Verdict{
		ID:            uuid.NewString(),
		ClaimID:       claim.ID,
		Verdict:       model.VerdictUnverified,
		Confidence:    confidence,
		Reasoning:     "No evidence sources could be retrieved for this claim, so it cannot be assessed.",
		ExplainLike12: "We looked for information about this claim but could not find any trustworthy sources, so we cannot say whether it is true or false.",
		HarmScore:     0,
		Action:        model.ActionMonitor,
		CreatedAt:     time.Now().UTC(),
	}
}

// validateCitations checks every URL in the structured sources and in the
// free-text reasoning against the evidence allowlist.
func validateCitations(claimID string, payload *verdictPayload, evidence *model.EvidenceSet) *CitationViolation {
	var violations []string
	seen := make(map[string]bool)

	record := func(url string) {
		if !evidence.Contains(url) && !seen[url] {
			seen[url] = true
			violations = append(violations, url)
		}
	}

	for _, s := range payload.Sources {
		if s.Link != "" {
			record(s.Link)
		}
	}
	for _, url := range extractURLs(payload.Reasoning) {
		record(url)
	}

	if len(violations) == 0 {
		return nil
	}
	return &CitationViolation{ClaimID: claimID, URLs: violations}
}

// stripViolations removes every non-evidence URL from the payload so
// nothing hallucinated can reach persistence.
func stripViolations(payload *verdictPayload, evidence *model.EvidenceSet) {
	kept := payload.Sources[:0]
	for _, s := range payload.Sources {
		if evidence.Contains(s.Link) {
			kept = append(kept, s)
		}
	}
	payload.Sources = kept

	for _, url := range extractURLs(payload.Reasoning) {
		if !evidence.Contains(url) {
			payload.Reasoning = strings.ReplaceAll(payload.Reasoning, url, "[citation removed]")
		}
	}
}

func findSource(evidence *model.EvidenceSet, url string) (model.EvidenceSource, bool) {
	for _, s := range evidence.Sources {
		if s.URL == url {
			return s, true
		}
	}
	return model.EvidenceSource{}, false
}

func fallbackExplanation(label model.VerdictLabel) string {
	return "We checked this claim and found it to be " + strings.ToLower(string(label)) + "."
}

var urlPattern = regexp.MustCompile(`https?://[^\s\)\]]+`)

// extractURLs pulls deduplicated URLs out of free text.
func extractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)

	seen := make(map[string]bool)
	var unique []string
	for _, url := range matches {
		url = strings.TrimRight(url, ".,;:!?")
		if !seen[url] {
			seen[url] = true
			unique = append(unique, url)
		}
	}
	return unique
}

// truncate cuts s to at most max bytes, backing up to a rune boundary so
// a multi-byte character is never split.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
