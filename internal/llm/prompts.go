package llm

import (
	"fmt"
	"strings"

	"github.com/crisisguard/crisisguard/internal/model"
)

// Prompt construction for the three reasoning tasks. All prompts demand
// JSON-only output; callers parse and validate the structure.

const (
	ClaimDetectionSystem = "You are an expert claim detection AI. Output only valid JSON."

	FactCheckerSystem = "You are CrisisGuard AI, an expert fact-checking system. " +
		"You must output ONLY valid JSON. Never fabricate sources. " +
		"Base verdicts strictly on provided evidence."

	ClusterLabelSystem = "You label groups of related claims. Output only valid JSON."
)

// BuildClaimDetectionPrompt asks whether text contains a verifiable claim.
func BuildClaimDetectionPrompt(text string) string {
	return fmt.Sprintf(`Analyze the given text and determine if it contains a factual claim that can be verified.

A CLAIM is a statement that:
- Asserts a fact about the world
- Can be proven true or false with evidence
- Is not purely opinion, speculation, or question

NOT CLAIMS:
- Pure opinions ("I think chocolate is the best")
- Questions ("Is climate change real?")
- Commands or requests
- Purely descriptive personal experiences

ANALYZE THIS TEXT:
%s

OUTPUT FORMAT (JSON only, no extra text):
{
  "is_claim": true or false,
  "claim_text": "extracted claim if found, or empty string",
  "entities": [
    {"text": "entity name", "type": "person/organization/location/date/number/other"}
  ],
  "claim_type": "health/politics/general/science/business",
  "confidence": 0.0-1.0,
  "reasoning": "brief explanation"
}

CRITICAL RULES:
- Output ONLY valid JSON
- If no claim exists, set is_claim to false
- Extract key entities (people, orgs, locations, dates)
- Classify claim type accurately
- Confidence = how certain this is a verifiable claim

Begin analysis:`, text)
}

// BuildFactCheckPrompt asks for a verdict over a claim and its evidence.
func BuildFactCheckPrompt(claimText string, evidence *model.EvidenceSet) string {
	return fmt.Sprintf(`Analyze the claim against provided evidence and produce an accurate, well-reasoned verdict.

CLAIM TO VERIFY:
%s

EVIDENCE RETRIEVED:
%s

INSTRUCTIONS:
1. Read all evidence carefully
2. Cross-reference multiple sources
3. Consider source reliability
4. Reach a verdict based ONLY on evidence (never speculate)

VERDICT OPTIONS:
- "True": Claim is accurate and well-supported
- "False": Claim is demonstrably incorrect
- "Misleading": Contains truth but lacks context or exaggerates
- "Partially True": Some elements true, others false/unverified
- "Unverified": Insufficient evidence to determine accuracy

OUTPUT FORMAT (JSON only):
{
  "verdict": "True/False/Misleading/Partially True/Unverified",
  "confidence": 0.0-1.0,
  "reasoning": "Detailed explanation of verdict (200-500 words). Cite specific evidence URLs.",
  "sources": [
    {"link": "actual URL from evidence", "excerpt": "relevant quote", "title": "source title"}
  ],
  "explain_like_12": "Simple explanation suitable for a 12-year-old (50-150 words)",
  "harm_score": 0-100,
  "tags": ["relevant", "topic", "tags"]
}

HARM SCORE (0-100):
- 0-20: Harmless or trivial
- 21-40: Minor misinformation
- 41-60: Moderate potential for harm
- 61-80: Significant harm potential (health, safety, democracy)
- 81-100: Severe/crisis-level harm (public health emergency, violence incitement)

CRITICAL SAFETY RULES:
- NEVER fabricate sources or citations
- ONLY cite URLs from the evidence provided
- If evidence insufficient, verdict = "Unverified"

Begin fact-check:`, claimText, FormatEvidence(evidence))
}

// BuildCitationRetryPrompt re-asks for a verdict after a citation violation,
// restating the allowed URL set explicitly.
func BuildCitationRetryPrompt(claimText string, evidence *model.EvidenceSet) string {
	var allowed strings.Builder
	for _, u := range evidence.URLs() {
		allowed.WriteString("\n- ")
		allowed.WriteString(u)
	}
	return fmt.Sprintf(`Your previous answer cited a URL that is NOT in the evidence set. That is not allowed.

You MUST ONLY cite URLs from this exact list:%s

Do not reference any other URL anywhere in your answer, including the reasoning text.

%s`, allowed.String(), BuildFactCheckPrompt(claimText, evidence))
}

// BuildClusterLabelPrompt asks for a short label for a group of claims.
func BuildClusterLabelPrompt(claimTexts []string) string {
	var claims strings.Builder
	for _, c := range claimTexts {
		claims.WriteString("- ")
		claims.WriteString(c)
		claims.WriteString("\n")
	}
	return fmt.Sprintf(`These claims are grouped together:
%s
Generate:
1. A concise label (3-7 words) that captures the common theme
2. Category classification

OUTPUT FORMAT (JSON only):
{
  "label": "Concise cluster label",
  "category": "health/politics/science/business/general"
}

Analyze:`, claims.String())
}

// FormatEvidence renders an evidence set for inclusion in a prompt.
func FormatEvidence(evidence *model.EvidenceSet) string {
	if evidence == nil || evidence.Empty() {
		return "No evidence sources available."
	}

	var b strings.Builder
	for i, s := range evidence.Sources {
		excerpt := s.Excerpt
		if len(excerpt) > 500 {
			excerpt = excerpt[:500]
		}
		fmt.Fprintf(&b, `
SOURCE %d:
Title: %s
URL: %s
Domain: %s
Reliability: %.2f
Excerpt: %s
---
`, i+1, s.Title, s.URL, s.Domain, s.Reliability, excerpt)
	}
	return b.String()
}
