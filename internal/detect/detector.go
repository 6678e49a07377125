// Package detect implements claim extraction from raw submissions.
package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/crisisguard/crisisguard/internal/evidence"
	"github.com/crisisguard/crisisguard/internal/llm"
	"github.com/crisisguard/crisisguard/internal/logging"
	"github.com/crisisguard/crisisguard/internal/model"
)

// DetectionFailure wraps an extraction-capability error. The caller decides
// whether to retry; the detector itself never does.
type DetectionFailure struct {
	Err error
}

func (e *DetectionFailure) Error() string {
	return fmt.Sprintf("claim detection failed: %v", e.Err)
}

func (e *DetectionFailure) Unwrap() error {
	return e.Err
}

// Detector extracts verifiable claims from text. It is a pure function
// over the reasoning capability: no side effects, no persistence.
type Detector struct {
	provider        llm.Provider
	maxInputChars   int
	confidenceFloor float64
}

// NewDetector creates a detector.
func NewDetector(provider llm.Provider, cfg model.DetectionConfig) *Detector {
	maxChars := cfg.MaxInputChars
	if maxChars <= 0 {
		maxChars = 8000
	}
	floor := cfg.ConfidenceFloor
	if floor <= 0 {
		floor = 0.5
	}

	return &Detector{
		provider:        provider,
		maxInputChars:   maxChars,
		confidenceFloor: floor,
	}
}

type detectionPayload struct {
	IsClaim    bool           `json:"is_claim"`
	ClaimText  string         `json:"claim_text"`
	Entities   []model.Entity `json:"entities"`
	ClaimType  string         `json:"claim_type"`
	Confidence float64        `json:"confidence"`
	Reasoning  string         `json:"reasoning"`
}

// Extract determines whether text contains a verifiable claim. Detections
// below the confidence floor are reported as non-claims so low-quality
// extractions never pollute storage.
func (d *Detector) Extract(ctx context.Context, rawText string) (*model.DetectionResult, error) {
	text := Sanitize(rawText)
	if text == "" {
		return &model.DetectionResult{IsClaim: false}, nil
	}
	if len(text) > d.maxInputChars {
		cut := d.maxInputChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	resp, err := d.provider.Complete(ctx, llm.CompletionRequest{
		System:   llm.ClaimDetectionSystem,
		Prompt:   llm.BuildClaimDetectionPrompt(text),
		JSONMode: true,
	})
	if err != nil {
		return nil, &DetectionFailure{Err: err}
	}

	var payload detectionPayload
	if err := json.Unmarshal([]byte(resp.Content), &payload); err != nil {
		return nil, &DetectionFailure{Err: fmt.Errorf("parse detection response: %w", err)}
	}

	result := &model.DetectionResult{
		IsClaim:    payload.IsClaim,
		ClaimText:  strings.TrimSpace(payload.ClaimText),
		ClaimType:  model.ParseClaimType(payload.ClaimType),
		Entities:   payload.Entities,
		Confidence: model.ClampConfidence(payload.Confidence),
		Reasoning:  payload.Reasoning,
	}

	if result.IsClaim && result.ClaimText == "" {
		result.IsClaim = false
	}
	if result.IsClaim && result.Confidence < d.confidenceFloor {
		logging.Debug("detection below confidence floor",
			"confidence", result.Confidence, "floor", d.confidenceFloor)
		result.IsClaim = false
	}

	return result, nil
}

// Sanitize strips markup from a submission. Submissions copied from web
// pages arrive as HTML fragments; the detector only wants the visible text.
func Sanitize(rawText string) string {
	text := strings.TrimSpace(rawText)
	if !strings.Contains(text, "<") || !strings.Contains(text, ">") {
		return text
	}

	doc, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return text
	}
	return evidence.VisibleText(doc)
}
