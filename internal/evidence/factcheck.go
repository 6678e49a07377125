package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/crisisguard/crisisguard/internal/model"
	"github.com/crisisguard/crisisguard/internal/reliability"
	"github.com/crisisguard/crisisguard/internal/worker"
)

const factCheckEndpoint = "https://factchecktools.googleapis.com/v1alpha1/claims:search"

// FactCheckSource queries the Google Fact Check Tools claim search API.
type FactCheckSource struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	limiter    *worker.Limiter
	reputation *reliability.Lookup
}

// NewFactCheckSource creates a fact-check source.
func NewFactCheckSource(apiKey string, limiter *worker.Limiter, reputation *reliability.Lookup, timeout time.Duration) *FactCheckSource {
	return &FactCheckSource{
		apiKey:     apiKey,
		endpoint:   factCheckEndpoint,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		reputation: reputation,
	}
}

// Name identifies the source.
func (s *FactCheckSource) Name() string { return "google-factcheck" }

// Configured reports whether an API key is present.
func (s *FactCheckSource) Configured() bool { return s.apiKey != "" }

type factCheckResponse struct {
	Claims []struct {
		Text        string `json:"text"`
		ClaimReview []struct {
			URL        string `json:"url"`
			Title      string `json:"title"`
			ReviewDate string `json:"reviewDate"`
			Publisher  struct {
				Site string `json:"site"`
			} `json:"publisher"`
		} `json:"claimReview"`
	} `json:"claims"`
}

// Search queries the fact-check API for reviews of the claim.
func (s *FactCheckSource) Search(ctx context.Context, query string) ([]model.EvidenceSource, error) {
	if err := s.limiter.Wait(ctx, s.endpoint); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("key", s.apiKey)
	params.Set("languageCode", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("factcheck request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("factcheck API: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed factCheckResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	var sources []model.EvidenceSource
	for i, claim := range parsed.Claims {
		if i >= 5 {
			break
		}
		excerpt := claim.Text
		if len(excerpt) > 500 {
			excerpt = excerpt[:500]
		}
		for _, review := range claim.ClaimReview {
			if review.URL == "" {
				continue
			}
			title := review.Title
			if title == "" {
				title = "Fact Check"
			}
			src := model.EvidenceSource{
				URL:         review.URL,
				Title:       title,
				Excerpt:     excerpt,
				Domain:      hostOf(review.URL),
				Reliability: s.reputation.FactCheckScore(),
				SourceType:  "fact-check",
			}
			if t, err := time.Parse("2006-01-02T15:04:05Z", review.ReviewDate); err == nil {
				src.PublishedAt = t
			}
			sources = append(sources, src)
		}
	}
	return sources, nil
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}
