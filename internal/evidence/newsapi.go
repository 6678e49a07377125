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

const newsAPIEndpoint = "https://newsapi.org/v2/everything"

// NewsSource queries NewsAPI for recent coverage of a claim.
type NewsSource struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	limiter    *worker.Limiter
	reputation *reliability.Lookup
}

// NewNewsSource creates a NewsAPI source.
func NewNewsSource(apiKey string, limiter *worker.Limiter, reputation *reliability.Lookup, timeout time.Duration) *NewsSource {
	return &NewsSource{
		apiKey:     apiKey,
		endpoint:   newsAPIEndpoint,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		reputation: reputation,
	}
}

// Name identifies the source.
func (s *NewsSource) Name() string { return "newsapi" }

// Configured reports whether an API key is present.
func (s *NewsSource) Configured() bool { return s.apiKey != "" }

type newsAPIResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// Search queries NewsAPI sorted by relevancy.
func (s *NewsSource) Search(ctx context.Context, query string) ([]model.EvidenceSource, error) {
	if err := s.limiter.Wait(ctx, s.endpoint); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("apiKey", s.apiKey)
	params.Set("language", "en")
	params.Set("sortBy", "relevancy")
	params.Set("pageSize", "10")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed newsAPIResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if parsed.Status != "ok" {
		return nil, fmt.Errorf("newsapi: status %q", parsed.Status)
	}

	var sources []model.EvidenceSource
	for _, article := range parsed.Articles {
		if article.URL == "" {
			continue
		}
		excerpt := article.Description
		if len(excerpt) > 500 {
			excerpt = excerpt[:500]
		}
		domain := hostOf(article.URL)
		src := model.EvidenceSource{
			URL:         article.URL,
			Title:       article.Title,
			Excerpt:     excerpt,
			Domain:      domain,
			Reliability: s.reputation.Score(domain),
			SourceType:  "article",
		}
		if t, err := time.Parse(time.RFC3339, article.PublishedAt); err == nil {
			src.PublishedAt = t
		}
		sources = append(sources, src)
	}
	return sources, nil
}
