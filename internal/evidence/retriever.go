package evidence

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/crisisguard/crisisguard/internal/logging"
	"github.com/crisisguard/crisisguard/internal/model"
	"github.com/crisisguard/crisisguard/internal/worker"
)

// Retriever fans out to the configured evidence sources, then merges,
// deduplicates, ranks, and caps the results. Individual source failures
// are skipped; only a fully-failed fan-out yields an empty set, which the
// reasoner must treat as Unverified.
type Retriever struct {
	sources    []Source
	fetcher    *PageFetcher
	limiter    *worker.Limiter
	maxSources int
	timeout    time.Duration
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithPageFetcher enables excerpt fetching for sources that returned none.
func WithPageFetcher(f *PageFetcher) Option {
	return func(r *Retriever) { r.fetcher = f }
}

// NewRetriever creates a retriever over the given sources.
func NewRetriever(sources []Source, limiter *worker.Limiter, maxSources int, timeout time.Duration, opts ...Option) *Retriever {
	if maxSources <= 0 {
		maxSources = 10
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	r := &Retriever{
		sources:    sources,
		limiter:    limiter,
		maxSources: maxSources,
		timeout:    timeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve queries all configured sources concurrently and returns the
// ranked evidence set for the claim. The whole fan-out is bounded by the
// retriever timeout; sources that do not answer in time are treated as
// failed.
func (r *Retriever) Retrieve(ctx context.Context, claim *model.Claim) *model.EvidenceSet {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	queries := BuildQueries(claim.ClaimText, claim.Entities)

	var (
		mu         sync.Mutex
		candidates []model.EvidenceSource
		totalFound int
		wg         sync.WaitGroup
	)

	for _, src := range r.sources {
		if !src.Configured() {
			logging.Debug("evidence source not configured, skipping", "source", src.Name())
			continue
		}

		wg.Add(1)
		go func(src Source) {
			defer wg.Done()

			query := queryFor(src, claim.ClaimText, queries)
			found, err := src.Search(ctx, query)
			if err != nil {
				logging.Warn("evidence source failed", "source", src.Name(), "error", err)
				return
			}

			mu.Lock()
			candidates = append(candidates, found...)
			totalFound += len(found)
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	merged := dedupe(candidates)
	rank(merged)
	if len(merged) > r.maxSources {
		merged = merged[:r.maxSources]
	}

	r.fillExcerpts(ctx, merged)

	return &model.EvidenceSet{
		ClaimID:     claim.ID,
		Sources:     merged,
		TotalFound:  totalFound,
		Queries:     queries,
		RetrievedAt: time.Now().UTC(),
	}
}

// queryFor picks the query variant a source sees: fact-check services get
// the fact-check phrasing, everything else the raw claim text. BuildQueries
// always puts the quoted fact-check variant last.
func queryFor(src Source, claimText string, queries []string) string {
	if src.Name() == "google-factcheck" && len(queries) > 0 {
		return queries[len(queries)-1]
	}
	return claimText
}

// fillExcerpts fetches page text for ranked sources missing an excerpt.
func (r *Retriever) fillExcerpts(ctx context.Context, sources []model.EvidenceSource) {
	if r.fetcher == nil {
		return
	}
	for i := range sources {
		if sources[i].Excerpt != "" {
			continue
		}
		if err := r.limiter.Wait(ctx, sources[i].URL); err != nil {
			return
		}
		text, err := r.fetcher.Excerpt(ctx, sources[i].URL, 500)
		if err != nil {
			logging.Debug("excerpt fetch failed", "url", sources[i].URL, "error", err)
			continue
		}
		sources[i].Excerpt = text
	}
}

// dedupe merges candidates sharing a normalized URL, keeping the highest
// reliability.
func dedupe(candidates []model.EvidenceSource) []model.EvidenceSource {
	byURL := make(map[string]model.EvidenceSource)
	order := make([]string, 0, len(candidates))

	for _, c := range candidates {
		key := normalizeURL(c.URL)
		if key == "" {
			continue
		}
		existing, seen := byURL[key]
		if !seen {
			byURL[key] = c
			order = append(order, key)
			continue
		}
		if c.Reliability > existing.Reliability {
			byURL[key] = c
		}
	}

	out := make([]model.EvidenceSource, 0, len(order))
	for _, key := range order {
		out = append(out, byURL[key])
	}
	return out
}

// rank sorts descending by reliability, then spreads ties so the same
// domain does not repeat consecutively.
func rank(sources []model.EvidenceSource) {
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Reliability > sources[j].Reliability
	})

	for i := 1; i < len(sources); i++ {
		if sources[i].Domain != sources[i-1].Domain {
			continue
		}
		// Look ahead within the same reliability run for a different domain.
		for j := i + 1; j < len(sources) && sources[j].Reliability == sources[i].Reliability; j++ {
			if sources[j].Domain != sources[i-1].Domain {
				sources[i], sources[j] = sources[j], sources[i]
				break
			}
		}
	}
}

// normalizeURL canonicalizes a URL for deduplication: lowercased host,
// no fragment, no trailing slash.
func normalizeURL(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return ""
	}
	parsed.Fragment = ""
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	return parsed.String()
}
