package evidence

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/net/html"
)

const maxExcerptBytes = 2 << 20

// PageFetcher pulls an excerpt directly from an evidence URL when the
// search API returned none. Fetches honor robots.txt and the shared
// per-domain limiter via the caller.
type PageFetcher struct {
	httpClient *http.Client
	userAgent  string

	mu    sync.RWMutex
	cache map[string]*robotstxt.RobotsData // host -> parsed robots.txt
}

// NewPageFetcher creates a page fetcher.
func NewPageFetcher(userAgent string, timeout time.Duration) *PageFetcher {
	return &PageFetcher{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		cache:      make(map[string]*robotstxt.RobotsData),
	}
}

// Excerpt fetches a page and returns its visible text, truncated. Returns
// an empty string without error when robots.txt disallows the fetch.
func (f *PageFetcher) Excerpt(ctx context.Context, rawURL string, maxChars int) (string, error) {
	allowed, err := f.canFetch(ctx, rawURL)
	if err != nil || !allowed {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxExcerptBytes))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	text := VisibleText(doc)
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	return text, nil
}

// canFetch checks robots.txt compliance, caching per host. If robots.txt
// is unreachable the fetch is allowed.
func (f *PageFetcher) canFetch(ctx context.Context, rawURL string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("parse URL: %w", err)
	}

	f.mu.RLock()
	data, ok := f.cache[parsed.Host]
	f.mu.RUnlock()

	if !ok {
		data = f.fetchRobots(ctx, parsed)
		f.mu.Lock()
		f.cache[parsed.Host] = data
		f.mu.Unlock()
	}

	if data == nil {
		return true, nil
	}
	return data.TestAgent(parsed.Path, f.userAgent), nil
}

func (f *PageFetcher) fetchRobots(ctx context.Context, page *url.URL) *robotstxt.RobotsData {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", page.Scheme, page.Host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data
}

// VisibleText extracts text nodes from an HTML document, skipping script
// and style content.
func VisibleText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(trimmed)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
