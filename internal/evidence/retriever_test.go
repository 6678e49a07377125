package evidence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crisisguard/crisisguard/internal/model"
	"github.com/crisisguard/crisisguard/internal/worker"
)

type fakeSource struct {
	name       string
	results    []model.EvidenceSource
	err        error
	configured bool
	lastQuery  string
}

func (s *fakeSource) Name() string     { return s.name }
func (s *fakeSource) Configured() bool { return s.configured }
func (s *fakeSource) Search(ctx context.Context, query string) ([]model.EvidenceSource, error) {
	s.lastQuery = query
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func testRetrieverClaim() *model.Claim {
	return &model.Claim{
		ID:        "claim-1",
		ClaimText: "5G towers spread viruses",
		Entities:  []model.Entity{{Text: "5G", Type: "other"}},
	}
}

func newTestRetriever(sources []Source, maxSources int) *Retriever {
	return NewRetriever(sources, worker.NewLimiter(100, 10), maxSources, 5*time.Second)
}

func TestRetriever_MergesAndRanks(t *testing.T) {
	sources := []Source{
		&fakeSource{name: "a", configured: true, results: []model.EvidenceSource{
			{URL: "https://blog.example/post", Domain: "blog.example", Reliability: 0.5},
			{URL: "https://who.int/5g", Domain: "who.int", Reliability: 0.95},
		}},
		&fakeSource{name: "b", configured: true, results: []model.EvidenceSource{
			{URL: "https://reuters.com/5g", Domain: "reuters.com", Reliability: 0.95},
		}},
	}

	set := newTestRetriever(sources, 10).Retrieve(context.Background(), testRetrieverClaim())
	if len(set.Sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(set.Sources))
	}
	if set.Sources[0].Reliability < set.Sources[2].Reliability {
		t.Errorf("expected descending reliability, got %+v", set.Sources)
	}
	if set.TotalFound != 3 {
		t.Errorf("expected total_found 3, got %d", set.TotalFound)
	}
}

func TestRetriever_DedupesKeepingHighestReliability(t *testing.T) {
	sources := []Source{
		&fakeSource{name: "a", configured: true, results: []model.EvidenceSource{
			{URL: "https://who.int/5g/", Domain: "who.int", Reliability: 0.6, SourceType: "article"},
		}},
		&fakeSource{name: "b", configured: true, results: []model.EvidenceSource{
			{URL: "https://who.int/5g", Domain: "who.int", Reliability: 0.95, SourceType: "fact-check"},
		}},
	}

	set := newTestRetriever(sources, 10).Retrieve(context.Background(), testRetrieverClaim())
	if len(set.Sources) != 1 {
		t.Fatalf("expected 1 deduplicated source, got %d", len(set.Sources))
	}
	if set.Sources[0].Reliability != 0.95 {
		t.Errorf("expected highest reliability kept, got %v", set.Sources[0].Reliability)
	}
}

func TestRetriever_PartialFailure(t *testing.T) {
	sources := []Source{
		&fakeSource{name: "down", configured: true, err: errors.New("timeout")},
		&fakeSource{name: "up", configured: true, results: []model.EvidenceSource{
			{URL: "https://snopes.com/5g", Domain: "snopes.com", Reliability: 0.95},
		}},
	}

	set := newTestRetriever(sources, 10).Retrieve(context.Background(), testRetrieverClaim())
	if len(set.Sources) != 1 {
		t.Fatalf("expected surviving source, got %d", len(set.Sources))
	}
}

func TestRetriever_SkipsUnconfigured(t *testing.T) {
	sources := []Source{
		&fakeSource{name: "nokey", configured: false, results: []model.EvidenceSource{
			{URL: "https://x.example/a", Domain: "x.example", Reliability: 0.9},
		}},
	}

	set := newTestRetriever(sources, 10).Retrieve(context.Background(), testRetrieverClaim())
	if !set.Empty() {
		t.Errorf("unconfigured source must be excluded, got %d sources", len(set.Sources))
	}
}

func TestRetriever_CapsResults(t *testing.T) {
	var results []model.EvidenceSource
	for i := 0; i < 20; i++ {
		results = append(results, model.EvidenceSource{
			URL:         "https://site" + string(rune('a'+i)) + ".example/x",
			Domain:      "site" + string(rune('a'+i)) + ".example",
			Reliability: 0.5,
		})
	}
	sources := []Source{&fakeSource{name: "a", configured: true, results: results}}

	set := newTestRetriever(sources, 5).Retrieve(context.Background(), testRetrieverClaim())
	if len(set.Sources) != 5 {
		t.Errorf("expected cap at 5, got %d", len(set.Sources))
	}
}

func TestRetriever_FactCheckQueryVariant(t *testing.T) {
	fc := &fakeSource{name: "google-factcheck", configured: true}
	news := &fakeSource{name: "newsapi", configured: true}

	newTestRetriever([]Source{fc, news}, 10).Retrieve(context.Background(), testRetrieverClaim())

	if want := `"5G towers spread viruses" fact check`; fc.lastQuery != want {
		t.Errorf("fact-check source got %q, want %q", fc.lastQuery, want)
	}
	if want := "5G towers spread viruses"; news.lastQuery != want {
		t.Errorf("news source got %q, want %q", news.lastQuery, want)
	}
}

func TestRank_DomainDiversity(t *testing.T) {
	sources := []model.EvidenceSource{
		{URL: "https://a.com/1", Domain: "a.com", Reliability: 0.9},
		{URL: "https://a.com/2", Domain: "a.com", Reliability: 0.9},
		{URL: "https://b.com/1", Domain: "b.com", Reliability: 0.9},
	}
	rank(sources)
	if sources[0].Domain == sources[1].Domain {
		t.Errorf("expected consecutive domains spread within equal reliability: %+v", sources)
	}
}

func TestNormalizeURL(t *testing.T) {
	a := normalizeURL("https://WHO.int/5g/")
	b := normalizeURL("https://who.int/5g#section")
	if a != b {
		t.Errorf("expected %q == %q", a, b)
	}
	if normalizeURL("not a url") != "" {
		t.Errorf("expected empty key for unparseable URL")
	}
}

func TestBuildQueries(t *testing.T) {
	queries := BuildQueries("X causes Y", []model.Entity{{Text: "X"}, {Text: "Y"}})
	if len(queries) != 3 {
		t.Fatalf("expected 3 queries, got %d: %v", len(queries), queries)
	}
	if queries[0] != "X causes Y" {
		t.Errorf("first query must be the claim text, got %q", queries[0])
	}
	if queries[1] != "X Y fact check" {
		t.Errorf("unexpected entity query: %q", queries[1])
	}
}
