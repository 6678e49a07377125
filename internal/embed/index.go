package embed

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// ErrDimensionMismatch is returned when a vector does not match the index
// dimensionality. Incremental add cannot recover from this; a full reindex
// with a new index version is required.
var ErrDimensionMismatch = errors.New("vector dimensionality does not match index")

// Match is one nearest-neighbor result.
type Match struct {
	ClaimID    string
	Distance   float32 // cosine distance, 0-2
	Similarity float64 // 1 - distance/2, clamped to [0,1]
}

// Index is a searchable vector index over claim embeddings. Adds are safe
// under concurrent searches: readers see either the pre- or post-insertion
// state. Cosine distance is used at both insert and query time.
type Index struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[string]
	vectors map[string][]float32
	dims    int
	version int
}

// NewIndex creates an index for vectors of the given dimensionality.
func NewIndex(dims int) *Index {
	return &Index{
		graph:   newGraph(),
		vectors: make(map[string][]float32),
		dims:    dims,
		version: 1,
	}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 32
	return g
}

// Add inserts a claim vector. Re-adding an existing claim replaces its
// vector.
func (ix *Index) Add(claimID string, vec []float32) error {
	if len(vec) != ix.dims {
		return fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(vec), ix.dims)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.vectors[claimID]; ok {
		ix.graph.Delete(claimID)
	}
	ix.graph.Add(hnsw.MakeNode(claimID, vec))
	ix.vectors[claimID] = vec
	return nil
}

// Search returns up to k nearest claims by cosine distance, closest first.
func (ix *Index) Search(vec []float32, k int) ([]Match, error) {
	if len(vec) != ix.dims {
		return nil, fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(vec), ix.dims)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.graph.Len() == 0 {
		return nil, nil
	}

	neighbors := ix.graph.Search(vec, k)
	matches := make([]Match, 0, len(neighbors))
	for _, n := range neighbors {
		if len(n.Value) != len(vec) {
			continue
		}
		d := hnsw.CosineDistance(vec, n.Value)
		matches = append(matches, Match{
			ClaimID:    n.Key,
			Distance:   d,
			Similarity: Similarity(d),
		})
	}
	return matches, nil
}

// Vector returns the stored vector for a claim, if indexed.
func (ix *Index) Vector(claimID string) ([]float32, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	vec, ok := ix.vectors[claimID]
	return vec, ok
}

// Len returns the number of indexed vectors.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.graph.Len()
}

// Dimensions returns the index dimensionality.
func (ix *Index) Dimensions() int {
	return ix.dims
}

// Similarity converts a cosine distance (0-2) to a score in [0,1].
func Similarity(distance float32) float64 {
	s := 1.0 - float64(distance)/2.0
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// snapshot is the on-disk index format. Vectors are stored raw and the
// graph is rebuilt on load, so the HNSW internals never leak into the file.
type snapshot struct {
	Version int                  `json:"version"`
	Dims    int                  `json:"dims"`
	Vectors map[string][]float32 `json:"vectors"`
}

// Save writes the index to path.
func (ix *Index) Save(path string) error {
	ix.mu.RLock()
	snap := snapshot{
		Version: ix.version,
		Dims:    ix.dims,
		Vectors: make(map[string][]float32, len(ix.vectors)),
	}
	for id, vec := range ix.vectors {
		snap.Vectors[id] = vec
	}
	ix.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadIndex reads an index from path. A snapshot with a different
// dimensionality than dims is rejected: the caller must run a full reindex
// instead of loading stale vectors.
func LoadIndex(path string, dims int) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}
	if snap.Dims != dims {
		return nil, fmt.Errorf("%w: snapshot has %d, expected %d", ErrDimensionMismatch, snap.Dims, dims)
	}

	ix := NewIndex(dims)
	ix.version = snap.Version
	for id, vec := range snap.Vectors {
		if len(vec) != dims {
			continue
		}
		ix.graph.Add(hnsw.MakeNode(id, vec))
		ix.vectors[id] = vec
	}
	return ix, nil
}
