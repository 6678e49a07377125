package embed

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestIndex_AddAndSearch(t *testing.T) {
	ix := NewIndex(3)

	vectors := map[string][]float32{
		"a": {1, 0, 0},
		"b": {0.9, 0.1, 0},
		"c": {0, 0, 1},
	}
	for id, vec := range vectors {
		if err := ix.Add(id, vec); err != nil {
			t.Fatalf("Add(%s) failed: %v", id, err)
		}
	}
	if ix.Len() != 3 {
		t.Fatalf("expected 3 vectors, got %d", ix.Len())
	}

	matches, err := ix.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("expected matches")
	}
	if matches[0].ClaimID != "a" {
		t.Errorf("expected nearest a, got %s", matches[0].ClaimID)
	}
	if matches[0].Similarity < 0.99 {
		t.Errorf("expected similarity ~1 for identical vector, got %v", matches[0].Similarity)
	}
}

func TestIndex_DimensionMismatch(t *testing.T) {
	ix := NewIndex(3)

	if err := ix.Add("a", []float32{1, 0}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch on add, got %v", err)
	}
	if _, err := ix.Search([]float32{1, 0, 0, 0}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch on search, got %v", err)
	}
}

func TestIndex_ReplaceVector(t *testing.T) {
	ix := NewIndex(2)
	if err := ix.Add("a", []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := ix.Add("a", []float32{0, 1}); err != nil {
		t.Fatal(err)
	}
	if ix.Len() != 1 {
		t.Errorf("re-add must replace, got %d vectors", ix.Len())
	}
	vec, ok := ix.Vector("a")
	if !ok || vec[1] != 1 {
		t.Errorf("expected replaced vector, got %v", vec)
	}
}

func TestIndex_SearchEmpty(t *testing.T) {
	ix := NewIndex(2)
	matches, err := ix.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches from empty index, got %d", len(matches))
	}
}

func TestIndex_SaveAndLoad(t *testing.T) {
	ix := NewIndex(3)
	_ = ix.Add("a", []float32{1, 0, 0})
	_ = ix.Add("b", []float32{0, 1, 0})

	path := filepath.Join(t.TempDir(), "index.json")
	if err := ix.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadIndex(path, 3)
	if err != nil {
		t.Fatalf("LoadIndex failed: %v", err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("expected 2 vectors after load, got %d", loaded.Len())
	}

	matches, err := loaded.Search([]float32{1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 1 || matches[0].ClaimID != "a" {
		t.Errorf("unexpected search result after load: %+v", matches)
	}
}

func TestIndex_LoadRejectsWrongDims(t *testing.T) {
	ix := NewIndex(3)
	_ = ix.Add("a", []float32{1, 0, 0})

	path := filepath.Join(t.TempDir(), "index.json")
	if err := ix.Save(path); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadIndex(path, 8); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSimilarity(t *testing.T) {
	cases := []struct {
		distance float32
		want     float64
	}{
		{0, 1},
		{1, 0.5},
		{2, 0},
		{2.5, 0}, // clamped
	}
	for _, tc := range cases {
		if got := Similarity(tc.distance); got != tc.want {
			t.Errorf("Similarity(%v) = %v, want %v", tc.distance, got, tc.want)
		}
	}
}
