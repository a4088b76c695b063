// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package vector implements a flat on-disk embedding store with exact
// brute-force cosine search. Vectors live in one contiguous float32 buffer;
// a small insertion-ordered mapping ties document IDs to buffer offsets.
// Search is O(n·dim), which is fine for the corpus sizes granary handles
// (thousands of transcripts); the whole file pair is rewritten once per
// sync pass rather than maintained incrementally.
package vector

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/pdiddy/granary/internal/storage"
)

// Mapping ties one document to the offset in the flat buffer where its
// vector begins. Offsets are strictly increasing in insertion order:
// mapping[i+1].Offset = mapping[i].Offset + dim.
type Mapping struct {
	DocID  string `json:"doc_id"`
	Offset int    `json:"offset"`
}

// Store holds embeddings of one fixed dimension.
type Store struct {
	dim     int
	vectors []float32
	mapping []Mapping
}

// Result is one search hit.
type Result struct {
	DocID string
	Score float32
}

// New returns an empty store fixed to dim.
func New(dim int) *Store {
	return &Store{dim: dim}
}

// Dim returns the store's fixed vector dimension.
func (s *Store) Dim() int { return s.dim }

// Len returns the number of stored vectors.
func (s *Store) Len() int { return len(s.mapping) }

// Has reports whether a vector was stored under docID.
func (s *Store) Has(docID string) bool {
	for _, m := range s.mapping {
		if m.DocID == docID {
			return true
		}
	}
	return false
}

// Add appends a vector for docID. It fails on dimension mismatch and never
// truncates or pads. Add does not check for duplicate IDs: re-adding an ID
// appends a second independent entry, so writers guard with Has first (the
// store is rewritten wholesale each pass, which keeps append-only cheap).
func (s *Store) Add(docID string, vec []float32) error {
	if len(vec) != s.dim {
		return fmt.Errorf("vector dimension mismatch for %s: expected %d, got %d", docID, s.dim, len(vec))
	}
	s.mapping = append(s.mapping, Mapping{DocID: docID, Offset: len(s.vectors)})
	s.vectors = append(s.vectors, vec...)
	return nil
}

// Search scores every stored vector against query by cosine similarity and
// returns the top k hits in descending score order (fewer when the store
// holds fewer than k vectors). Tie order between equal scores is
// unspecified.
func (s *Store) Search(query []float32, k int) ([]Result, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("query vector dimension mismatch: expected %d, got %d", s.dim, len(query))
	}

	results := make([]Result, 0, len(s.mapping))
	for _, m := range s.mapping {
		doc := s.vectors[m.Offset : m.Offset+s.dim]
		results = append(results, Result{DocID: m.DocID, Score: cosineSimilarity(query, doc)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if k >= 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// storeMeta is the JSON shape of the sidecar metadata file.
type storeMeta struct {
	Dim     int       `json:"dim"`
	Mapping []Mapping `json:"mapping"`
}

// Save writes the store as two sibling artifacts: <path>.meta.json holding
// dim and the mapping, and <path>.vectors.bin holding every float32 as
// 4-byte little-endian values with no header. Both writes are atomic.
func (s *Store) Save(path string) error {
	meta, err := json.Marshal(storeMeta{Dim: s.dim, Mapping: s.mapping})
	if err != nil {
		return fmt.Errorf("marshaling vector metadata: %w", err)
	}
	if err := storage.WriteAtomic(path+".meta.json", meta); err != nil {
		return fmt.Errorf("writing vector metadata: %w", err)
	}

	raw := make([]byte, 4*len(s.vectors))
	for i, f := range s.vectors {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(f))
	}
	if err := storage.WriteAtomic(path+".vectors.bin", raw); err != nil {
		return fmt.Errorf("writing vectors: %w", err)
	}
	return nil
}

// Load reads the file pair written by Save. Dim and mapping are trusted as
// written; the only validation is that the raw file length is a whole
// number of float32s.
func Load(path string) (*Store, error) {
	metaData, err := os.ReadFile(path + ".meta.json")
	if err != nil {
		return nil, fmt.Errorf("reading vector metadata: %w", err)
	}
	var meta storeMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, fmt.Errorf("parsing vector metadata: %w", err)
	}

	raw, err := os.ReadFile(path + ".vectors.bin")
	if err != nil {
		return nil, fmt.Errorf("reading vectors: %w", err)
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("invalid vector data: %d bytes is not a whole number of float32s", len(raw))
	}

	vectors := make([]float32, len(raw)/4)
	for i := range vectors {
		vectors[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}

	return &Store{
		dim:     meta.Dim,
		vectors: vectors,
		mapping: meta.Mapping,
	}, nil
}

// LoadOrNew loads the store at path, or returns a fresh store of dimension
// dim when no store has been saved yet.
func LoadOrNew(path string, dim int) (*Store, error) {
	if _, err := os.Stat(path + ".meta.json"); os.IsNotExist(err) {
		return New(dim), nil
	}
	return Load(path)
}

// cosineSimilarity returns dot(a,b) / (|a|·|b|), or 0 when either vector
// has zero norm (never NaN).
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
