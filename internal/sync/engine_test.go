// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/granary/internal/vector"
	"github.com/pdiddy/granary/pkg/types"
)

type fakeSource struct {
	docs        []types.DocumentSummary
	meta        map[string]*types.DocumentMetadata
	transcripts map[string]*types.Transcript

	metaCalls int
	metaErr   error
}

func (f *fakeSource) ListDocuments(_ context.Context) ([]types.DocumentSummary, error) {
	return f.docs, nil
}

func (f *fakeSource) GetMetadata(_ context.Context, docID string) (*types.DocumentMetadata, error) {
	f.metaCalls++
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	m, ok := f.meta[docID]
	if !ok {
		return nil, fmt.Errorf("unknown document %s", docID)
	}
	return m, nil
}

func (f *fakeSource) GetTranscript(_ context.Context, docID string) (*types.Transcript, error) {
	tr, ok := f.transcripts[docID]
	if !ok {
		return nil, fmt.Errorf("unknown document %s", docID)
	}
	return tr, nil
}

type fakeIndex struct {
	upserts   map[string]int
	commits   int
	upsertErr error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{upserts: make(map[string]int)}
}

func (f *fakeIndex) Upsert(docID, _, _, _, _ string) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts[docID]++
	return nil
}

func (f *fakeIndex) Commit() error {
	f.commits++
	return nil
}

type fakeEmbedder struct {
	dim       int
	calls     int
	lastInput string
	err       error
}

func (f *fakeEmbedder) EmbedPassage(_ context.Context, text string) ([]float32, error) {
	f.calls++
	f.lastInput = text
	if f.err != nil {
		return nil, f.err
	}
	vec := make([]float32, f.dim)
	vec[0] = 1
	return vec, nil
}

// testDoc builds a matched summary/metadata/transcript triple.
func testDoc(id, title string, created, updated time.Time) (types.DocumentSummary, *types.DocumentMetadata, *types.Transcript) {
	summary := types.DocumentSummary{ID: id, Title: title, CreatedAt: created, UpdatedAt: updated}
	meta := &types.DocumentMetadata{ID: id, Title: title, CreatedAt: created, UpdatedAt: updated}
	tr := &types.Transcript{Entries: []types.TranscriptEntry{
		{Speaker: "Alice", Text: "Notes for " + title},
	}}
	return summary, meta, tr
}

type testEnv struct {
	src            *fakeSource
	cache          *Cache
	rawDir         string
	transcriptsDir string
	out            *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	return &testEnv{
		src: &fakeSource{
			meta:        make(map[string]*types.DocumentMetadata),
			transcripts: make(map[string]*types.Transcript),
		},
		cache:          LoadCache(filepath.Join(dir, "cache.json")),
		rawDir:         filepath.Join(dir, "raw"),
		transcriptsDir: filepath.Join(dir, "transcripts"),
		out:            &bytes.Buffer{},
	}
}

func (env *testEnv) add(id, title string, created, updated time.Time) {
	summary, meta, tr := testDoc(id, title, created, updated)
	env.src.docs = append(env.src.docs, summary)
	env.src.meta[id] = meta
	env.src.transcripts[id] = tr
}

func (env *testEnv) engine() *Engine {
	return NewEngine(env.src, env.cache, env.rawDir, env.transcriptsDir, env.out)
}

var (
	t0 = time.Date(2025, 10, 28, 9, 0, 0, 0, time.UTC)
	t1 = time.Date(2025, 10, 29, 9, 0, 0, 0, time.UTC)
)

func TestEngineFirstPassSyncsAll(t *testing.T) {
	env := newTestEnv(t)
	env.add("doc1", "Q4 Planning", t0, t1)
	env.add("doc2", "Standup", t0, t1)
	idx := newFakeIndex()

	summary, err := env.engine().WithIndex(idx).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Summary{Updated: 2}, summary)
	assert.FileExists(t, filepath.Join(env.transcriptsDir, "2025-10-28_q4-planning.md"))
	assert.FileExists(t, filepath.Join(env.rawDir, "2025-10-28_q4-planning.json"))
	assert.FileExists(t, filepath.Join(env.transcriptsDir, "2025-10-28_standup.md"))

	assert.Equal(t, 1, idx.upserts["doc1"])
	assert.Equal(t, 1, idx.upserts["doc2"])
	assert.Equal(t, 1, idx.commits, "index commits exactly once per pass")
	assert.Equal(t, 2, env.cache.Len())
}

func TestEngineIdempotence(t *testing.T) {
	env := newTestEnv(t)
	env.add("doc1", "Q4 Planning", t0, t1)

	_, err := env.engine().Run(context.Background())
	require.NoError(t, err)
	firstPassCalls := env.src.metaCalls

	summary, err := env.engine().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Summary{Skipped: 1}, summary)
	assert.Equal(t, firstPassCalls, env.src.metaCalls, "unchanged documents cost no fetches")
}

func TestEngineRefetchesOnNewerTimestamp(t *testing.T) {
	env := newTestEnv(t)
	env.add("doc1", "Q4 Planning", t0, t1)

	_, err := env.engine().Run(context.Background())
	require.NoError(t, err)

	env.src.docs[0].UpdatedAt = t1.Add(time.Hour)
	summary, err := env.engine().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Updated: 1}, summary)
}

func TestEngineRenameReconciliation(t *testing.T) {
	env := newTestEnv(t)
	env.add("doc1", "Old Title", t0, t1)

	_, err := env.engine().Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(env.transcriptsDir, "2025-10-28_old-title.md"))

	// Title change plus a newer remote timestamp forces a re-sync under a
	// new name.
	env.src.docs[0].Title = "New Title"
	env.src.docs[0].UpdatedAt = t1.Add(time.Hour)
	env.src.meta["doc1"].Title = "New Title"

	_, err = env.engine().Run(context.Background())
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(env.transcriptsDir, "2025-10-28_new-title.md"))
	assert.FileExists(t, filepath.Join(env.rawDir, "2025-10-28_new-title.json"))
	assert.NoFileExists(t, filepath.Join(env.transcriptsDir, "2025-10-28_old-title.md"))
	assert.NoFileExists(t, filepath.Join(env.rawDir, "2025-10-28_old-title.json"))
}

func TestEngineIndexFailureDoesNotAbort(t *testing.T) {
	env := newTestEnv(t)
	env.add("doc1", "Q4 Planning", t0, t1)
	idx := newFakeIndex()
	idx.upsertErr = errors.New("index locked")

	summary, err := env.engine().WithIndex(idx).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Updated, "content still syncs when indexing fails")
	assert.Contains(t, env.out.String(), "warning: indexing doc1")
	assert.Equal(t, 1, idx.commits)
}

func TestEngineEmbeddingFailureDoesNotAbort(t *testing.T) {
	env := newTestEnv(t)
	env.add("doc1", "Q4 Planning", t0, t1)
	emb := &fakeEmbedder{dim: 4, err: errors.New("model offline")}
	store := vector.New(4)

	summary, err := env.engine().
		WithEmbedding(emb, store, filepath.Join(t.TempDir(), "vectors")).
		Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 0, summary.Embedded)
	assert.False(t, store.Has("doc1"))
	assert.Contains(t, env.out.String(), "warning: embedding doc1")
}

func TestEnginePrimaryFailureAborts(t *testing.T) {
	env := newTestEnv(t)
	env.add("doc1", "Q4 Planning", t0, t1)
	env.src.metaErr = errors.New("401 unauthorized")

	_, err := env.engine().Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetching metadata for doc1")
	assert.Equal(t, 0, env.cache.Len(), "no cache entry for a failed document")
}

func TestEngineEmbedsAndSavesStore(t *testing.T) {
	env := newTestEnv(t)
	env.add("doc1", "Q4 Planning", t0, t1)
	emb := &fakeEmbedder{dim: 4}
	store := vector.New(4)
	vectorPath := filepath.Join(t.TempDir(), "vectors")

	summary, err := env.engine().WithEmbedding(emb, store, vectorPath).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Summary{Updated: 1, Embedded: 1}, summary)
	assert.True(t, store.Has("doc1"))

	// The store is saved once at the end of the pass.
	loaded, err := vector.Load(vectorPath)
	require.NoError(t, err)
	assert.True(t, loaded.Has("doc1"))
}

func TestEngineEmbedsWhenContentFresh(t *testing.T) {
	env := newTestEnv(t)
	env.add("doc1", "Q4 Planning", t0, t1)

	// First pass without embedding leaves the content current but the
	// vector missing.
	_, err := env.engine().Run(context.Background())
	require.NoError(t, err)

	emb := &fakeEmbedder{dim: 4}
	store := vector.New(4)
	summary, err := env.engine().
		WithEmbedding(emb, store, filepath.Join(t.TempDir(), "vectors")).
		Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Summary{Embedded: 1}, summary, "missing embedding is backfilled without a content rewrite")
	assert.True(t, store.Has("doc1"))
	assert.Equal(t, 1, emb.calls)
}

func TestEngineSkipsEmbeddedDocuments(t *testing.T) {
	env := newTestEnv(t)
	env.add("doc1", "Q4 Planning", t0, t1)
	emb := &fakeEmbedder{dim: 4}
	store := vector.New(4)
	vectorPath := filepath.Join(t.TempDir(), "vectors")

	eng := env.engine().WithEmbedding(emb, store, vectorPath)
	_, err := eng.Run(context.Background())
	require.NoError(t, err)

	summary, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Skipped: 1}, summary)
	assert.Equal(t, 1, emb.calls, "no re-embedding of stored documents")
	assert.Equal(t, 1, store.Len(), "no duplicate vector entries")
}

func TestEngineCachesSummaryTimestamp(t *testing.T) {
	env := newTestEnv(t)
	env.add("doc1", "Q4 Planning", t0, t1)
	// Detailed metadata carries a diverging, older timestamp; caching it
	// instead of the summary timestamp would make every later pass see
	// the summary as newer and re-fetch forever.
	env.src.meta["doc1"].UpdatedAt = t0

	_, err := env.engine().Run(context.Background())
	require.NoError(t, err)

	summary, err := env.engine().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Skipped: 1}, summary)
}

func TestEngineSummaryWithoutUpdatedAtUsesCreatedAt(t *testing.T) {
	env := newTestEnv(t)
	env.add("doc1", "Q4 Planning", t0, time.Time{})

	_, err := env.engine().Run(context.Background())
	require.NoError(t, err)

	summary, err := env.engine().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Skipped: 1}, summary)
}

func TestEngineRewritesAfterLostCacheEntry(t *testing.T) {
	env := newTestEnv(t)
	env.add("doc1", "Q4 Planning", t0, t1)
	idx := newFakeIndex()

	_, err := env.engine().WithIndex(idx).Run(context.Background())
	require.NoError(t, err)

	// Simulate a crash after the files were written but before the cache
	// entry was persisted: the files exist, the cache does not know them.
	require.NoError(t, os.Remove(filepath.Join(filepath.Dir(env.rawDir), "cache.json")))
	env.cache = LoadCache(filepath.Join(filepath.Dir(env.rawDir), "cache.json"))

	summary, err := env.engine().WithIndex(idx).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Summary{Updated: 1}, summary)
	assert.FileExists(t, filepath.Join(env.transcriptsDir, "2025-10-28_q4-planning.md"))
	assert.Equal(t, 2, idx.upserts["doc1"], "re-sync goes through upsert, keeping one live index row")
}

func TestEngineEmbedInputBudgetCountsRunes(t *testing.T) {
	env := newTestEnv(t)
	env.add("doc1", "Réunion", t0, t1)
	// A transcript far over the budget, entirely multibyte: a byte-based
	// cut would shrink the effective window to half.
	env.src.transcripts["doc1"] = &types.Transcript{Entries: []types.TranscriptEntry{
		{Speaker: "Alice", Text: strings.Repeat("é", 3*embedInputBudget)},
	}}
	emb := &fakeEmbedder{dim: 4}
	store := vector.New(4)

	_, err := env.engine().
		WithEmbedding(emb, store, filepath.Join(t.TempDir(), "vectors")).
		Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, embedInputBudget, utf8.RuneCountInString(emb.lastInput))
	assert.True(t, utf8.ValidString(emb.lastInput))
}

func TestEngineWritesProgress(t *testing.T) {
	env := newTestEnv(t)
	env.add("doc1", "Q4 Planning", t0, t1)

	_, err := env.engine().Run(context.Background())
	require.NoError(t, err)

	assert.Contains(t, env.out.String(), "found 1 documents")
	assert.Contains(t, env.out.String(), "[1/1] syncing doc1")
}
