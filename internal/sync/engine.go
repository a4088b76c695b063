// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sync drives incremental synchronization of remote transcripts
// into the local data directory. One pass walks the remote document list,
// decides per document whether content or embeddings are stale, fetches
// and renders what changed, and commits the derived indices once at the
// end.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/pdiddy/granary/internal/convert"
	"github.com/pdiddy/granary/internal/storage"
	"github.com/pdiddy/granary/internal/vector"
	"github.com/pdiddy/granary/pkg/types"
)

// embedInputBudget caps the characters handed to the embedding model.
// e5-small-v2 truncates at 512 tokens anyway; bounding the input here
// keeps request payloads small and deterministic.
const embedInputBudget = 2000

// Source fetches remote documents. Throttling, auth, and retries are its
// concern.
type Source interface {
	ListDocuments(ctx context.Context) ([]types.DocumentSummary, error)
	GetMetadata(ctx context.Context, docID string) (*types.DocumentMetadata, error)
	GetTranscript(ctx context.Context, docID string) (*types.Transcript, error)
}

// IndexWriter buffers full-text upserts until Commit.
type IndexWriter interface {
	Upsert(docID, title, date, body, path string) error
	Commit() error
}

// Embedder turns document text into a fixed-dimension vector.
type Embedder interface {
	EmbedPassage(ctx context.Context, text string) ([]float32, error)
}

// Summary holds the per-pass counts reported to the user.
type Summary struct {
	Updated  int
	Skipped  int
	Embedded int
}

// Engine runs sync passes. The index writer and embedder are optional:
// a nil collaborator disables that pipeline without changing the core
// content flow.
type Engine struct {
	src   Source
	cache *Cache

	rawDir         string
	transcriptsDir string
	vectorPath     string

	index    IndexWriter
	embedder Embedder
	store    *vector.Store

	out io.Writer
}

// NewEngine builds an engine that syncs into transcriptsDir and rawDir,
// writing progress to out.
func NewEngine(src Source, cache *Cache, rawDir, transcriptsDir string, out io.Writer) *Engine {
	if out == nil {
		out = io.Discard
	}
	return &Engine{
		src:            src,
		cache:          cache,
		rawDir:         rawDir,
		transcriptsDir: transcriptsDir,
		out:            out,
	}
}

// WithIndex enables the full-text pipeline.
func (e *Engine) WithIndex(w IndexWriter) *Engine {
	e.index = w
	return e
}

// WithEmbedding enables the embedding pipeline. The store is saved to
// vectorPath at the end of each pass.
func (e *Engine) WithEmbedding(emb Embedder, store *vector.Store, vectorPath string) *Engine {
	e.embedder = emb
	e.store = store
	e.vectorPath = vectorPath
	return e
}

// Run executes one sync pass. Errors on primary content (fetch, render,
// file write, cache persist) abort the pass; index and embedding failures
// are logged per document and the pass continues. Derived state is
// committed once, after the last document.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	docs, err := e.src.ListDocuments(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("listing documents: %w", err)
	}
	fmt.Fprintf(e.out, "found %d documents\n", len(docs))

	var summary Summary
	for i, doc := range docs {
		if doc.ID == "" {
			continue
		}

		// Both decisions come from local state only; a document that is
		// current on both axes costs no network calls.
		remoteUpdated := doc.LastModified()
		needsContent := e.cache.NeedsRefresh(doc.ID, remoteUpdated)
		needsEmbedding := e.embedder != nil && e.store != nil && !e.store.Has(doc.ID)

		if !needsContent && !needsEmbedding {
			summary.Skipped++
			continue
		}

		fmt.Fprintf(e.out, "[%d/%d] syncing %s\n", i+1, len(docs), doc.ID)

		meta, err := e.src.GetMetadata(ctx, doc.ID)
		if err != nil {
			return summary, fmt.Errorf("fetching metadata for %s: %w", doc.ID, err)
		}
		raw, err := e.src.GetTranscript(ctx, doc.ID)
		if err != nil {
			return summary, fmt.Errorf("fetching transcript for %s: %w", doc.ID, err)
		}
		rendered, err := convert.ToMarkdown(raw, meta, doc.ID)
		if err != nil {
			return summary, fmt.Errorf("rendering %s: %w", doc.ID, err)
		}

		base := BaseFilename(meta.Title, meta.CreatedAt)

		if needsContent {
			if err := e.writeContent(doc.ID, base, raw, rendered); err != nil {
				return summary, err
			}
			// The cached timestamp is the summary-level one the refresh
			// decision compared against, not the metadata timestamp,
			// which can diverge.
			if err := e.cache.RecordSuccess(doc.ID, base, remoteUpdated); err != nil {
				return summary, err
			}
			summary.Updated++

			if e.index != nil {
				mdPath := filepath.Join(e.transcriptsDir, base+".md")
				date := meta.CreatedAt.Format("2006-01-02")
				if err := e.index.Upsert(doc.ID, meta.Title, date, rendered.Body, mdPath); err != nil {
					fmt.Fprintf(e.out, "warning: indexing %s: %v\n", doc.ID, err)
				}
			}
		}

		if needsEmbedding {
			if e.embedDocument(ctx, doc.ID, meta.Title, rendered.Body) {
				summary.Embedded++
			}
		}
	}

	// One commit and one save for the whole pass. Primary content is
	// already durable, so failures here only delay the derived state
	// until the next pass.
	if e.index != nil {
		if err := e.index.Commit(); err != nil {
			fmt.Fprintf(e.out, "warning: committing search index: %v\n", err)
		}
	}
	if e.store != nil && e.vectorPath != "" {
		if err := e.store.Save(e.vectorPath); err != nil {
			fmt.Fprintf(e.out, "warning: saving vector store: %v\n", err)
		}
	}

	return summary, nil
}

// writeContent removes any previously written files under a stale name,
// then writes the raw payload and rendered Markdown atomically.
func (e *Engine) writeContent(docID, base string, raw *types.Transcript, rendered convert.MarkdownOutput) error {
	if oldBase, ok := e.cache.Filename(docID); ok && oldBase != base {
		for _, stale := range []string{
			filepath.Join(e.transcriptsDir, oldBase+".md"),
			filepath.Join(e.rawDir, oldBase+".json"),
		} {
			if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("removing stale file %s: %w", stale, err)
			}
		}
	}

	rawData, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding raw transcript %s: %w", docID, err)
	}
	if err := storage.WriteAtomic(filepath.Join(e.rawDir, base+".json"), rawData); err != nil {
		return fmt.Errorf("writing raw transcript %s: %w", docID, err)
	}
	if err := storage.WriteAtomic(filepath.Join(e.transcriptsDir, base+".md"), []byte(rendered.Full())); err != nil {
		return fmt.Errorf("writing transcript %s: %w", docID, err)
	}
	return nil
}

// embedDocument runs the embedding pipeline for one document. Failures are
// logged, never propagated; the missing vector is retried next pass.
func (e *Engine) embedDocument(ctx context.Context, docID, title, body string) bool {
	// The budget is in characters, so multibyte text gets the same
	// effective window as ASCII.
	input := title + "\n\n" + body
	if utf8.RuneCountInString(input) > embedInputBudget {
		runes := []rune(input)
		input = string(runes[:embedInputBudget])
	}

	vec, err := e.embedder.EmbedPassage(ctx, input)
	if err != nil {
		fmt.Fprintf(e.out, "warning: embedding %s: %v\n", docID, err)
		return false
	}
	if err := e.store.Add(docID, vec); err != nil {
		fmt.Fprintf(e.out, "warning: storing embedding for %s: %v\n", docID, err)
		return false
	}
	return true
}
