// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index maintains the full-text search index over rendered
// transcripts, backed by SQLite FTS5.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/granary/pkg/types"
)

// Index is a buffered FTS5 writer. Upserts accumulate in one transaction
// and become visible only at Commit; a sync pass that dies mid-way leaves
// the on-disk index exactly as the previous pass left it.
type Index struct {
	db         *sql.DB
	maxResults int

	// tx is the pending write transaction, begun lazily on first Upsert.
	tx *sql.Tx
}

// SearchResult is one full-text hit.
type SearchResult struct {
	DocID   string
	Title   string
	Date    string
	Path    string
	Snippet string
}

// Open opens or creates the index database at path.
func Open(path string, cfg types.IndexConfig) (*Index, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	idx := &Index{db: db, maxResults: maxResults}
	if err := idx.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index schema: %w", err)
	}
	return idx, nil
}

func (x *Index) createSchema() error {
	_, err := x.db.Exec(
		`CREATE VIRTUAL TABLE IF NOT EXISTS documents
		USING fts5(doc_id UNINDEXED, title, date UNINDEXED, body, path UNINDEXED)`)
	if err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}
	return nil
}

// Close rolls back any uncommitted upserts and releases the database.
func (x *Index) Close() error {
	if x.tx != nil {
		x.tx.Rollback()
		x.tx = nil
	}
	return x.db.Close()
}

// Upsert stages a document in the pending transaction, replacing any prior
// row with the same doc_id. Changes stay invisible to readers until Commit.
func (x *Index) Upsert(docID, title, date, body, path string) error {
	if x.tx == nil {
		tx, err := x.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning index transaction: %w", err)
		}
		x.tx = tx
	}

	// Delete-then-insert keeps exactly one live row per document; both
	// statements sit in the same transaction so readers never observe the
	// gap between them.
	if _, err := x.tx.Exec(`DELETE FROM documents WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("removing stale index row for %s: %w", docID, err)
	}
	if _, err := x.tx.Exec(
		`INSERT INTO documents (doc_id, title, date, body, path) VALUES (?, ?, ?, ?, ?)`,
		docID, title, date, body, path); err != nil {
		return fmt.Errorf("inserting index row for %s: %w", docID, err)
	}
	return nil
}

// Delete stages removal of a document's row.
func (x *Index) Delete(docID string) error {
	if x.tx == nil {
		tx, err := x.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning index transaction: %w", err)
		}
		x.tx = tx
	}
	if _, err := x.tx.Exec(`DELETE FROM documents WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("deleting index row for %s: %w", docID, err)
	}
	return nil
}

// Commit publishes all staged upserts. A no-op when nothing was staged.
func (x *Index) Commit() error {
	if x.tx == nil {
		return nil
	}
	err := x.tx.Commit()
	x.tx = nil
	if err != nil {
		return fmt.Errorf("committing index transaction: %w", err)
	}
	return nil
}

// Count returns the number of indexed documents.
func (x *Index) Count() (int, error) {
	var n int
	if err := x.db.QueryRow(`SELECT count(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting indexed documents: %w", err)
	}
	return n, nil
}

// Search runs an FTS5 MATCH query over titles and bodies, ranked by bm25.
// maxResults <= 0 uses the configured default.
func (x *Index) Search(query string, maxResults int) ([]SearchResult, error) {
	if maxResults <= 0 {
		maxResults = x.maxResults
	}

	rows, err := x.db.Query(
		`SELECT doc_id, title, date, path, snippet(documents, 3, '**', '**', '…', 12)
		FROM documents
		WHERE documents MATCH ?
		ORDER BY bm25(documents)
		LIMIT ?`,
		query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.DocID, &r.Title, &r.Date, &r.Path, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}
	return results, nil
}
