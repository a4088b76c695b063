// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/granary/internal/embed"
	"github.com/pdiddy/granary/internal/index"
	"github.com/pdiddy/granary/internal/storage"
	"github.com/pdiddy/granary/internal/vector"
	"github.com/pdiddy/granary/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Search synced transcripts",
	Long: `Search runs a full-text query against the SQLite index built during
sync. With --semantic the query is embedded instead and matched against the
vector store by cosine similarity.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntP("max-results", "n", 0, "maximum number of results")
	searchCmd.Flags().Bool("semantic", false, "search by embedding similarity instead of keywords")
	searchCmd.Flags().String("embed-endpoint", "", "OpenAI-compatible embeddings API base URL")
	searchCmd.Flags().String("embed-model", "", "embedding model identifier")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide a search query")
	}
	query := strings.Join(args, " ")

	paths, err := resolvePaths(cmd)
	if err != nil {
		return err
	}
	maxResults, _ := cmd.Flags().GetInt("max-results")

	if semantic, _ := cmd.Flags().GetBool("semantic"); semantic {
		return semanticSearch(cmd, paths, query, maxResults)
	}
	return keywordSearch(os.Stdout, paths, query, maxResults)
}

func keywordSearch(out io.Writer, paths storage.Paths, query string, maxResults int) error {
	// Opening the database would create an empty one as a side effect;
	// search is read-only, so a missing index means sync never ran.
	if _, err := os.Stat(paths.TextIndexPath()); os.IsNotExist(err) {
		fmt.Fprintln(out, "No index found. Run 'granary sync' first.")
		return nil
	}

	idx, err := index.Open(paths.TextIndexPath(), types.IndexConfig{
		MaxResults: viper.GetInt("index.max_results"),
	})
	if err != nil {
		return err
	}
	defer idx.Close()

	results, err := idx.Search(query, maxResults)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "no matches")
		return nil
	}

	for _, r := range results {
		fmt.Fprintf(out, "%s  %s\n    %s\n    %s\n", r.Date, r.Title, r.Snippet, r.Path)
	}
	return nil
}

func semanticSearch(cmd *cobra.Command, paths storage.Paths, query string, maxResults int) error {
	engine, err := embed.NewEngine(embeddingConfig(cmd))
	if err != nil {
		return fmt.Errorf("configuring embeddings: %w", err)
	}

	store, err := vector.Load(paths.VectorPath())
	if err != nil {
		return fmt.Errorf("loading vector store (run sync --embed first): %w", err)
	}

	vec, err := engine.EmbedQuery(cmd.Context(), query)
	if err != nil {
		return err
	}

	if maxResults <= 0 {
		maxResults = 10
	}
	results, err := store.Search(vec, maxResults)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no matches")
		return nil
	}

	for _, r := range results {
		line := r.DocID
		// Resolve the doc ID back to a transcript file when possible.
		if path, err := storage.FindTranscriptByID(paths.TranscriptsDir, r.DocID); err == nil && path != "" {
			line = path
		}
		fmt.Printf("%.4f  %s\n", r.Score, line)
	}
	return nil
}
