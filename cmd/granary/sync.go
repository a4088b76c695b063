// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/granary/internal/embed"
	"github.com/pdiddy/granary/internal/index"
	"github.com/pdiddy/granary/internal/sync"
	"github.com/pdiddy/granary/internal/vector"
	"github.com/pdiddy/granary/pkg/types"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Incrementally sync transcripts from Granola",
	Long: `Sync walks the remote document list and fetches every meeting whose
remote timestamp is newer than the local copy, rendering each to Markdown
under the data directory. The full-text index is updated in the same pass;
embeddings are computed when an embedding endpoint is configured.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Bool("no-index", false, "skip full-text index updates")
	syncCmd.Flags().Bool("embed", false, "compute embeddings for semantic search")
	syncCmd.Flags().String("embed-endpoint", "", "OpenAI-compatible embeddings API base URL")
	syncCmd.Flags().String("embed-model", "", "embedding model identifier")

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	paths, err := resolvePaths(cmd)
	if err != nil {
		return err
	}
	if err := paths.EnsureDirs(); err != nil {
		return err
	}

	client, err := newAPIClient(cmd)
	if err != nil {
		return err
	}

	cache := sync.LoadCache(paths.CachePath())
	engine := sync.NewEngine(client, cache, paths.RawDir, paths.TranscriptsDir, os.Stdout)

	noIndex, _ := cmd.Flags().GetBool("no-index")
	if !noIndex {
		idx, err := index.Open(paths.TextIndexPath(), types.IndexConfig{
			MaxResults: viper.GetInt("index.max_results"),
		})
		if err != nil {
			return err
		}
		defer idx.Close()
		engine.WithIndex(idx)
	}

	wantEmbed, _ := cmd.Flags().GetBool("embed")
	if !wantEmbed {
		wantEmbed = viper.GetBool("embedding.enabled")
	}
	if wantEmbed {
		cfg := embeddingConfig(cmd)
		engineEmb, err := embed.NewEngine(cfg)
		if err != nil {
			return fmt.Errorf("configuring embeddings: %w", err)
		}
		store, err := vector.LoadOrNew(paths.VectorPath(), engineEmb.Dim())
		if err != nil {
			return fmt.Errorf("loading vector store: %w", err)
		}
		if store.Dim() != engineEmb.Dim() {
			return fmt.Errorf("vector store dimension %d does not match embedding model dimension %d", store.Dim(), engineEmb.Dim())
		}
		engine.WithEmbedding(engineEmb, store, paths.VectorPath())
	}

	summary, err := engine.Run(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("sync complete: %d updated, %d skipped, %d embedded\n",
		summary.Updated, summary.Skipped, summary.Embedded)
	return nil
}
