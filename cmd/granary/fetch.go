// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/granary/internal/convert"
	"github.com/pdiddy/granary/internal/storage"
	"github.com/pdiddy/granary/internal/sync"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [document-ids...]",
	Short: "Fetch specific documents unconditionally",
	Long: `Fetch downloads and renders the named documents regardless of cache
state. It does not touch the sync cache or the indices; use sync for the
incremental path.`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more document IDs")
	}

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

	for _, docID := range args {
		meta, err := client.GetMetadata(cmd.Context(), docID)
		if err != nil {
			return err
		}
		raw, err := client.GetTranscript(cmd.Context(), docID)
		if err != nil {
			return err
		}
		rendered, err := convert.ToMarkdown(raw, meta, docID)
		if err != nil {
			return err
		}

		base := sync.BaseFilename(meta.Title, meta.CreatedAt)
		mdPath := filepath.Join(paths.TranscriptsDir, base+".md")

		rawData, err := json.MarshalIndent(raw, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding raw transcript %s: %w", docID, err)
		}
		if err := storage.WriteAtomic(filepath.Join(paths.RawDir, base+".json"), rawData); err != nil {
			return err
		}
		if err := storage.WriteAtomic(mdPath, []byte(rendered.Full())); err != nil {
			return err
		}
		// Stamp the file with the meeting time so directory listings sort
		// by meeting date.
		if err := storage.SetFileTime(mdPath, meta.CreatedAt); err != nil {
			return err
		}

		fmt.Printf("fetched %s -> %s\n", docID, mdPath)
	}
	return nil
}
