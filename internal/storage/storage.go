// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package storage owns the on-disk layout of the granary data directory and
// the atomic-write primitive every persisted artifact goes through.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Paths holds the directory layout under one data directory. Transcripts
// contain meeting content, so every directory is created private (0700).
type Paths struct {
	DataDir        string
	RawDir         string
	TranscriptsDir string
	IndexDir       string
	TmpDir         string
}

// NewPaths builds the layout rooted at dataDir. An empty dataDir defaults to
// the user config-adjacent data home (~/.local/share/granary on Linux,
// ~/Library/Application Support/granary on macOS via os.UserConfigDir).
func NewPaths(dataDir string) (Paths, error) {
	if dataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return Paths{}, fmt.Errorf("determining data directory: %w", err)
		}
		dataDir = filepath.Join(base, "granary")
	}

	return Paths{
		DataDir:        dataDir,
		RawDir:         filepath.Join(dataDir, "raw"),
		TranscriptsDir: filepath.Join(dataDir, "transcripts"),
		IndexDir:       filepath.Join(dataDir, "index"),
		TmpDir:         filepath.Join(dataDir, "tmp"),
	}, nil
}

// EnsureDirs creates the directory tree with private permissions.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.RawDir, p.TranscriptsDir, p.IndexDir, p.TmpDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
		if err := os.Chmod(dir, 0o700); err != nil {
			return fmt.Errorf("setting permissions on %s: %w", dir, err)
		}
	}
	return nil
}

// CachePath is the sync cache file inside the data directory.
func (p Paths) CachePath() string {
	return filepath.Join(p.DataDir, "cache.json")
}

// VectorPath is the base path of the vector store file pair inside the
// index directory.
func (p Paths) VectorPath() string {
	return filepath.Join(p.IndexDir, "vectors")
}

// TextIndexPath is the SQLite full-text index inside the index directory.
func (p Paths) TextIndexPath() string {
	return filepath.Join(p.IndexDir, "granary.db")
}

// WriteAtomic writes data to path via a temporary file in the destination
// directory followed by a rename, so the destination never observes partial
// content. The file is created private (0600).
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".granary-*.part")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file to %s: %w", path, err)
	}
	return nil
}

// SetFileTime sets a file's modification time, used to stamp transcript
// files with the meeting creation time.
func SetFileTime(path string, t time.Time) error {
	if err := os.Chtimes(path, t, t); err != nil {
		return fmt.Errorf("setting file time on %s: %w", path, err)
	}
	return nil
}
