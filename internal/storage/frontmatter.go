// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/granary/pkg/types"
)

// ReadFrontmatter parses the YAML frontmatter block at the top of a
// transcript Markdown file. It returns nil without error when the file does
// not exist or carries no frontmatter, so callers can treat both as "not one
// of ours".
func ReadFrontmatter(mdPath string) (*types.Frontmatter, error) {
	data, err := os.ReadFile(mdPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", mdPath, err)
	}

	content := string(data)
	if !strings.HasPrefix(content, "---\n") {
		return nil, nil
	}

	rest := content[4:]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return nil, nil
	}

	var fm types.Frontmatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return nil, fmt.Errorf("parsing frontmatter in %s: %w", mdPath, err)
	}
	return &fm, nil
}

// FindTranscriptByID scans transcriptsDir for the Markdown file whose
// frontmatter carries docID. Files without valid frontmatter are skipped.
// Returns "" when no file matches.
func FindTranscriptByID(transcriptsDir, docID string) (string, error) {
	entries, err := os.ReadDir(transcriptsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading transcripts directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(transcriptsDir, entry.Name())
		fm, err := ReadFrontmatter(path)
		if err != nil || fm == nil {
			continue
		}
		if fm.DocID == docID {
			return path, nil
		}
	}
	return "", nil
}
