// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data models and configuration structs shared
// across granary stages.
package types

import "time"

// DocumentSummary is the per-document record returned by the list endpoint.
// Title and UpdatedAt are optional in API responses; absent values decode to
// their zero values.
type DocumentSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// LastModified returns the summary-level last-modified timestamp: updated_at
// when the API reports one, created_at otherwise. Sync staleness decisions
// must use this value and no other timestamp source.
func (d DocumentSummary) LastModified() time.Time {
	if !d.UpdatedAt.IsZero() {
		return d.UpdatedAt
	}
	return d.CreatedAt
}

// DocumentMetadata is the detailed record returned by the metadata endpoint.
type DocumentMetadata struct {
	ID              string    `json:"id"`
	Title           string    `json:"title,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
	Participants    []string  `json:"participants,omitempty"`
	DurationSeconds int64     `json:"duration_seconds,omitempty"`
	Labels          []string  `json:"labels,omitempty"`
}

// Transcript is the raw transcript payload for one document.
type Transcript struct {
	Entries []TranscriptEntry `json:"entries"`
}

// TranscriptEntry is one utterance in a transcript. Timestamps are RFC3339
// strings as delivered by the API; unknown fields are ignored on decode.
type TranscriptEntry struct {
	DocumentID string `json:"document_id,omitempty"`
	Speaker    string `json:"speaker,omitempty"`
	Start      string `json:"start,omitempty"`
	End        string `json:"end,omitempty"`
	Text       string `json:"text"`
	Source     string `json:"source,omitempty"`
	EntryID    string `json:"id,omitempty"`
	IsFinal    bool   `json:"is_final,omitempty"`
}

// Frontmatter is the YAML header written at the top of every transcript
// Markdown file. It carries enough provenance to re-identify the remote
// document without consulting the API.
type Frontmatter struct {
	DocID           string    `yaml:"doc_id"`
	Source          string    `yaml:"source"`
	CreatedAt       time.Time `yaml:"created_at"`
	RemoteUpdatedAt time.Time `yaml:"remote_updated_at,omitempty"`
	Title           string    `yaml:"title,omitempty"`
	Participants    []string  `yaml:"participants"`
	DurationSeconds int64     `yaml:"duration_seconds,omitempty"`
	Labels          []string  `yaml:"labels,omitempty"`
	Generator       string    `yaml:"generator"`
}
