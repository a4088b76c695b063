// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "granary/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// APIConfig holds settings for the Granola API client.
type APIConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the API base (default "https://api.granola.ai").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// ThrottleMin and ThrottleMax bound the random politeness delay applied
	// after each API call (defaults 100ms and 300ms). Both zero disables
	// throttling.
	ThrottleMin time.Duration `json:"throttle_min" yaml:"throttle_min"`
	ThrottleMax time.Duration `json:"throttle_max" yaml:"throttle_max"`
}

// IndexConfig holds settings for the full-text index.
type IndexConfig struct {
	// Enabled controls whether sync maintains the FTS index (default true).
	Enabled bool `json:"enabled" yaml:"enabled"`

	// MaxResults is the default maximum number of search results (default 10).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// EmbeddingConfig holds settings for the embedding engine.
type EmbeddingConfig struct {
	HTTPConfig `yaml:",inline"`

	// Enabled controls whether sync maintains the vector store (default false).
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Endpoint is the base URL of an OpenAI-compatible embeddings API.
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Model is the embedding model identifier (e.g. "e5-small-v2").
	Model string `json:"model" yaml:"model"`

	// APIKey authenticates against the embeddings API. Optional for local
	// servers.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Dim is the embedding dimension the vector store is fixed to
	// (default 384).
	Dim int `json:"dim" yaml:"dim"`
}

// SyncConfig holds settings for the sync stage.
type SyncConfig struct {
	// DataDir is the base directory for synced data (contains raw/,
	// transcripts/, index/, tmp/).
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	API       APIConfig       `json:"api" yaml:"api"`
	Sync      SyncConfig      `json:"sync" yaml:"sync"`
	Index     IndexConfig     `json:"index" yaml:"index"`
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`
}
