// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embed computes text embeddings through an OpenAI-compatible
// /v1/embeddings endpoint. The default model is e5-small-v2, which wants
// its inputs prefixed with "passage: " or "query: " depending on which
// side of the retrieval pair the text sits on; EmbedPassage and EmbedQuery
// apply the right prefix so callers never handle it.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pdiddy/granary/internal/httputil"
	"github.com/pdiddy/granary/pkg/types"
)

const (
	defaultModel   = "intfloat/e5-small-v2"
	defaultDim     = 384
	defaultTimeout = 60 * time.Second
)

// Engine is an HTTP embedding client fixed to one model and dimension.
type Engine struct {
	http     *http.Client
	endpoint string
	model    string
	apiKey   string
	dim      int
}

// NewEngine builds an engine from cfg. The endpoint is required; model and
// dim default to e5-small-v2 at 384 dimensions.
func NewEngine(cfg types.EmbeddingConfig) (*Engine, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("embedding endpoint is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	dim := cfg.Dim
	if dim <= 0 {
		dim = defaultDim
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Engine{
		http:     &http.Client{Timeout: timeout},
		endpoint: cfg.Endpoint,
		model:    model,
		apiKey:   cfg.APIKey,
		dim:      dim,
	}, nil
}

// Dim returns the engine's fixed embedding dimension.
func (e *Engine) Dim() int { return e.dim }

// EmbedPassage embeds document text for storage.
func (e *Engine) EmbedPassage(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, "passage: "+text)
}

// EmbedQuery embeds a search query.
func (e *Engine) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, "query: "+text)
}

func (e *Engine) embed(ctx context.Context, input string) ([]float32, error) {
	payload, err := json.Marshal(struct {
		Model string `json:"model"`
		Input string `json:"input"`
	}{e.model, input})
	if err != nil {
		return nil, fmt.Errorf("encoding embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/v1/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := httputil.DoWithRetry(ctx, e.http, req, 0)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading embedding response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding API error %d: %s", resp.StatusCode, respBody)
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parsing embedding response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embedding response contains no vectors")
	}

	vec := parsed.Data[0].Embedding
	if len(vec) != e.dim {
		return nil, fmt.Errorf("embedding dimension mismatch: model returned %d, expected %d", len(vec), e.dim)
	}
	return vec, nil
}
