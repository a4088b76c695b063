// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package api implements the Granola HTTP client. All calls are blocking;
// a politeness throttle runs after every request so batch operations pace
// themselves without caller involvement.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/pdiddy/granary/internal/httputil"
	"github.com/pdiddy/granary/pkg/types"
)

const (
	defaultBaseURL = "https://api.granola.ai"
	defaultTimeout = 30 * time.Second

	// errPreviewLimit bounds the response-body excerpt included in API
	// error messages.
	errPreviewLimit = 100
)

// Client talks to the Granola API.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	ua      string

	throttleMin time.Duration
	throttleMax time.Duration
}

// NewClient builds a client from cfg. Zero-valued config fields fall back
// to defaults: base URL https://api.granola.ai, 30s timeout, 100–300ms
// throttle.
func NewClient(token string, cfg types.APIConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "granary/0.1"
	}
	min, max := cfg.ThrottleMin, cfg.ThrottleMax
	if min == 0 && max == 0 {
		min, max = 100*time.Millisecond, 300*time.Millisecond
	}

	return &Client{
		http:        &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		token:       token,
		ua:          ua,
		throttleMin: min,
		throttleMax: max,
	}
}

// DisableThrottle turns off the politeness delay, for tests and local servers.
func (c *Client) DisableThrottle() *Client {
	c.throttleMin, c.throttleMax = 0, 0
	return c
}

// WithThrottle overrides the politeness delay range.
func (c *Client) WithThrottle(min, max time.Duration) *Client {
	c.throttleMin, c.throttleMax = min, max
	return c
}

// post sends a JSON POST to endpoint and decodes the response into out.
// Non-2xx responses become errors carrying the endpoint, status, and a
// truncated body preview.
func (c *Client) post(ctx context.Context, endpoint string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request for %s: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.ua)

	resp, err := httputil.DoWithRetry(ctx, c.http, req, 0)
	if err != nil {
		return fmt.Errorf("request to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	httputil.Throttle(c.throttleMin, c.throttleMax)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error %d on %s: %s", resp.StatusCode, endpoint, truncate(string(respBody), errPreviewLimit))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response from %s: %w (body starts: %s)", endpoint, err, truncate(string(respBody), errPreviewLimit))
	}
	return nil
}

// ListDocuments returns summaries for every document, in API order.
func (c *Client) ListDocuments(ctx context.Context) ([]types.DocumentSummary, error) {
	var resp struct {
		Docs []types.DocumentSummary `json:"docs"`
	}
	if err := c.post(ctx, "/v2/get-documents", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return resp.Docs, nil
}

// GetMetadata returns the detailed metadata for one document.
func (c *Client) GetMetadata(ctx context.Context, docID string) (*types.DocumentMetadata, error) {
	var meta types.DocumentMetadata
	req := struct {
		DocumentID string `json:"document_id"`
	}{docID}
	if err := c.post(ctx, "/v1/get-document-metadata", req, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// GetTranscript returns the raw transcript for one document.
func (c *Client) GetTranscript(ctx context.Context, docID string) (*types.Transcript, error) {
	var raw types.Transcript
	req := struct {
		DocumentID string `json:"document_id"`
	}{docID}
	if err := c.post(ctx, "/v1/get-document-transcript", req, &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

// truncate shortens s to at most max bytes on a rune boundary, appending
// "..." when anything was cut.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
