// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/granary/pkg/types"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient("test_token", types.APIConfig{BaseURL: ts.URL}).DisableThrottle()
}

func TestListDocuments(t *testing.T) {
	var gotAuth, gotUA, gotPath string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{
			"docs": []map[string]any{
				{"id": "doc1", "title": "Planning", "created_at": "2025-10-28T15:04:05Z", "updated_at": "2025-10-29T01:23:45Z"},
				{"id": "doc2", "created_at": "2025-10-27T09:00:00Z"},
			},
		})
	}))

	docs, err := c.ListDocuments(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer test_token", gotAuth)
	assert.Equal(t, "granary/0.1", gotUA)
	assert.Equal(t, "/v2/get-documents", gotPath)

	require.Len(t, docs, 2)
	assert.Equal(t, "doc1", docs[0].ID)
	assert.Equal(t, "Planning", docs[0].Title)
	assert.False(t, docs[0].UpdatedAt.IsZero())
	// Optional fields decode to zero values.
	assert.Empty(t, docs[1].Title)
	assert.True(t, docs[1].UpdatedAt.IsZero())
}

func TestGetMetadata(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/get-document-metadata", r.URL.Path)

		var req struct {
			DocumentID string `json:"document_id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "doc123", req.DocumentID)

		json.NewEncoder(w).Encode(map[string]any{
			"id":               "doc123",
			"title":            "Q4 Planning",
			"created_at":       "2025-10-28T15:04:05Z",
			"participants":     []string{"Alice", "Bob"},
			"duration_seconds": 3600,
			"labels":           []string{"Planning", "Q4"},
		})
	}))

	meta, err := c.GetMetadata(context.Background(), "doc123")
	require.NoError(t, err)
	assert.Equal(t, "Q4 Planning", meta.Title)
	assert.Len(t, meta.Participants, 2)
	assert.Equal(t, int64(3600), meta.DurationSeconds)
}

func TestGetTranscript(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/get-document-transcript", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"entries": []map[string]any{
				{"speaker": "Alice", "start": "2025-10-01T21:35:12.500Z", "text": "Hello"},
			},
		})
	}))

	raw, err := c.GetTranscript(context.Background(), "doc123")
	require.NoError(t, err)
	require.Len(t, raw.Entries, 1)
	assert.Equal(t, "Hello", raw.Entries[0].Text)
}

func TestAPIErrorIncludesTruncatedPreview(t *testing.T) {
	longBody := strings.Repeat("x", 500)
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(longBody))
	}))

	_, err := c.ListDocuments(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error 403 on /v2/get-documents")
	assert.Contains(t, err.Error(), "...")
	assert.Less(t, len(err.Error()), 250, "body preview should be truncated")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "hello", 100, "hello"},
		{"exact", "hello", 5, "hello"},
		{"long", "hello world", 7, "hello w..."},
		{"utf8 boundary", "héllo", 2, "h..."},
		{"empty", "", 5, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.in, tt.max); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("tok", types.APIConfig{})
	assert.Equal(t, defaultBaseURL, c.baseURL)
	assert.NotZero(t, c.throttleMax)

	c = c.WithThrottle(0, 0)
	assert.Zero(t, c.throttleMax)
}
