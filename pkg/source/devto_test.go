package source

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevToSource_Search(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":           float64(1),
				"title":        "Why Acme is great",
				"description":  "a short writeup",
				"url":          "https://dev.to/x/acme",
				"published_at": time.Now().UTC().Format(time.RFC3339),
				"tag_list":     []any{"acme", "devtools"},
				"user":         map[string]any{"name": "Carol"},
			},
			{
				// too old: must be filtered out by the since watermark.
				"id":           float64(2),
				"title":        "Unrelated Acme mention",
				"description":  "old post",
				"url":          "https://dev.to/x/old",
				"published_at": time.Now().UTC().Add(-72 * time.Hour).Format(time.RFC3339),
			},
			{
				// no mention of "acme" anywhere: must be filtered out.
				"id":           float64(3),
				"title":        "Totally unrelated",
				"description":  "nothing here",
				"url":          "https://dev.to/x/other",
				"published_at": time.Now().UTC().Format(time.RFC3339),
			},
		})
	}))
	defer ts.Close()

	src := &DevToSource{client: clientForTestServer(ts), topDays: 7}
	since := time.Now().UTC().Add(-24 * time.Hour)

	results, err := src.Search(t.Context(), "acme", since, 20)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].ExternalID)
	assert.Equal(t, "Carol", results[0].Author)
}

func TestDevToSource_Search_BlankQuery(t *testing.T) {
	src := &DevToSource{client: http.DefaultClient, topDays: 7}
	results, err := src.Search(t.Context(), "   ", time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
