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

func TestHackerNewsSource_Search(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "acme", r.URL.Query().Get("query"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"hits": []map[string]any{
				{
					"objectID":   "123",
					"title":      "Acme launches <b>new</b> widget",
					"url":        "https://acme.example/post",
					"author":     "alice",
					"created_at": "2026-07-30T12:00:00Z",
				},
				{
					// a comment hit has no title, only story_title/comment_text.
					"objectID":     "456",
					"story_title":  "Discussion about Acme",
					"comment_text": "I really like   acme's product",
					"author":       "bob",
					"created_at":   "2026-07-31T08:00:00Z",
				},
				{
					// missing objectID must be skipped, not crash the batch.
					"title": "no id",
				},
			},
		})
	}))
	defer ts.Close()

	src := &HackerNewsSource{client: clientForTestServer(ts)}
	since := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	results, err := src.Search(t.Context(), "acme", since, 20)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "hackernews", results[0].Platform)
	assert.Equal(t, "123", results[0].ExternalID)
	assert.Equal(t, "https://acme.example/post", results[0].URL)
	assert.Equal(t, "Acme launches new widget", results[0].Title)

	assert.Equal(t, "Discussion about Acme", results[1].Title)
	assert.Equal(t, "I really like acme's product", results[1].BodyExcerpt)
	assert.Equal(t, "https://news.ycombinator.com/item?id=456", results[1].URL)
}

func TestHackerNewsSource_Search_NonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	src := &HackerNewsSource{client: clientForTestServer(ts)}
	_, err := src.Search(t.Context(), "acme", time.Now(), 10)
	assert.Error(t, err)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1, clamp(0, 1, 100))
	assert.Equal(t, 100, clamp(500, 1, 100))
	assert.Equal(t, 40, clamp(40, 1, 100))
}
