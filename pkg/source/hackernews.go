package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/deep1283/signalwatch/pkg/mention"
	"github.com/deep1283/signalwatch/pkg/registry"
)

const hnAlgoliaURL = "https://hn.algolia.com/api/v1/search_by_date"

func init() {
	registry.Register("hackernews", buildHackerNews)
}

func buildHackerNews(client *http.Client, _ registry.BuildDeps) (registry.Source, string) {
	return &HackerNewsSource{client: client}, ""
}

// HackerNewsSource polls the Algolia-backed HN search API, which indexes
// both stories and comments and supports a numeric created_at filter.
type HackerNewsSource struct {
	client *http.Client
}

func (s *HackerNewsSource) Search(ctx context.Context, query string, since time.Time, limit int) ([]mention.Candidate, error) {
	hitsPerPage := clamp(limit, 1, 100)

	q := url.Values{}
	q.Set("query", query)
	q.Set("tags", "story,comment")
	q.Set("hitsPerPage", strconv.Itoa(hitsPerPage))
	q.Set("numericFilters", fmt.Sprintf("created_at_i>%d", since.Unix()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hnAlgoliaURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building hackernews request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting hackernews search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("hackernews search returned status %d", resp.StatusCode)
	}

	var payload struct {
		Hits []map[string]any `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding hackernews response: %w", err)
	}

	results := make([]mention.Candidate, 0, len(payload.Hits))
	for _, hit := range payload.Hits {
		objectID, _ := hit["objectID"].(string)
		if objectID == "" {
			continue
		}

		publishedAt := time.Now().UTC()
		if createdAt, ok := hit["created_at"].(string); ok && createdAt != "" {
			if parsed, err := time.Parse(time.RFC3339, createdAt); err == nil {
				publishedAt = parsed
			}
		}

		title := firstNonEmptyString(hit["title"], hit["story_title"])
		if title == "" {
			title = "Hacker News mention"
		}

		body := firstNonEmptyString(hit["comment_text"], hit["story_text"])
		itemURL := firstNonEmptyString(hit["url"], hit["story_url"])
		if itemURL == "" {
			itemURL = fmt.Sprintf("https://news.ycombinator.com/item?id=%s", objectID)
		}

		raw, err := json.Marshal(hit)
		if err != nil {
			// A single malformed hit never fails the whole batch.
			continue
		}

		results = append(results, mention.Candidate{
			Platform:    "hackernews",
			ExternalID:  objectID,
			URL:         itemURL,
			Title:       stripHTML(title),
			BodyExcerpt: excerpt(stripHTML(body), mention.MaxBodyExcerptLen),
			Author:      stringOrEmpty(hit["author"]),
			Community:   "Hacker News",
			PublishedAt: publishedAt,
			RawPayload:  raw,
		})
	}

	return results, nil
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func firstNonEmptyString(values ...any) string {
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func stringOrEmpty(v any) string {
	s, _ := v.(string)
	return s
}
