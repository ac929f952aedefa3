package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/deep1283/signalwatch/pkg/mention"
	"github.com/deep1283/signalwatch/pkg/registry"
)

const devToArticlesURL = "https://dev.to/api/articles"

func init() {
	registry.Register("devto", buildDevTo)
}

func buildDevTo(client *http.Client, deps registry.BuildDeps) (registry.Source, string) {
	topDays := deps.DevToTopDays
	if topDays < 1 {
		topDays = 7
	}
	return &DevToSource{client: client, topDays: topDays}, ""
}

// DevToSource does best-effort Dev.to polling against the public articles
// API, which has no full-text query search across all posts: it fetches
// recent "top" articles and matches the query locally against title,
// description, and tags.
type DevToSource struct {
	client  *http.Client
	topDays int
}

func (s *DevToSource) Search(ctx context.Context, query string, since time.Time, limit int) ([]mention.Candidate, error) {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return nil, nil
	}

	q := url.Values{}
	q.Set("top", strconv.Itoa(s.topDays))
	q.Set("per_page", strconv.Itoa(clamp(limit, 1, 100)))
	q.Set("page", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, devToArticlesURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building devto request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting devto articles: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("devto articles returned status %d", resp.StatusCode)
	}

	var items []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decoding devto response: %w", err)
	}

	results := make([]mention.Candidate, 0, len(items))
	for _, item := range items {
		publishedRaw := firstNonEmptyString(item["published_at"], item["created_at"])
		publishedAt := time.Now().UTC()
		if publishedRaw != "" {
			if parsed, err := time.Parse(time.RFC3339, publishedRaw); err == nil {
				publishedAt = parsed
			}
		}
		if publishedAt.Before(since) {
			continue
		}

		title := stringOrEmpty(item["title"])
		if title == "" {
			title = "Dev.to mention"
		}
		description := stringOrEmpty(item["description"])

		var tagText string
		switch tags := item["tag_list"].(type) {
		case []any:
			parts := make([]string, 0, len(tags))
			for _, t := range tags {
				if s, ok := t.(string); ok {
					parts = append(parts, s)
				}
			}
			tagText = strings.Join(parts, " ")
		case string:
			tagText = tags
		}

		haystack := strings.ToLower(title + " " + description + " " + tagText)
		if !strings.Contains(haystack, normalized) {
			continue
		}

		articleID := numericIDString(item["id"])
		itemURL := stringOrEmpty(item["url"])
		if articleID == "" || itemURL == "" {
			continue
		}

		author := ""
		if userObj, ok := item["user"].(map[string]any); ok {
			author = firstNonEmptyString(userObj["name"], userObj["username"])
		}

		raw, err := json.Marshal(item)
		if err != nil {
			continue
		}

		results = append(results, mention.Candidate{
			Platform:    "devto",
			ExternalID:  articleID,
			URL:         itemURL,
			Title:       normalizeWhitespace(title),
			BodyExcerpt: excerpt(description, mention.MaxBodyExcerptLen),
			Author:      author,
			Community:   "dev.to",
			PublishedAt: publishedAt,
			RawPayload:  raw,
		})
	}

	return results, nil
}

// numericIDString renders a JSON number (decoded as float64) as an
// integer string, matching the article id field Dev.to returns.
func numericIDString(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatInt(int64(n), 10)
	case string:
		return n
	default:
		return ""
	}
}
