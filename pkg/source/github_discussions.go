package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/deep1283/signalwatch/pkg/mention"
	"github.com/deep1283/signalwatch/pkg/registry"
)

const githubGraphQLURL = "https://api.github.com/graphql"

const githubDiscussionsQuery = `
query SearchDiscussions($query: String!, $first: Int!) {
  search(query: $query, type: DISCUSSION, first: $first) {
    nodes {
      ... on Discussion {
        id
        url
        title
        bodyText
        createdAt
        updatedAt
        author { login }
        repository {
          name
          owner { login }
        }
      }
    }
  }
}`

func init() {
	registry.Register("github_discussions", buildGitHubDiscussions)
}

func buildGitHubDiscussions(client *http.Client, deps registry.BuildDeps) (registry.Source, string) {
	if deps.GitHubToken == "" {
		return nil, "missing_credentials"
	}
	return &GitHubDiscussionsSource{client: client, token: deps.GitHubToken}, ""
}

// GitHubDiscussionsSource searches GitHub Discussions via the GraphQL
// search API. GraphQL has no native "since" filter for DISCUSSION search,
// so the watermark is applied client-side against updatedAt (falling back
// to createdAt).
type GitHubDiscussionsSource struct {
	client *http.Client
	token  string
}

type githubGraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type githubGraphQLError struct {
	Message string `json:"message"`
}

type githubGraphQLResponse struct {
	Data struct {
		Search struct {
			Nodes []map[string]any `json:"nodes"`
		} `json:"search"`
	} `json:"data"`
	Errors []githubGraphQLError `json:"errors"`
}

func (s *GitHubDiscussionsSource) Search(ctx context.Context, query string, since time.Time, limit int) ([]mention.Candidate, error) {
	first := clamp(limit, 1, 50)
	searchQuery := fmt.Sprintf("%s sort:updated-desc", query)

	body, err := json.Marshal(githubGraphQLRequest{
		Query: githubDiscussionsQuery,
		Variables: map[string]any{
			"query": searchQuery,
			"first": first,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding github discussions request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, githubGraphQLURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building github discussions request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "signalwatch-mention-worker/1.0")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting github discussions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("github discussions search returned status %d", resp.StatusCode)
	}

	var payload githubGraphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding github discussions response: %w", err)
	}

	if len(payload.Errors) > 0 {
		return nil, fmt.Errorf("github graphql error: %s", payload.Errors[0].Message)
	}

	results := make([]mention.Candidate, 0, len(payload.Data.Search.Nodes))
	for _, node := range payload.Data.Search.Nodes {
		externalID := strings.TrimSpace(stringOrEmpty(node["id"]))
		url := strings.TrimSpace(stringOrEmpty(node["url"]))
		if externalID == "" || url == "" {
			continue
		}

		createdAt := parseGitHubTime(stringOrEmpty(node["createdAt"]))
		updatedAt := parseGitHubTime(stringOrEmpty(node["updatedAt"]))
		effective := updatedAt
		if effective.IsZero() {
			effective = createdAt
		}
		if effective.IsZero() {
			effective = time.Now().UTC()
		}
		if effective.Before(since) {
			continue
		}

		publishedAt := createdAt
		if publishedAt.IsZero() {
			publishedAt = effective
		}

		title := strings.TrimSpace(stringOrEmpty(node["title"]))
		if title == "" {
			title = "GitHub discussion mention"
		}
		body := stringOrEmpty(node["bodyText"])

		author := ""
		if authorObj, ok := node["author"].(map[string]any); ok {
			author = stringOrEmpty(authorObj["login"])
		}

		community := "GitHub Discussions"
		if repoObj, ok := node["repository"].(map[string]any); ok {
			repoName := strings.TrimSpace(stringOrEmpty(repoObj["name"]))
			ownerLogin := ""
			if ownerObj, ok := repoObj["owner"].(map[string]any); ok {
				ownerLogin = strings.TrimSpace(stringOrEmpty(ownerObj["login"]))
			}
			switch {
			case repoName != "" && ownerLogin != "":
				community = ownerLogin + "/" + repoName
			case repoName != "":
				community = repoName
			}
		}

		raw, err := json.Marshal(node)
		if err != nil {
			continue
		}

		results = append(results, mention.Candidate{
			Platform:    "github_discussions",
			ExternalID:  externalID,
			URL:         url,
			Title:       title,
			BodyExcerpt: excerpt(body, mention.MaxBodyExcerptLen),
			Author:      author,
			Community:   community,
			PublishedAt: publishedAt,
			RawPayload:  raw,
		})
	}

	return results, nil
}

func parseGitHubTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
