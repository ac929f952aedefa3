package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/deep1283/signalwatch/pkg/mention"
	"github.com/deep1283/signalwatch/pkg/registry"
)

const (
	redditTokenURL  = "https://www.reddit.com/api/v1/access_token"
	redditSearchURL = "https://oauth.reddit.com/search"
)

func init() {
	registry.Register("reddit", buildReddit)
}

func buildReddit(client *http.Client, deps registry.BuildDeps) (registry.Source, string) {
	if deps.RedditClientID == "" || deps.RedditClientSecret == "" {
		return nil, "missing_credentials"
	}
	userAgent := deps.RedditUserAgent
	if userAgent == "" {
		userAgent = "mention-worker/1.0"
	}
	return &RedditSource{
		client:    client,
		userAgent: userAgent,
		oauthCfg: &clientcredentials.Config{
			ClientID:     deps.RedditClientID,
			ClientSecret: deps.RedditClientSecret,
			TokenURL:     redditTokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		cache: deps.RedisClient,
	}, ""
}

// RedditSource searches link and comment submissions via Reddit's OAuth2
// application-only API. The access token is cached in Redis (when
// available) so that the polls within a run and back-to-back one-shot
// invocations reuse it instead of each paying Reddit's token endpoint.
// With no cache configured, every Search fetches a fresh token.
type RedditSource struct {
	client    *http.Client
	userAgent string
	oauthCfg  *clientcredentials.Config
	cache     registry.RedisTokenCache
}

const redditTokenCacheKey = "signalwatch:reddit:access_token"

type cachedRedditToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (s *RedditSource) accessToken(ctx context.Context) (string, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, redditTokenCacheKey); err == nil && raw != "" {
			var cached cachedRedditToken
			if err := json.Unmarshal([]byte(raw), &cached); err == nil && time.Now().Before(cached.ExpiresAt) {
				return cached.AccessToken, nil
			}
		}
	}

	httpClient := &http.Client{
		Transport: userAgentRoundTripper{
			base:      http.DefaultTransport,
			userAgent: s.userAgent,
		},
		Timeout: s.client.Timeout,
	}
	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	token, err := s.oauthCfg.Token(tokenCtx)
	if err != nil {
		return "", fmt.Errorf("fetching reddit access token: %w", err)
	}

	if s.cache != nil {
		ttl := time.Until(token.Expiry) - time.Minute
		if ttl < time.Minute {
			ttl = time.Minute
		}
		cached := cachedRedditToken{AccessToken: token.AccessToken, ExpiresAt: token.Expiry}
		if payload, err := json.Marshal(cached); err == nil {
			_ = s.cache.Set(ctx, redditTokenCacheKey, string(payload), ttl)
		}
	}

	return token.AccessToken, nil
}

func (s *RedditSource) Search(ctx context.Context, query string, since time.Time, limit int) ([]mention.Candidate, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("sort", "new")
	q.Set("limit", strconv.Itoa(clamp(limit, 1, 100)))
	q.Set("type", "link,comment")
	q.Set("t", "day")
	q.Set("restrict_sr", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, redditSearchURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building reddit search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting reddit search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("reddit search returned status %d", resp.StatusCode)
	}

	var payload struct {
		Data struct {
			Children []struct {
				Data map[string]any `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding reddit response: %w", err)
	}

	results := make([]mention.Candidate, 0, len(payload.Data.Children))
	for _, child := range payload.Data.Children {
		data := child.Data

		createdUTC, ok := data["created_utc"].(float64)
		if !ok {
			continue
		}
		publishedAt := time.Unix(int64(createdUTC), 0).UTC()
		if publishedAt.Before(since) {
			continue
		}

		itemName := stringOrEmpty(data["name"])
		if itemName == "" {
			continue
		}

		itemURL := ""
		if permalink := stringOrEmpty(data["permalink"]); permalink != "" {
			itemURL = "https://reddit.com" + permalink
		} else if linkPermalink := stringOrEmpty(data["link_permalink"]); linkPermalink != "" {
			itemURL = "https://reddit.com" + linkPermalink
		} else {
			itemURL = stringOrEmpty(data["url"])
		}
		if itemURL == "" {
			continue
		}

		title := firstNonEmptyString(data["title"], data["link_title"])
		if title == "" {
			title = "Reddit mention"
		}
		body := firstNonEmptyString(data["selftext"], data["body"])

		community := "Reddit"
		if subreddit := stringOrEmpty(data["subreddit"]); subreddit != "" {
			community = "r/" + subreddit
		}

		raw, err := json.Marshal(data)
		if err != nil {
			continue
		}

		results = append(results, mention.Candidate{
			Platform:    "reddit",
			ExternalID:  itemName,
			URL:         itemURL,
			Title:       normalizeWhitespace(title),
			BodyExcerpt: excerpt(body, mention.MaxBodyExcerptLen),
			Author:      stringOrEmpty(data["author"]),
			Community:   community,
			PublishedAt: publishedAt,
			RawPayload:  raw,
		})
	}

	return results, nil
}

// userAgentRoundTripper stamps every request with a fixed User-Agent,
// which Reddit's API requires and clientcredentials.Config has no hook
// for otherwise.
type userAgentRoundTripper struct {
	base      http.RoundTripper
	userAgent string
}

func (rt userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	cloned.Header.Set("User-Agent", rt.userAgent)
	return rt.base.RoundTrip(cloned)
}
