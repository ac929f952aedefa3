// Package registry holds the static catalog of source kinds the worker
// knows how to poll. Adding a new source means adding one entry here;
// everything downstream is polymorphic over the Source capability.
package registry

import (
	"context"
	"net/http"
	"time"

	"github.com/deep1283/signalwatch/pkg/mention"
)

// Source is the uniform capability every source adapter implements.
// Implementations must not retry internally; retry policy lives in the
// pipeline. since is the watermark already widened by overlap; adapters
// should not re-filter by a stricter window than what they're given.
type Source interface {
	Search(ctx context.Context, query string, since time.Time, limit int) ([]mention.Candidate, error)
}

// BuildDeps carries the credentials and tunables a builder needs to
// construct an adapter. It is a narrow, registry-owned shape rather than
// the full application Config so that this package never imports
// internal/config.
type BuildDeps struct {
	RedditClientID     string
	RedditClientSecret string
	RedditUserAgent    string
	DevToTopDays       int
	GitHubToken        string
	GoogleAPIKey       string
	GoogleCSEID        string
	BraveAPIKey        string

	// RedisClient, when non-nil, lets a builder persist state (e.g. an
	// OAuth2 token) across worker invocations. May be nil in tests.
	RedisClient RedisTokenCache
}

// RedisTokenCache is the minimal cache surface a builder may use to
// persist short-lived credentials between one-shot invocations.
type RedisTokenCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// Builder constructs a source adapter from a shared HTTP client and the
// worker's settings. A nil Definition.Builder means the key is recognized
// but has no adapter implementation (a reserved key). A builder that
// returns a nil Source with a non-empty reason means the source is
// declared but disabled for this run (e.g. missing credentials).
type Builder func(client *http.Client, deps BuildDeps) (Source, string)

// Definition describes one entry in the source catalog.
type Definition struct {
	Key                string
	Label              string
	EnvSlug            string
	DefaultEnabled     bool
	FreeTierDailyLimit *int
	Builder            Builder
}

func intp(v int) *int { return &v }

// Definitions is the ordered, static source catalog. This is the single
// place new sources are added; order only affects the deterministic
// iteration used when logging disabled sources at startup.
var Definitions = []Definition{
	{
		Key:                "hackernews",
		Label:              "Hacker News",
		EnvSlug:            "HN",
		DefaultEnabled:     true,
		FreeTierDailyLimit: intp(2000),
	},
	{
		Key:                "devto",
		Label:              "Dev.to",
		EnvSlug:            "DEVTO",
		DefaultEnabled:     true,
		FreeTierDailyLimit: intp(1000),
	},
	{
		Key:                "github_discussions",
		Label:              "GitHub Discussions",
		EnvSlug:            "GITHUB_DISCUSSIONS",
		DefaultEnabled:     true,
		FreeTierDailyLimit: intp(1000),
	},
	{
		Key:                "reddit",
		Label:              "Reddit",
		EnvSlug:            "REDDIT",
		DefaultEnabled:     false,
		FreeTierDailyLimit: intp(500),
	},
	{
		Key:                "google",
		Label:              "Google",
		EnvSlug:            "GOOGLE",
		DefaultEnabled:     false,
		FreeTierDailyLimit: intp(100),
		// Builder is nil: recognized key, unsupported_adapter.
	},
	{
		Key:                "brave",
		Label:              "Brave",
		EnvSlug:            "BRAVE",
		DefaultEnabled:     false,
		FreeTierDailyLimit: intp(1000),
	},
	{
		Key:                "producthunt",
		Label:              "Product Hunt",
		EnvSlug:            "PRODUCTHUNT",
		DefaultEnabled:     false,
		FreeTierDailyLimit: intp(500),
	},
}

// Register wires a builder into an existing definition by key. Source
// adapter packages call this from an init() so that pkg/registry itself
// never imports adapter implementations (which would import it back for
// the Source interface and mention.Candidate).
func Register(key string, builder Builder) {
	for i := range Definitions {
		if Definitions[i].Key == key {
			Definitions[i].Builder = builder
			return
		}
	}
}

// ByKey looks up a definition by its source key.
func ByKey(key string) (Definition, bool) {
	for _, d := range Definitions {
		if d.Key == key {
			return d, true
		}
	}
	return Definition{}, false
}

// Label returns the human-readable label for a source key, falling back
// to the raw key for an unrecognized one (defensive — the notification
// renderer shouldn't crash over a label lookup).
func Label(key string) string {
	if d, ok := ByKey(key); ok {
		return d.Label
	}
	return key
}

// Keys returns every catalog key in declaration order.
func Keys() []string {
	keys := make([]string, len(Definitions))
	for i, d := range Definitions {
		keys[i] = d.Key
	}
	return keys
}
