package pipeline

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/deep1283/signalwatch/internal/config"
	"github.com/deep1283/signalwatch/pkg/registry"

	// Registers the real adapter builders into the registry catalog.
	_ "github.com/deep1283/signalwatch/pkg/source"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestMinutesUntilUTCDayRollover(t *testing.T) {
	now := time.Date(2026, 7, 31, 23, 45, 0, 0, time.UTC)
	assert.Equal(t, 15, minutesUntilUTCDayRollover(now))

	atMidnight := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 24*60, minutesUntilUTCDayRollover(atMidnight))

	oneSecondBefore := time.Date(2026, 7, 31, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, 1, minutesUntilUTCDayRollover(oneSecondBefore))
}

func TestSinceWatermark(t *testing.T) {
	t.Run("never checked falls back to 24h ago minus overlap", func(t *testing.T) {
		got := sinceWatermark(nil, 3)
		want := time.Now().UTC().Add(-24 * time.Hour).Add(-3 * time.Minute)
		assert.WithinDuration(t, want, got, 2*time.Second)
	})

	t.Run("subtracts overlap from last checked time", func(t *testing.T) {
		last := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
		got := sinceWatermark(&last, 3)
		assert.Equal(t, time.Date(2026, 7, 31, 11, 57, 0, 0, time.UTC), got)
	})

	t.Run("zero overlap returns last checked time unchanged", func(t *testing.T) {
		last := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
		got := sinceWatermark(&last, 0)
		assert.Equal(t, last, got)
	})
}

func TestRetryDelaySeconds(t *testing.T) {
	cases := []struct {
		retryCount int
		want       int
	}{
		{1, 60},
		{2, 120},
		{3, 240},
		{0, 60},  // clamped to the first-retry delay
		{10, 1800}, // saturates at the configured max
	}
	for _, tc := range cases {
		got := retryDelaySeconds(tc.retryCount, 60, 1800)
		assert.Equal(t, tc.want, got, "retryCount=%d", tc.retryCount)
	}
}

func TestBuildAdapters_SkipsDisabledAndUnimplementedSources(t *testing.T) {
	cfg := &config.Config{
		SourceEnabled: map[string]bool{
			"hackernews": true,
			"devto":      true,
			"google":     true, // enabled but has a nil Builder in the catalog
			"reddit":     false,
		},
	}

	p := &Pipeline{
		cfg:     cfg,
		logger:  discardLogger(),
		httpCli: http.DefaultClient,
		deps:    registry.BuildDeps{},
	}

	adapters, breakers := p.buildAdapters()

	assert.Contains(t, adapters, "hackernews")
	assert.Contains(t, adapters, "devto")
	assert.NotContains(t, adapters, "google")
	assert.NotContains(t, adapters, "reddit")

	for key := range adapters {
		assert.Contains(t, breakers, key)
	}
}

func TestBuildAdapters_MissingCredentialsSkipped(t *testing.T) {
	cfg := &config.Config{
		SourceEnabled: map[string]bool{
			"github_discussions": true,
			"reddit":             true,
		},
	}

	p := &Pipeline{
		cfg:     cfg,
		logger:  discardLogger(),
		httpCli: http.DefaultClient,
		deps:    registry.BuildDeps{}, // no GitHubToken or Reddit credentials
	}

	adapters, _ := p.buildAdapters()
	assert.NotContains(t, adapters, "github_discussions")
	assert.NotContains(t, adapters, "reddit")
}
