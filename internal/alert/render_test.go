package alert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deep1283/signalwatch/internal/store"
	"github.com/deep1283/signalwatch/pkg/mention"
)

func sampleAlert() store.PendingAlert {
	return store.PendingAlert{
		AlertID:   1,
		UserID:    uuid.New(),
		KeywordID: uuid.New(),
		Query:     "acme widgets",
		BrandName: "Acme",
		Mention: mention.Candidate{
			Platform:    "hackernews",
			ExternalID:  "123",
			URL:         "https://news.ycombinator.com/item?id=123",
			Title:       "Acme widgets are great",
			BodyExcerpt: "A long story about widgets.",
			PublishedAt: time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC),
		},
	}
}

// renderedJSON marshals the message the way PostWebhookContext would send
// it, which is the only stable way to assert on Block Kit content without
// reaching into the slack-go internal block field layout.
func renderedJSON(t *testing.T, a store.PendingAlert) string {
	t.Helper()
	msg := Render(a)
	require.NotNil(t, msg.Blocks)
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	return string(payload)
}

func TestRender_IncludesCoreFields(t *testing.T) {
	a := sampleAlert()
	msg := Render(a)

	assert.Contains(t, msg.Text, "Hacker News")
	assert.Contains(t, msg.Text, "acme widgets")

	body := renderedJSON(t, a)
	assert.Contains(t, body, "Acme")
	assert.Contains(t, body, "Acme widgets are great")
	assert.Contains(t, body, "2026-07-30 12:00 UTC")
	assert.Contains(t, body, a.Mention.URL)
}

func TestRender_FallsBackWhenBrandAndExcerptEmpty(t *testing.T) {
	a := sampleAlert()
	a.BrandName = ""
	a.Mention.BodyExcerpt = ""

	body := renderedJSON(t, a)
	assert.Contains(t, body, "your brand")
	assert.Contains(t, body, "No preview text available.")
}

func TestRender_TruncatesLongExcerpt(t *testing.T) {
	a := sampleAlert()
	long := ""
	for i := 0; i < summaryMaxLen+50; i++ {
		long += "x"
	}
	a.Mention.BodyExcerpt = long

	body := renderedJSON(t, a)
	assert.NotContains(t, body, long)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "hello", truncateRunes("hello", 10))
	assert.Equal(t, "he", truncateRunes("hello", 2))
	assert.Equal(t, "", truncateRunes("", 2))
}
