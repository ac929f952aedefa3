// Package alert renders a pending mention alert into a Slack Block Kit
// payload and delivers it over an incoming webhook. Delivery retry
// scheduling is the pipeline's responsibility, not this package's.
package alert

import (
	"fmt"
	"strings"

	goslack "github.com/slack-go/slack"

	"github.com/deep1283/signalwatch/internal/store"
	"github.com/deep1283/signalwatch/pkg/registry"
)

const summaryMaxLen = 280

// Render builds the Block Kit message for a pending alert: a header, a
// field row (brand/keyword/source/published), a title+excerpt section,
// and an "Open mention" button linking to the source item.
func Render(a store.PendingAlert) goslack.WebhookMessage {
	platform := registry.Label(a.Mention.Platform)
	brand := a.BrandName
	if brand == "" {
		brand = "your brand"
	}

	published := a.Mention.PublishedAt.UTC().Format("2006-01-02 15:04 UTC")
	summary := strings.TrimSpace(a.Mention.BodyExcerpt)
	if summary == "" {
		summary = "No preview text available."
	}
	summary = truncateRunes(summary, summaryMaxLen)

	header := goslack.NewHeaderBlock(
		goslack.NewTextBlockObject(goslack.PlainTextType, fmt.Sprintf("New %s mention", platform), true, false),
	)

	fields := goslack.NewSectionBlock(nil, []*goslack.TextBlockObject{
		goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Brand*\n%s", brand), false, false),
		goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Keyword*\n%s", a.Query), false, false),
		goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Source*\n%s", platform), false, false),
		goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Published*\n%s", published), false, false),
	}, nil)

	body := goslack.NewSectionBlock(
		goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*%s*\n%s", a.Mention.Title, summary), false, false),
		nil, nil,
	)

	openBtn := goslack.NewButtonBlockElement("open_mention", a.Mention.URL,
		goslack.NewTextBlockObject(goslack.PlainTextType, "Open mention", false, false))
	openBtn.URL = a.Mention.URL
	actions := goslack.NewActionBlock("mention_actions", openBtn)

	return goslack.WebhookMessage{
		Text: fmt.Sprintf("New %s mention for '%s'", platform, a.Query),
		Blocks: &goslack.Blocks{
			BlockSet: []goslack.Block{header, fields, body, actions},
		},
	}
}

func truncateRunes(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
