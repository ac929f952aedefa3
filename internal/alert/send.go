package alert

import (
	"context"
	"fmt"
	"strings"

	goslack "github.com/slack-go/slack"

	"github.com/deep1283/signalwatch/internal/store"
)

// Send renders and posts a pending alert to its tenant's incoming
// webhook. A non-2xx response or transport error is returned as-is; the
// caller owns retry scheduling.
func Send(ctx context.Context, webhookURL string, a store.PendingAlert) error {
	if !strings.HasPrefix(webhookURL, "http") {
		return fmt.Errorf("slack webhook missing or invalid")
	}

	msg := Render(a)
	if err := goslack.PostWebhookContext(ctx, webhookURL, &msg); err != nil {
		return fmt.Errorf("posting slack alert: %w", err)
	}
	return nil
}
