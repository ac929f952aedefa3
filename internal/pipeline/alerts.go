package pipeline

import (
	"context"
	"time"

	"github.com/deep1283/signalwatch/internal/alert"
	"github.com/deep1283/signalwatch/internal/store"
	"github.com/deep1283/signalwatch/internal/telemetry"
)

// processAlerts attempts delivery of every pending alert due for a retry,
// scheduling the next attempt with exponential backoff on failure.
func (p *Pipeline) processAlerts(ctx context.Context, conn store.Executor, st *stats) {
	alerts, err := p.store.FetchPendingAlerts(ctx, conn, p.cfg.AlertBatchSize, p.cfg.MaxAlertRetries)
	if err != nil {
		p.logger.Error("fetch_pending_alerts_failed", "error", err)
		return
	}

	for _, a := range alerts {
		st.AlertsAttempted++
		telemetry.AlertsAttemptedTotal.Inc()

		if sendErr := alert.Send(ctx, a.WebhookURL, a); sendErr != nil {
			p.retryAlert(ctx, conn, a, sendErr.Error())
			st.AlertsFailed++
			telemetry.AlertsFailedTotal.Inc()
			continue
		}

		if err := p.store.MarkAlertSent(ctx, conn, a.AlertID); err != nil {
			p.logger.Error("mark_alert_sent_failed", "alert_id", a.AlertID, "error", err)
		}
		st.AlertsSent++
		telemetry.AlertsSentTotal.Inc()
	}
}

func (p *Pipeline) retryAlert(ctx context.Context, conn store.Executor, a store.PendingAlert, errMessage string) {
	retryCount := a.RetryCount + 1
	delay := retryDelaySeconds(retryCount, p.cfg.AlertRetryBaseSeconds, p.cfg.AlertRetryMaxSeconds)
	nextAttempt := time.Now().UTC().Add(time.Duration(delay) * time.Second)

	if err := p.store.MarkAlertRetry(ctx, conn, a.AlertID, retryCount, p.cfg.MaxAlertRetries, nextAttempt, errMessage); err != nil {
		p.logger.Error("mark_alert_retry_failed", "alert_id", a.AlertID, "error", err)
	}
}

// retryDelaySeconds implements delay = min(base * 2^(retryCount-1), max),
// with retryCount clamped at 1 so the first retry always waits exactly
// base seconds. Doubling is done one step at a time rather than with a
// shift, stopping once max is reached, so an unexpectedly large
// retryCount saturates at max instead of overflowing.
func retryDelaySeconds(retryCount, base, max int) int {
	exponent := retryCount - 1
	if exponent < 0 {
		exponent = 0
	}

	delay := base
	for i := 0; i < exponent; i++ {
		if delay >= max {
			return max
		}
		delay *= 2
	}
	if delay > max {
		delay = max
	}
	return delay
}
