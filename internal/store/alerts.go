package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deep1283/signalwatch/pkg/mention"
)

// SlackChannel is the only delivery channel this worker currently
// supports. EnqueueAlert passes it explicitly on insert: the
// alert_deliveries unique constraint is keyed on (user_id, mention_id,
// keyword_id, channel), and an insert that omits channel would rely on
// its column default lining up with every future caller's assumption
// about which channel "pending" means. Naming it here keeps the
// conflict target and the insert list in agreement.
const SlackChannel = "slack"

// EnqueueAlert creates a pending alert delivery for a match, returning
// false without error when one already exists for the same
// (user, mention, keyword, channel) tuple.
func (s *Store) EnqueueAlert(ctx context.Context, conn Executor, userID, keywordID uuid.UUID, mentionID int64) (bool, error) {
	var id int64
	err := conn.QueryRow(ctx, `
		insert into public.alert_deliveries
		  (user_id, keyword_id, mention_id, channel, status, next_attempt_at)
		values ($1, $2, $3, $4, 'pending', now())
		on conflict (user_id, mention_id, keyword_id, channel) do nothing
		returning id
	`, userID, keywordID, mentionID, SlackChannel).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("enqueuing alert: %w", err)
	}
	return true, nil
}

// FetchPendingAlerts selects alert deliveries ready to attempt, joined
// against the destination webhook, keyword, brand, and mention.
func (s *Store) FetchPendingAlerts(ctx context.Context, conn Executor, limit, maxRetries int) ([]PendingAlert, error) {
	rows, err := conn.Query(ctx, `
		select
		  ad.id as alert_id,
		  ad.retry_count,
		  ad.user_id,
		  ad.keyword_id,
		  coalesce(p.slack_webhook_url_enc, '') as webhook_url,
		  k.query,
		  coalesce(b.name, '') as brand_name,
		  m.platform::text as platform,
		  m.external_id,
		  m.url,
		  coalesce(m.title, 'Mention') as title,
		  coalesce(m.body_excerpt, '') as body_excerpt,
		  coalesce(m.author, '') as author,
		  coalesce(m.community, '') as community,
		  m.published_at,
		  m.raw_payload
		from public.alert_deliveries ad
		join public.profiles p on p.id = ad.user_id
		join public.keywords k on k.id = ad.keyword_id
		left join public.brands b on b.id = k.brand_id
		join public.mentions m on m.id = ad.mention_id
		where ad.status in ('pending', 'failed')
		  and ad.next_attempt_at <= now()
		  and ad.retry_count < $1
		order by ad.next_attempt_at asc
		limit $2
	`, maxRetries, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching pending alerts: %w", err)
	}
	defer rows.Close()

	var alerts []PendingAlert
	for rows.Next() {
		var (
			a   PendingAlert
			m   mention.Candidate
			pub time.Time
		)
		if err := rows.Scan(
			&a.AlertID, &a.RetryCount, &a.UserID, &a.KeywordID, &a.WebhookURL,
			&a.Query, &a.BrandName,
			&m.Platform, &m.ExternalID, &m.URL, &m.Title, &m.BodyExcerpt,
			&m.Author, &m.Community, &pub, &m.RawPayload,
		); err != nil {
			return nil, fmt.Errorf("scanning pending alert: %w", err)
		}
		m.PublishedAt = pub
		a.Mention = m
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pending alerts: %w", err)
	}

	return alerts, nil
}

// MarkAlertSent records a confirmed delivery.
func (s *Store) MarkAlertSent(ctx context.Context, conn Executor, alertID int64) error {
	_, err := conn.Exec(ctx, `
		update public.alert_deliveries
		set status = 'sent',
		    sent_at = now(),
		    last_error = null,
		    updated_at = now()
		where id = $1
	`, alertID)
	if err != nil {
		return fmt.Errorf("marking alert sent: %w", err)
	}
	return nil
}

// MarkAlertRetry records a failed delivery attempt, moving the alert to
// dead_letter once retryCount reaches maxRetries.
func (s *Store) MarkAlertRetry(ctx context.Context, conn Executor, alertID int64, retryCount, maxRetries int, nextAttemptAt time.Time, errMessage string) error {
	finalStatus := "dead_letter"
	if retryCount < maxRetries {
		finalStatus = "failed"
	}

	_, err := conn.Exec(ctx, `
		update public.alert_deliveries
		set status = $1,
		    retry_count = $2,
		    next_attempt_at = $3,
		    last_error = $4,
		    updated_at = now()
		where id = $5
	`, finalStatus, retryCount, nextAttemptAt, truncate(errMessage, 800), alertID)
	if err != nil {
		return fmt.Errorf("marking alert retry: %w", err)
	}
	return nil
}
