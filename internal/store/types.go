package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/deep1283/signalwatch/pkg/mention"
)

// SourceTask is one due (keyword, source) pair returned by
// FetchDueSourceTasks: a keyword a user wants polled against a
// particular source, joined against that pair's polling state.
type SourceTask struct {
	KeywordID      uuid.UUID
	UserID         uuid.UUID
	BrandID        *uuid.UUID
	Query          string
	Source         string
	LastCheckedAt  *time.Time
}

// PendingAlert is one alert_deliveries row ready to attempt, joined with
// enough context (webhook destination, keyword, brand, mention) to render
// and send a notification without a second round trip.
type PendingAlert struct {
	AlertID    int64
	RetryCount int
	UserID     uuid.UUID
	KeywordID  uuid.UUID
	WebhookURL string
	Query      string
	BrandName  string
	Mention    mention.Candidate
}
