// Package mention defines the types shared between source adapters, the
// data-access layer, and the pipeline: the candidate an adapter returns,
// and the persisted mention row it becomes.
package mention

import (
	"encoding/json"
	"time"
)

// MaxBodyExcerptLen is the hard cap on Candidate.BodyExcerpt. Adapters
// must truncate to this length after whitespace normalization.
const MaxBodyExcerptLen = 500

// Candidate is what a source adapter returns from Search: an
// externally-observed item not yet persisted. Identity is established by
// (Platform, ExternalID); repeated observations of the same logical item
// must yield the same ExternalID so the data-access layer's upsert is
// idempotent.
type Candidate struct {
	Platform     string
	ExternalID   string
	URL          string
	Title        string
	BodyExcerpt  string
	Author       string
	Community    string
	PublishedAt  time.Time
	RawPayload   json.RawMessage
}

// Row is a persisted mention as read back from storage. It carries the
// surrogate ID the Candidate doesn't have.
type Row struct {
	ID int64
	Candidate
	FetchedAt time.Time
}
