package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/deep1283/signalwatch/pkg/mention"
)

// UpsertMention inserts a mention or, if one with the same (platform,
// external_id) already exists, refreshes its mutable fields. Identity is
// established by the unique constraint on (platform, external_id), not
// the surrogate id, so repeated observations of the same item converge.
func (s *Store) UpsertMention(ctx context.Context, conn Executor, m mention.Candidate) (int64, error) {
	var id int64
	err := conn.QueryRow(ctx, `
		insert into public.mentions (
		  platform, external_id, url, title, body_excerpt, author,
		  community, published_at, raw_payload, fetched_at
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		on conflict (platform, external_id) do update
		set url = excluded.url,
		    title = excluded.title,
		    body_excerpt = excluded.body_excerpt,
		    author = excluded.author,
		    community = excluded.community,
		    published_at = excluded.published_at,
		    raw_payload = excluded.raw_payload,
		    fetched_at = now()
		returning id
	`,
		m.Platform, m.ExternalID, m.URL, m.Title, m.BodyExcerpt, m.Author,
		m.Community, m.PublishedAt, m.RawPayload,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting mention: %w", err)
	}
	return id, nil
}

// InsertMentionMatch records that a keyword matched a mention, returning
// false without error when that (user, mention, keyword) triple already
// exists — the idempotent no-op path repeated polling relies on.
func (s *Store) InsertMentionMatch(ctx context.Context, conn Executor, userID, keywordID uuid.UUID, brandID *uuid.UUID, mentionID int64, matchedQuery string) (bool, error) {
	var id int64
	err := conn.QueryRow(ctx, `
		insert into public.mention_matches
		  (user_id, keyword_id, brand_id, mention_id, matched_query)
		values ($1, $2, $3, $4, $5)
		on conflict (user_id, mention_id, keyword_id) do nothing
		returning id
	`, userID, keywordID, brandID, mentionID, matchedQuery).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("inserting mention match: %w", err)
	}
	return true, nil
}
