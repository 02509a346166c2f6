package provider

import (
	"context"
	"fmt"
	"time"
)

// FetchAll collects every record in [q.Start, q.End]. The API has no
// offset cursor, so the window start advances to the latest seen timestamp
// plus one second after each page, until a page comes back empty or the
// window moves past q.End.
//
// Any page-level failure aborts the whole fetch: the caller gets the error,
// never a silently truncated result. Hitting MaxPages is the one exception,
// logged as a warning and returning what was accumulated, since it means
// the upstream is no longer advancing.
func (c *Client) FetchAll(ctx context.Context, q Query) ([]CallRecord, error) {
	var all []CallRecord
	windowStart := q.Start

	for page := 1; ; page++ {
		if page > c.maxPages {
			c.log.LogWarnf("stopping after %d pages, upstream window is not advancing; results may be incomplete (%d records)", c.maxPages, len(all))
			break
		}

		records, err := c.FetchPage(ctx, q, windowStart)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d (window from %s): %w", page, windowStart.Format(TimeLayout), err)
		}
		if len(records) == 0 {
			break
		}
		all = append(all, records...)
		c.log.LogDebugf("page %d: %d records, %d accumulated", page, len(records), len(all))

		latest, ok := maxTimestamp(records)
		if !ok {
			if len(records) >= c.pageLimit {
				return nil, &MalformedRecordError{Page: page}
			}
			// Partial page with no usable timestamps: nothing left to
			// advance to, the window is exhausted.
			break
		}

		windowStart = latest.Add(time.Second)
		if windowStart.After(q.End) {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pageDelay):
		}
	}

	return all, nil
}

func maxTimestamp(records []CallRecord) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, r := range records {
		ts, ok := r.Timestamp()
		if !ok {
			continue
		}
		if !found || ts.After(latest) {
			latest = ts
			found = true
		}
	}
	return latest, found
}
