package batch

import (
	"regexp"
	"strings"
	"time"

	"recfetch/internal/core/candidate"
	"recfetch/internal/core/provider"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_\-.]`)

// entryName computes the archive path for one recording: a date-partitioned
// folder plus a descriptive filename from timestamp and call metadata.
// Entries with an unparseable timestamp land together under unknown-date/.
func entryName(c candidate.Candidate, ext string) string {
	folder := "unknown-date"
	stamp := "unknown"
	if ts, err := time.Parse(provider.TimeLayout, c.Timestamp); err == nil {
		folder = ts.Format("2006/01/02")
		stamp = ts.Format("20060102_150405")
	}

	parts := []string{stamp}
	if owner := firstOf(c.OwnerExtension, c.OwnerName); owner != "" {
		parts = append(parts, sanitize(owner))
	}
	parts = append(parts, sanitize(c.Origin), sanitize(c.Destination))

	return folder + "/" + strings.Join(parts, "_") + ext
}

// sanitize strips characters that are illegal or hostile in filenames.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = unsafeChars.ReplaceAllString(s, "")
	if s == "" {
		return "na"
	}
	return s
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
