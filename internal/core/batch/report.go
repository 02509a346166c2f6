package batch

import (
	"fmt"
	"strings"
	"time"
)

const reportDivider = "---------------------------------------------\n"

// BuildReport renders the processing report that goes into every archive,
// so the deliverable explains itself even with zero failures.
func BuildReport(startedAt time.Time, total int, convertToMP3 bool, result *Result) string {
	var b strings.Builder

	b.WriteString("Batch recording download report\n")
	fmt.Fprintf(&b, "Started at: %s\n", startedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Recordings requested: %d\n", total)
	fmt.Fprintf(&b, "MP3 conversion requested: %s\n", yesNo(convertToMP3))
	b.WriteString(reportDivider)

	fmt.Fprintf(&b, "Archived files: %d\n", len(result.Archived))

	if len(result.FailedDownloads) == 0 && len(result.FailedConversions) == 0 {
		b.WriteString("All recordings were downloaded")
		if convertToMP3 {
			b.WriteString(", converted")
		}
		b.WriteString(" and archived successfully.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Failed downloads: %d\n", len(result.FailedDownloads))
	for _, f := range result.FailedDownloads {
		fmt.Fprintf(&b, "  - %s (%s): %s\n", f.URL, orNA(f.Timestamp), f.Error)
	}

	fmt.Fprintf(&b, "Failed conversions (original file archived instead): %d\n", len(result.FailedConversions))
	for _, f := range result.FailedConversions {
		fmt.Fprintf(&b, "  - %s (%s) -> %s: %s\n", f.URL, orNA(f.Timestamp), f.Format, f.Error)
	}

	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
