package batch

import (
	"strings"
	"testing"
	"time"

	"recfetch/internal/core/archive"
)

func TestBuildReportFullSuccess(t *testing.T) {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	result := &Result{Archived: []archive.Entry{{Name: "a"}, {Name: "b"}}}

	report := BuildReport(started, 2, true, result)

	for _, want := range []string{
		"Recordings requested: 2",
		"MP3 conversion requested: yes",
		"Archived files: 2",
		"downloaded, converted and archived successfully",
	} {
		if !strings.Contains(report, want) {
			t.Fatalf("report misses %q:\n%s", want, report)
		}
	}
	if strings.Contains(report, "Failed downloads") {
		t.Fatalf("full success report should not list failures:\n%s", report)
	}
}

func TestBuildReportListsFailures(t *testing.T) {
	result := &Result{
		Archived: []archive.Entry{{Name: "a"}},
		FailedDownloads: []FailedDownload{
			{URL: "https://x/1.gsm", Timestamp: "2024-05-01 10:00:00", Error: "status 404"},
			{URL: "https://x/2.gsm", Error: "timeout"},
		},
		FailedConversions: []FailedConversion{
			{URL: "https://x/3.gsm", Timestamp: "2024-05-01 11:00:00", Error: "exit 1", Format: "mp3"},
		},
	}

	report := BuildReport(time.Now(), 4, true, result)

	for _, want := range []string{
		"Failed downloads: 2",
		"https://x/1.gsm (2024-05-01 10:00:00): status 404",
		"https://x/2.gsm (N/A): timeout",
		"Failed conversions (original file archived instead): 1",
		"https://x/3.gsm (2024-05-01 11:00:00) -> mp3: exit 1",
	} {
		if !strings.Contains(report, want) {
			t.Fatalf("report misses %q:\n%s", want, report)
		}
	}
}

func TestBuildReportWithoutConversion(t *testing.T) {
	result := &Result{Archived: []archive.Entry{{Name: "a"}}}
	report := BuildReport(time.Now(), 1, false, result)
	if !strings.Contains(report, "MP3 conversion requested: no") {
		t.Fatalf("report misses conversion flag:\n%s", report)
	}
	if strings.Contains(report, ", converted") {
		t.Fatalf("no-conversion report should not mention conversion:\n%s", report)
	}
}
