package batch

import (
	"strings"
	"testing"

	"recfetch/internal/core/candidate"
)

func TestEntryNameDatePartitionAndParts(t *testing.T) {
	c := candidate.Candidate{
		Timestamp:      "2024-05-01 13:45:30",
		Origin:         "11999990000",
		Destination:    "2001",
		OwnerExtension: "2001",
	}
	got := entryName(c, ".mp3")
	want := "2024/05/01/20240501_134530_2001_11999990000_2001.mp3"
	if got != want {
		t.Fatalf("entry name = %q, want %q", got, want)
	}
}

func TestEntryNameUnparseableTimestamp(t *testing.T) {
	c := candidate.Candidate{Timestamp: "yesterday", Origin: "a", Destination: "b"}
	got := entryName(c, ".gsm")
	if !strings.HasPrefix(got, "unknown-date/unknown_") {
		t.Fatalf("entry name = %q, want unknown-date/unknown_ prefix", got)
	}
}

func TestEntryNamePrefersExtensionOverOperatorName(t *testing.T) {
	c := candidate.Candidate{
		Timestamp:      "2024-05-01 13:45:30",
		Origin:         "x",
		Destination:    "y",
		OwnerExtension: "2001",
		OwnerName:      "Ana Souza",
	}
	if got := entryName(c, ".mp3"); !strings.Contains(got, "_2001_") {
		t.Fatalf("entry name = %q, want the extension as owner", got)
	}

	c.OwnerExtension = ""
	if got := entryName(c, ".mp3"); !strings.Contains(got, "_Ana_Souza_") {
		t.Fatalf("entry name = %q, want the sanitized operator name", got)
	}
}

func TestSanitizeStripsHostileCharacters(t *testing.T) {
	cases := map[string]string{
		"11 9999-0000":      "11_9999-0000",
		"a/b\\c":            "abc",
		"ção":               "o",
		"..":                "..",
		"":                  "na",
		"<script>alert</x>": "scriptalertx",
	}
	for in, want := range cases {
		if got := sanitize(in); got != want {
			t.Fatalf("sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}
