package job

import (
	"testing"

	"recfetch/internal/core/batch"
)

func TestPhaseTransitions(t *testing.T) {
	allowed := []struct{ from, to Phase }{
		{PhasePending, PhaseDownloading},
		{PhaseDownloading, PhaseConverting},
		{PhaseDownloading, PhaseArchiving},
		{PhaseConverting, PhaseArchiving},
		{PhaseArchiving, PhaseCompleted},
		{PhasePending, PhaseFailed},
		{PhaseDownloading, PhaseCancelled},
		{PhaseArchiving, PhaseFailed},
	}
	for _, tr := range allowed {
		if !ValidTransition(tr.from, tr.to) {
			t.Fatalf("%s -> %s should be allowed", tr.from, tr.to)
		}
	}

	denied := []struct{ from, to Phase }{
		{PhasePending, PhaseArchiving},
		{PhasePending, PhaseCompleted},
		{PhaseConverting, PhaseDownloading},
		{PhaseCompleted, PhaseCancelled},
		{PhaseFailed, PhaseDownloading},
		{PhaseCancelled, PhaseFailed},
		{PhaseArchiving, PhaseDownloading},
	}
	for _, tr := range denied {
		if ValidTransition(tr.from, tr.to) {
			t.Fatalf("%s -> %s should be rejected", tr.from, tr.to)
		}
	}
}

func TestPhaseTerminal(t *testing.T) {
	for p, want := range map[Phase]bool{
		PhasePending:     false,
		PhaseDownloading: false,
		PhaseConverting:  false,
		PhaseArchiving:   false,
		PhaseCompleted:   true,
		PhaseFailed:      true,
		PhaseCancelled:   true,
	} {
		if p.Terminal() != want {
			t.Fatalf("%s.Terminal() = %v, want %v", p, p.Terminal(), want)
		}
	}
}

func TestSnapshotHidesPathsAndFillsSlices(t *testing.T) {
	rec := &Record{
		ID:                "j1",
		Phase:             PhaseCompleted,
		Total:             3,
		Downloaded:        2,
		ResultArchivePath: "/data/batch-x/recordings.zip",
		WorkspacePath:     "/data/batch-x",
	}
	snap := rec.Snapshot()

	if !snap.ResultReady {
		t.Fatal("completed job with archive must report resultReady")
	}
	if snap.FailedDownloads == nil || snap.FailedConversions == nil {
		t.Fatal("snapshot failure lists must be non-nil for JSON clients")
	}
	if snap.ID != "j1" || snap.Total != 3 || snap.Downloaded != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestSnapshotNotReadyWithoutArchive(t *testing.T) {
	rec := &Record{ID: "j1", Phase: PhaseArchiving}
	if rec.Snapshot().ResultReady {
		t.Fatal("archiving job must not report resultReady")
	}

	rec = &Record{ID: "j1", Phase: PhaseFailed, FailedDownloads: []batch.FailedDownload{{URL: "u"}}}
	snap := rec.Snapshot()
	if snap.ResultReady {
		t.Fatal("failed job must not report resultReady")
	}
	if len(snap.FailedDownloads) != 1 {
		t.Fatalf("failure list = %+v", snap.FailedDownloads)
	}
}
