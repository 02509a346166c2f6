package job

import (
	"time"

	"recfetch/internal/core/batch"
)

// Phase is the closed set of states one async batch moves through.
// Transitions are monotonic except the explicit cancellation path.
type Phase string

const (
	PhasePending     Phase = "pending"
	PhaseDownloading Phase = "downloading"
	PhaseConverting  Phase = "converting"
	PhaseArchiving   Phase = "archiving"
	PhaseCompleted   Phase = "completed"
	PhaseFailed      Phase = "failed"
	PhaseCancelled   Phase = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseFailed, PhaseCancelled:
		return true
	default:
		return false
	}
}

// ValidTransition enforces the job state machine edges. Converting is
// optional (skipped when no conversion was requested), cancellation and
// failure are reachable from every non-terminal phase.
func ValidTransition(from, to Phase) bool {
	if from.Terminal() {
		return false
	}
	if to == PhaseCancelled || to == PhaseFailed {
		return true
	}
	switch from {
	case PhasePending:
		return to == PhaseDownloading
	case PhaseDownloading:
		return to == PhaseConverting || to == PhaseArchiving
	case PhaseConverting:
		return to == PhaseArchiving
	case PhaseArchiving:
		return to == PhaseCompleted
	default:
		return false
	}
}

// Record is the mutable state of one asynchronous batch operation. All
// mutation goes through Repository.Update; the worker owning the job and
// the cancellation endpoint are the only writers.
type Record struct {
	ID           string `json:"job_id"`
	Phase        Phase  `json:"phase"`
	ConvertToMP3 bool   `json:"convert_to_mp3"`

	Total      int `json:"total"`
	Downloaded int `json:"downloaded"`
	Converted  int `json:"converted"`

	FailedDownloads   []batch.FailedDownload   `json:"failed_downloads,omitempty"`
	FailedConversions []batch.FailedConversion `json:"failed_conversions,omitempty"`

	// ResultArchivePath is set exactly once, when archiving completes;
	// non-empty if and only if Phase is completed.
	ResultArchivePath string `json:"result_archive_path,omitempty"`
	// WorkspacePath is kept so delivery can release the scratch dir.
	WorkspacePath string `json:"workspace_path,omitempty"`
	// Error is set exactly once, on fatal failure.
	Error string `json:"error,omitempty"`

	CancelRequested bool `json:"cancel_requested"`

	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Snapshot is the externally visible view of a Record, without host-local
// filesystem paths.
type Snapshot struct {
	ID                string                   `json:"processId"`
	Phase             Phase                    `json:"phase"`
	Total             int                      `json:"total"`
	Downloaded        int                      `json:"downloaded"`
	Converted         int                      `json:"converted"`
	FailedDownloads   []batch.FailedDownload   `json:"failedDownloads"`
	FailedConversions []batch.FailedConversion `json:"failedConversions"`
	ResultReady       bool                     `json:"resultReady"`
	Error             string                   `json:"error,omitempty"`
	StartedAt         time.Time                `json:"startedAt"`
	EndedAt           *time.Time               `json:"endedAt,omitempty"`
}

func (r *Record) Snapshot() Snapshot {
	failedDL := r.FailedDownloads
	if failedDL == nil {
		failedDL = []batch.FailedDownload{}
	}
	failedConv := r.FailedConversions
	if failedConv == nil {
		failedConv = []batch.FailedConversion{}
	}
	return Snapshot{
		ID:                r.ID,
		Phase:             r.Phase,
		Total:             r.Total,
		Downloaded:        r.Downloaded,
		Converted:         r.Converted,
		FailedDownloads:   failedDL,
		FailedConversions: failedConv,
		ResultReady:       r.Phase == PhaseCompleted && r.ResultArchivePath != "",
		Error:             r.Error,
		StartedAt:         r.StartedAt,
		EndedAt:           r.EndedAt,
	}
}
