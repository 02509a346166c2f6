package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"recfetch/internal/core/batch"
	"recfetch/internal/core/candidate"
	"recfetch/internal/logger"
	"recfetch/internal/workspace"
)

// TaskTypeBatch is the asynq task type for one background batch job.
const TaskTypeBatch = "batch:download"

// ErrAlreadyTerminal is returned when cancelling a job that already
// completed, failed or was cancelled.
var ErrAlreadyTerminal = errors.New("job is already in a terminal phase")

// ErrNotReady is returned when fetching the result of a job that has not
// completed.
var ErrNotReady = errors.New("job result is not ready")

// Payload is the asynq task body for a batch job.
type Payload struct {
	JobID        string                `json:"job_id"`
	Recordings   []candidate.Candidate `json:"recordings"`
	ConvertToMP3 bool                  `json:"convert_to_mp3"`
}

// Enqueuer puts a task on the background queue. *tasks.Client is the
// production implementation.
type Enqueuer interface {
	Enqueue(task *asynq.Task, queue string, maxRetries int) error
}

// Service runs batch jobs in the background and tracks their state in the
// injected repository.
type Service struct {
	repo       Repository
	tasks      Enqueuer
	batch      *batch.Service
	workspaces *workspace.Manager
	// maxRetries defaults to zero: a half-finished batch must not be
	// re-run by the queue.
	maxRetries int
	log        *logger.Logger
}

func NewService(repo Repository, taskClient Enqueuer, batchSvc *batch.Service, workspaces *workspace.Manager, maxRetries int) *Service {
	return &Service{
		repo:       repo,
		tasks:      taskClient,
		batch:      batchSvc,
		workspaces: workspaces,
		maxRetries: maxRetries,
		log:        logger.New("JobService"),
	}
}

// Submit registers a pending job and enqueues its background task. It does
// no network or disk I/O itself and returns as soon as the task is queued.
func (s *Service) Submit(ctx context.Context, recordings []candidate.Candidate, convertToMP3 bool) (string, error) {
	jobID := uuid.NewString()
	rec := &Record{
		ID:           jobID,
		Phase:        PhasePending,
		ConvertToMP3: convertToMP3,
		Total:        len(recordings),
		StartedAt:    time.Now().UTC(),
	}
	if err := s.repo.Put(ctx, rec); err != nil {
		return "", err
	}

	payload, err := json.Marshal(Payload{JobID: jobID, Recordings: recordings, ConvertToMP3: convertToMP3})
	if err != nil {
		return "", err
	}
	if err := s.tasks.Enqueue(asynq.NewTask(TaskTypeBatch, payload), "default", s.maxRetries); err != nil {
		_ = s.repo.Delete(ctx, jobID)
		return "", fmt.Errorf("enqueue batch task: %w", err)
	}

	s.log.LogInfof("job %s submitted: %d recordings, convert=%v", jobID, len(recordings), convertToMP3)
	return jobID, nil
}

// Status returns the current record for a job.
func (s *Service) Status(ctx context.Context, jobID string) (*Record, error) {
	return s.repo.Get(ctx, jobID)
}

// RequestCancel flips the cancellation flag. The job observes it at its
// next checkpoint; nothing in flight is forcibly aborted.
func (s *Service) RequestCancel(ctx context.Context, jobID string) error {
	_, err := s.repo.Update(ctx, jobID, func(rec *Record) error {
		if rec.Phase.Terminal() {
			return ErrAlreadyTerminal
		}
		rec.CancelRequested = true
		return nil
	})
	return err
}

// Result returns the completed job's record, or ErrNotReady.
func (s *Service) Result(ctx context.Context, jobID string) (*Record, error) {
	rec, err := s.repo.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if rec.Phase != PhaseCompleted || rec.ResultArchivePath == "" {
		return nil, ErrNotReady
	}
	return rec, nil
}

// FinishDelivery reclaims everything once the client has fully streamed
// the archive: the scratch workspace (which holds the archive) and the
// record itself.
func (s *Service) FinishDelivery(ctx context.Context, jobID string) {
	rec, err := s.repo.Get(ctx, jobID)
	if err != nil {
		return
	}
	if rec.WorkspacePath != "" {
		if err := os.RemoveAll(rec.WorkspacePath); err != nil {
			s.log.LogErrorf("job %s: failed to remove workspace %s: %v", jobID, rec.WorkspacePath, err)
		}
	}
	if err := s.repo.Delete(ctx, jobID); err != nil {
		s.log.LogErrorf("job %s: failed to delete record: %v", jobID, err)
		return
	}
	s.log.LogInfof("job %s delivered and reclaimed", jobID)
}

// HandleBatchTask is the asynq worker entry point for one job. Business
// failures are recorded on the job and reported as success to the queue;
// only payload corruption is a task error.
func (s *Service) HandleBatchTask(ctx context.Context, task *asynq.Task) error {
	var p Payload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("decode batch payload: %w", err)
	}
	s.run(ctx, p)
	return nil
}

func (s *Service) run(ctx context.Context, p Payload) {
	if err := s.transition(ctx, p.JobID, PhaseDownloading); err != nil {
		s.log.LogErrorf("job %s: %v", p.JobID, err)
		return
	}

	ws, err := s.workspaces.Create(p.JobID)
	if err != nil {
		s.fail(ctx, p.JobID, err)
		return
	}

	startedAt := time.Now()
	sink := &repoSink{svc: s, jobID: p.JobID}
	result, runErr := s.batch.Run(ctx, p.Recordings, p.ConvertToMP3, ws.Path(), sink, func() bool {
		return s.cancelRequested(ctx, p.JobID)
	})

	if s.cancelRequested(ctx, p.JobID) {
		// Already-downloaded files are not unwound mid-flight; the whole
		// workspace goes at once.
		ws.Release()
		s.finishCancelled(ctx, p.JobID)
		return
	}
	if runErr != nil {
		ws.Release()
		s.fail(ctx, p.JobID, runErr)
		return
	}

	if err := s.transition(ctx, p.JobID, PhaseArchiving); err != nil {
		ws.Release()
		s.log.LogErrorf("job %s: %v", p.JobID, err)
		return
	}

	report := batch.BuildReport(startedAt, len(p.Recordings), p.ConvertToMP3, result)
	archivePath := ws.File("recordings.zip")
	if err := batch.WriteArchive(result, report, archivePath); err != nil {
		ws.Release()
		s.fail(ctx, p.JobID, err)
		return
	}

	// The workspace is deliberately NOT released here: the archive stays
	// on disk until the client collects it (or an operator cleans up).
	now := time.Now().UTC()
	_, err = s.repo.Update(ctx, p.JobID, func(rec *Record) error {
		rec.Phase = PhaseCompleted
		rec.ResultArchivePath = archivePath
		rec.WorkspacePath = ws.Path()
		rec.EndedAt = &now
		return nil
	})
	if err != nil {
		s.log.LogErrorf("job %s: failed to record completion: %v", p.JobID, err)
		return
	}
	s.log.LogSuccessf("job %s completed: %d archived, %d download failures, %d conversion failures",
		p.JobID, len(result.Archived), len(result.FailedDownloads), len(result.FailedConversions))
}

func (s *Service) transition(ctx context.Context, jobID string, to Phase) error {
	_, err := s.repo.Update(ctx, jobID, func(rec *Record) error {
		if !ValidTransition(rec.Phase, to) {
			return fmt.Errorf("invalid transition: %s -> %s", rec.Phase, to)
		}
		rec.Phase = to
		return nil
	})
	return err
}

func (s *Service) fail(ctx context.Context, jobID string, cause error) {
	now := time.Now().UTC()
	_, err := s.repo.Update(ctx, jobID, func(rec *Record) error {
		rec.Phase = PhaseFailed
		rec.Error = cause.Error()
		rec.EndedAt = &now
		return nil
	})
	if err != nil {
		s.log.LogErrorf("job %s: failed to record failure %q: %v", jobID, cause, err)
		return
	}
	s.log.LogErrorf("job %s failed: %v", jobID, cause)
}

func (s *Service) finishCancelled(ctx context.Context, jobID string) {
	now := time.Now().UTC()
	_, err := s.repo.Update(ctx, jobID, func(rec *Record) error {
		rec.Phase = PhaseCancelled
		rec.EndedAt = &now
		return nil
	})
	if err != nil {
		s.log.LogErrorf("job %s: failed to record cancellation: %v", jobID, err)
		return
	}
	s.log.LogInfof("job %s cancelled", jobID)
}

func (s *Service) cancelRequested(ctx context.Context, jobID string) bool {
	rec, err := s.repo.Get(ctx, jobID)
	if err != nil {
		return false
	}
	return rec.CancelRequested
}

// repoSink streams per-item progress into the job record so status polls
// see live counters. The first conversion moves the phase forward.
type repoSink struct {
	svc   *Service
	jobID string
}

func (s *repoSink) Downloaded() {
	_, _ = s.svc.repo.Update(context.Background(), s.jobID, func(rec *Record) error {
		rec.Downloaded++
		return nil
	})
}

func (s *repoSink) Converted() {
	_, _ = s.svc.repo.Update(context.Background(), s.jobID, func(rec *Record) error {
		rec.Converted++
		if rec.Phase == PhaseDownloading {
			rec.Phase = PhaseConverting
		}
		return nil
	})
}

func (s *repoSink) DownloadFailed(f batch.FailedDownload) {
	_, _ = s.svc.repo.Update(context.Background(), s.jobID, func(rec *Record) error {
		rec.FailedDownloads = append(rec.FailedDownloads, f)
		return nil
	})
}

func (s *repoSink) ConversionFailed(f batch.FailedConversion) {
	_, _ = s.svc.repo.Update(context.Background(), s.jobID, func(rec *Record) error {
		rec.FailedConversions = append(rec.FailedConversions, f)
		return nil
	})
}
