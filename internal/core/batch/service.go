package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"recfetch/internal/core/archive"
	"recfetch/internal/core/candidate"
	"recfetch/internal/core/convert"
	"recfetch/internal/logger"
)

// ErrNoFilesProduced distinguishes "every candidate failed" from a fatal
// error, so callers can answer "nothing to deliver" instead of a generic
// failure.
var ErrNoFilesProduced = errors.New("no files were produced by the batch")

// FailedDownload records one recording that could not be fetched.
type FailedDownload struct {
	URL       string `json:"url"`
	Timestamp string `json:"datahora"`
	Error     string `json:"error"`
}

// FailedConversion records one recording whose transcode failed. The
// original file is still archived as a fallback.
type FailedConversion struct {
	URL       string `json:"url"`
	Timestamp string `json:"datahora"`
	Error     string `json:"error"`
	Format    string `json:"format"`
}

// Result is the orchestrator's manifest: what to archive and what failed.
type Result struct {
	Archived          []archive.Entry
	FailedDownloads   []FailedDownload
	FailedConversions []FailedConversion
}

// ProgressSink receives per-item progress from whichever worker processed
// the item. Implementations must be safe for concurrent use.
type ProgressSink interface {
	Downloaded()
	Converted()
	DownloadFailed(FailedDownload)
	ConversionFailed(FailedConversion)
}

// NopSink is the sink for synchronous flows that report nothing.
type NopSink struct{}

func (NopSink) Downloaded()                       {}
func (NopSink) Converted()                        {}
func (NopSink) DownloadFailed(FailedDownload)     {}
func (NopSink) ConversionFailed(FailedConversion) {}

// Service downloads candidate recordings concurrently, optionally
// transcoding each to MP3, and produces the manifest of files to archive.
type Service struct {
	http        *http.Client
	transcoder  *convert.Transcoder
	concurrency int
	log         *logger.Logger
}

func NewService(transcoder *convert.Transcoder, concurrency int, downloadTimeout time.Duration) *Service {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Service{
		http:        &http.Client{Timeout: downloadTimeout},
		transcoder:  transcoder,
		concurrency: concurrency,
		log:         logger.New("BatchService"),
	}
}

// Run processes every candidate independently: a failed item is recorded
// and never aborts the batch. Temp files live in workDir until the whole
// workspace is torn down, so the archiver never races a deletion. Returns
// ErrNoFilesProduced when zero candidates survive.
//
// cancelled is checked before starting each candidate and before each
// conversion; in-flight transfers are not aborted.
func (s *Service) Run(ctx context.Context, candidates []candidate.Candidate, convertToMP3 bool, workDir string, sink ProgressSink, cancelled func() bool) (*Result, error) {
	if sink == nil {
		sink = NopSink{}
	}
	if cancelled == nil {
		cancelled = func() bool { return false }
	}

	result := &Result{}
	var mu sync.Mutex

	work := make(chan candidate.Candidate)
	var wg sync.WaitGroup
	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cand := range work {
				if cancelled() {
					continue
				}
				entry, failedDL, failedConv := s.processOne(ctx, cand, convertToMP3, workDir, cancelled)
				mu.Lock()
				if failedDL != nil {
					result.FailedDownloads = append(result.FailedDownloads, *failedDL)
				}
				if failedConv != nil {
					result.FailedConversions = append(result.FailedConversions, *failedConv)
				}
				if entry != nil {
					result.Archived = append(result.Archived, *entry)
				}
				mu.Unlock()
				if failedDL != nil {
					sink.DownloadFailed(*failedDL)
				}
				if failedConv != nil {
					sink.ConversionFailed(*failedConv)
				}
				if entry != nil {
					sink.Downloaded()
					// Only a produced .mp3 counts as converted; the
					// cancellation checkpoint can skip the transcode
					// without recording a failure.
					if strings.HasSuffix(entry.Name, ".mp3") {
						sink.Converted()
					}
				}
			}
		}()
	}

	for _, cand := range candidates {
		work <- cand
	}
	close(work)
	wg.Wait()

	s.log.LogInfof("batch finished: %d archived, %d download failures, %d conversion failures",
		len(result.Archived), len(result.FailedDownloads), len(result.FailedConversions))

	if len(result.Archived) == 0 {
		return result, ErrNoFilesProduced
	}
	return result, nil
}

// processOne runs the download -> convert -> name sequence for a single
// candidate. Order within one candidate is fixed; across candidates there
// is none.
func (s *Service) processOne(ctx context.Context, cand candidate.Candidate, convertToMP3 bool, workDir string, cancelled func() bool) (*archive.Entry, *FailedDownload, *FailedConversion) {
	// Unique per candidate: identical timestamps must not collide.
	localPath := fmt.Sprintf("%s/%s.gsm", workDir, uuid.NewString())

	if err := s.download(ctx, cand.SourceURL, localPath); err != nil {
		s.log.LogWarnf("download failed for %s: %v", cand.SourceURL, err)
		return nil, &FailedDownload{URL: cand.SourceURL, Timestamp: cand.Timestamp, Error: err.Error()}, nil
	}

	archivePath := localPath
	ext := ".gsm"
	var failedConv *FailedConversion

	if convertToMP3 && !cancelled() {
		mp3Path := fmt.Sprintf("%s/%s.mp3", workDir, uuid.NewString())
		if err := s.transcoder.ToMP3(ctx, localPath, mp3Path); err != nil {
			s.log.LogWarnf("conversion failed for %s, archiving original: %v", cand.SourceURL, err)
			failedConv = &FailedConversion{URL: cand.SourceURL, Timestamp: cand.Timestamp, Error: err.Error(), Format: "mp3"}
		} else {
			archivePath = mp3Path
			ext = ".mp3"
		}
	}

	entry := archive.Entry{Name: entryName(cand, ext), FilePath: archivePath}
	return &entry, nil, failedConv
}

// WriteArchive assembles the batch result plus its report into a zip at
// archivePath. Shared by the synchronous handler and the async job worker.
func WriteArchive(result *Result, report, archivePath string) error {
	return archive.AssembleToFile(result.Archived, report, archivePath)
}

// download fetches url into destPath. A non-2xx status, an empty body, or
// a timeout all count as a failed download for this one candidate.
func (s *Service) download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create local file: %w", err)
	}
	written, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write local file: %w", err)
	}
	if written == 0 {
		return errors.New("empty response body")
	}
	return nil
}
