package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"recfetch/internal/logger"
)

// ConversionError carries the ffmpeg invocation context for one failed
// transcode. These are recorded per recording and never abort a batch.
type ConversionError struct {
	Input    string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ConversionError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("ffmpeg failed for %s (exit %d): %s", filepath.Base(e.Input), e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("ffmpeg failed for %s: %v", filepath.Base(e.Input), e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// commandResult is an internal process execution response.
type commandResult struct {
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{Stderr: stderr.String(), ExitCode: 0}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// Transcoder converts provider audio (GSM) to MP3 through an external
// ffmpeg binary.
type Transcoder struct {
	ffmpegPath string
	runner     commandRunner
	stat       func(name string) (os.FileInfo, error)
	log        *logger.Logger
}

func NewTranscoder(ffmpegPath string) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Transcoder{
		ffmpegPath: ffmpegPath,
		runner:     &execRunner{},
		stat:       os.Stat,
		log:        logger.New("Transcoder"),
	}
}

// NewTranscoderForTests constructs a transcoder with injectable process
// execution and filesystem checks.
func NewTranscoderForTests(ffmpegPath string, runner commandRunner, stat func(string) (os.FileInfo, error)) *Transcoder {
	return &Transcoder{ffmpegPath: ffmpegPath, runner: runner, stat: stat, log: logger.New("Transcoder")}
}

// ToMP3 converts inputPath into outputPath. Success means the process
// exited zero and the output file exists; anything else is a
// ConversionError.
func (t *Transcoder) ToMP3(ctx context.Context, inputPath, outputPath string) error {
	if _, err := t.stat(inputPath); err != nil {
		return &ConversionError{Input: inputPath, ExitCode: -1, Err: fmt.Errorf("input file missing: %w", err)}
	}

	args := []string{
		"-i", inputPath,
		"-acodec", "libmp3lame",
		"-ab", "128k",
		"-ar", "44100",
		"-y",
		outputPath,
	}

	result, err := t.runner.Run(ctx, t.ffmpegPath, args...)
	if err != nil {
		return &ConversionError{Input: inputPath, ExitCode: result.ExitCode, Stderr: trimStderr(result.Stderr), Err: err}
	}
	if _, err := t.stat(outputPath); err != nil {
		return &ConversionError{Input: inputPath, ExitCode: result.ExitCode, Stderr: trimStderr(result.Stderr), Err: fmt.Errorf("ffmpeg exited zero but output is missing: %w", err)}
	}

	t.log.LogDebugf("converted %s -> %s", filepath.Base(inputPath), filepath.Base(outputPath))
	return nil
}

// trimStderr keeps error records readable; ffmpeg writes its whole banner
// and progress to stderr.
func trimStderr(s string) string {
	const max = 300
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
