package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// stubRunner scripts the outcome of the ffmpeg invocation and captures
// its arguments.
type stubRunner struct {
	result     commandResult
	err        error
	sideEffect func(args []string)
	gotName    string
	gotArgs    []string
}

func (s *stubRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	s.gotName = name
	s.gotArgs = args
	if s.sideEffect != nil {
		s.sideEffect(args)
	}
	return s.result, s.err
}

func writeTempFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestToMP3InvokesFFmpegWithFixedProfile(t *testing.T) {
	dir := t.TempDir()
	in := writeTempFile(t, dir, "in.gsm")
	out := filepath.Join(dir, "out.mp3")

	runner := &stubRunner{sideEffect: func(args []string) {
		// ffmpeg writes the output as a side effect; the stub mimics it.
		if err := os.WriteFile(args[len(args)-1], []byte("mp3"), 0o644); err != nil {
			t.Fatalf("stub write: %v", err)
		}
	}}
	tr := NewTranscoderForTests("ffmpeg-test", runner, os.Stat)

	if err := tr.ToMP3(context.Background(), in, out); err != nil {
		t.Fatalf("ToMP3: %v", err)
	}
	if runner.gotName != "ffmpeg-test" {
		t.Fatalf("binary = %q", runner.gotName)
	}
	want := []string{"-i", in, "-acodec", "libmp3lame", "-ab", "128k", "-ar", "44100", "-y", out}
	if len(runner.gotArgs) != len(want) {
		t.Fatalf("args = %v, want %v", runner.gotArgs, want)
	}
	for i := range want {
		if runner.gotArgs[i] != want[i] {
			t.Fatalf("arg %d = %q, want %q", i, runner.gotArgs[i], want[i])
		}
	}
}

func TestToMP3MissingInput(t *testing.T) {
	runner := &stubRunner{}
	tr := NewTranscoderForTests("ffmpeg", runner, os.Stat)

	err := tr.ToMP3(context.Background(), filepath.Join(t.TempDir(), "absent.gsm"), "out.mp3")
	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("error = %v, want *ConversionError", err)
	}
	if runner.gotName != "" {
		t.Fatal("ffmpeg should not run when the input is missing")
	}
}

func TestToMP3ProcessFailure(t *testing.T) {
	dir := t.TempDir()
	in := writeTempFile(t, dir, "in.gsm")

	runner := &stubRunner{
		result: commandResult{ExitCode: 1, Stderr: "in.gsm: Invalid data found when processing input"},
		err:    errors.New("exit status 1"),
	}
	tr := NewTranscoderForTests("ffmpeg", runner, os.Stat)

	err := tr.ToMP3(context.Background(), in, filepath.Join(dir, "out.mp3"))
	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("error = %v, want *ConversionError", err)
	}
	if convErr.ExitCode != 1 {
		t.Fatalf("exit code = %d, want 1", convErr.ExitCode)
	}
	if !strings.Contains(convErr.Error(), "Invalid data") {
		t.Fatalf("error message misses stderr: %s", convErr.Error())
	}
}

func TestToMP3ZeroExitWithoutOutput(t *testing.T) {
	dir := t.TempDir()
	in := writeTempFile(t, dir, "in.gsm")

	// ffmpeg claims success but produced nothing.
	runner := &stubRunner{}
	tr := NewTranscoderForTests("ffmpeg", runner, os.Stat)

	err := tr.ToMP3(context.Background(), in, filepath.Join(dir, "out.mp3"))
	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("error = %v, want *ConversionError", err)
	}
}

func TestTrimStderrKeepsTail(t *testing.T) {
	long := strings.Repeat("x", 500) + "the actual error"
	got := trimStderr(long)
	if len(got) != 300 {
		t.Fatalf("len = %d, want 300", len(got))
	}
	if !strings.HasSuffix(got, "the actual error") {
		t.Fatal("tail of stderr was lost")
	}
}
