package job

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// brokenConn refuses every write, like a connection whose client hung up.
type brokenConn struct{}

func (brokenConn) Write([]byte) (int, error) { return 0, errors.New("connection reset by peer") }

// completedJob stores a completed record whose archive lives in a real
// scratch dir.
func completedJob(t *testing.T, repo Repository, jobID string, archive []byte) *Record {
	t.Helper()
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "recordings.zip")
	if err := os.WriteFile(archivePath, archive, 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	rec := &Record{
		ID:                jobID,
		Phase:             PhaseCompleted,
		ResultArchivePath: archivePath,
		WorkspacePath:     dir,
	}
	if err := repo.Put(context.Background(), rec); err != nil {
		t.Fatalf("put record: %v", err)
	}
	return rec
}

func TestDeliverArchiveKeepsJobWhenClientGone(t *testing.T) {
	repo := NewMemoryRepository()
	svc := testJobService(t, repo)
	h := NewHandler(svc)

	// Small enough to fit the response buffer: the copy succeeds and the
	// dead connection only shows up on the flush.
	rec := completedJob(t, repo, "j1", bytes.Repeat([]byte("z"), 1024))

	h.deliverArchive(bufio.NewWriterSize(brokenConn{}, 4096), "j1", rec.ResultArchivePath)

	if _, err := repo.Get(context.Background(), "j1"); err != nil {
		t.Fatalf("record gone although the client never received the archive: %v", err)
	}
	if _, err := os.Stat(rec.ResultArchivePath); err != nil {
		t.Fatalf("archive reclaimed although undelivered: %v", err)
	}
}

func TestDeliverArchiveReclaimsAfterFullStream(t *testing.T) {
	repo := NewMemoryRepository()
	svc := testJobService(t, repo)
	h := NewHandler(svc)

	content := bytes.Repeat([]byte("z"), 1024)
	rec := completedJob(t, repo, "j1", content)

	var conn bytes.Buffer
	h.deliverArchive(bufio.NewWriterSize(&conn, 4096), "j1", rec.ResultArchivePath)

	if !bytes.Equal(conn.Bytes(), content) {
		t.Fatalf("delivered %d bytes, want %d", conn.Len(), len(content))
	}
	if _, err := repo.Get(context.Background(), "j1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("record after delivery = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(rec.WorkspacePath); !os.IsNotExist(err) {
		t.Fatalf("workspace still present after delivery: %v", err)
	}
}

func TestDeliverArchiveInterruptedStreamAllowsRetry(t *testing.T) {
	repo := NewMemoryRepository()
	svc := testJobService(t, repo)
	h := NewHandler(svc)

	content := bytes.Repeat([]byte("z"), 1024)
	rec := completedJob(t, repo, "j1", content)

	// First attempt dies, second client gets the archive.
	h.deliverArchive(bufio.NewWriterSize(brokenConn{}, 4096), "j1", rec.ResultArchivePath)

	var conn bytes.Buffer
	h.deliverArchive(bufio.NewWriterSize(&conn, 4096), "j1", rec.ResultArchivePath)

	if !bytes.Equal(conn.Bytes(), content) {
		t.Fatalf("retry delivered %d bytes, want %d", conn.Len(), len(content))
	}
	if _, err := repo.Get(context.Background(), "j1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("record after successful retry = %v, want ErrNotFound", err)
	}
}
