package batch

import (
	"bufio"
	"bytes"
	"errors"
	"os"
	"testing"

	"recfetch/internal/workspace"
)

// deadConn refuses every write, like a client that disconnected mid-
// download.
type deadConn struct{}

func (deadConn) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func streamingFixture(t *testing.T, size int) (*Handler, *workspace.Workspace, string, []byte) {
	t.Helper()
	manager := workspace.NewManager(t.TempDir())
	ws, err := manager.Create("stream")
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	content := bytes.Repeat([]byte("a"), size)
	filePath := ws.File("recordings.zip")
	if err := os.WriteFile(filePath, content, 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	return NewHandler(testService(t), nil, manager), ws, filePath, content
}

func TestStreamWorkspaceFileReleasesOnClientDisconnect(t *testing.T) {
	// Larger than the response buffer so the copy itself hits the dead
	// connection.
	h, ws, filePath, _ := streamingFixture(t, 64*1024)

	h.streamWorkspaceFile(bufio.NewWriterSize(deadConn{}, 4096), filePath, ws)

	if _, err := os.Stat(ws.Path()); !os.IsNotExist(err) {
		t.Fatalf("workspace still present after disconnect: %v", err)
	}
}

func TestStreamWorkspaceFileReleasesAfterFullStream(t *testing.T) {
	h, ws, filePath, content := streamingFixture(t, 64*1024)

	var conn bytes.Buffer
	h.streamWorkspaceFile(bufio.NewWriterSize(&conn, 4096), filePath, ws)

	if !bytes.Equal(conn.Bytes(), content) {
		t.Fatalf("streamed %d bytes, want %d", conn.Len(), len(content))
	}
	if _, err := os.Stat(ws.Path()); !os.IsNotExist(err) {
		t.Fatalf("workspace still present after streaming: %v", err)
	}

	// The disconnect path may fire on top of the completed one.
	ws.Release()
}
