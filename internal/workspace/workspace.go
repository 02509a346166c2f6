package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"recfetch/internal/logger"
)

// Manager creates per-request scratch directories under a common base dir.
type Manager struct {
	baseDir string
	log     *logger.Logger
}

func NewManager(baseDir string) *Manager {
	return &Manager{baseDir: baseDir, log: logger.New("Workspace")}
}

// Create makes a uniquely named scratch directory for the given request or
// job id. Concurrent batches never share a directory.
func (m *Manager) Create(id string) (*Workspace, error) {
	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace base %s: %w", m.baseDir, err)
	}
	dir, err := os.MkdirTemp(m.baseDir, "batch-"+id+"-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace for %s: %w", id, err)
	}
	return &Workspace{dir: dir, log: m.log}, nil
}

// Workspace is a scratch directory owned by exactly one batch. All
// intermediate files live here until Release removes the whole tree.
type Workspace struct {
	dir     string
	log     *logger.Logger
	release sync.Once
}

func (w *Workspace) Path() string { return w.dir }

// File returns the path for a named file inside the workspace.
func (w *Workspace) File(name string) string {
	return filepath.Join(w.dir, name)
}

// Release removes the scratch directory. Safe to call from multiple exit
// paths: only the first call does work, later calls are no-ops.
func (w *Workspace) Release() {
	w.release.Do(func() {
		if err := os.RemoveAll(w.dir); err != nil {
			w.log.LogErrorf("failed to remove workspace %s: %v", w.dir, err)
			return
		}
		w.log.LogDebugf("workspace %s released", w.dir)
	})
}
