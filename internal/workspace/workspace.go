package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"explainer/internal/logging"
	"explainer/internal/services"
	"explainer/internal/textutil"
)

const (
	runDirPrefix = "run-"
	lockFileName = ".lock"
)

// ErrExists reports a run directory that is already allocated.
var ErrExists = errors.New("run directory already exists")

// Manager allocates and reclaims run directories beneath a root.
type Manager struct {
	root   string
	logger *slog.Logger
}

// NewManager constructs a manager rooted at root.
func NewManager(root string, logger *slog.Logger) *Manager {
	return &Manager{
		root:   strings.TrimSpace(root),
		logger: logging.NewComponentLogger(logger, "workspace"),
	}
}

// Root returns the directory that holds run directories.
func (m *Manager) Root() string {
	return m.root
}

// Dir is one run's scratch directory. It stays locked until Release.
type Dir struct {
	RunID string
	Path  string

	mu       sync.Mutex
	lock     *flock.Flock
	released bool
}

// Allocate creates and locks run-<runID>. It fails if the directory exists.
func (m *Manager) Allocate(runID string) (*Dir, error) {
	if m.root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "init", "allocate workspace", "work directory not configured", nil)
	}
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, fmt.Errorf("create work root: %w", err)
	}
	path := filepath.Join(m.root, runDirPrefix+textutil.SanitizeToken(runID))
	if err := os.Mkdir(path, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrExists, path)
		}
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	lock := flock.New(filepath.Join(path, lockFileName))
	locked, err := lock.TryLock()
	if err != nil || !locked {
		_ = os.RemoveAll(path)
		if err == nil {
			err = errors.New("lock held by another process")
		}
		return nil, fmt.Errorf("lock run directory: %w", err)
	}

	m.logger.Debug("run directory allocated",
		logging.String(logging.FieldRunID, runID),
		logging.String("path", path),
	)
	return &Dir{RunID: runID, Path: path, lock: lock}, nil
}

// SegmentPath returns the file for the segment at position index.
func (d *Dir) SegmentPath(index int) string {
	return filepath.Join(d.Path, fmt.Sprintf("segment_%04d.mp4", index))
}

// ListPath returns the concat manifest location.
func (d *Dir) ListPath() string {
	return filepath.Join(d.Path, "concat.txt")
}

// OutputPath returns where the joined video is written before it is moved to
// the output directory.
func (d *Dir) OutputPath() string {
	return filepath.Join(d.Path, "output.mp4")
}

// Release removes the directory and drops the lock. It is safe to call more
// than once. Failures are tagged with services.ErrCleanup.
func (d *Dir) Release() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil
	}

	var errs []error
	if err := os.RemoveAll(d.Path); err != nil {
		errs = append(errs, services.Wrap(services.ErrCleanup, "finalizing", "remove run directory", d.Path, err))
	}
	if d.lock != nil {
		if err := d.lock.Unlock(); err != nil {
			errs = append(errs, services.Wrap(services.ErrCleanup, "finalizing", "unlock run directory", d.Path, err))
		}
	}
	if len(errs) == 0 {
		d.released = true
	}
	return errors.Join(errs...)
}

// CleanStaleResult contains the outcome of a stale directory cleanup operation.
type CleanStaleResult struct {
	Removed []string
	Skipped []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes unlocked run directories older than maxAge. Directories
// whose lock is held by a live run are reported in Skipped.
func (m *Manager) CleanStale(ctx context.Context, maxAge time.Duration) CleanStaleResult {
	result := CleanStaleResult{}
	entries, err := m.readRunDirs()
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: m.root, Error: err})
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, CleanupError{Path: m.root, Error: ctx.Err()})
			return result
		}
		if !entry.ModTime.Before(cutoff) {
			continue
		}

		lock := flock.New(filepath.Join(entry.Path, lockFileName))
		locked, err := lock.TryLock()
		if err != nil || !locked {
			result.Skipped = append(result.Skipped, entry.Path)
			m.logger.Debug("skipping locked run directory", logging.String("path", entry.Path))
			continue
		}

		removeErr := os.RemoveAll(entry.Path)
		_ = lock.Unlock()
		if removeErr != nil {
			result.Errors = append(result.Errors, CleanupError{Path: entry.Path, Error: removeErr})
			logging.WarnWithContext(m.logger, "failed to remove stale run directory", "workspace_cleanup_failed",
				logging.String("path", entry.Path),
				logging.Error(removeErr),
				logging.String(logging.FieldErrorHint, "check work_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, entry.Path)
		m.logger.Info("removed stale run directory",
			logging.String("path", entry.Path),
			logging.Duration("age", time.Since(entry.ModTime)),
			logging.String(logging.FieldEventType, "workspace_cleanup"),
		)
	}
	return result
}

// DirInfo contains metadata about a run directory.
type DirInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
	Locked  bool
}

// List returns every run directory with its size and lock state.
func (m *Manager) List() ([]DirInfo, error) {
	dirs, err := m.readRunDirs()
	if err != nil {
		return nil, err
	}
	for i := range dirs {
		dirs[i].Size, _ = dirSize(dirs[i].Path)
		lock := flock.New(filepath.Join(dirs[i].Path, lockFileName))
		locked, lockErr := lock.TryLock()
		if lockErr != nil || !locked {
			dirs[i].Locked = true
			continue
		}
		_ = lock.Unlock()
	}
	return dirs, nil
}

func (m *Manager) readRunDirs() ([]DirInfo, error) {
	if m.root == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), runDirPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dirs = append(dirs, DirInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(m.root, entry.Name()),
			ModTime: info.ModTime(),
		})
	}
	return dirs, nil
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			if info, infoErr := d.Info(); infoErr == nil {
				size += info.Size()
			}
		}
		return nil
	})
	return size, err
}
