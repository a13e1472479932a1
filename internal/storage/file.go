package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shhac/bolt/internal/domain"
)

const (
	filePermission = 0644
	dirPermission  = 0755
)

// SnapshotFile exports and imports workspace snapshots as local files,
// independent of the active transport.
type SnapshotFile struct {
	path   string
	logger *slog.Logger
}

// NewSnapshotFile creates a SnapshotFile for the given path
func NewSnapshotFile(path string, logger *slog.Logger) (*SnapshotFile, error) {
	if err := validateSnapshotPath(path); err != nil {
		return nil, fmt.Errorf("invalid snapshot path: %w", err)
	}
	return &SnapshotFile{path: path, logger: logger}, nil
}

// Path returns the file location.
func (f *SnapshotFile) Path() string {
	return f.path
}

// Write encodes the workspace and replaces the file atomically.
func (f *SnapshotFile) Write(ws domain.Workspace) error {
	blob, err := EncodeSnapshot(ws)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(f.path), dirPermission); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	if err := atomicWriteFile(f.path, []byte(blob), filePermission); err != nil {
		return fmt.Errorf("write snapshot file: %w", err)
	}

	f.logger.Debug("wrote snapshot file",
		slog.String("path", f.path),
		slog.Int("bytes", len(blob)))

	return nil
}

// Read loads and decodes the file.
func (f *SnapshotFile) Read() (domain.Workspace, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Workspace{}, fmt.Errorf("snapshot file %q not found", f.path)
		}
		return domain.Workspace{}, fmt.Errorf("read snapshot file: %w", err)
	}

	ws, err := DecodeSnapshot(string(data))
	if err != nil {
		return domain.Workspace{}, err
	}

	f.logger.Debug("read snapshot file", slog.String("path", f.path))
	return ws, nil
}

// atomicWriteFile writes data to a file atomically by writing to a temp file
// in the same directory, syncing, then renaming over the target path.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := f.Name()

	// Clean up temp file on any failure
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	success = true
	return nil
}

// validateSnapshotPath rejects paths that cannot name a regular file.
func validateSnapshotPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path must not be empty")
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("path must not contain null bytes")
	}
	if strings.HasSuffix(path, string(filepath.Separator)) || strings.HasSuffix(path, "/") {
		return fmt.Errorf("path must name a file, not a directory")
	}
	return nil
}
