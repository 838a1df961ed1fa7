package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ReportArchive keeps rendered report files on local disk. Files are
// partitioned into year/month directories so periodic cleanup stays cheap
// even when results accumulate.
type ReportArchive struct {
	baseDir string
}

// NewReportArchive ensures the base directory exists and returns a handle.
func NewReportArchive(baseDir string) (*ReportArchive, error) {
	if baseDir == "" {
		baseDir = "./reports"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}
	return &ReportArchive{baseDir: baseDir}, nil
}

// Save writes data under the current month's partition and returns the
// relative path callers must use to read the file back.
func (a *ReportArchive) Save(filename string, data []byte) (string, error) {
	rel := filepath.Join(time.Now().UTC().Format("2006/01"), filename)
	path, err := a.abs(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare report partition: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report file: %w", err)
	}
	return rel, nil
}

// Open returns a read-only handle for a stored report.
func (a *ReportArchive) Open(relPath string) (*os.File, error) {
	path, err := a.abs(relPath)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report file: %w", err)
	}
	return file, nil
}

// Delete removes a stored report if present.
func (a *ReportArchive) Delete(relPath string) error {
	path, err := a.abs(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete report file: %w", err)
	}
	return nil
}

// CleanupOlderThan removes reports past the TTL and prunes month partitions
// that end up empty. Returns the relative paths it deleted.
func (a *ReportArchive) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	deleted := make([]string, 0)
	var partitions []string

	err := filepath.WalkDir(a.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != a.baseDir {
				partitions = append(partitions, path)
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		if rel, err := filepath.Rel(a.baseDir, path); err == nil {
			deleted = append(deleted, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cleanup reports: %w", err)
	}

	// Deepest partitions first; Remove fails on non-empty dirs, which is
	// exactly the behaviour wanted here.
	for i := len(partitions) - 1; i >= 0; i-- {
		_ = os.Remove(partitions[i])
	}
	return deleted, nil
}

// abs maps a relative path into the archive, rejecting anything that would
// escape the base directory. Paths come from signed tokens, but the token
// secret should not be the only thing standing between a request and the
// filesystem.
func (a *ReportArchive) abs(relPath string) (string, error) {
	if relPath == "" || filepath.IsAbs(relPath) {
		return "", fmt.Errorf("invalid report path %q", relPath)
	}
	clean := filepath.Clean(relPath)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid report path %q", relPath)
	}
	return filepath.Join(a.baseDir, clean), nil
}
