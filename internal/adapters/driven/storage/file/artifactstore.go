// Package file provides an artifact store on the local filesystem.
// Relative artifact paths map directly onto a directory tree under the
// configured root, so the on-disk layout matches the documented one.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/quillstack-labs/pagelift/internal/core/domain"
	"github.com/quillstack-labs/pagelift/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ArtifactStore = (*Store)(nil)

// Store persists artifacts under a root directory.
type Store struct {
	root   string
	logger *zap.Logger
}

// New creates a filesystem artifact store rooted at dir, creating it if
// needed.
func New(dir string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: artifact root is required", domain.ErrStorage)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create root: %v", domain.ErrStorage, err)
	}
	return &Store{root: dir, logger: logger}, nil
}

// Save writes data at the relative path, replacing any previous content.
// The write goes through a temp file in the destination directory and a
// rename, so a crash mid-write never leaves a partial artifact at the
// final path.
func (s *Store) Save(ctx context.Context, relPath string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dst, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return fmt.Errorf("%w: create directory: %v", domain.ErrStorage, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", domain.ErrStorage, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write: %v", domain.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close: %v", domain.ErrStorage, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename: %v", domain.ErrStorage, err)
	}

	s.logger.Debug("artifact saved",
		zap.String("path", relPath),
		zap.Int("bytes", len(data)))
	return nil
}

// Exists reports whether an artifact is present at the relative path.
func (s *Store) Exists(ctx context.Context, relPath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	dst, err := s.resolve(relPath)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(dst)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("%w: stat: %v", domain.ErrStorage, err)
	}
}

// Ping verifies the root is writable by creating and removing a probe file.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	probe, err := os.CreateTemp(s.root, ".ping-*")
	if err != nil {
		return fmt.Errorf("%w: root not writable: %v", domain.ErrStorage, err)
	}
	name := probe.Name()
	probe.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("%w: cleanup probe: %v", domain.ErrStorage, err)
	}
	return nil
}

// Sweep removes artifacts whose modification time is older than the given
// age, then prunes directories left empty.
func (s *Store) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	removed := 0

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return removed, err
		}
		return removed, fmt.Errorf("%w: sweep: %v", domain.ErrStorage, err)
	}

	s.pruneEmptyDirs()
	if removed > 0 {
		s.logger.Info("swept expired artifacts", zap.Int("removed", removed))
	}
	return removed, nil
}

// resolve joins the relative artifact path onto the root and rejects
// anything that would escape it.
func (s *Store) resolve(relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("%w: empty artifact path", domain.ErrStorage)
	}
	dst := filepath.Join(s.root, filepath.FromSlash(relPath))
	rel, err := filepath.Rel(s.root, dst)
	if err != nil || rel == ".." || filepath.IsAbs(rel) || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator) {
		return "", fmt.Errorf("%w: path escapes store root: %s", domain.ErrStorage, relPath)
	}
	return dst, nil
}

// pruneEmptyDirs removes directories emptied by a sweep. Best effort;
// os.Remove fails harmlessly on non-empty directories.
func (s *Store) pruneEmptyDirs() {
	var dirs []string
	_ = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() && path != s.root {
			dirs = append(dirs, path)
		}
		return nil
	})
	// Deepest first.
	for i := len(dirs) - 1; i >= 0; i-- {
		_ = os.Remove(dirs[i])
	}
}
