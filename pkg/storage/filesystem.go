// Package storage keeps generated report artifacts on local disk and
// issues signed download tokens for them.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage writes report files under a single root directory. Names
// handed to it are relative paths; anything that would escape the root
// is rejected.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates the root directory if needed and returns a handle.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		dir = "./exports"
	}
	root := filepath.Clean(dir)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStorage{root: root}, nil
}

// Save writes data under the given relative name, creating intermediate
// directories, and returns the name for later retrieval.
func (s *LocalStorage) Save(name string, data []byte) (string, error) {
	path, err := s.locate(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare storage directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return name, nil
}

// Open returns a read-only handle for a stored file.
func (s *LocalStorage) Open(name string) (*os.File, error) {
	path, err := s.locate(name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return file, nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *LocalStorage) Delete(name string) error {
	path, err := s.locate(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// CleanupOlderThan deletes files whose modification time predates the TTL
// and prunes directories the sweep left empty. It returns the relative
// names of the deleted files.
func (s *LocalStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)

	var stale []string
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().Before(cutoff) {
			stale = append(stale, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan storage root: %w", err)
	}

	deleted := make([]string, 0, len(stale))
	for _, path := range stale {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return deleted, fmt.Errorf("remove stale file: %w", err)
		}
		if rel, err := filepath.Rel(s.root, path); err == nil {
			deleted = append(deleted, rel)
		}
		s.pruneEmptyParents(filepath.Dir(path))
	}
	return deleted, nil
}

// Path returns the absolute location of a stored file, or an empty string
// for names outside the root.
func (s *LocalStorage) Path(name string) string {
	path, err := s.locate(name)
	if err != nil {
		return ""
	}
	return path
}

func (s *LocalStorage) locate(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("storage name required")
	}
	path := filepath.Clean(filepath.Join(s.root, name))
	if path != s.root && !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("name %q escapes storage root", name)
	}
	return path, nil
}

// pruneEmptyParents removes empty directories between dir and the root.
func (s *LocalStorage) pruneEmptyParents(dir string) {
	for dir != s.root && strings.HasPrefix(dir, s.root) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
