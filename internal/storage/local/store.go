// Package local writes season results to a directory tree, one directory per club.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/appearances-scraper/internal/roster"
	"github.com/JakeFAU/appearances-scraper/internal/storage"
)

// Config captures the parameters for the local filesystem store.
type Config struct {
	// BaseDir is the root directory of the output tree.
	BaseDir string
}

// Store writes season results under BaseDir.
type Store struct {
	baseDir string
}

// New creates the base directory if needed and verifies it is writable.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("clean up test file: %w", err)
	}

	return &Store{baseDir: cfg.BaseDir}, nil
}

// SaveSeason writes the players list, the JSON record and, for debug results, the raw page.
func (s *Store) SaveSeason(_ context.Context, result roster.SeasonResult) error {
	objects, err := storage.Objects(result)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if err := s.write(obj.Path, obj.Data); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) write(rel string, data []byte) error {
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(rel))

	cleanBaseDir := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBaseDir+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s", rel)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return fmt.Errorf("create club directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

// Name identifies the store in logs.
func (*Store) Name() string { return "local" }
