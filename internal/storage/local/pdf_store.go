// Package local implements a local filesystem PDF archive.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dangvonguyen/research-agent/internal/crawler"
)

// Config captures the parameters for the local filesystem PDF store.
type Config struct {
	// BaseDir is the root directory where PDFs will be stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// PDFStore writes downloaded PDFs to the local filesystem.
type PDFStore struct {
	baseDir string
}

// New creates a new local filesystem-backed PDF store.
func New(cfg Config) (*PDFStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
				return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
			}
		} else {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	// Check for write permissions.
	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &PDFStore{
		baseDir: cfg.BaseDir,
	}, nil
}

// Put writes a PDF under the base directory and returns its local path.
func (s *PDFStore) Put(_ context.Context, path string, data []byte) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}

	fullPath := filepath.Join(s.baseDir, path)

	// Reject anything escaping the base directory.
	cleanBaseDir := filepath.Clean(s.baseDir)
	cleanFullPath := filepath.Clean(fullPath)
	if !strings.HasPrefix(cleanFullPath, cleanBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("failed to create parent directories: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return fullPath, nil
}

// Exists reports whether a PDF is already archived at the path.
func (s *PDFStore) Exists(path string) bool {
	info, err := os.Stat(filepath.Join(s.baseDir, path))
	return err == nil && !info.IsDir()
}

var _ crawler.PDFStore = (*PDFStore)(nil)
