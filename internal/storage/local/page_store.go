// Package local implements the on-disk page store: one folder per post,
// one .html file per saved page.
package local

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Config captures the parameters for the local page store.
type Config struct {
	// RootDir is the folder that holds one subfolder per post.
	RootDir string `mapstructure:"root_dir" yaml:"root_dir"`
}

// PageStore writes pages to a filesystem rooted at RootDir.
type PageStore struct {
	fs     afero.Fs
	root   string
	logger *zap.Logger
}

// New creates the root folder if needed and verifies it is writable.
func New(cfg Config, fs afero.Fs, logger *zap.Logger) (*PageStore, error) {
	if strings.TrimSpace(cfg.RootDir) == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := fs.Stat(cfg.RootDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat root directory: %w", err)
		}
		if mkErr := fs.MkdirAll(cfg.RootDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create root directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root directory path is not a directory")
	}

	testFile := filepath.Join(cfg.RootDir, ".writable_test")
	if err := afero.WriteFile(fs, testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("root directory is not writable: %w", err)
	}
	if err := fs.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &PageStore{
		fs:     fs,
		root:   filepath.Clean(cfg.RootDir),
		logger: logger,
	}, nil
}

// Root returns the cleaned root directory.
func (s *PageStore) Root() string {
	return s.root
}

// FolderExists reports whether a post folder is already on disk. This is the
// crawler's only deduplication index.
func (s *PageStore) FolderExists(path string) (bool, error) {
	if err := s.checkWithinRoot(path); err != nil {
		return false, err
	}
	ok, err := afero.DirExists(s.fs, path)
	if err != nil {
		return false, fmt.Errorf("stat folder %s: %w", path, err)
	}
	return ok, nil
}

// EnsureFolder creates path and any missing parents.
func (s *PageStore) EnsureFolder(path string) error {
	if err := s.checkWithinRoot(path); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("create folder %s: %w", path, err)
	}
	return nil
}

// WritePage writes html to folder/name.html, replacing any existing file, and
// returns the written path. Empty html is a no-op: nothing is created and the
// returned path is "".
func (s *PageStore) WritePage(folder, name, html string) (string, error) {
	if html == "" {
		return "", nil
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("file name is required")
	}
	target := filepath.Join(folder, name+".html")
	if filepath.Dir(target) != filepath.Clean(folder) {
		return "", fmt.Errorf("file name %q escapes its folder", name)
	}
	if err := s.EnsureFolder(folder); err != nil {
		return "", err
	}
	if err := afero.WriteFile(s.fs, target, []byte(html), 0o600); err != nil {
		return "", fmt.Errorf("write page %s: %w", target, err)
	}
	s.logger.Info("page saved", zap.String("path", target), zap.Int("bytes", len(html)))
	return target, nil
}

func (s *PageStore) checkWithinRoot(path string) error {
	rel, err := filepath.Rel(s.root, filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s is outside %s", path, s.root)
	}
	return nil
}
