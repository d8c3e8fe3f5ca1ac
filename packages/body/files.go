package body

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Files opens upload sources.
type Files interface {
	// Open returns a readable stream for path.
	Open(path string) (io.ReadCloser, error)
	// ReadFile returns the whole content of path.
	ReadFile(path string) ([]byte, error)
}

// OSFiles reads from the local file system. Relative paths resolve against
// BaseDir, and when BaseDir is set every path must stay inside it.
type OSFiles struct {
	BaseDir string
}

var _ Files = OSFiles{}

func (f OSFiles) Open(path string) (io.ReadCloser, error) {
	resolved, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Open(resolved)
}

func (f OSFiles) ReadFile(path string) ([]byte, error) {
	resolved, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(resolved)
}

func (f OSFiles) resolve(path string) (string, error) {
	if !filepath.IsAbs(path) && f.BaseDir != "" {
		path = filepath.Join(f.BaseDir, path)
	}
	if err := validatePathWithinBase(path, f.BaseDir); err != nil {
		return "", err
	}
	return path, nil
}

// validatePathWithinBase checks that the resolved path stays within the base directory
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}

// Filename returns the last element of path.
func Filename(path string) string {
	return filepath.Base(path)
}

// ContentTypeFor infers a MIME type from the file extension of path. It
// returns "" when the extension is unknown.
func ContentTypeFor(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}
	return mime.TypeByExtension(ext)
}
