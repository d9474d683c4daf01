package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalProvider stores files on the local disk. The directory is
// served statically by the API server under baseURL.
type LocalProvider struct {
	dir     string
	baseURL string
}

// NewLocalProvider creates a provider rooted at dir. Files become
// reachable at baseURL/<name>.
func NewLocalProvider(dir, baseURL string) (*LocalProvider, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &LocalProvider{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload implements Provider.Upload
func (p *LocalProvider) Upload(_ context.Context, name string, content io.Reader) (string, error) {
	// Reject path traversal in the stored name.
	clean := filepath.Base(name)
	dst := filepath.Join(p.dir, clean)

	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("write file: %w", err)
	}
	return p.baseURL + "/" + clean, nil
}

// Delete implements Provider.Delete
func (p *LocalProvider) Delete(_ context.Context, name string) error {
	err := os.Remove(filepath.Join(p.dir, filepath.Base(name)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}
