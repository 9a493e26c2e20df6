package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage keeps media on the local filesystem under Dir.
type LocalStorage struct {
	Dir string
}

func NewLocalStorage(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload folder: %w", err)
	}
	return &LocalStorage{Dir: dir}, nil
}

// Save writes body to Dir/key and returns key as the reference.
func (s *LocalStorage) Save(ctx context.Context, key, _ string, body io.Reader) (string, error) {
	target, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload folder: %w", err)
	}

	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		os.Remove(target)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return key, nil
}

// Delete removes a stored file; a missing file is not an error.
func (s *LocalStorage) Delete(_ context.Context, ref string) error {
	target, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *LocalStorage) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.Dir, clean), nil
}
