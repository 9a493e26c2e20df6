package storage

import (
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Storage saves uploaded capsule media and returns an opaque reference.
type Storage interface {
	Save(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

// ObjectKey builds a unique key for an upload, keeping the original extension.
func ObjectKey(ownerID, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return path.Join(ownerID, uuid.NewString()+ext)
}
