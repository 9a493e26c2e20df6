package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKeyKeepsExtension(t *testing.T) {
	key := ObjectKey("owner1", "Holiday.JPG")
	assert.True(t, strings.HasPrefix(key, "owner1/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.NotEqual(t, key, ObjectKey("owner1", "Holiday.JPG"))
}

func TestLocalStorageSaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	require.NoError(t, err)

	ref, err := s.Save(context.Background(), "owner1/a.txt", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "owner1/a.txt", ref)

	data, err := os.ReadFile(filepath.Join(dir, "owner1", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, s.Delete(context.Background(), ref))
	_, err = os.Stat(filepath.Join(dir, "owner1", "a.txt"))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, s.Delete(context.Background(), ref), "deleting twice is fine")
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Save(context.Background(), "../outside.txt", "", strings.NewReader("x"))
	assert.Error(t, err)
	_, err = s.Save(context.Background(), "/etc/passwd", "", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestS3KeyFromRef(t *testing.T) {
	s := &S3Storage{bucket: "media"}

	key, err := s.keyFromRef("s3://media/owner/a.png")
	require.NoError(t, err)
	assert.Equal(t, "owner/a.png", key)

	_, err = s.keyFromRef("s3://other/owner/a.png")
	assert.Error(t, err)
}
