// Package archive keeps a copy of every accepted source document, keyed by
// its content fingerprint.
package archive

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/joseph-ayodele/submissions-tracker/constants"
)

// Driver identifies a storage backend.
type Driver string

const (
	DriverNone       Driver = "none"
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

// ErrNotFound is returned by Get for a key that was never stored.
var ErrNotFound = errors.New("archive: object not found")

// Object describes a stored document.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is the small subset of blob storage the tracker needs. Put is
// idempotent: storing an existing key succeeds without rewriting it.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (Object, error)
	Get(ctx context.Context, key string) (Object, []byte, error)
	Delete(ctx context.Context, key string) error
	Driver() Driver
}

// Key maps a document fingerprint and its original filename to an object key.
func Key(fileHash, filename string) (string, error) {
	if len(fileHash) < 2 {
		return "", fmt.Errorf("archive: invalid file hash %q", fileHash)
	}
	ext := constants.NormalizeExt(path.Ext(filename))
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("documents/%s/%s.%s", fileHash[:2], fileHash, ext), nil
}

func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("archive: empty key")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("archive: absolute key %q", key)
	}
	clean := path.Clean(key)
	if clean == ".." || strings.HasPrefix(clean, "../") || strings.Contains(key, "..") {
		return "", fmt.Errorf("archive: key %q escapes the archive root", key)
	}
	return clean, nil
}
