// Package objstore talks to the application's object storage: the buckets
// holding product images, payment proofs and invoices.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrNotFound    = errors.New("object not found")
	ErrInvalidPath = errors.New("invalid object path")
)

// Entry is one immediate child of a listed prefix.
type Entry struct {
	Name     string
	Path     string // full path inside the bucket; folders from S3 listings keep their trailing slash
	IsFolder bool
	Size     int64
}

// Lister lists one level of a bucket.
type Lister interface {
	ListChildren(ctx context.Context, bucket, prefix string) ([]Entry, error)
}

type Store interface {
	Lister
	Download(ctx context.Context, bucket, objectPath string) ([]byte, error)
	// Upload writes data at objectPath, replacing any existing object.
	Upload(ctx context.Context, bucket, objectPath string, data []byte) error
	BucketExists(ctx context.Context, bucket string) (bool, error)
}

// cleanPath normalizes an object path and rejects traversal.
func cleanPath(p string) (string, error) {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return "", nil
	}
	for _, seg := range strings.Split(trimmed, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	return path.Clean(trimmed), nil
}

// listingPrefix turns a walk prefix into a delimiter listing prefix. A prefix
// ending in "/" came back from the backend as a common prefix and is used
// verbatim, since keys such as "user//a.png" have empty segments that
// cleanPath would collapse.
func listingPrefix(prefix string) (string, error) {
	if strings.HasSuffix(prefix, "/") {
		return prefix, nil
	}
	clean, err := cleanPath(prefix)
	if err != nil || clean == "" {
		return "", err
	}
	return clean + "/", nil
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func contentType(data []byte) string {
	return mimetype.Detect(data).String()
}
