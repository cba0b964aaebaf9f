// Package storage is the archive repository: where finished backup archives
// and their summary sidecars are kept.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("archive not found")
	ErrInvalidKey = errors.New("invalid archive key")
)

type ObjectInfo struct {
	Key       string
	Size      int64
	Modified  time.Time
	ETag      string
	Metadata  map[string]string
	IsSummary bool
}

type Storage interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, metadata map[string]string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." || seg == "." {
			return ErrInvalidKey
		}
	}
	return nil
}
