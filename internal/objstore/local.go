package objstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Local maps each bucket to a directory below Root.
type Local struct {
	Root string
}

func NewLocal(root string) *Local {
	return &Local{Root: root}
}

func (l *Local) resolve(bucket, objectPath string) (string, string, error) {
	if _, err := cleanPath(bucket); err != nil || bucket == "" || filepath.Base(bucket) != bucket {
		return "", "", fmt.Errorf("%w: bucket %q", ErrInvalidPath, bucket)
	}
	clean, err := cleanPath(objectPath)
	if err != nil {
		return "", "", err
	}
	return filepath.Join(l.Root, bucket, filepath.FromSlash(clean)), clean, nil
}

func (l *Local) ListChildren(ctx context.Context, bucket, prefix string) ([]Entry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	dir, clean, err := l.resolve(bucket, prefix)
	if err != nil {
		return nil, err
	}
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(items))
	for _, item := range items {
		entry := Entry{Name: item.Name(), Path: joinPath(clean, item.Name()), IsFolder: item.IsDir()}
		if !item.IsDir() {
			info, err := item.Info()
			if err != nil {
				return nil, err
			}
			if !info.Mode().IsRegular() {
				continue
			}
			entry.Size = info.Size()
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (l *Local) Download(ctx context.Context, bucket, objectPath string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	target, clean, err := l.resolve(bucket, objectPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, clean)
	}
	return data, err
}

func (l *Local) Upload(ctx context.Context, bucket, objectPath string, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	target, clean, err := l.resolve(bucket, objectPath)
	if err != nil {
		return err
	}
	if clean == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp := target + ".partial"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

func (l *Local) BucketExists(ctx context.Context, bucket string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}
	dir, _, err := l.resolve(bucket, "")
	if err != nil {
		return false, err
	}
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
