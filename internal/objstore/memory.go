package objstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory keeps buckets in process memory.
type Memory struct {
	mu      sync.RWMutex
	buckets map[string]map[string]memObject
}

type memObject struct {
	data        []byte
	contentType string
}

func NewMemory(buckets ...string) *Memory {
	m := &Memory{buckets: map[string]map[string]memObject{}}
	for _, b := range buckets {
		m.buckets[b] = map[string]memObject{}
	}
	return m
}

func (m *Memory) CreateBucket(bucket string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = map[string]memObject{}
	}
}

func (m *Memory) ListChildren(ctx context.Context, bucket, prefix string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := cleanPath(prefix)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	objects, ok := m.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("bucket %s does not exist", bucket)
	}

	base := clean
	if base != "" {
		base += "/"
	}
	seen := map[string]Entry{}
	for key, obj := range objects {
		if !strings.HasPrefix(key, base) {
			continue
		}
		rest := strings.TrimPrefix(key, base)
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			name := rest[:i]
			seen[name] = Entry{Name: name, Path: joinPath(clean, name), IsFolder: true}
			continue
		}
		seen[rest] = Entry{Name: rest, Path: key, Size: int64(len(obj.data))}
	}

	out := make([]Entry, 0, len(seen))
	for _, e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *Memory) Download(ctx context.Context, bucket, objectPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := cleanPath(objectPath)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.buckets[bucket][clean]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, clean)
	}
	return append([]byte(nil), obj.data...), nil
}

func (m *Memory) Upload(ctx context.Context, bucket, objectPath string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := cleanPath(objectPath)
	if err != nil {
		return err
	}
	if clean == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	objects, ok := m.buckets[bucket]
	if !ok {
		return fmt.Errorf("bucket %s does not exist", bucket)
	}
	objects[clean] = memObject{data: append([]byte(nil), data...), contentType: contentType(data)}
	return nil
}

func (m *Memory) BucketExists(ctx context.Context, bucket string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.buckets[bucket]
	return ok, nil
}

// ContentType returns the detected content type of a stored object.
func (m *Memory) ContentType(bucket, objectPath string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.buckets[bucket][strings.Trim(objectPath, "/")].contentType
}

// Put stores an object directly; meant for seeding fixtures.
func (m *Memory) Put(bucket, objectPath string, data []byte) {
	m.CreateBucket(bucket)
	_ = m.Upload(context.Background(), bucket, objectPath, data)
}
