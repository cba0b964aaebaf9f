package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

const SummarySuffix = ".summary.json"

// Summary is the sidecar written next to every archive so listings do not
// have to open the zip.
type Summary struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"createdAt"`
	Tables      int       `json:"tables"`
	Rows        int       `json:"rows"`
	Files       int       `json:"files"`
	Failures    int       `json:"failures"`
	Encrypted   bool      `json:"encrypted"`
	Compression string    `json:"compression"`
	SizeBytes   int64     `json:"sizeBytes"`
	ToolVersion string    `json:"toolVersion"`
}

func SummaryKey(objectKey string) string {
	return objectKey + SummarySuffix
}

func WriteSummary(ctx context.Context, st Storage, s Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return st.Put(ctx, SummaryKey(s.Key), bytes.NewReader(data), int64(len(data)), nil)
}

func ReadSummary(ctx context.Context, st Storage, objectKey string) (Summary, error) {
	rc, err := st.Get(ctx, SummaryKey(objectKey))
	if err != nil {
		return Summary{}, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return Summary{}, err
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return Summary{}, fmt.Errorf("summary %s: %w", objectKey, err)
	}
	return s, nil
}

// Catalog lists the archives under prefix, newest first. Archives without a
// readable sidecar are still listed from their object metadata.
func Catalog(ctx context.Context, st Storage, prefix string) ([]Summary, error) {
	objects, err := st.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var out []Summary
	for _, obj := range objects {
		if obj.IsSummary {
			continue
		}
		s, err := ReadSummary(ctx, st, obj.Key)
		if err != nil {
			s = Summary{Key: obj.Key, CreatedAt: obj.Modified, Encrypted: strings.HasSuffix(obj.Key, ".enc")}
		}
		s.Key = obj.Key
		s.SizeBytes = obj.Size
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Key > out[j].Key
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Prune keeps the newest keep archives under prefix and deletes the rest
// with their sidecars. keep <= 0 disables pruning.
func Prune(ctx context.Context, st Storage, prefix string, keep int) ([]Summary, error) {
	if keep <= 0 {
		return nil, nil
	}
	all, err := Catalog(ctx, st, prefix)
	if err != nil {
		return nil, err
	}
	if len(all) <= keep {
		return nil, nil
	}
	removed := all[keep:]
	for _, s := range removed {
		if err := st.Delete(ctx, s.Key); err != nil {
			return nil, fmt.Errorf("delete %s: %w", s.Key, err)
		}
		if err := st.Delete(ctx, SummaryKey(s.Key)); err != nil {
			return nil, fmt.Errorf("delete %s: %w", SummaryKey(s.Key), err)
		}
	}
	return removed, nil
}

// AvailableKey returns key, or key with a time suffix before its extension
// when an archive already sits there.
func AvailableKey(ctx context.Context, st Storage, key string, when time.Time) (string, error) {
	exists, err := st.Exists(ctx, key)
	if err != nil || !exists {
		return key, err
	}
	base, ext := key, ""
	if i := strings.Index(key[strings.LastIndex(key, "/")+1:], "."); i >= 0 {
		cut := strings.LastIndex(key, "/") + 1 + i
		base, ext = key[:cut], key[cut:]
	}
	candidate := base + "-" + when.UTC().Format("150405") + ext
	exists, err = st.Exists(ctx, candidate)
	if err != nil || !exists {
		return candidate, err
	}
	return fmt.Sprintf("%s-%s%09d%s", base, when.UTC().Format("150405"), when.Nanosecond(), ext), nil
}
