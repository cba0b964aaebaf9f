package util

import (
	"path"
	"strings"
)

// ArchiveKey joins the repository prefix and an archive file name into an
// object key. Empty prefixes are dropped.
func ArchiveKey(prefix, fileName string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return fileName
	}
	return path.Join(prefix, fileName)
}

// BuildPrefix builds the listing prefix from its non-empty parts.
func BuildPrefix(parts ...string) string {
	kept := []string{}
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			kept = append(kept, p)
		}
	}
	return path.Join(kept...)
}
