package cryptoutil

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const KeySize = 32

// ParseKey decodes a 32-byte key given as base64 or hex, optionally prefixed
// with "base64:" or "hex:".
func ParseKey(key string) ([]byte, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return nil, errors.New("encryption key is empty")
	}

	var (
		data []byte
		err  error
	)
	switch {
	case strings.HasPrefix(trimmed, "base64:"):
		data, err = base64.StdEncoding.DecodeString(strings.TrimPrefix(trimmed, "base64:"))
	case strings.HasPrefix(trimmed, "hex:"):
		data, err = hex.DecodeString(strings.TrimPrefix(trimmed, "hex:"))
	default:
		if data, err = base64.StdEncoding.DecodeString(trimmed); err != nil {
			data, err = hex.DecodeString(trimmed)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(data) != KeySize {
		return nil, fmt.Errorf("invalid key length: %d (expected %d bytes)", len(data), KeySize)
	}
	return data, nil
}

// GenerateKey returns a fresh random key in the "base64:" form ParseKey accepts.
func GenerateKey() (string, error) {
	buf := make([]byte, KeySize)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "base64:" + base64.StdEncoding.EncodeToString(buf), nil
}
