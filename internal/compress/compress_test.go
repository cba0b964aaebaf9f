package compress

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

func TestRoundTripAllKinds(t *testing.T) {
	payload := strings.Repeat("shop backup payload ", 200)
	for _, kind := range []string{TypeNone, TypeDeflate, TypeZstd} {
		t.Run(kind, func(t *testing.T) {
			var buf bytes.Buffer
			zw := zip.NewWriter(&buf)
			if err := RegisterWriter(zw, kind, 0); err != nil {
				t.Fatalf("register: %v", err)
			}
			method, err := Method(kind)
			if err != nil {
				t.Fatalf("method: %v", err)
			}
			w, err := zw.CreateHeader(&zip.FileHeader{Name: "a.txt", Method: method})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if _, err := io.WriteString(w, payload); err != nil {
				t.Fatalf("write: %v", err)
			}
			if err := zw.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}

			zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
			if err != nil {
				t.Fatalf("reader: %v", err)
			}
			RegisterReader(zr)
			rc, err := zr.File[0].Open()
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer rc.Close()
			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(got) != payload {
				t.Fatalf("payload mismatch for %s", kind)
			}
		})
	}
}

func TestUnsupported(t *testing.T) {
	if _, err := Method("lzma"); err == nil {
		t.Fatalf("expected error")
	}
	if err := RegisterWriter(zip.NewWriter(io.Discard), TypeDeflate, 12); err == nil {
		t.Fatalf("expected invalid level error")
	}
}
