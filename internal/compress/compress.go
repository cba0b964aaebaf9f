// Package compress wires klauspost compressors into zip writers and readers.
package compress

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

const (
	TypeNone    = "none"
	TypeDeflate = "deflate"
	TypeZstd    = "zstd"
)

// DefaultLevel trades throughput against size for deflate entries.
const DefaultLevel = 6

// Method returns the zip method id for a compression name.
func Method(kind string) (uint16, error) {
	switch kind {
	case TypeNone:
		return zip.Store, nil
	case "", TypeDeflate:
		return zip.Deflate, nil
	case TypeZstd:
		return zstd.ZipMethodWinZip, nil
	default:
		return 0, fmt.Errorf("unsupported compression: %s", kind)
	}
}

// RegisterWriter installs the compressor for kind on w. Level applies to
// deflate (1..9) and is mapped onto zstd speed presets.
func RegisterWriter(w *zip.Writer, kind string, level int) error {
	if level == 0 {
		level = DefaultLevel
	}
	switch kind {
	case TypeNone:
		return nil
	case "", TypeDeflate:
		if level < flate.BestSpeed || level > flate.BestCompression {
			return fmt.Errorf("invalid deflate level: %d", level)
		}
		w.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(out, level)
		})
		return nil
	case TypeZstd:
		w.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor(zstd.WithEncoderLevel(zstdLevel(level))))
		return nil
	default:
		return fmt.Errorf("unsupported compression: %s", kind)
	}
}

// RegisterReader makes r able to open entries written by any supported kind.
func RegisterReader(r *zip.Reader) {
	r.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())
}

func zstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 2:
		return zstd.SpeedFastest
	case level <= 6:
		return zstd.SpeedDefault
	case level <= 8:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}
