package cryptoutil

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/minio/sio"
)

const (
	configMagic = "SBK1"
	configVer   = uint16(1)
	nonceSize   = 12
	headerSize  = len(configMagic) + 2 + nonceSize
)

// ArchiveSuffix marks archives written through EncryptWriter.
const ArchiveSuffix = ".enc"

var ErrConfigHeader = errors.New("invalid encrypted config header")

// EncryptWriter wraps w so that everything written is sealed with DARE (sio).
// Close must be called to flush the final package.
func EncryptWriter(w io.Writer, key []byte) (io.WriteCloser, error) {
	return sio.EncryptWriter(w, sio.Config{Key: key})
}

// DecryptReader opens a DARE stream produced by EncryptWriter.
func DecryptReader(r io.Reader, key []byte) (io.Reader, error) {
	return sio.DecryptReader(r, sio.Config{Key: key})
}

// EncryptConfig seals a config payload with AES-GCM behind a small header.
func EncryptConfig(plain []byte, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	buf.WriteString(configMagic)
	if err := binary.Write(buf, binary.BigEndian, configVer); err != nil {
		return nil, err
	}
	buf.Write(nonce)
	buf.Write(aead.Seal(nil, nonce, plain, []byte(configMagic)))
	return buf.Bytes(), nil
}

// DecryptConfig reverses EncryptConfig.
func DecryptConfig(sealed []byte, key []byte) ([]byte, error) {
	if len(sealed) < headerSize {
		return nil, fmt.Errorf("%w: too short", ErrConfigHeader)
	}
	if string(sealed[:len(configMagic)]) != configMagic {
		return nil, ErrConfigHeader
	}
	if ver := binary.BigEndian.Uint16(sealed[len(configMagic):]); ver != configVer {
		return nil, fmt.Errorf("%w: version %d", ErrConfigHeader, ver)
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := sealed[len(configMagic)+2 : headerSize]
	return aead.Open(nil, nonce, sealed[headerSize:], []byte(configMagic))
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
