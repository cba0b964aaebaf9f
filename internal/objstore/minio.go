package objstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioOptions struct {
	Endpoint       string
	Region         string
	AccessKey      string
	SecretKey      string
	SessionToken   string
	UseSSL         bool
	ForcePathStyle bool
	Insecure       bool
}

// Minio serves buckets from any S3-compatible endpoint through minio-go.
type Minio struct {
	Client *minio.Client
}

func NewMinio(opts MinioOptions) (*Minio, error) {
	client, err := NewMinioClient(opts)
	if err != nil {
		return nil, err
	}
	return &Minio{Client: client}, nil
}

// NewMinioClient builds a minio client; the archive repository shares it.
func NewMinioClient(opts MinioOptions) (*minio.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	lookup := minio.BucketLookupDNS
	if opts.ForcePathStyle {
		lookup = minio.BucketLookupPath
	}
	return minio.New(opts.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, opts.SessionToken),
		Secure:       opts.UseSSL,
		Region:       opts.Region,
		Transport:    transport,
		BucketLookup: lookup,
	})
}

func (m *Minio) ListChildren(ctx context.Context, bucket, prefix string) ([]Entry, error) {
	listPrefix, err := listingPrefix(prefix)
	if err != nil {
		return nil, err
	}

	var out []Entry
	for obj := range m.Client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: listPrefix, Recursive: false}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if strings.HasSuffix(obj.Key, "/") {
			if obj.Key == listPrefix {
				continue // folder placeholder for the prefix itself
			}
			out = append(out, Entry{Name: lastSegment(strings.TrimSuffix(obj.Key, "/")), Path: obj.Key, IsFolder: true})
			continue
		}
		out = append(out, Entry{Name: lastSegment(obj.Key), Path: obj.Key, Size: obj.Size})
	}
	return out, nil
}

func (m *Minio) Download(ctx context.Context, bucket, objectPath string) ([]byte, error) {
	clean, err := cleanPath(objectPath)
	if err != nil {
		return nil, err
	}
	obj, err := m.Client.GetObject(ctx, bucket, clean, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, clean)
		}
		return nil, err
	}
	return data, nil
}

func (m *Minio) Upload(ctx context.Context, bucket, objectPath string, data []byte) error {
	clean, err := cleanPath(objectPath)
	if err != nil {
		return err
	}
	if clean == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	opts := minio.PutObjectOptions{ContentType: contentType(data)}
	_, err = m.Client.PutObject(ctx, bucket, clean, bytes.NewReader(data), int64(len(data)), opts)
	return err
}

func (m *Minio) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return m.Client.BucketExists(ctx, bucket)
}

func lastSegment(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
