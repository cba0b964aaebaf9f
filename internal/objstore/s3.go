package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API is the subset of the S3 client used here; tests substitute a fake.
type s3API interface {
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, input *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type S3Options struct {
	Endpoint       string
	Region         string
	AccessKey      string
	SecretKey      string
	SessionToken   string
	ForcePathStyle bool
}

// S3 serves buckets from AWS S3 using delimiter listings.
type S3 struct {
	client s3API
}

func NewS3(opts S3Options) *S3 {
	o := s3.Options{
		Region:       opts.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, opts.SessionToken),
		UsePathStyle: opts.ForcePathStyle,
	}
	if opts.Endpoint != "" {
		o.BaseEndpoint = aws.String(opts.Endpoint)
	}
	return &S3{client: s3.New(o)}
}

func (s *S3) ListChildren(ctx context.Context, bucket, prefix string) ([]Entry, error) {
	listPrefix, err := listingPrefix(prefix)
	if err != nil {
		return nil, err
	}

	var out []Entry
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Prefix:    aws.String(listPrefix),
		Delimiter: aws.String("/"),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, cp := range page.CommonPrefixes {
			p := aws.ToString(cp.Prefix)
			out = append(out, Entry{Name: lastSegment(strings.TrimSuffix(p, "/")), Path: p, IsFolder: true})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == listPrefix || strings.HasSuffix(key, "/") {
				continue
			}
			out = append(out, Entry{Name: lastSegment(key), Path: key, Size: aws.ToInt64(obj.Size)})
		}
	}
	return out, nil
}

func (s *S3) Download(ctx context.Context, bucket, objectPath string) ([]byte, error) {
	clean, err := cleanPath(objectPath)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(clean),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, clean)
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3) Upload(ctx context.Context, bucket, objectPath string, data []byte) error {
	clean, err := cleanPath(objectPath)
	if err != nil {
		return err
	}
	if clean == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(clean),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType(data)),
	})
	return err
}

func (s *S3) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return true, nil
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	return false, err
}
