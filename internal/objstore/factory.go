package objstore

import (
	"fmt"

	"github.com/rowjay/shop-backup/internal/config"
)

func New(cfg config.ObjectsConfig) (Store, error) {
	switch cfg.Backend {
	case "local", "":
		if cfg.Local.Path == "" {
			return nil, fmt.Errorf("objects.local.path is required")
		}
		return NewLocal(cfg.Local.Path), nil
	case "memory":
		return NewMemory(), nil
	case "minio":
		if cfg.S3.Endpoint == "" {
			return nil, fmt.Errorf("objects.s3.endpoint is required for minio")
		}
		return NewMinio(MinioOptions{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			SessionToken:   cfg.S3.SessionToken,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			Insecure:       cfg.S3.TLSInsecureSkip,
		})
	case "s3":
		if cfg.S3.Region == "" {
			return nil, fmt.Errorf("objects.s3.region is required for s3")
		}
		return NewS3(S3Options{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			SessionToken:   cfg.S3.SessionToken,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported objects backend: %s", cfg.Backend)
	}
}
