package main

import (
	"context"
	"fmt"

	"github.com/hupe1980/frnn/blobstore"
	"github.com/hupe1980/frnn/blobstore/minio"
	"github.com/hupe1980/frnn/blobstore/s3"
)

// openStore returns the snapshot store selected by cfg.Store.
func openStore(ctx context.Context, cfg *Config) (blobstore.BlobStore, error) {
	switch cfg.Store {
	case "local":
		return blobstore.NewLocalStore(cfg.StoreDir), nil
	case "s3":
		opts := []s3.Option{
			s3.WithPrefix(cfg.Prefix),
			s3.WithUploadConfig(s3.UploadConfig{PartSize: cfg.PartSize, Concurrency: cfg.UploadConcurrency}),
		}
		if cfg.Region != "" {
			opts = append(opts, s3.WithRegion(cfg.Region))
		}
		if cfg.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(cfg.Endpoint, true))
		}
		return s3.New(ctx, cfg.Bucket, opts...)
	case "minio":
		return minio.Dial(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.Secure, cfg.Bucket, cfg.Prefix)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStore, cfg.Store)
	}
}
