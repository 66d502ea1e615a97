package s3

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/frnn/blobstore"
	"github.com/hupe1980/frnn/internal/checksum"
)

// UploadConfig configures multipart snapshot uploads. Zero fields keep the
// defaults.
type UploadConfig struct {
	// PartSize is the multipart part size in bytes. Default: 8 MiB.
	PartSize int64
	// Concurrency is the number of parts uploaded in parallel. Default: 5.
	Concurrency int
}

// DefaultUploadConfig returns the default upload settings.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PartSize:    8 << 20,
		Concurrency: 5,
	}
}

func newUploader(client Client, cfg UploadConfig) *manager.Uploader {
	def := DefaultUploadConfig()
	return manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = orDefault(cfg.PartSize, def.PartSize)
		u.Concurrency = orDefault(cfg.Concurrency, def.Concurrency)
	})
}

// orDefault returns v, or def if v is not positive.
func orDefault[N int | int64](v, def N) N {
	if v > 0 {
		return v
	}
	return def
}

// upload streams a blob to key as a CRC32C-checked multipart upload.
func upload(ctx context.Context, uploader *manager.Uploader, bucket, key string) blobstore.WritableBlob {
	return blobstore.NewPipeWriter(func(r io.Reader) error {
		_, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:            aws.String(bucket),
			Key:               aws.String(key),
			Body:              r,
			ChecksumAlgorithm: types.ChecksumAlgorithmCrc32c,
		})
		return err
	})
}

// computeCRC32C returns the CRC32C of data in the base64 big-endian form S3 expects.
func computeCRC32C(data []byte) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], checksum.CRC32C(data))
	return base64.StdEncoding.EncodeToString(b[:])
}

// putWithChecksum uploads a small blob in one request with its CRC32C.
func putWithChecksum(ctx context.Context, client Client, bucket, key string, data []byte) error {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:         aws.String(bucket),
		Key:            aws.String(key),
		Body:           bytes.NewReader(data),
		ContentLength:  aws.Int64(int64(len(data))),
		ChecksumCRC32C: aws.String(computeCRC32C(data)),
	})
	return err
}
