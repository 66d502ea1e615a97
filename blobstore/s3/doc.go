// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore
// for spatial index snapshots.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("indexes/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	err = frnn.SaveIndex(ctx, store, "scan-0001.frnn", idx)
//
// # Features
//
//   - Range reads for streaming snapshot loads
//   - Multipart uploads with CRC32C integrity checks
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
