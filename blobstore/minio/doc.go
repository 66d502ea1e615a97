// Package minio provides a BlobStore implementation using the MinIO client.
//
// MinIO is an S3-compatible object storage system. The official MinIO Go
// client also works against other S3-compatible services like Ceph,
// SeaweedFS and Garage without pulling in the AWS SDK.
//
// # Basic Usage
//
//	store, err := minioblob.Dial("localhost:9000", "minioadmin", "minioadmin", false, "indexes", "scans/")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = frnn.SaveIndex(ctx, store, "scan-0001.frnn", idx)
//
// Use NewStore to supply a preconfigured *minio.Client instead.
package minio
