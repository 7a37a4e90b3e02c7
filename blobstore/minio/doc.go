// Package minio provides a BlobStore implementation using the MinIO client.
//
// It works with MinIO itself and other S3-compatible systems such as Ceph,
// SeaweedFS and Garage, without pulling in the AWS SDK.
//
//	store, err := minio.Dial(ctx, "localhost:9000", "minioadmin", "minioadmin",
//	    "bitmapist", "archive/", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	arch := archive.New(st, store)
package minio
