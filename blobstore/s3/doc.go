// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("bitmaps/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	arch := archive.New(st, store, archive.WithCodec(archive.CodecZSTD))
//
// Put goes through the transfer manager, so large snapshots are uploaded in
// parallel parts. Open issues a HEAD; reads are ranged GETs.
package s3
