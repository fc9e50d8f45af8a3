// Package s3 implements blobstore.BlobStore on Amazon S3.
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("accounts/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//	host := blobhost.New(store)
//
// Small buffers are written with one PutObject carrying a CRC32C checksum;
// buffers at or above UploadConfig.PartSize go through the multipart
// uploader. PutIfAbsent uses conditional writes (If-None-Match).
package s3
