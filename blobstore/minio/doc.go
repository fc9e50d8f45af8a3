// Package minio provides a BlobStore on the MinIO client, for MinIO and other
// S3-compatible systems (Ceph, SeaweedFS, Garage).
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "my-bucket", "accounts/")
//	h := blobhost.New(store)
//
// PutIfAbsent relies on If-None-Match conditional writes.
package minio
