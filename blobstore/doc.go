// Package blobstore abstracts named blob storage for hosts that persist
// storage buffers as whole objects.
//
// Implementations:
//
//   - MemoryStore: in-process map, for tests and ephemeral engines
//   - LocalStore: one file per blob, read through read-only mmap
//   - CachingStore: read-through block cache over any BlobStore
//   - s3.Store: Amazon S3 (see package blobstore/s3)
//   - minio.Store: MinIO and other S3-compatible services
//
// Stores that can create a blob atomically only when it is missing
// implement ConditionalPutter; PutIfAbsent falls back to check-then-put for
// the rest.
package blobstore
