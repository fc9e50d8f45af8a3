package s3

import (
	"encoding/base64"
	"encoding/binary"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/hupe1980/segkit/internal/hash"
)

// UploadConfig tunes writes.
type UploadConfig struct {
	// PartSize is the multipart part size. Buffers smaller than it are
	// written with a single PutObject.
	PartSize int64

	// Concurrency is the number of parts uploaded in parallel.
	Concurrency int

	// EnableChecksum sends a CRC32C checksum that S3 verifies on receipt.
	EnableChecksum bool
}

// DefaultUploadConfig returns 8 MiB parts, 5 concurrent, checksums on.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PartSize:       8 << 20,
		Concurrency:    5,
		EnableChecksum: true,
	}
}

func newUploader(client Client, cfg UploadConfig) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSize >= manager.MinUploadPartSize {
			u.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
	})
}

// checksumCRC32C encodes the checksum in the form S3 expects: base64 of the
// big-endian bytes.
func checksumCRC32C(data []byte) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], hash.CRC32C(data))
	return base64.StdEncoding.EncodeToString(b[:])
}
