package blobhost

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/hupe1980/segkit/internal/hash"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the frame payload encoding.
type Compression uint8

const (
	// CompressionNone stores buffers verbatim.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd (better ratio).
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ErrCorruptFrame is returned when a stored frame fails validation.
var ErrCorruptFrame = errors.New("blobhost: corrupt frame")

// Frame layout, little-endian:
//
//	algo u8 | reserved [3] | raw_len u32 | crc32c(raw) u32 | payload
const frameHeaderSize = 12

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// encodeFrame wraps raw in a frame. A compressed payload that is not
// smaller than raw is stored uncompressed.
func encodeFrame(raw []byte, algo Compression) ([]byte, error) {
	if uint64(len(raw)) > math.MaxUint32 {
		return nil, fmt.Errorf("blobhost: buffer of %d bytes exceeds frame limit", len(raw))
	}

	var payload []byte
	switch algo {
	case CompressionNone:
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, dst, nil)
		if err != nil {
			return nil, err
		}
		// n == 0 means incompressible.
		if n > 0 {
			payload = dst[:n]
		}
	case CompressionZSTD:
		enc := getZstdEncoder()
		payload = enc.EncodeAll(raw, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("blobhost: unknown compression %s", algo)
	}
	if payload == nil || len(payload) >= len(raw) {
		algo, payload = CompressionNone, raw
	}

	out := make([]byte, frameHeaderSize+len(payload))
	out[0] = byte(algo)
	binary.LittleEndian.PutUint32(out[4:], uint32(len(raw)))
	binary.LittleEndian.PutUint32(out[8:], hash.CRC32C(raw))
	copy(out[frameHeaderSize:], payload)
	return out, nil
}

// frameLen returns the decoded length recorded in a frame header.
func frameLen(header []byte) (int, error) {
	if len(header) < frameHeaderSize {
		return 0, fmt.Errorf("%w: %d byte header", ErrCorruptFrame, len(header))
	}
	return int(binary.LittleEndian.Uint32(header[4:])), nil
}

func decodeFrame(frame []byte) ([]byte, error) {
	n, err := frameLen(frame)
	if err != nil {
		return nil, err
	}
	algo := Compression(frame[0])
	payload := frame[frameHeaderSize:]

	var raw []byte
	switch algo {
	case CompressionNone:
		if len(payload) != n {
			return nil, fmt.Errorf("%w: payload %d bytes, header says %d", ErrCorruptFrame, len(payload), n)
		}
		raw = make([]byte, n)
		copy(raw, payload)
	case CompressionLZ4:
		raw = make([]byte, n)
		got, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptFrame, err)
		}
		if got != n {
			return nil, fmt.Errorf("%w: decompressed %d bytes, header says %d", ErrCorruptFrame, got, n)
		}
	case CompressionZSTD:
		dec := getZstdDecoder()
		raw, err = dec.DecodeAll(payload, make([]byte, 0, n))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptFrame, err)
		}
		if len(raw) != n {
			return nil, fmt.Errorf("%w: decompressed %d bytes, header says %d", ErrCorruptFrame, len(raw), n)
		}
	default:
		return nil, fmt.Errorf("%w: unknown compression %s", ErrCorruptFrame, algo)
	}

	if !hash.VerifyCRC32C(raw, binary.LittleEndian.Uint32(frame[8:])) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptFrame)
	}
	return raw, nil
}
