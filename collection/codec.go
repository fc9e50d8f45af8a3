package collection

import "github.com/hupe1980/segkit/model"

// Codec moves a record value in and out of its fixed-size slot.
// Encode must write exactly Size() bytes; dst is always Size() bytes long.
type Codec[T any] interface {
	Size() int
	Encode(dst []byte, v T)
	Decode(src []byte) T
}

// ReadOnlyMarker is an optional Codec extension. Records it reports as
// read-only cannot be removed.
type ReadOnlyMarker interface {
	ReadOnly(rec []byte) bool
}

// Keyed extracts the ordering key straight from raw record bytes.
type Keyed interface {
	Key(rec []byte) model.OrderKey
}

// OrderedCodec is a Codec whose records carry an ordering key.
type OrderedCodec[T any] interface {
	Codec[T]
	Keyed
}

// RawCodec stores opaque byte records of a fixed width.
type RawCodec int

// Size implements Codec.
func (c RawCodec) Size() int { return int(c) }

// Encode implements Codec. Short values are zero-padded.
func (c RawCodec) Encode(dst []byte, v []byte) {
	n := copy(dst, v)
	clear(dst[n:])
}

// Decode implements Codec. The result is a copy.
func (c RawCodec) Decode(src []byte) []byte {
	out := make([]byte, len(src))
	copy(out, src)
	return out
}
