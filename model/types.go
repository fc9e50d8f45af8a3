package model

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"
)

// KeySize is the width of a StorageKey in bytes.
const KeySize = 32

// ErrInvalidKey is returned when a key cannot be parsed.
var ErrInvalidKey = errors.New("invalid storage key")

// StorageKey names a storage buffer. It is unique per buffer and never
// reassigned.
type StorageKey [KeySize]byte

// ZeroKey is the all-zero key. It never names a valid buffer.
var ZeroKey StorageKey

// KeyFromBytes copies b into a StorageKey. b must be exactly KeySize bytes.
func KeyFromBytes(b []byte) (StorageKey, error) {
	var k StorageKey
	if len(b) != KeySize {
		return k, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(b), KeySize)
	}
	copy(k[:], b)
	return k, nil
}

// ParseStorageKey decodes the base58 text form of a key.
func ParseStorageKey(s string) (StorageKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return ZeroKey, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return KeyFromBytes(raw)
}

// MustParseStorageKey is like ParseStorageKey but panics on error.
// Intended for constants in tests and well-known keys.
func MustParseStorageKey(s string) StorageKey {
	k, err := ParseStorageKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

// String returns the base58 text form.
func (k StorageKey) String() string {
	return base58.Encode(k[:])
}

// IsZero reports whether k is the zero key.
func (k StorageKey) IsZero() bool {
	return k == ZeroKey
}

// Compare orders keys bytewise.
func (k StorageKey) Compare(other StorageKey) int {
	return bytes.Compare(k[:], other[:])
}

// deriveDomain separates derived keys from any other sha3 use.
const deriveDomain = "segkit/derive/v1"

// DeriveKey computes the key of an auxiliary buffer from its owner, a seed and
// an index. The result is deterministic and depends on every input byte.
func DeriveKey(owner StorageKey, seed []byte, index uint32) StorageKey {
	h := sha3.New256()
	h.Write([]byte(deriveDomain))
	h.Write(owner[:])

	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(seed)))
	h.Write(n[:])
	h.Write(seed)

	binary.LittleEndian.PutUint32(n[:], index)
	h.Write(n[:])

	var k StorageKey
	copy(k[:], h.Sum(nil))
	return k
}

// TypeTag identifies the container implementation that owns a buffer layout.
type TypeTag uint32

// String returns the hex form used when no registered name is known.
func (t TypeTag) String() string {
	return fmt.Sprintf("0x%08x", uint32(t))
}

// OrderKey is the composite ordering key of ordered collections.
// Keys compare by Timestamp first and by Identity on ties.
type OrderKey struct {
	Timestamp uint64
	Identity  StorageKey
}

// Compare returns -1, 0 or +1.
func (k OrderKey) Compare(other OrderKey) int {
	switch {
	case k.Timestamp < other.Timestamp:
		return -1
	case k.Timestamp > other.Timestamp:
		return 1
	}
	return k.Identity.Compare(other.Identity)
}

// Less reports whether k sorts before other.
func (k OrderKey) Less(other OrderKey) bool {
	return k.Compare(other) < 0
}

// String returns a representation of the OrderKey.
func (k OrderKey) String() string {
	return fmt.Sprintf("Key(%d:%s)", k.Timestamp, k.Identity)
}

// MinOrderKey returns the smallest key with the given timestamp.
func MinOrderKey(ts uint64) OrderKey {
	return OrderKey{Timestamp: ts}
}

// MaxOrderKey returns the largest key with the given timestamp.
func MaxOrderKey(ts uint64) OrderKey {
	k := OrderKey{Timestamp: ts}
	for i := range k.Identity {
		k.Identity[i] = 0xff
	}
	return k
}
