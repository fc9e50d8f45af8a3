package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyOf(b byte) StorageKey {
	var k StorageKey
	k[0] = b
	return k
}

func TestStorageKey_TextRoundTrip(t *testing.T) {
	k := DeriveKey(keyOf(7), []byte("seed"), 1)

	parsed, err := ParseStorageKey(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, parsed)
}

func TestParseStorageKey_Invalid(t *testing.T) {
	_, err := ParseStorageKey("0OIl")
	assert.ErrorIs(t, err, ErrInvalidKey)

	// valid base58 but too short
	_, err = ParseStorageKey("2g")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestDeriveKey(t *testing.T) {
	owner := keyOf(1)

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, DeriveKey(owner, []byte("a"), 0), DeriveKey(owner, []byte("a"), 0))
	})

	t.Run("every input matters", func(t *testing.T) {
		base := DeriveKey(owner, []byte("a"), 0)
		assert.NotEqual(t, base, DeriveKey(keyOf(2), []byte("a"), 0))
		assert.NotEqual(t, base, DeriveKey(owner, []byte("b"), 0))
		assert.NotEqual(t, base, DeriveKey(owner, []byte("a"), 1))
		assert.False(t, base.IsZero())
	})

	t.Run("seed length is framed", func(t *testing.T) {
		// "ab"+index and "a"+"b..." must not collide through concatenation.
		assert.NotEqual(t, DeriveKey(owner, []byte("ab"), 0), DeriveKey(owner, []byte("a"), 0))
	})
}

func TestOrderKey_Compare(t *testing.T) {
	a := OrderKey{Timestamp: 100, Identity: keyOf('A')}
	b := OrderKey{Timestamp: 100, Identity: keyOf('B')}
	early := OrderKey{Timestamp: 50, Identity: keyOf('B')}

	assert.Equal(t, -1, early.Compare(a))
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.True(t, MinOrderKey(100).Less(a))
	assert.True(t, b.Less(MaxOrderKey(100)))
}

func TestTypeTag_String(t *testing.T) {
	assert.Equal(t, "0x0000002a", TypeTag(42).String())
}
