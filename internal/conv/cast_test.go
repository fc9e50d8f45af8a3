package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntToUint16(t *testing.T) {
	got, err := IntToUint16(math.MaxUint16)
	assert.NoError(t, err)
	assert.Equal(t, uint16(math.MaxUint16), got)

	_, err = IntToUint16(math.MaxUint16 + 1)
	assert.Error(t, err)

	_, err = IntToUint16(-1)
	assert.Error(t, err)
}

func TestIntToUint32(t *testing.T) {
	t.Run("valid zero", func(t *testing.T) {
		got, err := IntToUint32(0)
		assert.NoError(t, err)
		assert.Equal(t, uint32(0), got)
	})

	t.Run("invalid negative", func(t *testing.T) {
		_, err := IntToUint32(-1)
		assert.Error(t, err)
	})

	t.Run("valid max int32", func(t *testing.T) {
		got, err := IntToUint32(math.MaxInt32)
		assert.NoError(t, err)
		assert.Equal(t, uint32(math.MaxInt32), got)
	})
}

func TestUint32ToInt(t *testing.T) {
	got, err := Uint32ToInt(math.MaxUint32)
	assert.NoError(t, err)
	assert.Equal(t, math.MaxUint32, got)
}

func TestAddInt(t *testing.T) {
	got, err := AddInt(2, 3)
	assert.NoError(t, err)
	assert.Equal(t, 5, got)

	_, err = AddInt(math.MaxInt, 1)
	assert.Error(t, err)

	_, err = AddInt(-1, 1)
	assert.Error(t, err)
}

func TestMulInt(t *testing.T) {
	got, err := MulInt(40, 4)
	assert.NoError(t, err)
	assert.Equal(t, 160, got)

	got, err = MulInt(0, math.MaxInt)
	assert.NoError(t, err)
	assert.Equal(t, 0, got)

	_, err = MulInt(math.MaxInt/2+1, 2)
	assert.Error(t, err)
}
