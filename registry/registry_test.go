package registry

import (
	"sync"
	"testing"

	"github.com/hupe1980/segkit/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(2, "ledger"))
	require.NoError(t, r.Register(1, "wallet"))

	name, ok := r.Lookup(2)
	assert.True(t, ok)
	assert.Equal(t, "ledger", name)

	_, ok = r.Lookup(3)
	assert.False(t, ok)

	assert.Equal(t, "wallet", r.Name(1))
	assert.Equal(t, "0x00000003", r.Name(3))
	assert.Equal(t, []model.TypeTag{1, 2}, r.Tags())
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_Duplicate(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(1, "wallet"))
	assert.NoError(t, r.Register(1, "wallet"))
	assert.ErrorIs(t, r.Register(1, "other"), ErrDuplicateTag)
	assert.Panics(t, func() { r.MustRegister(1, "other") })
}

func TestRegistry_NilLookup(t *testing.T) {
	var r *Registry
	_, ok := r.Lookup(1)
	assert.False(t, ok)
	assert.Equal(t, "0x00000001", r.Name(1))
}

func TestRegistry_Concurrent(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Register(model.TypeTag(i), "t")
			_, _ = r.Lookup(model.TypeTag(i))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 16, r.Len())
}
