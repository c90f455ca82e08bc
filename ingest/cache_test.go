package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/termhub/termsync/errors"
)

func TestCacheLoadsOnce(t *testing.T) {
	cache := NewCache()

	calls := 0
	load := func() (string, error) {
		calls++
		return "value", nil
	}

	v, err := Lookup(cache, "k", load)
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	v, err = Lookup(cache, "k", load)
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	assert.Equal(t, 1, calls)
}

func TestCacheMemoizesAbsence(t *testing.T) {
	cache := NewCache()

	calls := 0
	load := func() (*int, error) {
		calls++
		return nil, nil
	}

	v, err := Lookup(cache, "missing", load)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = Lookup(cache, "missing", load)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCacheDoesNotMemoizeErrors(t *testing.T) {
	cache := NewCache()

	calls := 0
	load := func() (string, error) {
		calls++
		return "", errors.New("transient")
	}

	_, err := Lookup(cache, "k", load)
	require.Error(t, err)
	_, err = Lookup(cache, "k", load)
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestCachePutOverridesMemoizedAbsence(t *testing.T) {
	cache := NewCache()

	v, err := Lookup(cache, "k", func() (*int, error) { return nil, nil })
	require.NoError(t, err)
	require.Nil(t, v)

	written := 7
	cache.Put("k", &written)

	v, err = Lookup(cache, "k", func() (*int, error) {
		t.Fatal("load called after Put")
		return nil, nil
	})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 7, *v)
}
