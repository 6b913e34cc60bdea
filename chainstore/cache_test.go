package chainstore

import (
	"testing"

	"github.com/groundx/dscan/chainmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore wraps memStore and counts GetBlocks calls, to verify the
// cache actually shields the backend from repeat reads.
type countingStore struct {
	*memStore
	reads int
}

func (c *countingStore) GetBlocks(start, end uint64) ([]chainmodel.Block, error) {
	c.reads++
	return c.memStore.GetBlocks(start, end)
}

func TestCachedStoreServesRepeatReadsWithoutBackendHit(t *testing.T) {
	inner := &countingStore{memStore: newMemStore()}
	cached, err := newCachedStore(inner, 10)
	require.NoError(t, err)

	require.NoError(t, cached.PutBatch([]chainmodel.Block{
		{Sequence: 1, Hash: "a"}, {Sequence: 2, Hash: "b"}, {Sequence: 3, Hash: "c"},
	}))

	first, err := cached.GetBlocks(1, 3)
	require.NoError(t, err)
	assert.Len(t, first, 3)
	assert.Equal(t, 0, inner.reads, "PutBatch should have warmed the cache without a read")

	second, err := cached.GetBlocks(1, 3)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 0, inner.reads, "repeat read of a fully-cached range must not hit the backend")
}

func TestCachedStoreFallsThroughOnPartialMiss(t *testing.T) {
	inner := &countingStore{memStore: newMemStore()}
	cached, err := newCachedStore(inner, 10)
	require.NoError(t, err)

	// Block 1 goes through the cache; block 2 is written to the backend
	// only, so [1, 2] is a partial hit that must fall through to a backend
	// read of the whole range.
	require.NoError(t, cached.PutBatch([]chainmodel.Block{{Sequence: 1, Hash: "a"}}))
	require.NoError(t, inner.PutBatch([]chainmodel.Block{{Sequence: 2, Hash: "b"}}))
	got, err := cached.GetBlocks(1, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
