package chainstore

import (
	"sync"
	"testing"
	"time"

	"github.com/groundx/dscan/chainmodel"
	"github.com/groundx/dscan/params"
	"github.com/groundx/dscan/walletrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory BlockStore fake used to exercise the ingester
// and cache layer without a real database.
type memStore struct {
	mu     sync.Mutex
	blocks map[uint64]chainmodel.Block
}

func newMemStore() *memStore { return &memStore{blocks: map[uint64]chainmodel.Block{}} }

func (m *memStore) Type() BackendType { return "mem" }

func (m *memStore) HasRange(start, end uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for seq := start; seq <= end; seq++ {
		if _, ok := m.blocks[seq]; !ok {
			return false, nil
		}
	}
	return true, nil
}

func (m *memStore) PutBatch(blocks []chainmodel.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range blocks {
		m.blocks[uint64(b.Sequence)] = b
	}
	return nil
}

func (m *memStore) GetBlocks(start, end uint64) ([]chainmodel.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]chainmodel.Block, 0, end-start+1)
	for seq := start; seq <= end; seq++ {
		out = append(out, m.blocks[seq])
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

// fakeChainClient fails the first N calls before succeeding, to exercise
// the infinite-retry path without a real 1s sleep per attempt.
type fakeChainClient struct {
	mu        sync.Mutex
	failUntil int
	calls     int
}

func (f *fakeChainClient) GetBlocks(start, end uint64) (*walletrpc.GetBlocksResponse, error) {
	f.mu.Lock()
	f.calls++
	attempt := f.calls
	f.mu.Unlock()
	if attempt <= f.failUntil {
		return nil, assert.AnError
	}
	items := make([]walletrpc.BlockItem, 0, end-start+1)
	for seq := start; seq <= end; seq++ {
		items = append(items, walletrpc.BlockItem{Block: walletrpc.RpcBlock{
			Hash:     "h",
			Sequence: uint32(seq),
		}})
	}
	return &walletrpc.GetBlocksResponse{Blocks: items}, nil
}

func testNetwork(checkpoint, batch uint64) params.Network {
	return &testNet{checkpoint: checkpoint, batch: batch}
}

type testNet struct{ checkpoint, batch uint64 }

func (n *testNet) ID() uint8                         { return 0 }
func (n *testNet) Name() string                      { return "test" }
func (n *testNet) GenesisBlockHash() string          { return "" }
func (n *testNet) ReorgDepth() int64                 { return 1 }
func (n *testNet) PrimaryBatch() uint64              { return n.batch }
func (n *testNet) SecondaryBatch() int64             { return 1 }
func (n *testNet) ReschedulingDuration() time.Duration { return 0 }
func (n *testNet) LocalBlocksCheckpoint() uint64     { return n.checkpoint }
func (n *testNet) SetAccountLimit() int              { return 1 }
func (n *testNet) Warmup() time.Duration             { return 0 }
func (n *testNet) WorkerSilence() time.Duration      { return 0 }
func (n *testNet) SecondaryStale() time.Duration     { return 0 }
func (n *testNet) QueueHighWater() int               { return 1 }
func (n *testNet) SecondaryCap() int                 { return 1 }

func TestEnsureCheckpointFillsContiguousRange(t *testing.T) {
	store := newMemStore()
	client := &fakeChainClient{}
	in := NewIngester(store, client, testNetwork(25, 10))

	require.NoError(t, in.EnsureCheckpoint(nil))

	present, err := store.HasRange(1, 25)
	require.NoError(t, err)
	assert.True(t, present)
}

func TestEnsureCheckpointSkipsAlreadyPresentRange(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.PutBatch([]chainmodel.Block{{Sequence: 1}, {Sequence: 2}}))
	client := &fakeChainClient{}
	in := NewIngester(store, client, testNetwork(2, 10))

	require.NoError(t, in.EnsureCheckpoint(nil))
	assert.Equal(t, 0, client.calls)
}

func TestEnsureCheckpointRetriesOnTransientFailure(t *testing.T) {
	store := newMemStore()
	client := &fakeChainClient{failUntil: 2}
	retryBackoff = 0
	in := NewIngester(store, client, testNetwork(5, 5))

	require.NoError(t, in.EnsureCheckpoint(nil))
	assert.GreaterOrEqual(t, client.calls, 3)
}
