package scansvc

import (
	"sync"
	"testing"

	"github.com/groundx/dscan/chainmodel"
	"github.com/groundx/dscan/dnet"
	"github.com/groundx/dscan/params"
	"github.com/groundx/dscan/walletrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRpcClient struct {
	mu               sync.Mutex
	setAccountCalls  []walletrpc.SetAccountHeadRequest
	latestBlock      *walletrpc.GetLatestBlockResponse
	blocksBySequence map[int64]*walletrpc.GetBlockResponse
}

func newFakeRpcClient() *fakeRpcClient {
	return &fakeRpcClient{blocksBySequence: map[int64]*walletrpc.GetBlockResponse{}}
}

func (f *fakeRpcClient) GetLatestBlock() (*walletrpc.GetLatestBlockResponse, error) {
	return f.latestBlock, nil
}

func (f *fakeRpcClient) GetBlock(sequence int64) (*walletrpc.GetBlockResponse, error) {
	return f.blocksBySequence[sequence], nil
}

func (f *fakeRpcClient) GetBlocks(start, end uint64) (*walletrpc.GetBlocksResponse, error) {
	return &walletrpc.GetBlocksResponse{}, nil
}

func (f *fakeRpcClient) SetAccountHead(req walletrpc.SetAccountHeadRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setAccountCalls = append(f.setAccountCalls, req)
	return nil
}

func (f *fakeRpcClient) calls() []walletrpc.SetAccountHeadRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]walletrpc.SetAccountHeadRequest{}, f.setAccountCalls...)
}

type fakeNotifier struct {
	mu        sync.Mutex
	completed []string
}

func (n *fakeNotifier) ScanCompleted(address string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, address)
	return nil
}

func newTestManager(rpc RpcClient, notifier CompletionNotifier) *Manager {
	return NewManager(nil, rpc, params.Testnet, notifier)
}

func TestHandleTaskResponseHappyPathCommitsOnce(t *testing.T) {
	rpc := newFakeRpcClient()
	notifier := &fakeNotifier{}
	m := newTestManager(rpc, notifier)

	m.active["A"] = chainmodel.NewAccountInfo("A", "ivk", "ovk",
		chainmodel.BlockInfo{Hash: "HA", Sequence: 100},
		chainmodel.BlockInfo{Hash: "HE", Sequence: 100})
	m.registry["task1"] = chainmodel.TaskMeta{Sequence: 100, Hash: "HE", Address: "A"}

	m.handleTaskResponse(&dnet.TaskResponse{ID: "task1", Address: "A", Data: []string{"TX1"}})

	calls := rpc.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "A", calls[0].Account)
	assert.True(t, calls[0].ScanComplete)
	require.Len(t, calls[0].Blocks, 1)
	assert.Equal(t, "HE", calls[0].Blocks[0].Hash)
	require.Len(t, calls[0].Blocks[0].Transactions, 1)
	assert.Equal(t, "TX1", calls[0].Blocks[0].Transactions[0].Hash)

	assert.Equal(t, []string{"A"}, notifier.completed)
	_, stillActive := m.active["A"]
	assert.False(t, stillActive)
}

func TestHandleTaskResponseEmptyDataStillCompletes(t *testing.T) {
	rpc := newFakeRpcClient()
	notifier := &fakeNotifier{}
	m := newTestManager(rpc, notifier)

	m.active["A"] = chainmodel.NewAccountInfo("A", "ivk", "ovk",
		chainmodel.BlockInfo{Hash: "HA", Sequence: 100},
		chainmodel.BlockInfo{Hash: "HE", Sequence: 100})
	m.registry["task1"] = chainmodel.TaskMeta{Sequence: 100, Hash: "HE", Address: "A"}

	m.handleTaskResponse(&dnet.TaskResponse{ID: "task1", Address: "A", Data: []string{}})

	calls := rpc.calls()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Blocks)
	assert.True(t, calls[0].ScanComplete)
}

func TestHandleTaskResponseLateAfterFinalizeIsNoop(t *testing.T) {
	rpc := newFakeRpcClient()
	notifier := &fakeNotifier{}
	m := newTestManager(rpc, notifier)
	// No active[A] and no registry entry: simulates a response that
	// arrives after the account already committed.
	m.handleTaskResponse(&dnet.TaskResponse{ID: "ghost", Address: "A", Data: []string{"TX9"}})
	assert.Empty(t, rpc.calls())
	assert.Empty(t, notifier.completed)
}

func TestHandleTaskResponseUnknownTaskIsDropped(t *testing.T) {
	rpc := newFakeRpcClient()
	notifier := &fakeNotifier{}
	m := newTestManager(rpc, notifier)
	m.active["A"] = chainmodel.NewAccountInfo("A", "ivk", "ovk",
		chainmodel.BlockInfo{Hash: "HA", Sequence: 100},
		chainmodel.BlockInfo{Hash: "HE", Sequence: 100})

	m.handleTaskResponse(&dnet.TaskResponse{ID: "not-in-registry", Address: "A", Data: []string{"TX1"}})

	// Registry miss drops the response without decrementing remainingTasks.
	assert.Equal(t, uint64(1), m.active["A"].RemainingTasks)
	assert.Empty(t, rpc.calls())
}

func TestHandleTaskResponseAggregatesTwoOfThreeThenCommitsOnThird(t *testing.T) {
	rpc := newFakeRpcClient()
	notifier := &fakeNotifier{}
	m := newTestManager(rpc, notifier)

	m.active["A"] = chainmodel.NewAccountInfo("A", "ivk", "ovk",
		chainmodel.BlockInfo{Hash: "HA", Sequence: 98},
		chainmodel.BlockInfo{Hash: "HE", Sequence: 100})
	m.registry["t98"] = chainmodel.TaskMeta{Sequence: 98, Hash: "H98", Address: "A"}
	m.registry["t99"] = chainmodel.TaskMeta{Sequence: 99, Hash: "H99", Address: "A"}
	m.registry["t100"] = chainmodel.TaskMeta{Sequence: 100, Hash: "H100", Address: "A"}

	m.handleTaskResponse(&dnet.TaskResponse{ID: "t98", Address: "A", Data: nil})
	assert.Equal(t, uint64(2), m.active["A"].RemainingTasks)
	assert.Empty(t, rpc.calls())

	m.handleTaskResponse(&dnet.TaskResponse{ID: "t99", Address: "A", Data: []string{"TX2"}})
	assert.Equal(t, uint64(1), m.active["A"].RemainingTasks)
	assert.Empty(t, rpc.calls())

	m.handleTaskResponse(&dnet.TaskResponse{ID: "t100", Address: "A", Data: []string{"TX3"}})
	require.Len(t, rpc.calls(), 1)
	_, stillActive := m.active["A"]
	assert.False(t, stillActive)
}

func TestHasIntentOrActiveIsIdempotent(t *testing.T) {
	m := newTestManager(newFakeRpcClient(), &fakeNotifier{})
	intent := chainmodel.AccountIntent{Address: "A", Head: &chainmodel.BlockInfo{Hash: "HA", Sequence: 1}}

	assert.False(t, m.HasIntentOrActive("A"))
	m.SubmitIntent(intent)
	assert.True(t, m.HasIntentOrActive("A"))

	// A second identical submission is the intake handler's job to block
	// via this same check; Manager itself just appends, so simulate the
	// intake's idempotency gate here.
	if !m.HasIntentOrActive("A") {
		m.SubmitIntent(intent)
	}
	m.intentsMu.Lock()
	count := len(m.intents)
	m.intentsMu.Unlock()
	assert.Equal(t, 1, count)
}

func TestDispatchOrQueueFallsThroughToQueueWhenNoIdleWorker(t *testing.T) {
	m := newTestManager(newFakeRpcClient(), &fakeNotifier{})
	task := chainmodel.Task{ID: "t1"}
	m.dispatchOrQueue(task, 42)
	assert.Equal(t, 1, m.QueueDepth())
	got, ok := m.queue.Pop()
	require.True(t, ok)
	assert.Equal(t, "t1", got.ID)
}
