// Copyright 2024 The dscan Authors
// This file is part of the dscan library.
//
// The dscan library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The dscan library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the dscan library. If not, see <http://www.gnu.org/licenses/>.

// Package scansvc is the task scheduler: account intents, the per-block
// task queue, worker dispatch, and the primary/secondary scheduling loops
// that drive a scan campaign from admission to wallet-node commit.
package scansvc

import (
	"net"
	"sync"
	"time"

	"github.com/groundx/dscan/chainmodel"
	"github.com/groundx/dscan/chainstore"
	"github.com/groundx/dscan/dlog"
	"github.com/groundx/dscan/dnet"
	"github.com/groundx/dscan/params"
	"github.com/groundx/dscan/walletrpc"
	uuid "github.com/hashicorp/go-uuid"
)

// RpcClient is the subset of walletrpc.Client the scheduler and aggregator
// need; narrowed to an interface so tests can fake it.
type RpcClient interface {
	GetLatestBlock() (*walletrpc.GetLatestBlockResponse, error)
	GetBlock(sequence int64) (*walletrpc.GetBlockResponse, error)
	GetBlocks(start, end uint64) (*walletrpc.GetBlocksResponse, error)
	SetAccountHead(req walletrpc.SetAccountHeadRequest) error
}

// CompletionNotifier is notified when an account finishes its campaign;
// implemented by package notify and injected, so scansvc never imports it
// directly (the same injection idiom as the teacher's CpuAgent.SetReturnCh).
type CompletionNotifier interface {
	ScanCompleted(address string) error
}

// Manager holds every piece of scheduler state named in the data model:
// intents, active campaigns, the task registry, the priority queue, and
// the worker table. Each map-like resource is guarded by its own lock, per
// the one-lock-per-resource policy; writers never hold more than one at a
// time.
type Manager struct {
	workersMu sync.RWMutex
	workers   map[string]*WorkerSession

	queue *TaskQueue

	registryMu sync.RWMutex
	registry   map[string]chainmodel.TaskMeta

	activeMu sync.RWMutex
	active   map[string]*chainmodel.AccountInfo

	intentsMu sync.Mutex
	intents   []chainmodel.AccountIntent

	store    chainstore.BlockStore
	rpc      RpcClient
	network  params.Network
	notifier CompletionNotifier

	log *dlog.Logger
}

func NewManager(store chainstore.BlockStore, rpc RpcClient, network params.Network, notifier CompletionNotifier) *Manager {
	return &Manager{
		workers:  make(map[string]*WorkerSession),
		queue:    NewTaskQueue(),
		registry: make(map[string]chainmodel.TaskMeta),
		active:   make(map[string]*chainmodel.AccountInfo),
		store:    store,
		rpc:      rpc,
		network:  network,
		notifier: notifier,
		log:      dlog.NewModuleLogger("scansvc.manager"),
	}
}

// SubmitIntent admits a new AccountIntent, per C7's idempotent-append
// contract: callers (the intake handler) must already have checked active
// and other intents for a duplicate address under their own lock ordering;
// Manager simply appends.
func (m *Manager) SubmitIntent(intent chainmodel.AccountIntent) {
	m.intentsMu.Lock()
	defer m.intentsMu.Unlock()
	m.intents = append(m.intents, intent)
}

// HasIntentOrActive reports whether address is already tracked, for the
// intake handler's idempotency check.
func (m *Manager) HasIntentOrActive(address string) bool {
	m.intentsMu.Lock()
	for _, in := range m.intents {
		if in.Address == address {
			m.intentsMu.Unlock()
			return true
		}
	}
	m.intentsMu.Unlock()

	m.activeMu.RLock()
	defer m.activeMu.RUnlock()
	_, ok := m.active[address]
	return ok
}

// WorkerCount and QueueDepth back the status reporter (C8).
func (m *Manager) WorkerCount() int {
	m.workersMu.RLock()
	defer m.workersMu.RUnlock()
	return len(m.workers)
}

func (m *Manager) WorkerNames() []string {
	m.workersMu.RLock()
	defer m.workersMu.RUnlock()
	names := make([]string, 0, len(m.workers))
	for name := range m.workers {
		names = append(names, name)
	}
	return names
}

func (m *Manager) QueueDepth() int { return m.queue.Len() }

// AcceptConnection runs the per-connection handshake and spins up the
// outbox/inbox loop pair for one worker socket. It blocks until the
// session ends.
func (m *Manager) AcceptConnection(conn net.Conn) {
	peerIdentity := conn.RemoteAddr().String()
	reader := dnet.NewFrameReader(conn)
	writer := dnet.NewFrameWriter(conn)

	session := newWorkerSession(peerIdentity, reader, writer, conn.Close, m)
	m.workersMu.Lock()
	m.workers[peerIdentity] = session
	m.workersMu.Unlock()

	stop := make(chan struct{})
	go session.runOutbox(stop)
	session.runInbox(peerIdentity, stop)
}

func (m *Manager) rebindWorker(oldName, newName string, s *WorkerSession) {
	m.workersMu.Lock()
	defer m.workersMu.Unlock()
	if existing, ok := m.workers[oldName]; ok && existing == s {
		delete(m.workers, oldName)
	}
	m.workers[newName] = s
}

func (m *Manager) removeWorker(name string) {
	m.workersMu.Lock()
	defer m.workersMu.Unlock()
	delete(m.workers, name)
}

func (m *Manager) sequenceForTask(id string) uint64 {
	m.registryMu.RLock()
	defer m.registryMu.RUnlock()
	return m.registry[id].Sequence
}

// dispatchOrQueue implements the §4.5 dispatch discipline: scan a snapshot
// of the worker table for the first Idle worker that accepts the task on
// its outbox; push to the queue if none do.
func (m *Manager) dispatchOrQueue(task chainmodel.Task, sequence uint64) {
	m.workersMu.RLock()
	snapshot := make([]*WorkerSession, 0, len(m.workers))
	for _, w := range m.workers {
		snapshot = append(snapshot, w)
	}
	m.workersMu.RUnlock()

	for _, w := range snapshot {
		if w.Status() == StatusIdle && w.Dispatch(task) {
			return
		}
	}
	m.queue.Push(task, sequence)
}

// RunPrimaryLoop implements §4.5's warmup + primary scheduling round. It
// blocks until stop is closed.
func (m *Manager) RunPrimaryLoop(stop <-chan struct{}) {
	select {
	case <-time.After(m.network.Warmup()):
	case <-stop:
		return
	}

	ticker := time.NewTicker(m.network.ReschedulingDuration())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.primaryRound()
		case <-stop:
			return
		}
	}
}

func (m *Manager) primaryRound() {
	m.intentsMu.Lock()
	pending := len(m.intents)
	m.intentsMu.Unlock()
	if pending == 0 {
		return
	}

	m.activeMu.RLock()
	activeNonEmpty := len(m.active) > 0
	m.activeMu.RUnlock()
	if activeNonEmpty {
		return
	}

	latest, err := m.rpc.GetLatestBlock()
	if err != nil {
		m.log.Errorw("primary loop: failed to fetch latest block", "err", err)
		return
	}
	latestSeq := parseSequence(latest.CurrentBlockIdentifier.Index)
	scanEndSeq := latestSeq - uint64(m.network.ReorgDepth())
	scanEndBlock, err := m.rpc.GetBlock(int64(scanEndSeq))
	if err != nil {
		m.log.Errorw("primary loop: failed to fetch scan-end block", "err", err)
		return
	}
	scanEnd := chainmodel.BlockInfo{Hash: scanEndBlock.Block.Hash, Sequence: scanEndSeq}

	m.intentsMu.Lock()
	drained := m.intents
	m.intents = nil
	m.intentsMu.Unlock()

	scanStart := scanEnd.Sequence
	m.activeMu.Lock()
	for _, intent := range drained {
		start := scanEnd
		if intent.Head != nil && intent.Head.Sequence < scanEnd.Sequence {
			start = *intent.Head
		}
		m.active[intent.Address] = chainmodel.NewAccountInfo(intent.Address, intent.InViewKey, intent.OutViewKey, start, scanEnd)
		if start.Sequence < scanStart {
			scanStart = start.Sequence
		}
	}
	accounts := make([]*chainmodel.AccountInfo, 0, len(m.active))
	for _, info := range m.active {
		accounts = append(accounts, info)
	}
	m.activeMu.Unlock()

	for _, r := range params.BlocksRange(scanStart, scanEnd.Sequence, m.network.PrimaryBatch()) {
		blocks, err := m.store.GetBlocks(r.Start, r.End)
		if err != nil {
			m.log.Errorw("primary loop: failed to fetch block batch", "start", r.Start, "end", r.End, "err", err)
			continue
		}
		for _, block := range blocks {
			for _, acct := range accounts {
				if uint64(block.Sequence) < acct.StartBlock.Sequence || uint64(block.Sequence) > acct.EndBlock.Sequence {
					continue
				}
				task := m.newTask(acct, block)
				m.registryMu.Lock()
				m.registry[task.ID] = chainmodel.TaskMeta{
					Since:    time.Now(),
					Sequence: uint64(block.Sequence),
					Hash:     block.Hash,
					Address:  acct.Address,
				}
				m.registryMu.Unlock()
				m.dispatchOrQueue(task, uint64(block.Sequence))
			}
		}
		if m.queue.Len() > m.network.QueueHighWater() {
			time.Sleep(3 * time.Second)
		}
	}
}

func (m *Manager) newTask(acct *chainmodel.AccountInfo, block chainmodel.Block) chainmodel.Task {
	notes := make([]chainmodel.SingleNote, 0, len(block.Transactions))
	for _, tx := range block.Transactions {
		notes = append(notes, chainmodel.SingleNote{TxHash: tx.Hash, SerializedNote: tx.SerializedNotes})
	}
	id, err := uuid.GenerateUUID()
	if err != nil {
		// go-uuid only fails if the system CSPRNG can't be read; at that
		// point the process is not healthy enough to schedule work, but a
		// task id collision is worse than a degraded one, so fall back to
		// a time-based id rather than panic.
		id = time.Now().Format(time.RFC3339Nano)
	}
	return chainmodel.Task{
		ID:                id,
		Address:           acct.Address,
		IncomingViewKey:   acct.InViewKey,
		OutgoingViewKey:   acct.OutViewKey,
		DecryptForSpender: true,
		Data:              notes,
	}
}

func parseSequence(index string) uint64 {
	var n uint64
	for _, r := range index {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + uint64(r-'0')
	}
	return n
}

// RunSecondaryLoop re-emits tasks that have sat in the registry longer
// than SecondaryStale, per §4.5.
func (m *Manager) RunSecondaryLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(m.network.ReschedulingDuration())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.secondaryRound()
		case <-stop:
			return
		}
	}
}

func (m *Manager) secondaryRound() {
	threshold := time.Now().Add(-m.network.SecondaryStale())

	m.registryMu.RLock()
	var stale []struct {
		id   string
		meta chainmodel.TaskMeta
	}
	for id, meta := range m.registry {
		if meta.Since.Before(threshold) {
			stale = append(stale, struct {
				id   string
				meta chainmodel.TaskMeta
			}{id, meta})
		}
	}
	m.registryMu.RUnlock()

	reemitted := 0
	for _, entry := range stale {
		if reemitted >= m.network.SecondaryCap() {
			m.log.Warnw("secondary loop: re-emission cap reached", "cap", m.network.SecondaryCap())
			break
		}

		m.activeMu.RLock()
		acct, ok := m.active[entry.meta.Address]
		m.activeMu.RUnlock()
		if !ok {
			m.registryMu.Lock()
			delete(m.registry, entry.id)
			m.registryMu.Unlock()
			continue
		}

		blockResp, err := m.rpc.GetBlock(int64(entry.meta.Sequence))
		if err != nil {
			m.log.Errorw("secondary loop: failed to re-fetch block", "sequence", entry.meta.Sequence, "err", err)
			continue
		}
		block := blockResp.Block.ToInner()
		task := m.newTask(acct, block)

		m.registryMu.Lock()
		delete(m.registry, entry.id)
		m.registry[task.ID] = chainmodel.TaskMeta{
			Since:    time.Now(),
			Sequence: entry.meta.Sequence,
			Hash:     entry.meta.Hash,
			Address:  entry.meta.Address,
		}
		m.registryMu.Unlock()

		m.dispatchOrQueue(task, entry.meta.Sequence)
		reemitted++
		if reemitted%500 == 0 {
			m.log.Infow("secondary loop progress", "reemitted", reemitted)
		}
	}
}
