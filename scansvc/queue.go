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

package scansvc

import (
	"container/heap"
	"sync"

	"github.com/groundx/dscan/chainmodel"
)

// queueItem is one task waiting for a worker, ordered by ascending block
// sequence with ties broken by insertion order (seq).
type queueItem struct {
	task     chainmodel.Task
	sequence uint64
	seq      uint64
}

type itemHeap []*queueItem

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].sequence != h[j].sequence {
		return h[i].sequence < h[j].sequence
	}
	return h[i].seq < h[j].seq
}
func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x interface{}) {
	*h = append(*h, x.(*queueItem))
}
func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// TaskQueue is a min-heap of pending tasks keyed by block sequence, total
// order with FIFO tie-breaking, guarded by its own lock per the one-lock-
// per-resource policy.
type TaskQueue struct {
	mu      sync.RWMutex
	heap    itemHeap
	counter uint64
}

func NewTaskQueue() *TaskQueue {
	q := &TaskQueue{}
	heap.Init(&q.heap)
	return q
}

// Push admits a task into the queue, ordered by sequence.
func (q *TaskQueue) Push(task chainmodel.Task, sequence uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.counter++
	heap.Push(&q.heap, &queueItem{task: task, sequence: sequence, seq: q.counter})
}

// Pop removes and returns the lowest-sequence task, or ok=false if empty.
func (q *TaskQueue) Pop() (chainmodel.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return chainmodel.Task{}, false
	}
	item := heap.Pop(&q.heap).(*queueItem)
	return item.task, true
}

// Len reports the current queue depth.
func (q *TaskQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.heap)
}
