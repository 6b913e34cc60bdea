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
	"errors"
	"sync/atomic"
	"time"

	"github.com/groundx/dscan/chainmodel"
	"github.com/groundx/dscan/dlog"
	"github.com/groundx/dscan/dnet"
)

// Status is a worker's dispatch eligibility.
type Status int32

const (
	StatusUnregistered Status = iota
	StatusIdle
	StatusBusy
	StatusClosed
)

const (
	sendDeadline = 200 * time.Millisecond
)

// WorkerSession is the per-connection state for one worker, modeled on the
// teacher's CpuAgent: a bounded work channel drained by one loop, paired
// here with an inbox loop reading the same framed connection.
type WorkerSession struct {
	name   string
	conn   *dnet.FrameReader
	writer *dnet.FrameWriter
	closer func() error

	outbox chan chainmodel.Task
	status int32 // atomic Status

	lastSeen int64 // atomic unix nanos

	registered int32 // atomic bool: has a RegisterWorker named this session yet

	manager *Manager
	log     *dlog.Logger
}

func newWorkerSession(peerIdentity string, r *dnet.FrameReader, w *dnet.FrameWriter, closer func() error, m *Manager) *WorkerSession {
	s := &WorkerSession{
		name:    peerIdentity,
		conn:    r,
		writer:  w,
		closer:  closer,
		outbox:  make(chan chainmodel.Task, 1024),
		manager: m,
		log:     dlog.NewModuleLogger("scansvc.worker"),
	}
	atomic.StoreInt32(&s.status, int32(StatusUnregistered))
	s.touch()
	return s
}

func (s *WorkerSession) touch() {
	atomic.StoreInt64(&s.lastSeen, time.Now().UnixNano())
}

func (s *WorkerSession) lastSeenAt() time.Time {
	return time.Unix(0, atomic.LoadInt64(&s.lastSeen))
}

func (s *WorkerSession) setStatus(st Status) {
	atomic.StoreInt32(&s.status, int32(st))
}

func (s *WorkerSession) Status() Status {
	return Status(atomic.LoadInt32(&s.status))
}

// Dispatch attempts a non-blocking enqueue onto the worker's outbox; it is
// the dispatcher's fall-through signal that the worker is stuck.
func (s *WorkerSession) Dispatch(t chainmodel.Task) bool {
	select {
	case s.outbox <- t:
		s.setStatus(StatusBusy)
		return true
	default:
		return false
	}
}

var errSendTimeout = errors.New("scansvc: task send exceeded deadline")

// runOutbox drains the outbox and writes each task as a TaskRequest frame,
// enforcing the hard 200ms send deadline; a timed-out send is logged, not
// fatal, per the teacher's "log and continue" dispatch discipline.
func (s *WorkerSession) runOutbox(stop <-chan struct{}) {
	for {
		select {
		case task := <-s.outbox:
			t := task
			done := make(chan error, 1)
			go func() { done <- s.writer.WriteMessage(dnet.TaskRequestMessage(&t)) }()
			select {
			case err := <-done:
				if err != nil {
					s.log.Warnw("failed to send task", "worker", s.name, "task", t.ID, "err", err)
				}
			case <-time.After(sendDeadline):
				s.log.Warnw("task send exceeded deadline", "worker", s.name, "task", t.ID, "err", errSendTimeout)
			}
		case <-stop:
			return
		}
	}
}

// runInbox reads frames until silence timeout or a read/decode error, then
// tears the session down. peerIdentity is the tentative identity (peer
// address) used until the first RegisterWorker names the real one.
func (s *WorkerSession) runInbox(peerIdentity string, stop chan struct{}) {
	defer s.teardown(stop)

	silence := time.AfterFunc(s.manager.network.WorkerSilence(), func() {
		_ = s.closer()
	})
	defer silence.Stop()

	for {
		msg, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		silence.Reset(s.manager.network.WorkerSilence())
		s.touch()

		switch {
		case msg.RegisterWorker != nil:
			s.handleRegister(msg.RegisterWorker.Name)
		case msg.TaskResponse != nil:
			s.manager.handleTaskResponse(msg.TaskResponse)
			// The worker just finished the task that made it Busy; clear
			// that before trying to hand it another one, matching the
			// original's DResponse arm (pop-and-dispatch unconditionally,
			// only resetting to Idle once the queue is empty).
			s.setStatus(StatusIdle)
			s.tryDispatchNext()
		default:
			// TaskRequest on this direction is a protocol error.
			return
		}
	}
}

// handleRegister implements the §4.4 inbox discipline: a name differing
// from the session's current identity rebinds it (first registration pulls
// and dispatches a task immediately); an unchanged name is just the 30s
// keep-alive heartbeat.
func (s *WorkerSession) handleRegister(name string) {
	wasUnregistered := atomic.CompareAndSwapInt32(&s.registered, 0, 1)
	rebound := name != s.name
	if rebound {
		s.manager.rebindWorker(s.name, name, s)
		s.name = name
	}

	if wasUnregistered {
		s.setStatus(StatusIdle)
		s.tryDispatchNext()
		return
	}
	// Otherwise this RegisterWorker is a rename or just the 30s keep-alive
	// heartbeat; neither changes the worker's dispatch status.
}

func (s *WorkerSession) tryDispatchNext() {
	if s.Status() == StatusBusy {
		return
	}
	if task, ok := s.manager.queue.Pop(); ok {
		if s.Dispatch(task) {
			return
		}
		s.manager.queue.Push(task, s.manager.sequenceForTask(task.ID))
	}
	s.setStatus(StatusIdle)
}

func (s *WorkerSession) teardown(stop chan struct{}) {
	s.setStatus(StatusClosed)
	close(stop)
	s.manager.removeWorker(s.name)
	_ = s.closer()
}
