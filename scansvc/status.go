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
	"time"

	"github.com/groundx/dscan/metrics"
)

const statusInterval = 10 * time.Second

// StatusTickNotifier is the narrow slice of CompletionNotifier's sibling
// producer the status reporter needs; implemented by package notify.
type StatusTickNotifier interface {
	StatusTick(workers int, queueDepth int) error
}

var (
	workersGauge, setWorkersGauge = metrics.NewGauge("workers_connected", "Number of workers currently registered.")
	queueGauge, setQueueGauge     = metrics.NewGauge("queue_depth", "Number of tasks currently waiting for a worker.")
)

// RunStatusReporter logs a 10s operator summary, updates the Prometheus
// gauges, and (when tick is non-nil) publishes a StatusTick event.
func (m *Manager) RunStatusReporter(stop <-chan struct{}, tick StatusTickNotifier) {
	_ = workersGauge
	_ = queueGauge
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			workers := m.WorkerCount()
			depth := m.QueueDepth()
			setWorkersGauge(int64(workers))
			setQueueGauge(int64(depth))
			m.log.Infow("status", "workers", workers, "worker_ids", m.WorkerNames(), "queue_depth", depth)
			if tick != nil {
				if err := tick.StatusTick(workers, depth); err != nil {
					m.log.Warnw("status tick publish failed", "err", err)
				}
			}
		case <-stop:
			return
		}
	}
}
