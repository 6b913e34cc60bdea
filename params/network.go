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

// Package params holds the per-network constant tables that parameterize
// scheduling: reorg depth, batch sizes, the local block checkpoint, and the
// rescheduling cadence.
package params

import "time"

// Network describes the constants that vary between mainnet and testnet
// deployments of the scanner. The shape mirrors a small, closed interface
// rather than a struct so that call sites can be generic over the network
// the same way the scheduler's core loops are.
type Network interface {
	ID() uint8
	Name() string
	GenesisBlockHash() string
	ReorgDepth() int64
	PrimaryBatch() uint64
	SecondaryBatch() int64
	ReschedulingDuration() time.Duration
	LocalBlocksCheckpoint() uint64
	SetAccountLimit() int
	Warmup() time.Duration
	WorkerSilence() time.Duration
	SecondaryStale() time.Duration
	QueueHighWater() int
	SecondaryCap() int
}

const (
	MainnetID uint8 = 1
	TestnetID uint8 = 0
)

type network struct {
	id                    uint8
	name                  string
	genesisBlockHash      string
	reorgDepth            int64
	primaryBatch          uint64
	secondaryBatch        int64
	reschedulingDuration  time.Duration
	localBlocksCheckpoint uint64
	setAccountLimit       int
	warmup                time.Duration
	workerSilence         time.Duration
	secondaryStale        time.Duration
	queueHighWater        int
	secondaryCap          int
}

func (n *network) ID() uint8                            { return n.id }
func (n *network) Name() string                          { return n.name }
func (n *network) GenesisBlockHash() string               { return n.genesisBlockHash }
func (n *network) ReorgDepth() int64                      { return n.reorgDepth }
func (n *network) PrimaryBatch() uint64                   { return n.primaryBatch }
func (n *network) SecondaryBatch() int64                  { return n.secondaryBatch }
func (n *network) ReschedulingDuration() time.Duration    { return n.reschedulingDuration }
func (n *network) LocalBlocksCheckpoint() uint64          { return n.localBlocksCheckpoint }
func (n *network) SetAccountLimit() int                   { return n.setAccountLimit }
func (n *network) Warmup() time.Duration                  { return n.warmup }
func (n *network) WorkerSilence() time.Duration           { return n.workerSilence }
func (n *network) SecondaryStale() time.Duration          { return n.secondaryStale }
func (n *network) QueueHighWater() int                    { return n.queueHighWater }
func (n *network) SecondaryCap() int                      { return n.secondaryCap }

// Mainnet is the production network's constant table.
var Mainnet Network = &network{
	id:                    MainnetID,
	name:                  "mainnet",
	genesisBlockHash:      "eac623b099b8081d2bde92d43a4a7795385c94e2c0ae4097ef488972e83ff2b3",
	reorgDepth:            50,
	primaryBatch:          100,
	secondaryBatch:        10000,
	reschedulingDuration:  30 * time.Second,
	localBlocksCheckpoint: 922500,
	setAccountLimit:       20,
	warmup:                60 * time.Second,
	workerSilence:         300 * time.Second,
	secondaryStale:        600 * time.Second,
	queueHighWater:        10000,
	secondaryCap:          20000,
}

// Testnet is the pre-production network's constant table. It uses a deeper
// reorg depth than mainnet because testnet chain splits are more frequent.
var Testnet Network = &network{
	id:                    TestnetID,
	name:                  "testnet",
	genesisBlockHash:      "7999c680bbd15d9adb7392e0c27a7caac7e596de5560c18e96365d0fd68140e3",
	reorgDepth:            100,
	primaryBatch:          100,
	secondaryBatch:        10000,
	reschedulingDuration:  30 * time.Second,
	localBlocksCheckpoint: 79000,
	setAccountLimit:       20,
	warmup:                60 * time.Second,
	workerSilence:         300 * time.Second,
	secondaryStale:        600 * time.Second,
	queueHighWater:        10000,
	secondaryCap:          20000,
}

// ByID resolves the --network CLI flag (0 for testnet, 1 for mainnet) to a
// constant table.
func ByID(id uint8) (Network, bool) {
	switch id {
	case MainnetID:
		return Mainnet, true
	case TestnetID:
		return Testnet, true
	default:
		return nil, false
	}
}

// BlockRange is an inclusive [Start, End] range of block sequences, used to
// split a scan window into PRIMARY_BATCH-sized chunks.
type BlockRange struct {
	Start uint64
	End   uint64
}

// BlocksRange splits [start, end] (inclusive) into chunks of at most `batch`
// sequences, the Go equivalent of the Rust utils::blocks_range helper.
func BlocksRange(start, end uint64, batch uint64) []BlockRange {
	if batch == 0 || start > end {
		return nil
	}
	var out []BlockRange
	for lo := start; lo <= end; lo += batch {
		hi := lo + batch - 1
		if hi > end {
			hi = end
		}
		out = append(out, BlockRange{Start: lo, End: hi})
		if hi == end {
			break
		}
	}
	return out
}
