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

// Package chainstore pulls historical blocks from the wallet node in fixed
// batches, persists them locally, and serves contiguous ranges back to the
// scheduler. Two interchangeable backends (mysql, badger) satisfy the same
// BlockStore interface; an in-process LRU sits in front of either one.
package chainstore

import "github.com/groundx/dscan/chainmodel"

// BackendType names the storage engine a Store is configured against.
type BackendType string

const (
	BackendMySQL  BackendType = "mysql"
	BackendBadger BackendType = "badger"
)

// BlockStore persists cached blocks and answers contiguous range reads.
// HasRange must report true only when every sequence in [start, end] is
// present; callers rely on this to decide whether to re-fetch a whole batch
// rather than trust a partially-populated range.
type BlockStore interface {
	Type() BackendType
	HasRange(start, end uint64) (bool, error)
	PutBatch(blocks []chainmodel.Block) error
	GetBlocks(start, end uint64) ([]chainmodel.Block, error)
	Close() error
}

// Config selects and configures a BlockStore backend.
type Config struct {
	Backend BackendType

	// MySQL-only.
	DSN string

	// Badger-only.
	Dir string

	// LRUSize is the number of individual blocks cached in front of the
	// backend; 0 disables the read-through cache.
	LRUSize int
}

// Open builds the configured backend, optionally wrapped in an LRU
// read-through cache, mirroring the teacher's OpenDatabase backend-selection
// idiom (storage/database/db_manager.go's newDatabase).
func Open(cfg Config) (BlockStore, error) {
	var (
		store BlockStore
		err   error
	)
	switch cfg.Backend {
	case BackendBadger:
		store, err = newBadgerStore(cfg.Dir)
	case BackendMySQL, "":
		store, err = newMySQLStore(cfg.DSN)
	default:
		store, err = newMySQLStore(cfg.DSN)
	}
	if err != nil {
		return nil, err
	}
	if cfg.LRUSize > 0 {
		return newCachedStore(store, cfg.LRUSize)
	}
	return store, nil
}
