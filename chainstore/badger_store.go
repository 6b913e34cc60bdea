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

package chainstore

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/groundx/dscan/chainmodel"
	"github.com/pkg/errors"
)

const (
	gcThreshold      = int64(1 << 30)
	sizeGCTickerTime = 1 * time.Minute
)

// badgerStore is an embedded-KV BlockStore, for single-box deployments that
// don't want a MySQL dependency. Keys are the 8-byte big-endian sequence
// number; values are the JSON-encoded block.
type badgerStore struct {
	db       *badger.DB
	gcTicker *time.Ticker
	stopGC   chan struct{}
}

func newBadgerStore(dir string) (*badgerStore, error) {
	if fi, err := os.Stat(dir); err == nil {
		if !fi.IsDir() {
			return nil, errors.Errorf("chainstore: %s is not a directory", dir)
		}
	} else if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "chainstore: making badger dir")
		}
	} else {
		return nil, err
	}

	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "chainstore: opening badger")
	}

	s := &badgerStore{db: db, gcTicker: time.NewTicker(sizeGCTickerTime), stopGC: make(chan struct{})}
	go s.runValueLogGC()
	return s, nil
}

func (s *badgerStore) runValueLogGC() {
	_, lastSize := s.db.Size()
	for {
		select {
		case <-s.gcTicker.C:
			_, curSize := s.db.Size()
			if curSize-lastSize < gcThreshold {
				continue
			}
			if err := s.db.RunValueLogGC(0.5); err != nil {
				continue
			}
			_, lastSize = s.db.Size()
		case <-s.stopGC:
			return
		}
	}
}

func seqKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func (s *badgerStore) Type() BackendType { return BackendBadger }

func (s *badgerStore) HasRange(start, end uint64) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		for seq := start; seq <= end; seq++ {
			if _, err := txn.Get(seqKey(seq)); err != nil {
				return err
			}
		}
		return nil
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *badgerStore) PutBatch(blocks []chainmodel.Block) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, b := range blocks {
			payload, err := json.Marshal(b)
			if err != nil {
				return err
			}
			if err := txn.Set(seqKey(uint64(b.Sequence)), payload); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *badgerStore) GetBlocks(start, end uint64) ([]chainmodel.Block, error) {
	out := make([]chainmodel.Block, 0, end-start+1)
	err := s.db.View(func(txn *badger.Txn) error {
		for seq := start; seq <= end; seq++ {
			item, err := txn.Get(seqKey(seq))
			if err != nil {
				return err
			}
			val, err := item.Value()
			if err != nil {
				return err
			}
			var b chainmodel.Block
			if err := json.Unmarshal(val, &b); err != nil {
				return err
			}
			out = append(out, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *badgerStore) Close() error {
	close(s.stopGC)
	s.gcTicker.Stop()
	return s.db.Close()
}
