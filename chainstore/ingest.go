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
	"errors"
	"time"

	"github.com/groundx/dscan/chainmodel"
	"github.com/groundx/dscan/dlog"
	"github.com/groundx/dscan/params"
	"github.com/groundx/dscan/walletrpc"
)

var retryBackoff = 1 * time.Second

// errStopped is returned by EnsureCheckpoint when stop fires mid-retry.
var errStopped = errors.New("chainstore: ingestion stopped")

// chainClient is the subset of walletrpc.Client the ingester needs; kept
// narrow so tests can fake it without spinning up an HTTP server.
type chainClient interface {
	GetBlocks(start, end uint64) (*walletrpc.GetBlocksResponse, error)
}

// Ingester fills the local store with blocks [1, checkpoint] in
// network.PrimaryBatch()-sized batches on process start, retrying an
// unavailable wallet node forever rather than failing out.
type Ingester struct {
	store   BlockStore
	client  chainClient
	network params.Network
	log     *dlog.Logger
}

func NewIngester(store BlockStore, client chainClient, network params.Network) *Ingester {
	return &Ingester{store: store, client: client, network: network, log: dlog.NewModuleLogger("chainstore")}
}

// EnsureCheckpoint guarantees blocks [1, network.LocalBlocksCheckpoint()]
// are present and contiguous in the local store before returning. stop, if
// closed, aborts the wait between retries (used for graceful shutdown).
func (in *Ingester) EnsureCheckpoint(stop <-chan struct{}) error {
	checkpoint := in.network.LocalBlocksCheckpoint()
	batch := in.network.PrimaryBatch()
	for _, r := range params.BlocksRange(1, checkpoint, batch) {
		if err := in.ensureRange(r.Start, r.End, stop); err != nil {
			return err
		}
	}
	return nil
}

// ensureRange fetches and persists [start, end] if not already fully
// present; the whole range is re-fetched on any gap, never trusted
// partially, per the contiguous-range guarantee.
func (in *Ingester) ensureRange(start, end uint64, stop <-chan struct{}) error {
	present, err := in.store.HasRange(start, end)
	if err != nil {
		return err
	}
	if present {
		return nil
	}

	for {
		resp, err := in.client.GetBlocks(start, end)
		if err == nil {
			blocks := make([]chainmodel.Block, 0, len(resp.Blocks))
			for _, item := range resp.Blocks {
				blocks = append(blocks, item.Block.ToInner())
			}
			if err := in.store.PutBatch(blocks); err == nil {
				return nil
			} else {
				in.log.Errorw("failed to persist block batch, retrying", "start", start, "end", end, "err", err)
			}
		} else {
			in.log.Errorw("failed to fetch block batch, retrying", "start", start, "end", end, "err", err)
		}

		select {
		case <-stop:
			return errStopped
		case <-time.After(retryBackoff):
		}
	}
}
