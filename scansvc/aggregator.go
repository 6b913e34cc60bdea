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
	"github.com/groundx/dscan/chainmodel"
	"github.com/groundx/dscan/dnet"
	"github.com/groundx/dscan/walletrpc"
)

// handleTaskResponse implements §4.6's per-response update and, on
// completion, the atomic commit to the wallet node.
func (m *Manager) handleTaskResponse(resp *dnet.TaskResponse) {
	m.activeMu.RLock()
	acct, ok := m.active[resp.Address]
	m.activeMu.RUnlock()
	if !ok {
		m.log.Infow("discarding late response: account already finalised", "address", resp.Address, "task", resp.ID)
		return
	}

	m.registryMu.Lock()
	meta, ok := m.registry[resp.ID]
	if ok {
		delete(m.registry, resp.ID)
	}
	m.registryMu.Unlock()
	if !ok {
		m.log.Infow("discarding late response: task not in registry", "address", resp.Address, "task", resp.ID)
		return
	}

	m.activeMu.Lock()
	if len(resp.Data) > 0 {
		hashes := make([]chainmodel.TransactionWithHash, 0, len(resp.Data))
		for _, h := range resp.Data {
			hashes = append(hashes, chainmodel.TransactionWithHash{Hash: h})
		}
		acct.Discovered[meta.Hash] = hashes
	}
	acct.RemainingTasks--
	done := acct.RemainingTasks == 0
	var snapshot chainmodel.AccountInfo
	if done {
		snapshot = *acct
		delete(m.active, resp.Address)
	}
	m.activeMu.Unlock()

	if done {
		m.commitAccount(snapshot)
	}
}

// accountNameLen is the original's address_to_name truncation width: the
// wallet node and the completion callback identify an account by this
// short name, never by its full address.
const accountNameLen = 10

// accountName derives the short account identifier the wallet node and
// completion callback expect, mirroring the original's
// address_to_name(address) = address.substring(0, 10).
func accountName(address string) string {
	if len(address) <= accountNameLen {
		return address
	}
	return address[:accountNameLen]
}

// commitAccount sends the finished campaign's discovered transactions to
// the wallet node, chunked into SetAccountLimit-sized groups, then notifies
// the front end. Per §4.6.6, a failure here is surfaced but the AccountInfo
// is not restored: the wallet node remains the source of truth.
func (m *Manager) commitAccount(acct chainmodel.AccountInfo) {
	name := accountName(acct.Address)
	blocks := make([]walletrpc.BlockWithHash, 0, len(acct.Discovered))
	for hash, txs := range acct.Discovered {
		blocks = append(blocks, walletrpc.BlockWithHash{Hash: hash, Transactions: txs})
	}

	limit := m.network.SetAccountLimit()
	if limit <= 0 {
		limit = len(blocks)
	}
	if len(blocks) == 0 {
		if err := m.rpc.SetAccountHead(walletrpc.SetAccountHeadRequest{
			Account:      name,
			Start:        acct.StartBlock.Hash,
			End:          acct.EndBlock.Hash,
			ScanComplete: true,
		}); err != nil {
			m.log.Errorw("commit: setAccountHead failed", "address", acct.Address, "err", err)
		}
	} else {
		for i := 0; i < len(blocks); i += limit {
			hi := i + limit
			if hi > len(blocks) {
				hi = len(blocks)
			}
			if err := m.rpc.SetAccountHead(walletrpc.SetAccountHeadRequest{
				Account:      name,
				Start:        acct.StartBlock.Hash,
				End:          acct.EndBlock.Hash,
				Blocks:       blocks[i:hi],
				ScanComplete: hi == len(blocks),
			}); err != nil {
				m.log.Errorw("commit: setAccountHead chunk failed", "address", acct.Address, "chunk_start", i, "err", err)
			}
		}
	}

	m.log.Infow("account scan committed", "address", acct.Address, "blocks", len(blocks))
	if err := m.notifier.ScanCompleted(name); err != nil {
		m.log.Errorw("commit: completion notification failed", "address", acct.Address, "err", err)
	}
}
