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

// Package walletrpc is a typed client for the external wallet node's HTTP
// surface: chain reads the scheduler needs (getChainInfo/getBlock/
// getBlocks) and the account-head/scanning/reset writes (the aggregator
// issues setAccountHead). The wallet node itself, and the rest of its REST surface
// (import/remove/getBalances/getTransactions/createTx), are out of scope.
package walletrpc

import "github.com/groundx/dscan/chainmodel"

// Response is the {status, data} envelope every wallet-node endpoint
// returns on a 2xx HTTP status.
type Response struct {
	Status uint16      `json:"status"`
	Data   interface{} `json:"data"`
}

// BlockIdentifier is the node's chain-tip/genesis descriptor shape.
type BlockIdentifier struct {
	Index string `json:"index"`
	Hash  string `json:"hash"`
}

// GetLatestBlockResponse is the body of /chain/getChainInfo.
type GetLatestBlockResponse struct {
	CurrentBlockIdentifier BlockIdentifier `json:"currentBlockIdentifier"`
	GenesisBlockIdentifier BlockIdentifier `json:"genesisBlockIdentifier"`
}

// EncryptedNote is one note as the wallet node serializes it.
type EncryptedNote struct {
	Hash       string `json:"hash"`
	Serialized string `json:"serialized"`
}

// RpcTransaction is one transaction as the wallet node serializes it.
type RpcTransaction struct {
	Hash  string          `json:"hash"`
	Notes []EncryptedNote `json:"notes"`
}

// RpcBlock is one block as the wallet node serializes it.
type RpcBlock struct {
	Hash              string           `json:"hash"`
	Sequence          uint32           `json:"sequence"`
	PreviousBlockHash string           `json:"previousBlockHash"`
	Transactions      []RpcTransaction `json:"transactions"`
}

func (b RpcBlock) ToInner() chainmodel.Block {
	txs := make([]chainmodel.Transaction, 0, len(b.Transactions))
	for _, tx := range b.Transactions {
		notes := make([]string, 0, len(tx.Notes))
		for _, n := range tx.Notes {
			notes = append(notes, n.Serialized)
		}
		txs = append(txs, chainmodel.Transaction{Hash: tx.Hash, SerializedNotes: notes})
	}
	return chainmodel.Block{
		Hash:         b.Hash,
		Sequence:     int64(b.Sequence),
		Transactions: txs,
	}
}

// GetBlockRequest is the body of /chain/getBlock.
type GetBlockRequest struct {
	Sequence   int64 `json:"sequence"`
	Serialized bool  `json:"serialized"`
}

// GetBlockResponse is the body returned by /chain/getBlock.
type GetBlockResponse struct {
	Block RpcBlock `json:"block"`
}

// GetBlocksRequest is the body of /chain/getBlocks.
type GetBlocksRequest struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// BlockItem wraps one block in a getBlocks response.
type BlockItem struct {
	Block RpcBlock `json:"block"`
}

// GetBlocksResponse is the body returned by /chain/getBlocks.
type GetBlocksResponse struct {
	Blocks []BlockItem `json:"blocks"`
}

// BlockWithHash is one block's discovered transactions, as sent to
// setAccountHead.
type BlockWithHash struct {
	Hash         string                          `json:"hash"`
	Sequence     int64                           `json:"sequence"`
	Transactions []chainmodel.TransactionWithHash `json:"transactions"`
}

// SetAccountHeadRequest is the body of /wallet/setAccountHead. ScanComplete
// is true only on the final chunk when the aggregate blocks list is split
// into SET_ACCOUNT_LIMIT-sized groups (see §4.6 of SPEC_FULL.md).
type SetAccountHeadRequest struct {
	Account      string          `json:"account"`
	Start        string          `json:"start"`
	End          string          `json:"end"`
	Blocks       []BlockWithHash `json:"blocks"`
	ScanComplete bool            `json:"scanComplete"`
}

// SetScanningRequest is the body of /wallet/setScanning.
type SetScanningRequest struct {
	Account string `json:"account"`
	Enabled bool   `json:"enabled"`
}

// ResetAccountRequest is the body of /wallet/resetAccount.
type ResetAccountRequest struct {
	Account              string `json:"account"`
	ResetCreatedAt       *bool  `json:"resetCreatedAt,omitempty"`
	ResetScanningEnabled *bool  `json:"resetScanningEnabled,omitempty"`
}

// GetAccountStatusRequest is the body of /wallet/getAccountStatus.
type GetAccountStatusRequest struct {
	Account string `json:"account"`
}

// AccountStatus is the account-status payload returned by the node.
type AccountStatus struct {
	Name string               `json:"name"`
	Head *chainmodel.BlockInfo `json:"head,omitempty"`
}

// GetAccountStatusResponse is the body returned by /wallet/getAccountStatus.
type GetAccountStatusResponse struct {
	Account AccountStatus `json:"account"`
}
