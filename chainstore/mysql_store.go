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
	"encoding/json"

	"github.com/groundx/dscan/chainmodel"
	"github.com/jinzhu/gorm"
	_ "github.com/go-sql-driver/mysql"
)

// blockRow is the gorm model backing the blocks table: one row per cached
// block, transactions flattened to a JSON column in place of a native jsonb
// type.
type blockRow struct {
	Sequence         uint64 `gorm:"primary_key;column:sequence"`
	Hash             string `gorm:"column:hash;index"`
	TransactionsJSON string `gorm:"column:transactions;type:json"`
}

func (blockRow) TableName() string { return "blocks" }

type mysqlStore struct {
	db *gorm.DB
}

func newMySQLStore(dsn string) (*mysqlStore, error) {
	db, err := gorm.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&blockRow{}).Error; err != nil {
		db.Close()
		return nil, err
	}
	return &mysqlStore{db: db}, nil
}

func (s *mysqlStore) Type() BackendType { return BackendMySQL }

func (s *mysqlStore) HasRange(start, end uint64) (bool, error) {
	var count int
	err := s.db.Model(&blockRow{}).
		Where("sequence >= ? AND sequence <= ?", start, end).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return uint64(count) == end-start+1, nil
}

func (s *mysqlStore) PutBatch(blocks []chainmodel.Block) error {
	tx := s.db.Begin()
	for _, b := range blocks {
		payload, err := json.Marshal(b.Transactions)
		if err != nil {
			tx.Rollback()
			return err
		}
		row := blockRow{Sequence: uint64(b.Sequence), Hash: b.Hash, TransactionsJSON: string(payload)}
		if err := tx.Save(&row).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit().Error
}

func (s *mysqlStore) GetBlocks(start, end uint64) ([]chainmodel.Block, error) {
	var rows []blockRow
	err := s.db.Where("sequence >= ? AND sequence <= ?", start, end).
		Order("sequence asc").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]chainmodel.Block, 0, len(rows))
	for _, r := range rows {
		var txs []chainmodel.Transaction
		if err := json.Unmarshal([]byte(r.TransactionsJSON), &txs); err != nil {
			return nil, err
		}
		out = append(out, chainmodel.Block{Hash: r.Hash, Sequence: int64(r.Sequence), Transactions: txs})
	}
	return out, nil
}

func (s *mysqlStore) Close() error {
	return s.db.Close()
}
