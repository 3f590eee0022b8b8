// Copyright 2014 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package types

import (
	"github.com/erigontech/pevm/common"
)

// Log represents a contract log event. These events are generated by the LOG opcode and
// stored/indexed by the node.
type Log struct {
	// Consensus fields:
	// address of the contract that generated the event
	Address common.Address `json:"address"`
	// list of topics provided by the contract.
	Topics []common.Hash `json:"topics"`
	// supplied by the contract, usually ABI-encoded
	Data []byte `json:"data"`

	// Derived fields. These fields are filled in by the executor
	// but not secured by consensus.
	// index of the transaction in the block
	TxIndex uint `json:"transactionIndex"`
	// index of the log in the block
	Index uint `json:"logIndex"`
}

type Logs []*Log

// Copy returns a deep copy of the log list.
func (logs Logs) Copy() Logs {
	if logs == nil {
		return nil
	}
	logsCopy := make(Logs, 0, len(logs))
	for _, l := range logs {
		topics := make([]common.Hash, len(l.Topics))
		copy(topics, l.Topics)
		logsCopy = append(logsCopy, &Log{
			Address: l.Address,
			Topics:  topics,
			Data:    common.Copy(l.Data),
			TxIndex: l.TxIndex,
			Index:   l.Index,
		})
	}
	return logsCopy
}
