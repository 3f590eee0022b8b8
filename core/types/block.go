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

// Package types contains the data types the executor consumes and produces.
package types

import (
	"github.com/holiman/uint256"

	"github.com/erigontech/pevm/common"
)

// BlockEnv carries the block-level values every transaction of the block
// observes. It is the trimmed down equivalent of a header plus block context.
type BlockEnv struct {
	Number   uint64
	Time     uint64
	Coinbase common.Address // beneficiary of the priority fees
	GasLimit uint64
	BaseFee  uint256.Int
	ChainID  uint64
}

// NewBlockEnv returns an environment with a zero base fee and an unbounded
// block gas limit, enough for most tests.
func NewBlockEnv(number uint64, coinbase common.Address) *BlockEnv {
	return &BlockEnv{
		Number:   number,
		Coinbase: coinbase,
		GasLimit: ^uint64(0),
		ChainID:  1,
	}
}
