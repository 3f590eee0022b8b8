// Copyright 2019 The go-ethereum Authors
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

package state

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"github.com/erigontech/pevm/common"
	"github.com/erigontech/pevm/core/types"
	"github.com/erigontech/pevm/core/types/accounts"
)

// StateReader is the read surface of the base state preceding a block.
// A nil account with nil error means the account does not exist.
type StateReader interface {
	ReadAccountData(address common.Address) (*accounts.Account, error)
	ReadAccountStorage(address common.Address, key common.Hash) (uint256.Int, error)
	ReadAccountCode(codeHash common.Hash) ([]byte, error)
}

// StateWriter receives the committed changes of a block once all workers stopped.
type StateWriter interface {
	UpdateAccountData(address common.Address, account *accounts.Account) error
	WriteAccountStorage(address common.Address, key common.Hash, value uint256.Int) error
	UpdateAccountCode(codeHash common.Hash, code []byte) error
}

// ApplyStateDiff writes every location of diff into w. Codes go first so that
// an account never points to a code hash the writer has not seen.
func ApplyStateDiff(w StateWriter, diff *types.StateDiff) error {
	if diff == nil {
		return nil
	}

	codeHashes := make(common.Hashes, 0, len(diff.Codes))
	for h := range diff.Codes {
		codeHashes = append(codeHashes, h)
	}
	sort.Sort(codeHashes)
	for _, h := range codeHashes {
		if err := w.UpdateAccountCode(h, diff.Codes[h]); err != nil {
			return fmt.Errorf("update code %x: %w", h, err)
		}
	}

	addrs := make(common.Addresses, 0, len(diff.Accounts))
	for addr := range diff.Accounts {
		addrs = append(addrs, addr)
	}
	sort.Sort(addrs)
	for _, addr := range addrs {
		if err := w.UpdateAccountData(addr, diff.Accounts[addr]); err != nil {
			return fmt.Errorf("update account %x: %w", addr, err)
		}
	}

	for addr, slots := range diff.Storage {
		for key, value := range slots {
			if err := w.WriteAccountStorage(addr, key, value); err != nil {
				return fmt.Errorf("write storage %x/%x: %w", addr, key, err)
			}
		}
	}
	return nil
}

type NoopWriter struct {
}

func NewNoopWriter() *NoopWriter {
	return &NoopWriter{}
}

func (nw *NoopWriter) UpdateAccountData(address common.Address, account *accounts.Account) error {
	return nil
}

func (nw *NoopWriter) WriteAccountStorage(address common.Address, key common.Hash, value uint256.Int) error {
	return nil
}

func (nw *NoopWriter) UpdateAccountCode(codeHash common.Hash, code []byte) error {
	return nil
}
