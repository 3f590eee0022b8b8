// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package state

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"

	"github.com/erigontech/pevm/common"
	"github.com/erigontech/pevm/core/types/accounts"
)

const maxCachedCodeSize = 24 * 1024

type storageLocation struct {
	addr common.Address
	key  common.Hash
}

// CachedReader is a wrapper for an instance of type StateReader
// This wrapper only makes calls to the underlying reader if the item is not in the cache
//
// The cache is only valid while the underlying state does not change, so it
// must be purged once the changes of a block are written back.
type CachedReader struct {
	r        StateReader
	accounts *lru.Cache[common.Address, *accounts.Account]
	storage  *lru.Cache[storageLocation, uint256.Int]
	codes    *lru.Cache[common.Hash, []byte]
}

// NewCachedReader wraps a given state reader into the cached reader
func NewCachedReader(r StateReader, size int) (*CachedReader, error) {
	accs, err := lru.New[common.Address, *accounts.Account](size)
	if err != nil {
		return nil, err
	}
	storage, err := lru.New[storageLocation, uint256.Int](size)
	if err != nil {
		return nil, err
	}
	codes, err := lru.New[common.Hash, []byte](size)
	if err != nil {
		return nil, err
	}
	return &CachedReader{r: r, accounts: accs, storage: storage, codes: codes}, nil
}

// ReadAccountData is called when an account needs to be fetched from the state.
// Absent accounts are cached as nil.
func (cr *CachedReader) ReadAccountData(address common.Address) (*accounts.Account, error) {
	if a, ok := cr.accounts.Get(address); ok {
		return copyAccount(a), nil
	}
	a, err := cr.r.ReadAccountData(address)
	if err != nil {
		return nil, err
	}
	cr.accounts.Add(address, copyAccount(a))
	return a, nil
}

// ReadAccountStorage is called when a storage item needs to be fetched from the state
func (cr *CachedReader) ReadAccountStorage(address common.Address, key common.Hash) (uint256.Int, error) {
	loc := storageLocation{addr: address, key: key}
	if s, ok := cr.storage.Get(loc); ok {
		return s, nil
	}
	v, err := cr.r.ReadAccountStorage(address, key)
	if err != nil {
		return uint256.Int{}, err
	}
	cr.storage.Add(loc, v)
	return v, nil
}

// ReadAccountCode is called when code of an account needs to be fetched from the state
func (cr *CachedReader) ReadAccountCode(codeHash common.Hash) ([]byte, error) {
	if codeHash == common.EmptyCodeHash {
		return nil, nil
	}
	if c, ok := cr.codes.Get(codeHash); ok {
		return c, nil
	}
	c, err := cr.r.ReadAccountCode(codeHash)
	if err != nil {
		return nil, err
	}
	if len(c) <= maxCachedCodeSize {
		cr.codes.Add(codeHash, c)
	}
	return c, nil
}

// Purge drops every cached item.
func (cr *CachedReader) Purge() {
	cr.accounts.Purge()
	cr.storage.Purge()
	cr.codes.Purge()
}

func copyAccount(a *accounts.Account) *accounts.Account {
	if a == nil {
		return nil
	}
	cpy := accounts.NewAccount()
	cpy.Copy(a)
	return &cpy
}
