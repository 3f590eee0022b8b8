package types

import (
	"github.com/holiman/uint256"

	"github.com/erigontech/pevm/common"
	"github.com/erigontech/pevm/core/types/accounts"
)

// StateDiff is a set of final values per touched location. It is used both
// for the changes of a single transaction and for the committed changes of a
// whole block.
type StateDiff struct {
	Accounts map[common.Address]*accounts.Account
	Storage  map[common.Address]map[common.Hash]uint256.Int
	Codes    map[common.Hash][]byte
}

func NewStateDiff() *StateDiff {
	return &StateDiff{
		Accounts: map[common.Address]*accounts.Account{},
		Storage:  map[common.Address]map[common.Hash]uint256.Int{},
		Codes:    map[common.Hash][]byte{},
	}
}

func (d *StateDiff) SetAccount(addr common.Address, acc *accounts.Account) {
	cpy := new(accounts.Account)
	cpy.Copy(acc)
	d.Accounts[addr] = cpy
}

func (d *StateDiff) SetStorage(addr common.Address, key common.Hash, value uint256.Int) {
	m, ok := d.Storage[addr]
	if !ok {
		m = map[common.Hash]uint256.Int{}
		d.Storage[addr] = m
	}
	m[key] = value
}

func (d *StateDiff) SetCode(codeHash common.Hash, code []byte) {
	d.Codes[codeHash] = common.Copy(code)
}

// Len is the number of locations in the diff.
func (d *StateDiff) Len() int {
	if d == nil {
		return 0
	}
	n := len(d.Accounts) + len(d.Codes)
	for _, m := range d.Storage {
		n += len(m)
	}
	return n
}

func (d *StateDiff) IsEmpty() bool { return d.Len() == 0 }
