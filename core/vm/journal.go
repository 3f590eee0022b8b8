package vm

import (
	"github.com/holiman/uint256"

	"github.com/erigontech/pevm/common"
	"github.com/erigontech/pevm/core/types/accounts"
)

type storageSlot struct {
	addr common.Address
	key  common.Hash
}

// journal buffers the writes of a call frame on top of a view so that a
// revert can drop them. Reads see the buffered writes first.
type journal struct {
	view StateView

	accounts     map[common.Address]*accounts.Account
	accountOrder []common.Address
	storage      map[storageSlot]uint256.Int
	storageOrder []storageSlot
	codes        map[common.Hash][]byte
	codeOrder    []common.Hash
}

func newJournal(view StateView) *journal {
	return &journal{
		view:     view,
		accounts: map[common.Address]*accounts.Account{},
		storage:  map[storageSlot]uint256.Int{},
		codes:    map[common.Hash][]byte{},
	}
}

func (j *journal) getAccount(addr common.Address) (*accounts.Account, error) {
	if acc, ok := j.accounts[addr]; ok {
		cpy := accounts.NewAccount()
		cpy.Copy(acc)
		return &cpy, nil
	}
	return j.view.GetAccount(addr)
}

func (j *journal) setAccount(addr common.Address, acc *accounts.Account) {
	if _, ok := j.accounts[addr]; !ok {
		j.accountOrder = append(j.accountOrder, addr)
	}
	cpy := accounts.NewAccount()
	cpy.Copy(acc)
	j.accounts[addr] = &cpy
}

func (j *journal) getStorage(addr common.Address, key common.Hash) (uint256.Int, error) {
	if v, ok := j.storage[storageSlot{addr, key}]; ok {
		return v, nil
	}
	return j.view.GetStorage(addr, key)
}

func (j *journal) setStorage(addr common.Address, key common.Hash, value uint256.Int) {
	slot := storageSlot{addr, key}
	if _, ok := j.storage[slot]; !ok {
		j.storageOrder = append(j.storageOrder, slot)
	}
	j.storage[slot] = value
}

func (j *journal) getCode(codeHash common.Hash) ([]byte, error) {
	if code, ok := j.codes[codeHash]; ok {
		return code, nil
	}
	return j.view.GetCode(codeHash)
}

func (j *journal) setCode(codeHash common.Hash, code []byte) {
	if _, ok := j.codes[codeHash]; !ok {
		j.codeOrder = append(j.codeOrder, codeHash)
	}
	j.codes[codeHash] = code
}

// commit flushes the buffered writes into the view in first-write order.
func (j *journal) commit() error {
	for _, h := range j.codeOrder {
		if err := j.view.SetCode(h, j.codes[h]); err != nil {
			return err
		}
	}
	for _, addr := range j.accountOrder {
		if err := j.view.SetAccount(addr, j.accounts[addr]); err != nil {
			return err
		}
	}
	for _, slot := range j.storageOrder {
		if err := j.view.SetStorage(slot.addr, slot.key, j.storage[slot]); err != nil {
			return err
		}
	}
	return nil
}
