package state

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/erigontech/pevm/common"
	"github.com/erigontech/pevm/core/types/accounts"
)

var (
	_ StateReader = (*InMemoryDB)(nil)
	_ StateWriter = (*InMemoryDB)(nil)
)

// InMemoryDB is a plain-state store kept in maps. Accounts are held in their
// storage encoding so a damaged record surfaces as ErrCorruptAccount on read,
// the same way a database backed reader would fail.
type InMemoryDB struct {
	lock     sync.RWMutex
	accounts map[common.Address][]byte
	storage  map[common.Address]map[common.Hash]uint256.Int
	codes    map[common.Hash][]byte
}

func NewInMemoryDB() *InMemoryDB {
	return &InMemoryDB{
		accounts: map[common.Address][]byte{},
		storage:  map[common.Address]map[common.Hash]uint256.Int{},
		codes:    map[common.Hash][]byte{},
	}
}

// PutAccount stores acc under addr, replacing any previous record.
func (db *InMemoryDB) PutAccount(addr common.Address, acc *accounts.Account) {
	enc := make([]byte, acc.EncodingLengthForStorage())
	acc.EncodeForStorage(enc)

	db.lock.Lock()
	defer db.lock.Unlock()
	db.accounts[addr] = enc
}

// PutRawAccount stores an already encoded record as is.
func (db *InMemoryDB) PutRawAccount(addr common.Address, enc []byte) {
	db.lock.Lock()
	defer db.lock.Unlock()
	db.accounts[addr] = common.Copy(enc)
}

func (db *InMemoryDB) PutStorage(addr common.Address, key common.Hash, value uint256.Int) {
	db.lock.Lock()
	defer db.lock.Unlock()
	db.putStorage(addr, key, value)
}

func (db *InMemoryDB) putStorage(addr common.Address, key common.Hash, value uint256.Int) {
	m, ok := db.storage[addr]
	if !ok {
		m = map[common.Hash]uint256.Int{}
		db.storage[addr] = m
	}
	if value.IsZero() {
		delete(m, key)
		return
	}
	m[key] = value
}

// PutCode stores code and returns its hash.
func (db *InMemoryDB) PutCode(code []byte) common.Hash {
	h := common.Keccak256Hash(code)
	db.lock.Lock()
	defer db.lock.Unlock()
	db.codes[h] = common.Copy(code)
	return h
}

func (db *InMemoryDB) ReadAccountData(address common.Address) (*accounts.Account, error) {
	db.lock.RLock()
	enc, ok := db.accounts[address]
	db.lock.RUnlock()
	if !ok {
		return nil, nil
	}
	acc := new(accounts.Account)
	if err := acc.DecodeForStorage(enc); err != nil {
		return nil, &FatalStoreError{Key: AccountKey(address), Err: fmt.Errorf("%w: %v", ErrCorruptAccount, err)}
	}
	return acc, nil
}

func (db *InMemoryDB) ReadAccountStorage(address common.Address, key common.Hash) (uint256.Int, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()
	return db.storage[address][key], nil
}

func (db *InMemoryDB) ReadAccountCode(codeHash common.Hash) ([]byte, error) {
	if codeHash == common.EmptyCodeHash || codeHash == (common.Hash{}) {
		return nil, nil
	}
	db.lock.RLock()
	code, ok := db.codes[codeHash]
	db.lock.RUnlock()
	if !ok {
		return nil, &FatalStoreError{Key: CodeKey(codeHash), Err: ErrMissingCode}
	}
	return code, nil
}

func (db *InMemoryDB) UpdateAccountData(address common.Address, account *accounts.Account) error {
	db.PutAccount(address, account)
	return nil
}

func (db *InMemoryDB) WriteAccountStorage(address common.Address, key common.Hash, value uint256.Int) error {
	db.PutStorage(address, key, value)
	return nil
}

func (db *InMemoryDB) UpdateAccountCode(codeHash common.Hash, code []byte) error {
	if h := common.Keccak256Hash(code); h != codeHash {
		return &FatalStoreError{Key: CodeKey(codeHash), Err: ErrCorruptCode}
	}
	db.lock.Lock()
	defer db.lock.Unlock()
	db.codes[codeHash] = common.Copy(code)
	return nil
}

// Copy returns an independent snapshot of the store.
func (db *InMemoryDB) Copy() *InMemoryDB {
	db.lock.RLock()
	defer db.lock.RUnlock()

	cpy := NewInMemoryDB()
	for addr, enc := range db.accounts {
		cpy.accounts[addr] = common.Copy(enc)
	}
	for addr, slots := range db.storage {
		m := make(map[common.Hash]uint256.Int, len(slots))
		for k, v := range slots {
			m[k] = v
		}
		cpy.storage[addr] = m
	}
	for h, code := range db.codes {
		cpy.codes[h] = common.Copy(code)
	}
	return cpy
}

// AccountCount is the number of accounts held by the store.
func (db *InMemoryDB) AccountCount() int {
	db.lock.RLock()
	defer db.lock.RUnlock()
	return len(db.accounts)
}
