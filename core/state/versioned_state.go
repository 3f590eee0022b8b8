package state

import (
	"github.com/holiman/uint256"

	"github.com/erigontech/pevm/common"
	"github.com/erigontech/pevm/core/types/accounts"
)

// VersionedState is the view one incarnation of one transaction executes
// against. Reads resolve through its own writes, then the version map, then
// the base reader. Every resolution is recorded for later validation.
//
// Account values kept in the version map are never mutated after they are
// written. The view hands out copies.
type VersionedState struct {
	base        StateReader
	versionMap  *VersionMap
	txIndex     int
	incarnation int

	values    map[VersionKey]interface{}
	reads     map[VersionKey]VersionedRead
	readOrder []VersionKey

	written    map[VersionKey]struct{}
	writeOrder []VersionKey

	deltas     map[common.Address]*uint256.Int
	deltaOrder []common.Address
}

func NewVersionedState(base StateReader, versionMap *VersionMap, txIndex, incarnation int) *VersionedState {
	return &VersionedState{
		base:        base,
		versionMap:  versionMap,
		txIndex:     txIndex,
		incarnation: incarnation,
		values:      map[VersionKey]interface{}{},
		reads:       map[VersionKey]VersionedRead{},
		written:     map[VersionKey]struct{}{},
		deltas:      map[common.Address]*uint256.Int{},
	}
}

func (s *VersionedState) TxIndex() int { return s.txIndex }

func (s *VersionedState) Incarnation() int { return s.incarnation }

func (s *VersionedState) Version() Version {
	return Version{TxIndex: s.txIndex, Incarnation: s.incarnation}
}

// versionedRead resolves k below the current transaction. readStorage serves
// the location from the base state when no transaction below wrote it.
func (s *VersionedState) versionedRead(k VersionKey, readStorage func() (interface{}, error)) (interface{}, *ReadResult, error) {
	var res ReadResult
	if s.versionMap != nil {
		res = s.versionMap.Read(k, s.txIndex)
	} else {
		res = ReadResult{depIdx: -1, incarnation: -1, status: MVReadResultNone}
	}

	vr := VersionedRead{Path: k, V: res.Version(), Deltas: res.Deltas()}

	var v interface{}
	switch res.Status() {
	case MVReadResultDone:
		v = res.Value()
		vr.Kind = ReadKindMap
	case MVReadResultDependency:
		return nil, nil, &DependencyError{TxIndex: res.DepIdx()}
	case MVReadResultNone:
		var err error
		if v, err = readStorage(); err != nil {
			return nil, nil, err
		}
		vr.Kind = ReadKindStorage
	}

	if _, ok := s.reads[k]; !ok {
		s.reads[k] = vr
		s.readOrder = append(s.readOrder, k)
	}
	return v, &res, nil
}

func (s *VersionedState) resolveAccount(addr common.Address) (*accounts.Account, error) {
	k := AccountKey(addr)
	if v, ok := s.values[k]; ok {
		return v.(*accounts.Account), nil
	}

	v, res, err := s.versionedRead(k, func() (interface{}, error) {
		return s.base.ReadAccountData(addr)
	})
	if err != nil {
		return nil, err
	}

	acc, _ := v.(*accounts.Account)
	if len(res.Deltas()) > 0 {
		credited := accounts.NewAccount()
		if acc != nil {
			credited.Copy(acc)
		}
		credited.Balance.Add(&credited.Balance, res.Delta())
		acc = &credited
	}
	s.values[k] = acc

	if d, ok := s.deltas[addr]; ok {
		credited := accounts.NewAccount()
		if acc != nil {
			credited.Copy(acc)
		}
		credited.Balance.Add(&credited.Balance, d)
		delete(s.deltas, addr)
		s.removeDeltaOrder(addr)
		s.setValue(k, &credited)
		acc = &credited
	}
	return acc, nil
}

// GetAccount returns a copy of the account at addr, or nil if it does not exist.
func (s *VersionedState) GetAccount(addr common.Address) (*accounts.Account, error) {
	acc, err := s.resolveAccount(addr)
	if err != nil || acc == nil {
		return nil, err
	}
	cpy := accounts.NewAccount()
	cpy.Copy(acc)
	return &cpy, nil
}

func (s *VersionedState) SetAccount(addr common.Address, acc *accounts.Account) error {
	cpy := accounts.NewAccount()
	cpy.Copy(acc)
	if _, ok := s.deltas[addr]; ok {
		delete(s.deltas, addr)
		s.removeDeltaOrder(addr)
	}
	s.setValue(AccountKey(addr), &cpy)
	return nil
}

// AddBalance credits addr without reading it when the account was not
// touched yet. The credit travels as a BalanceDelta and is folded in by
// whoever reads the account later.
func (s *VersionedState) AddBalance(addr common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	k := AccountKey(addr)
	if v, ok := s.values[k]; ok {
		credited := accounts.NewAccount()
		if acc := v.(*accounts.Account); acc != nil {
			credited.Copy(acc)
		}
		credited.Balance.Add(&credited.Balance, amount)
		s.setValue(k, &credited)
		return nil
	}

	if d, ok := s.deltas[addr]; ok {
		d.Add(d, amount)
		return nil
	}
	s.deltas[addr] = new(uint256.Int).Set(amount)
	s.deltaOrder = append(s.deltaOrder, addr)
	return nil
}

func (s *VersionedState) GetStorage(addr common.Address, key common.Hash) (uint256.Int, error) {
	k := StorageKey(addr, key)
	if v, ok := s.values[k]; ok {
		return v.(uint256.Int), nil
	}
	v, _, err := s.versionedRead(k, func() (interface{}, error) {
		return s.base.ReadAccountStorage(addr, key)
	})
	if err != nil {
		return uint256.Int{}, err
	}
	value := v.(uint256.Int)
	s.values[k] = value
	return value, nil
}

func (s *VersionedState) SetStorage(addr common.Address, key common.Hash, value uint256.Int) error {
	s.setValue(StorageKey(addr, key), value)
	return nil
}

func (s *VersionedState) GetCode(codeHash common.Hash) ([]byte, error) {
	if codeHash == common.EmptyCodeHash || codeHash == (common.Hash{}) {
		return nil, nil
	}
	k := CodeKey(codeHash)
	if v, ok := s.values[k]; ok {
		return v.([]byte), nil
	}
	v, _, err := s.versionedRead(k, func() (interface{}, error) {
		code, err := s.base.ReadAccountCode(codeHash)
		if err != nil {
			return nil, err
		}
		if code == nil {
			return nil, &FatalStoreError{Key: k, Err: ErrMissingCode}
		}
		return code, nil
	})
	if err != nil {
		return nil, err
	}
	code := v.([]byte)
	s.values[k] = code
	return code, nil
}

func (s *VersionedState) SetCode(codeHash common.Hash, code []byte) error {
	s.setValue(CodeKey(codeHash), common.Copy(code))
	return nil
}

func (s *VersionedState) setValue(k VersionKey, v interface{}) {
	s.values[k] = v
	if _, ok := s.written[k]; !ok {
		s.written[k] = struct{}{}
		s.writeOrder = append(s.writeOrder, k)
	}
}

func (s *VersionedState) removeDeltaOrder(addr common.Address) {
	for i, a := range s.deltaOrder {
		if a == addr {
			s.deltaOrder = append(s.deltaOrder[:i], s.deltaOrder[i+1:]...)
			return
		}
	}
}

func (s *VersionedState) VersionedReads() VersionedReads {
	reads := make(VersionedReads, 0, len(s.readOrder))
	for _, k := range s.readOrder {
		reads = append(reads, s.reads[k])
	}
	return reads
}

// VersionedWrites returns the full writes in first-write order followed by
// the pending balance deltas.
func (s *VersionedState) VersionedWrites() VersionedWrites {
	v := s.Version()
	writes := make(VersionedWrites, 0, len(s.writeOrder)+len(s.deltaOrder))
	for _, k := range s.writeOrder {
		writes = append(writes, VersionedWrite{Path: k, V: v, Val: s.values[k]})
	}
	for _, addr := range s.deltaOrder {
		writes = append(writes, VersionedWrite{Path: AccountKey(addr), V: v, Val: BalanceDelta{Amount: *s.deltas[addr]}})
	}
	return writes
}

// Reset drops all reads and writes so the view can be reused for the next
// incarnation.
func (s *VersionedState) Reset(incarnation int) {
	s.incarnation = incarnation
	clear(s.values)
	clear(s.reads)
	clear(s.written)
	clear(s.deltas)
	s.readOrder = s.readOrder[:0]
	s.writeOrder = s.writeOrder[:0]
	s.deltaOrder = s.deltaOrder[:0]
}
