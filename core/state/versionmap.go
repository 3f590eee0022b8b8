package state

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/holiman/uint256"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/tidwall/btree"
)

// Version is the identity of one execution attempt of a transaction.
// TxIndex -1 stands for the base state preceding the block.
type Version struct {
	TxIndex     int
	Incarnation int
}

var StorageVersion = Version{TxIndex: -1, Incarnation: -1}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.TxIndex, v.Incarnation)
}

// BalanceDelta is a deferred credit to an account balance. It lets many
// transactions pay the same account (the block beneficiary above all)
// without reading it, so they do not depend on each other.
type BalanceDelta struct {
	Amount uint256.Int
}

const (
	FlagDone     = 0
	FlagEstimate = 1
)

const (
	MVReadResultDone       = 0
	MVReadResultDependency = 1
	MVReadResultNone       = 2
)

type WriteCell struct {
	flag        uint
	incarnation int
	data        interface{}
}

type versionList struct {
	mu    sync.RWMutex
	cells btree.Map[int, *WriteCell]
}

type ReadResult struct {
	depIdx      int
	incarnation int
	value       interface{}
	status      int
	delta       uint256.Int
	deltas      []Version
}

func (res ReadResult) DepIdx() int { return res.depIdx }

func (res ReadResult) Incarnation() int { return res.incarnation }

func (res ReadResult) Value() interface{} { return res.value }

func (res ReadResult) Status() int { return res.status }

func (res ReadResult) Version() Version {
	return Version{TxIndex: res.depIdx, Incarnation: res.incarnation}
}

// Delta is the sum of the balance deltas sitting above the resolved value.
func (res ReadResult) Delta() *uint256.Int { return &res.delta }

// Deltas lists the versions of the balance deltas folded into Delta, from
// the highest transaction down.
func (res ReadResult) Deltas() []Version { return res.deltas }

// VersionMap is the multi-version memory shared by all workers of one block.
// For every location it keeps the values written by each transaction, keyed
// by transaction index. Writers of one location serialize on its list, while
// distinct locations never contend.
type VersionMap struct {
	s *xsync.Map[VersionKey, *versionList]

	// keys written by the last recorded incarnation of every transaction
	lastWritten []atomic.Pointer[[]VersionKey]
}

func NewVersionMap(numTx int) *VersionMap {
	return &VersionMap{
		s:           xsync.NewMap[VersionKey, *versionList](),
		lastWritten: make([]atomic.Pointer[[]VersionKey], numTx),
	}
}

// NumTx is the number of transactions the map was sized for.
func (vm *VersionMap) NumTx() int {
	return len(vm.lastWritten)
}

func (vm *VersionMap) getKeyCells(k VersionKey) (*versionList, bool) {
	return vm.s.Load(k)
}

func (vm *VersionMap) getOrCreateKeyCells(k VersionKey) *versionList {
	if l, ok := vm.s.Load(k); ok {
		return l
	}
	l, _ := vm.s.LoadOrStore(k, &versionList{})
	return l
}

// Write installs data as the value written by version v at k. It clears an
// estimate left by a previous incarnation of the same transaction.
func (vm *VersionMap) Write(k VersionKey, v Version, data interface{}) {
	l := vm.getOrCreateKeyCells(k)

	l.mu.Lock()
	defer l.mu.Unlock()
	if ci, ok := l.cells.Get(v.TxIndex); ok && ci.flag != FlagEstimate && ci.incarnation > v.Incarnation {
		panic(fmt.Errorf("existing transaction value does not have lower incarnation: %v, %v", k, v))
	}
	l.cells.Set(v.TxIndex, &WriteCell{flag: FlagDone, incarnation: v.Incarnation, data: data})
}

// MarkEstimate flags the entry of txIdx at k as an estimate. An absent entry
// is created as a bare estimate.
func (vm *VersionMap) MarkEstimate(k VersionKey, txIdx int) {
	l := vm.getOrCreateKeyCells(k)

	l.mu.Lock()
	defer l.mu.Unlock()
	if ci, ok := l.cells.Get(txIdx); ok {
		ci.flag = FlagEstimate
		return
	}
	l.cells.Set(txIdx, &WriteCell{flag: FlagEstimate, incarnation: -1})
}

// Delete drops the entry of txIdx at k. Missing entries are ignored.
func (vm *VersionMap) Delete(k VersionKey, txIdx int) {
	l, ok := vm.getKeyCells(k)
	if !ok {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cells.Delete(txIdx)
}

// Read resolves k as seen by txIdx: the entry with the highest index below
// txIdx. Balance deltas met on the way down are summed and reported with the
// full value found under them, or with MVReadResultNone if the walk reached
// the base state.
func (vm *VersionMap) Read(k VersionKey, txIdx int) (res ReadResult) {
	res.depIdx = -1
	res.incarnation = -1
	res.status = MVReadResultNone

	l, ok := vm.getKeyCells(k)
	if !ok {
		return
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	l.cells.Descend(txIdx-1, func(idx int, c *WriteCell) bool {
		if c.flag == FlagEstimate {
			res.depIdx = idx
			res.incarnation = -1
			res.value = nil
			res.status = MVReadResultDependency
			return false
		}
		if d, ok := c.data.(BalanceDelta); ok {
			res.delta.Add(&res.delta, &d.Amount)
			res.deltas = append(res.deltas, Version{TxIndex: idx, Incarnation: c.incarnation})
			return true
		}
		res.depIdx = idx
		res.incarnation = c.incarnation
		res.value = c.data
		res.status = MVReadResultDone
		return false
	})

	if res.status == MVReadResultDependency {
		res.delta.Clear()
		res.deltas = nil
	}
	return
}

// Record installs the write set of version v and drops the entries its
// previous incarnation wrote at locations this one did not touch. It reports
// whether v wrote a location the previous incarnation had not written.
func (vm *VersionMap) Record(v Version, writes VersionedWrites) bool {
	keys := make([]VersionKey, 0, len(writes))
	for _, w := range writes {
		vm.Write(w.Path, v, w.Val)
		keys = append(keys, w.Path)
	}

	var prev []VersionKey
	if p := vm.lastWritten[v.TxIndex].Swap(&keys); p != nil {
		prev = *p
	}

	prevSet := make(map[VersionKey]struct{}, len(prev))
	for _, k := range prev {
		prevSet[k] = struct{}{}
	}

	wroteNewLocation := false
	curSet := make(map[VersionKey]struct{}, len(keys))
	for _, k := range keys {
		curSet[k] = struct{}{}
		if _, ok := prevSet[k]; !ok {
			wroteNewLocation = true
		}
	}

	for _, k := range prev {
		if _, ok := curSet[k]; !ok {
			vm.Delete(k, v.TxIndex)
		}
	}

	return wroteNewLocation
}

// ConvertWritesToEstimates marks every location written by the last recorded
// incarnation of txIdx as an estimate.
func (vm *VersionMap) ConvertWritesToEstimates(txIdx int) {
	p := vm.lastWritten[txIdx].Load()
	if p == nil {
		return
	}
	for _, k := range *p {
		vm.MarkEstimate(k, txIdx)
	}
}

// Remove deletes every entry of txIdx. Calling it twice is harmless.
func (vm *VersionMap) Remove(txIdx int) {
	p := vm.lastWritten[txIdx].Swap(nil)
	if p == nil {
		return
	}
	for _, k := range *p {
		vm.Delete(k, txIdx)
	}
}

// Latest resolves k as seen after the whole block. Estimates are reported as
// dependencies, the same way Read does.
func (vm *VersionMap) Latest(k VersionKey) ReadResult {
	return vm.Read(k, len(vm.lastWritten))
}

// Range calls f for every location that holds at least one entry.
func (vm *VersionMap) Range(f func(k VersionKey) bool) {
	vm.s.Range(func(k VersionKey, l *versionList) bool {
		l.mu.RLock()
		n := l.cells.Len()
		l.mu.RUnlock()
		if n == 0 {
			return true
		}
		return f(k)
	})
}

// Len is the number of locations tracked, including ones left empty by deletes.
func (vm *VersionMap) Len() int {
	return vm.s.Size()
}

// ValidateVersion reports whether every read recorded for txIdx still
// resolves to the same version, with the same set of folded deltas.
func ValidateVersion(txIdx int, lastIO *VersionedIO, versionedData *VersionMap) bool {
	return ValidateReads(txIdx, lastIO.ReadSet(txIdx), versionedData)
}

// ValidateReads checks reads made on behalf of txIdx against the current
// contents of versionedData.
func ValidateReads(txIdx int, reads VersionedReads, versionedData *VersionMap) (valid bool) {
	valid = true

	for _, rd := range reads {
		mvResult := versionedData.Read(rd.Path, txIdx)
		switch mvResult.Status() {
		case MVReadResultDone:
			valid = rd.Kind == ReadKindMap && rd.V == mvResult.Version()
		case MVReadResultDependency:
			valid = false
		case MVReadResultNone:
			valid = rd.Kind == ReadKindStorage
		default:
			panic(fmt.Errorf("should not happen - undefined vm read status: %v", mvResult.Status()))
		}
		if valid {
			valid = sameVersions(rd.Deltas, mvResult.Deltas())
		}
		if !valid {
			break
		}
	}

	return
}

func sameVersions(a, b []Version) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
