package exec

import (
	"sync"
	"sync/atomic"

	"github.com/erigontech/pevm/core/state"
)

type txStatus struct {
	mu          sync.Mutex
	incarnation int
	status      TxStatus
}

type txDependency struct {
	mu         sync.Mutex
	dependents []int
}

var noVersion = state.Version{TxIndex: -1, Incarnation: -1}

// Scheduler hands out execution and validation tasks for one block. Two
// cursors sweep the block from the start: executionIdx over transactions
// ready to run, validationIdx over transactions whose reads must be checked.
// Aborts rewind the cursors; decreaseCnt makes a rewind racing with the
// completion check visible so the block is never declared done early.
type Scheduler struct {
	numTx int

	executionIdx   atomic.Int64
	validationIdx  atomic.Int64
	decreaseCnt    atomic.Int64
	numActiveTasks atomic.Int64
	doneMarker     atomic.Bool

	status []txStatus
	deps   []txDependency

	executions         atomic.Uint64
	validations        atomic.Uint64
	validationFailures atomic.Uint64
	dependencyAborts   atomic.Uint64
}

func NewScheduler(numTx int) *Scheduler {
	return &Scheduler{
		numTx:  numTx,
		status: make([]txStatus, numTx),
		deps:   make([]txDependency, numTx),
	}
}

func (s *Scheduler) NumTx() int { return s.numTx }

func (s *Scheduler) Done() bool { return s.doneMarker.Load() }

// Status returns the current status and incarnation of txIdx.
func (s *Scheduler) Status(txIdx int) (TxStatus, int) {
	ts := &s.status[txIdx]
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.status, ts.incarnation
}

// NextTask returns the next unit of work. Validation wins while its cursor
// is behind the execution cursor so that aborts surface early.
func (s *Scheduler) NextTask() (state.Version, TaskKind) {
	if s.validationIdx.Load() < s.executionIdx.Load() {
		if v, ok := s.nextVersionToValidate(); ok {
			return v, TaskKindValidation
		}
	} else {
		if v, ok := s.nextVersionToExecute(); ok {
			return v, TaskKindExecution
		}
	}
	if s.Done() {
		return noVersion, TaskKindDone
	}
	return noVersion, TaskKindWait
}

func (s *Scheduler) checkDone() {
	observed := s.decreaseCnt.Load()
	n := int64(s.numTx)
	if min(s.executionIdx.Load(), s.validationIdx.Load()) >= n &&
		s.numActiveTasks.Load() == 0 &&
		observed == s.decreaseCnt.Load() {
		s.doneMarker.Store(true)
	}
}

func (s *Scheduler) decreaseExecutionIdx(target int) {
	decreaseTo(&s.executionIdx, int64(target))
	s.decreaseCnt.Add(1)
}

func (s *Scheduler) decreaseValidationIdx(target int) {
	decreaseTo(&s.validationIdx, int64(target))
	s.decreaseCnt.Add(1)
}

func decreaseTo(idx *atomic.Int64, target int64) {
	for {
		cur := idx.Load()
		if cur <= target || idx.CompareAndSwap(cur, target) {
			return
		}
	}
}

// tryIncarnate claims txIdx for execution if it is ReadyToExecute. Callers
// own the active task accounting.
func (s *Scheduler) tryIncarnate(txIdx int) (state.Version, bool) {
	if txIdx >= s.numTx {
		return noVersion, false
	}
	ts := &s.status[txIdx]
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.status != ReadyToExecute {
		return noVersion, false
	}
	ts.status = Executing
	s.executions.Add(1)
	return state.Version{TxIndex: txIdx, Incarnation: ts.incarnation}, true
}

func (s *Scheduler) nextVersionToExecute() (state.Version, bool) {
	if s.executionIdx.Load() >= int64(s.numTx) {
		s.checkDone()
		return noVersion, false
	}
	s.numActiveTasks.Add(1)
	idx := s.executionIdx.Add(1) - 1
	if v, ok := s.tryIncarnate(int(idx)); ok {
		return v, true
	}
	s.numActiveTasks.Add(-1)
	return noVersion, false
}

// beginValidation moves an executed transaction to ReadyToValidate and
// returns the incarnation to validate.
func (s *Scheduler) beginValidation(txIdx int) (state.Version, bool) {
	ts := &s.status[txIdx]
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if !ts.status.hasExecuted() {
		return noVersion, false
	}
	ts.status = ReadyToValidate
	s.validations.Add(1)
	return state.Version{TxIndex: txIdx, Incarnation: ts.incarnation}, true
}

func (s *Scheduler) nextVersionToValidate() (state.Version, bool) {
	if s.validationIdx.Load() >= int64(s.numTx) {
		s.checkDone()
		return noVersion, false
	}
	s.numActiveTasks.Add(1)
	idx := s.validationIdx.Add(1) - 1
	if idx < int64(s.numTx) {
		if v, ok := s.beginValidation(int(idx)); ok {
			return v, true
		}
	}
	s.numActiveTasks.Add(-1)
	return noVersion, false
}

// AddDependency parks txIdx until blocking finishes its next execution. It
// returns false when blocking has already executed, in which case the caller
// re-runs txIdx right away.
func (s *Scheduler) AddDependency(txIdx, blocking int) (bool, error) {
	if blocking < 0 || blocking >= txIdx {
		return false, invariantViolation(txIdx, "dependency on tx %d", blocking)
	}
	dep := &s.deps[blocking]
	dep.mu.Lock()

	if st, _ := s.Status(blocking); st.hasExecuted() {
		dep.mu.Unlock()
		return false, nil
	}

	ts := &s.status[txIdx]
	ts.mu.Lock()
	if ts.status != Executing {
		st := ts.status
		ts.mu.Unlock()
		dep.mu.Unlock()
		return false, invariantViolation(txIdx, "blocked while %s", st)
	}
	ts.status = Aborting
	ts.mu.Unlock()

	dep.dependents = append(dep.dependents, txIdx)
	dep.mu.Unlock()

	s.dependencyAborts.Add(1)
	s.numActiveTasks.Add(-1)
	return true, nil
}

// setReady moves an aborted transaction to its next incarnation.
func (s *Scheduler) setReady(txIdx int) error {
	ts := &s.status[txIdx]
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.status != Aborting {
		return invariantViolation(txIdx, "resumed while %s", ts.status)
	}
	ts.incarnation++
	ts.status = ReadyToExecute
	return nil
}

func (s *Scheduler) resumeDependencies(txIdx int) error {
	dep := &s.deps[txIdx]
	dep.mu.Lock()
	dependents := dep.dependents
	dep.dependents = nil
	dep.mu.Unlock()

	if len(dependents) == 0 {
		return nil
	}
	lowest := dependents[0]
	for _, d := range dependents {
		if err := s.setReady(d); err != nil {
			return err
		}
		lowest = min(lowest, d)
	}
	s.decreaseExecutionIdx(lowest)
	return nil
}

// FinishExecution marks incarnation of txIdx as executed and wakes the
// transactions waiting on it. When the validation cursor already passed
// txIdx, either the cursor is rewound (a new location was written, so higher
// transactions must be checked again) or the validation of txIdx is handed
// straight back to the caller.
func (s *Scheduler) FinishExecution(txIdx, incarnation int, wroteNewLocation bool) (state.Version, TaskKind, error) {
	ts := &s.status[txIdx]
	ts.mu.Lock()
	if ts.status != Executing || ts.incarnation != incarnation {
		st, inc := ts.status, ts.incarnation
		ts.mu.Unlock()
		return noVersion, TaskKindWait, invariantViolation(txIdx, "finished incarnation %d while %s at %d", incarnation, st, inc)
	}
	ts.status = Executed
	ts.mu.Unlock()

	if err := s.resumeDependencies(txIdx); err != nil {
		return noVersion, TaskKindWait, err
	}

	if s.validationIdx.Load() > int64(txIdx) {
		if wroteNewLocation {
			s.decreaseValidationIdx(txIdx)
		} else if v, ok := s.beginValidation(txIdx); ok {
			return v, TaskKindValidation, nil
		}
	}
	s.numActiveTasks.Add(-1)
	return noVersion, TaskKindWait, nil
}

// TryValidationAbort claims the abort of a failed incarnation. Only one of
// the validators racing on the same incarnation wins.
func (s *Scheduler) TryValidationAbort(txIdx, incarnation int) bool {
	ts := &s.status[txIdx]
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.incarnation == incarnation && ts.status.hasExecuted() {
		ts.status = Aborting
		s.validationFailures.Add(1)
		return true
	}
	return false
}

// FinishValidation closes a validation task. A passed validation marks the
// incarnation Validated unless it was aborted meanwhile. An abort schedules
// the next incarnation, revalidates everything above txIdx and, when the
// execution cursor is already past txIdx, returns the new incarnation to
// the caller.
func (s *Scheduler) FinishValidation(txIdx, incarnation int, aborted bool) (state.Version, TaskKind, error) {
	if aborted {
		if err := s.setReady(txIdx); err != nil {
			return noVersion, TaskKindWait, err
		}
		s.decreaseValidationIdx(txIdx + 1)
		if s.executionIdx.Load() > int64(txIdx) {
			if v, ok := s.tryIncarnate(txIdx); ok {
				return v, TaskKindExecution, nil
			}
		}
	} else {
		ts := &s.status[txIdx]
		ts.mu.Lock()
		if ts.incarnation == incarnation && (ts.status == ReadyToValidate || ts.status == Executed) {
			ts.status = Validated
		}
		ts.mu.Unlock()
	}
	s.numActiveTasks.Add(-1)
	return noVersion, TaskKindWait, nil
}

// CheckInvariants verifies the terminal state of a finished block.
func (s *Scheduler) CheckInvariants() error {
	if !s.Done() {
		return invariantViolation(-1, "block not done")
	}
	if n := s.numActiveTasks.Load(); n != 0 {
		return invariantViolation(-1, "%d tasks still active", n)
	}
	for i := range s.status {
		if st, inc := s.Status(i); st != Validated {
			return invariantViolation(i, "incarnation %d ended %s", inc, st)
		}
	}
	return nil
}

// Stats is a snapshot of the scheduling counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Executions:         s.executions.Load(),
		Validations:        s.validations.Load(),
		ValidationFailures: s.validationFailures.Load(),
		DependencyAborts:   s.dependencyAborts.Load(),
	}
}
