package exec

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/pevm/common/dbg"
	"github.com/erigontech/pevm/core/state"
	"github.com/erigontech/pevm/core/types"
	"github.com/erigontech/pevm/core/vm"
)

// blockTask is the state shared by all workers executing one block.
type blockTask struct {
	txs    types.Transactions
	env    *types.BlockEnv
	base   state.StateReader
	interp vm.Interpreter

	scheduler  *Scheduler
	versionMap *state.VersionMap
	io         *state.VersionedIO

	// result of the last finished incarnation of every transaction
	results []atomic.Pointer[vm.ExecutionResult]
}

func newBlockTask(txs types.Transactions, env *types.BlockEnv, base state.StateReader, interp vm.Interpreter) *blockTask {
	n := len(txs)
	return &blockTask{
		txs:        txs,
		env:        env,
		base:       base,
		interp:     interp,
		scheduler:  NewScheduler(n),
		versionMap: state.NewVersionMap(n),
		io:         state.NewVersionedIO(n),
		results:    make([]atomic.Pointer[vm.ExecutionResult], n),
	}
}

func (bt *blockTask) executionResults() []*vm.ExecutionResult {
	res := make([]*vm.ExecutionResult, len(bt.results))
	for i := range bt.results {
		res[i] = bt.results[i].Load()
	}
	return res
}

// Executor is one worker of the pool. It pulls tasks from the scheduler
// until the block is done.
type Executor struct {
	id     int
	task   *blockTask
	logger log.Logger
}

func newExecutor(id int, task *blockTask, logger log.Logger) *Executor {
	return &Executor{id: id, task: task, logger: logger}
}

func (e *Executor) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("worker panic", "worker", e.id, "err", r, "stack", dbg.Stack())
			err = invariantViolation(-1, "worker %d: %v", e.id, r)
		}
	}()

	sched := e.task.scheduler
	version, kind := noVersion, TaskKindWait
	for !sched.Done() {
		switch kind {
		case TaskKindExecution:
			version, kind, err = e.TryExecute(version)
		case TaskKindValidation:
			version, kind, err = e.NeedsReexecution(version)
		default:
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			version, kind = sched.NextTask()
			if kind == TaskKindWait {
				runtime.Gosched()
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// TryExecute runs one incarnation. A read that hits an estimate drops the
// attempt and parks the transaction on the blocking one; if the blocker
// finished in the meantime the incarnation is run again at once. Any other
// error aborts the block only if the reads that led to it are still current.
func (e *Executor) TryExecute(version state.Version) (state.Version, TaskKind, error) {
	txIdx := version.TxIndex
	view := state.NewVersionedState(e.task.base, e.task.versionMap, txIdx, version.Incarnation)
	for {
		res, err := e.task.interp.Execute(view, e.task.txs[txIdx], e.task.env)
		if err != nil {
			blocking, ok := state.IsDependency(err)
			if !ok {
				// a lower transaction may have rewritten what this attempt
				// saw, in which case the failure belongs to a stale view
				if !state.ValidateReads(txIdx, view.VersionedReads(), e.task.versionMap) {
					e.logger.Debug("[exec] retrying after stale read", "version", version, "err", err)
					view.Reset(version.Incarnation)
					continue
				}
				return noVersion, TaskKindWait, fmt.Errorf("tx %d: %w", txIdx, err)
			}
			added, err := e.task.scheduler.AddDependency(txIdx, blocking)
			if err != nil {
				return noVersion, TaskKindWait, err
			}
			if added {
				return noVersion, TaskKindWait, nil
			}
			view.Reset(version.Incarnation)
			continue
		}

		writes := view.VersionedWrites()
		if txIdx == dbg.TraceTx() {
			e.logger.Info("[dbg] executed", "version", version, "worker", e.id, "reads", len(view.VersionedReads()), "writes", len(writes), "status", res.Status, "err", res.Err)
		}
		e.task.io.RecordRead(txIdx, view.VersionedReads())
		e.task.io.RecordWrite(txIdx, writes)
		e.task.results[txIdx].Store(res)
		wroteNewLocation := e.task.versionMap.Record(version, writes)
		return e.task.scheduler.FinishExecution(txIdx, version.Incarnation, wroteNewLocation)
	}
}

// NeedsReexecution validates the read set of version. On failure the
// writes of the incarnation turn into estimates before the scheduler
// releases the transaction, so readers above it block instead of consuming
// stale values.
func (e *Executor) NeedsReexecution(version state.Version) (state.Version, TaskKind, error) {
	txIdx := version.TxIndex
	valid := state.ValidateVersion(txIdx, e.task.io, e.task.versionMap)
	aborted := !valid && e.task.scheduler.TryValidationAbort(txIdx, version.Incarnation)
	if aborted {
		e.task.versionMap.ConvertWritesToEstimates(txIdx)
	}
	return e.task.scheduler.FinishValidation(txIdx, version.Incarnation, aborted)
}
