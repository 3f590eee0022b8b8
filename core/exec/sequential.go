package exec

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/pevm/core/state"
	"github.com/erigontech/pevm/core/types"
	"github.com/erigontech/pevm/core/vm"
)

// SequentialExecutor runs a block one transaction at a time. It produces the
// same results as ParallelExecutor and is what the latter falls back to for
// a single worker or a single transaction.
type SequentialExecutor struct {
	base   state.StateReader
	interp vm.Interpreter
	logger log.Logger
}

func NewSequentialExecutor(base state.StateReader, interp vm.Interpreter, logger log.Logger) *SequentialExecutor {
	if logger == nil {
		logger = log.Root()
	}
	return &SequentialExecutor{base: base, interp: interp, logger: logger}
}

func (se *SequentialExecutor) Execute(ctx context.Context, txs types.Transactions, env *types.BlockEnv) (*BlockResult, error) {
	if len(txs) == 0 {
		return emptyResult(), nil
	}
	start := time.Now()

	n := len(txs)
	versionMap := state.NewVersionMap(n)
	io := state.NewVersionedIO(n)
	results := make([]*vm.ExecutionResult, n)

	for i, tx := range txs {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		view := state.NewVersionedState(se.base, versionMap, i, 0)
		res, err := se.interp.Execute(view, tx, env)
		if err != nil {
			if blocking, ok := state.IsDependency(err); ok {
				return nil, invariantViolation(i, "dependency on tx %d in sequential run", blocking)
			}
			se.logger.Warn("block execution halted", "tx", i, "err", err)
			return nil, fmt.Errorf("tx %d: %w", i, err)
		}
		writes := view.VersionedWrites()
		io.RecordRead(i, view.VersionedReads())
		io.RecordWrite(i, writes)
		versionMap.Record(view.Version(), writes)
		results[i] = res
	}

	result, err := merge(versionMap, io, results, se.base)
	if err != nil {
		return nil, err
	}
	result.Stats = Stats{Executions: uint64(n)}
	if err := commit(se.base, result.StateDiff); err != nil {
		return nil, err
	}
	sequentialMetrics.report(result.Stats, start)
	se.logger.Debug("exec summary", "mode", "sequential", "txs", n, "gas", result.GasUsed, "took", time.Since(start))
	return result, nil
}

// commit applies the block diff to base when base can be written to.
func commit(base state.StateReader, diff *types.StateDiff) error {
	w, ok := base.(state.StateWriter)
	if !ok {
		return nil
	}
	if err := state.ApplyStateDiff(w, diff); err != nil {
		return fmt.Errorf("commit block diff: %w", err)
	}
	return nil
}
