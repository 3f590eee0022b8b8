package exec

import (
	"context"
	"time"

	"github.com/ledgerwatch/log/v3"
	"golang.org/x/sync/errgroup"

	"github.com/erigontech/pevm/common/dbg"
	"github.com/erigontech/pevm/core/state"
	"github.com/erigontech/pevm/core/types"
	"github.com/erigontech/pevm/core/vm"
)

// ParallelExecutor executes the transactions of a block optimistically on a
// pool of workers and produces the result a sequential run in block order
// would. The base reader must not change while a block executes.
type ParallelExecutor struct {
	cfg    Config
	base   state.StateReader
	interp vm.Interpreter
	logger log.Logger
}

func NewParallelExecutor(base state.StateReader, interp vm.Interpreter, cfg Config) *ParallelExecutor {
	return &ParallelExecutor{
		cfg:    cfg,
		base:   base,
		interp: interp,
		logger: cfg.logger(),
	}
}

// Execute runs txs in the environment env. Transactions are ordered by their
// position in txs. A store failure or broken scheduler invariant aborts the
// whole block and leaves base untouched; transaction level failures are
// reported in the receipts.
func (pe *ParallelExecutor) Execute(ctx context.Context, txs types.Transactions, env *types.BlockEnv) (*BlockResult, error) {
	if len(txs) == 0 {
		return emptyResult(), nil
	}
	if pe.cfg.Workers <= 1 || len(txs) == 1 {
		return NewSequentialExecutor(pe.base, pe.interp, pe.logger).Execute(ctx, txs, env)
	}
	start := time.Now()

	task := newBlockTask(txs, env, pe.base, pe.interp)
	workers := min(pe.cfg.Workers, len(txs))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		ex := newExecutor(i, task, pe.logger)
		g.Go(func() error {
			return ex.Run(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		pe.logger.Warn("block execution halted", "txs", len(txs), "err", err)
		return nil, err
	}

	if err := task.scheduler.CheckInvariants(); err != nil {
		return nil, err
	}
	result, err := merge(task.versionMap, task.io, task.executionResults(), pe.base)
	if err != nil {
		return nil, err
	}
	result.Stats = task.scheduler.Stats()
	if pe.cfg.Profile {
		deps := state.BuildDAG(task.io, pe.logger)
		result.Deps = &deps
	}
	if err := commit(pe.base, result.StateDiff); err != nil {
		return nil, err
	}

	parallelMetrics.report(result.Stats, start)
	if slow := dbg.SlowBlock(); slow > 0 && time.Since(start) > slow {
		pe.logger.Info("Slow block", "txs", len(txs), "aborts", result.Stats.Aborts(), "took", time.Since(start))
	}
	pe.logger.Debug("exec summary",
		"txs", len(txs),
		"workers", workers,
		"execs", result.Stats.Executions,
		"aborts", result.Stats.Aborts(),
		"validations", result.Stats.Validations,
		"failures", result.Stats.ValidationFailures,
		"gas", result.GasUsed,
		"took", time.Since(start))
	return result, nil
}
