package commands

import (
	"fmt"
	"io"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/ledgerwatch/log/v3"
	"github.com/spf13/cobra"

	"github.com/erigontech/pevm/common"
	"github.com/erigontech/pevm/common/dbg"
	"github.com/erigontech/pevm/core/exec"
	"github.com/erigontech/pevm/core/state"
	"github.com/erigontech/pevm/core/types"
	"github.com/erigontech/pevm/core/vm"
	"github.com/erigontech/pevm/internal/workload"
	"github.com/erigontech/pevm/metrics"
)

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "execute a generated block sequentially and in parallel and compare",
		Example: "pevm bench --workload token-clusters --txs 50000 --workers 8\n" +
			"pevm bench --config bench.toml --rounds 1",
		RunE: func(cmd *cobra.Command, args []string) error {
			return bench(cmd, cmd.OutOrStdout(), log.Root())
		},
	}
	withWorkload(cmd)
	withWorkers(cmd)
	withRounds(cmd)
	withCache(cmd)
	withVerify(cmd)
	return cmd
}

func bench(cmd *cobra.Command, out io.Writer, logger log.Logger) error {
	ctx := cmd.Context()
	w, err := workload.New(workloadName, seed, txCount)
	if err != nil {
		return err
	}
	n := workers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if rounds <= 0 {
		rounds = 1
	}
	logger.Info("Starting bench", "workload", w.Name, "txs", len(w.Txs), "accounts", w.Accounts(), "workers", n, "rounds", rounds)

	interp := vm.NewTransferInterpreter()
	var seqTime, parTime time.Duration
	for round := 0; round < rounds; round++ {
		seqDB := w.NewDB()
		start := time.Now()
		seq, err := exec.NewSequentialExecutor(seqDB, interp, logger).Execute(ctx, w.Txs, w.Env)
		if err != nil {
			return fmt.Errorf("sequential: %w", err)
		}
		seqTime += time.Since(start)

		cfg := exec.Config{Workers: n, Profile: profile, Logger: logger}
		// a cached base is read only, the block diff is then layered on top
		// of it instead of being written back
		var base state.StateReader = w.NewDB()
		if cacheSize > 0 {
			if base, err = state.NewCachedReader(base, cacheSize); err != nil {
				return err
			}
		}
		start = time.Now()
		par, err := exec.NewParallelExecutor(base, interp, cfg).Execute(ctx, w.Txs, w.Env)
		if err != nil {
			return fmt.Errorf("parallel: %w", err)
		}
		parTime += time.Since(start)
		post := base
		if cacheSize > 0 {
			post = state.NewCommittedReader(base, par.StateDiff)
		}

		if verify {
			if diff := cmp.Diff(seq.StateDiff, par.StateDiff); diff != "" {
				return fmt.Errorf("round %d: state diff mismatch (-sequential +parallel):\n%s", round, diff)
			}
			if seq.GasUsed != par.GasUsed {
				return fmt.Errorf("round %d: gas used mismatch: sequential %d, parallel %d", round, seq.GasUsed, par.GasUsed)
			}
			if err := comparePost(seqDB, post, seq.StateDiff); err != nil {
				return fmt.Errorf("round %d: %w", round, err)
			}
		}
		logger.Debug("Round done", "round", round, "gas", par.GasUsed,
			"execs", par.Stats.Executions, "aborts", par.Stats.Aborts(), "validations", par.Stats.Validations)
		if par.Deps != nil {
			logger.Info("Dependency graph", "txs", par.Deps.GetOrder(), "edges", par.Deps.GetSize())
		}
	}

	fmt.Fprintf(out, "workload:   %s (%d txs, seed %d)\n", w.Name, len(w.Txs), seed)
	fmt.Fprintf(out, "sequential: %v per block\n", seqTime/time.Duration(rounds))
	fmt.Fprintf(out, "parallel:   %v per block with %d workers\n", parTime/time.Duration(rounds), n)
	if parTime > 0 {
		fmt.Fprintf(out, "speedup:    %.2fx\n", float64(seqTime)/float64(parTime))
		fmt.Fprintf(out, "throughput: %s tx/s\n", common.StorageCounter(float64(len(w.Txs)*rounds)/parTime.Seconds()))
	}

	var m runtime.MemStats
	dbg.ReadMemStats(&m)
	logger.Info("Bench done", "alloc", common.StorageSize(m.Alloc), "sys", common.StorageSize(m.Sys), "numGC", int(m.NumGC))
	return printMetrics(out)
}

// comparePost checks that every account touched by the block reads the same
// through both post-block states.
func comparePost(want, got state.StateReader, diff *types.StateDiff) error {
	for addr := range diff.Accounts {
		a, err := want.ReadAccountData(addr)
		if err != nil {
			return err
		}
		b, err := got.ReadAccountData(addr)
		if err != nil {
			return err
		}
		if (a == nil) != (b == nil) || (a != nil && !a.Equals(b)) {
			return fmt.Errorf("post state mismatch at %s: %v != %v", addr, a, b)
		}
	}
	return nil
}

func printMetrics(out io.Writer) error {
	families, err := metrics.Gather()
	if err != nil {
		return err
	}
	var lines []string
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "exec_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, l := range m.GetLabel() {
				name += fmt.Sprintf("{%s=%q}", l.GetName(), l.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				lines = append(lines, fmt.Sprintf("%s %v", name, m.GetCounter().GetValue()))
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				lines = append(lines, fmt.Sprintf("%s count=%d sum=%.6f", name, h.GetSampleCount(), h.GetSampleSum()))
			}
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
	return nil
}
