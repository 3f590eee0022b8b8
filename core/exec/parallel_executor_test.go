package exec

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/pevm/common"
	"github.com/erigontech/pevm/core/state"
	"github.com/erigontech/pevm/core/types"
	"github.com/erigontech/pevm/core/types/accounts"
	"github.com/erigontech/pevm/core/vm"
	"github.com/erigontech/pevm/internal/workload"
)

func testConfig(workers int) Config {
	return Config{Workers: workers, Logger: log.New()}
}

func runSequential(t *testing.T, w *workload.Workload) (*BlockResult, *state.InMemoryDB) {
	t.Helper()
	db := w.NewDB()
	res, err := NewSequentialExecutor(db, vm.NewTransferInterpreter(), log.New()).Execute(context.Background(), w.Txs, w.Env)
	require.NoError(t, err)
	return res, db
}

func runParallel(t *testing.T, w *workload.Workload, cfg Config) (*BlockResult, *state.InMemoryDB) {
	t.Helper()
	db := w.NewDB()
	res, err := NewParallelExecutor(db, vm.NewTransferInterpreter(), cfg).Execute(context.Background(), w.Txs, w.Env)
	require.NoError(t, err)
	return res, db
}

var ignoreReceiptErr = cmpopts.IgnoreFields(types.Receipt{}, "Err")

func requireSameResult(t *testing.T, want, got *BlockResult) {
	t.Helper()
	require.Equal(t, want.GasUsed, got.GasUsed)
	require.Len(t, got.Receipts, len(want.Receipts))
	if diff := cmp.Diff(want.Receipts, got.Receipts, ignoreReceiptErr); diff != "" {
		t.Fatalf("receipts mismatch (-want +got):\n%s", diff)
	}
	for i := range want.Receipts {
		require.Equal(t, errString(want.Receipts[i].Err), errString(got.Receipts[i].Err), "tx %d", i)
	}
	if diff := cmp.Diff(want.StateDiff, got.StateDiff); diff != "" {
		t.Fatalf("state diff mismatch (-want +got):\n%s", diff)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func TestParallelMatchesSequential(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		build func() *workload.Workload
		long  bool
	}{
		{"independent", func() *workload.Workload { return workload.IndependentTransfers(1, 2_000) }, false},
		{"independent 100k", func() *workload.Workload { return workload.IndependentTransfers(1, 100_000) }, true},
		{"self 100k", func() *workload.Workload { return workload.SelfTransfers(2, 100_000) }, true},
		{"same sender", func() *workload.Workload { return workload.SameSender(3, 5_000) }, false},
		{"same nonce", func() *workload.Workload { return workload.SameNonce(4, 10) }, false},
		{"token clusters", func() *workload.Workload { return workload.TokenClusters(5, 4, 2_000) }, false},
		{"single token", func() *workload.Workload { return workload.TokenClusters(6, 1, 500) }, false},
		{"deploy and call", func() *workload.Workload { return workload.DeployAndCall(12, 3_000) }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.long && testing.Short() {
				t.Skip("slow")
			}
			w := tc.build()
			seq, seqDB := runSequential(t, w)
			par, parDB := runParallel(t, w, testConfig(8))

			requireSameResult(t, seq, par)
			require.Equal(t, seqDB, parDB)
			require.GreaterOrEqual(t, par.Stats.Executions, uint64(len(w.Txs)))
		})
	}
}

func TestDeployAndCall(t *testing.T) {
	t.Parallel()
	for seed := uint64(1); seed <= 4; seed++ {
		w := workload.DeployAndCall(seed, 600)
		seq, seqDB := runSequential(t, w)

		var collisions, deployed int
		for _, r := range seq.Receipts {
			switch {
			case errors.Is(r.Err, vm.ErrContractAddressCollision):
				collisions++
			case r.Status == types.ReceiptStatusSuccessful && r.ContractAddress != (common.Address{}):
				deployed++
			}
		}
		require.NotZero(t, collisions, "seed %d", seed)
		require.NotZero(t, deployed, "seed %d", seed)

		for _, workers := range []int{2, 4, 16} {
			par, parDB := runParallel(t, w, testConfig(workers))
			requireSameResult(t, seq, par)
			require.Equal(t, seqDB, parDB, "seed %d workers %d", seed, workers)
		}
	}
}

func TestModeMetrics(t *testing.T) {
	t.Parallel()
	w := workload.TokenClusters(13, 2, 300)
	par, seq := parallelMetrics.executed.GetValueUint64(), sequentialMetrics.executed.GetValueUint64()

	runParallel(t, w, testConfig(4))
	runSequential(t, w)
	require.GreaterOrEqual(t, parallelMetrics.executed.GetValueUint64()-par, uint64(len(w.Txs)))
	require.GreaterOrEqual(t, sequentialMetrics.executed.GetValueUint64()-seq, uint64(len(w.Txs)))
}

func TestParallelDeterministic(t *testing.T) {
	t.Parallel()
	w := workload.TokenClusters(11, 2, 1_000)
	first, _ := runParallel(t, w, testConfig(8))
	second, _ := runParallel(t, w, testConfig(8))
	requireSameResult(t, first, second)
}

func TestEmptyBlock(t *testing.T) {
	t.Parallel()
	w := workload.IndependentTransfers(1, 4)
	db := w.NewDB()
	before := db.Copy()

	res, err := NewParallelExecutor(db, vm.NewTransferInterpreter(), testConfig(4)).Execute(context.Background(), nil, w.Env)
	require.NoError(t, err)
	require.Empty(t, res.Receipts)
	require.True(t, res.StateDiff.IsEmpty())
	require.Zero(t, res.GasUsed)
	require.Equal(t, before, db)
}

func TestSingleTxMatchesInterpreter(t *testing.T) {
	t.Parallel()
	w := workload.IndependentTransfers(8, 1)

	direct := state.NewVersionedState(w.NewDB(), nil, 0, 0)
	want, err := vm.NewTransferInterpreter().Execute(direct, w.Txs[0], w.Env)
	require.NoError(t, err)

	res, db := runParallel(t, w, testConfig(4))
	require.Len(t, res.Receipts, 1)
	r := res.Receipts[0]
	require.Equal(t, want.Status, r.Status)
	require.Equal(t, want.UsedGas, r.GasUsed)
	require.Equal(t, want.UsedGas, r.CumulativeGasUsed)

	for _, wr := range direct.VersionedWrites() {
		k := wr.Path
		if !k.IsAddress() {
			continue
		}
		acc, err := db.ReadAccountData(k.GetAddress())
		require.NoError(t, err)
		require.True(t, acc.Equals(res.StateDiff.Accounts[k.GetAddress()]))
	}
}

func TestSameNonceOneAccepted(t *testing.T) {
	t.Parallel()
	w := workload.SameNonce(4, 10)
	res, _ := runParallel(t, w, testConfig(8))

	require.Equal(t, types.ReceiptStatusSuccessful, res.Receipts[0].Status)
	for _, r := range res.Receipts[1:] {
		require.Equal(t, types.ReceiptStatusInvalid, r.Status)
		require.ErrorIs(t, r.Err, vm.ErrNonceTooLow)
		require.Zero(t, r.GasUsed)
		require.True(t, r.StateDiff.IsEmpty())
	}
	sender := w.Txs[0].From
	require.Equal(t, uint64(1), res.StateDiff.Accounts[sender].Nonce)
}

func TestBeneficiaryCredit(t *testing.T) {
	t.Parallel()
	w := workload.IndependentTransfers(12, 3_000)
	res, db := runParallel(t, w, testConfig(8))

	var want uint256.Int
	for i, r := range res.Receipts {
		var tip, fee uint256.Int
		tip.Sub(&w.Txs[i].GasPrice, &w.Env.BaseFee)
		fee.Mul(uint256.NewInt(r.GasUsed), &tip)
		want.Add(&want, &fee)

		// the running beneficiary balance is resolved per transaction
		got := r.StateDiff.Accounts[workload.Coinbase]
		require.NotNil(t, got)
		require.Equal(t, want, got.Balance, "tx %d", i)
	}

	acc, err := db.ReadAccountData(workload.Coinbase)
	require.NoError(t, err)
	require.Equal(t, want, acc.Balance)
}

func TestCumulativeGas(t *testing.T) {
	t.Parallel()
	w := workload.SameSender(2, 200)
	res, _ := runParallel(t, w, testConfig(4))

	var total uint64
	for i, r := range res.Receipts {
		total += r.GasUsed
		require.Equal(t, i, r.TxIndex)
		require.Equal(t, total, r.CumulativeGasUsed)
	}
	require.Equal(t, total, res.GasUsed)
}

func TestFatalMissingCode(t *testing.T) {
	t.Parallel()
	w := workload.IndependentTransfers(3, 64)
	db := w.NewDB()

	// an account whose code was never stored
	broken := common.HexToAddress("0xdead")
	acc := accounts.NewAccount()
	acc.CodeHash = common.Keccak256Hash([]byte("lost"))
	db.PutAccount(broken, &acc)

	txs := append(types.Transactions{}, w.Txs...)
	call := *w.Txs[40]
	call.To = &broken
	txs[40] = &call
	before := db.Copy()

	for _, workers := range []int{1, 8} {
		res, err := NewParallelExecutor(db, vm.NewTransferInterpreter(), testConfig(workers)).Execute(context.Background(), txs, w.Env)
		require.Nil(t, res)
		var fatal *state.FatalStoreError
		require.True(t, errors.As(err, &fatal), "workers %d: %v", workers, err)
		require.ErrorIs(t, err, state.ErrMissingCode)
		require.Equal(t, state.CodeKey(acc.CodeHash), fatal.Key)
		require.Equal(t, before, db)
	}
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()
	w := workload.IndependentTransfers(5, 500)
	db := w.NewDB()
	before := db.Copy()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, workers := range []int{1, 4} {
		_, err := NewParallelExecutor(db, vm.NewTransferInterpreter(), testConfig(workers)).Execute(ctx, w.Txs, w.Env)
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, before, db)
	}
}

func TestProfileDeps(t *testing.T) {
	t.Parallel()
	w := workload.SameSender(9, 20)
	cfg := testConfig(4)
	cfg.Profile = true
	res, _ := runParallel(t, w, cfg)

	require.NotNil(t, res.Deps)
	// every second tx follows the previous one of the same sender
	require.GreaterOrEqual(t, res.Deps.GetSize(), 9)
}

func TestRerunAfterRemove(t *testing.T) {
	t.Parallel()
	w := workload.SameSender(10, 2)
	db := w.NewDB()
	interp := vm.NewTransferInterpreter()
	vmap := state.NewVersionMap(len(w.Txs))

	run := func() state.VersionedWrites {
		view := state.NewVersionedState(db, vmap, 0, 0)
		_, err := interp.Execute(view, w.Txs[0], w.Env)
		require.NoError(t, err)
		writes := view.VersionedWrites()
		vmap.Record(view.Version(), writes)
		return writes
	}

	first := run()
	vmap.Remove(0)
	vmap.Remove(0)
	for _, wr := range first {
		res := vmap.Read(wr.Path, 1)
		require.Equal(t, state.MVReadResultNone, res.Status())
	}
	second := run()
	require.Equal(t, first, second)
}
