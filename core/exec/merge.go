package exec

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/erigontech/pevm/common"
	"github.com/erigontech/pevm/core/state"
	"github.com/erigontech/pevm/core/types"
	"github.com/erigontech/pevm/core/types/accounts"
	"github.com/erigontech/pevm/core/vm"
)

// merge builds the block result from the final version map and the write
// sets of the last incarnations. The block diff takes, for every location,
// the entry of the highest transaction with the balance deltas above it
// folded in. Per transaction diffs are resolved in block order on top of a
// running view of the accounts so that a lazily credited account costs one
// base read however many transactions pay it.
func merge(versionMap *state.VersionMap, io *state.VersionedIO, results []*vm.ExecutionResult, base state.StateReader) (*BlockResult, error) {
	diff := types.NewStateDiff()
	var rangeErr error
	versionMap.Range(func(k state.VersionKey) bool {
		if rangeErr = mergeLocation(diff, versionMap, k, base); rangeErr != nil {
			return false
		}
		return true
	})
	if rangeErr != nil {
		return nil, rangeErr
	}

	receipts := make(types.Receipts, len(results))
	running := map[common.Address]*accounts.Account{}
	for i, res := range results {
		if res == nil {
			return nil, invariantViolation(i, "no execution result")
		}
		r := res.Receipt(i)
		txDiff, err := txStateDiff(io.WriteSet(i), running, base)
		if err != nil {
			return nil, err
		}
		r.StateDiff = txDiff
		receipts[i] = r
	}
	receipts.DeriveCumulativeGas()

	return &BlockResult{
		Receipts:  receipts,
		StateDiff: diff,
		GasUsed:   receipts.GasUsed(),
	}, nil
}

func mergeLocation(diff *types.StateDiff, versionMap *state.VersionMap, k state.VersionKey, base state.StateReader) error {
	res := versionMap.Latest(k)
	if res.Status() == state.MVReadResultDependency {
		return invariantViolation(res.DepIdx(), "estimate left at %s", k)
	}

	switch {
	case k.IsAddress():
		addr := k.GetAddress()
		var acc *accounts.Account
		if res.Status() == state.MVReadResultDone {
			acc, _ = res.Value().(*accounts.Account)
		} else {
			var err error
			if acc, err = base.ReadAccountData(addr); err != nil {
				return err
			}
		}
		diff.SetAccount(addr, credit(acc, res.Delta()))
	case k.IsState():
		if res.Status() != state.MVReadResultDone {
			return invariantViolation(-1, "no value at %s", k)
		}
		diff.SetStorage(k.GetAddress(), k.GetStateKey(), res.Value().(uint256.Int))
	case k.IsCode():
		if res.Status() != state.MVReadResultDone {
			return invariantViolation(-1, "no value at %s", k)
		}
		diff.SetCode(k.GetCodeHash(), res.Value().([]byte))
	default:
		return fmt.Errorf("unknown location kind %s", k.Kind())
	}
	return nil
}

// txStateDiff resolves the post values of one write set. running holds the
// latest value of every account written by the transactions before it and
// is advanced past this one.
func txStateDiff(writes state.VersionedWrites, running map[common.Address]*accounts.Account, base state.StateReader) (*types.StateDiff, error) {
	diff := types.NewStateDiff()
	for _, w := range writes {
		k := w.Path
		switch {
		case k.IsAddress():
			addr := k.GetAddress()
			var acc *accounts.Account
			switch v := w.Val.(type) {
			case *accounts.Account:
				acc = credit(v, nil)
			case state.BalanceDelta:
				pre, ok := running[addr]
				if !ok {
					var err error
					if pre, err = base.ReadAccountData(addr); err != nil {
						return nil, err
					}
				}
				acc = credit(pre, &v.Amount)
			default:
				return nil, fmt.Errorf("unexpected account value %T at %s", w.Val, k)
			}
			running[addr] = acc
			diff.SetAccount(addr, acc)
		case k.IsState():
			diff.SetStorage(k.GetAddress(), k.GetStateKey(), w.Val.(uint256.Int))
		case k.IsCode():
			diff.SetCode(k.GetCodeHash(), w.Val.([]byte))
		}
	}
	return diff, nil
}

// credit returns a fresh copy of acc, an empty account if nil, with amount
// added to its balance.
func credit(acc *accounts.Account, amount *uint256.Int) *accounts.Account {
	out := accounts.NewAccount()
	if acc != nil {
		out.Copy(acc)
	}
	if amount != nil {
		out.Balance.Add(&out.Balance, amount)
	}
	return &out
}
