package exec

import (
	"github.com/erigontech/pevm/core/state"
	"github.com/erigontech/pevm/core/types"
)

// Stats counts the scheduling work spent on one block.
type Stats struct {
	Executions         uint64 // incarnations started
	Validations        uint64
	ValidationFailures uint64 // incarnations aborted by a validator
	DependencyAborts   uint64 // incarnations parked on an estimate
}

// Aborts is the number of incarnations thrown away for any reason.
func (s Stats) Aborts() uint64 { return s.ValidationFailures + s.DependencyAborts }

type BlockResult struct {
	// Receipts are aligned with the input transactions.
	Receipts types.Receipts
	// StateDiff holds the post-block value of every location the block wrote.
	StateDiff *types.StateDiff
	GasUsed   uint64
	Stats     Stats
	// Deps is the read-after-write graph of the block, set when profiling.
	Deps *state.DAG
}

func emptyResult() *BlockResult {
	return &BlockResult{
		Receipts:  types.Receipts{},
		StateDiff: types.NewStateDiff(),
	}
}
