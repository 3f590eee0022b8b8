package state

import (
	"github.com/holiman/uint256"

	"github.com/erigontech/pevm/common"
	"github.com/erigontech/pevm/core/types"
	"github.com/erigontech/pevm/core/types/accounts"
)

// CommittedReader overlays the changes of a finished block on the state the
// block ran against, so the next block can read from it before the changes
// are written back.
type CommittedReader struct {
	base StateReader
	diff *types.StateDiff
}

func NewCommittedReader(base StateReader, diff *types.StateDiff) *CommittedReader {
	if diff == nil {
		diff = types.NewStateDiff()
	}
	return &CommittedReader{base: base, diff: diff}
}

func (r *CommittedReader) ReadAccountData(address common.Address) (*accounts.Account, error) {
	if acc, ok := r.diff.Accounts[address]; ok {
		return copyAccount(acc), nil
	}
	return r.base.ReadAccountData(address)
}

func (r *CommittedReader) ReadAccountStorage(address common.Address, key common.Hash) (uint256.Int, error) {
	if slots, ok := r.diff.Storage[address]; ok {
		if v, ok := slots[key]; ok {
			return v, nil
		}
	}
	return r.base.ReadAccountStorage(address, key)
}

func (r *CommittedReader) ReadAccountCode(codeHash common.Hash) ([]byte, error) {
	if code, ok := r.diff.Codes[codeHash]; ok {
		return code, nil
	}
	return r.base.ReadAccountCode(codeHash)
}
