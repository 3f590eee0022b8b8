package types

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/erigontech/pevm/common"
)

// Transaction is the executor's view of a block transaction. Index is the
// position inside the block and the only ordering the executor honours.
type Transaction struct {
	Index    int
	From     common.Address
	To       *common.Address // nil means contract creation
	Value    uint256.Int
	Gas      uint64
	GasPrice uint256.Int
	Nonce    uint64
	Data     []byte
}

func (tx *Transaction) IsContractCreation() bool { return tx.To == nil }

// Cost returns gas * gasPrice + value.
func (tx *Transaction) Cost() (*uint256.Int, bool) {
	total, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(tx.Gas), &tx.GasPrice)
	if overflow {
		return nil, true
	}
	_, overflow = total.AddOverflow(total, &tx.Value)
	if overflow {
		return nil, true
	}
	return total, false
}

func (tx *Transaction) String() string {
	to := "create"
	if tx.To != nil {
		to = tx.To.Hex()
	}
	return fmt.Sprintf("tx[%d]{from: %s, to: %s, nonce: %d, value: %s}", tx.Index, tx.From.Hex(), to, tx.Nonce, tx.Value.String())
}

// Transactions implements sort.Interface by index.
type Transactions []*Transaction

func (s Transactions) Len() int           { return len(s) }
func (s Transactions) Less(i, j int) bool { return s[i].Index < s[j].Index }
func (s Transactions) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// Reindex assigns positions so that Index matches slice order.
func (s Transactions) Reindex() Transactions {
	for i, tx := range s {
		tx.Index = i
	}
	return s
}
