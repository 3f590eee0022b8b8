package types

import (
	"github.com/erigontech/pevm/common"
)

const (
	// ReceiptStatusFailed is the status code of a transaction if execution failed.
	ReceiptStatusFailed = uint64(0)

	// ReceiptStatusSuccessful is the status code of a transaction if execution succeeded.
	ReceiptStatusSuccessful = uint64(1)

	// ReceiptStatusInvalid marks a transaction the interpreter refused to run
	// (bad nonce, insufficient funds, ...). It consumed no gas and changed no state.
	ReceiptStatusInvalid = uint64(2)
)

// Receipt is the per transaction outcome the executor hands back, aligned
// one-to-one with the input transactions.
type Receipt struct {
	Status            uint64
	CumulativeGasUsed uint64
	Logs              Logs

	TxIndex         int
	ContractAddress common.Address
	GasUsed         uint64

	// Err is the interpreter outcome (revert, out of gas, bad nonce...). It is
	// data, not a failure of the executor.
	Err error `json:"-"`

	// StateDiff holds the post-transaction values of every location the
	// transaction wrote.
	StateDiff *StateDiff `json:"-"`
}

func (r *Receipt) Successful() bool { return r.Status == ReceiptStatusSuccessful }

type Receipts []*Receipt

// GasUsed sums the gas used by all receipts.
func (rs Receipts) GasUsed() (total uint64) {
	for _, r := range rs {
		total += r.GasUsed
	}
	return total
}

// DeriveCumulativeGas fills CumulativeGasUsed and the log indexes in block order.
func (rs Receipts) DeriveCumulativeGas() {
	var cumulative uint64
	var logIndex uint
	for _, r := range rs {
		cumulative += r.GasUsed
		r.CumulativeGasUsed = cumulative
		for _, l := range r.Logs {
			l.TxIndex = uint(r.TxIndex)
			l.Index = logIndex
			logIndex++
		}
	}
}
