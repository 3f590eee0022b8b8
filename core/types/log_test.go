package types

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/pevm/common"
)

func TestLogsCopyIsDeep(t *testing.T) {
	logs := Logs{{Address: common.Uint64ToAddress(1), Topics: []common.Hash{{1}}, Data: []byte{1, 2}}}
	cpy := logs.Copy()
	require.Equal(t, logs, cpy)

	cpy[0].Data[0] = 9
	cpy[0].Topics[0] = common.Hash{2}
	require.Equal(t, byte(1), logs[0].Data[0])
	require.Equal(t, common.Hash{1}, logs[0].Topics[0])
	require.Nil(t, Logs(nil).Copy())
}

func TestDeriveCumulativeGas(t *testing.T) {
	rs := Receipts{
		{TxIndex: 0, GasUsed: 21000, Logs: Logs{{}}},
		{TxIndex: 1, GasUsed: 0},
		{TxIndex: 2, GasUsed: 30000, Logs: Logs{{}, {}}},
	}
	rs.DeriveCumulativeGas()

	require.Equal(t, uint64(21000), rs[0].CumulativeGasUsed)
	require.Equal(t, uint64(21000), rs[1].CumulativeGasUsed)
	require.Equal(t, uint64(51000), rs[2].CumulativeGasUsed)
	require.Equal(t, uint64(51000), rs.GasUsed())
	require.Equal(t, uint(2), rs[2].Logs[1].Index)
	require.Equal(t, uint(2), rs[2].Logs[1].TxIndex)
}

func TestTransactionCost(t *testing.T) {
	tx := &Transaction{Gas: 21000, GasPrice: *uint256.NewInt(2), Value: *uint256.NewInt(5)}
	cost, overflow := tx.Cost()
	require.False(t, overflow)
	require.Equal(t, uint64(42005), cost.Uint64())

	tx.Value.SetAllOne()
	_, overflow = tx.Cost()
	require.True(t, overflow)
}

func TestStateDiffLen(t *testing.T) {
	var nilDiff *StateDiff
	require.True(t, nilDiff.IsEmpty())

	d := NewStateDiff()
	d.SetStorage(common.Uint64ToAddress(1), common.Hash{1}, *uint256.NewInt(1))
	d.SetStorage(common.Uint64ToAddress(1), common.Hash{2}, *uint256.NewInt(1))
	d.SetCode(common.Hash{3}, []byte{1})
	require.Equal(t, 3, d.Len())
}
