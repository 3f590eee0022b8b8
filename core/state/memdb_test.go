package state

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/pevm/common"
	"github.com/erigontech/pevm/core/types"
	"github.com/erigontech/pevm/core/types/accounts"
)

func TestInMemoryDBCorruptAccount(t *testing.T) {
	t.Parallel()
	db := NewInMemoryDB()
	addr := common.Uint64ToAddress(1)
	db.PutRawAccount(addr, []byte{0x02, 0x05})

	_, err := db.ReadAccountData(addr)
	require.ErrorIs(t, err, ErrCorruptAccount)
}

func TestInMemoryDBCode(t *testing.T) {
	t.Parallel()
	db := NewInMemoryDB()
	code := []byte{0x60, 0x00}
	h := db.PutCode(code)
	require.Equal(t, common.Keccak256Hash(code), h)

	got, err := db.ReadAccountCode(h)
	require.NoError(t, err)
	require.Equal(t, code, got)

	_, err = db.ReadAccountCode(common.Hash{1})
	require.ErrorIs(t, err, ErrMissingCode)

	require.ErrorIs(t, db.UpdateAccountCode(common.Hash{1}, code), ErrCorruptCode)
}

func TestApplyStateDiff(t *testing.T) {
	t.Parallel()
	db := NewInMemoryDB()
	addr := common.Uint64ToAddress(1)
	db.PutStorage(addr, common.Hash{2}, *uint256.NewInt(2))

	diff := types.NewStateDiff()
	diff.SetAccount(addr, newAccount(3, 30))
	diff.SetStorage(addr, common.Hash{1}, *uint256.NewInt(1))
	diff.SetStorage(addr, common.Hash{2}, uint256.Int{})
	code := []byte{1, 2, 3}
	diff.SetCode(common.Keccak256Hash(code), code)

	snapshot := db.Copy()
	require.NoError(t, ApplyStateDiff(db, diff))

	acc, err := db.ReadAccountData(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(3), acc.Nonce)
	v, _ := db.ReadAccountStorage(addr, common.Hash{1})
	require.Equal(t, uint64(1), v.Uint64())
	v, _ = db.ReadAccountStorage(addr, common.Hash{2})
	require.True(t, v.IsZero())

	// the copy taken before is untouched
	acc, err = snapshot.ReadAccountData(addr)
	require.NoError(t, err)
	require.Nil(t, acc)
	require.Zero(t, snapshot.AccountCount())
	require.NoError(t, ApplyStateDiff(NewNoopWriter(), diff))
}

type countingReader struct {
	StateReader
	accountReads int
}

func (r *countingReader) ReadAccountData(address common.Address) (*accounts.Account, error) {
	r.accountReads++
	return r.StateReader.ReadAccountData(address)
}

func TestCachedReader(t *testing.T) {
	t.Parallel()
	db := NewInMemoryDB()
	addr := common.Uint64ToAddress(1)
	db.PutAccount(addr, newAccount(1, 10))
	counting := &countingReader{StateReader: db}

	cr, err := NewCachedReader(counting, 16)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		acc, err := cr.ReadAccountData(addr)
		require.NoError(t, err)
		require.Equal(t, uint64(10), acc.Balance.Uint64())
		acc.Balance.SetUint64(0)
	}
	require.Equal(t, 1, counting.accountReads)

	absent, err := cr.ReadAccountData(common.Uint64ToAddress(2))
	require.NoError(t, err)
	require.Nil(t, absent)
	_, _ = cr.ReadAccountData(common.Uint64ToAddress(2))
	require.Equal(t, 2, counting.accountReads)

	cr.Purge()
	_, _ = cr.ReadAccountData(addr)
	require.Equal(t, 3, counting.accountReads)
}

func TestCommittedReader(t *testing.T) {
	t.Parallel()
	db := NewInMemoryDB()
	a, b := common.Uint64ToAddress(1), common.Uint64ToAddress(2)
	db.PutAccount(a, newAccount(0, 1))
	db.PutAccount(b, newAccount(0, 2))

	diff := types.NewStateDiff()
	diff.SetAccount(b, newAccount(1, 20))
	r := NewCommittedReader(db, diff)

	acc, err := r.ReadAccountData(a)
	require.NoError(t, err)
	require.Equal(t, uint64(1), acc.Balance.Uint64())
	acc, err = r.ReadAccountData(b)
	require.NoError(t, err)
	require.Equal(t, uint64(20), acc.Balance.Uint64())
}
