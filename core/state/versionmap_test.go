package state

import (
	"sync"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/pevm/common"
)

func slotKey(i uint64) VersionKey {
	return StorageKey(common.Uint64ToAddress(1), common.Uint256ToHash(uint256.NewInt(i)))
}

func TestVersionMapReadHighestBelow(t *testing.T) {
	t.Parallel()
	mvh := NewVersionMap(10)
	k := slotKey(1)

	res := mvh.Read(k, 5)
	require.Equal(t, MVReadResultNone, res.Status())
	require.Equal(t, -1, res.DepIdx())

	mvh.Write(k, Version{TxIndex: 2, Incarnation: 0}, *uint256.NewInt(20))
	mvh.Write(k, Version{TxIndex: 4, Incarnation: 1}, *uint256.NewInt(40))
	mvh.Write(k, Version{TxIndex: 7, Incarnation: 0}, *uint256.NewInt(70))

	res = mvh.Read(k, 5)
	require.Equal(t, MVReadResultDone, res.Status())
	require.Equal(t, Version{TxIndex: 4, Incarnation: 1}, res.Version())
	require.Equal(t, *uint256.NewInt(40), res.Value())

	// a transaction never sees its own entry
	res = mvh.Read(k, 4)
	require.Equal(t, 2, res.DepIdx())

	res = mvh.Read(k, 2)
	require.Equal(t, MVReadResultNone, res.Status())

	res = mvh.Latest(k)
	require.Equal(t, 7, res.DepIdx())
}

func TestVersionMapEstimate(t *testing.T) {
	t.Parallel()
	mvh := NewVersionMap(10)
	k := slotKey(1)

	mvh.Write(k, Version{TxIndex: 1, Incarnation: 0}, *uint256.NewInt(1))
	mvh.Write(k, Version{TxIndex: 3, Incarnation: 0}, *uint256.NewInt(3))
	mvh.MarkEstimate(k, 3)

	res := mvh.Read(k, 5)
	require.Equal(t, MVReadResultDependency, res.Status())
	require.Equal(t, 3, res.DepIdx())

	// readers below the estimate are unaffected
	res = mvh.Read(k, 3)
	require.Equal(t, MVReadResultDone, res.Status())
	require.Equal(t, 1, res.DepIdx())

	// rewriting clears the estimate
	mvh.Write(k, Version{TxIndex: 3, Incarnation: 1}, *uint256.NewInt(33))
	res = mvh.Read(k, 5)
	require.Equal(t, MVReadResultDone, res.Status())
	require.Equal(t, Version{TxIndex: 3, Incarnation: 1}, res.Version())

	// estimates can be placed before any write
	mvh.MarkEstimate(slotKey(2), 2)
	res = mvh.Read(slotKey(2), 4)
	require.Equal(t, MVReadResultDependency, res.Status())
	require.Equal(t, 2, res.DepIdx())
}

func TestVersionMapBalanceDeltas(t *testing.T) {
	t.Parallel()
	mvh := NewVersionMap(10)
	k := AccountKey(common.Uint64ToAddress(9))

	mvh.Write(k, Version{TxIndex: 1, Incarnation: 0}, BalanceDelta{Amount: *uint256.NewInt(5)})
	mvh.Write(k, Version{TxIndex: 2, Incarnation: 0}, BalanceDelta{Amount: *uint256.NewInt(7)})

	res := mvh.Read(k, 4)
	require.Equal(t, MVReadResultNone, res.Status())
	require.Equal(t, uint64(12), res.Delta().Uint64())
	require.Equal(t, []Version{{2, 0}, {1, 0}}, res.Deltas())

	mvh.Write(k, Version{TxIndex: 0, Incarnation: 0}, "full")
	mvh.Write(k, Version{TxIndex: 3, Incarnation: 2}, BalanceDelta{Amount: *uint256.NewInt(1)})
	res = mvh.Read(k, 4)
	require.Equal(t, MVReadResultDone, res.Status())
	require.Equal(t, "full", res.Value())
	require.Equal(t, uint64(13), res.Delta().Uint64())
	require.Len(t, res.Deltas(), 3)

	// an estimate among the deltas blocks the read
	mvh.MarkEstimate(k, 2)
	res = mvh.Read(k, 4)
	require.Equal(t, MVReadResultDependency, res.Status())
	require.Equal(t, 2, res.DepIdx())
	require.True(t, res.Delta().IsZero())
	require.Nil(t, res.Deltas())
}

func TestVersionMapRecord(t *testing.T) {
	t.Parallel()
	mvh := NewVersionMap(4)
	a, b, c := slotKey(1), slotKey(2), slotKey(3)

	v0 := Version{TxIndex: 2, Incarnation: 0}
	wrote := mvh.Record(v0, VersionedWrites{{Path: a, V: v0, Val: *uint256.NewInt(1)}, {Path: b, V: v0, Val: *uint256.NewInt(2)}})
	require.True(t, wrote)

	// same locations: nothing new
	v1 := Version{TxIndex: 2, Incarnation: 1}
	wrote = mvh.Record(v1, VersionedWrites{{Path: a, V: v1, Val: *uint256.NewInt(3)}})
	require.False(t, wrote)
	require.Equal(t, MVReadResultNone, mvh.Read(b, 3).Status(), "stale entry must be removed")
	require.Equal(t, v1, mvh.Read(a, 3).Version())

	v2 := Version{TxIndex: 2, Incarnation: 2}
	wrote = mvh.Record(v2, VersionedWrites{{Path: a, V: v2, Val: *uint256.NewInt(4)}, {Path: c, V: v2, Val: *uint256.NewInt(5)}})
	require.True(t, wrote)
	require.Equal(t, v2, mvh.Read(c, 3).Version())

	mvh.ConvertWritesToEstimates(2)
	require.Equal(t, MVReadResultDependency, mvh.Read(a, 3).Status())
	require.Equal(t, MVReadResultDependency, mvh.Read(c, 3).Status())
	require.Equal(t, MVReadResultNone, mvh.Read(b, 3).Status())
}

func TestVersionMapRemoveIsIdempotent(t *testing.T) {
	t.Parallel()
	mvh := NewVersionMap(3)
	k := slotKey(1)
	v := Version{TxIndex: 1, Incarnation: 0}
	mvh.Record(v, VersionedWrites{{Path: k, V: v, Val: *uint256.NewInt(1)}})

	mvh.Remove(1)
	require.Equal(t, MVReadResultNone, mvh.Read(k, 2).Status())
	mvh.Remove(1)
	require.Equal(t, MVReadResultNone, mvh.Read(k, 2).Status())
	mvh.Remove(0)
	// nothing left to turn into an estimate
	mvh.ConvertWritesToEstimates(1)
	require.Equal(t, MVReadResultNone, mvh.Read(k, 2).Status())

	n := 0
	mvh.Range(func(VersionKey) bool { n++; return true })
	require.Zero(t, n)
}

func TestVersionMapConcurrentWriters(t *testing.T) {
	t.Parallel()
	const numTx = 64
	mvh := NewVersionMap(numTx)
	k := slotKey(1)

	var wg sync.WaitGroup
	for i := 0; i < numTx; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := Version{TxIndex: i}
			mvh.Record(v, VersionedWrites{{Path: k, V: v, Val: *uint256.NewInt(uint64(i))}, {Path: slotKey(uint64(100 + i)), V: v, Val: *uint256.NewInt(1)}})
		}(i)
	}
	wg.Wait()

	for i := 1; i <= numTx; i++ {
		res := mvh.Read(k, i)
		require.Equal(t, i-1, res.DepIdx())
		require.Equal(t, *uint256.NewInt(uint64(i - 1)), res.Value())
	}
	require.Equal(t, numTx+1, mvh.Len())
}

func TestValidateVersion(t *testing.T) {
	t.Parallel()
	mvh := NewVersionMap(4)
	io := NewVersionedIO(4)
	k := slotKey(1)
	acc := AccountKey(common.Uint64ToAddress(5))

	io.RecordRead(2, VersionedReads{{Path: k, Kind: ReadKindStorage, V: StorageVersion}})
	require.True(t, ValidateVersion(2, io, mvh))

	mvh.Write(k, Version{TxIndex: 1, Incarnation: 0}, *uint256.NewInt(1))
	require.False(t, ValidateVersion(2, io, mvh))

	io.RecordRead(2, VersionedReads{{Path: k, Kind: ReadKindMap, V: Version{TxIndex: 1, Incarnation: 0}}})
	require.True(t, ValidateVersion(2, io, mvh))

	mvh.MarkEstimate(k, 1)
	require.False(t, ValidateVersion(2, io, mvh))
	mvh.Write(k, Version{TxIndex: 1, Incarnation: 1}, *uint256.NewInt(1))
	require.False(t, ValidateVersion(2, io, mvh), "same value from another incarnation is a different version")

	// delta origins must match exactly
	mvh.Write(acc, Version{TxIndex: 0, Incarnation: 0}, BalanceDelta{Amount: *uint256.NewInt(1)})
	io.RecordRead(3, VersionedReads{{Path: acc, Kind: ReadKindStorage, V: StorageVersion, Deltas: []Version{{0, 0}}}})
	require.True(t, ValidateVersion(3, io, mvh))
	mvh.Write(acc, Version{TxIndex: 2, Incarnation: 0}, BalanceDelta{Amount: *uint256.NewInt(1)})
	require.False(t, ValidateVersion(3, io, mvh))
}

func TestValidateReadsInFlight(t *testing.T) {
	t.Parallel()
	mvh := NewVersionMap(3)
	db := NewInMemoryDB()
	addr := common.Uint64ToAddress(7)
	v := Version{TxIndex: 1, Incarnation: 0}
	mvh.Record(v, VersionedWrites{{Path: AccountKey(addr), V: v, Val: newAccount(1, 10)}})

	s := NewVersionedState(db, mvh, 2, 0)
	_, err := s.GetAccount(addr)
	require.NoError(t, err)
	require.True(t, ValidateReads(2, s.VersionedReads(), mvh))

	// the next incarnation of tx 1 no longer writes the account
	mvh.Record(Version{TxIndex: 1, Incarnation: 1}, nil)
	require.False(t, ValidateReads(2, s.VersionedReads(), mvh))
	require.True(t, ValidateReads(2, nil, mvh))
}
