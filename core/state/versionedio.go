package state

import (
	"maps"
	"slices"
	"sync/atomic"

	"github.com/heimdalr/dag"
	"github.com/ledgerwatch/log/v3"
)

const (
	ReadKindMap     = 0
	ReadKindStorage = 1
)

type VersionedRead struct {
	Path VersionKey
	Kind int
	V    Version
	// balance deltas folded into the value, highest transaction first
	Deltas []Version
}

type VersionedWrite struct {
	Path VersionKey
	V    Version
	Val  interface{}
}

type VersionedReads []VersionedRead
type VersionedWrites []VersionedWrite

// VersionedIO keeps the read and write sets of the last finished incarnation
// of every transaction. A validator may load a set while the owning worker
// publishes a newer one, so each slot is swapped atomically.
type VersionedIO struct {
	inputs  []atomic.Pointer[VersionedReads]
	outputs []atomic.Pointer[VersionedWrites]
}

func NewVersionedIO(numTx int) *VersionedIO {
	return &VersionedIO{
		inputs:  make([]atomic.Pointer[VersionedReads], numTx),
		outputs: make([]atomic.Pointer[VersionedWrites], numTx),
	}
}

func (io *VersionedIO) Len() int {
	return len(io.inputs)
}

func (io *VersionedIO) ReadSet(txnIdx int) VersionedReads {
	if p := io.inputs[txnIdx].Load(); p != nil {
		return *p
	}
	return nil
}

func (io *VersionedIO) WriteSet(txnIdx int) VersionedWrites {
	if p := io.outputs[txnIdx].Load(); p != nil {
		return *p
	}
	return nil
}

func (io *VersionedIO) RecordRead(txId int, input VersionedReads) {
	io.inputs[txId].Store(&input)
}

func (io *VersionedIO) RecordWrite(txId int, output VersionedWrites) {
	io.outputs[txId].Store(&output)
}

type DAG struct {
	*dag.DAG
}

// DirectDeps returns, for every transaction, the lower transactions whose
// writes it read, in ascending order. A dependency is left out when it is
// already a dependency of another transaction in the list.
func DirectDeps(io *VersionedIO) [][]int {
	direct := make([]map[int]struct{}, io.Len())
	for i := range direct {
		direct[i] = map[int]struct{}{}
		reads := io.ReadSet(i)
		if len(reads) == 0 {
			continue
		}
		read := make(map[VersionKey]struct{}, len(reads))
		for _, rd := range reads {
			read[rd.Path] = struct{}{}
		}

		for j := 0; j < i; j++ {
			if !readsFrom(read, io.WriteSet(j)) {
				continue
			}
			for k := range direct[i] {
				if _, ok := direct[j][k]; ok {
					delete(direct[i], k)
				}
			}
			direct[i][j] = struct{}{}
		}
	}

	deps := make([][]int, len(direct))
	for i, d := range direct {
		deps[i] = slices.Sorted(maps.Keys(d))
	}
	return deps
}

func readsFrom(read map[VersionKey]struct{}, writes VersionedWrites) bool {
	for _, w := range writes {
		if _, ok := read[w.Path]; ok {
			return true
		}
	}
	return false
}

// BuildDAG links every transaction to its direct dependencies. Vertex ids
// are the transaction indices.
func BuildDAG(deps *VersionedIO, logger log.Logger) (d DAG) {
	d = DAG{dag.NewDAG()}
	ids := make([]string, deps.Len())
	for i := range ids {
		id, err := d.AddVertex(i)
		if err != nil {
			logger.Warn("Failed to add vertex", "tx", i, "err", err)
		}
		ids[i] = id
	}

	for i, direct := range DirectDeps(deps) {
		for _, j := range direct {
			if err := d.AddEdge(ids[j], ids[i]); err != nil {
				logger.Warn("Failed to add edge", "from", j, "to", i, "err", err)
			}
		}
	}

	return
}
