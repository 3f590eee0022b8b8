package state

import (
	"fmt"

	"github.com/erigontech/pevm/common"
)

type KeyKind uint8

const (
	AccountPath KeyKind = iota // nonce, balance and code hash of an address
	StatePath                  // one storage slot of an address
	CodePath                   // bytecode addressed by its hash
)

func (k KeyKind) String() string {
	switch k {
	case AccountPath:
		return "account"
	case StatePath:
		return "storage"
	case CodePath:
		return "code"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// VersionKey identifies one versioned storage location. It is comparable and
// used directly as a map key.
type VersionKey struct {
	kind KeyKind
	addr common.Address
	slot common.Hash
}

func AccountKey(addr common.Address) VersionKey {
	return VersionKey{kind: AccountPath, addr: addr}
}

func StorageKey(addr common.Address, slot common.Hash) VersionKey {
	return VersionKey{kind: StatePath, addr: addr, slot: slot}
}

func CodeKey(codeHash common.Hash) VersionKey {
	return VersionKey{kind: CodePath, slot: codeHash}
}

func (k VersionKey) Kind() KeyKind { return k.kind }

func (k VersionKey) IsAddress() bool { return k.kind == AccountPath }

func (k VersionKey) IsState() bool { return k.kind == StatePath }

func (k VersionKey) IsCode() bool { return k.kind == CodePath }

func (k VersionKey) GetAddress() common.Address { return k.addr }

func (k VersionKey) GetStateKey() common.Hash { return k.slot }

func (k VersionKey) GetCodeHash() common.Hash { return k.slot }

func (k VersionKey) String() string {
	switch k.kind {
	case AccountPath:
		return fmt.Sprintf("account(%x)", k.addr[:])
	case StatePath:
		return fmt.Sprintf("storage(%x, %x)", k.addr[:], k.slot[:])
	case CodePath:
		return fmt.Sprintf("code(%x)", k.slot[:])
	default:
		return fmt.Sprintf("%s(%x, %x)", k.kind, k.addr[:], k.slot[:])
	}
}
