package vm

import (
	"bytes"

	"github.com/holiman/uint256"

	"github.com/erigontech/pevm/common"
	"github.com/erigontech/pevm/core/types"
)

// TokenCode is the bytecode of the built-in fungible token. An account whose
// code hash matches TokenCodeHash answers transfer, mint and balanceOf calls
// with the usual ABI selectors. Balances live in the mapping at slot 0 and
// the total supply in slot 1, laid out the way solidity does it.
var TokenCode = []byte("\x60\x80\x60\x40pevm:token:v1")

var TokenCodeHash = common.Keccak256Hash(TokenCode)

var (
	TransferSelector  = selector("transfer(address,uint256)")
	MintSelector      = selector("mint(address,uint256)")
	BalanceOfSelector = selector("balanceOf(address)")

	TransferEventTopic = common.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
)

var totalSupplySlot = common.Uint256ToHash(uint256.NewInt(1))

func selector(sig string) [4]byte {
	var s [4]byte
	h := common.Keccak256Hash([]byte(sig))
	copy(s[:], h[:4])
	return s
}

// TokenBalanceSlot is the storage slot holding the token balance of holder.
func TokenBalanceSlot(holder common.Address) common.Hash {
	var buf [64]byte
	copy(buf[12:32], holder[:])
	return common.Keccak256Hash(buf[:])
}

func TokenTransferData(to common.Address, amount *uint256.Int) []byte {
	return packCall(TransferSelector, to, amount)
}

func TokenMintData(to common.Address, amount *uint256.Int) []byte {
	return packCall(MintSelector, to, amount)
}

func TokenBalanceOfData(holder common.Address) []byte {
	return packCall(BalanceOfSelector, holder, nil)
}

func packCall(sel [4]byte, addr common.Address, amount *uint256.Int) []byte {
	size := 4 + 32
	if amount != nil {
		size += 32
	}
	data := make([]byte, size)
	copy(data, sel[:])
	copy(data[4+12:36], addr[:])
	if amount != nil {
		b := amount.Bytes32()
		copy(data[36:], b[:])
	}
	return data
}

func isTokenCode(code []byte) bool {
	return bytes.Equal(code, TokenCode)
}

// runToken executes a call into the token contract at self. vmerr carries
// the outcome of the call, err a failure of the view. On either the journal
// must be discarded by the caller.
func runToken(j *journal, self, caller common.Address, input []byte, gas uint64) (ret []byte, used uint64, logs types.Logs, vmerr, err error) {
	if len(input) < 4 {
		return nil, 0, nil, ErrExecutionReverted, nil
	}
	var sel [4]byte
	copy(sel[:], input[:4])
	args := input[4:]

	charge := func(cost uint64) bool {
		if gas-used < cost {
			used = gas
			return false
		}
		used += cost
		return true
	}

	switch sel {
	case BalanceOfSelector:
		if len(args) < 32 {
			return nil, used, nil, ErrExecutionReverted, nil
		}
		holder := common.BytesToAddress(args[12:32])
		if !charge(SloadGas) {
			return nil, used, nil, ErrOutOfGas, nil
		}
		bal, err := j.getStorage(self, TokenBalanceSlot(holder))
		if err != nil {
			return nil, 0, nil, nil, err
		}
		b := bal.Bytes32()
		return b[:], used, nil, nil, nil

	case TransferSelector, MintSelector:
		if len(args) < 64 {
			return nil, used, nil, ErrExecutionReverted, nil
		}
		to := common.BytesToAddress(args[12:32])
		var amount uint256.Int
		amount.SetBytes(args[32:64])

		// a mint moves tokens out of the total supply counter
		from, srcSlot := caller, TokenBalanceSlot(caller)
		if sel == MintSelector {
			from, srcSlot = common.Address{}, totalSupplySlot
		}
		dstSlot := TokenBalanceSlot(to)

		if !charge(2 * SloadGas) {
			return nil, used, nil, ErrOutOfGas, nil
		}
		src, err := j.getStorage(self, srcSlot)
		if err != nil {
			return nil, 0, nil, nil, err
		}
		var srcNext uint256.Int
		if sel == TransferSelector {
			if src.Lt(&amount) {
				return nil, used, nil, ErrExecutionReverted, nil
			}
			srcNext.Sub(&src, &amount)
		} else if _, overflow := srcNext.AddOverflow(&src, &amount); overflow {
			return nil, used, nil, ErrExecutionReverted, nil
		}
		if !charge(sstoreGas(!src.IsZero(), !srcNext.IsZero())) {
			return nil, used, nil, ErrOutOfGas, nil
		}
		j.setStorage(self, srcSlot, srcNext)

		// read after the first store so a self transfer sees the debit
		dst, err := j.getStorage(self, dstSlot)
		if err != nil {
			return nil, 0, nil, nil, err
		}
		var dstNext uint256.Int
		if _, overflow := dstNext.AddOverflow(&dst, &amount); overflow {
			return nil, used, nil, ErrExecutionReverted, nil
		}
		if !charge(sstoreGas(!dst.IsZero(), !dstNext.IsZero())) {
			return nil, used, nil, ErrOutOfGas, nil
		}
		j.setStorage(self, dstSlot, dstNext)

		data := amount.Bytes32()
		if !charge(logGas(3, len(data))) {
			return nil, used, nil, ErrOutOfGas, nil
		}
		logs = types.Logs{{
			Address: self,
			Topics:  []common.Hash{TransferEventTopic, from.Hash(), to.Hash()},
			Data:    data[:],
		}}
		ok := uint256.NewInt(1).Bytes32()
		return ok[:], used, logs, nil, nil

	default:
		return nil, used, nil, ErrExecutionReverted, nil
	}
}
