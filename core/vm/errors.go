// Copyright 2014 The go-ethereum Authors
// (original work)
// Copyright 2024 The Erigon Authors
// (modifications)
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package vm

import "errors"

// List evm execution errors
var (
	ErrOutOfGas                 = errors.New("out of gas")
	ErrCodeStoreOutOfGas        = errors.New("contract creation code storage out of gas")
	ErrExecutionReverted        = errors.New("execution reverted")
	ErrInvalidOpCode            = errors.New("invalid opcode")
	ErrContractAddressCollision = errors.New("contract address collision")
	ErrGasUintOverflow          = errors.New("gas uint64 overflow")
)

// List of transaction validity errors. A transaction failing one of them is
// not applied at all: no nonce bump, no fee.
var (
	ErrNonceTooLow       = errors.New("nonce too low")
	ErrNonceTooHigh      = errors.New("nonce too high")
	ErrNonceMax          = errors.New("nonce has max value")
	ErrIntrinsicGas      = errors.New("intrinsic gas too low")
	ErrInsufficientFunds = errors.New("insufficient funds for gas * price + value")
	ErrFeeCapTooLow      = errors.New("max fee per gas less than block base fee")
)

// IsInvalidTx reports whether err marks a transaction that could not be
// included in the block.
func IsInvalidTx(err error) bool {
	switch {
	case errors.Is(err, ErrNonceTooLow), errors.Is(err, ErrNonceTooHigh), errors.Is(err, ErrNonceMax),
		errors.Is(err, ErrIntrinsicGas), errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrFeeCapTooLow),
		errors.Is(err, ErrGasUintOverflow):
		return true
	default:
		return false
	}
}
