// Copyright 2016 The go-ethereum Authors
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

import (
	"github.com/holiman/uint256"

	"github.com/erigontech/pevm/common"
	"github.com/erigontech/pevm/core/types"
	"github.com/erigontech/pevm/core/types/accounts"
)

// StateView is the state surface a transaction executes against. Reads may
// fail with a dependency error when the location is being rewritten by a
// lower transaction; the interpreter must return such errors unchanged.
type StateView interface {
	// GetAccount returns a private copy of the account, nil if it does not exist
	GetAccount(addr common.Address) (*accounts.Account, error)
	SetAccount(addr common.Address, acc *accounts.Account) error
	// AddBalance credits addr without requiring a prior read
	AddBalance(addr common.Address, amount *uint256.Int) error
	GetStorage(addr common.Address, key common.Hash) (uint256.Int, error)
	SetStorage(addr common.Address, key common.Hash, value uint256.Int) error
	GetCode(codeHash common.Hash) ([]byte, error)
	SetCode(codeHash common.Hash, code []byte) error
}

// Interpreter runs one transaction against a view. Implementations must be
// deterministic given the view contents and must not keep state between
// calls, since the same transaction may run many times on several goroutines.
//
// The returned error is reserved for conditions that stop the attempt
// itself, like a read dependency or a broken store. Everything the
// transaction does wrong is reported through ExecutionResult.Err.
type Interpreter interface {
	Execute(view StateView, tx *types.Transaction, env *types.BlockEnv) (*ExecutionResult, error)
}

// ExecutionResult includes all output after executing given evm
// message no matter the execution itself is successful or not.
type ExecutionResult struct {
	Status          uint64
	UsedGas         uint64
	Err             error
	ReturnData      []byte
	Logs            types.Logs
	ContractAddress common.Address
}

// Unwrap returns the internal evm error which allows us for further
// analysis outside.
func (result *ExecutionResult) Unwrap() error {
	return result.Err
}

// Failed returns the indicator whether the execution is successful or not
func (result *ExecutionResult) Failed() bool { return result.Err != nil }

// Return is a helper function to help caller distinguish between revert reason
// and function return. Return returns the data after execution if no error occurs.
func (result *ExecutionResult) Return() []byte {
	if result.Err != nil {
		return nil
	}
	return common.Copy(result.ReturnData)
}

// Receipt turns the result into the receipt of transaction txIndex.
func (result *ExecutionResult) Receipt(txIndex int) *types.Receipt {
	return &types.Receipt{
		Status:          result.Status,
		TxIndex:         txIndex,
		GasUsed:         result.UsedGas,
		Logs:            result.Logs.Copy(),
		ContractAddress: result.ContractAddress,
		Err:             result.Err,
	}
}
