package vm

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"

	"github.com/erigontech/pevm/common"
	"github.com/erigontech/pevm/core/types"
	"github.com/erigontech/pevm/core/types/accounts"
)

var _ Interpreter = TransferInterpreter{}

// TransferInterpreter executes value transfers, contract creation and calls
// into the built-in token contract. Calls into any other code fail with
// ErrInvalidOpCode and burn all gas.
type TransferInterpreter struct{}

func NewTransferInterpreter() TransferInterpreter { return TransferInterpreter{} }

// CreateAddress creates an ethereum address given the bytes and the nonce
func CreateAddress(b common.Address, nonce uint64) common.Address {
	var enc [28]byte
	copy(enc[:20], b[:])
	for i := 0; i < 8; i++ {
		enc[20+i] = byte(nonce >> (56 - 8*i))
	}
	return common.BytesToAddress(common.Keccak256Hash(enc[:]).Bytes()[12:])
}

func invalid(err error) *ExecutionResult {
	return &ExecutionResult{Status: types.ReceiptStatusInvalid, Err: err}
}

func (TransferInterpreter) Execute(view StateView, tx *types.Transaction, env *types.BlockEnv) (*ExecutionResult, error) {
	sender, err := view.GetAccount(tx.From)
	if err != nil {
		return nil, err
	}
	if sender == nil {
		acc := accounts.NewAccount()
		sender = &acc
	}

	// pre-checks
	switch {
	case sender.Nonce == math.MaxUint64:
		return invalid(fmt.Errorf("%w: address %v, nonce: %d", ErrNonceMax, tx.From, sender.Nonce)), nil
	case tx.Nonce < sender.Nonce:
		return invalid(fmt.Errorf("%w: address %v, tx: %d state: %d", ErrNonceTooLow, tx.From, tx.Nonce, sender.Nonce)), nil
	case tx.Nonce > sender.Nonce:
		return invalid(fmt.Errorf("%w: address %v, tx: %d state: %d", ErrNonceTooHigh, tx.From, tx.Nonce, sender.Nonce)), nil
	}
	if tx.GasPrice.Lt(&env.BaseFee) {
		return invalid(fmt.Errorf("%w: address %v, maxFeePerGas: %s baseFee: %s", ErrFeeCapTooLow, tx.From, &tx.GasPrice, &env.BaseFee)), nil
	}
	intrinsic, err := IntrinsicGas(tx.Data, tx.IsContractCreation())
	if err != nil {
		return invalid(err), nil
	}
	if tx.Gas < intrinsic {
		return invalid(fmt.Errorf("%w: have %d, want %d", ErrIntrinsicGas, tx.Gas, intrinsic)), nil
	}
	cost, overflow := tx.Cost()
	if overflow {
		return invalid(fmt.Errorf("%w: address %v", ErrInsufficientFunds, tx.From)), nil
	}
	if sender.Balance.Lt(cost) {
		return invalid(fmt.Errorf("%w: address %v have %s want %s", ErrInsufficientFunds, tx.From, &sender.Balance, cost)), nil
	}

	// buy gas, bump nonce
	var gasCost uint256.Int
	gasCost.Mul(uint256.NewInt(tx.Gas), &tx.GasPrice)
	sender.Balance.Sub(&sender.Balance, &gasCost)
	sender.Nonce++
	if err := view.SetAccount(tx.From, sender); err != nil {
		return nil, err
	}

	res := &ExecutionResult{Status: types.ReceiptStatusSuccessful}
	j := newJournal(view)
	available := tx.Gas - intrinsic
	var used uint64
	var vmerr error
	if tx.IsContractCreation() {
		res.ContractAddress = CreateAddress(tx.From, tx.Nonce)
		used, vmerr, err = create(j, tx, res.ContractAddress, available)
	} else {
		res.ReturnData, res.Logs, used, vmerr, err = call(j, tx, available)
	}
	if err != nil {
		return nil, err
	}
	if vmerr != nil {
		res.Status = types.ReceiptStatusFailed
		res.Err = vmerr
		res.ReturnData = nil
		res.Logs = nil
		if tx.IsContractCreation() {
			res.ContractAddress = common.Address{}
		}
	} else if err := j.commit(); err != nil {
		return nil, err
	}
	res.UsedGas = intrinsic + used

	// refund leftover gas to the sender, tip the beneficiary
	if leftover := tx.Gas - res.UsedGas; leftover > 0 {
		var refund uint256.Int
		refund.Mul(uint256.NewInt(leftover), &tx.GasPrice)
		if sender, err = view.GetAccount(tx.From); err != nil {
			return nil, err
		}
		sender.Balance.Add(&sender.Balance, &refund)
		if err := view.SetAccount(tx.From, sender); err != nil {
			return nil, err
		}
	}

	var tip, fee uint256.Int
	tip.Sub(&tx.GasPrice, &env.BaseFee)
	fee.Mul(uint256.NewInt(res.UsedGas), &tip)
	if err := view.AddBalance(env.Coinbase, &fee); err != nil {
		return nil, err
	}
	return res, nil
}

// call moves the value to tx.To and runs its code, if any.
func call(j *journal, tx *types.Transaction, gas uint64) (ret []byte, logs types.Logs, used uint64, vmerr, err error) {
	if err = transfer(j, tx.From, *tx.To, &tx.Value); err != nil {
		return
	}
	to, err := j.getAccount(*tx.To)
	if err != nil || to == nil || to.IsEmptyCodeHash() {
		return
	}
	code, err := j.getCode(to.CodeHash)
	if err != nil {
		return
	}
	if !isTokenCode(code) {
		return nil, nil, gas, ErrInvalidOpCode, nil
	}
	ret, used, logs, vmerr, err = runToken(j, *tx.To, tx.From, tx.Data, gas)
	return
}

// create deploys tx.Data as code at addr.
func create(j *journal, tx *types.Transaction, addr common.Address, gas uint64) (used uint64, vmerr, err error) {
	existing, err := j.getAccount(addr)
	if err != nil {
		return 0, nil, err
	}
	if existing != nil && (existing.Nonce != 0 || !existing.IsEmptyCodeHash()) {
		return gas, ErrContractAddressCollision, nil
	}

	deposit := uint64(len(tx.Data)) * CreateDataGas
	if deposit > gas {
		return gas, ErrCodeStoreOutOfGas, nil
	}

	acc := accounts.NewAccount()
	if existing != nil {
		acc.Copy(existing)
	}
	acc.Nonce = 1
	if len(tx.Data) > 0 {
		acc.CodeHash = common.Keccak256Hash(tx.Data)
		j.setCode(acc.CodeHash, common.Copy(tx.Data))
	}
	j.setAccount(addr, &acc)
	if err = transfer(j, tx.From, addr, &tx.Value); err != nil {
		return 0, nil, err
	}
	return deposit, nil, nil
}

func transfer(j *journal, from, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	sender, err := j.getAccount(from)
	if err != nil {
		return err
	}
	sender.Balance.Sub(&sender.Balance, amount)
	j.setAccount(from, sender)

	recipient, err := j.getAccount(to)
	if err != nil {
		return err
	}
	if recipient == nil {
		acc := accounts.NewAccount()
		recipient = &acc
	}
	recipient.Balance.Add(&recipient.Balance, amount)
	j.setAccount(to, recipient)
	return nil
}
