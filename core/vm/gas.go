package vm

import "math"

const (
	TxGas                 uint64 = 21000 // Per transaction not creating a contract
	TxGasContractCreation uint64 = 53000 // Per transaction that creates a contract
	TxDataZeroGas         uint64 = 4     // Per byte of data attached to a transaction that equals zero
	TxDataNonZeroGas      uint64 = 16    // Per byte of data attached to a transaction that is not equal to zero
	CreateDataGas         uint64 = 200   // Per byte of deployed code

	SloadGas       uint64 = 2100
	SstoreSetGas   uint64 = 20000 // Once per SSTORE operation from zero to non-zero
	SstoreResetGas uint64 = 5000  // Once per SSTORE operation if the zeroness does not change
	LogGas         uint64 = 375
	LogTopicGas    uint64 = 375
	LogDataGas     uint64 = 8
)

// IntrinsicGas computes the 'intrinsic gas' for a message with the given data.
func IntrinsicGas(data []byte, isContractCreation bool) (uint64, error) {
	var gas uint64
	if isContractCreation {
		gas = TxGasContractCreation
	} else {
		gas = TxGas
	}
	if len(data) == 0 {
		return gas, nil
	}

	var nz uint64
	for _, b := range data {
		if b != 0 {
			nz++
		}
	}
	if (math.MaxUint64-gas)/TxDataNonZeroGas < nz {
		return 0, ErrGasUintOverflow
	}
	gas += nz * TxDataNonZeroGas

	z := uint64(len(data)) - nz
	if (math.MaxUint64-gas)/TxDataZeroGas < z {
		return 0, ErrGasUintOverflow
	}
	gas += z * TxDataZeroGas
	return gas, nil
}

func sstoreGas(current, next bool) uint64 {
	if !current && next {
		return SstoreSetGas
	}
	return SstoreResetGas
}

func logGas(topics, dataLen int) uint64 {
	return LogGas + uint64(topics)*LogTopicGas + uint64(dataLen)*LogDataGas
}
