package accounts

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/pevm/common"
)

func TestAccountEncodeWithCode(t *testing.T) {
	a := Account{
		Nonce:    2,
		Balance:  *uint256.NewInt(1000),
		CodeHash: common.Keccak256Hash([]byte{1, 2, 3}),
	}

	encodedLen := a.EncodingLengthForStorage()
	encodedAccount := make([]byte, encodedLen)
	a.EncodeForStorage(encodedAccount)

	var decodedAccount Account
	require.NoError(t, decodedAccount.DecodeForStorage(encodedAccount))
	require.True(t, a.Equals(&decodedAccount), "%s != %s", a.String(), decodedAccount.String())
}

func TestAccountEncodeWithoutCode(t *testing.T) {
	a := NewAccount()
	a.Nonce = 0xff_ffff_ffff
	a.Balance.SetAllOne()

	encodedAccount := make([]byte, a.EncodingLengthForStorage())
	a.EncodeForStorage(encodedAccount)

	var decodedAccount Account
	require.NoError(t, decodedAccount.DecodeForStorage(encodedAccount))
	require.True(t, a.Equals(&decodedAccount))
	require.True(t, decodedAccount.IsEmptyCodeHash())
}

func TestAccountDecodeEmpty(t *testing.T) {
	var a Account
	require.NoError(t, a.DecodeForStorage(nil))
	require.True(t, a.IsEmpty())
}

func TestAccountDecodeMalformed(t *testing.T) {
	var a Account
	require.Error(t, a.DecodeForStorage([]byte{2, 5, 1}))
	require.Error(t, a.DecodeForStorage([]byte{8, 31}))
	require.Error(t, a.DecodeForStorage([]byte{0x40}))
}
