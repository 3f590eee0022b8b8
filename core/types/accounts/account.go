package accounts

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/erigontech/pevm/common"
)

// Account is the flat representation of an account as the executor sees it:
// nonce, balance and the hash of the code it runs. Storage lives in separate
// locations keyed by (address, slot).
type Account struct {
	Nonce    uint64
	Balance  uint256.Int
	CodeHash common.Hash
}

// NewAccount creates a new account w/o code.
func NewAccount() Account {
	return Account{
		CodeHash: common.EmptyCodeHash,
	}
}

func (a *Account) IsEmptyCodeHash() bool {
	return a.CodeHash == common.EmptyCodeHash || a.CodeHash == (common.Hash{})
}

// IsEmpty follows EIP-161: zero nonce, zero balance, no code.
func (a *Account) IsEmpty() bool {
	return a.Nonce == 0 && a.Balance.IsZero() && a.IsEmptyCodeHash()
}

func (a *Account) Copy(image *Account) {
	a.Nonce = image.Nonce
	a.Balance.Set(&image.Balance)
	a.CodeHash = image.CodeHash
}

func (a *Account) Equals(acc *Account) bool {
	return a.Nonce == acc.Nonce &&
		a.Balance.Eq(&acc.Balance) &&
		a.CodeHash == acc.CodeHash
}

func (a *Account) String() string {
	return fmt.Sprintf("{nonce: %d, balance: %s, codeHash: %x}", a.Nonce, a.Balance.String(), a.CodeHash)
}

func (a *Account) EncodingLengthForStorage() uint {
	var structLength uint = 1 // 1 byte for fieldset

	if !a.Balance.IsZero() {
		structLength += uint(a.Balance.ByteLen()) + 1
	}

	if a.Nonce > 0 {
		structLength += uint((bitsLen64(a.Nonce)+7)/8) + 1
	}

	if !a.IsEmptyCodeHash() {
		structLength += 33 // 32-byte array + 1 bytes for length
	}

	return structLength
}

// EncodeForStorage packs the account into the compact plain-state layout:
// a fieldset byte followed by length-prefixed nonce, balance and code hash.
func (a *Account) EncodeForStorage(buffer []byte) {
	var fieldSet = 0 // start with first bit set to 0
	var pos = 1
	if a.Nonce > 0 {
		fieldSet = 1
		nonceBytes := (bitsLen64(a.Nonce) + 7) / 8
		buffer[pos] = byte(nonceBytes)
		var nonce = a.Nonce
		for i := nonceBytes; i > 0; i-- {
			buffer[pos+i] = byte(nonce)
			nonce >>= 8
		}
		pos += nonceBytes + 1
	}

	// Encoding balance
	if !a.Balance.IsZero() {
		fieldSet |= 2
		balanceBytes := a.Balance.ByteLen()
		buffer[pos] = byte(balanceBytes)
		pos++
		a.Balance.WriteToSlice(buffer[pos : pos+balanceBytes])
		pos += balanceBytes
	}

	// Encoding CodeHash
	if !a.IsEmptyCodeHash() {
		fieldSet |= 8
		buffer[pos] = 32
		copy(buffer[pos+1:], a.CodeHash[:])
		//pos += 33
	}

	buffer[0] = byte(fieldSet)
}

// DecodeForStorage is the inverse of EncodeForStorage. Truncated or malformed
// input yields an error so the caller can treat the record as corrupt.
func (a *Account) DecodeForStorage(enc []byte) error {
	a.Reset()

	if len(enc) == 0 {
		return nil
	}

	var fieldSet = enc[0]
	if fieldSet&^(1|2|8) != 0 {
		return fmt.Errorf("malformed fieldset: %08b", fieldSet)
	}
	var pos = 1

	if fieldSet&1 > 0 {
		if len(enc) < pos+1 {
			return fmt.Errorf("malformed encoding for Account.Nonce: missing length")
		}
		decodeLength := int(enc[pos])
		if decodeLength > 8 {
			return fmt.Errorf("nonce length %d exceeds 8 bytes", decodeLength)
		}
		if len(enc) < pos+decodeLength+1 {
			return fmt.Errorf(
				"malformed CBOR for Account.Nonce: %s, Length %d",
				enc[pos+1:], decodeLength)
		}

		a.Nonce = bytesToUint64(enc[pos+1 : pos+decodeLength+1])
		pos += decodeLength + 1
	}

	if fieldSet&2 > 0 {
		if len(enc) < pos+1 {
			return fmt.Errorf("malformed encoding for Account.Balance: missing length")
		}
		decodeLength := int(enc[pos])
		if decodeLength > 32 {
			return fmt.Errorf("balance length %d exceeds 32 bytes", decodeLength)
		}
		if len(enc) < pos+decodeLength+1 {
			return fmt.Errorf(
				"malformed CBOR for Account.Balance: %s, Length %d",
				enc[pos+1:], decodeLength)
		}

		a.Balance.SetBytes(enc[pos+1 : pos+decodeLength+1])
		pos += decodeLength + 1
	}

	if fieldSet&8 > 0 {
		if len(enc) < pos+1 {
			return fmt.Errorf("malformed encoding for Account.CodeHash: missing length")
		}
		decodeLength := int(enc[pos])

		if decodeLength != 32 {
			return fmt.Errorf("codehash should be 32 bytes long, got %d instead",
				decodeLength)
		}

		if len(enc) < pos+decodeLength+1 {
			return fmt.Errorf(
				"malformed CBOR for Account.CodeHash: %s, Length %d",
				enc[pos+1:], decodeLength)
		}

		a.CodeHash.SetBytes(enc[pos+1 : pos+decodeLength+1])
		pos += decodeLength + 1
	}

	_ = pos

	return nil
}

func (a *Account) Reset() {
	a.Nonce = 0
	a.Balance.Clear()
	a.CodeHash = common.EmptyCodeHash
}

func bitsLen64(v uint64) int {
	n := 0
	for v != 0 {
		v >>= 1
		n++
	}
	return n
}

func bytesToUint64(buf []byte) (x uint64) {
	for i, b := range buf {
		x = x<<8 + uint64(b)
		if i == 7 {
			return
		}
	}
	return
}
