package domain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// TokenBalanceSlot is the storage index of the balances mapping in Celo's token contracts.
const TokenBalanceSlot = 5

// Account is the state-trie leaf of an address, decoded from a verified proof.
type Account struct {
	Nonce    uint64
	Balance  *big.Int
	Root     common.Hash
	CodeHash []byte
}

// MappingSlot returns the storage key of mapping[key] for a mapping declared at slot index.
func MappingSlot(index uint64, key common.Address) common.Hash {
	var buf [2 * common.HashLength]byte
	copy(buf[common.HashLength-common.AddressLength:common.HashLength], key.Bytes())
	new(big.Int).SetUint64(index).FillBytes(buf[common.HashLength:])
	return crypto.Keccak256Hash(buf[:])
}

// ErrInvalidPosition is returned for storage positions outside [0, 2^256).
var ErrInvalidPosition = errors.New("invalid storage position")

// ParsePosition parses a decimal or 0x-prefixed hex storage position.
func ParsePosition(s string) (*big.Int, error) {
	position, ok := math.ParseBig256(s)
	if !ok || position.Sign() < 0 {
		return nil, fmt.Errorf("%q: %w", s, ErrInvalidPosition)
	}
	return position, nil
}

// PositionSlot returns the storage key of a plain variable at position.
func PositionSlot(position *big.Int) (common.Hash, error) {
	if position == nil || position.Sign() < 0 || position.BitLen() > 256 {
		return common.Hash{}, fmt.Errorf("%v: %w", position, ErrInvalidPosition)
	}
	return common.BigToHash(position), nil
}

// DecodeValue interprets proof-returned bytes as a big-endian unsigned integer.
func DecodeValue(b []byte) (*uint256.Int, error) {
	if len(b) > 32 {
		return nil, fmt.Errorf("value of %d bytes overflows 256 bits", len(b))
	}
	return new(uint256.Int).SetBytes(b), nil
}

// VerifiedValue is the terminal output of a resolution: a value proven against a trusted block.
type VerifiedValue struct {
	Raw   []byte
	Value *uint256.Int
	Block *TrustedBlock
}
