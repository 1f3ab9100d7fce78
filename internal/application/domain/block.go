package domain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/prysmaticlabs/go-bitfield"
)

const (
	// IstanbulExtraVanity is the fixed number of vanity bytes preceding the istanbul payload.
	IstanbulExtraVanity = 32
	// MsgCommit is the istanbul message code committed seals sign over.
	MsgCommit byte = 0x02
)

var errShortExtra = errors.New("extra-data shorter than vanity prefix")

// Header is a Celo block header. The Gingerbread fields are nil or zero on blocks
// produced before the Gingerbread fork; Difficulty being set selects the newer layout.
type Header struct {
	ParentHash  common.Hash
	Coinbase    common.Address
	Root        common.Hash
	TxHash      common.Hash
	ReceiptHash common.Hash
	Bloom       types.Bloom
	Number      *big.Int
	GasUsed     uint64
	Time        uint64
	Extra       []byte

	UncleHash       common.Hash
	Difficulty      *big.Int
	GasLimit        uint64
	MixDigest       common.Hash
	Nonce           types.BlockNonce
	BaseFee         *big.Int
	WithdrawalsHash *common.Hash
}

// legacyHeader is the hashed layout before the Gingerbread fork.
type legacyHeader struct {
	ParentHash  common.Hash
	Coinbase    common.Address
	Root        common.Hash
	TxHash      common.Hash
	ReceiptHash common.Hash
	Bloom       types.Bloom
	Number      *big.Int
	GasUsed     uint64
	Time        uint64
	Extra       []byte
}

// gingerbreadHeader is the Ethereum-compatible layout from the Gingerbread fork on.
type gingerbreadHeader struct {
	ParentHash      common.Hash
	UncleHash       common.Hash
	Coinbase        common.Address
	Root            common.Hash
	TxHash          common.Hash
	ReceiptHash     common.Hash
	Bloom           types.Bloom
	Difficulty      *big.Int
	Number          *big.Int
	GasLimit        uint64
	GasUsed         uint64
	Time            uint64
	Extra           []byte
	MixDigest       common.Hash
	Nonce           types.BlockNonce
	BaseFee         *big.Int     `rlp:"optional"`
	WithdrawalsHash *common.Hash `rlp:"optional"`
}

// IsGingerbread reports whether the header uses the post-Gingerbread layout.
func (h *Header) IsGingerbread() bool {
	return h.Difficulty != nil
}

// Legacy returns a copy of the header with the Gingerbread fields cleared.
func (h *Header) Legacy() Header {
	return Header{
		ParentHash:  h.ParentHash,
		Coinbase:    h.Coinbase,
		Root:        h.Root,
		TxHash:      h.TxHash,
		ReceiptHash: h.ReceiptHash,
		Bloom:       h.Bloom,
		Number:      h.Number,
		GasUsed:     h.GasUsed,
		Time:        h.Time,
		Extra:       h.Extra,
	}
}

func (h *Header) layout() interface{} {
	if !h.IsGingerbread() {
		return &legacyHeader{
			ParentHash:  h.ParentHash,
			Coinbase:    h.Coinbase,
			Root:        h.Root,
			TxHash:      h.TxHash,
			ReceiptHash: h.ReceiptHash,
			Bloom:       h.Bloom,
			Number:      h.Number,
			GasUsed:     h.GasUsed,
			Time:        h.Time,
			Extra:       h.Extra,
		}
	}
	return &gingerbreadHeader{
		ParentHash:      h.ParentHash,
		UncleHash:       h.UncleHash,
		Coinbase:        h.Coinbase,
		Root:            h.Root,
		TxHash:          h.TxHash,
		ReceiptHash:     h.ReceiptHash,
		Bloom:           h.Bloom,
		Difficulty:      h.Difficulty,
		Number:          h.Number,
		GasLimit:        h.GasLimit,
		GasUsed:         h.GasUsed,
		Time:            h.Time,
		Extra:           h.Extra,
		MixDigest:       h.MixDigest,
		Nonce:           h.Nonce,
		BaseFee:         h.BaseFee,
		WithdrawalsHash: h.WithdrawalsHash,
	}
}

// Hash computes the block hash. The block's own aggregated seal is stripped from the
// extra-data before hashing since it is produced after the hash is signed. The parent's
// aggregated seal is set by the proposer and stays covered.
func (h *Header) Hash() common.Hash {
	if len(h.Extra) >= IstanbulExtraVanity {
		if filtered := h.filtered(); filtered != nil {
			return rlpHash(filtered.layout())
		}
	}
	return rlpHash(h.layout())
}

func (h *Header) filtered() *Header {
	extra, err := DecodeIstanbulExtra(h.Extra)
	if err != nil {
		return nil
	}
	extra.AggregatedSeal = AggregatedSeal{}
	payload, err := rlp.EncodeToBytes(extra)
	if err != nil {
		return nil
	}
	cpy := *h
	cpy.Extra = append(append([]byte{}, h.Extra[:IstanbulExtraVanity]...), payload...)
	return &cpy
}

func rlpHash(x interface{}) common.Hash {
	enc, err := rlp.EncodeToBytes(x)
	if err != nil {
		return common.Hash{}
	}
	return crypto.Keccak256Hash(enc)
}

// Block is a header as served by an untrusted RPC node, along with the hash it claims.
type Block struct {
	Header
	Hash common.Hash
}

// NumberU64 returns the block number.
func (b *Block) NumberU64() uint64 {
	if b.Number == nil {
		return 0
	}
	return b.Number.Uint64()
}

// AggregatedSeal is the BLS aggregate over a block, with the bitmap of the signers.
type AggregatedSeal struct {
	Bitmap    *big.Int
	Signature []byte
	Round     *big.Int
}

// IstanbulExtra is the RLP payload of the header extra-data after the vanity prefix.
type IstanbulExtra struct {
	AddedValidators           []common.Address
	AddedValidatorsPublicKeys [][]byte
	RemovedValidators         *big.Int
	Seal                      []byte
	AggregatedSeal            AggregatedSeal
	ParentAggregatedSeal      AggregatedSeal
}

// DecodeIstanbulExtra decodes the istanbul payload of a header extra-data field.
func DecodeIstanbulExtra(extra []byte) (*IstanbulExtra, error) {
	if len(extra) < IstanbulExtraVanity {
		return nil, errShortExtra
	}
	var ist IstanbulExtra
	if err := rlp.DecodeBytes(extra[IstanbulExtraVanity:], &ist); err != nil {
		return nil, fmt.Errorf("decoding istanbul extra: %w", err)
	}
	return &ist, nil
}

// RoundBytes returns the round as minimal big-endian bytes, the form it takes on the wire.
func (s AggregatedSeal) RoundBytes() []byte {
	if s.Round == nil {
		return nil
	}
	return s.Round.Bytes()
}

// BitmapBytes returns the signer bitmap as minimal big-endian bytes.
func (s AggregatedSeal) BitmapBytes() []byte {
	if s.Bitmap == nil {
		return nil
	}
	return s.Bitmap.Bytes()
}

// Signers expands the bitmap into a bitlist indexed by validator position.
func (s AggregatedSeal) Signers() bitfield.Bitlist {
	if s.Bitmap == nil {
		return bitfield.NewBitlist(0)
	}
	n := s.Bitmap.BitLen()
	bits := bitfield.NewBitlist(uint64(n))
	for i := 0; i < n; i++ {
		if s.Bitmap.Bit(i) == 1 {
			bits.SetBitAt(uint64(i), true)
		}
	}
	return bits
}

// SealMessage is the message a committed seal signs: hash || round || MsgCommit.
func SealMessage(hash common.Hash, round []byte) []byte {
	msg := make([]byte, 0, common.HashLength+len(round)+1)
	msg = append(msg, hash.Bytes()...)
	msg = append(msg, round...)
	return append(msg, MsgCommit)
}

// TrustedBlock is a block whose hash was accepted by verifying its seal against a proven
// validator set. The state root is trusted because the header hashes to Hash.
type TrustedBlock struct {
	Number         uint64
	Hash           common.Hash
	Root           common.Hash
	Epoch          Epoch
	Round          []byte
	Bitmap         []byte
	AggregatedSeal []byte
	Validators     EpochValidators
	Signers        uint64
}
