package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// --------------------------------------------------------

// Validator-set types as returned by the Plumo verifier. They are produced only by a
// successful proof verification, never built from data served by the RPC node.

// EpochValidators is the validator set of a single epoch block.
type EpochValidators struct {
	Index         uint64          `json:"index"`
	MaxNonSigners uint32          `json:"maximum_non_signers"`
	Validators    []hexutil.Bytes `json:"validators"` // serialized BLS public keys
}

// Commitment binds the validator set to a single hash so consecutive windows can be linked.
func (e EpochValidators) Commitment() common.Hash {
	enc, err := rlp.EncodeToBytes(e)
	if err != nil {
		// hexutil.Bytes and integers always encode
		panic(err)
	}
	return crypto.Keccak256Hash(enc)
}

// ValidatorSet is the verified output of a proof over an epoch window: the set the proof
// started from and the set valid at the end of the window.
type ValidatorSet struct {
	First EpochValidators `json:"first"`
	Last  EpochValidators `json:"last"`
}

// --------------------------------------------------------

// ProofBundle is the input handed to the proof verifier capability.
type ProofBundle struct {
	Proofs       [][]byte
	Epochs       [2]Epoch
	VerifyingKey []byte
}

// ProofResponse is the payload served by the proving service for one window.
type ProofResponse struct {
	Proof           []byte
	FirstEpoch      Epoch
	LastEpoch       Epoch
	FirstEpochIndex Epoch
	LastEpochIndex  Epoch
}

// NewProofBundle builds the immutable verifier input from a server response.
func NewProofBundle(resp ProofResponse, vk []byte) ProofBundle {
	proof := make([]byte, len(resp.Proof))
	copy(proof, resp.Proof)
	key := make([]byte, len(vk))
	copy(key, vk)
	return ProofBundle{
		Proofs:       [][]byte{proof},
		Epochs:       [2]Epoch{resp.FirstEpoch, resp.LastEpoch},
		VerifyingKey: key,
	}
}
