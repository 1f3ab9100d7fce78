package stateproof

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/pkg/errors"

	"github.com/dappnode/plumo-state-verifier/internal/application/domain"
	"github.com/dappnode/plumo-state-verifier/internal/application/ports"
)

// StateProofAdapter fetches EIP-1186 proofs and verifies them against the state root of a
// trusted block. Nothing the node returns besides the proof nodes is used.
type StateProofAdapter struct {
	client *rpc.Client
}

type storageResult struct {
	Key   string   `json:"key"`
	Proof []string `json:"proof"`
}

type accountResult struct {
	Address      common.Address  `json:"address"`
	AccountProof []string        `json:"accountProof"`
	StorageHash  common.Hash     `json:"storageHash"`
	StorageProof []storageResult `json:"storageProof"`
}

func NewStateProofAdapter(client *rpc.Client) ports.StateProver {
	return &StateProofAdapter{client: client}
}

// ProveAccount returns the account of address at block, or nil when the proof shows the
// account does not exist.
func (s *StateProofAdapter) ProveAccount(ctx context.Context, address common.Address, block *domain.TrustedBlock) (*domain.Account, error) {
	res, err := s.getProof(ctx, address, nil, block)
	if err != nil {
		return nil, err
	}
	return verifyAccount(block.Root, address, res.AccountProof)
}

// ProveStorage returns the value of slot in the storage of address at block, or nil when
// the slot is empty.
func (s *StateProofAdapter) ProveStorage(ctx context.Context, address common.Address, slot common.Hash, block *domain.TrustedBlock) ([]byte, error) {
	res, err := s.getProof(ctx, address, []common.Hash{slot}, block)
	if err != nil {
		return nil, err
	}
	account, err := verifyAccount(block.Root, address, res.AccountProof)
	if err != nil {
		return nil, err
	}
	if account == nil || account.Root == types.EmptyRootHash {
		return nil, nil
	}

	for _, sp := range res.StorageProof {
		if common.HexToHash(sp.Key) != slot {
			continue
		}
		enc, err := verifyProof(account.Root, slot.Bytes(), sp.Proof)
		if err != nil {
			return nil, errors.Wrapf(domain.ErrMerkleProofInvalid, "storage proof of %s slot %s: %v", address, slot, err)
		}
		if len(enc) == 0 {
			return nil, nil
		}
		var value []byte
		if err := rlp.DecodeBytes(enc, &value); err != nil {
			return nil, errors.Wrapf(domain.ErrMerkleProofInvalid, "decoding slot %s of %s: %v", slot, address, err)
		}
		return value, nil
	}
	return nil, errors.Wrapf(domain.ErrMerkleProofInvalid, "no storage proof for slot %s of %s", slot, address)
}

func (s *StateProofAdapter) getProof(ctx context.Context, address common.Address, slots []common.Hash, block *domain.TrustedBlock) (*accountResult, error) {
	keys := make([]string, 0, len(slots))
	for _, slot := range slots {
		keys = append(keys, slot.Hex())
	}
	var res accountResult
	ref := rpc.BlockNumberOrHashWithHash(block.Hash, false)
	if err := s.client.CallContext(ctx, &res, "eth_getProof", address, keys, ref); err != nil {
		return nil, errors.Wrapf(domain.ErrNetworkFailure, "eth_getProof %s at %s: %v", address, block.Hash, err)
	}
	return &res, nil
}

func verifyAccount(root common.Hash, address common.Address, proof []string) (*domain.Account, error) {
	enc, err := verifyProof(root, address.Bytes(), proof)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrMerkleProofInvalid, "account proof of %s: %v", address, err)
	}
	if len(enc) == 0 {
		return nil, nil
	}
	var account domain.Account
	if err := rlp.DecodeBytes(enc, &account); err != nil {
		return nil, errors.Wrapf(domain.ErrMerkleProofInvalid, "decoding account %s: %v", address, err)
	}
	return &account, nil
}

// verifyProof checks proof against root for the secure-trie key of key and returns the leaf.
func verifyProof(root common.Hash, key []byte, proof []string) ([]byte, error) {
	db := memorydb.New()
	for i, node := range proof {
		blob, err := hexutil.Decode(node)
		if err != nil {
			return nil, fmt.Errorf("proof node %d: %w", i, err)
		}
		if err := db.Put(crypto.Keccak256(blob), blob); err != nil {
			return nil, err
		}
	}
	return trie.VerifyProof(root, crypto.Keccak256(key), db)
}
