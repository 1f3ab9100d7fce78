package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dappnode/plumo-state-verifier/internal/application/domain"
)

// StateProver returns state values verified against the state root of a trusted block.
type StateProver interface {
	// ProveAccount returns the account leaf of address, or nil if the proof shows it absent.
	ProveAccount(ctx context.Context, address common.Address, block *domain.TrustedBlock) (*domain.Account, error)
	// ProveStorage returns the value stored at slot, or nil if the proof shows it absent.
	ProveStorage(ctx context.Context, address common.Address, slot common.Hash, block *domain.TrustedBlock) ([]byte, error)
}
