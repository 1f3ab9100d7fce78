package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dappnode/plumo-state-verifier/internal/application/domain"
)

// ResolutionStoragePort persists the history of trusted blocks and verified values
// in a hexagonal architecture.
type ResolutionStoragePort interface {
	// UpsertTrustedBlock inserts or updates a trusted block.
	UpsertTrustedBlock(ctx context.Context, block *domain.TrustedBlock) error

	// InsertVerifiedValue records a value verified against a trusted block. token is nil for
	// native balances, slot is nil for account proofs.
	InsertVerifiedValue(ctx context.Context, address common.Address, token *common.Address, slot *common.Hash, blockHash common.Hash, value []byte) error
}
