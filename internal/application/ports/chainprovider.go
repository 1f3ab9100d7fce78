package ports

import (
	"context"

	"github.com/dappnode/plumo-state-verifier/internal/application/domain"
)

// ChainProvider serves untrusted chain data.
type ChainProvider interface {
	// LatestBlock returns the head block, or nil if the node has none.
	LatestBlock(ctx context.Context) (*domain.Block, error)
}
