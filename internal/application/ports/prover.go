package ports

import (
	"context"

	"github.com/dappnode/plumo-state-verifier/internal/application/domain"
)

// ProverAdapter fetches epoch snark proofs from the proving service.
type ProverAdapter interface {
	GetProof(ctx context.Context, window domain.EpochWindow) (domain.ProofResponse, error)
}
