package ports

import (
	"context"

	"github.com/dappnode/plumo-state-verifier/internal/application/domain"
)

// SealRequest is the input of a committed-seal verification.
type SealRequest struct {
	Bitmap     []byte
	Signature  []byte
	Validators domain.EpochValidators
	Message    []byte
}

// ChainProofVerifier checks a proof bundle and returns the validator sets it attests to.
type ChainProofVerifier interface {
	VerifyChain(ctx context.Context, bundle domain.ProofBundle) (domain.ValidatorSet, error)
}

// SealSignatureVerifier checks an aggregated BLS seal against a validator set.
type SealSignatureVerifier interface {
	VerifySeal(ctx context.Context, req SealRequest) error
}
