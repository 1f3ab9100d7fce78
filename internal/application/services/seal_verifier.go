package services

import (
	"context"
	"fmt"

	"github.com/dappnode/plumo-state-verifier/internal/application/domain"
	"github.com/dappnode/plumo-state-verifier/internal/application/ports"
	"github.com/dappnode/plumo-state-verifier/internal/logger"
)

// SealVerifier turns an untrusted block into a TrustedBlock by checking its committed seal
// against a proven validator set. Quorum is left to the signature verifier.
type SealVerifier struct {
	Signatures ports.SealSignatureVerifier
}

func (s *SealVerifier) Verify(ctx context.Context, block *domain.Block, set domain.ValidatorSet) (*domain.TrustedBlock, error) {
	extra, err := domain.DecodeIstanbulExtra(block.Extra)
	if err != nil {
		return nil, sealError(fmt.Errorf("block %d: %w", block.NumberU64(), err))
	}
	seal := extra.AggregatedSeal
	round := seal.RoundBytes()
	bitmap := seal.BitmapBytes()
	message := domain.SealMessage(block.Hash, round)
	signers := seal.Signers().Count()

	logger.DebugWithPrefix("seal", "bitmap=%x seal=%x round=%x", bitmap, seal.Signature, round)
	logger.DebugWithPrefix("seal", "message: %x", message)
	logger.InfoWithPrefix("seal", "Verifying signature on block %d using the validator set from the Plumo proof (%d signers)...",
		block.NumberU64(), signers)

	err = s.Signatures.VerifySeal(ctx, ports.SealRequest{
		Bitmap:     bitmap,
		Signature:  seal.Signature,
		Validators: set.Last,
		Message:    message,
	})
	if err != nil {
		return nil, sealError(fmt.Errorf("block %d (%s): %w", block.NumberU64(), block.Hash, err))
	}

	return &domain.TrustedBlock{
		Number:         block.NumberU64(),
		Hash:           block.Hash,
		Root:           block.Root,
		Epoch:          domain.EpochOfBlock(block.NumberU64()),
		Round:          round,
		Bitmap:         bitmap,
		AggregatedSeal: seal.Signature,
		Validators:     set.Last,
		Signers:        signers,
	}, nil
}

// sealError tags err as an invalid seal unless it already carries a kind.
func sealError(err error) error {
	return &domain.ResolveError{
		Kind:  domain.KindOf(err, domain.KindSealInvalid),
		Stage: domain.StageVerifyingSeal,
		Err:   err,
	}
}
