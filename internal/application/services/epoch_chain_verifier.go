package services

import (
	"context"
	"fmt"

	"github.com/dappnode/plumo-state-verifier/internal/application/domain"
	"github.com/dappnode/plumo-state-verifier/internal/logger"
)

// WindowSource resolves the validator set of one epoch window. ProofCache implements it.
type WindowSource interface {
	GetOrCreate(ctx context.Context, window domain.EpochWindow) (domain.ValidatorSet, error)
}

// EpochChainVerifier walks the proof chain from MinEpoch up to the current epoch.
type EpochChainVerifier struct {
	Windows WindowSource
}

// Verify establishes the validator set of currentEpoch. Windows are resolved one at a time
// in ascending order; the first failure aborts the chain and no later window is requested.
// Each window's starting set must equal the previous window's ending set.
func (v *EpochChainVerifier) Verify(ctx context.Context, currentEpoch domain.Epoch) (domain.ValidatorSet, error) {
	windows, err := domain.WindowsUpTo(currentEpoch)
	if err != nil {
		return domain.ValidatorSet{}, &domain.ResolveError{
			Kind:  domain.KindStateMissing,
			Stage: domain.StageEstablishingValidatorSet,
			Err:   err,
		}
	}
	logger.DebugWithPrefix("proofs", "Epoch %d needs %d proof windows", currentEpoch, len(windows))

	var (
		set  domain.ValidatorSet
		prev *domain.ValidatorSet
	)
	for i, window := range windows {
		set, err = v.Windows.GetOrCreate(ctx, window)
		if err != nil {
			return domain.ValidatorSet{}, v.chainError(i, window, err)
		}
		if prev != nil && prev.Last.Commitment() != set.First.Commitment() {
			err = fmt.Errorf("window %s starts at index %d with set %s, previous window ended at index %d with set %s: %w",
				window, set.First.Index, set.First.Commitment(), prev.Last.Index, prev.Last.Commitment(), domain.ErrValidatorLinkage)
			return domain.ValidatorSet{}, v.chainError(i, window, err)
		}
		current := set
		prev = &current
	}
	return set, nil
}

func (v *EpochChainVerifier) chainError(i int, window domain.EpochWindow, err error) error {
	return &domain.ResolveError{
		Kind:  domain.KindOf(err, domain.KindProofRejected),
		Stage: domain.StageEstablishingValidatorSet,
		Err:   fmt.Errorf("proof chain broken at window %d (epochs %s): %w", i, window, err),
	}
}
