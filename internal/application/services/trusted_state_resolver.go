package services

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dappnode/plumo-state-verifier/internal/application/domain"
	"github.com/dappnode/plumo-state-verifier/internal/application/ports"
	"github.com/dappnode/plumo-state-verifier/internal/logger"
)

var resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "plumo_resolutions_total",
	Help: "The number of trusted block resolutions by outcome.",
}, []string{"outcome"})

// TrustedStateResolver runs a resolution: latest block, proof chain, seal, state proof.
// Every stage is attempted once and the first failure ends the resolution.
type TrustedStateResolver struct {
	Chain  ports.ChainProvider
	Epochs *EpochChainVerifier
	Seals  *SealVerifier
	State  ports.StateProver

	// Storage is optional. When set, trusted blocks and values are recorded.
	Storage ports.ResolutionStoragePort
}

// TrustedBlock fetches the head block and accepts its hash once its seal verifies against
// the validator set proven for its epoch.
func (r *TrustedStateResolver) TrustedBlock(ctx context.Context) (*domain.TrustedBlock, error) {
	trusted, err := r.trustedBlock(ctx)
	if err != nil {
		resolutions.WithLabelValues(string(domain.KindOf(err, domain.KindNetworkFailure))).Inc()
		logger.ErrorWithPrefix("resolver", "Error establishing a trusted block: %v", err)
		return nil, err
	}
	resolutions.WithLabelValues("trusted").Inc()

	if r.Storage != nil {
		if err := r.Storage.UpsertTrustedBlock(ctx, trusted); err != nil {
			logger.WarnWithPrefix("resolver", "Failed to persist trusted block %d: %v", trusted.Number, err)
		}
	}
	return trusted, nil
}

func (r *TrustedStateResolver) trustedBlock(ctx context.Context) (*domain.TrustedBlock, error) {
	block, err := r.Chain.LatestBlock(ctx)
	if err != nil {
		return nil, domain.NewResolveError(domain.StageFetchingBlock, domain.KindNetworkFailure, err)
	}
	if block == nil {
		return nil, &domain.ResolveError{
			Kind:  domain.KindStateMissing,
			Stage: domain.StageFetchingBlock,
			Err:   fmt.Errorf("failed to retrieve latest block"),
		}
	}
	logger.DebugWithPrefix("resolver", "Got block %d (%s)...", block.NumberU64(), block.Hash)

	epoch := domain.EpochOfBlock(block.NumberU64())
	set, err := r.Epochs.Verify(ctx, epoch)
	if err != nil {
		return nil, err
	}
	logger.DebugWithPrefix("resolver", "Validator set for epoch %d: %d validators at index %d",
		epoch, len(set.Last.Validators), set.Last.Index)

	return r.Seals.Verify(ctx, block, set)
}

// Balance returns the verified balance of holder at the head block. With a nil token it
// proves the native account balance, otherwise the holder's entry in the token contract's
// balances mapping.
func (r *TrustedStateResolver) Balance(ctx context.Context, holder common.Address, token *common.Address) (*domain.VerifiedValue, error) {
	logger.InfoWithPrefix("resolver", "Attempting to fetch verified balance of %s", holder)
	trusted, err := r.TrustedBlock(ctx)
	if err != nil {
		return nil, err
	}
	return r.BalanceAt(ctx, trusted, holder, token)
}

// BalanceAt proves the balance of holder against an already trusted block.
func (r *TrustedStateResolver) BalanceAt(ctx context.Context, trusted *domain.TrustedBlock, holder common.Address, token *common.Address) (*domain.VerifiedValue, error) {
	logger.InfoWithPrefix("resolver", "Getting merkle proofs for account %s at block %d...", holder, trusted.Number)

	if token == nil {
		account, err := r.State.ProveAccount(ctx, holder, trusted)
		if err != nil {
			return nil, domain.NewResolveError(domain.StageFetchingStateProof, domain.KindMerkleProofInvalid, err)
		}
		if account == nil {
			return nil, &domain.ResolveError{
				Kind:  domain.KindStateMissing,
				Stage: domain.StageDecodingValue,
				Err:   fmt.Errorf("%s at block %d: %w", holder, trusted.Number, domain.ErrAccountMissing),
			}
		}
		var raw []byte
		if account.Balance != nil {
			raw = account.Balance.Bytes()
		}
		return r.finish(ctx, trusted, holder, nil, nil, raw)
	}

	slot := domain.MappingSlot(domain.TokenBalanceSlot, holder)
	raw, err := r.State.ProveStorage(ctx, *token, slot, trusted)
	if err != nil {
		return nil, domain.NewResolveError(domain.StageFetchingStateProof, domain.KindMerkleProofInvalid, err)
	}
	// An absent slot is a zero balance.
	return r.finish(ctx, trusted, holder, token, &slot, raw)
}

// StorageAt returns the verified content of a plain storage position of contract at the
// head block.
func (r *TrustedStateResolver) StorageAt(ctx context.Context, contract common.Address, position *big.Int) (*domain.VerifiedValue, error) {
	if _, err := domain.PositionSlot(position); err != nil {
		return nil, err
	}
	logger.InfoWithPrefix("resolver", "Attempting to fetch verified storage %s of %s", position, contract)
	trusted, err := r.TrustedBlock(ctx)
	if err != nil {
		return nil, err
	}
	return r.StorageAtBlock(ctx, trusted, contract, position)
}

// StorageAtBlock proves a plain storage position against an already trusted block.
func (r *TrustedStateResolver) StorageAtBlock(ctx context.Context, trusted *domain.TrustedBlock, contract common.Address, position *big.Int) (*domain.VerifiedValue, error) {
	slot, err := domain.PositionSlot(position)
	if err != nil {
		return nil, err
	}
	raw, err := r.State.ProveStorage(ctx, contract, slot, trusted)
	if err != nil {
		return nil, domain.NewResolveError(domain.StageFetchingStateProof, domain.KindMerkleProofInvalid, err)
	}
	return r.finish(ctx, trusted, contract, nil, &slot, raw)
}

func (r *TrustedStateResolver) finish(ctx context.Context, trusted *domain.TrustedBlock, address common.Address, token *common.Address, slot *common.Hash, raw []byte) (*domain.VerifiedValue, error) {
	value, err := domain.DecodeValue(raw)
	if err != nil {
		return nil, &domain.ResolveError{
			Kind:  domain.KindMerkleProofInvalid,
			Stage: domain.StageDecodingValue,
			Err:   err,
		}
	}
	logger.InfoWithPrefix("resolver", "Done! Value is %s at block %d", value.Dec(), trusted.Number)

	if r.Storage != nil {
		if err := r.Storage.InsertVerifiedValue(ctx, address, token, slot, trusted.Hash, raw); err != nil {
			logger.WarnWithPrefix("resolver", "Failed to persist verified value for %s: %v", address, err)
		}
	}
	return &domain.VerifiedValue{Raw: raw, Value: value, Block: trusted}, nil
}
