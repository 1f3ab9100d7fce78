package services

import (
	"context"
	"time"

	"github.com/dappnode/plumo-state-verifier/internal/application/domain"
	"github.com/dappnode/plumo-state-verifier/internal/logger"
)

// TrustedBlockSource establishes trusted head blocks. TrustedStateResolver implements it.
type TrustedBlockSource interface {
	TrustedBlock(ctx context.Context) (*domain.TrustedBlock, error)
}

// CacheWarmer resolves the head periodically so the proof chain for the current epoch is
// verified before clients ask for it.
type CacheWarmer struct {
	Resolver     TrustedBlockSource
	PollInterval time.Duration

	lastEpoch       domain.Epoch
	lastRunHadError bool
}

func (w *CacheWarmer) Run(ctx context.Context) {
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	w.warm(ctx)
	for {
		select {
		case <-ticker.C:
			w.warm(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *CacheWarmer) warm(ctx context.Context) {
	trusted, err := w.Resolver.TrustedBlock(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("Error warming proof cache: %v", err)
		}
		w.lastRunHadError = true
		return
	}

	if trusted.Epoch == w.lastEpoch && !w.lastRunHadError {
		logger.Debug("Epoch %d unchanged and last run was successful, trusted block %d", trusted.Epoch, trusted.Number)
		return
	}

	w.lastEpoch = trusted.Epoch
	w.lastRunHadError = false
	logger.Info("✅ Proof chain verified up to epoch %d, trusted block %d (%s) signed by %d validators",
		trusted.Epoch, trusted.Number, trusted.Hash, trusted.Signers)
}
