package services

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/dappnode/plumo-state-verifier/internal/application/domain"
	"github.com/dappnode/plumo-state-verifier/internal/application/ports"
	"github.com/dappnode/plumo-state-verifier/internal/logger"
)

// DefaultProofCacheSize is the number of verified windows kept when no size is configured.
const DefaultProofCacheSize = 1024

var (
	proofCacheHit = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plumo_proof_cache_hit",
		Help: "The number of window requests served from verified cache entries.",
	})
	proofCacheMiss = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plumo_proof_cache_miss",
		Help: "The number of window requests that were not yet verified.",
	})
	proofCacheShared = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plumo_proof_cache_shared",
		Help: "The number of window requests that joined an in-flight verification.",
	})
	proofsVerified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plumo_proofs_verified",
		Help: "The number of window proofs fetched and verified.",
	})
)

// ProofCache memoizes verified validator sets per epoch window. Concurrent requests for the
// same window share one fetch and one verification; a failed verification leaves no entry.
type ProofCache struct {
	Prover       ports.ProverAdapter
	Verifier     ports.ChainProofVerifier
	VerifyingKey []byte

	resolved *lru.Cache[domain.EpochWindow, domain.ValidatorSet]
	pending  singleflight.Group
}

// NewProofCache creates a cache holding at most size verified windows.
func NewProofCache(prover ports.ProverAdapter, verifier ports.ChainProofVerifier, vk []byte, size int) (*ProofCache, error) {
	if size <= 0 {
		size = DefaultProofCacheSize
	}
	resolved, err := lru.New[domain.EpochWindow, domain.ValidatorSet](size)
	if err != nil {
		return nil, fmt.Errorf("creating proof cache: %w", err)
	}
	return &ProofCache{
		Prover:       prover,
		Verifier:     verifier,
		VerifyingKey: vk,
		resolved:     resolved,
	}, nil
}

// GetOrCreate returns the verified validator set of window, fetching and verifying it if no
// verified entry exists. A caller whose context ends stops waiting, but the in-flight
// verification continues for the other callers.
func (c *ProofCache) GetOrCreate(ctx context.Context, window domain.EpochWindow) (domain.ValidatorSet, error) {
	if set, ok := c.resolved.Get(window); ok {
		proofCacheHit.Inc()
		return set, nil
	}
	proofCacheMiss.Inc()

	ch := c.pending.DoChan(window.String(), func() (interface{}, error) {
		// Another caller may have finished between the lookup above and joining the group.
		if set, ok := c.resolved.Get(window); ok {
			return set, nil
		}
		set, err := c.fetchAndVerify(context.WithoutCancel(ctx), window)
		if err != nil {
			return nil, err
		}
		c.resolved.Add(window, set)
		return set, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			proofCacheShared.Inc()
		}
		if res.Err != nil {
			return domain.ValidatorSet{}, res.Err
		}
		return res.Val.(domain.ValidatorSet), nil
	case <-ctx.Done():
		return domain.ValidatorSet{}, ctx.Err()
	}
}

// Len returns the number of verified windows held.
func (c *ProofCache) Len() int {
	return c.resolved.Len()
}

func (c *ProofCache) fetchAndVerify(ctx context.Context, window domain.EpochWindow) (domain.ValidatorSet, error) {
	resp, err := c.Prover.GetProof(ctx, window)
	if err != nil {
		return domain.ValidatorSet{}, fmt.Errorf("fetching proof for epochs %s: %w", window, err)
	}

	logger.InfoWithPrefix("proofs", "Verifying Plumo proof for epochs %d to %d (up until block %d)...",
		resp.FirstEpochIndex, resp.LastEpochIndex, uint64(resp.LastEpochIndex)*domain.EpochDuration)

	set, err := c.Verifier.VerifyChain(ctx, domain.NewProofBundle(resp, c.VerifyingKey))
	if err != nil {
		return domain.ValidatorSet{}, fmt.Errorf("verifying proof for epochs %s: %w", window, err)
	}
	proofsVerified.Inc()
	return set, nil
}
