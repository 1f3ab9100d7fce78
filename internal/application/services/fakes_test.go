package services

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"

	"github.com/dappnode/plumo-state-verifier/internal/application/domain"
	"github.com/dappnode/plumo-state-verifier/internal/application/ports"
)

// validatorsAt is the validator set the fake verifier proves for an epoch.
func validatorsAt(e domain.Epoch) domain.EpochValidators {
	return domain.EpochValidators{
		Index:         uint64(e),
		MaxNonSigners: 33,
		Validators:    []hexutil.Bytes{{byte(e)}, {byte(e >> 8)}},
	}
}

type fakeProver struct {
	mu      sync.Mutex
	calls   map[domain.EpochWindow]int
	order   []domain.EpochWindow
	started chan domain.EpochWindow
	release chan struct{}
	fail    map[domain.EpochWindow]error
}

func newFakeProver() *fakeProver {
	return &fakeProver{
		calls: map[domain.EpochWindow]int{},
		fail:  map[domain.EpochWindow]error{},
	}
}

func (p *fakeProver) GetProof(ctx context.Context, window domain.EpochWindow) (domain.ProofResponse, error) {
	p.mu.Lock()
	p.calls[window]++
	p.order = append(p.order, window)
	err := p.fail[window]
	delete(p.fail, window)
	p.mu.Unlock()

	if p.started != nil {
		p.started <- window
	}
	if p.release != nil {
		<-p.release
	}
	if err != nil {
		return domain.ProofResponse{}, err
	}
	return domain.ProofResponse{
		Proof:           []byte(window.String()),
		FirstEpoch:      window.Start,
		LastEpoch:       window.End,
		FirstEpochIndex: window.Start,
		LastEpochIndex:  window.End,
	}, nil
}

func (p *fakeProver) Calls(window domain.EpochWindow) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[window]
}

func (p *fakeProver) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}

type fakeChainVerifier struct {
	mu     sync.Mutex
	reject map[domain.Epoch]bool
	vks    [][]byte
}

func (v *fakeChainVerifier) VerifyChain(ctx context.Context, bundle domain.ProofBundle) (domain.ValidatorSet, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vks = append(v.vks, bundle.VerifyingKey)
	if v.reject[bundle.Epochs[0]] {
		return domain.ValidatorSet{}, fmt.Errorf("epochs %d-%d: %w", bundle.Epochs[0], bundle.Epochs[1], domain.ErrProofRejected)
	}
	return domain.ValidatorSet{
		First: validatorsAt(bundle.Epochs[0]),
		Last:  validatorsAt(bundle.Epochs[1]),
	}, nil
}

type fakeSealVerifier struct {
	mu       sync.Mutex
	requests []ports.SealRequest
	err      error
}

func (v *fakeSealVerifier) VerifySeal(ctx context.Context, req ports.SealRequest) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.requests = append(v.requests, req)
	return v.err
}

type fakeChain struct {
	block *domain.Block
	err   error
}

func (c *fakeChain) LatestBlock(ctx context.Context) (*domain.Block, error) {
	return c.block, c.err
}

type storageKey struct {
	address common.Address
	slot    common.Hash
}

type fakeState struct {
	mu       sync.Mutex
	accounts map[common.Address]*domain.Account
	storage  map[storageKey][]byte
	err      error
	calls    int
	roots    []common.Hash
}

func newFakeState() *fakeState {
	return &fakeState{
		accounts: map[common.Address]*domain.Account{},
		storage:  map[storageKey][]byte{},
	}
}

func (s *fakeState) ProveAccount(ctx context.Context, address common.Address, block *domain.TrustedBlock) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.roots = append(s.roots, block.Root)
	if s.err != nil {
		return nil, s.err
	}
	return s.accounts[address], nil
}

func (s *fakeState) ProveStorage(ctx context.Context, address common.Address, slot common.Hash, block *domain.TrustedBlock) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.roots = append(s.roots, block.Root)
	if s.err != nil {
		return nil, s.err
	}
	return s.storage[storageKey{address, slot}], nil
}

type storedValue struct {
	address   common.Address
	token     *common.Address
	slot      *common.Hash
	blockHash common.Hash
	value     []byte
}

type fakeStorage struct {
	mu     sync.Mutex
	blocks []*domain.TrustedBlock
	values []storedValue
	err    error
}

func (s *fakeStorage) UpsertTrustedBlock(ctx context.Context, block *domain.TrustedBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = append(s.blocks, block)
	return s.err
}

func (s *fakeStorage) InsertVerifiedValue(ctx context.Context, address common.Address, token *common.Address, slot *common.Hash, blockHash common.Hash, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, storedValue{address, token, slot, blockHash, value})
	return s.err
}

// sealedBlock builds a block in epoch whose extra-data carries an aggregated seal.
func sealedBlock(t *testing.T, epoch domain.Epoch, bitmap int64, round int64) *domain.Block {
	t.Helper()
	payload, err := rlp.EncodeToBytes(domain.IstanbulExtra{
		RemovedValidators: big.NewInt(0),
		AggregatedSeal: domain.AggregatedSeal{
			Bitmap:    big.NewInt(bitmap),
			Signature: []byte{0x5e, 0xa1},
			Round:     big.NewInt(round),
		},
		ParentAggregatedSeal: domain.AggregatedSeal{Bitmap: big.NewInt(0), Round: big.NewInt(0)},
	})
	require.NoError(t, err)

	header := domain.Header{
		Root:   common.HexToHash("0x5700000000000000000000000000000000000000000000000000000000000000"),
		Number: new(big.Int).SetUint64(uint64(epoch)*domain.EpochDuration + 100),
		Extra:  append(make([]byte, domain.IstanbulExtraVanity), payload...),
	}
	return &domain.Block{Header: header, Hash: header.Hash()}
}
