package celo

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dappnode/plumo-state-verifier/internal/application/domain"
)

type ethService struct {
	block json.RawMessage
	err   error
	args  []interface{}
}

func (s *ethService) GetBlockByNumber(number string, full bool) (json.RawMessage, error) {
	s.args = append(s.args, number, full)
	return s.block, s.err
}

func newTestClient(t *testing.T, svc *ethService) *rpc.Client {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", svc))
	client := rpc.DialInProc(server)
	t.Cleanup(func() {
		client.Close()
		server.Stop()
	})
	return client
}

func testHeader(t *testing.T) domain.Header {
	t.Helper()
	payload, err := rlp.EncodeToBytes(domain.IstanbulExtra{
		RemovedValidators: big.NewInt(0),
		AggregatedSeal: domain.AggregatedSeal{
			Bitmap:    big.NewInt(0b11),
			Signature: []byte{0x01, 0x02},
			Round:     big.NewInt(0),
		},
		ParentAggregatedSeal: domain.AggregatedSeal{Bitmap: big.NewInt(0), Round: big.NewInt(0)},
	})
	require.NoError(t, err)
	return domain.Header{
		ParentHash:  common.HexToHash("0xaa"),
		Coinbase:    common.HexToAddress("0xbb"),
		Root:        common.HexToHash("0xcc"),
		TxHash:      common.HexToHash("0xdd"),
		ReceiptHash: common.HexToHash("0xee"),
		Number:      big.NewInt(700*domain.EpochDuration + 5),
		GasUsed:     123456,
		Time:        1700000000,
		Extra:       append(make([]byte, domain.IstanbulExtraVanity), payload...),
	}
}

func rpcBlock(t *testing.T, h domain.Header, hash common.Hash) json.RawMessage {
	t.Helper()
	head := rpcHeader{
		Number:      (*hexutil.Big)(h.Number),
		Hash:        hash,
		ParentHash:  h.ParentHash,
		Miner:       h.Coinbase,
		StateRoot:   h.Root,
		TxRoot:      h.TxHash,
		ReceiptRoot: h.ReceiptHash,
		LogsBloom:   h.Bloom,
		GasUsed:     hexutil.Uint64(h.GasUsed),
		Timestamp:   hexutil.Uint64(h.Time),
		ExtraData:   h.Extra,
	}
	if h.IsGingerbread() {
		gasLimit := hexutil.Uint64(h.GasLimit)
		head.UncleHash = &h.UncleHash
		head.Difficulty = (*hexutil.Big)(h.Difficulty)
		head.GasLimit = &gasLimit
		head.MixDigest = &h.MixDigest
		head.Nonce = &h.Nonce
		head.BaseFee = (*hexutil.Big)(h.BaseFee)
	}
	raw, err := json.Marshal(head)
	require.NoError(t, err)
	return raw
}

func gingerbread(h domain.Header) domain.Header {
	h.UncleHash = types.EmptyUncleHash
	h.Difficulty = big.NewInt(0)
	h.GasLimit = 35_000_000
	h.BaseFee = big.NewInt(5_000_000_000)
	return h
}

func TestLatestBlock(t *testing.T) {
	h := testHeader(t)
	svc := &ethService{block: rpcBlock(t, h, h.Hash())}
	chain := NewChainAdapter(newTestClient(t, svc))

	block, err := chain.LatestBlock(context.Background())
	require.NoError(t, err)
	require.NotNil(t, block)

	assert.Equal(t, []interface{}{"latest", false}, svc.args)
	assert.Equal(t, h.Hash(), block.Hash)
	assert.Equal(t, h.Root, block.Root)
	assert.Equal(t, uint64(700*domain.EpochDuration+5), block.NumberU64())
	assert.Equal(t, h.Extra, block.Extra)
}

func TestLatestBlockRejectsTamperedHeader(t *testing.T) {
	h := testHeader(t)
	claimed := h.Hash()
	h.Root = common.HexToHash("0x01")
	svc := &ethService{block: rpcBlock(t, h, claimed)}

	_, err := NewChainAdapter(newTestClient(t, svc)).LatestBlock(context.Background())
	assert.ErrorIs(t, err, domain.ErrHeaderMismatch)
}

func TestLatestBlockNull(t *testing.T) {
	svc := &ethService{block: json.RawMessage("null")}

	block, err := NewChainAdapter(newTestClient(t, svc)).LatestBlock(context.Background())
	require.NoError(t, err)
	assert.Nil(t, block)
}

func TestLatestBlockRPCError(t *testing.T) {
	svc := &ethService{err: errors.New("node is syncing")}

	_, err := NewChainAdapter(newTestClient(t, svc)).LatestBlock(context.Background())
	assert.ErrorIs(t, err, domain.ErrNetworkFailure)
}

func TestDecodeBlockWithoutNumber(t *testing.T) {
	_, err := DecodeBlock(json.RawMessage(`{"hash":"0x0000000000000000000000000000000000000000000000000000000000000001"}`))
	assert.ErrorIs(t, err, domain.ErrHeaderMismatch)

	_, err = DecodeBlock(json.RawMessage(`[]`))
	assert.ErrorIs(t, err, domain.ErrNetworkFailure)
}

func TestLatestBlockGingerbread(t *testing.T) {
	h := gingerbread(testHeader(t))
	svc := &ethService{block: rpcBlock(t, h, h.Hash())}

	block, err := NewChainAdapter(newTestClient(t, svc)).LatestBlock(context.Background())
	require.NoError(t, err)
	assert.True(t, block.IsGingerbread())
	assert.Equal(t, h.Hash(), block.Hash)
	assert.Equal(t, uint64(35_000_000), block.GasLimit)
	assert.Equal(t, big.NewInt(5_000_000_000), block.BaseFee)

	legacy := testHeader(t)
	assert.NotEqual(t, legacy.Hash(), block.Hash)
}

func TestLatestBlockLegacyWithZeroedExtensionFields(t *testing.T) {
	legacy := testHeader(t)
	served := gingerbread(legacy)
	svc := &ethService{block: rpcBlock(t, served, legacy.Hash())}

	block, err := NewChainAdapter(newTestClient(t, svc)).LatestBlock(context.Background())
	require.NoError(t, err)
	assert.False(t, block.IsGingerbread())
	assert.Equal(t, legacy.Hash(), block.Hash)
}

func TestLatestBlockGingerbreadTampered(t *testing.T) {
	h := gingerbread(testHeader(t))
	claimed := h.Hash()
	h.BaseFee = big.NewInt(1)
	svc := &ethService{block: rpcBlock(t, h, claimed)}

	_, err := NewChainAdapter(newTestClient(t, svc)).LatestBlock(context.Background())
	assert.ErrorIs(t, err, domain.ErrHeaderMismatch)
}
