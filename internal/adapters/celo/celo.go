package celo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/dappnode/plumo-state-verifier/internal/application/domain"
	"github.com/dappnode/plumo-state-verifier/internal/application/ports"
)

type celoRPCClient struct {
	client *rpc.Client
}

// Dial connects to a Celo JSON-RPC endpoint.
func Dial(ctx context.Context, endpoint string) (*rpc.Client, error) {
	client, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "could not dial celo node")
	}
	return client, nil
}

func NewChainAdapter(client *rpc.Client) ports.ChainProvider {
	return &celoRPCClient{client: client}
}

// rpcHeader is the subset of eth_getBlockBy* fields a Celo header hash covers.
type rpcHeader struct {
	Number      *hexutil.Big   `json:"number"`
	Hash        common.Hash    `json:"hash"`
	ParentHash  common.Hash    `json:"parentHash"`
	Miner       common.Address `json:"miner"`
	StateRoot   common.Hash    `json:"stateRoot"`
	TxRoot      common.Hash    `json:"transactionsRoot"`
	ReceiptRoot common.Hash    `json:"receiptsRoot"`
	LogsBloom   types.Bloom    `json:"logsBloom"`
	GasUsed     hexutil.Uint64 `json:"gasUsed"`
	Timestamp   hexutil.Uint64 `json:"timestamp"`
	ExtraData   hexutil.Bytes  `json:"extraData"`

	// Present from the Gingerbread fork on.
	UncleHash       *common.Hash      `json:"sha3Uncles,omitempty"`
	Difficulty      *hexutil.Big      `json:"difficulty,omitempty"`
	GasLimit        *hexutil.Uint64   `json:"gasLimit,omitempty"`
	MixDigest       *common.Hash      `json:"mixHash,omitempty"`
	Nonce           *types.BlockNonce `json:"nonce,omitempty"`
	BaseFee         *hexutil.Big      `json:"baseFeePerGas,omitempty"`
	WithdrawalsRoot *common.Hash      `json:"withdrawalsRoot,omitempty"`
}

func (h *rpcHeader) header() domain.Header {
	header := domain.Header{
		ParentHash:  h.ParentHash,
		Coinbase:    h.Miner,
		Root:        h.StateRoot,
		TxHash:      h.TxRoot,
		ReceiptHash: h.ReceiptRoot,
		Bloom:       h.LogsBloom,
		Number:      h.Number.ToInt(),
		GasUsed:     uint64(h.GasUsed),
		Time:        uint64(h.Timestamp),
		Extra:       h.ExtraData,
	}
	if h.Difficulty == nil {
		return header
	}
	header.Difficulty = h.Difficulty.ToInt()
	if h.UncleHash != nil {
		header.UncleHash = *h.UncleHash
	}
	if h.GasLimit != nil {
		header.GasLimit = uint64(*h.GasLimit)
	}
	if h.MixDigest != nil {
		header.MixDigest = *h.MixDigest
	}
	if h.Nonce != nil {
		header.Nonce = *h.Nonce
	}
	if h.BaseFee != nil {
		header.BaseFee = h.BaseFee.ToInt()
	}
	header.WithdrawalsHash = h.WithdrawalsRoot
	return header
}

// LatestBlock retrieves the head block. The returned header is checked to hash to the hash
// the node claims, so its state root can be trusted once that hash is.
func (c *celoRPCClient) LatestBlock(ctx context.Context) (*domain.Block, error) {
	var raw json.RawMessage
	if err := c.client.CallContext(ctx, &raw, "eth_getBlockByNumber", "latest", false); err != nil {
		return nil, errors.Wrapf(domain.ErrNetworkFailure, "eth_getBlockByNumber: %v", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return DecodeBlock(raw)
}

// DecodeBlock decodes an RPC block object and checks its claimed hash.
func DecodeBlock(raw json.RawMessage) (*domain.Block, error) {
	var head rpcHeader
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, errors.Wrapf(domain.ErrNetworkFailure, "error decoding block: %v", err)
	}
	if head.Number == nil {
		return nil, errors.Wrap(domain.ErrHeaderMismatch, "block without number")
	}

	block := &domain.Block{Header: head.header(), Hash: head.Hash}
	computed := block.Header.Hash()
	if computed != block.Hash && block.IsGingerbread() {
		// Nodes may report zeroed Gingerbread fields for blocks produced before the fork.
		if legacy := block.Header.Legacy(); legacy.Hash() == block.Hash {
			block.Header = legacy
			computed = block.Hash
		}
	}
	if computed != block.Hash {
		return nil, errors.Wrap(domain.ErrHeaderMismatch,
			fmt.Sprintf("block %d claims hash %s but its header hashes to %s", block.NumberU64(), block.Hash, computed))
	}
	return block, nil
}
