package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/urfave/cli/v2"

	"github.com/dappnode/plumo-state-verifier/internal/adapters/api"
	"github.com/dappnode/plumo-state-verifier/internal/adapters/celo"
	"github.com/dappnode/plumo-state-verifier/internal/adapters/plumo"
	"github.com/dappnode/plumo-state-verifier/internal/adapters/prover"
	"github.com/dappnode/plumo-state-verifier/internal/adapters/sqlite"
	"github.com/dappnode/plumo-state-verifier/internal/adapters/stateproof"
	"github.com/dappnode/plumo-state-verifier/internal/application/domain"
	"github.com/dappnode/plumo-state-verifier/internal/application/services"
	"github.com/dappnode/plumo-state-verifier/internal/config"
	"github.com/dappnode/plumo-state-verifier/internal/logger"
)

// configFlags override the configuration variable of the same index in configVars.
var (
	configVars  = []string{"NETWORK", "PROVER_URL", "RPC_URL", "PLUMO_VERIFIER_BIN", "PLUMO_VERIFYING_KEY", "DB_PATH", "LISTEN_ADDR", "PROOF_CACHE_SIZE", "WARM_INTERVAL", "PROVER_TIMEOUT", "LOG_LEVEL"}
	configFlags = []*cli.StringFlag{
		{Name: "network", Usage: "Celo network: mainnet or alfajores"},
		{Name: "prover-url", Usage: "Plumo proof server base URL"},
		{Name: "rpc-url", Usage: "Celo JSON-RPC endpoint"},
		{Name: "verifier-bin", Usage: "Path of the Plumo verifier binary"},
		{Name: "verifying-key", Usage: "Hex verifying key of the epoch-transition circuit"},
		{Name: "db-path", Usage: "SQLite file recording verified values, empty disables it"},
		{Name: "listen-addr", Usage: "HTTP API listen address"},
		{Name: "proof-cache-size", Usage: "Number of verified proof windows kept in memory"},
		{Name: "warm-interval", Usage: "Interval between background head resolutions"},
		{Name: "prover-timeout", Usage: "Timeout of a single proof request"},
		{Name: "log-level", Usage: "DEBUG, INFO, WARN, ERROR or FATAL"},
	}
)

var (
	addressFlag = &cli.StringFlag{
		Name:     "address",
		Usage:    "Account or contract address",
		Required: true,
	}
	tokenFlag = &cli.StringFlag{
		Name:  "token",
		Usage: "Token contract address; the native balance is used when omitted",
	}
	positionFlag = &cli.StringFlag{
		Name:  "position",
		Usage: "Storage position, decimal or 0x-prefixed hex",
		Value: "0x0",
	}
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handleShutdown(cancel)

	globalFlags := make([]cli.Flag, 0, len(configFlags))
	for _, f := range configFlags {
		globalFlags = append(globalFlags, f)
	}

	app := &cli.App{
		Name:  "plumo-state-verifier",
		Usage: "Resolve Celo state verified against Plumo validator-set proofs",
		Flags: globalFlags,
		Commands: []*cli.Command{
			{
				Name:   "balance",
				Usage:  "Print the verified balance of an address",
				Flags:  []cli.Flag{addressFlag, tokenFlag},
				Action: runBalance,
			},
			{
				Name:   "storage",
				Usage:  "Print a verified storage slot of a contract",
				Flags:  []cli.Flag{addressFlag, positionFlag},
				Action: runStorage,
			},
			{
				Name:   "trusted-block",
				Usage:  "Print the latest block whose seal verifies against the proven validator set",
				Action: runTrustedBlock,
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API and keep the proof cache warm",
				Action: runServe,
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Fatal("%v", err)
	}
}

// node holds the wired adapters and services of one run.
type node struct {
	cfg      config.Config
	client   *rpc.Client
	storage  *sqlite.SQLiteStorage
	resolver *services.TrustedStateResolver
}

func newNode(c *cli.Context) (*node, error) {
	cfg, err := config.LoadConfig(func(key string) string {
		for i, v := range configVars {
			if v == key && c.IsSet(configFlags[i].Name) {
				return c.String(configFlags[i].Name)
			}
		}
		return os.Getenv(key)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	logger.Info("Loaded config: network=%s, proverUrl=%s, rpcUrl=%s, verifier=%s",
		cfg.Network, cfg.ProverUrl, cfg.RpcUrl, cfg.VerifierBinary)

	client, err := celo.Dial(c.Context, cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.RpcUrl, err)
	}

	verifier := plumo.NewVerifierAdapter(cfg.VerifierBinary)
	proofs, err := services.NewProofCache(
		prover.NewProverAdapter(cfg.ProverUrl, cfg.ProverTimeout),
		verifier,
		cfg.VerifyingKey,
		cfg.ProofCacheSize,
	)
	if err != nil {
		client.Close()
		return nil, err
	}

	n := &node{
		cfg:    cfg,
		client: client,
		resolver: &services.TrustedStateResolver{
			Chain:  celo.NewChainAdapter(client),
			Epochs: &services.EpochChainVerifier{Windows: proofs},
			Seals:  &services.SealVerifier{Signatures: verifier},
			State:  stateproof.NewStateProofAdapter(client),
		},
	}

	if cfg.DBPath != "" {
		storage, err := sqlite.NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			client.Close()
			return nil, err
		}
		n.storage = storage
		n.resolver.Storage = storage
		logger.Info("Recording verified values in %s", cfg.DBPath)
	}
	return n, nil
}

func (n *node) Close() {
	n.client.Close()
	if n.storage != nil {
		if err := n.storage.Close(); err != nil {
			logger.Warn("Failed to close database: %v", err)
		}
	}
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func runBalance(c *cli.Context) error {
	holder, err := parseAddress(c.String(addressFlag.Name))
	if err != nil {
		return err
	}
	var token *common.Address
	if c.IsSet(tokenFlag.Name) {
		t, err := parseAddress(c.String(tokenFlag.Name))
		if err != nil {
			return err
		}
		token = &t
	}

	n, err := newNode(c)
	if err != nil {
		return err
	}
	defer n.Close()

	verified, err := n.resolver.Balance(c.Context, holder, token)
	if err != nil {
		return err
	}
	printValue(verified, verified.Value.Dec())
	return nil
}

func runStorage(c *cli.Context) error {
	contract, err := parseAddress(c.String(addressFlag.Name))
	if err != nil {
		return err
	}
	position, err := domain.ParsePosition(c.String(positionFlag.Name))
	if err != nil {
		return err
	}

	n, err := newNode(c)
	if err != nil {
		return err
	}
	defer n.Close()

	verified, err := n.resolver.StorageAt(c.Context, contract, position)
	if err != nil {
		return err
	}
	printValue(verified, hexutil.Encode(common.LeftPadBytes(verified.Raw, 32)))
	return nil
}

func runTrustedBlock(c *cli.Context) error {
	n, err := newNode(c)
	if err != nil {
		return err
	}
	defer n.Close()

	trusted, err := n.resolver.TrustedBlock(c.Context)
	if err != nil {
		return err
	}
	fmt.Printf("number:  %d\nhash:    %s\nepoch:   %d\nround:   %d\nsigners: %d\n",
		trusted.Number, trusted.Hash, trusted.Epoch, new(big.Int).SetBytes(trusted.Round), trusted.Signers)
	return nil
}

func printValue(v *domain.VerifiedValue, value string) {
	fmt.Printf("%s\n", value)
	logger.Info("Verified at block %d (%s)", v.Block.Number, v.Block.Hash)
}

func runServe(c *cli.Context) error {
	n, err := newNode(c)
	if err != nil {
		return err
	}
	defer n.Close()

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	var wg sync.WaitGroup

	// Start the cache warmer in a goroutine
	logger.Info("Starting cache warmer every %s", n.cfg.WarmInterval)
	warmer := &services.CacheWarmer{
		Resolver:     n.resolver,
		PollInterval: n.cfg.WarmInterval,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		warmer.Run(ctx)
	}()

	var history api.HistoryReader
	if n.storage != nil {
		history = n.storage
	}
	server := api.NewServer(n.resolver, history)
	err = server.ListenAndServe(ctx, n.cfg.ListenAddr)
	cancel()

	// Wait for all services to stop
	wg.Wait()
	logger.Info("All services stopped. Shutting down.")
	return err
}

// handleShutdown listens for SIGINT/SIGTERM and cancels the context
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Received signal: %s. Initiating shutdown...", sig)
		cancel()
	}()
}
