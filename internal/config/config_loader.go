package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	defaultVerifierBinary = "plumo-verifier"
	defaultListenAddr     = ":8080"
	defaultProofCacheSize = 1024
	defaultWarmInterval   = 1 * time.Minute
	defaultProverTimeout  = 5 * time.Minute
)

type Config struct {
	Network        string
	ProverUrl      string
	RpcUrl         string
	VerifierBinary string
	VerifyingKey   []byte
	DBPath         string
	ListenAddr     string
	ProofCacheSize int
	WarmInterval   time.Duration
	ProverTimeout  time.Duration
	LogLevel       string
}

// LoadConfig builds the configuration from variables looked up with getenv, usually
// os.Getenv or a lookup that lets command-line flags take precedence.
func LoadConfig(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	network := strings.ToLower(getenv("NETWORK"))
	if network == "" {
		network = "mainnet" // default
	}

	var proverUrl, rpcUrl string
	switch network {
	case "mainnet":
		proverUrl = "https://plumo-prover.kobi.one"
		rpcUrl = "https://plumo-prover-rpc.kobi.one"
	case "alfajores":
		// No public prover serves alfajores; PROVER_URL must be set.
		rpcUrl = "https://alfajores-forno.celo-testnet.org"
	default:
		return Config{}, fmt.Errorf("unknown network: %s", network)
	}

	// Allow override via environment variables
	if env := getenv("PROVER_URL"); env != "" {
		proverUrl = env
	}
	if env := getenv("RPC_URL"); env != "" {
		rpcUrl = env
	}
	if proverUrl == "" {
		return Config{}, fmt.Errorf("PROVER_URL is required for network %s", network)
	}

	verifierBinary := defaultVerifierBinary
	if env := getenv("PLUMO_VERIFIER_BIN"); env != "" {
		verifierBinary = env
	}
	listenAddr := defaultListenAddr
	if env := getenv("LISTEN_ADDR"); env != "" {
		listenAddr = env
	}

	vkHex := mainnetVerifyingKey
	if env := getenv("PLUMO_VERIFYING_KEY"); env != "" {
		vkHex = env
	}
	vk, err := ParseVerifyingKey(vkHex)
	if err != nil {
		return Config{}, err
	}

	cacheSize, err := parseSize(getenv("PROOF_CACHE_SIZE"), defaultProofCacheSize)
	if err != nil {
		return Config{}, fmt.Errorf("PROOF_CACHE_SIZE: %w", err)
	}
	warmInterval, err := parseDuration(getenv("WARM_INTERVAL"), defaultWarmInterval)
	if err != nil {
		return Config{}, fmt.Errorf("WARM_INTERVAL: %w", err)
	}
	proverTimeout, err := parseDuration(getenv("PROVER_TIMEOUT"), defaultProverTimeout)
	if err != nil {
		return Config{}, fmt.Errorf("PROVER_TIMEOUT: %w", err)
	}

	logLevel := strings.ToUpper(getenv("LOG_LEVEL"))
	if logLevel == "" {
		logLevel = "INFO"
	}

	return Config{
		Network:        network,
		ProverUrl:      strings.TrimRight(proverUrl, "/"),
		RpcUrl:         rpcUrl,
		VerifierBinary: verifierBinary,
		VerifyingKey:   vk,
		DBPath:         getenv("DB_PATH"),
		ListenAddr:     listenAddr,
		ProofCacheSize: cacheSize,
		WarmInterval:   warmInterval,
		ProverTimeout:  proverTimeout,
		LogLevel:       logLevel,
	}, nil
}

// ParseVerifyingKey decodes a hex verifying key, with or without 0x prefix.
func ParseVerifyingKey(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, fmt.Errorf("verifying key is empty")
	}
	key, err := hexutil.Decode("0x" + s)
	if err != nil {
		return nil, fmt.Errorf("verifying key is not valid hex: %w", err)
	}
	return key, nil
}

func parseSize(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}
