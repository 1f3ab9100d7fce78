package plumo

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	"github.com/dappnode/plumo-state-verifier/internal/application/domain"
	"github.com/dappnode/plumo-state-verifier/internal/application/ports"
)

// VerifierAdapter implements ports.ChainProofVerifier and ports.SealSignatureVerifier by
// running the Plumo verifier binary. Requests go to stdin as JSON, hex without 0x prefix.
// A non-zero exit status is a rejection.
type VerifierAdapter struct {
	Binary string
	Args   []string // prepended to the subcommand
}

type chainRequest struct {
	Proofs []string  `json:"proofs"`
	Epochs [2]uint64 `json:"epochs"`
	VK     string    `json:"vk"`
}

type blockRequest struct {
	Bitmap     string                 `json:"bitmap"`
	Seal       string                 `json:"seal"`
	Validators domain.EpochValidators `json:"validators"`
	Message    string                 `json:"message"`
}

var (
	_ ports.ChainProofVerifier    = (*VerifierAdapter)(nil)
	_ ports.SealSignatureVerifier = (*VerifierAdapter)(nil)
)

func NewVerifierAdapter(binary string, args ...string) *VerifierAdapter {
	return &VerifierAdapter{Binary: binary, Args: args}
}

// VerifyChain verifies an epoch proof bundle and returns the validator sets it proves.
func (v *VerifierAdapter) VerifyChain(ctx context.Context, bundle domain.ProofBundle) (domain.ValidatorSet, error) {
	req := chainRequest{
		Proofs: make([]string, 0, len(bundle.Proofs)),
		Epochs: [2]uint64{uint64(bundle.Epochs[0]), uint64(bundle.Epochs[1])},
		VK:     hex.EncodeToString(bundle.VerifyingKey),
	}
	for _, p := range bundle.Proofs {
		req.Proofs = append(req.Proofs, hex.EncodeToString(p))
	}

	out, err := v.run(ctx, "verify-chain", req, domain.ErrProofRejected)
	if err != nil {
		return domain.ValidatorSet{}, err
	}
	var set domain.ValidatorSet
	if err := json.Unmarshal(out, &set); err != nil {
		return domain.ValidatorSet{}, errors.Wrapf(domain.ErrProofRejected, "decoding verifier output: %v", err)
	}
	return set, nil
}

// VerifySeal verifies an aggregated seal over message by the validators in req.
func (v *VerifierAdapter) VerifySeal(ctx context.Context, req ports.SealRequest) error {
	_, err := v.run(ctx, "verify-block", blockRequest{
		Bitmap:     hex.EncodeToString(req.Bitmap),
		Seal:       hex.EncodeToString(req.Signature),
		Validators: req.Validators,
		Message:    hex.EncodeToString(req.Message),
	}, domain.ErrSealInvalid)
	return err
}

func (v *VerifierAdapter) run(ctx context.Context, subcommand string, input interface{}, rejected error) ([]byte, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", subcommand, err)
	}

	args := append(append([]string{}, v.Args...), subcommand)
	cmd := exec.CommandContext(ctx, v.Binary, args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, errors.Wrapf(rejected, "%s exited with %d: %s", subcommand, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("running %s %s: %w", v.Binary, subcommand, err)
	}
	return stdout.Bytes(), nil
}
