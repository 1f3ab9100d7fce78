package plumo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dappnode/plumo-state-verifier/internal/application/domain"
	"github.com/dappnode/plumo-state-verifier/internal/application/ports"
)

// helperVerifier runs this test binary as the verifier, in the given mode.
func helperVerifier(t *testing.T, mode string) *VerifierAdapter {
	t.Helper()
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	t.Setenv("HELPER_MODE", mode)
	return NewVerifierAdapter(os.Args[0], "-test.run=^TestHelperProcess$", "--")
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) != 2 {
		fmt.Fprintf(os.Stderr, "unexpected args %v\n", os.Args)
		os.Exit(2)
	}
	os.Exit(fakeVerifier(args[1], os.Getenv("HELPER_MODE")))
}

func fakeVerifier(subcommand, mode string) int {
	switch mode {
	case "reject":
		fmt.Fprintln(os.Stderr, "verification failed")
		return 1
	case "hang":
		time.Sleep(time.Minute)
		return 0
	case "garbage":
		fmt.Print("not json")
		return 0
	}

	switch subcommand {
	case "verify-chain":
		var req chainRequest
		if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil || strings.HasPrefix(req.VK, "0x") || len(req.Proofs) != 1 {
			return 3
		}
		out, _ := json.Marshal(domain.ValidatorSet{
			First: domain.EpochValidators{Index: req.Epochs[0], MaxNonSigners: 1, Validators: []hexutil.Bytes{{0x01}}},
			Last:  domain.EpochValidators{Index: req.Epochs[1], MaxNonSigners: 1, Validators: []hexutil.Bytes{{0x02}}},
		})
		os.Stdout.Write(out)
		return 0
	case "verify-block":
		var req blockRequest
		if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
			return 3
		}
		if req.Message != "aa02" || req.Seal != "beef" || len(req.Validators.Validators) != 1 {
			fmt.Fprintln(os.Stderr, "bad seal")
			return 1
		}
		return 0
	}
	return 2
}

func testBundle() domain.ProofBundle {
	return domain.ProofBundle{
		Proofs:       [][]byte{{0xca, 0xfe}},
		Epochs:       [2]domain.Epoch{393, 536},
		VerifyingKey: []byte{0x0f, 0xee},
	}
}

func TestVerifyChain(t *testing.T) {
	set, err := helperVerifier(t, "ok").VerifyChain(context.Background(), testBundle())
	require.NoError(t, err)
	assert.Equal(t, uint64(393), set.First.Index)
	assert.Equal(t, uint64(536), set.Last.Index)
	assert.Equal(t, []hexutil.Bytes{{0x02}}, set.Last.Validators)
}

func TestVerifyChainRejected(t *testing.T) {
	_, err := helperVerifier(t, "reject").VerifyChain(context.Background(), testBundle())
	require.ErrorIs(t, err, domain.ErrProofRejected)
	assert.Contains(t, err.Error(), "verification failed")
}

func TestVerifyChainUndecodableOutput(t *testing.T) {
	_, err := helperVerifier(t, "garbage").VerifyChain(context.Background(), testBundle())
	assert.ErrorIs(t, err, domain.ErrProofRejected)
}

func TestVerifySeal(t *testing.T) {
	v := helperVerifier(t, "ok")
	req := ports.SealRequest{
		Bitmap:     []byte{0x07},
		Signature:  []byte{0xbe, 0xef},
		Validators: domain.EpochValidators{Validators: []hexutil.Bytes{{0x01}}},
		Message:    []byte{0xaa, 0x02},
	}
	require.NoError(t, v.VerifySeal(context.Background(), req))

	req.Signature = []byte{0x00}
	assert.ErrorIs(t, v.VerifySeal(context.Background(), req), domain.ErrSealInvalid)
}

func TestVerifierCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := helperVerifier(t, "hang").VerifyChain(ctx, testBundle())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, domain.ErrProofRejected)
}

func TestVerifierMissingBinary(t *testing.T) {
	v := NewVerifierAdapter("/nonexistent/plumo-verifier")

	_, err := v.VerifyChain(context.Background(), testBundle())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrProofRejected)
}
