package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/dappnode/plumo-state-verifier/internal/application/domain"
	"github.com/dappnode/plumo-state-verifier/internal/application/ports"
)

// ProverAdapter implements ports.ProverAdapter against the Plumo proving service.
type ProverAdapter struct {
	BaseURL string
	client  *http.Client
}

type proofRequest struct {
	StartEpoch uint64 `json:"start_epoch"`
	EndEpoch   uint64 `json:"end_epoch"`
}

// ProofGetResponse models the expected JSON from /proof_get
type ProofGetResponse struct {
	Response struct {
		Proof           string `json:"proof"`
		FirstEpoch      uint64 `json:"first_epoch"`
		LastEpoch       uint64 `json:"last_epoch"`
		FirstEpochIndex uint64 `json:"first_epoch_index"`
		LastEpochIndex  uint64 `json:"last_epoch_index"`
	} `json:"response"`
}

func NewProverAdapter(baseURL string, timeout time.Duration) ports.ProverAdapter {
	return &ProverAdapter{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// GetProof posts the window to /proof_get and returns the proof covering it.
func (p *ProverAdapter) GetProof(ctx context.Context, window domain.EpochWindow) (domain.ProofResponse, error) {
	url := fmt.Sprintf("%s/proof_get", p.BaseURL)
	body, err := json.Marshal(proofRequest{StartEpoch: uint64(window.Start), EndEpoch: uint64(window.End)})
	if err != nil {
		return domain.ProofResponse{}, fmt.Errorf("failed to marshal proof request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return domain.ProofResponse{}, fmt.Errorf("creating prover request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.ProofResponse{}, errors.Wrapf(domain.ErrNetworkFailure, "sending prover request for epochs %s: %v", window, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.ProofResponse{}, errors.Wrapf(domain.ErrNetworkFailure, "unexpected prover status %d: %s", resp.StatusCode, string(msg))
	}

	var proofResp ProofGetResponse
	if err := json.NewDecoder(resp.Body).Decode(&proofResp); err != nil {
		return domain.ProofResponse{}, errors.Wrapf(domain.ErrNetworkFailure, "error decoding prover response: %v", err)
	}
	if proofResp.Response.Proof == "" {
		return domain.ProofResponse{}, errors.Wrapf(domain.ErrProofRejected, "prover returned no proof for epochs %s", window)
	}

	return domain.ProofResponse{
		Proof:           common.FromHex(proofResp.Response.Proof),
		FirstEpoch:      domain.Epoch(proofResp.Response.FirstEpoch),
		LastEpoch:       domain.Epoch(proofResp.Response.LastEpoch),
		FirstEpochIndex: domain.Epoch(proofResp.Response.FirstEpochIndex),
		LastEpochIndex:  domain.Epoch(proofResp.Response.LastEpochIndex),
	}, nil
}
