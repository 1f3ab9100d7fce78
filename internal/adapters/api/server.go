package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dappnode/plumo-state-verifier/internal/application/domain"
	"github.com/dappnode/plumo-state-verifier/internal/logger"
)

// Resolver is the part of services.TrustedStateResolver the API serves.
type Resolver interface {
	TrustedBlock(ctx context.Context) (*domain.TrustedBlock, error)
	Balance(ctx context.Context, holder common.Address, token *common.Address) (*domain.VerifiedValue, error)
	StorageAt(ctx context.Context, contract common.Address, position *big.Int) (*domain.VerifiedValue, error)
}

// HistoryReader lists previously verified values. Optional.
type HistoryReader interface {
	VerifiedValues(ctx context.Context, address common.Address) ([]domain.VerifiedRecord, error)
}

type Server struct {
	Resolver Resolver
	History  HistoryReader
	router   *mux.Router
}

type TrustedBlockResponse struct {
	Number  uint64      `json:"number"`
	Hash    common.Hash `json:"hash"`
	Epoch   uint64      `json:"epoch"`
	Round   uint64      `json:"round"`
	Signers uint64      `json:"signers"`
}

type ValueResponse struct {
	Address     common.Address  `json:"address"`
	Token       *common.Address `json:"token,omitempty"`
	Position    string          `json:"position,omitempty"`
	BlockNumber uint64          `json:"blockNumber"`
	BlockHash   common.Hash     `json:"blockHash"`
	Value       string          `json:"value"`
	Raw         hexutil.Bytes   `json:"raw"`
}

type HistoryEntry struct {
	Token       *common.Address `json:"token,omitempty"`
	Slot        *common.Hash    `json:"slot,omitempty"`
	BlockNumber *uint64         `json:"blockNumber,omitempty"`
	BlockHash   common.Hash     `json:"blockHash"`
	Value       hexutil.Bytes   `json:"value"`
	VerifiedAt  time.Time       `json:"verifiedAt"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Stage string `json:"stage,omitempty"`
}

func NewServer(resolver Resolver, history HistoryReader) *Server {
	s := &Server{Resolver: resolver, History: history, router: mux.NewRouter()}
	s.router.HandleFunc("/v1/trusted-block", s.handleTrustedBlock).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/balance/{address}", s.handleBalance).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/storage/{address}", s.handleStorage).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/history/{address}", s.handleHistory).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler())
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleTrustedBlock(w http.ResponseWriter, r *http.Request) {
	trusted, err := s.Resolver.TrustedBlock(r.Context())
	if err != nil {
		writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TrustedBlockResponse{
		Number:  trusted.Number,
		Hash:    trusted.Hash,
		Epoch:   uint64(trusted.Epoch),
		Round:   new(big.Int).SetBytes(trusted.Round).Uint64(),
		Signers: trusted.Signers,
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	holder, ok := parseAddress(w, mux.Vars(r)["address"])
	if !ok {
		return
	}
	var token *common.Address
	if t := r.URL.Query().Get("token"); t != "" {
		addr, ok := parseAddress(w, t)
		if !ok {
			return
		}
		token = &addr
	}

	verified, err := s.Resolver.Balance(r.Context(), holder, token)
	if err != nil {
		writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, valueResponse(holder, token, "", verified))
}

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	contract, ok := parseAddress(w, mux.Vars(r)["address"])
	if !ok {
		return
	}
	posParam := r.URL.Query().Get("position")
	if posParam == "" {
		posParam = "0x0"
	}
	position, err := domain.ParsePosition(posParam)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	verified, err := s.Resolver.StorageAt(r.Context(), contract, position)
	if err != nil {
		writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, valueResponse(contract, nil, hexutil.EncodeBig(position), verified))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "history is disabled"})
		return
	}
	address, ok := parseAddress(w, mux.Vars(r)["address"])
	if !ok {
		return
	}
	records, err := s.History.VerifiedValues(r.Context(), address)
	if err != nil {
		logger.Error("Error reading history of %s: %v", address, err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to read history"})
		return
	}
	out := make([]HistoryEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, HistoryEntry{
			Token:       rec.Token,
			Slot:        rec.Slot,
			BlockNumber: rec.BlockNumber,
			BlockHash:   rec.BlockHash,
			Value:       rec.Value,
			VerifiedAt:  rec.VerifiedAt.UTC(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func valueResponse(address common.Address, token *common.Address, position string, v *domain.VerifiedValue) ValueResponse {
	return ValueResponse{
		Address:     address,
		Token:       token,
		Position:    position,
		BlockNumber: v.Block.Number,
		BlockHash:   v.Block.Hash,
		Value:       v.Value.Dec(),
		Raw:         v.Raw,
	}
}

func parseAddress(w http.ResponseWriter, s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid address %q", s)})
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

// writeResolveError reports the failure kind and stage; the detail stays in the logs.
func writeResolveError(w http.ResponseWriter, err error) {
	var re *domain.ResolveError
	if !errors.As(err, &re) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "resolution failed"})
		return
	}
	status := http.StatusBadGateway
	if re.Kind == domain.KindStateMissing {
		status = http.StatusNotFound
	}
	writeJSON(w, status, ErrorResponse{
		Error: fmt.Sprintf("resolution failed while %s", re.Stage),
		Kind:  string(re.Kind),
		Stage: string(re.Stage),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("Failed to write response: %v", err)
	}
}
