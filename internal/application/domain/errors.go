package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies why a resolution failed.
type ErrorKind string

const (
	KindNetworkFailure     ErrorKind = "network-failure"
	KindProofRejected      ErrorKind = "proof-rejected"
	KindSealInvalid        ErrorKind = "seal-invalid"
	KindStateMissing       ErrorKind = "state-missing"
	KindMerkleProofInvalid ErrorKind = "merkle-proof-invalid"
	KindHeaderMismatch     ErrorKind = "header-mismatch"
)

// Sentinels for each kind. Adapters wrap these so services can classify failures.
var (
	ErrNetworkFailure     = errors.New("network failure")
	ErrProofRejected      = errors.New("proof rejected")
	ErrSealInvalid        = errors.New("seal invalid")
	ErrStateMissing       = errors.New("state missing")
	ErrMerkleProofInvalid = errors.New("merkle proof invalid")
	ErrHeaderMismatch     = errors.New("header mismatch")
)

var (
	ErrEpochBeforeMin   = errors.New("epoch before first provable epoch")
	ErrValidatorLinkage = errors.New("validator set does not link to previous window")
	ErrAccountMissing   = errors.New("account not present in state")
)

var kindSentinels = map[ErrorKind]error{
	KindNetworkFailure:     ErrNetworkFailure,
	KindProofRejected:      ErrProofRejected,
	KindSealInvalid:        ErrSealInvalid,
	KindStateMissing:       ErrStateMissing,
	KindMerkleProofInvalid: ErrMerkleProofInvalid,
	KindHeaderMismatch:     ErrHeaderMismatch,
}

// Err returns the sentinel error of the kind.
func (k ErrorKind) Err() error {
	return kindSentinels[k]
}

// Stage is a step of a resolution.
type Stage string

const (
	StageFetchingBlock            Stage = "fetching-block"
	StageEstablishingValidatorSet Stage = "establishing-validator-set"
	StageVerifyingSeal            Stage = "verifying-seal"
	StageFetchingStateProof       Stage = "fetching-state-proof"
	StageDecodingValue            Stage = "decoding-value"
)

// ResolveError is returned by every resolver operation. The kind and stage survive to the
// caller; the wrapped error carries the detail.
type ResolveError struct {
	Kind  ErrorKind
	Stage Stage
	Err   error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *ResolveError) Is(target error) bool {
	return target == e.Kind.Err()
}

// KindOf returns the kind wrapped in err, or fallback when err carries none. A cancelled or
// expired context is a network failure.
func KindOf(err error, fallback ErrorKind) ErrorKind {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindNetworkFailure
	}
	return fallback
}

// NewResolveError classifies err and tags it with stage. An error that already is a
// ResolveError is returned unchanged.
func NewResolveError(stage Stage, fallback ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	var re *ResolveError
	if errors.As(err, &re) {
		return err
	}
	return &ResolveError{Kind: KindOf(err, fallback), Stage: stage, Err: err}
}
