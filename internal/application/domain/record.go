package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// VerifiedRecord is one row of the verified value history.
type VerifiedRecord struct {
	Address common.Address
	// Token is nil for native balances.
	Token *common.Address
	// Slot is nil for account proofs.
	Slot *common.Hash
	// BlockNumber is nil when the trusted block row is gone.
	BlockNumber *uint64
	BlockHash   common.Hash
	Value       []byte
	VerifiedAt  time.Time
}
