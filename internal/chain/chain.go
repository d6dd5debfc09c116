// Package chain defines the boundary to the external ledger collaborators:
// the wallet/passkey signer that submits money-moving transactions, and the
// read-only ledger view used for balance reconciliation.  All wire-level
// detail lives behind these interfaces.
package chain

import (
	"context"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
)

// PayloadKind discriminates the two money-moving operations.
type PayloadKind string

const (
	PayloadStake  PayloadKind = "stake"
	PayloadSettle PayloadKind = "settle"
)

// Payload is the signing request handed to the external wallet collaborator.
type Payload struct {
	Kind      PayloadKind     `json:"kind"`
	Player    string          `json:"player"` // base58 wallet address
	Seed      int64           `json:"seed"`
	StakeTxID string          `json:"stake_tx_id,omitempty"` // settle only
	Amount    decimal.Decimal `json:"amount"`
	Pnl       decimal.Decimal `json:"pnl,omitempty"` // settle only
}

// SubmitResult carries the outcome of a successful submission.
type SubmitResult struct {
	TxID         string          `json:"tx_id"`
	PayoutAmount decimal.Decimal `json:"payout_amount"` // settle only
}

// Signer is the external wallet/passkey collaborator.  Implementations must
// classify failures into the domain error taxonomy.
type Signer interface {
	SignAndSubmit(ctx context.Context, p Payload) (SubmitResult, error)
}

// Reader is the external ledger-read collaborator.
type Reader interface {
	ViewBalance(ctx context.Context, address string) (decimal.Decimal, error)
}

// ValidateAddress checks that address is plausible base58 of a 32-byte key.
func ValidateAddress(address string) error {
	raw, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("chain.ValidateAddress: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("chain.ValidateAddress: want 32 bytes, got %d", len(raw))
	}
	return nil
}
