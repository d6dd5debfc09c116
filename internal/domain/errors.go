package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Transaction failure taxonomy.  Every money-moving failure the gateway can
// surface is one of these; the controller's recovery table is keyed on them.
var (
	// ErrSignatureRejected is returned when the human declines to sign a
	// stake or settlement payload in the wallet prompt.
	ErrSignatureRejected = errors.New("signature request rejected by user")

	// ErrInsufficientFunds is returned when the wallet balance cannot cover
	// the stake amount plus network fees.
	ErrInsufficientFunds = errors.New("insufficient wallet balance for stake")

	// ErrTreasuryInsufficient is returned on settlement when the remote
	// payout pool cannot cover a winning round.  Operational/liquidity
	// condition, not a logic fault: the round is still cleared, with the
	// payout flagged as deferred.
	ErrTreasuryInsufficient = errors.New("treasury cannot cover payout")

	// ErrNetwork is returned on transport failures and timeouts during
	// submission or balance reads.  Retriable.
	ErrNetwork = errors.New("network error talking to ledger")

	// ErrFatalSubmit is returned for unexpected, unclassified signer failures.
	ErrFatalSubmit = errors.New("unclassified transaction failure")
)

// Local orchestration guards.
var (
	// ErrMissingStakeRef is returned when settlement is invoked without a
	// recorded seed or stake transaction.  Fatal-local: never submitted.
	ErrMissingStakeRef = errors.New("settlement requested without seed or stake reference")

	// ErrDuplicateSettlement is returned by the single-flight guard when a
	// settlement is already in flight for the current round.
	ErrDuplicateSettlement = errors.New("settlement already in flight")

	// ErrRoundNotActive is returned when a trade is attempted outside an
	// active round.
	ErrRoundNotActive = errors.New("no active round")

	// ErrRoundNotEnded is returned when settlement confirmation arrives
	// before the round-end signal.
	ErrRoundNotEnded = errors.New("round has not ended yet")

	// ErrTradeAlreadyOpen is returned when a position is opened while another
	// is still open.
	ErrTradeAlreadyOpen = errors.New("a trade is already open")

	// ErrNoOpenTrade is returned when a close is attempted with no open position.
	ErrNoOpenTrade = errors.New("no open trade to close")

	// ErrInvalidPrice is returned when a trade is attempted at a zero or
	// unavailable price.
	ErrInvalidPrice = errors.New("invalid or unavailable price")

	// ErrWalletDisconnected is returned when an operation requires a
	// connected wallet session.
	ErrWalletDisconnected = errors.New("wallet is not connected")

	// ErrBelowMinimumBalance is returned when the wallet balance is under the
	// configured minimum to start a round.
	ErrBelowMinimumBalance = errors.New("wallet balance below round minimum")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// IsRetriable returns true for failures that may succeed on resubmission with
// backoff.  Only network-level failures qualify; a human rejection or a funds
// shortage will not heal by retrying the same attempt.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// IsRejectionEquivalent returns true for failures whose recovery is "drop the
// current seed and return to ready": an explicit rejection, an exhausted
// network retry, or an unclassified signer fault.
func IsRejectionEquivalent(err error) bool {
	rejectionErrors := []error{
		ErrSignatureRejected,
		ErrNetwork,
		ErrFatalSubmit,
	}
	for _, target := range rejectionErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsRoundClearing returns true for settlement failures after which the
// logical round is still over and must be cleared.
func IsRoundClearing(err error) bool {
	return errors.Is(err, ErrTreasuryInsufficient)
}

// IsLocalFault returns true for guard failures that must never reach the
// signer at all.
func IsLocalFault(err error) bool {
	localErrors := []error{
		ErrMissingStakeRef,
		ErrDuplicateSettlement,
		ErrRoundNotActive,
		ErrRoundNotEnded,
		ErrTradeAlreadyOpen,
		ErrNoOpenTrade,
	}
	for _, target := range localErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
