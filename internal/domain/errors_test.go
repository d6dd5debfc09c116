package domain_test

import (
	"fmt"
	"testing"

	"github.com/candlerush/arcade/internal/domain"
)

// TestFailureTaxonomyPredicates pins the classification each orchestrator
// recovery path switches on, including wrapped errors.
func TestFailureTaxonomyPredicates(t *testing.T) {
	wrap := func(err error) error { return fmt.Errorf("gateway.Stake seed 7: %w", err) }

	tests := []struct {
		name                string
		err                 error
		retriable           bool
		rejectionEquivalent bool
		roundClearing       bool
	}{
		{"network", wrap(domain.ErrNetwork), true, true, false},
		{"rejected", wrap(domain.ErrSignatureRejected), false, true, false},
		{"fatal submit", wrap(domain.ErrFatalSubmit), false, true, false},
		{"insufficient funds", wrap(domain.ErrInsufficientFunds), false, false, false},
		{"treasury", wrap(domain.ErrTreasuryInsufficient), false, false, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := domain.IsRetriable(tc.err); got != tc.retriable {
				t.Errorf("IsRetriable = %v, want %v", got, tc.retriable)
			}
			if got := domain.IsRejectionEquivalent(tc.err); got != tc.rejectionEquivalent {
				t.Errorf("IsRejectionEquivalent = %v, want %v", got, tc.rejectionEquivalent)
			}
			if got := domain.IsRoundClearing(tc.err); got != tc.roundClearing {
				t.Errorf("IsRoundClearing = %v, want %v", got, tc.roundClearing)
			}
		})
	}
}
