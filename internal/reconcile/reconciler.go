// Package reconcile masks remote-ledger indexing lag: after a settlement it
// polls the on-ledger balance with bounded retries and a numeric tolerance
// until it matches the expected value, or gives up and lets the caller
// proceed optimistically.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/candlerush/arcade/internal/chain"
	"github.com/candlerush/arcade/internal/domain"
	"github.com/shopspring/decimal"
)

// BalanceReconciler polls a chain.Reader.
type BalanceReconciler struct {
	reader chain.Reader
	logger *slog.Logger
}

// New builds a BalanceReconciler.
func New(reader chain.Reader, logger *slog.Logger) *BalanceReconciler {
	return &BalanceReconciler{reader: reader, logger: logger}
}

// Reconcile performs up to len(policy.Intervals) balance reads, sleeping the
// corresponding delay before each, and accepts the first reading within
// policy.Tolerance of expected.  If no attempt matches it returns the last
// observed value with matched=false; read failures count as attempts.
func (r *BalanceReconciler) Reconcile(
	ctx context.Context,
	address string,
	expected decimal.Decimal,
	policy domain.RetryPolicy,
) (bool, decimal.Decimal) {
	observed := decimal.Zero

	for i, delay := range policy.Intervals {
		if !sleep(ctx, delay) {
			return false, observed
		}

		bal, err := r.reader.ViewBalance(ctx, address)
		if err != nil {
			r.logger.Warn("balance read failed during reconciliation",
				"attempt", i+1, "max", policy.MaxAttempts(), "err", err)
			continue
		}
		observed = bal

		if bal.Sub(expected).Abs().LessThanOrEqual(policy.Tolerance) {
			r.logger.Info("balance reconciled",
				"attempt", i+1, "expected", expected, "observed", bal)
			return true, bal
		}
		r.logger.Debug("balance not yet reconciled",
			"attempt", i+1, "expected", expected, "observed", bal)
	}

	return false, observed
}

// sleep waits d unless the context is cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
