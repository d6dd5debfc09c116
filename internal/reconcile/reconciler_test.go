package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/candlerush/arcade/internal/domain"
	"github.com/shopspring/decimal"
)

// seqReader replays a fixed sequence of balance readings, one per call.
type seqReader struct {
	balances []string
	errs     []error
	calls    int
}

func (r *seqReader) ViewBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	i := r.calls
	r.calls++
	if i < len(r.errs) && r.errs[i] != nil {
		return decimal.Zero, r.errs[i]
	}
	if i >= len(r.balances) {
		i = len(r.balances) - 1
	}
	return decimal.RequireFromString(r.balances[i]), nil
}

func testPolicy(attempts int) domain.RetryPolicy {
	intervals := make([]time.Duration, attempts)
	for i := range intervals {
		intervals[i] = time.Millisecond
	}
	return domain.RetryPolicy{
		Intervals: intervals,
		Tolerance: decimal.RequireFromString("0.001"),
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestReconcileMatchesWithinTolerance: the remote ledger lags for two reads,
// then lands within tolerance on the third.
func TestReconcileMatchesWithinTolerance(t *testing.T) {
	reader := &seqReader{balances: []string{"99.0", "99.99", "100.0005"}}
	r := New(reader, testLogger())

	matched, observed := r.Reconcile(context.Background(), "addr",
		decimal.RequireFromString("100"), testPolicy(5))

	if !matched {
		t.Fatal("expected a match on the third reading")
	}
	if !observed.Equal(decimal.RequireFromString("100.0005")) {
		t.Errorf("observed = %s, want 100.0005", observed)
	}
	if reader.calls != 3 {
		t.Errorf("reads = %d, want 3 (stop on first match)", reader.calls)
	}
}

// TestReconcileExhaustsAndReportsLast: no reading ever matches; the caller
// gets matched=false plus the last observed value for the optimistic path.
func TestReconcileExhaustsAndReportsLast(t *testing.T) {
	reader := &seqReader{balances: []string{"90", "91", "92"}}
	r := New(reader, testLogger())

	matched, observed := r.Reconcile(context.Background(), "addr",
		decimal.RequireFromString("100"), testPolicy(3))

	if matched {
		t.Fatal("expected no match")
	}
	if !observed.Equal(decimal.RequireFromString("92")) {
		t.Errorf("observed = %s, want 92 (last reading)", observed)
	}
}

// TestReconcileReadFailuresCountAsAttempts: errors consume attempts rather
// than extending the schedule.
func TestReconcileReadFailuresCountAsAttempts(t *testing.T) {
	boom := errors.New("rpc down")
	reader := &seqReader{
		balances: []string{"0", "0", "100"},
		errs:     []error{boom, boom, nil},
	}
	r := New(reader, testLogger())

	matched, observed := r.Reconcile(context.Background(), "addr",
		decimal.RequireFromString("100"), testPolicy(3))

	if !matched {
		t.Fatal("third attempt should match")
	}
	if !observed.Equal(decimal.RequireFromString("100")) {
		t.Errorf("observed = %s, want 100", observed)
	}
	if reader.calls != 3 {
		t.Errorf("reads = %d, want 3", reader.calls)
	}
}

// TestReconcileCancelledContext stops polling immediately.
func TestReconcileCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := &seqReader{balances: []string{"100"}}
	r := New(reader, testLogger())

	matched, _ := r.Reconcile(ctx, "addr",
		decimal.RequireFromString("100"), testPolicy(3))

	if matched {
		t.Error("cancelled context should not match")
	}
	if reader.calls != 0 {
		t.Errorf("reads = %d, want 0 after cancellation", reader.calls)
	}
}
