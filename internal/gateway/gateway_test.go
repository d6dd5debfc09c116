package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/candlerush/arcade/internal/chain"
	"github.com/candlerush/arcade/internal/domain"
	"github.com/shopspring/decimal"
)

const testPlayer = "4Nd1mYQFbC3sVUbjHxN1xpKxgBvVyGHwEjRPeKzhXq9o"

// scriptedSigner fails with errs[i] on call i and succeeds once the script
// is exhausted.
type scriptedSigner struct {
	errs     []error
	calls    int
	payloads []chain.Payload
}

func (s *scriptedSigner) SignAndSubmit(ctx context.Context, p chain.Payload) (chain.SubmitResult, error) {
	i := s.calls
	s.calls++
	s.payloads = append(s.payloads, p)
	if i < len(s.errs) && s.errs[i] != nil {
		return chain.SubmitResult{}, s.errs[i]
	}
	return chain.SubmitResult{
		TxID:         fmt.Sprintf("tx-%d", i),
		PayoutAmount: decimal.RequireFromString("0.08"),
	}, nil
}

type recordingStore struct {
	stakeTxs  map[int64]string
	settleTxs map[int64]string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		stakeTxs:  make(map[int64]string),
		settleTxs: make(map[int64]string),
	}
}

func (s *recordingStore) RecordStakeTx(ctx context.Context, seed int64, txID string) error {
	s.stakeTxs[seed] = txID
	return nil
}

func (s *recordingStore) RecordSettleTx(ctx context.Context, seed int64, txID string, payout decimal.Decimal) error {
	s.settleTxs[seed] = txID
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func retrySchedule(n int) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = time.Millisecond
	}
	return out
}

// TestStakeRetriesNetworkErrors: transient network failures are retried on
// the schedule and the eventual tx id is persisted.
func TestStakeRetriesNetworkErrors(t *testing.T) {
	signer := &scriptedSigner{errs: []error{
		fmt.Errorf("%w: conn reset", domain.ErrNetwork),
		fmt.Errorf("%w: timeout", domain.ErrNetwork),
	}}
	store := newRecordingStore()
	g := New(signer, store, retrySchedule(3), testLogger())
	g.SetPlayer(testPlayer)

	txID, err := g.Stake(context.Background(), 7, decimal.RequireFromString("0.05"))
	if err != nil {
		t.Fatalf("Stake: %v", err)
	}
	if signer.calls != 3 {
		t.Errorf("signer calls = %d, want 3", signer.calls)
	}
	if store.stakeTxs[7] != txID {
		t.Errorf("stored stake tx = %q, want %q", store.stakeTxs[7], txID)
	}
	if p := signer.payloads[0]; p.Kind != chain.PayloadStake || p.Seed != 7 || p.Player != testPlayer {
		t.Errorf("payload = %+v, want stake for seed 7 / %s", p, testPlayer)
	}
}

// TestStakeDoesNotRetryRejection: a user rejection surfaces immediately with
// its classification intact.
func TestStakeDoesNotRetryRejection(t *testing.T) {
	signer := &scriptedSigner{errs: []error{
		fmt.Errorf("%w: user declined", domain.ErrSignatureRejected),
	}}
	g := New(signer, nil, retrySchedule(3), testLogger())
	g.SetPlayer(testPlayer)

	_, err := g.Stake(context.Background(), 8, decimal.RequireFromString("0.05"))
	if !errors.Is(err, domain.ErrSignatureRejected) {
		t.Fatalf("err = %v, want ErrSignatureRejected", err)
	}
	if signer.calls != 1 {
		t.Errorf("signer calls = %d, want 1 (no retry on rejection)", signer.calls)
	}
}

// TestStakeExhaustedRetriesSurfaceNetworkError.
func TestStakeExhaustedRetriesSurfaceNetworkError(t *testing.T) {
	netErr := fmt.Errorf("%w: unreachable", domain.ErrNetwork)
	signer := &scriptedSigner{errs: []error{netErr, netErr, netErr}}
	g := New(signer, nil, retrySchedule(2), testLogger())
	g.SetPlayer(testPlayer)

	_, err := g.Stake(context.Background(), 9, decimal.RequireFromString("0.05"))
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork after exhaustion", err)
	}
	if signer.calls != 3 {
		t.Errorf("signer calls = %d, want 3 (1 + 2 retries)", signer.calls)
	}
}

// TestStakeRequiresConnectedWallet.
func TestStakeRequiresConnectedWallet(t *testing.T) {
	g := New(&scriptedSigner{}, nil, nil, testLogger())

	_, err := g.Stake(context.Background(), 1, decimal.RequireFromString("0.05"))
	if !errors.Is(err, domain.ErrWalletDisconnected) {
		t.Fatalf("err = %v, want ErrWalletDisconnected", err)
	}
}

// TestSettleRequiresStakeReference: a settlement without a stake tx id is a
// local fault and never reaches the signer.
func TestSettleRequiresStakeReference(t *testing.T) {
	signer := &scriptedSigner{}
	g := New(signer, nil, nil, testLogger())
	g.SetPlayer(testPlayer)

	_, err := g.Settle(context.Background(), domain.SettlementRequest{Seed: 5})
	if !errors.Is(err, domain.ErrMissingStakeRef) {
		t.Fatalf("err = %v, want ErrMissingStakeRef", err)
	}
	if signer.calls != 0 {
		t.Errorf("signer calls = %d, want 0", signer.calls)
	}
}

// TestSettleCarriesStakeReference: the settle payload references the prior
// stake and the confirmed payout is returned and persisted.
func TestSettleCarriesStakeReference(t *testing.T) {
	signer := &scriptedSigner{}
	store := newRecordingStore()
	g := New(signer, store, nil, testLogger())
	g.SetPlayer(testPlayer)

	req := domain.SettlementRequest{
		Seed:        5,
		StakeTxID:   "stake-tx-5",
		StakeAmount: decimal.RequireFromString("0.05"),
		Pnl:         decimal.RequireFromString("0.0196"),
	}
	res, err := g.Settle(context.Background(), req)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}

	p := signer.payloads[0]
	if p.Kind != chain.PayloadSettle || p.StakeTxID != "stake-tx-5" {
		t.Errorf("payload = %+v, want settle referencing stake-tx-5", p)
	}
	if !res.PayoutAmount.Equal(decimal.RequireFromString("0.08")) {
		t.Errorf("payout = %s, want 0.08", res.PayoutAmount)
	}
	if store.settleTxs[5] != res.TxID {
		t.Errorf("stored settle tx = %q, want %q", store.settleTxs[5], res.TxID)
	}
}

// TestSettlePassesThroughClassifiedErrors: treasury and rejection errors from
// the chain layer surface unchanged for the controller's recovery table.
func TestSettlePassesThroughClassifiedErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"treasury", domain.ErrTreasuryInsufficient},
		{"rejected", domain.ErrSignatureRejected},
		{"fatal", domain.ErrFatalSubmit},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			signer := &scriptedSigner{errs: []error{fmt.Errorf("%w: nope", tc.err)}}
			g := New(signer, nil, retrySchedule(2), testLogger())
			g.SetPlayer(testPlayer)

			_, err := g.Settle(context.Background(), domain.SettlementRequest{
				Seed: 6, StakeTxID: "stake-tx-6",
			})
			if !errors.Is(err, tc.err) {
				t.Errorf("err = %v, want %v", err, tc.err)
			}
			if signer.calls != 1 {
				t.Errorf("signer calls = %d, want 1", signer.calls)
			}
		})
	}
}
