package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/candlerush/arcade/internal/domain"
	"github.com/shopspring/decimal"
)

// testPlayer is 32 zero bytes in base58, always a valid address.
const testPlayer = "11111111111111111111111111111111"

// rpcServer returns an httptest server answering every call with the given
// result or error object.
func rpcServer(t *testing.T, result interface{}, rpcErr map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64        `json:"id"`
			Method string        `json:"method"`
			Params []interface{} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestSignAndSubmitSuccess(t *testing.T) {
	srv := rpcServer(t, map[string]interface{}{
		"tx_id":         "abc123",
		"payout_amount": "0.08",
	}, nil)
	defer srv.Close()

	c := NewRPCClient(srv.URL)
	res, err := c.SignAndSubmit(context.Background(), Payload{
		Kind:   PayloadStake,
		Player: testPlayer,
		Seed:   7,
		Amount: decimal.RequireFromString("0.05"),
	})
	if err != nil {
		t.Fatalf("SignAndSubmit: %v", err)
	}
	if res.TxID != "abc123" {
		t.Errorf("TxID = %q, want abc123", res.TxID)
	}
	if !res.PayoutAmount.Equal(decimal.RequireFromString("0.08")) {
		t.Errorf("PayoutAmount = %s, want 0.08", res.PayoutAmount)
	}
}

// TestSignAndSubmitClassifiesRPCErrors maps wallet-bridge error codes onto
// the domain failure taxonomy.
func TestSignAndSubmitClassifiesRPCErrors(t *testing.T) {
	tests := []struct {
		name string
		code int
		want error
	}{
		{"user rejected", 4001, domain.ErrSignatureRejected},
		{"insufficient funds", -32003, domain.ErrInsufficientFunds},
		{"treasury insufficient", -32050, domain.ErrTreasuryInsufficient},
		{"unknown program error", -32000, domain.ErrFatalSubmit},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := rpcServer(t, nil, map[string]interface{}{
				"code":    tc.code,
				"message": "nope",
			})
			defer srv.Close()

			c := NewRPCClient(srv.URL)
			_, err := c.SignAndSubmit(context.Background(), Payload{
				Kind:   PayloadStake,
				Player: testPlayer,
				Seed:   1,
				Amount: decimal.New(5, -2),
			})
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

// TestSignAndSubmitTransportFailureIsNetwork: an unreachable endpoint
// classifies as a transient network failure.
func TestSignAndSubmitTransportFailureIsNetwork(t *testing.T) {
	srv := rpcServer(t, nil, nil)
	srv.Close() // refuse connections

	c := NewRPCClient(srv.URL)
	_, err := c.SignAndSubmit(context.Background(), Payload{
		Kind:   PayloadStake,
		Player: testPlayer,
		Seed:   1,
		Amount: decimal.New(5, -2),
	})
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}
}

// TestSignAndSubmitHTTPErrorIsNetwork: a non-200 from the bridge is treated
// as transient, never as a rejection.
func TestSignAndSubmitHTTPErrorIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewRPCClient(srv.URL)
	_, err := c.SignAndSubmit(context.Background(), Payload{
		Kind:   PayloadStake,
		Player: testPlayer,
		Seed:   1,
		Amount: decimal.New(5, -2),
	})
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}
}

// TestSignAndSubmitRejectsInvalidAddress before touching the wire.
func TestSignAndSubmitRejectsInvalidAddress(t *testing.T) {
	c := NewRPCClient("http://127.0.0.1:0")
	_, err := c.SignAndSubmit(context.Background(), Payload{
		Kind:   PayloadStake,
		Player: "not-base58!",
		Seed:   1,
		Amount: decimal.New(5, -2),
	})
	if !errors.Is(err, domain.ErrFatalSubmit) {
		t.Fatalf("err = %v, want ErrFatalSubmit", err)
	}
}

func TestViewBalance(t *testing.T) {
	srv := rpcServer(t, map[string]interface{}{"balance": "1.2345"}, nil)
	defer srv.Close()

	c := NewRPCClient(srv.URL)
	bal, err := c.ViewBalance(context.Background(), testPlayer)
	if err != nil {
		t.Fatalf("ViewBalance: %v", err)
	}
	if !bal.Equal(decimal.RequireFromString("1.2345")) {
		t.Errorf("balance = %s, want 1.2345", bal)
	}
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{"valid 32-byte key", testPlayer, false},
		{"empty", "", true},
		{"not base58", "0OIl+/=", true},
		{"too short", "3mJr7AoUXx2Wqd", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAddress(tc.address)
			if (err != nil) != tc.wantErr {
				t.Errorf("ValidateAddress(%q) err = %v, wantErr = %v", tc.address, err, tc.wantErr)
			}
		})
	}
}
