package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/candlerush/arcade/internal/domain"
	"github.com/shopspring/decimal"
)

// Default configuration values.
const (
	DefaultTimeout = 30 * time.Second
)

// Wallet-bridge JSON-RPC error codes.  4001 is the standard wallet-provider
// "user rejected the request" code; the negative codes are program-level.
const (
	codeUserRejected         = 4001
	codeInsufficientFunds    = -32003
	codeTreasuryInsufficient = -32050
)

// RPCClient talks JSON-RPC 2.0 to the wallet-bridge endpoint, which fronts
// both the human-gated signer and the ledger's read path.  It implements
// Signer and Reader.
//
// The client is deliberately single-shot: whether a failed submission may be
// re-attempted is a policy decision that belongs to the caller, not to the
// transport.
type RPCClient struct {
	endpoint  string
	client    *http.Client
	requestID atomic.Uint64
}

// ClientOption configures RPCClient.
type ClientOption func(*RPCClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *RPCClient) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *RPCClient) {
		c.client = client
	}
}

// NewRPCClient creates a wallet-bridge RPC client.
func NewRPCClient(endpoint string, opts ...ClientOption) *RPCClient {
	c := &RPCClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// ──────────────────────────────────────────────────────────────────────────────
// Signer
// ──────────────────────────────────────────────────────────────────────────────

// SignAndSubmit forwards the payload to the wallet bridge, which prompts the
// human for a signature and relays the signed transaction to the ledger.
// There is no local timeout ceiling here: the caller owns how long it is
// willing to wait for the human.
func (c *RPCClient) SignAndSubmit(ctx context.Context, p Payload) (SubmitResult, error) {
	if err := ValidateAddress(p.Player); err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", domain.ErrFatalSubmit, err)
	}
	var res SubmitResult
	if err := c.call(ctx, "wallet_signAndSubmit", []interface{}{p}, &res); err != nil {
		return SubmitResult{}, classify(err)
	}
	return res, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Reader
// ──────────────────────────────────────────────────────────────────────────────

// ViewBalance reads the on-ledger balance of address.
func (c *RPCClient) ViewBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var out struct {
		Balance decimal.Decimal `json:"balance"`
	}
	if err := c.call(ctx, "ledger_viewBalance", []interface{}{address}, &out); err != nil {
		return decimal.Zero, classify(err)
	}
	return out.Balance, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Transport
// ──────────────────────────────────────────────────────────────────────────────

// call performs one JSON-RPC call and decodes the result into result.
func (c *RPCClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	buf, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("chain.call: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("chain.call: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpRes, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer httpRes.Body.Close()

	body, err := io.ReadAll(httpRes.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", domain.ErrNetwork, err)
	}
	if httpRes.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: http %d", domain.ErrNetwork, httpRes.StatusCode)
	}

	var res rpcResponse
	if err = json.Unmarshal(body, &res); err != nil {
		return fmt.Errorf("%w: decode: %v", domain.ErrNetwork, err)
	}
	if res.Error != nil {
		return res.Error
	}
	if result != nil {
		if err = json.Unmarshal(res.Result, result); err != nil {
			return fmt.Errorf("chain.call: decode result: %w", err)
		}
	}
	return nil
}

// classify maps wire-level failures onto the domain taxonomy.  Errors already
// wrapping a domain sentinel pass through unchanged.
func classify(err error) error {
	var rpcErr *rpcError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case codeUserRejected:
			return fmt.Errorf("%w: %s", domain.ErrSignatureRejected, rpcErr.Message)
		case codeInsufficientFunds:
			return fmt.Errorf("%w: %s", domain.ErrInsufficientFunds, rpcErr.Message)
		case codeTreasuryInsufficient:
			return fmt.Errorf("%w: %s", domain.ErrTreasuryInsufficient, rpcErr.Message)
		default:
			return fmt.Errorf("%w: %s", domain.ErrFatalSubmit, rpcErr.Error())
		}
	}
	return err
}
