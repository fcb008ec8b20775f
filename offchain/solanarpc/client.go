package solanarpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Abdullah1738/payment-manager/offchain/solana"
)

var (
	ErrMissingRPCURL = errors.New("missing rpc url")
	ErrRPCError      = errors.New("solana rpc error")
)

type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: %d %s", ErrRPCError.Error(), e.Code, e.Message)
}

func (e *RPCError) Unwrap() error { return ErrRPCError }

type Client struct {
	rpcURL string
	http   *http.Client
}

func New(rpcURL string, httpClient *http.Client) *Client {
	rpcURL = strings.TrimSpace(rpcURL)
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		rpcURL: rpcURL,
		http:   httpClient,
	}
}

func ClientFromEnv() (*Client, error) {
	raw := strings.TrimSpace(os.Getenv("SOLANA_RPC_URL"))
	if raw == "" {
		return nil, ErrMissingRPCURL
	}
	return New(raw, nil), nil
}

const (
	maxAttempts      = 7
	maxBackoff       = 10 * time.Second
	maxResponseBytes = 4 << 20
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func isRateLimitedRPCError(code int, message string) bool {
	if code == 429 || code == -32429 {
		return true
	}
	msg := strings.ToLower(strings.TrimSpace(message))
	return strings.Contains(msg, "rate") && strings.Contains(msg, "limit")
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) rpcCall(ctx context.Context, method string, params any, out any) error {
	if c == nil {
		return errors.New("nil rpc client")
	}
	if strings.TrimSpace(c.rpcURL) == "" {
		return ErrMissingRPCURL
	}

	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      "1",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	backoff := 1 * time.Second
	retry := func(attempt int) (bool, error) {
		if attempt >= maxAttempts {
			return false, nil
		}
		if err := sleepWithContext(ctx, backoff); err != nil {
			return false, err
		}
		backoff = min(backoff*2, maxBackoff)
		return true, nil
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(reqBody))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		var rr rpcResponse
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("%w: http status=%d", ErrRPCError, resp.StatusCode)
		case json.Unmarshal(raw, &rr) != nil:
			lastErr = fmt.Errorf("%w: undecodable response (http status=%d)", ErrRPCError, resp.StatusCode)
		case rr.Error != nil:
			lastErr = &RPCError{Code: rr.Error.Code, Message: rr.Error.Message}
			if !isRateLimitedRPCError(rr.Error.Code, rr.Error.Message) {
				return lastErr
			}
		default:
			if out == nil {
				return nil
			}
			if len(rr.Result) == 0 {
				return fmt.Errorf("%w: empty result", ErrRPCError)
			}
			if err := json.Unmarshal(rr.Result, out); err != nil {
				return fmt.Errorf("decode result: %w", err)
			}
			return nil
		}

		again, err := retry(attempt)
		if err != nil {
			return err
		}
		if !again {
			return lastErr
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("%w: no response", ErrRPCError)
}

func (c *Client) LatestBlockhash(ctx context.Context) ([32]byte, error) {
	var out [32]byte
	var resp struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	// Use finalized to avoid "Blockhash not found" when talking to load-balanced public RPCs.
	if err := c.rpcCall(ctx, "getLatestBlockhash", []any{map[string]any{"commitment": "finalized"}}, &resp); err != nil {
		// Some RPCs still require getRecentBlockhash.
		var old struct {
			Value struct {
				Blockhash string `json:"blockhash"`
			} `json:"value"`
		}
		if err2 := c.rpcCall(ctx, "getRecentBlockhash", []any{}, &old); err2 != nil {
			return out, err
		}
		resp.Value.Blockhash = old.Value.Blockhash
	}

	bh, err := solana.ParsePubkey(resp.Value.Blockhash)
	if err != nil {
		return out, fmt.Errorf("invalid blockhash: %w", err)
	}
	copy(out[:], bh[:])
	return out, nil
}

func (c *Client) SendTransaction(ctx context.Context, tx []byte, skipPreflight bool) (string, error) {
	if len(tx) == 0 {
		return "", errors.New("empty tx")
	}
	b64 := base64.StdEncoding.EncodeToString(tx)
	var resp string
	params := []any{
		b64,
		map[string]any{
			"encoding":      "base64",
			"skipPreflight": skipPreflight,
		},
	}
	if err := c.rpcCall(ctx, "sendTransaction", params, &resp); err != nil {
		return "", err
	}
	return resp, nil
}

type AccountInfo struct {
	Owner    solana.Pubkey
	Lamports uint64
	Data     []byte
	// Exists is false when the RPC returned a null value.
	Exists bool
}

func (c *Client) AccountInfo(ctx context.Context, pubkey solana.Pubkey) (AccountInfo, error) {
	var resp struct {
		Value *struct {
			Owner    string `json:"owner"`
			Lamports uint64 `json:"lamports"`
			Data     []any  `json:"data"`
		} `json:"value"`
	}
	params := []any{
		pubkey.Base58(),
		map[string]any{
			"encoding":   "base64",
			"commitment": "confirmed",
		},
	}
	if err := c.rpcCall(ctx, "getAccountInfo", params, &resp); err != nil {
		return AccountInfo{}, err
	}
	if resp.Value == nil {
		return AccountInfo{}, nil
	}
	owner, err := solana.ParsePubkey(resp.Value.Owner)
	if err != nil {
		return AccountInfo{}, fmt.Errorf("invalid account owner: %w", err)
	}
	if len(resp.Value.Data) < 1 {
		return AccountInfo{}, errors.New("missing account data")
	}
	s, ok := resp.Value.Data[0].(string)
	if !ok {
		return AccountInfo{}, errors.New("unexpected account data encoding")
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return AccountInfo{}, err
	}
	return AccountInfo{Owner: owner, Lamports: resp.Value.Lamports, Data: b, Exists: true}, nil
}

func (c *Client) BalanceLamports(ctx context.Context, pubkey solana.Pubkey) (uint64, error) {
	var resp struct {
		Value uint64 `json:"value"`
	}
	if err := c.rpcCall(ctx, "getBalance", []any{pubkey.Base58(), map[string]any{"commitment": "processed"}}, &resp); err != nil {
		return 0, err
	}
	return resp.Value, nil
}

// MinimumBalanceForRentExemption is the lamport balance an account of size
// bytes needs to be rent exempt.
func (c *Client) MinimumBalanceForRentExemption(ctx context.Context, size int) (uint64, error) {
	var lamports uint64
	if err := c.rpcCall(ctx, "getMinimumBalanceForRentExemption", []any{size}, &lamports); err != nil {
		return 0, err
	}
	return lamports, nil
}

// DefaultLamportsPerSignature is the cluster signature fee when the RPC does
// not report one.
const DefaultLamportsPerSignature = 5000

// LamportsPerSignature reads the signature fee from the legacy fee
// calculator and falls back to DefaultLamportsPerSignature.
func (c *Client) LamportsPerSignature(ctx context.Context) (uint64, error) {
	var resp struct {
		Value struct {
			FeeCalculator struct {
				LamportsPerSignature uint64 `json:"lamportsPerSignature"`
			} `json:"feeCalculator"`
		} `json:"value"`
	}
	err := c.rpcCall(ctx, "getRecentBlockhash", []any{}, &resp)
	switch {
	case err == nil && resp.Value.FeeCalculator.LamportsPerSignature != 0:
		return resp.Value.FeeCalculator.LamportsPerSignature, nil
	case err != nil && ctx.Err() != nil:
		return 0, ctx.Err()
	default:
		return DefaultLamportsPerSignature, nil
	}
}

// RecentPrioritizationFees returns the per-slot compute unit prices, in
// micro-lamports, paid by recent transactions that wrote to any of accounts.
func (c *Client) RecentPrioritizationFees(ctx context.Context, accounts []solana.Pubkey) ([]uint64, error) {
	keys := make([]string, 0, len(accounts))
	for _, a := range accounts {
		keys = append(keys, a.Base58())
	}
	var resp []struct {
		Slot              uint64 `json:"slot"`
		PrioritizationFee uint64 `json:"prioritizationFee"`
	}
	if err := c.rpcCall(ctx, "getRecentPrioritizationFees", []any{keys}, &resp); err != nil {
		return nil, err
	}
	out := make([]uint64, 0, len(resp))
	for _, r := range resp {
		out = append(out, r.PrioritizationFee)
	}
	return out, nil
}
