package nearrpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jaswinder6991/dao-agent-next/internal/upstream"
)

// Finality for all queries. Matches what wallets use for nonce and view
// freshness; fresh values are fetched per request and never cached.
const finality = "optimistic"

type Config struct {
	// StatusURL serves status and access-key queries.
	StatusURL string `envconfig:"NEAR_RPC_URL" default:"https://rpc.near.org"`
	// ViewURL serves read-only contract calls.
	ViewURL string `envconfig:"NEAR_VIEW_RPC_URL" default:"https://free.rpc.fastnear.com"`
}

// Caller is the read-only surface the rest of the service depends on.
type Caller interface {
	LatestBlockHash(ctx context.Context) (string, error)
	FetchNonce(ctx context.Context, accountID, publicKey string) (uint64, error)
	View(ctx context.Context, accountID, methodName, argsBase64 string) (json.RawMessage, error)
	ViewJSON(ctx context.Context, accountID, methodName string, args, out any) error
}

// Client implements Caller over NEAR JSON-RPC.
type Client struct {
	statusURL  string
	viewURL    string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		statusURL: cfg.StatusURL,
		viewURL:   cfg.ViewURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Name    string          `json:"name"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error,omitempty"`
}

type queryParams struct {
	RequestType string `json:"request_type"`
	Finality    string `json:"finality"`
	AccountID   string `json:"account_id,omitempty"`
	PublicKey   string `json:"public_key,omitempty"`
	MethodName  string `json:"method_name,omitempty"`
	ArgsBase64  string `json:"args_base64,omitempty"`
}

type statusResult struct {
	SyncInfo struct {
		LatestBlockHash string `json:"latest_block_hash"`
	} `json:"sync_info"`
}

type accessKeyResult struct {
	Nonce uint64 `json:"nonce"`
	Error string `json:"error,omitempty"`
}

type callResult struct {
	// The node returns the contract's return value as an array of byte
	// values, not a base64 string, so []byte does not decode here.
	Result []int  `json:"result"`
	Error  string `json:"error,omitempty"`
}

func (c *Client) makeRequest(ctx context.Context, url, method string, params any) (json.RawMessage, error) {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      "dontcare",
		Method:  method,
		Params:  params,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("nearrpc: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("nearrpc: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nearrpc: failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nearrpc: unexpected status code: %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, upstream.Violation("nearrpc", "malformed JSON-RPC envelope", err)
	}

	if rpcResp.Error != nil {
		return nil, fmt.Errorf("nearrpc: RPC error: %s - %s", rpcResp.Error.Name, rpcResp.Error.Message)
	}

	return rpcResp.Result, nil
}

// LatestBlockHash returns the hash of the node's latest finalized block,
// used as the validity anchor of assembled transactions.
func (c *Client) LatestBlockHash(ctx context.Context) (string, error) {
	result, err := c.makeRequest(ctx, c.statusURL, "status", []any{})
	if err != nil {
		return "", fmt.Errorf("nearrpc: failed to get node status: %w", err)
	}

	var status statusResult
	if err := json.Unmarshal(result, &status); err != nil {
		return "", upstream.Violation("nearrpc", "malformed status result", err)
	}
	if status.SyncInfo.LatestBlockHash == "" {
		return "", upstream.Violation("nearrpc", "status result missing latest block hash", nil)
	}

	return status.SyncInfo.LatestBlockHash, nil
}

// FetchNonce returns the current nonce of the access key registered for the
// account/key pair. Errors when the key does not exist on the account.
func (c *Client) FetchNonce(ctx context.Context, accountID, publicKey string) (uint64, error) {
	result, err := c.makeRequest(ctx, c.statusURL, "query", queryParams{
		RequestType: "view_access_key",
		Finality:    finality,
		AccountID:   accountID,
		PublicKey:   publicKey,
	})
	if err != nil {
		return 0, fmt.Errorf("nearrpc: failed to view access key: %w", err)
	}

	var key accessKeyResult
	if err := json.Unmarshal(result, &key); err != nil {
		return 0, upstream.Violation("nearrpc", "malformed access key result", err)
	}
	if key.Error != "" {
		return 0, fmt.Errorf("nearrpc: access key query failed: %s", key.Error)
	}

	return key.Nonce, nil
}

// View invokes a read-only contract method and returns its result decoded as
// JSON. Contracts proxied by this service always return UTF-8 JSON; binary
// return values are rejected as an upstream violation.
func (c *Client) View(ctx context.Context, accountID, methodName, argsBase64 string) (json.RawMessage, error) {
	result, err := c.makeRequest(ctx, c.viewURL, "query", queryParams{
		RequestType: "call_function",
		Finality:    finality,
		AccountID:   accountID,
		MethodName:  methodName,
		ArgsBase64:  argsBase64,
	})
	if err != nil {
		return nil, fmt.Errorf("nearrpc: failed to call %s.%s: %w", accountID, methodName, err)
	}

	var call callResult
	if err := json.Unmarshal(result, &call); err != nil {
		return nil, upstream.Violation("nearrpc", "malformed call_function result", err)
	}
	if call.Error != "" {
		return nil, fmt.Errorf("nearrpc: contract call %s.%s failed: %s", accountID, methodName, call.Error)
	}

	raw := make([]byte, len(call.Result))
	for i, b := range call.Result {
		if b < 0 || b > 255 {
			return nil, upstream.Violation("nearrpc", fmt.Sprintf("byte value out of range in %s.%s result", accountID, methodName), nil)
		}
		raw[i] = byte(b)
	}

	if !json.Valid(raw) {
		return nil, upstream.Violation("nearrpc", fmt.Sprintf("%s.%s returned non-JSON bytes", accountID, methodName), nil)
	}

	return json.RawMessage(raw), nil
}

// ViewJSON invokes a read-only contract method with JSON args and unmarshals
// the result into out.
func (c *Client) ViewJSON(ctx context.Context, accountID, methodName string, args, out any) error {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("nearrpc: failed to marshal view args: %w", err)
	}

	raw, err := c.View(ctx, accountID, methodName, base64.StdEncoding.EncodeToString(argsJSON))
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return upstream.Violation("nearrpc", fmt.Sprintf("unexpected %s.%s result shape", accountID, methodName), err)
	}
	return nil
}
