// Package ledger implements the signing authority over the ledger's
// JSON-RPC node. The orchestrator only ever sees the swap.SigningAuthority
// contract; key handling stays inside this package.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lnbridge/swap-gateway/internal/swap"
)

// AccountConfig configures the ledger account provider.
type AccountConfig struct {
	RPCURL     string
	Address    string // account contract address
	PrivateKey string // signing credential, hex
	Timeout    time.Duration
}

// Account is a ledger account able to sign and submit invocations.
type Account struct {
	cfg    AccountConfig
	client *http.Client
	logger *logrus.Logger

	nextID atomic.Int64
}

// NewAccount validates the config and returns the account provider. The
// node is not contacted here; use Ping for a startup health check.
func NewAccount(cfg AccountConfig, logger *logrus.Logger) (*Account, error) {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return nil, fmt.Errorf("ledger rpc url is required")
	}
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, fmt.Errorf("ledger account address is required")
	}
	if strings.TrimSpace(cfg.PrivateKey) == "" {
		return nil, fmt.Errorf("ledger private key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Account{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int64  `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (a *Account) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: a.nextID.Add(1)})
	if err != nil {
		return fmt.Errorf("encode rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.RPCURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	// The signer daemon authenticates invocations with the configured
	// credential; it never travels anywhere but this endpoint.
	req.Header.Set("authorization", "Bearer "+a.cfg.PrivateKey)

	res, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("ledger rpc unreachable: %w", err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("ledger rpc http %d: %s", res.StatusCode, strings.TrimSpace(string(raw)))
	}

	var resp rpcResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("decode rpc response: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("ledger rpc %s: %s (%d)", method, resp.Error.Message, resp.Error.Code)
	}
	if out != nil {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("decode rpc result: %w", err)
		}
	}
	return nil
}

// Address implements swap.SigningAuthority.
func (a *Account) Address() string { return a.cfg.Address }

// Nonce implements swap.SigningAuthority.
func (a *Account) Nonce(ctx context.Context) (uint64, error) {
	var hexNonce string
	if err := a.call(ctx, "account_getNonce", []any{a.cfg.Address}, &hexNonce); err != nil {
		return 0, err
	}
	n, err := parseHexUint(hexNonce)
	if err != nil {
		return 0, fmt.Errorf("parse nonce %q: %w", hexNonce, err)
	}
	return n, nil
}

type executeParams struct {
	Account string      `json:"account"`
	Calls   []swap.Call `json:"calls"`
	Nonce   uint64      `json:"nonce"`
}

type executeResult struct {
	TransactionHash string `json:"transaction_hash"`
}

// Execute implements swap.SigningAuthority. The signer daemon signs and
// broadcasts on behalf of the configured account.
func (a *Account) Execute(ctx context.Context, calls []swap.Call) (string, error) {
	if len(calls) == 0 {
		return "", fmt.Errorf("no calls to execute")
	}

	nonce, err := a.Nonce(ctx)
	if err != nil {
		return "", err
	}

	var res executeResult
	params := executeParams{Account: a.cfg.Address, Calls: calls, Nonce: nonce}
	if err := a.call(ctx, "account_execute", []any{params}, &res); err != nil {
		return "", err
	}

	a.logger.WithFields(logrus.Fields{
		"tx":    res.TransactionHash,
		"calls": len(calls),
	}).Debug("ledger transaction submitted")
	return res.TransactionHash, nil
}

// Balance implements swap.SigningAuthority. Returns the raw smallest-
// unit balance of the account for the given token.
func (a *Account) Balance(ctx context.Context, tokenAddress string) (*big.Int, error) {
	var hexBalance string
	if err := a.call(ctx, "ledger_balanceOf", []any{tokenAddress, a.cfg.Address}, &hexBalance); err != nil {
		return nil, err
	}

	s := strings.TrimPrefix(strings.TrimSpace(hexBalance), "0x")
	bal, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("parse balance %q", hexBalance)
	}
	return bal, nil
}

// Ping verifies the node answers. Used for startup and health checks.
func (a *Account) Ping(ctx context.Context) error {
	var version string
	return a.call(ctx, "ledger_version", []any{}, &version)
}

func parseHexUint(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok || !n.IsUint64() {
		return 0, fmt.Errorf("not a hex uint")
	}
	return n.Uint64(), nil
}
