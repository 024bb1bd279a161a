// Package executor is the HTTP adapter for the external swap-execution
// provider. It implements swap.Executor and is the only place that knows
// the provider's wire protocol.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/lnbridge/swap-gateway/internal/faults"
	"github.com/lnbridge/swap-gateway/internal/swap"
)

// Client talks to the swap-execution provider's REST API. Outbound calls
// are throttled so a burst of gateway traffic cannot trip the provider's
// own rate limits.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client

	limiter      *rate.Limiter
	pollInterval time.Duration
	logger       *logrus.Logger
}

// NewClient creates a provider client. An empty timeout defaults to 30s.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *logrus.Logger) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  strings.TrimSpace(apiKey),
		HTTP:    &http.Client{Timeout: timeout},
		// 10 rps sustained with modest bursts is well under provider limits.
		limiter:      rate.NewLimiter(rate.Limit(10), 20),
		pollInterval: 2 * time.Second,
		logger:       logger,
	}
}

// HTTPError carries a non-2xx provider response.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("swap provider http %d", e.StatusCode)
	}
	return fmt.Sprintf("swap provider http %d: %s", e.StatusCode, b)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("accept", "application/json")
	if in != nil {
		req.Header.Set("content-type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &HTTPError{StatusCode: res.StatusCode, Body: raw}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode provider response: %w", err)
		}
	}
	return nil
}

// Assets fetches the tradeable asset catalog. Called once at startup.
func (c *Client) Assets(ctx context.Context) ([]swap.Asset, error) {
	var resp assetsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/assets", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch asset catalog: %w", err)
	}

	out := make([]swap.Asset, 0, len(resp.Assets))
	for _, a := range resp.Assets {
		out = append(out, swap.Asset{Address: a.Address, Ticker: a.Ticker, Decimals: a.Decimals})
	}
	return out, nil
}

// Quote implements swap.Executor.
func (c *Client) Quote(ctx context.Context, pair swap.Pair, amount uint64, exactIn bool, source, destination string) (*swap.Quote, error) {
	req := quoteRequest{
		SourceAsset:      pair.Source.Address,
		SourceTicker:     pair.Source.Ticker,
		DestinationAsset: pair.Destination.Address,
		Amount:           amount,
		ExactIn:          exactIn,
		Source:           source,
		Destination:      destination,
	}

	var resp quoteResponse
	if err := c.do(ctx, http.MethodPost, "/v1/quotes", req, &resp); err != nil {
		return nil, err
	}

	return &swap.Quote{
		SessionID:     resp.SwapID,
		InputAmount:   resp.InputAmount,
		InputAfterFee: resp.InputAfterFee,
		OutputAmount:  resp.OutputAmount,
		PaymentHash:   resp.PaymentHash,
		ValidUntil:    time.Unix(resp.ValidUntil, 0),
	}, nil
}

// Commit implements swap.Executor. The signing authority executes the
// locking calls the provider prepared for this session.
func (c *Client) Commit(ctx context.Context, sessionID string, auth swap.SigningAuthority) error {
	var prep commitPrepareResponse
	path := fmt.Sprintf("/v1/swaps/%s/commit", sessionID)
	if err := c.do(ctx, http.MethodPost, path, commitRequest{Address: auth.Address()}, &prep); err != nil {
		return err
	}

	txHash, err := auth.Execute(ctx, prep.Calls)
	if err != nil {
		return fmt.Errorf("execute locking transaction: %w", err)
	}

	ack := commitAckRequest{TxHash: txHash}
	if err := c.do(ctx, http.MethodPost, path+"/ack", ack, nil); err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{"swap_id": sessionID, "tx": txHash}).Debug("commit acknowledged")
	return nil
}

// AwaitSettlement implements swap.Executor by polling the session state
// until the provider reports the counterparty leg settled. Returns
// ctx.Err() when the bound expires; the caller decides what a timeout
// means.
func (c *Client) AwaitSettlement(ctx context.Context, sessionID string) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		state, err := c.State(ctx, sessionID)
		if err != nil {
			// Transient poll errors are retried until the deadline; the
			// deadline itself is the failure bound.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.WithError(err).WithField("swap_id", sessionID).Debug("settlement poll failed")
		}

		switch state {
		case providerStateSettled:
			return nil
		case providerStateFailed:
			// A terminal verdict, not a connectivity problem: it must keep
			// its code through classification and stay non-retryable.
			return faults.Wrap(faults.CodeSwapExecutionFailed, "",
				fmt.Errorf("swap %s ended failed on the provider side", sessionID))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Refund implements swap.Executor.
func (c *Client) Refund(ctx context.Context, sessionID string, auth swap.SigningAuthority) error {
	var prep commitPrepareResponse
	path := fmt.Sprintf("/v1/swaps/%s/refund", sessionID)
	if err := c.do(ctx, http.MethodPost, path, commitRequest{Address: auth.Address()}, &prep); err != nil {
		return err
	}

	txHash, err := auth.Execute(ctx, prep.Calls)
	if err != nil {
		return fmt.Errorf("execute reclaim transaction: %w", err)
	}

	if err := c.do(ctx, http.MethodPost, path+"/ack", commitAckRequest{TxHash: txHash}, nil); err != nil {
		return err
	}
	return nil
}

// State implements swap.Executor.
func (c *Client) State(ctx context.Context, sessionID string) (string, error) {
	var resp stateResponse
	if err := c.do(ctx, http.MethodGet, "/v1/swaps/"+sessionID, nil, &resp); err != nil {
		return "", err
	}
	return resp.State, nil
}

// Release implements swap.Executor. Releasing an unknown or finished
// session is not an error.
func (c *Client) Release(ctx context.Context, sessionID string) error {
	err := c.do(ctx, http.MethodDelete, "/v1/swaps/"+sessionID, nil, nil)
	var he *HTTPError
	if err != nil && errors.As(err, &he) && he.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}
