package server

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lnbridge/swap-gateway/internal/admission"
	"github.com/lnbridge/swap-gateway/internal/routes"
	"github.com/lnbridge/swap-gateway/internal/swap"
)

const goodToken = "0x04718f5a0fc34cc1af16a1cdee98ffb20c31f5cd61d6ab07201858f4287c938d"

type stubExecutor struct {
	quote     *swap.Quote
	quoteErr  error
	commitErr error
	awaitErr  error

	// awaitBlocks makes AwaitSettlement wait for ctx expiry, simulating a
	// counterparty that never pays.
	awaitBlocks bool

	quoteCalls  int
	commitCalls int
	released    []string
}

func (s *stubExecutor) Quote(ctx context.Context, pair swap.Pair, amount uint64, exactIn bool, source, destination string) (*swap.Quote, error) {
	s.quoteCalls++
	if s.quoteErr != nil {
		return nil, s.quoteErr
	}
	return s.quote, nil
}

func (s *stubExecutor) Commit(ctx context.Context, sessionID string, auth swap.SigningAuthority) error {
	s.commitCalls++
	return s.commitErr
}

func (s *stubExecutor) AwaitSettlement(ctx context.Context, sessionID string) error {
	if s.awaitBlocks {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.awaitErr
}

func (s *stubExecutor) Refund(ctx context.Context, sessionID string, auth swap.SigningAuthority) error {
	return nil
}

func (s *stubExecutor) State(ctx context.Context, sessionID string) (string, error) {
	return "", nil
}

func (s *stubExecutor) Release(ctx context.Context, sessionID string) error {
	s.released = append(s.released, sessionID)
	return nil
}

type stubAuthority struct{}

func (stubAuthority) Address() string { return "0xfeed" }

func (stubAuthority) Nonce(ctx context.Context) (uint64, error) { return 7, nil }

func (stubAuthority) Execute(ctx context.Context, calls []swap.Call) (string, error) {
	return "0xtx", nil
}

func (stubAuthority) Balance(ctx context.Context, tokenAddress string) (*big.Int, error) {
	return big.NewInt(250_000_000), nil
}

func goodQuote() *swap.Quote {
	return &swap.Quote{
		SessionID:     "swap-1",
		InputAmount:   100_000,
		InputAfterFee: 99_500,
		OutputAmount:  400,
		PaymentHash:   "abcd1234",
		ValidUntil:    time.Now().Add(time.Minute),
	}
}

type serverOptions struct {
	limiter *admission.Limiter
	await   time.Duration
}

func newTestServer(t *testing.T, exec *stubExecutor, opts serverOptions) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	if opts.limiter == nil {
		opts.limiter = admission.NewLimiter(admission.DefaultLimiterConfig())
	}
	if opts.await <= 0 {
		opts.await = 50 * time.Millisecond
	}

	catalog := routes.NewCatalog([]swap.Asset{
		{Address: goodToken, Ticker: "TBTC", Decimals: 8},
	})
	orch := swap.NewOrchestrator(exec, stubAuthority{}, swap.OrchestratorConfig{
		AwaitTimeout: opts.await,
		MaxFeePPM:    20_000,
	}, logger)

	h := &Handlers{
		Orchestrator: orch,
		Resolver:     routes.NewResolver(catalog, true),
		Catalog:      catalog,
		Limiter:      opts.limiter,
		Ledger:       stubAuthority{},
		Logger:       logger,
	}

	srv, err := NewServer(ServerDeps{Handlers: h, Config: ServerConfig{Addr: ":0"}})
	require.NoError(t, err)
	return srv
}

func postSwap(srv *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/atomic-swap", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	return rec
}

func swapBody() string {
	return `{"amountSats":"100000","lightningDestination":"lnbc1invoice","tokenAddress":"` + goodToken + `"}`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var out ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAtomicSwap_Settles(t *testing.T) {
	exec := &stubExecutor{quote: goodQuote()}
	srv := newTestServer(t, exec, serverOptions{})

	rec := postSwap(srv, swapBody())
	require.Equal(t, http.StatusOK, rec.Code)

	var out SwapResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Success)
	assert.Equal(t, "swap-1", out.SwapID)
	assert.Equal(t, string(swap.StateSettled), out.FinalState)
	assert.Equal(t, "0.001 TBTC", out.InputAmount)
	assert.Equal(t, "400 sats", out.OutputAmount)
	require.NotNil(t, out.LightningPaymentHash)
	assert.Equal(t, "abcd1234", *out.LightningPaymentHash)
	assert.NotEmpty(t, out.RequestID)

	assert.Equal(t, []string{"swap-1"}, exec.released)
}

func TestAtomicSwap_CounterpartyTimeout(t *testing.T) {
	exec := &stubExecutor{quote: goodQuote(), awaitBlocks: true}
	srv := newTestServer(t, exec, serverOptions{})

	rec := postSwap(srv, swapBody())
	require.Equal(t, http.StatusRequestTimeout, rec.Code)

	out := decodeError(t, rec)
	assert.False(t, out.Success)
	assert.Equal(t, "PAYMENT_TIMEOUT", out.Error.Code)
	assert.True(t, out.Error.Retryable)
	assert.Equal(t, "swap-1", out.Error.SwapID)
}

func TestAtomicSwap_UnknownToken(t *testing.T) {
	exec := &stubExecutor{quote: goodQuote()}
	srv := newTestServer(t, exec, serverOptions{})

	body := `{"amountSats":"100000","lightningDestination":"lnbc1invoice","tokenAddress":"0x` +
		strings.Repeat("9", 64) + `"}`
	rec := postSwap(srv, body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	out := decodeError(t, rec)
	assert.Equal(t, "TOKEN_NOT_FOUND", out.Error.Code)
	// No provider session was ever opened.
	assert.Zero(t, exec.quoteCalls)
}

func TestAtomicSwap_ValidationOrder(t *testing.T) {
	exec := &stubExecutor{quote: goodQuote()}
	srv := newTestServer(t, exec, serverOptions{})

	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing fields", `{"amountSats":"100000"}`, "MISSING_REQUIRED_FIELDS"},
		{"bad json", `{not json`, "MISSING_REQUIRED_FIELDS"},
		{"zero amount", `{"amountSats":"0","lightningDestination":"lnbc1","tokenAddress":"` + goodToken + `"}`, "INVALID_AMOUNT"},
		{"negative amount", `{"amountSats":-5,"lightningDestination":"lnbc1","tokenAddress":"` + goodToken + `"}`, "INVALID_AMOUNT"},
		{"bad token format", `{"amountSats":"100000","lightningDestination":"lnbc1","tokenAddress":"0x123"}`, "INVALID_TOKEN_ADDRESS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postSwap(srv, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Error.Code)
		})
	}
	assert.Zero(t, exec.quoteCalls)
}

func TestAtomicSwap_RateLimited(t *testing.T) {
	exec := &stubExecutor{quote: goodQuote()}
	limiter := admission.NewLimiter(admission.LimiterConfig{Window: time.Minute, Limit: 2})
	srv := newTestServer(t, exec, serverOptions{limiter: limiter})

	for i := 0; i < 2; i++ {
		rec := postSwap(srv, swapBody())
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := postSwap(srv, swapBody())
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	out := decodeError(t, rec)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", out.Error.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, 2, exec.quoteCalls)
}

func TestAtomicSwap_ContentType(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{quote: goodQuote()}, serverOptions{})

	req := httptest.NewRequest(http.MethodPost, "/api/atomic-swap", strings.NewReader(swapBody()))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, "INVALID_CONTENT_TYPE", decodeError(t, rec).Error.Code)
}

func TestAtomicSwap_BodyTooLarge(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{quote: goodQuote()}, serverOptions{})

	payload := `{"comment":"` + strings.Repeat("x", admission.MaxBodyBytes+1) + `"}`
	rec := postSwap(srv, payload)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "REQUEST_TOO_LARGE", decodeError(t, rec).Error.Code)
}

func TestAtomicSwap_BodyJustUnderLimit(t *testing.T) {
	exec := &stubExecutor{quote: goodQuote()}
	srv := newTestServer(t, exec, serverOptions{})

	// Over one decimal megabyte but under the actual 1 MiB ceiling: the
	// transport and admission limits must agree.
	pad := strings.Repeat("x", 1_010_000)
	body := `{"amountSats":"100000","lightningDestination":"lnbc1invoice","tokenAddress":"` + goodToken + `","comment":"` + pad + `"}`
	require.Greater(t, len(body), 1_000_000)
	require.Less(t, len(body), admission.MaxBodyBytes)

	rec := postSwap(srv, body)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAtomicSwap_ChunkedBodyTooLarge(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{quote: goodQuote()}, serverOptions{})

	payload := `{"comment":"` + strings.Repeat("x", admission.MaxBodyBytes+1) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/atomic-swap", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	// Unknown length forces the limit to trip mid-read instead of on the
	// Content-Length header.
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "REQUEST_TOO_LARGE", decodeError(t, rec).Error.Code)
}

func TestAtomicSwap_ProviderFailure(t *testing.T) {
	exec := &stubExecutor{quote: goodQuote(), commitErr: errTimeout{}}
	srv := newTestServer(t, exec, serverOptions{})

	rec := postSwap(srv, swapBody())
	require.Equal(t, http.StatusRequestTimeout, rec.Code)
	out := decodeError(t, rec)
	assert.Equal(t, "TIMEOUT_ERROR", out.Error.Code)
	assert.True(t, out.Error.Retryable)
	// Session teardown still happens on the failure path.
	assert.Equal(t, []string{"swap-1"}, exec.released)
}

type errTimeout struct{}

func (errTimeout) Error() string { return "request timeout waiting for provider" }

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{quote: goodQuote()}, serverOptions{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.OK)
	assert.True(t, out.Ledger)
	assert.True(t, out.Lightning)
}

func TestTokens(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{quote: goodQuote()}, serverOptions{})

	req := httptest.NewRequest(http.MethodGet, "/api/tokens", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out TokensResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Tokens, 1)
	assert.Equal(t, "TBTC", out.Tokens[0].Ticker)
	assert.Equal(t, goodToken, out.Tokens[0].Address)
}

func TestBalance(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{quote: goodQuote()}, serverOptions{})

	req := httptest.NewRequest(http.MethodGet, "/api/balance/"+goodToken, nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out BalanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "2.5", out.Balance)
	assert.Equal(t, "250000000", out.Raw)
	assert.Equal(t, "TBTC", out.Ticker)
}

func TestBalance_BadToken(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{quote: goodQuote()}, serverOptions{})

	req := httptest.NewRequest(http.MethodGet, "/api/balance/nonsense", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_TOKEN_ADDRESS", decodeError(t, rec).Error.Code)
}

func TestRecentSwaps_NoHistory(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{quote: goodQuote()}, serverOptions{})

	req := httptest.NewRequest(http.MethodGet, "/api/swaps/recent", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out RecentSwapsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Empty(t, out.Items)
}

func TestAPIKeyAuth(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	catalog := routes.NewCatalog([]swap.Asset{{Address: goodToken, Ticker: "TBTC", Decimals: 8}})
	h := &Handlers{
		Orchestrator: swap.NewOrchestrator(&stubExecutor{quote: goodQuote()}, stubAuthority{}, swap.DefaultOrchestratorConfig(), logger),
		Resolver:     routes.NewResolver(catalog, true),
		Catalog:      catalog,
		Limiter:      admission.NewLimiter(admission.DefaultLimiterConfig()),
		Ledger:       stubAuthority{},
		Logger:       logger,
	}
	srv, err := NewServer(ServerDeps{Handlers: h, Config: ServerConfig{Addr: ":0", APIKey: "sekrit"}})
	require.NoError(t, err)

	// Missing credential is a malformed request to the key extractor.
	req := httptest.NewRequest(http.MethodGet, "/api/tokens", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/tokens", nil)
	req.Header.Set("x-api-key", "wrong")
	rec = httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/tokens", nil)
	req.Header.Set("x-api-key", "sekrit")
	rec = httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays reachable without credentials.
	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec = httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
