package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/lnbridge/swap-gateway/internal/admission"
	"github.com/lnbridge/swap-gateway/internal/cache"
	"github.com/lnbridge/swap-gateway/internal/correlation"
	"github.com/lnbridge/swap-gateway/internal/faults"
	"github.com/lnbridge/swap-gateway/internal/models"
	"github.com/lnbridge/swap-gateway/internal/routes"
	"github.com/lnbridge/swap-gateway/internal/swap"
)

// Handlers holds the collaborators the HTTP endpoints drive. History is
// optional; when nil the recent-swaps surface degrades gracefully.
type Handlers struct {
	Orchestrator *swap.Orchestrator
	Resolver     *routes.Resolver
	Catalog      *routes.Catalog
	Limiter      *admission.Limiter
	Ledger       swap.SigningAuthority
	History      *cache.History
	Logger       *logrus.Logger
	DevMode      bool
}

// RateLimit gates the swap endpoint per client IP. Rejections carry a
// Retry-After header alongside the structured error.
func (h *Handlers) RateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d := h.Limiter.Allow(c.RealIP())
			if !d.Allowed {
				secs := int64(math.Ceil(d.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				c.Response().Header().Set("Retry-After", strconv.FormatInt(secs, 10))
				return h.fault(c, faults.New(faults.CodeRateLimitExceeded, ""), "")
			}
			return next(c)
		}
	}
}

// AtomicSwap runs one full exchange: admit, resolve, execute, respond.
func (h *Handlers) AtomicSwap(c echo.Context) error {
	ctx := c.Request().Context()
	log := correlation.Logger(ctx, h.Logger)

	var req admission.SwapRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		// The body-limit reader surfaces oversized chunked bodies as an
		// echo error mid-read; that one keeps its own status.
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return err
		}
		return h.fault(c, faults.New(faults.CodeMissingRequiredFields, "request body is not valid JSON"), "")
	}

	intent, f := admission.ValidateSwapRequest(req)
	if f != nil {
		return h.fault(c, f, "")
	}

	pair, f := h.Resolver.Resolve(req.TokenAddress, intent.Direction)
	if f != nil {
		return h.fault(c, f, "")
	}
	intent.Source = h.Ledger.Address()

	log.WithFields(logrus.Fields{
		"token":  req.TokenAddress,
		"amount": intent.Amount,
	}).Info("swap admitted")

	session, fault := h.Orchestrator.Execute(ctx, *pair, *intent)
	h.record(ctx, session)

	if fault != nil {
		swapID := ""
		if session != nil {
			swapID = session.ID
		}
		return h.fault(c, fault, swapID)
	}

	var hash *string
	if session.PaymentHash != "" {
		v := session.PaymentHash
		hash = &v
	}
	return c.JSON(http.StatusOK, SwapResponse{
		Success:              true,
		SwapID:               session.ID,
		InputAmount:          formatAmount(session.InputAmount, pair.Source),
		OutputAmount:         formatAmount(session.OutputAmount, pair.Destination),
		FinalState:           string(session.State()),
		LightningPaymentHash: hash,
		RequestID:            correlation.RequestID(ctx),
		Timestamp:            time.Now().UTC().Format(time.RFC3339),
	})
}

// record persists the finished session, best effort.
func (h *Handlers) record(ctx context.Context, s *swap.Session) {
	if h.History == nil || s == nil || s.ID == "" {
		return
	}
	h.History.Record(ctx, &models.SwapRecord{
		SwapID:       s.ID,
		RequestID:    correlation.RequestID(ctx),
		Pair:         s.Pair.Source.Ticker + "-" + s.Pair.Destination.Ticker,
		Direction:    string(s.Intent.Direction),
		FinalState:   string(s.State()),
		InputAmount:  s.InputAmount,
		OutputAmount: s.OutputAmount,
		PaymentHash:  s.PaymentHash,
		CreatedAt:    s.CreatedAt.UTC(),
		FinishedAt:   time.Now().UTC(),
	})
}

// Health reports liveness plus collaborator reachability. The ledger
// probe is best effort and bounded.
func (h *Handlers) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ledgerOK := true
	if p, ok := h.Ledger.(interface {
		Ping(context.Context) error
	}); ok {
		ledgerOK = p.Ping(ctx) == nil
	}
	lightningOK := h.Resolver.LightningAvailable()

	return c.JSON(http.StatusOK, HealthResponse{
		OK:        ledgerOK && lightningOK,
		Ledger:    ledgerOK,
		Lightning: lightningOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Tokens lists the tradeable asset catalog.
func (h *Handlers) Tokens(c echo.Context) error {
	assets := h.Catalog.Assets()
	out := make([]TokenInfo, 0, len(assets))
	for _, a := range assets {
		out = append(out, TokenInfo{Address: a.Address, Ticker: a.Ticker, Decimals: a.Decimals})
	}
	return c.JSON(http.StatusOK, TokensResponse{Tokens: out})
}

// Balance returns the signing account's holdings of one catalog token.
func (h *Handlers) Balance(c echo.Context) error {
	ctx := c.Request().Context()
	token := c.Param("token")

	if !admission.ValidTokenAddress(token) {
		return h.fault(c, faults.New(faults.CodeInvalidTokenAddress, ""), "")
	}
	asset, ok := h.Catalog.Lookup(token)
	if !ok {
		return h.fault(c, faults.New(faults.CodeTokenNotFound, ""), "")
	}

	raw, err := h.Ledger.Balance(ctx, asset.Address)
	if err != nil {
		return h.fault(c, faults.Classify(err), "")
	}

	return c.JSON(http.StatusOK, BalanceResponse{
		Token:     asset.Address,
		Ticker:    asset.Ticker,
		Balance:   decimal.NewFromBigInt(raw, -asset.Decimals).String(),
		Raw:       raw.String(),
		RequestID: correlation.RequestID(ctx),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// RecentSwaps lists finished swaps, newest first. Without a history
// store the list is empty rather than an error.
func (h *Handlers) RecentSwaps(c echo.Context) error {
	if h.History == nil {
		return c.JSON(http.StatusOK, RecentSwapsResponse{Items: []models.SwapRecord{}})
	}

	limit, _ := strconv.ParseInt(c.QueryParam("limit"), 10, 64)
	items, err := h.History.Recent(c.Request().Context(), limit)
	if err != nil {
		return h.fault(c, faults.Classify(err), "")
	}
	if items == nil {
		items = []models.SwapRecord{}
	}
	return c.JSON(http.StatusOK, RecentSwapsResponse{Items: items})
}

// formatAmount renders a smallest-unit amount as "<amount> <unit>". The
// Lightning leg is denominated in satoshis.
func formatAmount(v uint64, asset swap.Asset) string {
	unit := asset.Ticker
	if asset.Address == "" {
		unit = "sats"
	}
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), -asset.Decimals).String() + " " + unit
}
