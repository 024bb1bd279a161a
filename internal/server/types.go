package server

import "github.com/lnbridge/swap-gateway/internal/models"

// SwapResponse is the success shape of POST /api/atomic-swap.
type SwapResponse struct {
	Success              bool    `json:"success"`
	SwapID               string  `json:"swapId"`
	InputAmount          string  `json:"inputAmount"`  // "<amount> <TICKER>"
	OutputAmount         string  `json:"outputAmount"` // "<amount> <unit>"
	FinalState           string  `json:"finalState"`
	LightningPaymentHash *string `json:"lightningPaymentHash"`
	RequestID            string  `json:"requestId"`
	Timestamp            string  `json:"timestamp"` // ISO-8601
}

// ErrorBody is the structured error carried by every failure response.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	SwapID    string `json:"swapId,omitempty"`
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
	Details   any    `json:"details,omitempty"` // dev mode only
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// HealthResponse reports liveness and collaborator reachability.
type HealthResponse struct {
	OK        bool   `json:"ok"`
	Ledger    bool   `json:"ledger"`
	Lightning bool   `json:"lightning"`
	Timestamp string `json:"timestamp"`
}

// TokenInfo is one catalog entry in GET /api/tokens.
type TokenInfo struct {
	Address  string `json:"address"`
	Ticker   string `json:"ticker"`
	Decimals int32  `json:"decimals"`
}

// TokensResponse lists the resolvable asset catalog.
type TokensResponse struct {
	Tokens []TokenInfo `json:"tokens"`
}

// BalanceResponse is the formatted ledger balance for one token.
type BalanceResponse struct {
	Token     string `json:"token"`
	Ticker    string `json:"ticker"`
	Balance   string `json:"balance"` // human units
	Raw       string `json:"raw"`     // smallest units
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
}

// RecentSwapsResponse lists finished swaps, newest first.
type RecentSwapsResponse struct {
	Items []models.SwapRecord `json:"items"`
}
