package swap

import (
	"context"
	"math/big"
	"time"
)

// Call is one ledger invocation submitted through the signing authority.
type Call struct {
	To       string   `json:"to"`
	Selector string   `json:"selector"`
	Calldata []string `json:"calldata,omitempty"`
}

// SigningAuthority is the narrow contract to the ledger account
// provider. The orchestrator never inspects anything past it.
type SigningAuthority interface {
	Address() string
	Nonce(ctx context.Context) (uint64, error)
	Execute(ctx context.Context, calls []Call) (txHash string, err error)
	Balance(ctx context.Context, tokenAddress string) (*big.Int, error)
}

// Quote is the provider's time-bounded price/fee offer.
type Quote struct {
	SessionID     string
	InputAmount   uint64
	InputAfterFee uint64
	OutputAmount  uint64
	PaymentHash   string
	ValidUntil    time.Time
}

// Executor is the narrow contract to the swap-execution provider. Its
// reported states are authoritative for session transitions; the
// orchestrator adds the guard rails, not the protocol.
type Executor interface {
	// Quote computes price and fee for a pair and amount. Failing to
	// produce a quote (amount outside pair min/max, no route) is an error.
	Quote(ctx context.Context, pair Pair, amount uint64, exactIn bool, source, destination string) (*Quote, error)

	// Commit broadcasts the ledger-side locking transaction. Not
	// idempotent: a retry risks double-spending, so callers get exactly
	// one attempt per session.
	Commit(ctx context.Context, sessionID string, auth SigningAuthority) error

	// AwaitSettlement blocks until the counterparty leg settles or ctx
	// expires. Returns nil on settlement and ctx.Err() on expiry.
	AwaitSettlement(ctx context.Context, sessionID string) error

	// Refund reclaims the ledger-side commitment after a timeout.
	Refund(ctx context.Context, sessionID string, auth SigningAuthority) error

	// State returns the provider's view of the session.
	State(ctx context.Context, sessionID string) (string, error)

	// Release tears down the provider-side session. Called on every exit
	// path; must be safe to call on already-finished sessions.
	Release(ctx context.Context, sessionID string) error
}
