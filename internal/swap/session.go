// Package swap contains the session state machine and the orchestrator
// that drives one exchange from intent to a terminal outcome. It talks to
// the ledger and the swap-execution provider only through the narrow
// ports declared in provider.go.
package swap

import (
	"fmt"
	"time"

	"github.com/lnbridge/swap-gateway/internal/faults"
)

// State is a swap session lifecycle state.
type State string

const (
	StateQuoting              State = "QUOTING"
	StateQuoted               State = "QUOTED"
	StateCommitting           State = "COMMITTING"
	StateAwaitingCounterparty State = "AWAITING_COUNTERPARTY"
	StateSettled              State = "SETTLED"
	StateTimedOut             State = "TIMED_OUT"
	StateRefundable           State = "REFUNDABLE"
	StateRefunded             State = "REFUNDED"
	StateFailed               State = "FAILED"
	StateExpired              State = "EXPIRED"
)

// Terminal reports whether a session may never leave this state.
func (s State) Terminal() bool {
	switch s {
	case StateSettled, StateRefunded, StateFailed, StateExpired:
		return true
	}
	return false
}

// transitions is the full legal transition table. FAILED is reachable
// from any non-terminal state and is added in canTransition.
var transitions = map[State][]State{
	StateQuoting:              {StateQuoted},
	StateQuoted:               {StateCommitting, StateExpired},
	StateCommitting:           {StateAwaitingCounterparty},
	StateAwaitingCounterparty: {StateSettled, StateTimedOut},
	StateTimedOut:             {StateRefundable},
	StateRefundable:           {StateRefunded},
}

func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Direction distinguishes which leg the caller funds.
type Direction string

const (
	DirectionLedgerToLightning Direction = "LEDGER_TO_LIGHTNING"
	DirectionLightningToLedger Direction = "LIGHTNING_TO_LEDGER"
)

// Intent is the validated, immutable request: what the caller wants
// swapped, for whom, and whether Amount is the side they send (ExactIn)
// or the side they want received.
type Intent struct {
	Amount      uint64 // smallest unit of the amount leg
	Direction   Direction
	Source      string // funding party identifier (ledger address or node)
	Destination string // invoice, address or LNURL on the receiving leg
	ExactIn     bool
	Comment     string
}

// Asset is an opaque tradeable-asset handle. Beyond equality the
// orchestrator only uses Ticker and Decimals for display formatting.
type Asset struct {
	Address  string // 0x-prefixed 66-char hex for ledger assets, empty for the Lightning leg
	Ticker   string
	Decimals int32
}

// Pair is a resolved tradeable pair. Source and Destination are never
// equal; the resolver enforces this at construction.
type Pair struct {
	Source      Asset
	Destination Asset
}

// Outcome records how a session ended. Populated exactly once, when the
// session enters a terminal state.
type Outcome struct {
	State State
	Fault *faults.Fault
}

// Session is one in-flight exchange. It is owned by the request that
// created it and must not be shared across goroutines.
type Session struct {
	ID     string // assigned by the swap-execution provider once a quote exists
	Pair   Pair
	Intent Intent

	InputAmount   uint64 // before fee, smallest unit of Pair.Source
	InputAfterFee uint64
	OutputAmount  uint64 // smallest unit of Pair.Destination
	PaymentHash   string
	ValidUntil    time.Time // quote validity bound
	CreatedAt     time.Time

	state   State
	outcome *Outcome
}

func newSession(pair Pair, intent Intent) *Session {
	return &Session{
		Pair:      pair,
		Intent:    intent,
		CreatedAt: time.Now(),
		state:     StateQuoting,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Outcome returns the terminal outcome, nil while the session is live or
// parked in REFUNDABLE.
func (s *Session) Outcome() *Outcome { return s.outcome }

// transitionTo moves the session to the next state, rejecting anything
// the table does not allow. Entering a terminal state seals the outcome.
func (s *Session) transitionTo(to State, fault *faults.Fault) error {
	if !canTransition(s.state, to) {
		return fmt.Errorf("illegal transition %s -> %s for session %q", s.state, to, s.ID)
	}
	s.state = to
	if to.Terminal() && s.outcome == nil {
		s.outcome = &Outcome{State: to, Fault: fault}
	}
	return nil
}
