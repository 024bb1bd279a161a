package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lnbridge/swap-gateway/internal/correlation"
	"github.com/lnbridge/swap-gateway/internal/faults"
)

// OrchestratorConfig bounds one swap run.
type OrchestratorConfig struct {
	// AwaitTimeout caps the counterparty settlement wait.
	AwaitTimeout time.Duration

	// MaxFeePPM rejects quotes whose fee exceeds this many parts-per-
	// million of the input amount.
	MaxFeePPM int64
}

// DefaultOrchestratorConfig returns the deployment defaults.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		AwaitTimeout: 30 * time.Minute,
		MaxFeePPM:    20000, // 2%
	}
}

// Orchestrator drives one session at a time through the state machine.
// It never retries value-moving operations; retryability is surfaced on
// the classified fault for the caller to act on.
type Orchestrator struct {
	exec   Executor
	auth   SigningAuthority
	cfg    OrchestratorConfig
	logger *logrus.Logger
}

func NewOrchestrator(exec Executor, auth SigningAuthority, cfg OrchestratorConfig, logger *logrus.Logger) *Orchestrator {
	if cfg.AwaitTimeout <= 0 {
		cfg.AwaitTimeout = DefaultOrchestratorConfig().AwaitTimeout
	}
	if cfg.MaxFeePPM <= 0 {
		cfg.MaxFeePPM = DefaultOrchestratorConfig().MaxFeePPM
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Orchestrator{exec: exec, auth: auth, cfg: cfg, logger: logger}
}

func (o *Orchestrator) log(ctx context.Context, s *Session) *logrus.Entry {
	entry := correlation.Logger(ctx, o.logger)
	if s != nil && s.ID != "" {
		entry = entry.WithField("swap_id", s.ID)
	}
	return entry
}

// Quote opens a session and requests a price/fee computation. On provider
// failure the session ends FAILED with SWAP_EXECUTION_FAILED.
func (o *Orchestrator) Quote(ctx context.Context, pair Pair, intent Intent) (*Session, error) {
	s := newSession(pair, intent)

	q, err := o.exec.Quote(ctx, pair, intent.Amount, intent.ExactIn, intent.Source, intent.Destination)
	if err != nil {
		fault := faults.Wrap(faults.CodeSwapExecutionFailed, "provider could not produce a quote", err)
		_ = s.transitionTo(StateFailed, fault)
		o.log(ctx, s).WithError(err).Warn("quote failed")
		return s, fault
	}

	s.ID = q.SessionID
	s.InputAmount = q.InputAmount
	s.InputAfterFee = q.InputAfterFee
	s.OutputAmount = q.OutputAmount
	s.PaymentHash = q.PaymentHash
	s.ValidUntil = q.ValidUntil

	if fault := o.checkFee(q); fault != nil {
		_ = s.transitionTo(StateFailed, fault)
		o.log(ctx, s).WithField("fee_ppm_limit", o.cfg.MaxFeePPM).Warn("quote rejected by fee guard")
		return s, fault
	}

	if err := s.transitionTo(StateQuoted, nil); err != nil {
		fault := faults.Wrap(faults.CodeInternal, "", err)
		return s, fault
	}

	o.log(ctx, s).WithFields(logrus.Fields{
		"input":  q.InputAmount,
		"output": q.OutputAmount,
	}).Info("quote obtained")
	return s, nil
}

// checkFee enforces the configured pricing-deviation ceiling.
func (o *Orchestrator) checkFee(q *Quote) *faults.Fault {
	if q.InputAmount == 0 || q.InputAfterFee > q.InputAmount {
		return faults.New(faults.CodeSwapExecutionFailed, "provider returned an inconsistent quote")
	}
	fee := q.InputAmount - q.InputAfterFee
	feePPM := new(big.Int).Div(
		new(big.Int).Mul(new(big.Int).SetUint64(fee), big.NewInt(1_000_000)),
		new(big.Int).SetUint64(q.InputAmount),
	)
	if feePPM.Cmp(big.NewInt(o.cfg.MaxFeePPM)) > 0 {
		return faults.New(faults.CodeSwapExecutionFailed, "quote fee exceeds the configured price deviation limit")
	}
	return nil
}

// Commit broadcasts the ledger-side locking transaction. Only legal from
// QUOTED; a stale quote moves the session to EXPIRED without touching
// the provider. Commit is never retried here.
func (o *Orchestrator) Commit(ctx context.Context, s *Session) error {
	if s.State() != StateQuoted {
		return faults.Wrap(faults.CodeInternal, "",
			fmt.Errorf("commit is only legal from %s, session is %s", StateQuoted, s.State()))
	}

	if !s.ValidUntil.IsZero() && time.Now().After(s.ValidUntil) {
		fault := faults.New(faults.CodeSwapExecutionFailed, "quote expired before commit")
		_ = s.transitionTo(StateExpired, fault)
		o.log(ctx, s).Warn("quote expired before commit")
		return fault
	}

	if err := s.transitionTo(StateCommitting, nil); err != nil {
		return faults.Wrap(faults.CodeInternal, "", err)
	}

	if err := o.exec.Commit(ctx, s.ID, o.auth); err != nil {
		fault := faults.Classify(err)
		_ = s.transitionTo(StateFailed, fault)
		o.log(ctx, s).WithError(err).Error("commit failed")
		return fault
	}

	if err := s.transitionTo(StateAwaitingCounterparty, nil); err != nil {
		return faults.Wrap(faults.CodeInternal, "", err)
	}
	o.log(ctx, s).Info("ledger commitment broadcast")
	return nil
}

// AwaitCounterparty blocks until the counterparty leg settles or the
// configured timeout elapses. Timeout is a normal transition, never an
// error: the session lands in REFUNDABLE and the call returns nil.
// Cancellation of the caller's context gets the same treatment: the
// commitment is already broadcast, so aborting must leave the session
// reclaimable, never terminal.
func (o *Orchestrator) AwaitCounterparty(ctx context.Context, s *Session) error {
	if s.State() != StateAwaitingCounterparty {
		return faults.Wrap(faults.CodeInternal, "",
			fmt.Errorf("await is only legal from %s, session is %s", StateAwaitingCounterparty, s.State()))
	}

	wctx, cancel := context.WithTimeout(ctx, o.cfg.AwaitTimeout)
	defer cancel()

	err := o.exec.AwaitSettlement(wctx, s.ID)
	switch {
	case err == nil:
		if terr := s.transitionTo(StateSettled, nil); terr != nil {
			return faults.Wrap(faults.CodeInternal, "", terr)
		}
		o.log(ctx, s).Info("counterparty settled")
		return nil

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		_ = s.transitionTo(StateTimedOut, nil)
		_ = s.transitionTo(StateRefundable, nil)
		o.log(ctx, s).WithField("timeout", o.cfg.AwaitTimeout.String()).Warn("counterparty leg wait ended without settlement")
		return nil

	default:
		fault := faults.Classify(err)
		_ = s.transitionTo(StateFailed, fault)
		o.log(ctx, s).WithError(err).Error("settlement wait failed")
		return fault
	}
}

// Refund reclaims the ledger-side commitment. Only legal from REFUNDABLE.
func (o *Orchestrator) Refund(ctx context.Context, s *Session) error {
	if s.State() != StateRefundable {
		return faults.Wrap(faults.CodeInternal, "",
			fmt.Errorf("refund is only legal from %s, session is %s", StateRefundable, s.State()))
	}

	if err := o.exec.Refund(ctx, s.ID, o.auth); err != nil {
		fault := faults.Classify(err)
		_ = s.transitionTo(StateFailed, fault)
		o.log(ctx, s).WithError(err).Error("refund failed")
		return fault
	}

	if err := s.transitionTo(StateRefunded, nil); err != nil {
		return faults.Wrap(faults.CodeInternal, "", err)
	}
	o.log(ctx, s).Info("ledger commitment refunded")
	return nil
}

// Execute drives a full swap: quote, commit, await, classify. The
// provider session is released on every exit path. A counterparty
// timeout surfaces as PAYMENT_TIMEOUT with the session left REFUNDABLE;
// the commitment stays reclaimable through Refund.
func (o *Orchestrator) Execute(ctx context.Context, pair Pair, intent Intent) (*Session, *faults.Fault) {
	s, err := o.Quote(ctx, pair, intent)
	if err != nil {
		o.release(ctx, s)
		return s, faults.Classify(err)
	}
	defer o.release(ctx, s)

	if err := o.Commit(ctx, s); err != nil {
		return s, faults.Classify(err)
	}

	if err := o.AwaitCounterparty(ctx, s); err != nil {
		return s, faults.Classify(err)
	}

	switch s.State() {
	case StateSettled:
		return s, nil
	case StateRefundable:
		return s, faults.New(faults.CodePaymentTimeout, "")
	default:
		return s, faults.New(faults.CodeInternal, "")
	}
}

// release tears down the provider-side session, best effort. Uses a
// detached context so teardown survives the request being canceled.
func (o *Orchestrator) release(ctx context.Context, s *Session) {
	if s == nil || s.ID == "" {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.exec.Release(rctx, s.ID); err != nil {
		o.log(ctx, s).WithError(err).Warn("failed to release provider session")
	}
}
