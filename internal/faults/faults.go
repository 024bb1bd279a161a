// Package faults defines the closed error taxonomy for the gateway.
// Every failure that crosses a layer boundary is converted into a Fault
// with a stable code, a caller-safe message, and a fixed HTTP status;
// raw provider errors never reach API responses directly.
package faults

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code identifies a failure class. The set is closed: new failure modes
// must be mapped onto one of these, not invented per call site.
type Code string

const (
	CodeMissingRequiredFields Code = "MISSING_REQUIRED_FIELDS"
	CodeInvalidAmount         Code = "INVALID_AMOUNT"
	CodeInvalidTokenAddress   Code = "INVALID_TOKEN_ADDRESS"
	CodeInvalidContentType    Code = "INVALID_CONTENT_TYPE"
	CodeRequestTooLarge       Code = "REQUEST_TOO_LARGE"
	CodeTokenNotFound         Code = "TOKEN_NOT_FOUND"
	CodeLightningNotAvailable Code = "LIGHTNING_NOT_AVAILABLE"
	CodeInsufficientBalance   Code = "INSUFFICIENT_BALANCE"
	CodePaymentTimeout        Code = "PAYMENT_TIMEOUT"
	CodeTimeout               Code = "TIMEOUT_ERROR"
	CodeNetwork               Code = "NETWORK_ERROR"
	CodeRPCConnectionFailed   Code = "RPC_CONNECTION_FAILED"
	CodeSwapExecutionFailed   Code = "SWAP_EXECUTION_FAILED"
	CodeRateLimitExceeded     Code = "RATE_LIMIT_EXCEEDED"
	CodeConfiguration         Code = "CONFIGURATION_ERROR"
	CodeInternal              Code = "INTERNAL_SERVER_ERROR"
)

// statusByCode is the only place HTTP statuses are assigned to codes.
var statusByCode = map[Code]int{
	CodeMissingRequiredFields: http.StatusBadRequest,
	CodeInvalidAmount:         http.StatusBadRequest,
	CodeInvalidTokenAddress:   http.StatusBadRequest,
	CodeInvalidContentType:    http.StatusUnsupportedMediaType,
	CodeRequestTooLarge:       http.StatusRequestEntityTooLarge,
	CodeTokenNotFound:         http.StatusBadRequest,
	CodeLightningNotAvailable: http.StatusServiceUnavailable,
	CodeInsufficientBalance:   http.StatusBadRequest,
	CodePaymentTimeout:        http.StatusRequestTimeout,
	CodeTimeout:               http.StatusRequestTimeout,
	CodeNetwork:               http.StatusServiceUnavailable,
	CodeRPCConnectionFailed:   http.StatusServiceUnavailable,
	CodeSwapExecutionFailed:   http.StatusInternalServerError,
	CodeRateLimitExceeded:     http.StatusTooManyRequests,
	CodeConfiguration:         http.StatusInternalServerError,
	CodeInternal:              http.StatusInternalServerError,
}

// defaultMessages are caller-safe and never carry provider internals.
var defaultMessages = map[Code]string{
	CodeMissingRequiredFields: "required fields are missing",
	CodeInvalidAmount:         "amount must be a positive integer",
	CodeInvalidTokenAddress:   "token address must be 0x-prefixed 66-character hex",
	CodeInvalidContentType:    "request body must be application/json",
	CodeRequestTooLarge:       "request body exceeds the size limit",
	CodeTokenNotFound:         "token is not in the available asset catalog",
	CodeLightningNotAvailable: "lightning network is not available",
	CodeInsufficientBalance:   "insufficient balance for this swap",
	CodePaymentTimeout:        "counterparty payment did not complete in time",
	CodeTimeout:               "operation timed out",
	CodeNetwork:               "network error while contacting an upstream service",
	CodeRPCConnectionFailed:   "ledger rpc node is unreachable",
	CodeSwapExecutionFailed:   "swap execution failed",
	CodeRateLimitExceeded:     "too many requests, slow down",
	CodeConfiguration:         "service is misconfigured",
	CodeInternal:              "internal server error",
}

var retryableCodes = map[Code]bool{
	CodeNetwork:               true,
	CodeTimeout:               true,
	CodePaymentTimeout:        true,
	CodeRPCConnectionFailed:   true,
	CodeLightningNotAvailable: true,
}

// Critical codes page an operator; everything else is a caller problem
// or an expected protocol outcome.
var criticalCodes = map[Code]bool{
	CodeConfiguration: true,
	CodeInternal:      true,
}

// Fault is the classification result for one observed failure. It is
// immutable after creation and safe to return to callers as-is.
type Fault struct {
	Code      Code
	Message   string
	Retryable bool
	Status    int
	cause     error
}

func (f *Fault) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Code, f.Message, f.cause)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

func (f *Fault) Unwrap() error { return f.cause }

// Cause returns the underlying error for dev-mode detail, nil otherwise.
func (f *Fault) Cause() error { return f.cause }

// New creates a Fault for the given code. An empty message selects the
// code's fixed caller-safe message.
func New(code Code, message string) *Fault {
	if message == "" {
		message = defaultMessages[code]
	}
	return &Fault{
		Code:      code,
		Message:   message,
		Retryable: retryableCodes[code],
		Status:    statusOf(code),
	}
}

// Wrap is New with the originating error attached for logging and
// dev-mode responses. The cause never leaks into Message.
func Wrap(code Code, message string, cause error) *Fault {
	f := New(code, message)
	f.cause = cause
	return f
}

func statusOf(code Code) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Retryable reports whether callers may safely retry failures of this code.
func Retryable(code Code) bool { return retryableCodes[code] }

// Critical reports whether this code indicates an operator-actionable fault.
func Critical(code Code) bool { return criticalCodes[code] }

// Classify converts an arbitrary error into a Fault. Errors that already
// carry a code pass through unchanged; otherwise the message is inspected
// for keyword signals, falling back to INTERNAL_SERVER_ERROR.
func Classify(err error) *Fault {
	if err == nil {
		return nil
	}

	var f *Fault
	if errors.As(err, &f) {
		return f
	}

	msg := strings.ToLower(err.Error())
	switch {
	case contains(msg, "deadline exceeded", "timed out", "timeout"):
		return Wrap(CodeTimeout, "", err)
	case contains(msg, "connection refused", "connection reset", "no such host", "broken pipe", "network"):
		return Wrap(CodeNetwork, "", err)
	case contains(msg, "rpc", "provider", "node"):
		return Wrap(CodeRPCConnectionFailed, "", err)
	case strings.Contains(msg, "insufficient") && contains(msg, "balance", "funds"):
		return Wrap(CodeInsufficientBalance, "", err)
	case contains(msg, "configuration", "environment", "env var", "missing"):
		return Wrap(CodeConfiguration, "", err)
	default:
		return Wrap(CodeInternal, "", err)
	}
}

func contains(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
