// Package admission rejects malformed or excessive requests before any
// network call is made on their behalf.
package admission

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/lnbridge/swap-gateway/internal/faults"
	"github.com/lnbridge/swap-gateway/internal/swap"
)

// MaxBodyBytes is the request body ceiling enforced at the transport.
const MaxBodyBytes = 1 << 20 // 1 MiB

// tokenAddressRe matches the ledger's fixed-length token address format.
var tokenAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// Amount accepts both string and numeric JSON encodings. Decoding never
// fails; ValidateSwapRequest decides what counts as a positive integer.
type Amount string

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*a = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*a = Amount(strings.TrimSpace(str))
		return nil
	}
	*a = Amount(s)
	return nil
}

// SwapRequest is the raw wire shape of POST /api/atomic-swap.
type SwapRequest struct {
	AmountSats           Amount `json:"amountSats"`
	LightningDestination string `json:"lightningDestination"`
	TokenAddress         string `json:"tokenAddress"`
	ExactIn              bool   `json:"exactIn"`
	Comment              string `json:"comment,omitempty"`
}

// ValidateSwapRequest applies the admission checks in fixed order and
// returns an immutable Intent on success. First violation wins.
func ValidateSwapRequest(req SwapRequest) (*swap.Intent, *faults.Fault) {
	req.LightningDestination = strings.TrimSpace(req.LightningDestination)
	req.TokenAddress = strings.TrimSpace(req.TokenAddress)

	// 1. Required fields.
	if req.AmountSats == "" || req.LightningDestination == "" || req.TokenAddress == "" {
		return nil, faults.New(faults.CodeMissingRequiredFields, "")
	}

	// 2. Amount parses as a positive integer.
	amount, err := strconv.ParseUint(string(req.AmountSats), 10, 64)
	if err != nil || amount == 0 {
		return nil, faults.New(faults.CodeInvalidAmount, "")
	}

	// 3. Token address format.
	if !tokenAddressRe.MatchString(req.TokenAddress) {
		return nil, faults.New(faults.CodeInvalidTokenAddress, "")
	}

	return &swap.Intent{
		Amount:      amount,
		Direction:   swap.DirectionLedgerToLightning,
		Destination: req.LightningDestination,
		ExactIn:     req.ExactIn,
		Comment:     strings.TrimSpace(req.Comment),
	}, nil
}

// ValidTokenAddress reports whether s is a 0x-prefixed 66-char hex id.
func ValidTokenAddress(s string) bool {
	return tokenAddressRe.MatchString(s)
}
