package executor

import "github.com/lnbridge/swap-gateway/internal/swap"

// Provider session states. The gateway's own state machine is stricter;
// these are only what the wire reports.
const (
	providerStateQuoted    = "quoted"
	providerStateCommitted = "committed"
	providerStateSettled   = "settled"
	providerStateRefunded  = "refunded"
	providerStateFailed    = "failed"
)

type assetsResponse struct {
	Assets []assetEntry `json:"assets"`
}

type assetEntry struct {
	Address  string `json:"address"`
	Ticker   string `json:"ticker"`
	Decimals int32  `json:"decimals"`
}

type quoteRequest struct {
	SourceAsset      string `json:"sourceAsset,omitempty"`
	SourceTicker     string `json:"sourceTicker"`
	DestinationAsset string `json:"destinationAsset,omitempty"`
	Amount           uint64 `json:"amount"`
	ExactIn          bool   `json:"exactIn"`
	Source           string `json:"source,omitempty"`
	Destination      string `json:"destination"`
}

type quoteResponse struct {
	SwapID        string `json:"swapId"`
	InputAmount   uint64 `json:"inputAmount"`
	InputAfterFee uint64 `json:"inputAfterFee"`
	OutputAmount  uint64 `json:"outputAmount"`
	PaymentHash   string `json:"paymentHash"`
	ValidUntil    int64  `json:"validUntil"` // unix seconds
}

type commitRequest struct {
	Address string `json:"address"`
}

// commitPrepareResponse carries the ledger calls the signing authority
// must execute to lock (or reclaim) funds for this session.
type commitPrepareResponse struct {
	Calls []swap.Call `json:"calls"`
}

type commitAckRequest struct {
	TxHash string `json:"txHash"`
}

type stateResponse struct {
	State string `json:"state"`
}
