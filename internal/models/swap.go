// Package models holds the wire/storage shapes shared by the cache and
// the API layer.
package models

import "time"

// SwapRecord is the compact history entry kept for finished sessions.
type SwapRecord struct {
	SwapID       string    `json:"swap_id"`
	RequestID    string    `json:"request_id"`
	Pair         string    `json:"pair"` // e.g. "TBTC-BTC-LN"
	Direction    string    `json:"direction"`
	FinalState   string    `json:"final_state"`
	InputAmount  uint64    `json:"input_amount"`
	OutputAmount uint64    `json:"output_amount"`
	PaymentHash  string    `json:"payment_hash,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	FinishedAt   time.Time `json:"finished_at"`
}
