// Package routes maps caller-supplied token identifiers onto tradeable
// pairs the orchestrator can execute.
package routes

import (
	"strings"

	"github.com/lnbridge/swap-gateway/internal/faults"
	"github.com/lnbridge/swap-gateway/internal/swap"
)

// LightningAsset is the payment-network leg of every pair. Amounts on
// this leg are denominated in satoshis.
var LightningAsset = swap.Asset{Ticker: "BTC-LN", Decimals: 0}

// Catalog is the set of ledger assets currently tradeable. It is
// populated once at startup from the swap-execution provider and
// read-only afterwards, so concurrent lookups need no locking.
type Catalog struct {
	byAddress map[string]swap.Asset
	ordered   []swap.Asset
}

// NewCatalog indexes assets by lowercased address.
func NewCatalog(assets []swap.Asset) *Catalog {
	c := &Catalog{byAddress: make(map[string]swap.Asset, len(assets))}
	for _, a := range assets {
		key := strings.ToLower(a.Address)
		if _, dup := c.byAddress[key]; dup {
			continue
		}
		c.byAddress[key] = a
		c.ordered = append(c.ordered, a)
	}
	return c
}

// Lookup returns the asset for a token address, if known.
func (c *Catalog) Lookup(address string) (swap.Asset, bool) {
	a, ok := c.byAddress[strings.ToLower(address)]
	return a, ok
}

// Assets returns the catalog in registration order.
func (c *Catalog) Assets() []swap.Asset {
	out := make([]swap.Asset, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Resolver turns (token address, direction) into a Pair. Resolution is
// deterministic: the same inputs always produce an equal Pair within one
// process. Catalog staleness is an operator concern, not retried here.
type Resolver struct {
	catalog          *Catalog
	lightningEnabled bool
}

func NewResolver(catalog *Catalog, lightningEnabled bool) *Resolver {
	return &Resolver{catalog: catalog, lightningEnabled: lightningEnabled}
}

// LightningAvailable reports whether the payment leg is serviceable.
func (r *Resolver) LightningAvailable() bool { return r.lightningEnabled }

// Resolve fails with TOKEN_NOT_FOUND when the asset is not in the
// catalog and LIGHTNING_NOT_AVAILABLE when the payment leg is down.
func (r *Resolver) Resolve(tokenAddress string, dir swap.Direction) (*swap.Pair, *faults.Fault) {
	if !r.lightningEnabled {
		return nil, faults.New(faults.CodeLightningNotAvailable, "")
	}

	asset, ok := r.catalog.Lookup(tokenAddress)
	if !ok {
		return nil, faults.New(faults.CodeTokenNotFound, "")
	}

	var pair swap.Pair
	switch dir {
	case swap.DirectionLightningToLedger:
		pair = swap.Pair{Source: LightningAsset, Destination: asset}
	default:
		pair = swap.Pair{Source: asset, Destination: LightningAsset}
	}

	// A pair must always cross legs; the catalog never contains the
	// Lightning pseudo-asset, so this only trips on a corrupted catalog.
	if pair.Source == pair.Destination {
		return nil, faults.New(faults.CodeInternal, "")
	}
	return &pair, nil
}
