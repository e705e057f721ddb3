// Package pricelist defines the canonical per-TLD pricing schema shared by
// every registrar adapter, the unification engine that merges registrars into
// a cheapest-price-wins table, and the service that caches generated lists.
package pricelist

import "time"

// Canonical operation keys. The schema is open-ended but these four are the
// only keys adapters emit today.
const (
	OpCreate   = "create"
	OpRenew    = "renew"
	OpTransfer = "transfer"
	OpRestore  = "restore"
)

// OperationPriceMap maps an operation name to a one-year price. Keys are
// present only when a valid price was extracted; absence means no price, a
// key never maps to NaN or a negative value.
type OperationPriceMap map[string]float64

// PriceBand is one pricing tier for a TLD (e.g. "regular", "member", "sale").
type PriceBand struct {
	ID         string            `json:"id"`
	Label      string            `json:"label"`
	Operations OperationPriceMap `json:"operations"`
}

// Band ids used across adapters. The regular band is always first and is the
// only band the unification engine reads.
const (
	BandRegular = "regular"
	BandMember  = "member"
	BandSale    = "sale"
)

// TldPricing holds all bands observed for one TLD. MaxYears is the longest
// registration term for which the source quoted any price; zero means the
// source does not model registration length. Extras is free-form metadata
// the source exposes beside the prices.
type TldPricing struct {
	Tld      string         `json:"tld"`
	MaxYears int            `json:"maxYears,omitempty"`
	Bands    []PriceBand    `json:"bands"`
	Extras   map[string]any `json:"extras,omitempty"`
}

// Pricelist is the canonical output of an adapter run. Items are unique by
// TLD and sorted ascending so generated artifacts stay diff-stable.
type Pricelist struct {
	RegistrarID   string         `json:"registrarId"`
	RegistrarName string         `json:"registrarName"`
	Currency      string         `json:"currency"`
	FetchedAt     time.Time      `json:"fetchedAt"`
	Source        string         `json:"source"`
	Items         []TldPricing   `json:"items"`
	Meta          map[string]any `json:"meta,omitempty"`
}

// Band returns the band with the given id, or nil.
func (t *TldPricing) Band(id string) *PriceBand {
	for i := range t.Bands {
		if t.Bands[i].ID == id {
			return &t.Bands[i]
		}
	}
	return nil
}

// Item returns the pricing entry for a TLD, or nil.
func (p *Pricelist) Item(tld string) *TldPricing {
	for i := range p.Items {
		if p.Items[i].Tld == tld {
			return &p.Items[i]
		}
	}
	return nil
}

// CurrencyPrices is the per-currency slice of a unified entry.
type CurrencyPrices struct {
	RegularPrice OperationPriceMap `json:"regularPrice"`
}

// UnifiedEntry is one row of the merged cheapest-price-wins table. It exists
// only in unified output and is never persisted as source of truth.
type UnifiedEntry struct {
	Provider     string                    `json:"provider"`
	Tld          string                    `json:"tld"`
	RegularPrice OperationPriceMap         `json:"regularPrice"`
	Currency     string                    `json:"currency,omitempty"`
	Currencies   map[string]CurrencyPrices `json:"currencies,omitempty"`
}
