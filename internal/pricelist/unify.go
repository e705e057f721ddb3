package pricelist

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Unify merges registrar pricelists into one cheapest-price-wins table.
//
// Only the regular band of each TLD contributes candidates. A provider's
// ranking metric for a TLD is its create price when present, otherwise the
// minimum across its regular operations; a provider with no regular band
// never wins. Ties resolve to the lexicographically smaller provider id so
// runs over identical inputs produce identical output.
//
// providers restricts and orders the inputs considered; nil means every key
// of lists, in sorted order.
func Unify(lists map[string]*Pricelist, providers []string) []UnifiedEntry {
	providers = normalizeProviders(lists, providers)

	tlds := map[string]struct{}{}
	for _, id := range providers {
		pl := lists[id]
		if pl == nil {
			continue
		}
		for _, item := range pl.Items {
			tlds[item.Tld] = struct{}{}
		}
	}

	var out []UnifiedEntry
	for tld := range tlds {
		entry, ok := unifyTld(lists, providers, tld)
		if ok {
			out = append(out, entry)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Tld < out[j].Tld })
	return out
}

func unifyTld(lists map[string]*Pricelist, providers []string, tld string) (UnifiedEntry, bool) {
	best := UnifiedEntry{Tld: tld}
	bestMetric := math.Inf(1)
	currencies := map[string]CurrencyPrices{}
	currencyBest := map[string]float64{}

	for _, id := range providers {
		pl := lists[id]
		if pl == nil {
			continue
		}
		item := pl.Item(tld)
		if item == nil {
			continue
		}
		regular := item.Band(BandRegular)
		if regular == nil || len(regular.Operations) == 0 {
			continue
		}

		metric := rankingMetric(regular.Operations)
		if metric < bestMetric || (metric == bestMetric && id < best.Provider) {
			bestMetric = metric
			best.Provider = id
			best.RegularPrice = regular.Operations
			best.Currency = pl.Currency
		}

		if cur := pl.Currency; cur != "" {
			if prev, seen := currencyBest[cur]; !seen || metric < prev {
				currencyBest[cur] = metric
				currencies[cur] = CurrencyPrices{RegularPrice: regular.Operations}
			}
		}
	}

	if math.IsInf(bestMetric, 1) {
		return UnifiedEntry{}, false
	}
	if len(currencies) > 1 {
		best.Currencies = currencies
	}
	return best, true
}

// rankingMetric is the create price when quoted, otherwise the cheapest
// operation on offer.
func rankingMetric(ops OperationPriceMap) float64 {
	if v, ok := ops[OpCreate]; ok {
		return v
	}
	min := math.Inf(1)
	for _, v := range ops {
		if v < min {
			min = v
		}
	}
	return min
}

// CheapestRow is one flat CSV row of the per-operation export.
type CheapestRow struct {
	Tld      string
	Provider string
	Amount   float64
	Currency string
}

// CheapestRows picks, per TLD, the provider with the lowest regular-band
// price for one specific operation (not the aggregate metric). Ties break by
// provider id; rows sort by TLD then provider.
func CheapestRows(lists map[string]*Pricelist, op string, providers []string) []CheapestRow {
	providers = normalizeProviders(lists, providers)

	best := map[string]CheapestRow{}
	for _, id := range providers {
		pl := lists[id]
		if pl == nil {
			continue
		}
		for _, item := range pl.Items {
			regular := item.Band(BandRegular)
			if regular == nil {
				continue
			}
			amount, ok := regular.Operations[op]
			if !ok {
				continue
			}
			prev, seen := best[item.Tld]
			if !seen || amount < prev.Amount || (amount == prev.Amount && id < prev.Provider) {
				best[item.Tld] = CheapestRow{
					Tld:      item.Tld,
					Provider: id,
					Amount:   amount,
					Currency: pl.Currency,
				}
			}
		}
	}

	rows := make([]CheapestRow, 0, len(best))
	for _, r := range best {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Tld != rows[j].Tld {
			return rows[i].Tld < rows[j].Tld
		}
		return rows[i].Provider < rows[j].Provider
	})
	return rows
}

// RenderCSV serializes rows with a header line. Fields are comma-joined with
// no quoting; none of the fields may contain commas.
func RenderCSV(rows []CheapestRow, withCurrency bool) string {
	var b strings.Builder
	if withCurrency {
		b.WriteString("tld,provider,amount,currency\n")
	} else {
		b.WriteString("tld,provider,amount\n")
	}
	for _, r := range rows {
		b.WriteString(r.Tld)
		b.WriteByte(',')
		b.WriteString(r.Provider)
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(r.Amount, 'f', -1, 64))
		if withCurrency {
			b.WriteByte(',')
			b.WriteString(r.Currency)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func normalizeProviders(lists map[string]*Pricelist, providers []string) []string {
	if len(providers) > 0 {
		return providers
	}
	keys := make([]string, 0, len(lists))
	for k := range lists {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
