package nira

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"strings"

	"github.com/namewiz/registrar-pricelist/internal/fetch"
	"github.com/namewiz/registrar-pricelist/internal/pricelist"
)

// feedEntry is one currency of a floatrates-style daily feed: rate is how
// many units of the currency buy one USD.
type feedEntry struct {
	Code        string  `json:"code"`
	Rate        float64 `json:"rate"`
	InverseRate float64 `json:"inverseRate"`
}

// CountryCurrency is one row of a previously generated local exchange-rate
// table.
type CountryCurrency struct {
	CountryCode    string  `json:"countryCode"`
	CurrencyName   string  `json:"currencyName"`
	CurrencySymbol string  `json:"currencySymbol"`
	CurrencyCode   string  `json:"currencyCode"`
	ExchangeRate   float64 `json:"exchangeRate"`
	InverseRate    float64 `json:"inverseRate"`
}

// resolveRate returns the local-per-USD rate for the base currency, from the
// local table when configured, from the live feed otherwise. The second
// return value names the source used.
func (a *Adapter) resolveRate(ctx context.Context) (float64, string, error) {
	if a.opts.FXTablePath != "" {
		rate, err := rateFromTableFile(a.opts.FXTablePath, a.opts.BaseCurrency)
		if err != nil {
			return 0, "", err
		}
		return rate, a.opts.FXTablePath, nil
	}

	rate, err := rateFromFeed(ctx, a.opts.Client, a.opts.FXFeedURL, a.opts.BaseCurrency)
	if err != nil {
		return 0, "", err
	}
	return rate, a.opts.FXFeedURL, nil
}

func rateFromFeed(ctx context.Context, client *fetch.Client, feedURL, code string) (float64, error) {
	log.Printf("nira: fetching fx feed %s", feedURL)

	var feed map[string]feedEntry
	if err := client.GetJSON(ctx, feedURL, &feed); err != nil {
		return 0, err
	}

	entry, ok := feed[strings.ToLower(code)]
	if !ok {
		entry, ok = feed[strings.ToUpper(code)]
	}
	if !ok {
		return 0, fmt.Errorf("%w: fx feed has no %s entry", pricelist.ErrUpstreamFormat, code)
	}
	return usableRate(entry.Rate, code)
}

func rateFromTableFile(path, code string) (float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: fx table %s: %v", pricelist.ErrUpstreamFormat, path, err)
	}

	var entries []CountryCurrency
	if err := json.Unmarshal(raw, &entries); err != nil {
		return 0, fmt.Errorf("%w: fx table %s: %v", pricelist.ErrUpstreamFormat, path, err)
	}

	for _, e := range entries {
		if strings.EqualFold(e.CurrencyCode, code) {
			return usableRate(e.ExchangeRate, code)
		}
	}
	return 0, fmt.Errorf("%w: fx table %s has no %s entry", pricelist.ErrUpstreamFormat, path, code)
}

func usableRate(rate float64, code string) (float64, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return 0, fmt.Errorf("%w: unusable %s rate %v", pricelist.ErrUpstreamFormat, code, rate)
	}
	return rate, nil
}
