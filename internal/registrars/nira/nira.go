// Package nira generates a price list for NiRA-accredited .ng registrations
// from the published naira fee schedule. The naira amounts rarely change, so
// they live in a fixed table here; the output is converted to USD at a live
// (or locally cached) exchange rate on every generation.
package nira

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/namewiz/registrar-pricelist/internal/fetch"
	"github.com/namewiz/registrar-pricelist/internal/price"
	"github.com/namewiz/registrar-pricelist/internal/pricelist"
)

const (
	defaultFeedURL      = "https://www.floatrates.com/daily/usd.json"
	defaultBaseCurrency = "NGN"
)

// defaultFees is the published registration fee schedule in naira. Create,
// renew and transfer are billed at the same rate.
var defaultFees = map[string]float64{
	"ng":      15000,
	"com.ng":  9000,
	"org.ng":  9000,
	"net.ng":  9000,
	"edu.ng":  9000,
	"gov.ng":  9000,
	"name.ng": 1000,
	"i.ng":    25000,
	"mobi.ng": 9000,
	"sch.ng":  9000,
}

// Options configures the adapter. Zero values fall back to the published
// defaults, so Options{} is a working production configuration.
type Options struct {
	Key  string
	Name string

	// Fees maps TLD to its fee in BaseCurrency.
	Fees map[string]float64

	BaseCurrency string

	// FXFeedURL is a floatrates-style daily feed keyed by lowercase
	// currency code. Used when FXTablePath is empty.
	FXFeedURL string

	// FXTablePath points at a local JSON array of CountryCurrency rows.
	// When set it takes precedence over the live feed.
	FXTablePath string

	Client *fetch.Client
}

type Adapter struct {
	opts Options
}

func New(opts Options) (*Adapter, error) {
	if opts.Key == "" {
		opts.Key = "nira"
	}
	if opts.Name == "" {
		opts.Name = "NiRA"
	}
	if opts.Fees == nil {
		opts.Fees = defaultFees
	}
	if len(opts.Fees) == 0 {
		return nil, fmt.Errorf("%w: nira fee table is empty", pricelist.ErrConfiguration)
	}
	if opts.BaseCurrency == "" {
		opts.BaseCurrency = defaultBaseCurrency
	}
	if opts.FXFeedURL == "" {
		opts.FXFeedURL = defaultFeedURL
	}
	if opts.Client == nil {
		opts.Client = fetch.New(fetch.Options{})
	}
	return &Adapter{opts: opts}, nil
}

func (a *Adapter) Key() string    { return a.opts.Key }
func (a *Adapter) Name() string   { return a.opts.Name }
func (a *Adapter) Source() string { return a.opts.FXFeedURL }

// Generate converts the fixed fee table to USD at the current exchange rate.
// A missing or unusable rate fails the whole generation: emitting naira
// amounts as dollars would silently corrupt every downstream comparison.
func (a *Adapter) Generate(ctx context.Context) (*pricelist.Pricelist, error) {
	rate, source, err := a.resolveRate(ctx)
	if err != nil {
		return nil, fmt.Errorf("nira exchange rate: %w", err)
	}
	log.Printf("nira: using rate ₦%.2f = $1.00 (source %s)", rate, source)

	tlds := make([]string, 0, len(a.opts.Fees))
	for tld := range a.opts.Fees {
		tlds = append(tlds, tld)
	}
	sort.Strings(tlds)

	items := make([]pricelist.TldPricing, 0, len(tlds))
	for _, tld := range tlds {
		usd := price.Round2(a.opts.Fees[tld] / rate)
		ops := pricelist.OperationPriceMap{
			pricelist.OpCreate:   usd,
			pricelist.OpRenew:    usd,
			pricelist.OpTransfer: usd,
		}
		items = append(items, pricelist.TldPricing{
			Tld: tld,
			Bands: []pricelist.PriceBand{
				{ID: pricelist.BandRegular, Label: "Regular", Operations: ops},
			},
			Extras: map[string]interface{}{
				"localPrice":    a.opts.Fees[tld],
				"localCurrency": a.opts.BaseCurrency,
			},
		})
	}

	return &pricelist.Pricelist{
		RegistrarID:   a.opts.Key,
		RegistrarName: a.opts.Name,
		Currency:      "USD",
		FetchedAt:     time.Now().UTC(),
		Source:        source,
		Items:         items,
		Meta: map[string]interface{}{
			"exchangeRate": fmt.Sprintf("₦%.2f = $1.00", rate),
			"rateSource":   source,
			"baseCurrency": a.opts.BaseCurrency,
		},
	}, nil
}
