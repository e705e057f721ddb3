// Package namecheap generates a pricelist from the registrar's XML API. Two
// request families are involved: a TLD metadata listing (capability flags,
// year limits) and a pricing listing issued once per action. Prices merge
// across actions at the (tld, operation) cell level, then TLDs explicitly
// marked not registerable through the API are filtered out.
package namecheap

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/namewiz/registrar-pricelist/internal/fetch"
	"github.com/namewiz/registrar-pricelist/internal/price"
	"github.com/namewiz/registrar-pricelist/internal/pricelist"
)

const defaultBaseURL = "https://api.namecheap.com/xml.response"

// pricingActions are issued in order; later actions overwrite earlier ones
// only per (tld, operation) cell.
var pricingActions = []string{"REGISTER", "RENEW", "TRANSFER", "REACTIVATE"}

// categoryOps maps an upstream category name to a canonical operation key.
var categoryOps = map[string]string{
	"register":   pricelist.OpCreate,
	"renew":      pricelist.OpRenew,
	"transfer":   pricelist.OpTransfer,
	"reactivate": pricelist.OpRestore,
}

type Options struct {
	BaseURL  string
	APIUser  string
	APIKey   string
	Username string // defaults to APIUser
	ClientIP string

	Client *fetch.Client
}

type Adapter struct {
	opts Options
}

func New(opts Options) (*Adapter, error) {
	opts.APIUser = strings.TrimSpace(opts.APIUser)
	opts.APIKey = strings.TrimSpace(opts.APIKey)
	if opts.APIUser == "" {
		return nil, fmt.Errorf("%w: namecheap api user missing", pricelist.ErrConfiguration)
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: namecheap api key missing", pricelist.ErrConfiguration)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Username == "" {
		opts.Username = opts.APIUser
	}
	if opts.ClientIP == "" {
		opts.ClientIP = "127.0.0.1"
	}
	if opts.Client == nil {
		opts.Client = fetch.New(fetch.Options{})
	}
	return &Adapter{opts: opts}, nil
}

func (a *Adapter) Key() string    { return "namecheap" }
func (a *Adapter) Name() string   { return "Namecheap" }
func (a *Adapter) Source() string { return a.opts.BaseURL }

// TldMeta is the per-TLD slice of the metadata listing.
type TldMeta struct {
	NonRealTime      bool
	MinRegisterYears int
	MaxRegisterYears int
	MinRenewYears    int
	MaxRenewYears    int
	MinTransferYears int
	MaxTransferYears int
	APIRegisterable  bool
	APIRenewable     bool
	APITransferable  bool
	EppRequired      bool
	SupportsIDN      bool
	Type             string
	Category         string
}

// OpPrice is one merged pricing cell: a sale ("your") price and a regular
// (retail) price, either of which may be absent.
type OpPrice struct {
	Sale      float64
	SaleOK    bool
	Regular   float64
	RegularOK bool
}

func (a *Adapter) Generate(ctx context.Context) (*pricelist.Pricelist, error) {
	meta, err := a.fetchTldMeta(ctx)
	if err != nil {
		return nil, err
	}

	cells := map[string]map[string]OpPrice{}
	currency := ""
	for _, action := range pricingActions {
		actionCells, cur, err := a.fetchPricing(ctx, action)
		if err != nil {
			return nil, err
		}
		if cur != "" {
			currency = cur
		}
		for tld, ops := range actionCells {
			if cells[tld] == nil {
				cells[tld] = map[string]OpPrice{}
			}
			for op, p := range ops {
				cells[tld][op] = p
			}
		}
	}
	if currency == "" {
		currency = "USD"
	}

	return a.build(meta, cells, currency), nil
}

func (a *Adapter) fetchTldMeta(ctx context.Context) (map[string]TldMeta, error) {
	u := a.requestURL("namecheap.domains.getTldList", nil)
	log.Printf("namecheap: GET %s", fetch.MaskURL(u, []string{"ApiKey"}, []string{"ClientIp"}))

	body, err := a.opts.Client.GetText(ctx, u)
	if err != nil {
		return nil, err
	}
	return ParseTldList([]byte(body))
}

func (a *Adapter) fetchPricing(ctx context.Context, action string) (map[string]map[string]OpPrice, string, error) {
	u := a.requestURL("namecheap.users.getPricing", url.Values{
		"ProductType":     {"DOMAIN"},
		"ProductCategory": {action},
	})
	log.Printf("namecheap: GET %s", fetch.MaskURL(u, []string{"ApiKey"}, []string{"ClientIp"}))

	body, err := a.opts.Client.GetText(ctx, u)
	if err != nil {
		return nil, "", err
	}
	return ParsePricing([]byte(body), action)
}

func (a *Adapter) requestURL(command string, extra url.Values) string {
	q := url.Values{
		"ApiUser":  {a.opts.APIUser},
		"ApiKey":   {a.opts.APIKey},
		"UserName": {a.opts.Username},
		"ClientIp": {a.opts.ClientIP},
		"Command":  {command},
	}
	for k, vs := range extra {
		q[k] = vs
	}
	return a.opts.BaseURL + "?" + q.Encode()
}

// --- XML wire types -------------------------------------------------------

type apiResponse struct {
	XMLName xml.Name `xml:"ApiResponse"`
	Status  string   `xml:"Status,attr"`
	Errors  struct {
		Errors []apiError `xml:"Error"`
	} `xml:"Errors"`
	CommandResponse struct {
		Tlds struct {
			Tlds []tldEntry `xml:"Tld"`
		} `xml:"Tlds"`
		Pricing struct {
			Types []productType `xml:"ProductType"`
		} `xml:"UserGetPricingResult"`
	} `xml:"CommandResponse"`
}

type apiError struct {
	Number string `xml:"Number,attr"`
	Text   string `xml:",chardata"`
}

type tldEntry struct {
	Name              string `xml:"Name,attr"`
	NonRealTime       string `xml:"NonRealTime,attr"`
	MinRegisterYears  string `xml:"MinRegisterYears,attr"`
	MaxRegisterYears  string `xml:"MaxRegisterYears,attr"`
	MinRenewYears     string `xml:"MinRenewYears,attr"`
	MaxRenewYears     string `xml:"MaxRenewYears,attr"`
	MinTransferYears  string `xml:"MinTransferYears,attr"`
	MaxTransferYears  string `xml:"MaxTransferYears,attr"`
	IsApiRegisterable string `xml:"IsApiRegisterable,attr"`
	IsApiRenewable    string `xml:"IsApiRenewable,attr"`
	IsApiTransferable string `xml:"IsApiTransferable,attr"`
	IsEppRequired     string `xml:"IsEppRequired,attr"`
	IsSupportsIDN     string `xml:"IsSupportsIDN,attr"`
	Type              string `xml:"Type,attr"`
	Category          string `xml:"Category,attr"`
}

type productType struct {
	Name       string            `xml:"Name,attr"`
	Categories []productCategory `xml:"ProductCategory"`
}

type productCategory struct {
	Name     string    `xml:"Name,attr"`
	Products []product `xml:"Product"`
}

type product struct {
	Name   string       `xml:"Name,attr"`
	Prices []priceEntry `xml:"Price"`
}

type priceEntry struct {
	Duration     string `xml:"Duration,attr"`
	DurationType string `xml:"DurationType,attr"`
	Price        string `xml:"Price,attr"`
	RegularPrice string `xml:"RegularPrice,attr"`
	YourPrice    string `xml:"YourPrice,attr"`
	Currency     string `xml:"Currency,attr"`
}

// --- parsing --------------------------------------------------------------

// ParseTldList decodes a getTldList response into per-TLD metadata.
func ParseTldList(body []byte) (map[string]TldMeta, error) {
	resp, err := decode(body)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(resp.Status, "OK") {
		return nil, fmt.Errorf("%w: tld list: %s", pricelist.ErrUpstreamFormat, firstError(resp))
	}

	out := make(map[string]TldMeta, len(resp.CommandResponse.Tlds.Tlds))
	for _, t := range resp.CommandResponse.Tlds.Tlds {
		name := strings.ToLower(strings.TrimSpace(t.Name))
		if name == "" {
			continue
		}
		out[name] = TldMeta{
			NonRealTime:      parseBool(t.NonRealTime),
			MinRegisterYears: parseYears(t.MinRegisterYears),
			MaxRegisterYears: parseYears(t.MaxRegisterYears),
			MinRenewYears:    parseYears(t.MinRenewYears),
			MaxRenewYears:    parseYears(t.MaxRenewYears),
			MinTransferYears: parseYears(t.MinTransferYears),
			MaxTransferYears: parseYears(t.MaxTransferYears),
			APIRegisterable:  parseBool(t.IsApiRegisterable),
			APIRenewable:     parseBool(t.IsApiRenewable),
			APITransferable:  parseBool(t.IsApiTransferable),
			EppRequired:      parseBool(t.IsEppRequired),
			SupportsIDN:      parseBool(t.IsSupportsIDN),
			Type:             strings.TrimSpace(t.Type),
			Category:         strings.TrimSpace(t.Category),
		}
	}
	return out, nil
}

// ParsePricing decodes one action's getPricing response. Only price blocks
// under the DOMAIN product type count, and only entries for a one-year term.
// The returned currency is the last one seen in the response.
func ParsePricing(body []byte, action string) (map[string]map[string]OpPrice, string, error) {
	resp, err := decode(body)
	if err != nil {
		return nil, "", err
	}
	if !strings.EqualFold(resp.Status, "OK") {
		return nil, "", fmt.Errorf("%w: pricing %s: %s", pricelist.ErrUpstreamFormat, action, firstError(resp))
	}

	out := map[string]map[string]OpPrice{}
	currency := ""

	for _, pt := range resp.CommandResponse.Pricing.Types {
		if !strings.EqualFold(pt.Name, "DOMAIN") {
			continue
		}
		for _, cat := range pt.Categories {
			op, ok := operationFor(cat.Name, action)
			if !ok {
				continue
			}
			for _, prod := range cat.Products {
				tld := strings.ToLower(strings.TrimSpace(prod.Name))
				if tld == "" {
					continue
				}
				for _, entry := range prod.Prices {
					if !oneYearTerm(entry) {
						continue
					}

					cell := OpPrice{}
					sale := entry.YourPrice
					if strings.TrimSpace(sale) == "" {
						sale = entry.Price
					}
					cell.Sale, cell.SaleOK = price.Parse(sale)
					cell.Regular, cell.RegularOK = price.Parse(entry.RegularPrice)
					if !cell.SaleOK && !cell.RegularOK {
						continue
					}

					if cur := strings.TrimSpace(entry.Currency); cur != "" {
						currency = strings.ToUpper(cur)
					}
					if out[tld] == nil {
						out[tld] = map[string]OpPrice{}
					}
					out[tld][op] = cell
				}
			}
		}
	}

	return out, currency, nil
}

func decode(body []byte) (*apiResponse, error) {
	var resp apiResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: xml decode: %v (snippet: %s)", pricelist.ErrUpstreamFormat, err, snippet(body))
	}
	return &resp, nil
}

func firstError(resp *apiResponse) string {
	for _, e := range resp.Errors.Errors {
		if msg := strings.TrimSpace(e.Text); msg != "" {
			return msg
		}
	}
	return "api status " + resp.Status
}

// operationFor maps a category name to a canonical operation, falling back
// to the action name when the category is unrecognized.
func operationFor(category, action string) (string, bool) {
	if op, ok := categoryOps[strings.ToLower(strings.TrimSpace(category))]; ok {
		return op, true
	}
	op, ok := categoryOps[strings.ToLower(strings.TrimSpace(action))]
	return op, ok
}

// oneYearTerm keeps only Duration=1 entries whose duration unit, when
// present, is a year.
func oneYearTerm(entry priceEntry) bool {
	if strings.TrimSpace(entry.Duration) != "1" {
		return false
	}
	dt := strings.TrimSpace(entry.DurationType)
	return dt == "" || strings.EqualFold(dt, "YEAR")
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true
	default:
		return false
	}
}

func parseYears(s string) int {
	v, ok := price.ToInteger(s)
	if !ok {
		return 0
	}
	return v
}

// --- mapping --------------------------------------------------------------

func (a *Adapter) build(meta map[string]TldMeta, cells map[string]map[string]OpPrice, currency string) *pricelist.Pricelist {
	var items []pricelist.TldPricing
	for tld, ops := range cells {
		// Only an explicit "not registerable through the API" excludes a
		// TLD; a TLD missing from metadata stays in.
		if m, known := meta[tld]; known && !m.APIRegisterable {
			continue
		}

		regular := pricelist.OperationPriceMap{}
		sale := pricelist.OperationPriceMap{}
		for op, cell := range ops {
			if cell.RegularOK {
				regular[op] = cell.Regular
			}
			if cell.SaleOK {
				sale[op] = cell.Sale
			}
		}

		var bands []pricelist.PriceBand
		if len(regular) > 0 {
			bands = append(bands, pricelist.PriceBand{
				ID:         pricelist.BandRegular,
				Label:      "Regular",
				Operations: regular,
			})
		}
		if len(sale) > 0 {
			bands = append(bands, pricelist.PriceBand{
				ID:         pricelist.BandSale,
				Label:      "Sale",
				Operations: sale,
			})
		}
		if len(bands) == 0 {
			continue
		}

		item := pricelist.TldPricing{
			Tld:   tld,
			Bands: bands,
		}
		if m, known := meta[tld]; known {
			item.MaxYears = maxYears(m)
			extras := map[string]any{}
			if m.Type != "" {
				extras["type"] = m.Type
			}
			if m.Category != "" {
				extras["category"] = m.Category
			}
			if len(extras) > 0 {
				item.Extras = extras
			}
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Tld < items[j].Tld })

	return &pricelist.Pricelist{
		RegistrarID:   a.Key(),
		RegistrarName: a.Name(),
		Currency:      currency,
		FetchedAt:     time.Now().UTC(),
		Source:        a.opts.BaseURL,
		Items:         items,
		Meta: map[string]any{
			"actions":      pricingActions,
			"metadataTlds": len(meta),
		},
	}
}

func maxYears(m TldMeta) int {
	max := m.MaxRegisterYears
	if m.MaxRenewYears > max {
		max = m.MaxRenewYears
	}
	if m.MaxTransferYears > max {
		max = m.MaxTransferYears
	}
	return max
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
