// Package sheet generates a pricelist from a registrar's published
// spreadsheet. The sheet is fetched as a CSV export; the header row wanders
// between revisions, so it is located by scanning for the full required
// header set rather than assumed at a fixed index.
package sheet

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/idna"

	"github.com/namewiz/registrar-pricelist/internal/fetch"
	"github.com/namewiz/registrar-pricelist/internal/price"
	"github.com/namewiz/registrar-pricelist/internal/pricelist"
)

const (
	headerTLD       = "TLD"
	headerYears     = "Years"
	headerOperation = "Operation"
	headerPrice     = "Price"

	defaultMemberHeader  = `Basic \ Pro \ Expert`
	defaultIgnoredHeader = "Supreme"

	// headerScanLimit caps how deep into the sheet the header row may sit.
	headerScanLimit = 15
)

var (
	docIDRe = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)
	gidRe   = regexp.MustCompile(`[?#&]gid=(\d+)`)
)

// Options configures the sheet adapter.
type Options struct {
	Key  string // registrar id, defaults to "upperlink"
	Name string // registrar name, defaults to "Upperlink"
	URL  string // spreadsheet URL (generic or CSV export)

	Currency      string // fixed for the whole sheet, defaults to "USD"
	MemberHeader  string // column holding the member tier price
	IgnoredHeader string // column required to be present but never read

	Client *fetch.Client
}

type Adapter struct {
	opts Options
}

func New(opts Options) (*Adapter, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("%w: sheet URL missing", pricelist.ErrConfiguration)
	}
	if opts.Key == "" {
		opts.Key = "upperlink"
	}
	if opts.Name == "" {
		opts.Name = "Upperlink"
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	if opts.MemberHeader == "" {
		opts.MemberHeader = defaultMemberHeader
	}
	if opts.IgnoredHeader == "" {
		opts.IgnoredHeader = defaultIgnoredHeader
	}
	if opts.Client == nil {
		opts.Client = fetch.New(fetch.Options{})
	}
	return &Adapter{opts: opts}, nil
}

func (a *Adapter) Key() string    { return a.opts.Key }
func (a *Adapter) Name() string   { return a.opts.Name }
func (a *Adapter) Source() string { return a.opts.URL }

func (a *Adapter) Generate(ctx context.Context) (*pricelist.Pricelist, error) {
	url := ExportURL(a.opts.URL)
	log.Printf("sheet: fetching %s", url)

	raw, err := a.opts.Client.GetText(ctx, url)
	if err != nil {
		return nil, err
	}

	rows, err := ParseCSV(raw)
	if err != nil {
		return nil, err
	}

	return a.Map(rows)
}

// ExportURL derives a CSV export URL from a generic spreadsheet URL. URLs
// already pointing at a CSV export pass through unchanged; the sheet tab is
// taken from a gid fragment, defaulting to 0.
func ExportURL(raw string) string {
	if strings.Contains(raw, "/export") || strings.Contains(raw, "format=csv") || strings.Contains(raw, "output=csv") {
		return raw
	}
	m := docIDRe.FindStringSubmatch(raw)
	if m == nil {
		return raw
	}
	gid := "0"
	if gm := gidRe.FindStringSubmatch(raw); gm != nil {
		gid = gm[1]
	}
	return "https://docs.google.com/spreadsheets/d/" + m[1] + "/export?format=csv&gid=" + gid
}

// ParseCSV parses the raw export. Sheets emit ragged rows, so records are
// not required to share a field count.
func ParseCSV(raw string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(raw))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: csv parse: %v", pricelist.ErrUpstreamFormat, err)
	}
	return rows, nil
}

type columns struct {
	tld, years, operation, regular, member int
}

type tldAccum struct {
	maxYears int
	regular  pricelist.OperationPriceMap
	member   pricelist.OperationPriceMap
}

// Map locates the header row, binds columns and normalizes the data rows
// into a canonical pricelist.
func (a *Adapter) Map(rows [][]string) (*pricelist.Pricelist, error) {
	required := []string{headerTLD, headerYears, headerOperation, headerPrice, a.opts.MemberHeader, a.opts.IgnoredHeader}

	headerIdx, cols, headers, err := locateHeader(rows, required, a.opts.MemberHeader)
	if err != nil {
		return nil, err
	}

	accums := map[string]*tldAccum{}
	rowsProcessed := 0
	rowsYear1 := 0

	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		if blankRow(row) {
			continue
		}
		rowsProcessed++

		tldCell, err := cellAt(row, cols.tld, headerTLD, i)
		if err != nil {
			return nil, err
		}
		yearsCell, err := cellAt(row, cols.years, headerYears, i)
		if err != nil {
			return nil, err
		}
		opCell, err := cellAt(row, cols.operation, headerOperation, i)
		if err != nil {
			return nil, err
		}
		priceCell, err := cellAt(row, cols.regular, headerPrice, i)
		if err != nil {
			return nil, err
		}
		memberCell, err := cellAt(row, cols.member, a.opts.MemberHeader, i)
		if err != nil {
			return nil, err
		}

		tld := normalizeTld(tldCell)
		years, yearsOK := price.ToInteger(yearsCell)
		op := strings.ToLower(strings.TrimSpace(opCell))

		// A malformed row is dropped, never fatal.
		if tld == "" || !yearsOK || op == "" {
			continue
		}

		regular, regularOK := price.Parse(priceCell)

		var member float64
		var memberOK bool
		if isNonMemberAlias(memberCell) {
			// The cell is a label meaning "same as the non-member price",
			// not a numeric override.
			member, memberOK = regular, regularOK
		} else {
			member, memberOK = price.Parse(memberCell)
		}

		if !regularOK && !memberOK {
			continue
		}

		acc := accums[tld]
		if acc == nil {
			acc = &tldAccum{
				regular: pricelist.OperationPriceMap{},
				member:  pricelist.OperationPriceMap{},
			}
			accums[tld] = acc
		}

		// Every priced row feeds maxYears, even for years != 1.
		if years > acc.maxYears {
			acc.maxYears = years
		}

		// Only the one-year term is stored in the operation maps.
		if years != 1 {
			continue
		}
		rowsYear1++
		if regularOK {
			acc.regular[op] = regular
		}
		if memberOK {
			acc.member[op] = member
		}
	}

	items := buildItems(accums)

	return &pricelist.Pricelist{
		RegistrarID:   a.opts.Key,
		RegistrarName: a.opts.Name,
		Currency:      a.opts.Currency,
		FetchedAt:     time.Now().UTC(),
		Source:        a.opts.URL,
		Items:         items,
		Meta: map[string]any{
			"headerRow":       headerIdx,
			"headers":         headers,
			"requiredHeaders": required,
			"rowsProcessed":   rowsProcessed,
			"rowsYear1":       rowsYear1,
		},
	}, nil
}

// locateHeader scans the first headerScanLimit rows for a row containing
// every required header as an exact, trimmed match.
func locateHeader(rows [][]string, required []string, memberHeader string) (int, columns, []string, error) {
	limit := len(rows)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}

	for i := 0; i < limit; i++ {
		index := map[string]int{}
		for col, cell := range rows[i] {
			name := trimCell(cell)
			if _, dup := index[name]; !dup {
				index[name] = col
			}
		}

		found := true
		for _, h := range required {
			if _, ok := index[h]; !ok {
				found = false
				break
			}
		}
		if !found {
			continue
		}

		headers := make([]string, len(rows[i]))
		for c, cell := range rows[i] {
			headers[c] = trimCell(cell)
		}
		return i, columns{
			tld:       index[headerTLD],
			years:     index[headerYears],
			operation: index[headerOperation],
			regular:   index[headerPrice],
			member:    index[memberHeader],
		}, headers, nil
	}

	var firstRow []string
	if len(rows) > 0 {
		firstRow = rows[0]
	}
	return 0, columns{}, nil, fmt.Errorf(
		"%w: header row with %v not found in first %d rows (first row: %v)",
		pricelist.ErrUpstreamFormat, required, headerScanLimit, firstRow)
}

func cellAt(row []string, col int, header string, rowIdx int) (string, error) {
	if col >= len(row) {
		return "", fmt.Errorf("%w: row %d has no %q column", pricelist.ErrUpstreamFormat, rowIdx, header)
	}
	return row[col], nil
}

func buildItems(accums map[string]*tldAccum) []pricelist.TldPricing {
	var items []pricelist.TldPricing
	for tld, acc := range accums {
		var bands []pricelist.PriceBand
		if len(acc.regular) > 0 {
			bands = append(bands, pricelist.PriceBand{
				ID:         pricelist.BandRegular,
				Label:      "Regular",
				Operations: acc.regular,
			})
		}
		if len(acc.member) > 0 {
			bands = append(bands, pricelist.PriceBand{
				ID:         pricelist.BandMember,
				Label:      "Member",
				Operations: acc.member,
			})
		}
		if len(bands) == 0 {
			continue
		}
		items = append(items, pricelist.TldPricing{
			Tld:      tld,
			MaxYears: acc.maxYears,
			Bands:    bands,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Tld < items[j].Tld })
	return items
}

func normalizeTld(s string) string {
	t := strings.ToLower(strings.TrimSpace(s))
	t = strings.TrimPrefix(t, ".")
	if t == "" {
		return ""
	}
	if ascii, err := idna.Lookup.ToASCII(t); err == nil {
		t = ascii
	}
	return t
}

// isNonMemberAlias reports whether a member cell says "non-member price" in
// any of its spellings.
func isNonMemberAlias(s string) bool {
	collapsed := strings.ToLower(strings.TrimSpace(s))
	collapsed = strings.ReplaceAll(collapsed, " ", "")
	collapsed = strings.ReplaceAll(collapsed, "-", "")
	return collapsed == "nonmemberprice"
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if trimCell(cell) != "" {
			return false
		}
	}
	return true
}

// trimCell strips surrounding whitespace and the UTF-8 BOM some CSV exports
// put in front of the first cell.
func trimCell(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(s, "\uFEFF"))
}
