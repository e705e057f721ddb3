package pricelist

import (
	"reflect"
	"strings"
	"testing"
)

func listWith(id, currency string, items ...TldPricing) *Pricelist {
	return &Pricelist{RegistrarID: id, Currency: currency, Items: items}
}

func regularItem(tld string, ops OperationPriceMap) TldPricing {
	return TldPricing{
		Tld:   tld,
		Bands: []PriceBand{{ID: BandRegular, Label: "Regular", Operations: ops}},
	}
}

func TestUnifyCheapestWins(t *testing.T) {
	lists := map[string]*Pricelist{
		"a": listWith("a", "USD", regularItem("com", OperationPriceMap{OpCreate: 8.27, OpRenew: 9.99})),
		"b": listWith("b", "USD", regularItem("com", OperationPriceMap{OpCreate: 6.50, OpRenew: 12.00})),
	}

	entries := Unify(lists, nil)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Provider != "b" {
		t.Errorf("provider = %q, want b", e.Provider)
	}
	if e.RegularPrice[OpCreate] != 6.50 {
		t.Errorf("create = %v, want 6.50", e.RegularPrice[OpCreate])
	}
	// The winner's whole operation map comes along, even ops it loses on.
	if e.RegularPrice[OpRenew] != 12.00 {
		t.Errorf("renew = %v, want 12.00 (winner's own renew)", e.RegularPrice[OpRenew])
	}
}

func TestUnifyMetricFallsBackToCheapestOp(t *testing.T) {
	// No create price: the ranking metric is the minimum operation.
	lists := map[string]*Pricelist{
		"a": listWith("a", "USD", regularItem("org", OperationPriceMap{OpRenew: 5, OpTransfer: 9})),
		"b": listWith("b", "USD", regularItem("org", OperationPriceMap{OpCreate: 6})),
	}

	entries := Unify(lists, nil)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Provider != "a" {
		t.Errorf("provider = %q, want a (min op 5 beats create 6)", entries[0].Provider)
	}
}

func TestUnifyTieBreaksLexically(t *testing.T) {
	item := regularItem("net", OperationPriceMap{OpCreate: 10})
	lists := map[string]*Pricelist{
		"zeta":  listWith("zeta", "USD", item),
		"alpha": listWith("alpha", "USD", item),
	}

	// Provider order must not matter.
	for _, providers := range [][]string{nil, {"zeta", "alpha"}, {"alpha", "zeta"}} {
		entries := Unify(lists, providers)
		if len(entries) != 1 || entries[0].Provider != "alpha" {
			t.Errorf("providers %v: got %+v, want alpha", providers, entries)
		}
	}
}

func TestUnifySkipsProvidersWithoutRegularBand(t *testing.T) {
	memberOnly := TldPricing{
		Tld:   "ng",
		Bands: []PriceBand{{ID: BandMember, Label: "Member", Operations: OperationPriceMap{OpCreate: 1}}},
	}
	lists := map[string]*Pricelist{
		"a": listWith("a", "USD", memberOnly),
		"b": listWith("b", "USD", regularItem("ng", OperationPriceMap{OpCreate: 10})),
	}

	entries := Unify(lists, nil)
	if len(entries) != 1 || entries[0].Provider != "b" {
		t.Fatalf("got %+v, want single entry from b", entries)
	}
}

func TestUnifyDropsTldNobodyQuotes(t *testing.T) {
	lists := map[string]*Pricelist{
		"a": listWith("a", "USD", TldPricing{Tld: "xyz"}),
	}
	if entries := Unify(lists, nil); len(entries) != 0 {
		t.Errorf("entries = %+v, want none", entries)
	}
}

func TestUnifyMultiCurrency(t *testing.T) {
	lists := map[string]*Pricelist{
		"usd": listWith("usd", "USD", regularItem("com", OperationPriceMap{OpCreate: 8})),
		"eur": listWith("eur", "EUR", regularItem("com", OperationPriceMap{OpCreate: 7})),
	}

	entries := Unify(lists, nil)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Provider != "eur" {
		t.Errorf("provider = %q, want eur", e.Provider)
	}
	if len(e.Currencies) != 2 {
		t.Fatalf("currencies = %v, want USD and EUR breakdown", e.Currencies)
	}
	if e.Currencies["USD"].RegularPrice[OpCreate] != 8 {
		t.Errorf("USD breakdown = %v", e.Currencies["USD"])
	}
}

func TestUnifySingleCurrencyOmitsBreakdown(t *testing.T) {
	lists := map[string]*Pricelist{
		"a": listWith("a", "USD", regularItem("com", OperationPriceMap{OpCreate: 8})),
		"b": listWith("b", "USD", regularItem("com", OperationPriceMap{OpCreate: 9})),
	}
	entries := Unify(lists, nil)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Currencies != nil {
		t.Errorf("currencies = %v, want nil when all inputs share one currency", entries[0].Currencies)
	}
}

func TestUnifyDeterministic(t *testing.T) {
	lists := map[string]*Pricelist{
		"a": listWith("a", "USD",
			regularItem("com", OperationPriceMap{OpCreate: 8.27}),
			regularItem("org", OperationPriceMap{OpRenew: 5})),
		"b": listWith("b", "USD",
			regularItem("com", OperationPriceMap{OpCreate: 6.50}),
			regularItem("net", OperationPriceMap{OpCreate: 11})),
	}

	first := Unify(lists, nil)
	for i := 0; i < 10; i++ {
		if got := Unify(lists, nil); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs:\n%+v\nvs\n%+v", i, got, first)
		}
	}
	for i := 1; i < len(first); i++ {
		if first[i-1].Tld >= first[i].Tld {
			t.Fatalf("entries not sorted by tld: %q >= %q", first[i-1].Tld, first[i].Tld)
		}
	}
}

func TestCheapestRows(t *testing.T) {
	lists := map[string]*Pricelist{
		"a": listWith("a", "USD",
			regularItem("com", OperationPriceMap{OpCreate: 8.27, OpRenew: 9}),
			regularItem("org", OperationPriceMap{OpCreate: 12})),
		"b": listWith("b", "USD",
			regularItem("com", OperationPriceMap{OpCreate: 6.50}),
			regularItem("org", OperationPriceMap{OpRenew: 10})),
	}

	rows := CheapestRows(lists, OpCreate, nil)
	want := []CheapestRow{
		{Tld: "com", Provider: "b", Amount: 6.50, Currency: "USD"},
		{Tld: "org", Provider: "a", Amount: 12, Currency: "USD"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("create rows = %+v, want %+v", rows, want)
	}

	// Per-operation selection is independent of the aggregate metric: for
	// renew only a and b's renew prices compete.
	rows = CheapestRows(lists, OpRenew, nil)
	want = []CheapestRow{
		{Tld: "com", Provider: "a", Amount: 9, Currency: "USD"},
		{Tld: "org", Provider: "b", Amount: 10, Currency: "USD"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("renew rows = %+v, want %+v", rows, want)
	}
}

func TestCheapestRowsTieBreak(t *testing.T) {
	item := regularItem("com", OperationPriceMap{OpCreate: 9.99})
	lists := map[string]*Pricelist{
		"zeta":  listWith("zeta", "USD", item),
		"alpha": listWith("alpha", "USD", item),
	}
	rows := CheapestRows(lists, OpCreate, []string{"zeta", "alpha"})
	if len(rows) != 1 || rows[0].Provider != "alpha" {
		t.Errorf("rows = %+v, want alpha to win the tie", rows)
	}
}

func TestRenderCSV(t *testing.T) {
	rows := []CheapestRow{
		{Tld: "com", Provider: "b", Amount: 6.5, Currency: "USD"},
		{Tld: "org", Provider: "a", Amount: 12, Currency: "EUR"},
	}

	got := RenderCSV(rows, false)
	want := "tld,provider,amount\ncom,b,6.5\norg,a,12\n"
	if got != want {
		t.Errorf("RenderCSV = %q, want %q", got, want)
	}

	got = RenderCSV(rows, true)
	if !strings.HasPrefix(got, "tld,provider,amount,currency\n") {
		t.Errorf("currency header missing: %q", got)
	}
	if !strings.Contains(got, "com,b,6.5,USD\n") {
		t.Errorf("currency column missing: %q", got)
	}
}
