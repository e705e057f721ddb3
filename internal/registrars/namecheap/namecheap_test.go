package namecheap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/namewiz/registrar-pricelist/internal/pricelist"
)

const tldListXML = `<?xml version="1.0" encoding="utf-8"?>
<ApiResponse Status="OK" xmlns="http://api.namecheap.com/xml.response">
  <Errors/>
  <CommandResponse Type="namecheap.domains.getTldList">
    <Tlds>
      <Tld Name="com" NonRealTime="false" MinRegisterYears="1" MaxRegisterYears="10"
           MinRenewYears="1" MaxRenewYears="9" MinTransferYears="1" MaxTransferYears="1"
           IsApiRegisterable="true" IsApiRenewable="true" IsApiTransferable="Yes"
           IsEppRequired="true" IsSupportsIDN="false" Type="GTLD" Category="A">Commercial</Tld>
      <Tld Name="de" MaxRegisterYears="1" IsApiRegisterable="false" Type="CCTLD">Germany</Tld>
    </Tlds>
  </CommandResponse>
</ApiResponse>`

const registerPricingXML = `<?xml version="1.0" encoding="utf-8"?>
<ApiResponse Status="OK" xmlns="http://api.namecheap.com/xml.response">
  <Errors/>
  <CommandResponse Type="namecheap.users.getPricing">
    <UserGetPricingResult>
      <ProductType Name="DOMAIN">
        <ProductCategory Name="register">
          <Product Name="com">
            <Price Duration="1" DurationType="YEAR" Price="8.27" RegularPrice="9.99" YourPrice="8.27" Currency="USD"/>
            <Price Duration="2" DurationType="YEAR" Price="16.54" RegularPrice="19.98" YourPrice="16.54" Currency="USD"/>
          </Product>
          <Product Name="de">
            <Price Duration="1" DurationType="YEAR" Price="4.50" RegularPrice="6.00" YourPrice="4.50" Currency="USD"/>
          </Product>
        </ProductCategory>
      </ProductType>
      <ProductType Name="SSLCERTIFICATE">
        <ProductCategory Name="register">
          <Product Name="com">
            <Price Duration="1" DurationType="YEAR" Price="99.00" RegularPrice="99.00" YourPrice="99.00" Currency="USD"/>
          </Product>
        </ProductCategory>
      </ProductType>
    </UserGetPricingResult>
  </CommandResponse>
</ApiResponse>`

const errorXML = `<?xml version="1.0" encoding="utf-8"?>
<ApiResponse Status="ERROR">
  <Errors><Error Number="1011102">API Key is invalid or API access has not been enabled</Error></Errors>
  <CommandResponse/>
</ApiResponse>`

func TestParseTldList(t *testing.T) {
	meta, err := ParseTldList([]byte(tldListXML))
	if err != nil {
		t.Fatalf("ParseTldList: %v", err)
	}

	com, ok := meta["com"]
	if !ok {
		t.Fatalf("missing com metadata")
	}
	if !com.APIRegisterable || !com.APIRenewable || !com.APITransferable {
		t.Errorf("com capability flags wrong: %+v", com)
	}
	if com.MaxRegisterYears != 10 || com.MaxRenewYears != 9 || com.MaxTransferYears != 1 {
		t.Errorf("com year limits wrong: %+v", com)
	}
	if !com.EppRequired || com.SupportsIDN {
		t.Errorf("com epp/idn flags wrong: %+v", com)
	}

	de := meta["de"]
	if de.APIRegisterable {
		t.Errorf("de must be explicitly non-registerable")
	}
	// Absent year attributes default to 0.
	if de.MaxRenewYears != 0 || de.MinRegisterYears != 0 {
		t.Errorf("de year defaults wrong: %+v", de)
	}
}

func TestParseTldList_ErrorStatus(t *testing.T) {
	_, err := ParseTldList([]byte(errorXML))
	if !errors.Is(err, pricelist.ErrUpstreamFormat) {
		t.Fatalf("err=%v, want ErrUpstreamFormat", err)
	}
	if !strings.Contains(err.Error(), "API Key is invalid") {
		t.Errorf("error should carry the upstream message: %v", err)
	}
}

func TestParsePricing_DurationFilter(t *testing.T) {
	cells, currency, err := ParsePricing([]byte(registerPricingXML), "REGISTER")
	if err != nil {
		t.Fatalf("ParsePricing: %v", err)
	}
	if currency != "USD" {
		t.Errorf("currency=%q, want USD", currency)
	}

	com := cells["com"]
	if com == nil {
		t.Fatalf("missing com cells")
	}
	cell, ok := com[pricelist.OpCreate]
	if !ok {
		t.Fatalf("missing com create cell")
	}
	// Only the Duration="1" entry may survive: 8.27, not 16.54.
	if cell.Sale != 8.27 {
		t.Errorf("sale=%v, want 8.27 (Duration=2 entry must be ignored)", cell.Sale)
	}
	if cell.Regular != 9.99 {
		t.Errorf("regular=%v, want 9.99", cell.Regular)
	}
}

func TestParsePricing_IgnoresNonDomainProducts(t *testing.T) {
	cells, _, err := ParsePricing([]byte(registerPricingXML), "REGISTER")
	if err != nil {
		t.Fatalf("ParsePricing: %v", err)
	}
	if cell := cells["com"][pricelist.OpCreate]; cell.Sale == 99.00 {
		t.Errorf("SSL product block leaked into domain pricing")
	}
}

func TestOperationFor(t *testing.T) {
	cases := []struct {
		category, action, want string
		ok                     bool
	}{
		{"register", "REGISTER", pricelist.OpCreate, true},
		{"REACTIVATE", "REACTIVATE", pricelist.OpRestore, true},
		{"renew", "RENEW", pricelist.OpRenew, true},
		{"weird-category", "TRANSFER", pricelist.OpTransfer, true},
		{"weird-category", "weird-action", "", false},
	}
	for _, c := range cases {
		got, ok := operationFor(c.category, c.action)
		if got != c.want || ok != c.ok {
			t.Errorf("operationFor(%q,%q)=(%q,%v), want (%q,%v)", c.category, c.action, got, ok, c.want, c.ok)
		}
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("ApiKey") == "" || q.Get("ApiUser") == "" {
			t.Errorf("missing credentials in query: %s", r.URL.RawQuery)
		}
		switch q.Get("Command") {
		case "namecheap.domains.getTldList":
			_, _ = w.Write([]byte(tldListXML))
		case "namecheap.users.getPricing":
			if q.Get("ProductType") != "DOMAIN" {
				t.Errorf("ProductType=%q, want DOMAIN", q.Get("ProductType"))
			}
			_, _ = w.Write([]byte(registerPricingXML))
		default:
			t.Errorf("unexpected command %q", q.Get("Command"))
		}
	}))
}

func TestGenerate_FiltersNonRegisterable(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	a, err := New(Options{BaseURL: srv.URL, APIUser: "nw", APIKey: "k-0123456789"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pl, err := a.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	com := pl.Item("com")
	if com == nil {
		t.Fatalf("missing com")
	}
	if com.MaxYears != 10 {
		t.Errorf("com maxYears=%d, want 10 (max across register/renew/transfer)", com.MaxYears)
	}
	regular := com.Band(pricelist.BandRegular)
	if regular == nil || regular.Operations[pricelist.OpCreate] != 9.99 {
		t.Errorf("regular band wrong: %#v", regular)
	}
	sale := com.Band(pricelist.BandSale)
	if sale == nil || sale.Operations[pricelist.OpCreate] != 8.27 {
		t.Errorf("sale band wrong: %#v", sale)
	}
	if com.Extras["type"] != "GTLD" || com.Extras["category"] != "A" {
		t.Errorf("com extras = %#v, want type GTLD / category A", com.Extras)
	}

	// de is explicitly IsApiRegisterable=false and priced, so it must be
	// excluded entirely.
	if pl.Item("de") != nil {
		t.Errorf("de should be filtered out")
	}

	if pl.Currency != "USD" {
		t.Errorf("currency=%q", pl.Currency)
	}
}

func TestNew_RequiresCredentials(t *testing.T) {
	if _, err := New(Options{APIUser: "nw"}); !errors.Is(err, pricelist.ErrConfiguration) {
		t.Fatalf("missing key: err=%v, want ErrConfiguration", err)
	}
	if _, err := New(Options{APIKey: "k"}); !errors.Is(err, pricelist.ErrConfiguration) {
		t.Fatalf("missing user: err=%v, want ErrConfiguration", err)
	}
}
