package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/namewiz/registrar-pricelist/internal/config"
	"github.com/namewiz/registrar-pricelist/internal/pricelist"
)

type fixedAdapter struct {
	key string
	pl  *pricelist.Pricelist
}

func (f *fixedAdapter) Key() string    { return f.key }
func (f *fixedAdapter) Name() string   { return f.key }
func (f *fixedAdapter) Source() string { return "test" }

func (f *fixedAdapter) Generate(ctx context.Context) (*pricelist.Pricelist, error) {
	return f.pl, nil
}

func testMux(t *testing.T) *http.ServeMux {
	t.Helper()
	registerOnce.Do(registerTestAdapter)
	return NewMux(config.Config{DBDriver: "memory"})
}

var registerOnce sync.Once

func registerTestAdapter() {
	pricelist.Register(&fixedAdapter{
		key: "apitest",
		pl: &pricelist.Pricelist{
			RegistrarID: "apitest",
			Currency:    "USD",
			Items: []pricelist.TldPricing{
				{
					Tld: "com",
					Bands: []pricelist.PriceBand{
						{ID: pricelist.BandRegular, Label: "Regular",
							Operations: pricelist.OperationPriceMap{pricelist.OpCreate: 8.27}},
					},
				},
			},
		},
	})
}

func TestHealthEndpoints(t *testing.T) {
	mux := testMux(t)
	for _, path := range []string{"/healthz", "/livez", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s = %d, want 200", path, rec.Code)
		}
	}
}

func TestRegistrarsEndpoint(t *testing.T) {
	mux := testMux(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/registrars", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var rs []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &rs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rs) == 0 {
		t.Error("no registrars returned")
	}
}

func TestPricelistEndpoint(t *testing.T) {
	mux := testMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/pricelists/apitest", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var pl pricelist.Pricelist
	if err := json.Unmarshal(rec.Body.Bytes(), &pl); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pl.RegistrarID != "apitest" || len(pl.Items) != 1 {
		t.Errorf("pl = %+v", pl)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/pricelists/nonexistent", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown registrar status = %d, want 404", rec.Code)
	}
}

func TestUnifiedCSVEndpoint(t *testing.T) {
	mux := testMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/unified.csv", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "tld,provider,amount") {
		t.Errorf("missing CSV header: %q", body)
	}
	if !strings.Contains(body, "com,apitest,8.27") {
		t.Errorf("missing com row: %q", body)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/unified.csv?op=void", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad op status = %d, want 400", rec.Code)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	mux := testMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/refresh", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET refresh status = %d, want 405", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/refresh?registrar=apitest", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST refresh status = %d, body %s", rec.Code, rec.Body.String())
	}
	var status map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status["apitest"] != "ok" {
		t.Errorf("status = %v", status)
	}
}
