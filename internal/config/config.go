package config

import (
	"os"
	"strconv"
	"time"

	"github.com/namewiz/registrar-pricelist/internal/fetch"
	"github.com/namewiz/registrar-pricelist/internal/pricelist"
	"github.com/namewiz/registrar-pricelist/internal/registrars/namecheap"
	"github.com/namewiz/registrar-pricelist/internal/registrars/nira"
	"github.com/namewiz/registrar-pricelist/internal/registrars/sheet"
)

// Config collects every environment-driven setting in one place.
type Config struct {
	Port      string
	OutputDir string

	// CacheTTL controls snapshot reuse: negative means reuse forever, zero
	// disables reuse, positive bounds the snapshot age.
	CacheTTL time.Duration

	DBDriver    string // "", "memory", "sqlite", "postgres", "postgrespool"
	DBDSN       string
	AutoMigrate bool

	SheetURL string

	NamecheapAPIUser  string
	NamecheapAPIKey   string
	NamecheapUsername string
	NamecheapClientIP string
	NamecheapBaseURL  string

	FXFeedURL   string
	FXTablePath string
}

// FromEnv builds a Config from environment variables, with sane defaults.
func FromEnv() Config {
	cfg := Config{
		Port:      envOr("PORT", "8080"),
		OutputDir: envOr("PRICELIST_OUTPUT_DIR", "out"),
		CacheTTL:  pricelist.TTLForever,

		DBDriver: os.Getenv("PRICELIST_DB_DRIVER"),
		DBDSN:    os.Getenv("PRICELIST_DB_DSN"),

		SheetURL: os.Getenv("UPPERLINK_SHEET_URL"),

		NamecheapAPIUser:  os.Getenv("NAMECHEAP_API_USER"),
		NamecheapAPIKey:   os.Getenv("NAMECHEAP_API_KEY"),
		NamecheapUsername: os.Getenv("NAMECHEAP_USERNAME"),
		NamecheapClientIP: os.Getenv("NAMECHEAP_CLIENT_IP"),
		NamecheapBaseURL:  os.Getenv("NAMECHEAP_BASE_URL"),

		FXFeedURL:   os.Getenv("FX_FEED_URL"),
		FXTablePath: os.Getenv("FX_TABLE_PATH"),
	}

	if raw := os.Getenv("PRICELIST_CACHE_TTL_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil {
			if secs < 0 {
				cfg.CacheTTL = pricelist.TTLForever
			} else {
				cfg.CacheTTL = time.Duration(secs) * time.Second
			}
		}
	}

	cfg.AutoMigrate = os.Getenv("PRICELIST_AUTO_MIGRATE") == "true"

	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// RegisterAdapters wires the three registrar adapters into the global
// registry from cfg. Adapters whose configuration is incomplete are skipped
// with their error reported; the others still register.
func RegisterAdapters(cfg Config) map[string]error {
	errs := make(map[string]error)
	client := fetch.New(fetch.Options{})

	if s, err := sheet.New(sheet.Options{URL: cfg.SheetURL, Client: client}); err != nil {
		errs["upperlink"] = err
	} else {
		pricelist.Register(s)
	}

	if nc, err := namecheap.New(namecheap.Options{
		BaseURL:  cfg.NamecheapBaseURL,
		APIUser:  cfg.NamecheapAPIUser,
		APIKey:   cfg.NamecheapAPIKey,
		Username: cfg.NamecheapUsername,
		ClientIP: cfg.NamecheapClientIP,
		Client:   client,
	}); err != nil {
		errs["namecheap"] = err
	} else {
		pricelist.Register(nc)
	}

	if n, err := nira.New(nira.Options{
		FXFeedURL:   cfg.FXFeedURL,
		FXTablePath: cfg.FXTablePath,
		Client:      client,
	}); err != nil {
		errs["nira"] = err
	} else {
		pricelist.Register(n)
	}

	return errs
}
