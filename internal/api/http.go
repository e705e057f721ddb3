package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/namewiz/registrar-pricelist/internal/config"
	"github.com/namewiz/registrar-pricelist/internal/metrics"
	"github.com/namewiz/registrar-pricelist/internal/migrate"
	"github.com/namewiz/registrar-pricelist/internal/pricelist"
	"github.com/namewiz/registrar-pricelist/internal/storage"
)

// NewMux constructs the HTTP mux, wiring in the pricelist service, metrics,
// and health endpoints.
func NewMux(cfg config.Config) *http.ServeMux {
	ctx := context.Background()

	// Optional auto-migration: run `goose up` on startup when enabled.
	if cfg.AutoMigrate && cfg.DBDriver != "" && cfg.DBDriver != "memory" {
		if err := migrate.Up(ctx, cfg.DBDriver, cfg.DBDSN); err != nil {
			log.Printf("auto-migration failed: %v", err)
		}
	}

	// Construct the service, preferring a real storage backend when
	// available. The in-memory backend is seeded with the registrar
	// descriptors so /api/v1/registrars works without a database.
	var seed []storage.Registrar
	for _, d := range pricelist.Registrars() {
		seed = append(seed, storage.Registrar{
			Key:      d.Key,
			Name:     d.Name,
			Source:   d.Source,
			Currency: d.Currency,
			Notes:    d.Notes,
		})
	}

	var svc *pricelist.Service
	st, err := storage.Open(ctx, storage.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN, Registrars: seed})
	if err != nil {
		log.Printf("storage.Open failed (driver=%s): %v; running without snapshot cache", cfg.DBDriver, err)
		st = nil
		svc = pricelist.NewService(cfg.CacheTTL)
	} else {
		svc = pricelist.NewServiceWithStorage(cfg.CacheTTL, st)
	}

	// Export connection pool gauges when the backend has a real pool.
	if pg, ok := st.(*storage.PostgresPoolStorage); ok {
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for range ticker.C {
				stat := pg.Stat()
				metrics.UpdateDBPoolMetrics("postgrespool",
					float64(stat.TotalConns()), float64(stat.IdleConns()), float64(stat.AcquiredConns()))
			}
		}()
	}

	mux := http.NewServeMux()

	// Metrics endpoint.
	mux.Handle("/metrics", promhttp.Handler())

	// Health / readiness / liveness.
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			http.Error(w, "storage not ready", http.StatusServiceUnavailable)
			return
		}
		if err := st.Ping(r.Context()); err != nil {
			log.Printf("readyz: storage ping failed: %v", err)
			http.Error(w, "storage not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("/api/v1/registrars", handleRegistrars(st))
	mux.HandleFunc("/api/v1/registrars/", handleRegistrar(st))
	mux.HandleFunc("/api/v1/jobs/", handleJobStatus(st))
	mux.HandleFunc("/api/v1/pricelists/", handlePricelist(svc))
	mux.HandleFunc("/api/v1/unified", handleUnified(svc))
	mux.HandleFunc("/api/v1/unified.csv", handleUnifiedCSV(svc))
	mux.HandleFunc("/api/v1/refresh", handleRefresh(svc))

	return mux
}

func writeJSON(w http.ResponseWriter, path string, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response failed: %v", err)
		metrics.RequestErrorsTotal.WithLabelValues(path, "500").Inc()
	}
}

func observe(path string, start time.Time) {
	metrics.RequestDurationSeconds.WithLabelValues(path).Observe(time.Since(start).Seconds())
}

// handleRegistrars serves the registrar descriptor list. Storage is the
// source of truth when present so operator edits show up; the static
// descriptors are the fallback.
func handleRegistrars(st storage.Storage) http.HandlerFunc {
	const path = "/api/v1/registrars"
	return func(w http.ResponseWriter, r *http.Request) {
		defer observe(path, time.Now())
		metrics.RequestsTotal.WithLabelValues(path).Inc()

		if st != nil {
			rs, err := st.ListRegistrars(r.Context())
			if err == nil && len(rs) > 0 {
				writeJSON(w, path, rs)
				return
			}
			if err != nil {
				log.Printf("list registrars from storage failed: %v", err)
			}
		}
		writeJSON(w, path, pricelist.Registrars())
	}
}

func handleRegistrar(st storage.Storage) http.HandlerFunc {
	const path = "/api/v1/registrars"
	return func(w http.ResponseWriter, r *http.Request) {
		defer observe(path, time.Now())
		metrics.RequestsTotal.WithLabelValues(path).Inc()

		key := strings.ToLower(strings.TrimPrefix(r.URL.Path, "/api/v1/registrars/"))
		if key == "" || strings.Contains(key, "/") {
			metrics.RequestErrorsTotal.WithLabelValues(path, "404").Inc()
			http.NotFound(w, r)
			return
		}

		if st != nil {
			reg, err := st.GetRegistrar(r.Context(), key)
			if err != nil {
				log.Printf("get registrar %s from storage failed: %v", key, err)
			} else if reg != nil {
				writeJSON(w, path, reg)
				return
			}
		}
		if d, ok := pricelist.GetDescriptor(key); ok {
			writeJSON(w, path, d)
			return
		}
		metrics.RequestErrorsTotal.WithLabelValues(path, "404").Inc()
		http.Error(w, "unknown registrar", http.StatusNotFound)
	}
}

// handleJobStatus reports the last run of a scheduled job, e.g.
// /api/v1/jobs/refresh_pricelists.
func handleJobStatus(st storage.Storage) http.HandlerFunc {
	const path = "/api/v1/jobs"
	return func(w http.ResponseWriter, r *http.Request) {
		defer observe(path, time.Now())
		metrics.RequestsTotal.WithLabelValues(path).Inc()

		name := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
		if name == "" || st == nil {
			metrics.RequestErrorsTotal.WithLabelValues(path, "404").Inc()
			http.NotFound(w, r)
			return
		}
		job, err := st.GetJobRun(r.Context(), name)
		if err != nil {
			log.Printf("get job run %s failed: %v", name, err)
			metrics.RequestErrorsTotal.WithLabelValues(path, "500").Inc()
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if job == nil {
			metrics.RequestErrorsTotal.WithLabelValues(path, "404").Inc()
			http.Error(w, "job has not run", http.StatusNotFound)
			return
		}
		writeJSON(w, path, job)
	}
}

func handlePricelist(svc *pricelist.Service) http.HandlerFunc {
	const path = "/api/v1/pricelists"
	return func(w http.ResponseWriter, r *http.Request) {
		defer observe(path, time.Now())
		metrics.RequestsTotal.WithLabelValues(path).Inc()

		key := strings.ToLower(strings.TrimPrefix(r.URL.Path, "/api/v1/pricelists/"))
		if key == "" || strings.Contains(key, "/") {
			metrics.RequestErrorsTotal.WithLabelValues(path, "404").Inc()
			http.NotFound(w, r)
			return
		}

		pl, err := svc.Get(r.Context(), key)
		if err != nil {
			if errors.Is(err, pricelist.ErrRegistrarNotFound) {
				metrics.RequestErrorsTotal.WithLabelValues(path, "404").Inc()
				http.Error(w, "unknown registrar", http.StatusNotFound)
				return
			}
			log.Printf("get pricelist for %s failed: %v", key, err)
			metrics.RequestErrorsTotal.WithLabelValues(path, "502").Inc()
			http.Error(w, "pricelist unavailable", http.StatusBadGateway)
			return
		}
		writeJSON(w, path, pl)
	}
}

type unifiedResponse struct {
	Entries []pricelist.UnifiedEntry `json:"entries"`
	Errors  map[string]string        `json:"errors,omitempty"`
}

func handleUnified(svc *pricelist.Service) http.HandlerFunc {
	const path = "/api/v1/unified"
	return func(w http.ResponseWriter, r *http.Request) {
		defer observe(path, time.Now())
		metrics.RequestsTotal.WithLabelValues(path).Inc()

		entries, errs := svc.Unified(r.Context(), nil)
		if len(entries) == 0 && len(errs) > 0 {
			metrics.RequestErrorsTotal.WithLabelValues(path, "502").Inc()
			http.Error(w, "no registrar could be fetched", http.StatusBadGateway)
			return
		}
		resp := unifiedResponse{Entries: entries}
		if len(errs) > 0 {
			resp.Errors = make(map[string]string, len(errs))
			for k, e := range errs {
				resp.Errors[k] = e.Error()
			}
		}
		writeJSON(w, path, resp)
	}
}

// handleUnifiedCSV serves the flat cheapest-per-TLD table for one operation
// (?op=create|renew|transfer|restore, default create).
func handleUnifiedCSV(svc *pricelist.Service) http.HandlerFunc {
	const path = "/api/v1/unified.csv"
	return func(w http.ResponseWriter, r *http.Request) {
		defer observe(path, time.Now())
		metrics.RequestsTotal.WithLabelValues(path).Inc()

		op := r.URL.Query().Get("op")
		if op == "" {
			op = pricelist.OpCreate
		}
		switch op {
		case pricelist.OpCreate, pricelist.OpRenew, pricelist.OpTransfer, pricelist.OpRestore:
		default:
			metrics.RequestErrorsTotal.WithLabelValues(path, "400").Inc()
			http.Error(w, "unknown operation", http.StatusBadRequest)
			return
		}

		res := svc.GetAllLists(r.Context(), nil)
		if len(res.Lists) == 0 {
			metrics.RequestErrorsTotal.WithLabelValues(path, "502").Inc()
			http.Error(w, "no registrar could be fetched", http.StatusBadGateway)
			return
		}

		rows := pricelist.CheapestRows(res.Lists, op, nil)
		withCurrency := hasMultipleCurrencies(res.Lists)
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(pricelist.RenderCSV(rows, withCurrency)))
	}
}

func handleRefresh(svc *pricelist.Service) http.HandlerFunc {
	const path = "/api/v1/refresh"
	return func(w http.ResponseWriter, r *http.Request) {
		defer observe(path, time.Now())
		metrics.RequestsTotal.WithLabelValues(path).Inc()

		if r.Method != http.MethodPost {
			metrics.RequestErrorsTotal.WithLabelValues(path, "405").Inc()
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var keys []string
		if key := r.URL.Query().Get("registrar"); key != "" {
			keys = []string{strings.ToLower(key)}
		}

		res := svc.RefreshAll(r.Context(), keys)
		status := map[string]string{}
		for key := range res.Lists {
			status[key] = "ok"
		}
		for key, err := range res.Errors {
			status[key] = err.Error()
		}
		if len(res.Lists) == 0 && len(res.Errors) > 0 {
			w.WriteHeader(http.StatusBadGateway)
		}
		writeJSON(w, path, status)
	}
}

func hasMultipleCurrencies(lists map[string]*pricelist.Pricelist) bool {
	seen := ""
	for _, pl := range lists {
		if pl == nil || pl.Currency == "" {
			continue
		}
		if seen == "" {
			seen = pl.Currency
			continue
		}
		if pl.Currency != seen {
			return true
		}
	}
	return false
}
