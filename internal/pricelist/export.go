package pricelist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// WritePricelistFile writes a pricelist to <dir>/<registrar>.json.
func WritePricelistFile(dir string, pl *Pricelist) (string, error) {
	path := filepath.Join(dir, pl.RegistrarID+".json")
	if err := writeJSONAtomically(path, pl); err != nil {
		return "", fmt.Errorf("write pricelist %s: %w", pl.RegistrarID, err)
	}
	return path, nil
}

// WriteUnifiedFiles writes the unified table as JSON plus one CSV per
// operation (create, renew, transfer) and returns the paths written.
func WriteUnifiedFiles(dir string, lists map[string]*Pricelist, entries []UnifiedEntry) ([]string, error) {
	var paths []string

	jsonPath := filepath.Join(dir, "unified.json")
	if err := writeJSONAtomically(jsonPath, entries); err != nil {
		return nil, fmt.Errorf("write unified json: %w", err)
	}
	paths = append(paths, jsonPath)

	multiCurrency := hasMultipleCurrencies(lists)
	for _, op := range []string{OpCreate, OpRenew, OpTransfer} {
		rows := CheapestRows(lists, op, nil)
		csvPath := filepath.Join(dir, "cheapest-"+op+".csv")
		csv := RenderCSV(rows, multiCurrency)
		if err := writeFileAtomically(csvPath, strings.NewReader(csv)); err != nil {
			return nil, fmt.Errorf("write %s csv: %w", op, err)
		}
		paths = append(paths, csvPath)
	}

	return paths, nil
}

func hasMultipleCurrencies(lists map[string]*Pricelist) bool {
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

func writeJSONAtomically(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return writeFileAtomically(path, &buf)
}

// writeFileAtomically replaces path as a whole file so concurrent readers
// never observe a partial artifact.
func writeFileAtomically(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
