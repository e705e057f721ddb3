package pricelist

import (
	"encoding/json"
	"os"
)

// Descriptor holds static metadata about a registrar price source. The
// adapter with a matching key implements the actual pipeline.
type Descriptor struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Source   string `json:"source"`
	Currency string `json:"currency"`
	Notes    string `json:"notes,omitempty"`
}

const registrarsEnv = "PRICELIST_REGISTRARS_JSON"

func defaultRegistrars() []Descriptor {
	return []Descriptor{
		{
			Key:      "namecheap",
			Name:     "Namecheap",
			Source:   "https://api.namecheap.com/xml.response",
			Currency: "USD",
			Notes:    "XML API, pricing per action plus TLD capability metadata",
		},
		{
			Key:      "nira",
			Name:     "Nigeria Internet Registration Association",
			Source:   "nira-fixed-table",
			Currency: "USD",
			Notes:    "fixed NGN table converted at the current NGN/USD rate",
		},
		{
			Key:      "upperlink",
			Name:     "Upperlink",
			Source:   "https://docs.google.com/spreadsheets/d/1xYkePrUpperlinkRetail/edit#gid=0",
			Currency: "USD",
			Notes:    "published reseller price sheet, regular and member tiers",
		},
	}
}

// Registrars returns the registrar descriptor table, overridable as a whole
// through PRICELIST_REGISTRARS_JSON.
func Registrars() []Descriptor {
	raw := os.Getenv(registrarsEnv)
	if raw == "" {
		return defaultRegistrars()
	}
	var out []Descriptor
	if err := json.Unmarshal([]byte(raw), &out); err != nil || len(out) == 0 {
		return defaultRegistrars()
	}
	return out
}

// GetDescriptor looks up a registrar descriptor by key.
func GetDescriptor(key string) (Descriptor, bool) {
	for _, d := range Registrars() {
		if d.Key == key {
			return d, true
		}
	}
	return Descriptor{}, false
}
