package storage

import "time"

// Registrar holds metadata about a price source.
type Registrar struct {
	Key      string `json:"key" gorm:"primaryKey;column:key"`
	Name     string `json:"name" gorm:"column:name"`
	Source   string `json:"source" gorm:"column:source"`
	Currency string `json:"currency" gorm:"column:currency"`
	Notes    string `json:"notes,omitempty" gorm:"column:notes"`
}

// PricelistSnapshot stores a previously generated pricelist payload for a
// registrar, together with the moment it was cached. The payload is the JSON
// encoding of a pricelist.Pricelist.
type PricelistSnapshot struct {
	ID        uint      `json:"-" gorm:"primaryKey;column:id"`
	Registrar string    `json:"registrar" gorm:"index;column:registrar"`
	Payload   []byte    `json:"payload" gorm:"column:payload"`
	FetchedAt time.Time `json:"fetched_at" gorm:"column:fetched_at"`
}

// JobRun records the last execution of a scheduled job.
type JobRun struct {
	Name           string    `json:"name" gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `json:"last_run_at" gorm:"column:last_run_at"`
	LastDurationMs int64     `json:"last_duration_ms" gorm:"column:last_duration_ms"`
	LastSuccess    int       `json:"last_success" gorm:"column:last_success"`
	LastError      string    `json:"last_error" gorm:"column:last_error"`
}
