package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestIsNoRows(t *testing.T) {
	if !isNoRows(pgx.ErrNoRows) {
		t.Errorf("pgx.ErrNoRows should map to a nil result")
	}
	if !isNoRows(fmt.Errorf("latest snapshot: %w", pgx.ErrNoRows)) {
		t.Errorf("wrapped pgx.ErrNoRows should map to a nil result")
	}
	if isNoRows(errors.New("connection refused")) {
		t.Errorf("connection failures must surface, not map to a nil result")
	}
	if isNoRows(nil) {
		t.Errorf("nil error misclassified as no rows")
	}
}
