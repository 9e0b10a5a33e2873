package utils

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDocumentNumberUniqueWithinSameSecond(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		no := DocumentNumber("SO")
		if !strings.HasPrefix(no, "SO") {
			t.Fatalf("expected SO prefix, got %s", no)
		}
		if len(no) != 2+14+8 {
			t.Fatalf("unexpected number length: %s", no)
		}
		if seen[no] {
			t.Fatalf("duplicate document number: %s", no)
		}
		seen[no] = true
	}
}

func TestParseDecimal(t *testing.T) {
	dec, err := ParseDecimal(" 12.50 ")
	if err != nil {
		t.Fatalf("parse decimal: %v", err)
	}
	if !dec.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("expected 12.5, got %s", dec)
	}

	if _, err := ParseDecimal(""); err == nil {
		t.Fatal("expected error for empty string")
	}
	if _, err := ParseDecimal("abc"); err == nil {
		t.Fatal("expected error for non-numeric string")
	}
}

func TestValidatePositiveQuantity(t *testing.T) {
	if err := ValidatePositiveQuantity("quantity", decimal.NewFromInt(1)); err != nil {
		t.Fatalf("positive quantity rejected: %v", err)
	}
	if err := ValidatePositiveQuantity("quantity", decimal.Zero); err == nil {
		t.Fatal("expected error for zero quantity")
	}
	if err := ValidatePositiveQuantity("quantity", decimal.NewFromInt(-3)); err == nil {
		t.Fatal("expected error for negative quantity")
	}
}
