package utils

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		want string
		err  bool
	}{
		{"plain", "1234.50", "1234.5", false},
		{"thousands separator", "20,000", "20000", false},
		{"currency prefix", "USD 20,000", "20000", false},
		{"currency suffix", "1,234.50 usd", "1234.5", false},
		{"negative with symbol", "$ -20,000", "-20000", false},
		{"float64", float64(5.75), "5.75", false},
		{"json number", json.Number("900"), "900", false},
		{"empty", "", "0", true},
		{"letters only", "abc", "0", true},
		{"nil", nil, "0", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDecimal(tc.in)
			if tc.err {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want, _ := decimal.NewFromString(tc.want)
			if !got.Equal(want) {
				t.Fatalf("expected %s, got %s", want, got)
			}
		})
	}
}

func TestParseDecimal_DashInsideTextIsNotASign(t *testing.T) {
	// A '-' after digits (e.g. a range or a date fragment) must not negate.
	got, err := ParseDecimal("100-200")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.IsNegative() {
		t.Fatalf("expected non-negative parse, got %s", got)
	}
}
