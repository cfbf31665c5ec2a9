package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimal accepts common user-formatted quantity/cost strings coming out
// of document extraction, e.g.:
// - "20,000"
// - "USD 20,000"
// - "$ -20,000"
// - "1,234.50 usd"
//
// Keep digits, '.', and a leading '-' only.
func ParseDecimal(i interface{}) (decimal.Decimal, error) {
	switch v := i.(type) {
	case string:
		s := strings.TrimSpace(v)
		// A '-' counts as a sign only before the first digit.
		neg := false
		for _, r := range s {
			if r >= '0' && r <= '9' {
				break
			}
			if r == '-' {
				neg = true
				break
			}
		}
		var b strings.Builder
		b.Grow(len(s) + 1)
		for _, r := range s {
			if (r >= '0' && r <= '9') || r == '.' {
				b.WriteRune(r)
			}
		}
		clean := b.String()
		if clean == "" {
			return decimal.NewFromInt(0), fmt.Errorf("invalid value")
		}
		if neg {
			clean = "-" + clean
		}

		val, err := decimal.NewFromString(clean)
		if err != nil {
			return decimal.NewFromInt(0), err
		}
		return val, nil
	case json.Number:
		num, err := v.Float64()
		if err != nil {
			return decimal.NewFromInt(0), err
		}
		return decimal.NewFromFloat(num), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return decimal.NewFromInt(0), fmt.Errorf("invalid value")
	}
}
