package adapters

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

var zeroDecimalCurrencies = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true, "KMF": true, "KRW": true,
	"MGA": true, "PYG": true, "RWF": true, "UGX": true, "VND": true, "VUV": true, "XAF": true,
	"XOF": true, "XPF": true,
}

// FromMinorUnits converts an integer amount in the currency's smallest unit.
func FromMinorUnits(amount int64, currency string) decimal.Decimal {
	if zeroDecimalCurrencies[strings.ToUpper(strings.TrimSpace(currency))] {
		return decimal.NewFromInt(amount)
	}
	return decimal.New(amount, -2)
}

// DecimalFromRaw accepts a JSON number or a numeric string.
func DecimalFromRaw(raw json.RawMessage) decimal.Decimal {
	value := StringFromRaw(raw)
	if value == "" {
		return decimal.Zero
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return parsed
}

// StringFromRaw unquotes JSON strings and passes numbers through verbatim.
func StringFromRaw(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return trimmed
}
