package render

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount renders revenue, falling back to payout and then "0".
// Whole numbers lose their fraction, others keep two decimals. Values that
// are not numbers are shown as sent.
func FormatAmount(revenue, payout, currency string) string {
	amount := revenue
	if amount == "" {
		amount = payout
	}
	if amount == "" {
		amount = "0"
	}

	if d, err := decimal.NewFromString(strings.TrimSpace(amount)); err == nil {
		if d.IsInteger() {
			amount = d.StringFixed(0)
		} else {
			amount = d.StringFixed(2)
		}
	}

	if currency != "" {
		return amount + " " + currency
	}
	return amount
}
