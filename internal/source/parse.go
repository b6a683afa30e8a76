package source

import (
	"strings"

	"github.com/shopspring/decimal"
)

// parsePercentCell accepts both "12.5" and "12.5%" spreadsheet renderings.
func parsePercentCell(s string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimSuffix(trimmed, "%")
	return decimal.NewFromString(strings.TrimSpace(trimmed))
}

// parseBoolCell mirrors spreadsheet truthiness: true/1/yes/y, case-insensitive.
func parseBoolCell(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y":
		return true
	default:
		return false
	}
}

// parseRecipients splits a comma-separated address cell, dropping empties.
func parseRecipients(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// blankRow reports whether every cell is empty after trimming.
func blankRow(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
