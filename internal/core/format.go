package core

import (
	"fmt"
	"strings"
)

// Codes used when a caller supplies no part or order metadata and the job
// identifier yields none. They keep the deterministic formula total; they are
// never used to detect missing input.
const (
	fallbackPartCode  = "PART"
	fallbackOrderCode = "ORDER"
)

// DeterministicLot derives the canonical lot number for a job whose
// identifier embeds a lot sequence. The same inputs always produce the same
// string, so a lost mapping record re-derives identically:
//
//	{first 6 alphanumerics of partNumber}-{last 6 alphanumerics of orderID}-LOT-{seq:03d}
func DeterministicLot(partNumber, orderID string, sequence int64) string {
	partCode := headAlphanumeric(partNumber, 6)
	if partCode == "" {
		partCode = fallbackPartCode
	}
	orderCode := tailAlphanumeric(orderID, 6)
	if orderCode == "" {
		orderCode = fallbackOrderCode
	}
	return fmt.Sprintf("%s-%s-LOT-%03d", partCode, orderCode, sequence)
}

func stripNonAlphanumeric(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func headAlphanumeric(s string, n int) string {
	clean := stripNonAlphanumeric(s)
	if len(clean) > n {
		return clean[:n]
	}
	return clean
}

func tailAlphanumeric(s string, n int) string {
	clean := stripNonAlphanumeric(s)
	if len(clean) > n {
		return clean[len(clean)-n:]
	}
	return clean
}
