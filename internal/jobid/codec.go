// Package jobid encodes and decodes composite job identifiers.
//
// Two textual shapes are recognized:
//
//	<orderID>-item-<itemID>-lot-<N>   (lot-bearing, canonical)
//	<orderID>-item-<itemID>           (no embedded lot)
//
// A historical generation defect produced identifiers whose item segment
// itself begins with "item-" ("...-item-item-<digits>..."). The decoder
// anchors on the first "-item-" token, so the duplicated token lands inside
// the item id instead of failing the parse.
package jobid

import (
	"fmt"
	"regexp"
	"strconv"
)

// Components holds the decoded parts of a job identifier. LotSequence is nil
// when the identifier carries no embedded lot.
type Components struct {
	OrderID     string
	ItemID      string
	LotSequence *int64
}

// HasLot reports whether the identifier embedded a lot sequence.
func (c Components) HasLot() bool { return c.LotSequence != nil }

// The lot-bearing pattern is tried first; it is strictly more specific than
// the plain pattern. The order segment matches lazily so the first "-item-"
// anchor wins; the item segment matches greedily so a trailing "-lot-N" is
// always the final one.
var (
	lotPattern   = regexp.MustCompile(`^(.+?)-item-(.+)-lot-(\d+)$`)
	plainPattern = regexp.MustCompile(`^(.+?)-item-(.+)$`)
)

// Decode parses a job identifier. It returns ok=false for unrecognized
// shapes; callers must fall back to their own metadata, never fail hard.
func Decode(jobID string) (Components, bool) {
	if m := lotPattern.FindStringSubmatch(jobID); m != nil {
		seq, err := strconv.ParseInt(m[3], 10, 64)
		if err == nil {
			return Components{OrderID: m[1], ItemID: m[2], LotSequence: &seq}, true
		}
	}
	if m := plainPattern.FindStringSubmatch(jobID); m != nil {
		return Components{OrderID: m[1], ItemID: m[2]}, true
	}
	return Components{}, false
}

// Encode builds a clean job identifier. It always produces the canonical
// shape; it is never used to rewrite legacy identifiers in place.
func Encode(orderID, itemID string, lotSequence *int64) string {
	if lotSequence != nil {
		return fmt.Sprintf("%s-item-%s-lot-%d", orderID, itemID, *lotSequence)
	}
	return fmt.Sprintf("%s-item-%s", orderID, itemID)
}

// DisplayLabel renders a human-readable job label. When the identifier
// embeds a lot sequence the label is "<partName> (Lot <N>)"; otherwise the
// part name is returned unchanged.
func DisplayLabel(jobID, partName string) string {
	if c, ok := Decode(jobID); ok && c.HasLot() {
		return fmt.Sprintf("%s (Lot %d)", partName, *c.LotSequence)
	}
	return partName
}
