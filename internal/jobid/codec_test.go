package jobid

import "testing"

func TestDecodeLotBearing(t *testing.T) {
	c, ok := Decode("ORD-2025-63790-item-42-lot-7")
	if !ok {
		t.Fatalf("expected decode to succeed")
	}
	if c.OrderID != "ORD-2025-63790" {
		t.Fatalf("order id = %q", c.OrderID)
	}
	if c.ItemID != "42" {
		t.Fatalf("item id = %q", c.ItemID)
	}
	if !c.HasLot() || *c.LotSequence != 7 {
		t.Fatalf("lot sequence = %v", c.LotSequence)
	}
}

func TestDecodePlain(t *testing.T) {
	c, ok := Decode("ORD-2025-63790-item-0")
	if !ok {
		t.Fatalf("expected decode to succeed")
	}
	if c.OrderID != "ORD-2025-63790" || c.ItemID != "0" {
		t.Fatalf("components = %+v", c)
	}
	if c.HasLot() {
		t.Fatalf("expected no lot sequence, got %d", *c.LotSequence)
	}
}

func TestDecodeLegacyDuplicatedToken(t *testing.T) {
	c, ok := Decode("5bnutGOVuMfTELJ6U7GW-item-item-175142835422-lot-2")
	if !ok {
		t.Fatalf("expected decode to succeed")
	}
	if c.OrderID != "5bnutGOVuMfTELJ6U7GW" {
		t.Fatalf("order id = %q", c.OrderID)
	}
	if c.ItemID != "item-175142835422" {
		t.Fatalf("duplicated token must land inside item id, got %q", c.ItemID)
	}
	if !c.HasLot() || *c.LotSequence != 2 {
		t.Fatalf("lot sequence = %v", c.LotSequence)
	}
}

func TestDecodeItemSegmentWithEmbeddedLotToken(t *testing.T) {
	// The trailing -lot-N always wins; earlier -lot- substrings stay in
	// the item segment.
	c, ok := Decode("ord-item-widget-lot-1-lot-2")
	if !ok {
		t.Fatalf("expected decode to succeed")
	}
	if c.ItemID != "widget-lot-1" {
		t.Fatalf("item id = %q", c.ItemID)
	}
	if *c.LotSequence != 2 {
		t.Fatalf("lot sequence = %d", *c.LotSequence)
	}
}

func TestDecodeUnrecognized(t *testing.T) {
	for _, id := range []string{"", "no-anchors-here", "-item-", "order-item-"} {
		if _, ok := Decode(id); ok {
			t.Fatalf("expected %q to be unrecognized", id)
		}
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	seq := int64(3)
	id := Encode("ORD-1", "77", &seq)
	if id != "ORD-1-item-77-lot-3" {
		t.Fatalf("encoded = %q", id)
	}
	c, ok := Decode(id)
	if !ok || c.OrderID != "ORD-1" || c.ItemID != "77" || *c.LotSequence != 3 {
		t.Fatalf("round trip mismatch: %+v ok=%v", c, ok)
	}

	if got := Encode("ORD-1", "77", nil); got != "ORD-1-item-77" {
		t.Fatalf("encoded without lot = %q", got)
	}
}

func TestDisplayLabel(t *testing.T) {
	if got := DisplayLabel("ORD-1-item-77-lot-3", "Bracket"); got != "Bracket (Lot 3)" {
		t.Fatalf("label = %q", got)
	}
	if got := DisplayLabel("ORD-2025-63790-item-0", "Bracket"); got != "Bracket" {
		t.Fatalf("label without lot = %q", got)
	}
	if got := DisplayLabel("opaque", "Bracket"); got != "Bracket" {
		t.Fatalf("label for opaque id = %q", got)
	}
}
