package tlb

import "testing"

func TestInsertLookupRoundTrip(t *testing.T) {
	m := NewManager(1)
	va := uint64(0x10000)
	m.Insert(0, Data, va, 7, 0, 0x42, PermKRE, false, false)

	pfn, perm, sc, ok := m.Lookup(0, Data, va, 7)
	if !ok {
		t.Fatal("expected hit after insert")
	}
	if pfn != 0x42 || perm != PermKRE || sc != 0 {
		t.Fatalf("unexpected result pfn=%#x perm=%#x sc=%d", pfn, perm, sc)
	}
}

func TestASNInvalidationMissesNonGlobalKeepsGlobal(t *testing.T) {
	m := NewManager(1)
	va := uint64(0x20000)
	m.Insert(0, Data, va, 3, 0, 0x99, PermURE, false, false)
	m.Insert(0, Data, va+0x2000, 3, 0, 0xAA, PermURE, true, false) // global

	m.InvalidateASN(0, 3)

	if _, _, _, ok := m.Lookup(0, Data, va, 3); ok {
		t.Fatal("non-global entry should miss after InvalidateASN")
	}
	if _, _, _, ok := m.Lookup(0, Data, va+0x2000, 9); !ok {
		t.Fatal("global entry must hit regardless of ASN, even after InvalidateASN")
	}
}

func TestGlobalEntryMatchesAnyASN(t *testing.T) {
	m := NewManager(1)
	va := uint64(0x30000)
	m.Insert(0, Inst, va, 1, 1, 0x77, PermERE, true, false)

	for _, asn := range []uint8{0, 1, 200} {
		if _, _, _, ok := m.Lookup(0, Inst, va, asn); !ok {
			t.Fatalf("global entry missed for asn=%d", asn)
		}
	}
}

func TestSizeClassTagMustMatch(t *testing.T) {
	m := NewManager(1)
	va := uint64(0x40000)
	m.Insert(0, Data, va, 5, 2, 0x11, PermKRE, false, false)

	if _, _, ok := m.LookupSize(0, Data, va, 5, 0); ok {
		t.Fatal("wrong size-class shard should not report a hit")
	}
	if _, _, ok := m.LookupSize(0, Data, va, 5, 2); !ok {
		t.Fatal("correct size-class shard should hit")
	}
}

// TestVPNCollisionAcrossASNsMatchesCorrectEntry guards against a
// matching-rule defect where the bucket scan keyed on vpn alone and
// stopped at the first hit, so two different processes' non-global
// entries landing on the same VPN in the same bucket (routine for two
// ASNs with overlapping VA ranges on one CPU) would let whichever way
// was inserted first win every lookup regardless of the requesting
// ASN, producing a false miss for the other ASN's resident entry.
func TestVPNCollisionAcrossASNsMatchesCorrectEntry(t *testing.T) {
	m := NewManager(1)
	va := uint64(0x60000)
	m.Insert(0, Data, va, 3, 0, 0x11, PermKRE, false, false) // ASN 3 -> pfn 0x11, way 0
	m.Insert(0, Data, va, 9, 0, 0x22, PermURE, false, false) // ASN 9 -> pfn 0x22, way 1, same vpn/bucket

	if pfn, _, _, ok := m.Lookup(0, Data, va, 3); !ok || pfn != 0x11 {
		t.Fatalf("ASN 3 lookup: got pfn=%#x ok=%v, want pfn=0x11", pfn, ok)
	}
	if pfn, _, _, ok := m.Lookup(0, Data, va, 9); !ok || pfn != 0x22 {
		t.Fatalf("ASN 9 lookup: got pfn=%#x ok=%v, want pfn=0x22 (wrong-ASN entry won the scan)", pfn, ok)
	}
	if _, _, _, ok := m.Lookup(0, Data, va, 5); ok {
		t.Fatal("a third ASN with no resident entry for this vpn must miss")
	}
}

func TestInvalidateAllDropsUnlockedKeepsLocked(t *testing.T) {
	m := NewManager(1)
	va1, va2 := uint64(0x50000), uint64(0x52000)
	m.Insert(0, Data, va1, 2, 0, 1, PermKRE, false, false)
	m.Insert(0, Data, va2, 2, 0, 2, PermKRE, false, true) // locked

	m.InvalidateAll(0)

	if _, _, _, ok := m.Lookup(0, Data, va1, 2); ok {
		t.Fatal("unlocked entry should miss after InvalidateAll")
	}
	if _, _, _, ok := m.Lookup(0, Data, va2, 2); !ok {
		t.Fatal("locked entry must survive InvalidateAll")
	}
}
