package mmu

import (
	"testing"

	"github.com/ev6sim/alphacore/emu/ipr"
	"github.com/ev6sim/alphacore/emu/tlb"
)

type fakeMem struct {
	words map[uint64]uint64
}

func (f *fakeMem) ReadQuad(pa uint64) (uint64, bool) {
	v, ok := f.words[pa]
	return v, ok
}

func baseReq(va uint64) Request {
	return Request{
		VA:     va,
		Access: ipr.Read,
		Mode:   ipr.ModeKernel,
		Realm:  tlb.Data,
		Size:   8,
		ASN:    7,
		PTBR:   0x1000,
		VACtl:  0x2, // virtual addressing enabled
		VA48:   false,
	}
}

func TestWalkThenTlbHitAgree(t *testing.T) {
	mem := &fakeMem{words: map[uint64]uint64{}}
	va := uint64(0x4000) // vpn = 2, idxL1=0 idxL2=0 idxL3=2
	pte := ipr.Pte{Valid: true, KRE: true, PFN: 0x42}

	l1PA := uint64(0x1000)
	l1PFN := uint64(0x10)
	mem.words[l1PA] = ipr.Pte{Valid: true, PFN: l1PFN}.ToRaw()
	l2PA := (l1PFN << 13)
	l2PFN := uint64(0x20)
	mem.words[l2PA] = ipr.Pte{Valid: true, PFN: l2PFN}.ToRaw()
	l3PA := (l2PFN << 13) + 2*8
	mem.words[l3PA] = pte.ToRaw()

	tr := &Translator{CPU: 0, TLB: tlb.NewManager(1), Mem: mem}

	req := baseReq(va)
	out := tr.Translate(req, nil)
	if out.Fault != Success {
		t.Fatalf("expected success, got %v", out.Fault)
	}
	wantPA := (uint64(0x42) << 13) | (va & 0x1fff)
	if out.PA != wantPA {
		t.Fatalf("PA mismatch: got %#x want %#x", out.PA, wantPA)
	}

	// second translation must hit the TLB and agree with the walk.
	out2 := tr.Translate(req, nil)
	if out2.Fault != Success || out2.PA != out.PA {
		t.Fatalf("TLB hit disagreed with walk: %+v vs %+v", out2, out)
	}
}

func TestInvalidPTENeverFillsTLB(t *testing.T) {
	mem := &fakeMem{words: map[uint64]uint64{}}
	va := uint64(0x4000)
	mem.words[0x1000] = ipr.Pte{Valid: true, PFN: 0x10}.ToRaw()
	mem.words[0x10<<13] = ipr.Pte{Valid: true, PFN: 0x20}.ToRaw()
	mem.words[(uint64(0x20)<<13)+16] = ipr.Pte{Valid: false}.ToRaw() // idxL3=2 -> offset 16

	tr := &Translator{CPU: 0, TLB: tlb.NewManager(1), Mem: mem}
	out := tr.Translate(baseReq(va), nil)
	if out.Fault != PageNotPresent {
		t.Fatalf("expected PageNotPresent, got %v", out.Fault)
	}
	if _, _, _, ok := tr.TLB.Lookup(0, tlb.Data, va, 7); ok {
		t.Fatal("invalid PTE must never populate the TLB")
	}
}

func TestUnalignedSkipsTlbEntirely(t *testing.T) {
	tr := &Translator{CPU: 0, TLB: tlb.NewManager(1), Mem: &fakeMem{words: map[uint64]uint64{}}}
	// pre-seed a TLB entry that would otherwise satisfy this VA.
	tr.TLB.Insert(0, tlb.Data, 0x1001, 7, 0, 0x5, tlb.PermKRE, false, false)

	req := baseReq(0x1001)
	out := tr.Translate(req, nil)
	if out.Fault != Unaligned {
		t.Fatalf("expected Unaligned, got %v", out.Fault)
	}
}

func TestCanonicalBoundary43Bit(t *testing.T) {
	tr := &Translator{CPU: 0, TLB: tlb.NewManager(1), Mem: &fakeMem{words: map[uint64]uint64{}}}

	nonCanon := uint64(1) << 42 // bit 42 set alone: not sign-extended
	req := baseReq(nonCanon)
	req.Size = 0
	out := tr.Translate(req, nil)
	if out.Fault != NonCanonical {
		t.Fatalf("expected NonCanonical at the 43-bit boundary, got %v", out.Fault)
	}

	canon := uint64(0x3ff) << 32 // well within range, bit 42 clear
	req2 := baseReq(canon)
	req2.Size = 0
	out2 := tr.Translate(req2, nil)
	if out2.Fault == NonCanonical {
		t.Fatal("canonical address incorrectly rejected")
	}
}

func TestPalModeIdentityMaps(t *testing.T) {
	tr := &Translator{CPU: 0, TLB: tlb.NewManager(1), Mem: &fakeMem{words: map[uint64]uint64{}}}
	req := baseReq(0x7fff0000)
	req.PalMode = true
	req.Size = 0
	out := tr.Translate(req, nil)
	if out.Fault != Success || out.PA != req.VA {
		t.Fatalf("PAL mode must identity map: %+v", out)
	}
}
