package core

import (
	"testing"
	"time"

	"github.com/ev6sim/alphacore/emu/memory"
)

func TestNewSystemSharesFabricAcrossCPUs(t *testing.T) {
	sys := NewSystem(2, 0x4000)
	if len(sys.Cpus) != 2 {
		t.Fatalf("expected 2 CPUs, got %d", len(sys.Cpus))
	}
	if sys.Cpus[0].Ctx == sys.Cpus[1].Ctx {
		t.Fatal("expected distinct per-CPU contexts")
	}

	sys.Mem.Write32(0x100, 0xdeadbeef)
	if v, st := sys.Mem.Read(0x100, 4); st != memory.Ok || v != 0xdeadbeef {
		t.Fatalf("expected shared memory visible, got %#x status=%v", v, st)
	}
}

func TestSystemStartStopStepsWhenRunning(t *testing.T) {
	sys := NewSystem(1, 0x4000)
	sys.Cpus[0].SetRunning(false)
	pcBefore := sys.Cpus[0].Ctx.PC()

	sys.Start()
	defer sys.Stop()

	sys.Send(Packet{Kind: PacketStart, TargetCPU: 0})
	time.Sleep(20 * time.Millisecond)
	sys.Send(Packet{Kind: PacketStop, TargetCPU: 0})

	// Reset guest memory is all zero, which decodes as CALL_PAL HALT at
	// PC 0. HALT stops the CPU while it is in EX, before it retires, and
	// Context.PC only advances at retirement (nextFetchPC is internal to
	// the pipeline), so the PC stays at its reset value.
	if sys.Cpus[0].Ctx.PC() != pcBefore {
		t.Fatal("expected PC to stay at the reset value when HALT stops the CPU before retiring")
	}
	if !sys.Cpus[0].Ctx.IsHalted() {
		t.Fatal("expected CPU to reach HALT on all-zero reset memory")
	}
}

func TestStepAllCooperativeOnlyStepsRunningCPUs(t *testing.T) {
	sys := NewSystem(2, 0x4000)
	sys.Cpus[0].SetRunning(true)
	sys.Cpus[1].SetRunning(false)

	pcBefore := sys.Cpus[1].Ctx.PC()
	for i := 0; i < 5; i++ {
		sys.StepAllCooperative()
	}
	if sys.Cpus[1].Ctx.PC() != pcBefore {
		t.Fatal("expected non-running CPU's PC to stay put")
	}
}

func TestBroadcastPacketReachesEveryCPU(t *testing.T) {
	sys := NewSystem(2, 0x4000)
	sys.Start()
	defer sys.Stop()

	sys.Send(Packet{Kind: PacketBroadcast, TargetCPU: BroadcastCPU})
	time.Sleep(20 * time.Millisecond)
}
