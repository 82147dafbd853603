package kstate

import (
	"bytes"
	"strings"
	"testing"

	"minikern/internal/defs"
	"minikern/internal/klog"
	"minikern/internal/mem"
	"minikern/internal/pagefault"
	"minikern/internal/trap"
)

type fakePort struct{}

func (fakePort) Outb(uint16, uint8) {}
func (fakePort) Inb(uint16) uint8   { return 0xFF }

type fakeLoader struct{}

func (fakeLoader) LoadGDT(uint32, uint16)        {}
func (fakeLoader) ReloadSegments(uint16, uint16) {}
func (fakeLoader) LoadTSS(uint16)                {}

type panicHalter struct{}

func (panicHalter) HaltForever() { panic("halt") }

// fakeCR2 stands in for the CR2 register: tests set Addr to whatever
// the simulated fault should report, independent of any trap.Frame
// field.
type fakeCR2 struct{ Addr uint32 }

func (f *fakeCR2) ReadCR2() uint32 { return f.Addr }

func TestNewWiresEveryVector(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf, klog.Debug, panicHalter{}, fakePort{}, fakeLoader{}, &fakeCR2{})

	for _, v := range []uint32{13, 14, 0x80, 32} {
		if !s.Trap.HasHandler(v) {
			t.Fatalf("expected a registered handler for vector %#x", v)
		}
	}
	if !strings.Contains(buf.String(), "kernel state initialized") {
		t.Fatalf("expected init log line, got %q", buf.String())
	}
}

func TestLoadInitialProcessWithNoModulesWarnsAndFails(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf, klog.Debug, panicHalter{}, fakePort{}, fakeLoader{}, &fakeCR2{})
	_, err := s.LoadInitialProcess(nil)
	if err == 0 {
		t.Fatalf("expected LoadInitialProcess to fail with no modules")
	}
	if !strings.Contains(buf.String(), "no modules found") {
		t.Fatalf("expected warning log line, got %q", buf.String())
	}
}

func TestLoadInitialProcessCreatesProcessAndAttachesInitrd(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf, klog.Debug, panicHalter{}, fakePort{}, fakeLoader{}, &fakeCR2{})

	image := make([]byte, mem.PGSIZE)
	mod := BootModule{Data: image}

	pid, err := s.LoadInitialProcess([]BootModule{mod})
	if err != 0 {
		t.Fatalf("LoadInitialProcess: %v", err)
	}
	if s.Procs.PCB(pid).Pid == 0 {
		t.Fatalf("expected a live PID for the initial process")
	}
}

func TestTimerTickInvokesSchedulerThroughDispatcher(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf, klog.Debug, panicHalter{}, fakePort{}, fakeLoader{}, &fakeCR2{})
	image := make([]byte, mem.PGSIZE)
	s.LoadInitialProcess([]BootModule{{Data: image}})

	if s.Procs.Current() != -1 {
		t.Fatalf("expected no current process before the first tick")
	}
	f := &trap.Frame{Info: trap.IDTInfo{Vector: 32}}
	s.Trap.Dispatch(f)
	if s.Procs.Current() == -1 {
		t.Fatalf("expected the timer tick to schedule the ready process")
	}
}

// TestPageFaultVectorUsesCR2NotEip drives a real vector-14 Frame
// through the dispatcher and checks the demand-paged frame lands at
// the injected CR2 address, not at the trap frame's EIP — the two
// legitimately differ on real hardware (a data fault taken while
// executing from an entirely different page).
func TestPageFaultVectorUsesCR2NotEip(t *testing.T) {
	var buf bytes.Buffer
	cr2 := &fakeCR2{}
	s := New(&buf, klog.Debug, panicHalter{}, fakePort{}, fakeLoader{}, cr2)

	image := make([]byte, mem.PGSIZE)
	s.LoadInitialProcess([]BootModule{{Data: image}})
	s.Trap.Dispatch(&trap.Frame{Info: trap.IDTInfo{Vector: 32}}) // schedule it

	cur := s.Procs.Current()
	cr3 := s.Procs.PCB(cur).Context.CR3

	const faultAddr = defs.UserCodeStart + 0x1000
	const eip = defs.UserCodeStart // the code the fault is taken from
	cr2.Addr = faultAddr
	codePhys := s.VM.GetPhysicalAddress(cr3, uint32(mem.VirtAddr(eip).PageRound()))

	s.Trap.Dispatch(&trap.Frame{
		Info:  trap.IDTInfo{Vector: 14, ErrorCode: uint32(pagefault.ErrUser)},
		Stack: trap.StackState{Eip: eip},
	})

	if phys := s.VM.GetPhysicalAddress(cr3, uint32(mem.VirtAddr(faultAddr).PageRound())); phys == 0 {
		t.Fatalf("expected a demand-paged frame installed at CR2 (%#08x)", faultAddr)
	}
	if phys := s.VM.GetPhysicalAddress(cr3, uint32(mem.VirtAddr(eip).PageRound())); phys != codePhys {
		t.Fatalf("did not expect a new frame installed at EIP (%#08x); that code page was never faulted on", eip)
	}
}
