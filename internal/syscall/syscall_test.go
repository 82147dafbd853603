package syscall

import (
	"bytes"
	"strings"
	"testing"

	"minikern/internal/defs"
	"minikern/internal/klog"
	"minikern/internal/mem"
	"minikern/internal/proc"
	"minikern/internal/trap"
	"minikern/internal/vmm"
)

type fakeKStack struct{}

func (fakeKStack) SetKernelStack(uint32) {}

func newHarness(t *testing.T) (*Table, *proc.Manager, *mem.RAM, *bytes.Buffer) {
	t.Helper()
	ram := mem.NewRAM()
	fa := &mem.FrameAllocator{}
	fa.Init(mem.PhysAddr(4*mem.PGSIZE), mem.PhysAddr(8*mem.PGSIZE),
		mem.VirtAddr(defs.KernelVirtualStart), mem.VirtAddr(defs.KernelVirtualStart+8*mem.PGSIZE))
	vm := vmm.NewManager(ram, fa)
	vm.Init()
	procs := proc.NewManager(fa, vm, ram, fakeKStack{})
	var buf bytes.Buffer
	log := klog.New(&buf, 16384, klog.Debug, nil)
	return NewTable(log, procs, ram), procs, ram, &buf
}

func writeCString(t *testing.T, procs *proc.Manager, ram *mem.RAM, idx defs.Tid_t, vaddr uint32, s string) {
	t.Helper()
	cr3 := procs.PCB(idx).Context.CR3
	phys := procs.VM().GetPhysicalAddress(cr3, vaddr)
	if phys == 0 {
		t.Fatalf("vaddr %#x not mapped", vaddr)
	}
	frame := ram.Frame(phys)
	off := phys.Offset()
	copy(frame[off:], s)
	frame[off+uint32(len(s))] = 0
}

func TestInvalidSyscallReturnsAllOnes(t *testing.T) {
	tbl, procs, _, _ := newHarness(t)
	image := make([]byte, mem.PGSIZE)
	procs.CreateProcess(image)
	procs.Schedule()

	h := tbl.Handler()
	f := &trap.Frame{CPU: trap.CPUState{Eax: 99}}
	h(f)
	if f.CPU.Eax != 0xFFFFFFFF {
		t.Fatalf("eax = %#x, want 0xFFFFFFFF", f.CPU.Eax)
	}
}

func TestPrintfReadsUserString(t *testing.T) {
	tbl, procs, ram, buf := newHarness(t)
	image := make([]byte, mem.PGSIZE)
	procs.CreateProcess(image)
	procs.Schedule()
	cur := procs.Current()
	writeCString(t, procs, ram, cur, defs.UserCodeStart+0x100, "hi")

	h := tbl.Handler()
	f := &trap.Frame{CPU: trap.CPUState{Eax: SysPrintf, Ebx: defs.UserCodeStart + 0x100}}
	h(f)
	if f.CPU.Eax != 1 {
		t.Fatalf("eax = %#x, want 1", f.CPU.Eax)
	}
	if !strings.Contains(buf.String(), "hi") {
		t.Fatalf("expected logged output to contain the printf string, got %q", buf.String())
	}
}

func TestPrintfNullPointerFails(t *testing.T) {
	tbl, procs, _, _ := newHarness(t)
	image := make([]byte, mem.PGSIZE)
	procs.CreateProcess(image)
	procs.Schedule()

	h := tbl.Handler()
	f := &trap.Frame{CPU: trap.CPUState{Eax: SysPrintf, Ebx: 0}}
	h(f)
	if f.CPU.Eax != 0xFFFFFFFF {
		t.Fatalf("eax = %#x, want 0xFFFFFFFF for a NULL format pointer", f.CPU.Eax)
	}
}

// TestPrintfRunsOffMappedMemoryFails covers readCString's bound check:
// a format string with no NUL before the mapping ends (here, the edge
// of the process's single backing page) must fail the syscall rather
// than read into unmapped memory.
func TestPrintfRunsOffMappedMemoryFails(t *testing.T) {
	tbl, procs, ram, _ := newHarness(t)
	image := make([]byte, mem.PGSIZE)
	procs.CreateProcess(image)
	procs.Schedule()
	cur := procs.Current()

	cr3 := procs.PCB(cur).Context.CR3
	vaddr := defs.UserCodeStart + 0x100
	phys := procs.VM().GetPhysicalAddress(cr3, vaddr)
	if phys == 0 {
		t.Fatalf("vaddr %#x not mapped", vaddr)
	}
	frame := ram.Frame(phys)
	for i := phys.Offset(); i < mem.PGSIZE; i++ {
		frame[i] = 'a' // fill the rest of the page, never writing a NUL
	}

	h := tbl.Handler()
	f := &trap.Frame{CPU: trap.CPUState{Eax: SysPrintf, Ebx: vaddr}}
	h(f)
	if f.CPU.Eax != 0xFFFFFFFF {
		t.Fatalf("eax = %#x, want 0xFFFFFFFF when the string runs off mapped memory", f.CPU.Eax)
	}
}

// TestSyscallDispatchAccumulatesSystemTime covers the entry/exit
// bracket the Handler wraps every dispatched call in: after a round
// trip through the table, the caller's Accnt must show nonzero system
// time, not the all-zero snapshot a never-populated counter would give.
func TestSyscallDispatchAccumulatesSystemTime(t *testing.T) {
	tbl, procs, ram, _ := newHarness(t)
	image := make([]byte, mem.PGSIZE)
	procs.CreateProcess(image)
	procs.Schedule()
	cur := procs.Current()
	writeCString(t, procs, ram, cur, defs.UserCodeStart+0x100, "hi")

	before := procs.PCB(cur).Accnt.Snapshot()
	if before.Sysns != 0 {
		t.Fatalf("expected zero system time before any syscall, got %d", before.Sysns)
	}

	h := tbl.Handler()
	f := &trap.Frame{CPU: trap.CPUState{Eax: SysPrintf, Ebx: defs.UserCodeStart + 0x100}}
	h(f)

	after := procs.PCB(cur).Accnt.Snapshot()
	if after.Sysns <= before.Sysns {
		t.Fatalf("expected syscall dispatch to grow system time, got before=%d after=%d", before.Sysns, after.Sysns)
	}
}

func TestForkReturnsChildPidToParent(t *testing.T) {
	tbl, procs, _, _ := newHarness(t)
	image := make([]byte, mem.PGSIZE)
	procs.CreateProcess(image)
	procs.Schedule()
	parent := procs.Current()
	parentPid := procs.PCB(parent).Pid

	h := tbl.Handler()
	f := &trap.Frame{CPU: trap.CPUState{Eax: SysFork}}
	h(f)
	if f.CPU.Eax == 0xFFFFFFFF {
		t.Fatalf("fork syscall failed")
	}
	if defs.Tid_t(f.CPU.Eax) == parentPid {
		t.Fatalf("fork returned the parent's own pid")
	}
}

func TestExitThenWaitRoundTrip(t *testing.T) {
	tbl, procs, _, _ := newHarness(t)
	image := make([]byte, mem.PGSIZE)
	procs.CreateProcess(image)
	procs.Schedule()
	parent := procs.Current()

	h := tbl.Handler()
	forkFrame := &trap.Frame{CPU: trap.CPUState{Eax: SysFork}}
	h(forkFrame)
	childPid := defs.Tid_t(forkFrame.CPU.Eax)

	// Reaping happens from the parent's context; exit the child
	// directly via the process manager (the "current" process in this
	// harness is still the parent, so simulate the child's own exit
	// syscall without switching Current()).
	var childIdx defs.Tid_t = -1
	for i := defs.Tid_t(0); i < defs.MaxProcs; i++ {
		if procs.PCB(i).Pid == childPid {
			childIdx = i
			break
		}
	}
	if childIdx == -1 {
		t.Fatalf("could not find child pcb for pid %d", childPid)
	}
	procs.Exit(childIdx, 42)

	waitFrame := &trap.Frame{CPU: trap.CPUState{Eax: SysWait}}
	h(waitFrame)
	if defs.Tid_t(waitFrame.CPU.Eax) != childPid {
		t.Fatalf("wait returned pid %d, want %d", waitFrame.CPU.Eax, childPid)
	}
	_ = parent
}
