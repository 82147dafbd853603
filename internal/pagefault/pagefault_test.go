package pagefault

import (
	"bytes"
	"testing"

	"minikern/internal/defs"
	"minikern/internal/klog"
	"minikern/internal/mem"
	"minikern/internal/proc"
	"minikern/internal/vmm"
)

type panicHalter struct{}

func (panicHalter) HaltForever() { panic("halt") }

type fakeKStack struct{}

func (fakeKStack) SetKernelStack(uint32) {}

func setup(t *testing.T) (*Handler, *proc.Manager, *vmm.Manager, *mem.RAM, *bytes.Buffer) {
	t.Helper()
	ram := mem.NewRAM()
	fa := &mem.FrameAllocator{}
	fa.Init(mem.PhysAddr(4*mem.PGSIZE), mem.PhysAddr(8*mem.PGSIZE),
		mem.VirtAddr(defs.KernelVirtualStart), mem.VirtAddr(defs.KernelVirtualStart+8*mem.PGSIZE))
	vm := vmm.NewManager(ram, fa)
	vm.Init()
	procs := proc.NewManager(fa, vm, ram, fakeKStack{})
	var buf bytes.Buffer
	log := klog.New(&buf, 8192, klog.Debug, panicHalter{})
	h := NewHandler(log, procs, vm, ram, fa)
	return h, procs, vm, ram, &buf
}

func TestDemandPageZeroFill(t *testing.T) {
	h, procs, vm, ram, _ := setup(t)
	image := make([]byte, mem.PGSIZE)
	if _, err := procs.CreateProcess(image); err != 0 {
		t.Fatalf("CreateProcess: %v", err)
	}
	procs.Schedule()
	cur := procs.Current()
	cr3 := procs.PCB(cur).Context.CR3

	fault := defs.UserStackTop - mem.PGSIZE
	h.Handle(fault, ErrUser)

	phys := vm.GetPhysicalAddress(cr3, fault)
	if phys == 0 {
		t.Fatalf("expected fault address to be mapped after Handle")
	}
	frame := ram.Frame(phys)
	for i, b := range frame {
		if b != 0 {
			t.Fatalf("demand-paged frame not zero-filled at offset %d: %#x", i, b)
		}
	}
}

func TestKernelSpaceFaultHalts(t *testing.T) {
	h, procs, _, _, buf := setup(t)
	image := make([]byte, mem.PGSIZE)
	procs.CreateProcess(image)
	procs.Schedule()

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected kernel-space fault to halt")
		}
		if !bytes.Contains(buf.Bytes(), []byte("kernel space")) {
			t.Fatalf("expected kernel-space fault log line, got %q", buf.String())
		}
	}()
	h.Handle(defs.KernelVirtualStart+0x1000, ErrUser)
}

func TestProtectionViolationOnPresentPageHalts(t *testing.T) {
	h, procs, _, _, buf := setup(t)
	image := make([]byte, mem.PGSIZE)
	procs.CreateProcess(image)
	procs.Schedule()

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected present-page protection violation to halt")
		}
		if !bytes.Contains(buf.Bytes(), []byte("protection violation")) {
			t.Fatalf("expected protection-violation log line, got %q", buf.String())
		}
	}()
	h.Handle(defs.UserCodeStart, ErrPresent|ErrUser|ErrWrite)
}
