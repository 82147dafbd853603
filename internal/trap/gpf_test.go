package trap

import (
	"bytes"
	"strings"
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

func TestGPFHandlerLogsAndHalts(t *testing.T) {
	var buf bytes.Buffer
	log := klog.New(&buf, 8192, klog.Debug, panicHalter{})

	ram := mem.NewRAM()
	fa := &mem.FrameAllocator{}
	fa.Init(mem.PhysAddr(4*mem.PGSIZE), mem.PhysAddr(8*mem.PGSIZE),
		mem.VirtAddr(defs.KernelVirtualStart), mem.VirtAddr(defs.KernelVirtualStart+8*mem.PGSIZE))
	vm := vmm.NewManager(ram, fa)
	vm.Init()
	procs := proc.NewManager(fa, vm, ram, fakeKStack{})

	image := make([]byte, mem.PGSIZE)
	image[0] = 0x90 // nop, decodes cleanly
	if _, err := procs.CreateProcess(image); err != 0 {
		t.Fatalf("CreateProcess: %v", err)
	}
	procs.Schedule() // makes the new process Current()
	h := NewGPFHandler(log, procs, vm, ram)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected GPFHandler to halt (panic via the test Halter)")
		}
		out := buf.String()
		if !strings.Contains(out, "general protection fault") {
			t.Fatalf("expected GPF log line, got %q", out)
		}
	}()

	f := &Frame{
		Info:  IDTInfo{Vector: defs.VecGPFault, ErrorCode: 0},
		Stack: StackState{Eip: defs.UserCodeStart, Cs: uint32(defs.UserCS)},
	}
	h.Handle(f)
}
