package vmm

import (
	"testing"

	"minikern/internal/defs"
	"minikern/internal/mem"
)

func setup(t *testing.T) (*Manager, *mem.FrameAllocator, *mem.RAM) {
	t.Helper()
	ram := mem.NewRAM()
	fa := &mem.FrameAllocator{}
	fa.Init(mem.PhysAddr(2*mem.PGSIZE), mem.PhysAddr(4*mem.PGSIZE), mem.VirtAddr(defs.KernelVirtualStart), mem.VirtAddr(defs.KernelVirtualStart+4*mem.PGSIZE))
	m := NewManager(ram, fa)
	m.Init()
	return m, fa, ram
}

func TestKernelMappingIdentity(t *testing.T) {
	m, _, _ := setup(t)
	child := m.CreatePageDirectory()
	kpd := m.table(m.KernelPD())
	cpd := m.table(child)
	for i := defs.KernelPDTIdx; i < entriesPerTable; i++ {
		if kpd[i] != cpd[i] {
			t.Fatalf("pd[%d] diverges: kernel=%#x child=%#x", i, kpd[i], cpd[i])
		}
	}
}

func TestMapAndTranslateRoundTrip(t *testing.T) {
	m, fa, ram := setup(t)
	pd := m.CreatePageDirectory()
	frame := fa.AllocFrame()
	vaddr := uint32(0x0804_8000)
	if !m.MapPage(pd, vaddr, frame, defs.PTE_P|defs.PTE_U|defs.PTE_W) {
		t.Fatalf("map_page failed")
	}
	ram.Frame(frame)[5] = 0xAB

	got := m.GetPhysicalAddress(pd, vaddr+5)
	want := frame + 5
	if got != want {
		t.Fatalf("translate(%#x+5) = %v, want %v", vaddr, got, want)
	}
	if ram.Frame(frame)[5] != 0xAB {
		t.Fatalf("frame byte mutated unexpectedly")
	}
}

func TestUnmapPage(t *testing.T) {
	m, fa, _ := setup(t)
	pd := m.CreatePageDirectory()
	frame := fa.AllocFrame()
	vaddr := uint32(0x0804_8000)
	m.MapPage(pd, vaddr, frame, defs.PTE_P|defs.PTE_U)
	m.UnmapPage(pd, vaddr)
	if m.Present(pd, vaddr) {
		t.Fatalf("page still present after unmap")
	}
}

func TestForEachUserPageSkipsKernelHalf(t *testing.T) {
	m, fa, _ := setup(t)
	pd := m.CreatePageDirectory()
	frame := fa.AllocFrame()
	m.MapPage(pd, 0x0804_8000, frame, defs.PTE_P|defs.PTE_U)

	seen := 0
	m.ForEachUserPage(pd, func(vaddr uint32, paddr mem.PhysAddr, flags uint32) {
		seen++
		if vaddr>>22 >= uint32(defs.KernelPDTIdx) {
			t.Fatalf("ForEachUserPage visited a kernel-half entry")
		}
	})
	if seen != 1 {
		t.Fatalf("expected exactly one user page, saw %d", seen)
	}
}
