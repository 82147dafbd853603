package mem

import (
	"fmt"

	"minikern/internal/defs"
)

// PhysAddr and VirtAddr are distinct newtypes wrapping a bare uint32, per
// the re-architecture guidance in spec.md §9: raw phys/virt pointer
// arithmetic is a common source of bugs in the reference C kernel (and in
// Biscuit's own Pa_t/unsafe.Pointer juggling, see biscuit/src/mem/mem.go).
// Giving the two address spaces distinct types makes a stray
// phys-used-as-virt mistake a compile error instead of a triple fault.
type PhysAddr uint32

// VirtAddr is a kernel or user virtual address.
type VirtAddr uint32

// direct mapping window: the kernel image's physical and virtual base
// addresses differ by a constant offset, fixed at Init time by the boot
// glue (spec.md §3, "Kernel virt<->phys mapping").
var (
	kernelPhysBase PhysAddr
	kernelVirtBase VirtAddr
	directMapSet   bool
)

// SetDirectMap records the kernel's phys/virt base pair. Called once by
// boot-time init (mirrors Biscuit's Dmapinit latch in Physmem_t).
func SetDirectMap(physBase PhysAddr, virtBase VirtAddr) {
	kernelPhysBase = physBase
	kernelVirtBase = virtBase
	directMapSet = true
}

// ToVirt converts a physical address in the direct-mapped kernel window
// to the corresponding kernel virtual address. It panics if called before
// SetDirectMap or on an address that Biscuit-style direct-mapping cannot
// reach — this conversion is only valid for kernel-image memory.
func (p PhysAddr) ToVirt() VirtAddr {
	if !directMapSet {
		panic("mem: direct map not initialized")
	}
	return VirtAddr(uint32(p) - uint32(kernelPhysBase) + uint32(kernelVirtBase))
}

// ToPhys is the inverse of ToVirt, valid only for addresses inside the
// direct-mapped kernel window.
func (v VirtAddr) ToPhys() PhysAddr {
	if !directMapSet {
		panic("mem: direct map not initialized")
	}
	if uint32(v) < uint32(kernelVirtBase) {
		panic("mem: address below kernel virtual base")
	}
	return PhysAddr(uint32(v) - uint32(kernelVirtBase) + uint32(kernelPhysBase))
}

// PageRound aligns a physical address down to its containing frame.
func (p PhysAddr) PageRound() PhysAddr {
	return PhysAddr(uint32(p) &^ uint32(PGOFFSET))
}

// PageRound aligns a virtual address down to its containing page.
func (v VirtAddr) PageRound() VirtAddr {
	return VirtAddr(uint32(v) &^ uint32(PGOFFSET))
}

// Offset returns the in-page byte offset of the address.
func (v VirtAddr) Offset() uint32 {
	return uint32(v) & uint32(PGOFFSET)
}

// Offset returns the in-page byte offset of the address.
func (p PhysAddr) Offset() uint32 {
	return uint32(p) & uint32(PGOFFSET)
}

func (p PhysAddr) String() string { return fmt.Sprintf("phys:0x%08x", uint32(p)) }
func (v VirtAddr) String() string { return fmt.Sprintf("virt:0x%08x", uint32(v)) }

const (
	PGSHIFT  = 12
	PGSIZE   = 1 << PGSHIFT
	PGOFFSET = PGSIZE - 1

	RAMWindowBytes     = defs.RAMWindowBytes
	KernelVirtualStart = defs.KernelVirtualStart
)
