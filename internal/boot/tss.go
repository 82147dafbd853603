package boot

import (
	"unsafe"

	"minikern/internal/defs"
)

func tssBase(t *TSS) uint32 {
	return uint32(uintptr(unsafe.Pointer(t)))
}

// TSS mirrors the fields original_source/include/arch/x86/tss.h
// actually uses: ss0/esp0 (the ring-3->ring-0 stack switch target) and
// iomap_base. Every other field of the real 104-byte Task State
// Segment goes unused on this port, same as the reference kernel.
type TSS struct {
	ss0       uint32
	esp0      uint32
	iomapBase uint16
}

// NewTSS builds a zeroed TSS with ss0 fixed to the kernel data segment
// selector, matching original_source's tss_init.
func NewTSS() *TSS {
	return &TSS{ss0: uint32(defs.KernelDS)}
}

// SetKernelStack implements proc.KStackSetter: it is called on every
// context switch to point esp0 at the about-to-run process's kernel
// stack top, so the next ring3->ring0 transition (an interrupt or a
// syscall) lands on that process's own stack rather than its
// predecessor's.
func (t *TSS) SetKernelStack(esp0 uint32) {
	t.esp0 = esp0
}

// Base returns t's own address, for installing its GDT descriptor.
func (t *TSS) Base() uint32 {
	return tssBase(t)
}

// Limit returns sizeof(tss_t)-1, matching original_source's tss_init.
// The simulated struct is far smaller than the real 104-byte TSS, so
// the limit is computed structurally rather than hardcoded.
func (t *TSS) Limit() uint32 {
	return uint32(unsafe.Sizeof(*t)) - 1
}
