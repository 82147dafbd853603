// Package defs holds constants and small shared types used throughout the
// kernel: error codes, segment selectors, the user virtual memory map, and
// page/frame geometry. Centralising these avoids import cycles between
// mem, vmm, proc, trap and syscall.
package defs

// Err_t is the kernel's sole error type: zero means success, a negative
// value is a sentinel failure. There is no errno and no wrapped error
// chain — syscalls only ever need to know "did it work".
type Err_t int

// Sentinel syscall error. The only error value the user ABI can observe.
const ESYSERR Err_t = -1

// Recoverable/internal sentinels, distinguishable in kernel logs even
// though they all collapse to ESYSERR at the syscall boundary.
const (
	ENOMEM Err_t = -12
	EFAULT Err_t = -14
)

// PGSHIFT is the base-2 exponent of the page/frame size.
const PGSHIFT = 12

// PGSIZE is the size in bytes of a page or physical frame.
const PGSIZE = 1 << PGSHIFT

// PGOFFSET masks the in-page offset of an address.
const PGOFFSET = PGSIZE - 1

// PGMASK masks the page-aligned base of an address.
const PGMASK = ^uint32(PGOFFSET)

// Page table entry flag bits (Intel IA-32 PDE/PTE layout).
const (
	PTE_P   uint32 = 1 << 0 // present
	PTE_W   uint32 = 1 << 1 // read/write
	PTE_U   uint32 = 1 << 2 // user/supervisor
	PTE_PWT uint32 = 1 << 3
	PTE_PCD uint32 = 1 << 4
	PTE_PS  uint32 = 1 << 7 // page size (4MiB), unused here
)

// PTE_ADDR extracts the physical base address bits from a PDE/PTE.
const PTE_ADDR = PGMASK

// KernelVirtualStart is the virtual address at which the kernel is mapped
// in every address space ("higher half").
const KernelVirtualStart uint32 = 0xC000_0000

// KernelPDTIdx is the page-directory index of KernelVirtualStart
// (KernelVirtualStart >> 22).
const KernelPDTIdx = int(KernelVirtualStart >> 22)

// RAMWindowBytes bounds the physical memory the frame allocator manages.
const RAMWindowBytes = 128 * 1024 * 1024

// User virtual memory map (spec.md §6).
const (
	UserCodeStart uint32 = 0x0804_8000
	UserHeapStart uint32 = 0x0810_0000
	UserStackTop  uint32 = 0xBFFF_F000
)

// USER_EFLAGS is the initial EFLAGS for a new user process: only IF (bit 9)
// plus the reserved bit 1 that the CPU always reads as set.
const USER_EFLAGS uint32 = 0x202

// Segment selectors fixed by the GDT layout (spec.md §6).
const (
	KernelCS uint16 = 0x08
	KernelDS uint16 = 0x10
	UserCS   uint16 = 0x1B // 0x18 | RPL3
	UserDS   uint16 = 0x23 // 0x20 | RPL3
	TSSSel   uint16 = 0x28
)

// GDT access byte bits shared between a readable code segment and a
// writable data segment descriptor — Intel defines bit1 of the access
// byte as "readable" for code and "writable" for data. The reference C
// kernel reused the literal 0x02 for both purposes; name both here so a
// reader does not need to rederive the overlap.
const (
	AccessCodeReadable uint8 = 0x02
	AccessDataWritable uint8 = 0x02
)

// Device/process table sizing.
const (
	MaxProcs      = 64 // size of the fixed PCB table
	MaxSyscalls   = 32 // size of the syscall dispatch table
	KernelStackSz = 4096
)

// Tunables mirrors the teacher's limits.Syslimit_t: a single read-only
// struct bundling the compiled-in resource limits above, for startup
// diagnostics to report without re-deriving them from scattered
// constants. Unlike Syslimit_t these values are never mutated at
// runtime — MaxProcs and KernelStackSz size fixed arrays, so there is
// nothing for a rlimit-style setter to adjust.
var Tunables = struct {
	MaxProcs       int
	MaxSyscalls    int
	KernelStackSz  int
	RAMWindowBytes int
}{
	MaxProcs:       MaxProcs,
	MaxSyscalls:    MaxSyscalls,
	KernelStackSz:  KernelStackSz,
	RAMWindowBytes: RAMWindowBytes,
}

// PIC/IDT vector layout.
const (
	IRQBase       = 32 // IDT vector of IRQ0 after remap
	IRQTimer      = IRQBase + 0
	IRQCascade    = IRQBase + 8
	VecSyscall    = 0x80
	VecPageFault  = 14
	VecGPFault    = 13
	NumIDTEntries = 256
)

// Tid_t identifies a schedulable process by its slot index into the PCB
// table, not by a pointer — the "FREE" state is the absence of identity,
// not a nil reference (see spec.md §9).
type Tid_t int32
