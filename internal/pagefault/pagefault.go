// Package pagefault implements the vector-14 handler's demand-paging
// policy: a not-present fault on a user address materializes a
// zero-filled frame; anything else is unrecoverable. Grounded on
// spec.md §4.G and on the fault-resolution shape of
// biscuit/src/vm/as.go's Sys_pgfault (read CR2 and the error code,
// decide present/not-present, allocate and install a frame), adapted
// from Biscuit's per-VMA permission/COW lookup down to the flat "every
// non-kernel address is writable, nothing is file-backed" policy this
// kernel core specifies.
package pagefault

import (
	"minikern/internal/defs"
	"minikern/internal/klog"
	"minikern/internal/mem"
	"minikern/internal/proc"
	"minikern/internal/vmm"
)

// ErrorCode bits, matching the hardware page-fault error code pushed
// below the vector number (spec.md §4.G).
const (
	ErrPresent ErrorCode = 1 << 0
	ErrWrite   ErrorCode = 1 << 1
	ErrUser    ErrorCode = 1 << 2
)

// ErrorCode is the raw hardware page-fault error code.
type ErrorCode uint32

// Handler resolves or fatally reports page faults for the current
// process.
type Handler struct {
	log    *klog.Logger
	procs  *proc.Manager
	vm     *vmm.Manager
	ram    *mem.RAM
	frames *mem.FrameAllocator
}

// NewHandler wires a page-fault Handler to its collaborators. log must
// have been built with a Halter (klog.New), since every non-recoverable
// branch here ends in log.Fatalf.
func NewHandler(log *klog.Logger, procs *proc.Manager, vm *vmm.Manager, ram *mem.RAM, frames *mem.FrameAllocator) *Handler {
	return &Handler{log: log, procs: procs, vm: vm, ram: ram, frames: frames}
}

// Handle implements spec.md §4.G's policy for a fault at cr2 with the
// given hardware error code.
func (h *Handler) Handle(cr2 uint32, ec ErrorCode) {
	cur := h.procs.Current()
	if cur == -1 {
		h.log.Fatalf("page fault with no current process (addr=%#08x)", cr2)
		return
	}

	if cr2 >= defs.KernelVirtualStart {
		h.log.Fatalf("page fault in kernel space: addr=%#08x pid=%d", cr2, h.procs.PCB(cur).Pid)
		return
	}

	if ec&ErrPresent != 0 {
		h.log.Fatalf("protection violation on present page: addr=%#08x error_code=%#x pid=%d",
			cr2, ec, h.procs.PCB(cur).Pid)
		return
	}

	// Not present: demand-page a zero-filled frame. Every non-kernel
	// address is writable in this kernel core (spec.md §4.G: "effectively
	// all user pages are writable"), so the only flag that actually
	// varies is carried through unconditionally.
	pageAddr := mem.VirtAddr(cr2).PageRound()
	frame := h.frames.AllocFrame()
	if frame == 0 {
		h.log.Fatalf("out of physical frames servicing demand page at %#08x (pid=%d)", cr2, h.procs.PCB(cur).Pid)
		return
	}

	flags := defs.PTE_P | defs.PTE_U | defs.PTE_W
	cr3 := h.procs.PCB(cur).Context.CR3
	if !h.vm.MapPage(cr3, uint32(pageAddr), frame, flags) {
		h.log.Fatalf("failed to map demand page at %#08x (pid=%d)", cr2, h.procs.PCB(cur).Pid)
		return
	}
	h.ram.ZeroFrame(frame)
}
