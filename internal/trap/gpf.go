package trap

import (
	"golang.org/x/arch/x86/x86asm"

	"minikern/internal/klog"
	"minikern/internal/mem"
	"minikern/internal/proc"
	"minikern/internal/vmm"
)

// GPFHandler logs the full trap context and the current PID on a
// general-protection fault, disassembling the faulting instruction for
// the diagnostic dump, then halts forever — spec.md §4.H: "No
// user-space recovery path." The halt itself is performed by log's
// Fatalf (its own Halter, supplied at construction via klog.New), so
// GPFHandler needs no Halter of its own.
type GPFHandler struct {
	log   *klog.Logger
	procs *proc.Manager
	vm    *vmm.Manager
	ram   *mem.RAM
}

// NewGPFHandler wires a GPFHandler to its collaborators. log must have
// been built with a Halter (klog.New's halt argument) since Fatalf is
// what actually stops execution here.
func NewGPFHandler(log *klog.Logger, procs *proc.Manager, vm *vmm.Manager, ram *mem.RAM) *GPFHandler {
	return &GPFHandler{log: log, procs: procs, vm: vm, ram: ram}
}

// maxInstrBytes is generous enough to cover any valid x86 instruction
// encoding (the architectural max is 15 bytes).
const maxInstrBytes = 15

// disassembleAt reads up to maxInstrBytes of user-space memory at
// vaddr through pdPhys and decodes the first instruction, for the GPF
// diagnostic dump. Returns "" if the address isn't mapped or decoding
// fails — a raw hex dump of the bytes is still included by the caller.
func (h *GPFHandler) disassembleAt(pdPhys mem.PhysAddr, vaddr uint32) (string, []byte) {
	var raw []byte
	for i := uint32(0); i < maxInstrBytes; i++ {
		phys := h.vm.GetPhysicalAddress(pdPhys, vaddr+i)
		if phys == 0 {
			break
		}
		raw = append(raw, h.ram.Frame(phys)[phys.Offset()])
	}
	if len(raw) == 0 {
		return "", raw
	}
	inst, err := x86asm.Decode(raw, 32)
	if err != nil {
		return "", raw
	}
	return x86asm.GNUSyntax(inst, uint64(vaddr), nil), raw[:inst.Len]
}

// Handle is the registered trap.Handler for vector 13.
func (h *GPFHandler) Handle(f *Frame) {
	pid := int32(-1)
	var cr3 mem.PhysAddr
	if h.procs != nil {
		if cur := h.procs.Current(); cur != -1 {
			pid = int32(h.procs.PCB(cur).Pid)
			cr3 = h.procs.PCB(cur).Context.CR3
		}
	}

	asm, raw := "", []byte(nil)
	if h.vm != nil && h.ram != nil && cr3 != 0 {
		asm, raw = h.disassembleAt(cr3, f.Stack.Eip)
	}

	h.log.Errorf("general protection fault: pid=%d error_code=%#x", pid, f.Info.ErrorCode)
	h.log.Errorf("  eip=%#08x cs=%#04x eflags=%#08x esp=%#08x ss=%#04x",
		f.Stack.Eip, f.Stack.Cs, f.Stack.Eflags, f.Stack.Esp, f.Stack.Ss)
	h.log.Errorf("  eax=%#08x ebx=%#08x ecx=%#08x edx=%#08x esi=%#08x edi=%#08x ebp=%#08x",
		f.CPU.Eax, f.CPU.Ebx, f.CPU.Ecx, f.CPU.Edx, f.CPU.Esi, f.CPU.Edi, f.CPU.Ebp)
	if asm != "" {
		h.log.Errorf("  faulting instruction: %s (bytes % x)", asm, raw)
	} else if len(raw) > 0 {
		h.log.Errorf("  faulting instruction bytes (undecoded): % x", raw)
	}
	h.log.Fatalf("halting: general protection fault is unrecoverable")
}
