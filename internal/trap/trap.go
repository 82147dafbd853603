// Package trap implements the IDT layout and the single C-level-style
// dispatcher every vector's entry stub funnels into: one registry of
// 256 handler slots, one-shot registration, and a general-protection
// fault reporter that disassembles the faulting instruction.
//
// Grounded on original_source/arch/x86/idt.c (the 256-entry gate table,
// vectors 0-31 exceptions / 32-47 remapped IRQs / 0x80 syscall) and
// biscuit/src/defs (the Err_t-free "just log and halt" style fatal
// path, since this kernel core has no panic/unwind across the trap
// boundary — spec.md §7).
package trap

import (
	"minikern/internal/defs"
	"minikern/internal/klog"
)

// CPUState mirrors the pusha-order register save the entry stub
// performs before calling the dispatcher (spec.md §4.C).
type CPUState struct {
	Edi, Esi, Ebp, Esp, Ebx, Edx, Ecx, Eax uint32
}

// IDTInfo carries the vector number and the (possibly synthetic,
// zero-filled) hardware error code pushed by the CPU or the stub.
type IDTInfo struct {
	Vector    uint32
	ErrorCode uint32
}

// StackState is the five-word frame the CPU itself pushes on a
// ring-crossing interrupt: eip, cs, eflags, esp, ss.
type StackState struct {
	Eip, Cs, Eflags, Esp, Ss uint32
}

// Frame bundles the three stacked structs the dispatcher receives by
// value, exactly as spec.md §4.C describes: cpu_state, idt_info,
// stack_state laid out contiguously. A handler mutates CPU.Eax to
// return a value to user mode through the restored EAX.
type Frame struct {
	CPU   CPUState
	Info  IDTInfo
	Stack StackState
}

// Handler processes one vector. It receives the frame by pointer so it
// can mutate CPU.Eax (e.g. the syscall dispatcher) but must never keep
// a reference past return — the stub reuses the stack slot.
type Handler func(*Frame)

// Dispatcher owns the fixed 256-entry handler table and logs unhandled
// vectors exactly the way the entry stub's C-level counterpart would.
type Dispatcher struct {
	handlers [defs.NumIDTEntries]Handler
	log      *klog.Logger
}

// NewDispatcher wires a Dispatcher to the kernel logger.
func NewDispatcher(log *klog.Logger) *Dispatcher {
	return &Dispatcher{log: log}
}

// Register installs fn at vector, rejecting any vector that already
// has a handler. This is spec.md §4.C's one-shot rule: it exists so
// that nothing can accidentally shadow the GPF/page-fault/syscall
// handlers installed at boot.
func (d *Dispatcher) Register(vector uint32, fn Handler) defs.Err_t {
	if vector >= defs.NumIDTEntries {
		return defs.ESYSERR
	}
	if d.handlers[vector] != nil {
		return defs.ESYSERR
	}
	d.handlers[vector] = fn
	return 0
}

// HasHandler reports whether vector currently has a registered
// handler, for boot-sequence wiring tests.
func (d *Dispatcher) HasHandler(vector uint32) bool {
	return vector < defs.NumIDTEntries && d.handlers[vector] != nil
}

// Dispatch looks up vector's handler and invokes it, or logs a
// diagnostic if the slot is empty. Called by every entry stub after it
// has assembled Frame on the kernel stack.
func (d *Dispatcher) Dispatch(f *Frame) {
	h := d.handlers[f.Info.Vector]
	if h == nil {
		if d.log != nil {
			d.log.Errorf("unhandled interrupt vector %d (error code %#x)", f.Info.Vector, f.Info.ErrorCode)
		}
		return
	}
	h(f)
}
