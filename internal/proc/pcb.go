// Package proc implements the process control block table, PID
// allocation, the ready queue, process/address-space construction, the
// round-robin scheduler, and fork/exit/wait semantics.
//
// Grounded on biscuit/src/tinfo/tinfo.go (per-thread state shape,
// Tnote_t) and biscuit/src/accnt/accnt.go (per-process accounting),
// adapted from Biscuit's goroutine-per-thread model down to the
// single-kernel-stack PCB slab spec.md §3/§4.E calls for: a process is
// referenced by index into a fixed table, never by pointer, so the
// "FREE" state is the absence of identity rather than a nil check
// (spec.md §9).
package proc

import (
	"minikern/internal/accnt"
	"minikern/internal/defs"
	"minikern/internal/mem"
)

// State is a PCB's lifecycle state (spec.md §4.E state machine).
type State int

const (
	Free State = iota
	Ready
	Running
	Blocked
	Terminated
)

func (s State) String() string {
	switch s {
	case Free:
		return "FREE"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Blocked:
		return "BLOCKED"
	case Terminated:
		return "TERMINATED"
	default:
		return "?"
	}
}

// GeneralRegs mirrors the pusha-order register save used by the trap
// entry stub (spec.md §4.C).
type GeneralRegs struct {
	Edi, Esi, Ebp, Esp, Ebx, Edx, Ecx, Eax uint32
}

// TrapFrame is the five-word iret frame: eip, cs, eflags, esp, ss.
type TrapFrame struct {
	Eip, Cs, Eflags, Esp, Ss uint32
}

// Context holds everything a context switch restores: general
// registers, the user-mode trap frame, and the process's page
// directory's physical address.
type Context struct {
	Regs GeneralRegs
	Trap TrapFrame
	CR3  mem.PhysAddr
}

// PCB is one process control block, embedded in a fixed slab (Manager's
// table). Invariants from spec.md §3:
//   - a FREE pcb has Pid == 0 and is linked in no queue.
//   - a READY pcb is linked exactly once into the ready queue.
//   - at most one pcb is RUNNING while interrupts are enabled.
type PCB struct {
	Pid       defs.Tid_t
	ParentPid defs.Tid_t
	State     State
	Context   Context
	KStack    [defs.KernelStackSz]byte
	ExitStatus int32

	nextReady defs.Tid_t // index into Manager.table, or -1
	inQueue   bool

	Accnt accnt.Accnt_t
}

// kstackSentinel is written across a freshly allocated PCB's kernel
// stack to make use-before-init bugs visible in a debugger dump — the
// same trick the reference C kernel plays with memset(kstack, 0xCD, ...).
const kstackSentinel = 0xCD
