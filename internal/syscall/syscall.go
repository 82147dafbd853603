// Package syscall implements the int 0x80 dispatch table and the four
// defined calls: printf, fork, exit, wait. Grounded on
// original_source/arch/x86/syscall.c's syscall_interrupt_handler/
// register_syscall (the bounded table, the "unknown -> -1" rule) and
// on internal/proc for the actual fork/exit/wait semantics.
package syscall

import (
	"minikern/internal/accnt"
	"minikern/internal/defs"
	"minikern/internal/klog"
	"minikern/internal/mem"
	"minikern/internal/proc"
	"minikern/internal/trap"
)

const (
	SysPrintf = 1
	SysFork   = 2
	SysExit   = 3
	SysWait   = 4
)

const invalidReturn = 0xFFFFFFFF

// Args is the five-register argument convention: num=EAX,
// a1..a5=EBX,ECX,EDX,ESI,EDI.
type Args struct {
	A1, A2, A3, A4, A5 uint32
}

// Fn is one syscall's implementation. It receives the calling
// process's slab index so it can look itself up in the process table,
// and returns the value to store in EAX.
type Fn func(caller defs.Tid_t, a Args) uint32

// Table is the bounded (size defs.MaxSyscalls) dispatch table. A nil
// slot or an out-of-range number both resolve to invalidReturn,
// exactly as spec.md §4.F and original_source's syscall_interrupt_handler
// specify.
type Table struct {
	fns   [defs.MaxSyscalls]Fn
	log   *klog.Logger
	procs *proc.Manager
	ram   *mem.RAM
}

// NewTable builds a Table with printf/fork/exit/wait already
// registered, wired to procs and ram (for reading the printf format
// string out of user memory) and log (for the diagnostic trail
// original_source prints around every syscall).
func NewTable(log *klog.Logger, procs *proc.Manager, ram *mem.RAM) *Table {
	t := &Table{log: log, procs: procs, ram: ram}
	t.fns[SysPrintf] = t.sysPrintf
	t.fns[SysFork] = t.sysFork
	t.fns[SysExit] = t.sysExit
	t.fns[SysWait] = t.sysWait
	return t
}

// Handler returns the trap.Handler to register at defs.VecSyscall.
func (t *Table) Handler() trap.Handler {
	return func(f *trap.Frame) {
		num := f.CPU.Eax
		args := Args{A1: f.CPU.Ebx, A2: f.CPU.Ecx, A3: f.CPU.Edx, A4: f.CPU.Esi, A5: f.CPU.Edi}

		if t.log != nil {
			t.log.Debugf("syscall %d received (args: %#x, %#x, %#x, %#x, %#x)",
				num, args.A1, args.A2, args.A3, args.A4, args.A5)
		}

		caller := t.procs.Current()
		if caller == -1 || num >= defs.MaxSyscalls || t.fns[num] == nil {
			if t.log != nil {
				t.log.Errorf("invalid syscall: %d", num)
			}
			f.CPU.Eax = invalidReturn
			return
		}

		// The time spent in this handler, from dispatch to return, is
		// system time charged to the calling process: original_source's
		// syscall_interrupt_handler brackets every call the same way,
		// feeding the interval into the process's Accnt_t.
		inttime := accnt.Now()
		f.CPU.Eax = t.fns[num](caller, args)
		t.procs.PCB(caller).Accnt.Finish(inttime)
		if t.log != nil {
			t.log.Debugf("syscall %d returning result: %#x", num, f.CPU.Eax)
		}
	}
}

// maxCStringLen bounds readCString the way biscuit/src/vm/userbuf.go's
// Userbuf_t flags a "suspiciously large" user buffer: without it, a
// format string that is mapped but never NUL-terminated would pin the
// syscall handler in a loop for as long as the mapping extends.
const maxCStringLen = 4096

// readCString reads a NUL-terminated string out of caller's user
// address space starting at vaddr, through the process's own page
// directory. Returns ("", false) if vaddr is 0, unmapped, or the
// string exceeds maxCStringLen without a terminator.
func (t *Table) readCString(caller defs.Tid_t, vaddr uint32) (string, bool) {
	if vaddr == 0 {
		return "", false
	}
	pcb := t.procs.PCB(caller)
	var out []byte
	for len(out) < maxCStringLen {
		phys := t.procs.VM().GetPhysicalAddress(pcb.Context.CR3, vaddr)
		if phys == 0 {
			return "", false
		}
		b := t.ram.Frame(phys)[phys.Offset()]
		if b == 0 {
			return string(out), true
		}
		out = append(out, b)
		vaddr++
	}
	return "", false
}

func (t *Table) sysPrintf(caller defs.Tid_t, a Args) uint32 {
	s, ok := t.readCString(caller, a.A1)
	if !ok {
		if t.log != nil {
			t.log.Errorf("printf called with NULL or unmapped format pointer")
		}
		return invalidReturn
	}
	if t.log != nil {
		t.log.Infof("%s", s)
	}
	return 1
}

func (t *Table) sysFork(caller defs.Tid_t, a Args) uint32 {
	if t.log != nil {
		t.log.Infof("fork called by PID %d", t.procs.PCB(caller).Pid)
	}
	child, err := t.procs.Fork(caller)
	if err != 0 {
		if t.log != nil {
			t.log.Errorf("fork failed for PID %d: %v", t.procs.PCB(caller).Pid, err)
		}
		return invalidReturn
	}
	if t.log != nil {
		t.log.Infof("fork successful: parent PID %d -> child PID %d",
			t.procs.PCB(caller).Pid, t.procs.PCB(child).Pid)
	}
	return uint32(t.procs.PCB(child).Pid)
}

func (t *Table) sysExit(caller defs.Tid_t, a Args) uint32 {
	status := int32(a.A1)
	if t.log != nil {
		t.log.Infof("process %d exiting with status %d", t.procs.PCB(caller).Pid, status)
	}
	t.procs.Exit(caller, status)
	return 0
}

func (t *Table) sysWait(caller defs.Tid_t, a Args) uint32 {
	if t.log != nil {
		t.log.Infof("process %d waiting for child", t.procs.PCB(caller).Pid)
	}
	childPid, status, ok := t.procs.Wait(caller)
	if !ok {
		if t.log != nil {
			t.log.Warnf("no terminated children found")
		}
		return invalidReturn
	}
	if t.log != nil {
		t.log.Infof("process %d reaped child %d with status %d", t.procs.PCB(caller).Pid, childPid, status)
	}
	if a.A1 != 0 {
		phys := t.procs.VM().GetPhysicalAddress(t.procs.PCB(caller).Context.CR3, a.A1)
		if phys != 0 {
			frame := t.ram.Frame(phys)
			off := phys.Offset()
			putLE32(frame, off, uint32(status))
		}
	}
	return uint32(childPid)
}

func putLE32(b []byte, off uint32, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}
