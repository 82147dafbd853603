package proc

import (
	"minikern/internal/defs"
	"minikern/internal/mem"
)

// Fork duplicates the current process's address space eagerly (no COW,
// per spec.md's non-goals) and queues the child, ready to resume at the
// instruction after int 0x80. Spec.md §4.F.
//
// Unlike the reference C implementation, which leaks every frame it has
// copied so far if it runs out of memory partway through (spec.md §9,
// "Copy semantics on fork"), this port tracks the child's page directory
// and every frame it copies into in cleanup and frees them all before
// returning ENOMEM. Page-table frames that MapPage allocates inside the
// child's directory are not tracked and are not freed on that path.
func (m *Manager) Fork(parentIdx defs.Tid_t) (defs.Tid_t, defs.Err_t) {
	parent := &m.table[parentIdx]

	childIdx := m.allocatePCB()
	if childIdx == -1 {
		return -1, defs.ESYSERR
	}
	child := &m.table[childIdx]
	child.ParentPid = parent.Pid

	childPD := m.vm.CreatePageDirectory()
	if childPD == 0 {
		child.State = Free
		return -1, defs.ENOMEM
	}
	child.Context.CR3 = childPD

	cleanup := []mem.PhysAddr{childPD}
	rollback := func() {
		for _, f := range cleanup {
			m.frames.FreeFrame(f)
		}
		child.State = Free
	}

	failed := false
	m.vm.ForEachUserPage(parent.Context.CR3, func(vaddr uint32, paddr mem.PhysAddr, flags uint32) {
		if failed {
			return
		}
		childFrame := m.frames.AllocFrame()
		if childFrame == 0 {
			failed = true
			return
		}
		cleanup = append(cleanup, childFrame)
		m.ram.CopyFrame(childFrame, paddr)
		if !m.vm.MapPage(childPD, vaddr, childFrame, flags) {
			failed = true
		}
	})
	if failed {
		rollback()
		return -1, defs.ENOMEM
	}

	child.Context.Trap = parent.Context.Trap
	child.Context.Regs = parent.Context.Regs
	esp := pushIretFrame(child.KStack[:], child.Context.Trap)
	child.Context.Regs.Eax = 0
	child.Context.Regs.Esp = esp

	m.enqueueReady(childIdx)
	return childIdx, 0
}

// Exit marks idx TERMINATED with the given status and invokes the
// scheduler — it never returns to its own caller's process, matching
// spec.md §9's "model as a non-returning function" guidance (Go makes
// the non-returning-ness explicit by simply never resuming idx).
func (m *Manager) Exit(idx defs.Tid_t, status int32) {
	p := &m.table[idx]
	p.ExitStatus = status
	p.Context.Regs.Eax = uint32(status)
	p.State = Terminated
	m.Schedule()
}

// Wait scans for a TERMINATED child of parentIdx. On success it frees
// the child's PCB and returns its former PID and exit status. Returns
// (-1, 0, false) if no terminated child exists yet — wait never blocks
// (spec.md §4.F, §5).
//
// The reference kernel logs the reaped child's PID after already
// zeroing it, so every such log line reads PID 0 (spec.md §9 open
// question). This port resolves that in favour of useful diagnostics:
// the PID is captured before the PCB is freed, so callers (and
// internal/klog) observe the real value.
func (m *Manager) Wait(parentIdx defs.Tid_t) (childPid defs.Tid_t, status int32, ok bool) {
	parent := &m.table[parentIdx]
	for i := range m.table {
		c := &m.table[i]
		if c.State == Terminated && c.ParentPid == parent.Pid {
			pid := c.Pid
			st := c.ExitStatus
			c.State = Free
			c.Pid = 0
			c.ParentPid = 0
			return pid, st, true
		}
	}
	return -1, 0, false
}
