package proc

import (
	"fmt"
	"unsafe"

	"minikern/internal/accnt"
	"minikern/internal/defs"
	"minikern/internal/mem"
	"minikern/internal/util"
	"minikern/internal/vmm"
)

// noLastTick marks that no process has been charged yet, so the first
// Schedule call after boot charges no one for time that elapsed before
// any process was ever running.
const noLastTick = 0

// KStackSetter abstracts tss_set_kernel_stack: the collaborator that
// points the TSS's esp0 at the about-to-run process's kernel stack top,
// so the next ring3->ring0 transition lands there (spec.md §4.E).
type KStackSetter interface {
	SetKernelStack(esp0 uint32)
}

// Manager owns the fixed PCB table, PID allocation, and the ready queue.
// Unlike Biscuit's SMP-era Proc_t (every field behind a mutex), Manager
// carries no lock: spec.md §5 establishes that the single-CPU,
// interrupts-disabled-in-kernel invariant makes every mutation here
// either non-interruptible kernel code or interrupt-handler code, never
// both at once. The type's own state, not a mutex, documents that
// invariant for callers that might otherwise reach for a lock out of
// habit (spec.md §9).
type Manager struct {
	table    [defs.MaxProcs]PCB
	nextPid  defs.Tid_t
	readyHd  defs.Tid_t // index into table, or -1
	readyTl  defs.Tid_t // index into table, or -1
	current  defs.Tid_t // index into table, or -1
	frames   *mem.FrameAllocator
	vm       *vmm.Manager
	ram      *mem.RAM
	kstack   KStackSetter
	lastTick int64 // accnt.Now() at the last Schedule call, or noLastTick
}

// NewManager wires a process Manager to the kernel's memory subsystem
// and the TSS collaborator.
func NewManager(frames *mem.FrameAllocator, vm *vmm.Manager, ram *mem.RAM, kstack KStackSetter) *Manager {
	m := &Manager{frames: frames, vm: vm, ram: ram, kstack: kstack}
	m.Init()
	return m
}

// Init resets the PCB table to all-FREE and the PID counter to 1,
// matching init_process_manager in the reference kernel.
func (m *Manager) Init() {
	for i := range m.table {
		m.table[i] = PCB{}
		m.table[i].nextReady = -1
	}
	m.nextPid = 1
	m.readyHd = -1
	m.readyTl = -1
	m.current = -1
	m.lastTick = noLastTick
}

// Current returns the index of the running process, or -1 if idle.
func (m *Manager) Current() defs.Tid_t { return m.current }

// PCB returns a pointer into the slab for the given index. Index -1 is
// never a valid argument; callers must check Current()/allocate first.
func (m *Manager) PCB(idx defs.Tid_t) *PCB { return &m.table[idx] }

// Snapshot returns one accnt.ProcUsage per non-FREE PCB, the record a
// debug build writes out for cmd/kstat to load later as a pprof
// profile. A process has no name in this kernel, so one is synthesized
// from its PID.
func (m *Manager) Snapshot() []accnt.ProcUsage {
	out := make([]accnt.ProcUsage, 0, defs.MaxProcs)
	for i := range m.table {
		p := &m.table[i]
		if p.State == Free {
			continue
		}
		out = append(out, accnt.ProcUsage{
			Pid:   uint32(p.Pid),
			Name:  fmt.Sprintf("pid-%d", p.Pid),
			Usage: p.Accnt.Snapshot(),
		})
	}
	return out
}

// VM exposes the paging manager so collaborators outside this package
// (the syscall table's user-memory reads, the page-fault handler) can
// translate a process's addresses without this package re-exposing
// every vmm method itself.
func (m *Manager) VM() *vmm.Manager { return m.vm }

// allocatePCB finds the first FREE slot, assigns it the next PID, clears
// its context, and sentinel-fills its kernel stack. Returns -1 if the
// table is full (spec.md §4.E).
func (m *Manager) allocatePCB() defs.Tid_t {
	for i := range m.table {
		if m.table[i].State == Free {
			p := &m.table[i]
			p.Pid = m.nextPid
			m.nextPid++
			p.Context = Context{}
			for j := range p.KStack {
				p.KStack[j] = kstackSentinel
			}
			p.nextReady = -1
			p.inQueue = false
			p.ExitStatus = 0
			return defs.Tid_t(i)
		}
	}
	return -1
}

// enqueueReady links idx at the tail of the ready queue. This must be
// FIFO, not LIFO: spec.md §9's scheduler fix re-queues the just-
// preempted RUNNING process at timer-driven Schedule() entry before
// picking a new head, and that re-queue has to land behind every
// already-waiting process or round-robin fairness breaks immediately
// (a LIFO re-queue would hand the CPU straight back to the process
// that was just preempted whenever it's also the head).
func (m *Manager) enqueueReady(idx defs.Tid_t) {
	p := &m.table[idx]
	if p.inQueue {
		panic("proc: double-enqueue of ready pcb")
	}
	p.State = Ready
	p.nextReady = -1
	p.inQueue = true
	if m.readyTl == -1 {
		m.readyHd = idx
	} else {
		m.table[m.readyTl].nextReady = idx
	}
	m.readyTl = idx
}

func (m *Manager) popReady() defs.Tid_t {
	if m.readyHd == -1 {
		return -1
	}
	idx := m.readyHd
	p := &m.table[idx]
	m.readyHd = p.nextReady
	if m.readyHd == -1 {
		m.readyTl = -1
	}
	p.nextReady = -1
	p.inQueue = false
	return idx
}

// pushIretFrame writes ss, esp, eflags, cs, eip downward from the top of
// the kernel stack (in that push order, so eip ends up at the lowest
// address) and returns the resulting kernel stack pointer. Spec.md
// §4.E step 5.
func pushIretFrame(kstack []byte, tf TrapFrame) uint32 {
	top := uint32(len(kstack))
	words := []uint32{tf.Ss, tf.Esp, tf.Eflags, tf.Cs, tf.Eip}
	for _, w := range words {
		top -= 4
		putLE32(kstack, top, w)
	}
	return top
}

// kstackTop returns the (simulated) address one past the end of p's
// kernel stack — the value the reference kernel computes as
// `kstack + PROCESS_KERNEL_STACK_SIZE` and feeds to
// tss_set_kernel_stack. The PCB's kernel stack is a real Go array, so
// its address is meaningful even though it is not part of the
// simulated physical RAM that mem.RAM models.
func kstackTop(p *PCB) uint32 {
	base := uintptr(unsafe.Pointer(&p.KStack[0]))
	return uint32(base) + uint32(len(p.KStack))
}

func putLE32(b []byte, off uint32, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}

func getLE32(b []byte, off uint32) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

// CreateProcess builds the initial user process from a boot module image
// (spec.md §4.E): allocates a PCB and page directory, maps and populates
// the code pages, sets the entry trap frame, and prepares the kernel
// stack for the first iret. The user stack is left unmapped — it is
// demand-paged on first touch.
func (m *Manager) CreateProcess(image []byte) (defs.Tid_t, defs.Err_t) {
	idx := m.allocatePCB()
	if idx == -1 {
		return -1, defs.ESYSERR
	}
	p := &m.table[idx]

	pd := m.vm.CreatePageDirectory()
	if pd == 0 {
		p.State = Free
		return -1, defs.ENOMEM
	}
	p.Context.CR3 = pd

	npages := util.DivRoundup(len(image), mem.PGSIZE)
	vaddr := defs.UserCodeStart
	for i := 0; i < npages; i++ {
		frame := m.frames.AllocFrame()
		if frame == 0 {
			p.State = Free
			return -1, defs.ENOMEM
		}
		if !m.vm.MapPage(pd, vaddr, frame, defs.PTE_P|defs.PTE_U|defs.PTE_W) {
			p.State = Free
			return -1, defs.ENOMEM
		}
		dst := m.ram.Frame(frame)
		off := i * mem.PGSIZE
		end := off + mem.PGSIZE
		if end > len(image) {
			end = len(image)
		}
		n := copy(dst, image[off:end])
		for j := n; j < mem.PGSIZE; j++ {
			dst[j] = 0
		}
		vaddr += mem.PGSIZE
	}

	p.Context.Trap = TrapFrame{
		Eip:    defs.UserCodeStart,
		Cs:     uint32(defs.UserCS),
		Eflags: defs.USER_EFLAGS,
		Esp:    defs.UserStackTop,
		Ss:     uint32(defs.UserDS),
	}
	esp := pushIretFrame(p.KStack[:], p.Context.Trap)
	p.Context.Regs.Esp = esp

	m.enqueueReady(idx)
	return idx, 0
}

// CreateKernelProcess builds a ring-0 kernel process whose kernel stack,
// on first switch, returns into entry and then falls through to idle
// (spec.md §4.E "create_kernel_process"). entry is recorded purely as
// data here; this simulation does not execute machine code.
func (m *Manager) CreateKernelProcess(entry uint32, idleReturn uint32) defs.Tid_t {
	idx := m.allocatePCB()
	if idx == -1 {
		return -1
	}
	p := &m.table[idx]
	pd := m.vm.CreatePageDirectory()
	if pd == 0 {
		p.State = Free
		return -1
	}
	p.Context.CR3 = pd
	p.Context.Trap = TrapFrame{Eip: entry, Cs: uint32(defs.KernelCS), Eflags: defs.USER_EFLAGS}

	top := uint32(len(p.KStack))
	top -= 4
	putLE32(p.KStack[:], top, idleReturn)
	top -= 4
	putLE32(p.KStack[:], top, p.Context.Trap.Eflags)
	top -= 4
	putLE32(p.KStack[:], top, p.Context.Trap.Cs)
	top -= 4
	putLE32(p.KStack[:], top, p.Context.Trap.Eip)
	p.Context.Regs.Esp = top

	m.enqueueReady(idx)
	return idx
}

// Schedule implements the round-robin scheduler. Unlike the reference
// kernel (spec.md §4.E "Note"), it re-queues the currently RUNNING
// process at timer-driven entry before picking a new head — the fix
// spec.md §9 prescribes for the reference's starvation bug. A process
// that has already left RUNNING (TERMINATED, or voluntarily BLOCKED)
// is not re-queued.
func (m *Manager) Schedule() {
	now := accnt.Now()
	if m.current != -1 && m.lastTick != noLastTick {
		// The process that was RUNNING up through this tick spent the
		// whole interval in user mode (time spent inside a syscall or
		// fault handler is charged separately, at the handler's own
		// boundary); a terminated/blocked process has already accounted
		// for whatever fraction of the tick it actually ran.
		m.table[m.current].Accnt.Utadd(now - m.lastTick)
	}
	m.lastTick = now

	if m.current != -1 {
		cur := &m.table[m.current]
		if cur.State == Running {
			m.enqueueReady(m.current)
		}
		m.current = -1
	}

	// A PCB that left READY while still queued (terminated or reaped
	// before its turn) is dropped from the queue instead of being run.
	next := m.popReady()
	for next != -1 && m.table[next].State != Ready {
		next = m.popReady()
	}
	if next == -1 {
		return // ready queue empty: caller spins in hlt
	}
	p := &m.table[next]
	p.State = Running
	m.current = next

	if m.kstack != nil {
		m.kstack.SetKernelStack(kstackTop(p))
	}
	// switch_to_process itself (loading cr3, restoring registers, iret)
	// is architectural glue outside this package's scope (spec.md §1);
	// Manager's job ends at picking the next PCB and pointing the TSS
	// at its kernel stack.
}
