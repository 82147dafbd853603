// Package kstate assembles every kernel subsystem into one struct and
// wires their collaborator interfaces together, mirroring the global
// init sequence original_source/kernel/kernel.c's kernel_main performs
// by hand (gdt_init, tss_init, pic_init, idt_init, pit_init,
// init_process_manager, ...), but as explicit dependency injection
// instead of package-level globals, matching how biscuit's main.go
// builds up its kernel state before calling into scheduler code.
package kstate

import (
	"io"

	"minikern/internal/boot"
	"minikern/internal/defs"
	"minikern/internal/initrd"
	"minikern/internal/klog"
	"minikern/internal/mem"
	"minikern/internal/pagefault"
	"minikern/internal/pit"
	"minikern/internal/proc"
	"minikern/internal/syscall"
	"minikern/internal/trap"
	"minikern/internal/vmm"
)

// TickIntervalMs is the PIT reload interval the boot sequence programs,
// matching original_source's pit_init -> pit_set_interval(10).
const TickIntervalMs = 10

// State owns every subsystem the kernel core needs after boot, built by
// New and then driven by internal/kernel's idle loop.
type State struct {
	Log     *klog.Logger
	Frames  *mem.FrameAllocator
	RAM     *mem.RAM
	VM      *vmm.Manager
	Procs   *proc.Manager
	Trap    *trap.Dispatcher
	GPF     *trap.GPFHandler
	PageFlt *pagefault.Handler
	Syscall *syscall.Table
	Timer   *pit.Timer
	GDT     *boot.Table
	TSS     *boot.TSS
	PIC     *boot.PIC
}

// Halter abstracts the hlt-forever primitive, passed through to klog's
// Fatalf path (spec.md §7's class-3 fatal conditions).
type Halter = klog.Halter

// IOPort abstracts the raw `outb` primitive the PIC/PIT collaborators
// need; an architectural detail supplied by the real port.
type IOPort = boot.Port

// Loader abstracts LGDT/segment-reload/LTR, the three remaining
// assembly primitives a real port must supply (spec.md §1's
// "architectural glue" carve-out).
type Loader interface {
	boot.Loader
	LoadTSS(selector uint16)
}

// FaultAddr abstracts reading CR2, the register the CPU latches the
// faulting linear address into on a page fault (spec.md §4.G) — a
// value no trap-frame field carries, since the CPU pushes it nowhere
// on the stack.
type FaultAddr interface {
	ReadCR2() uint32
}

// New performs the boot sequence spec.md §2 describes — minus the
// steps that are pure architectural glue (multiboot entry, enabling
// interrupts) which internal/kernel.Kmain drives directly — and returns a fully
// wired State ready to run its first process.
func New(out io.Writer, logLevel klog.Level, halt Halter, port IOPort, loader Loader, cr2 FaultAddr) *State {
	s := &State{}

	s.Log = klog.New(out, 16384, logLevel, halt)

	s.GDT = boot.NewTable()
	s.TSS = boot.NewTSS()
	s.GDT.InstallTSS(s.TSS.Base(), s.TSS.Limit())
	s.GDT.Load(loader)
	loader.LoadTSS(defs.TSSSel)

	s.PIC = boot.NewPIC(port)
	s.PIC.Init()

	s.Frames = &mem.FrameAllocator{}
	s.RAM = mem.NewRAM()
	// The kernel image is loaded at physical address 0 and runs through
	// kernelImageEndFrames frames; Init reserves that span plus the
	// bitmap's own backing storage immediately after it, matching
	// spec.md §3's "bits below the kernel image ... are permanently set"
	// invariant. A real port computes kernelImageEndFrames from the
	// linker-provided kernel end symbol; this simulation uses a fixed
	// placeholder sized generously above any plausible kernel image.
	const kernelImageEndFrames = 1024
	s.Frames.Init(
		mem.PhysAddr(0),
		mem.PhysAddr(kernelImageEndFrames*mem.PGSIZE),
		mem.VirtAddr(defs.KernelVirtualStart),
		mem.VirtAddr(defs.KernelVirtualStart+defs.RAMWindowBytes),
	)

	s.VM = vmm.NewManager(s.RAM, s.Frames)
	s.VM.Init()
	s.VM.SetupHigherHalf()

	s.Procs = proc.NewManager(s.Frames, s.VM, s.RAM, s.TSS)

	s.Trap = trap.NewDispatcher(s.Log)
	s.GPF = trap.NewGPFHandler(s.Log, s.Procs, s.VM, s.RAM)
	s.Trap.Register(defs.VecGPFault, s.GPF.Handle)

	s.PageFlt = pagefault.NewHandler(s.Log, s.Procs, s.VM, s.RAM, s.Frames)
	s.Trap.Register(defs.VecPageFault, func(f *trap.Frame) {
		// The faulting address is CR2, not EIP: a data access can fault
		// on a page completely unrelated to the one the faulting
		// instruction itself executes out of. CR2 must be read here,
		// before any other code (even a log call that could in principle
		// re-enter a fault) has a chance to overwrite it.
		s.PageFlt.Handle(cr2.ReadCR2(), pagefault.ErrorCode(f.Info.ErrorCode))
	})

	s.Syscall = syscall.NewTable(s.Log, s.Procs, s.RAM)
	s.Trap.Register(defs.VecSyscall, s.Syscall.Handler())

	s.Timer = pit.NewTimer(s.PIC, s.Procs)
	pitPort := boot.NewPITPort(port)
	pitPort.SetMode3(pit.Divisor(TickIntervalMs))
	s.Trap.Register(defs.IRQTimer, func(*trap.Frame) { s.Timer.Tick() })

	s.Log.Infof("limits: max_procs=%d max_syscalls=%d kstack=%d ram_window=%d",
		defs.Tunables.MaxProcs, defs.Tunables.MaxSyscalls, defs.Tunables.KernelStackSz, defs.Tunables.RAMWindowBytes)
	s.Log.Infof("kernel state initialized")
	return s
}

// BootModule holds one multiboot module's raw bytes, copied out of the
// bootloader-provided region before paging is live over it.
type BootModule struct {
	Data []byte
}

// LoadInitialProcess builds the first user process from module 0
// (spec.md §6's "module index 0 is the initial user program"). If a
// second module is present and parses as an initrd, it is attached for
// later lookup; a parse failure there is logged and ignored, since the
// initrd is optional infrastructure, not boot-critical.
func (s *State) LoadInitialProcess(modules []BootModule) (defs.Tid_t, defs.Err_t) {
	if len(modules) == 0 {
		s.Log.Warnf("no modules found")
		return -1, defs.ESYSERR
	}
	pid, err := s.Procs.CreateProcess(modules[0].Data)
	if err != 0 {
		s.Log.Errorf("failed to create initial process: %v", err)
		return -1, err
	}
	s.Log.Infof("created initial process, pid=%d", s.Procs.PCB(pid).Pid)

	if len(modules) > 1 {
		if img, ierr := initrd.Parse(modules[1].Data); ierr != nil {
			s.Log.Warnf("module 1 is not a valid initrd: %v", ierr)
		} else {
			s.Log.Infof("initrd attached with %d files", img.NumFiles())
		}
	}
	return pid, 0
}
