// Package kernel implements Kmain, the trampoline target cmd/kernel's
// rt0 assembly calls into after setting up a minimal stack and jumping
// out of real/protected-mode transition code. It wires the concrete
// i386 collaborators (internal/archx86, internal/boot) to
// internal/kstate and drives the boot sequence spec.md §2 describes,
// then enters the idle loop. Grounded on gopher-os-gopher-os's
// kernel/kmain package (the "accept raw pointers, wire HAL, call
// Init() on each subsystem, never return" shape) and on
// original_source/kernel/kernel.c's kernel_main.
package kernel

import (
	"minikern/internal/archx86"
	"minikern/internal/boot"
	"minikern/internal/defs"
	"minikern/internal/klog"
	"minikern/internal/kstate"
	"minikern/internal/serial"
)

// hwPort adapts archx86's free functions to boot.Port.
type hwPort struct{}

func (hwPort) Outb(port uint16, value uint8) { archx86.Outb(port, value) }
func (hwPort) Inb(port uint16) uint8         { return archx86.Inb(port) }

// hwLoader adapts archx86's free functions to kstate.Loader.
type hwLoader struct{}

func (hwLoader) LoadGDT(base uint32, limit uint16)      { archx86.Lgdt(base, limit) }
func (hwLoader) ReloadSegments(codeSel, dataSel uint16) { archx86.ReloadSegments(codeSel, dataSel) }
func (hwLoader) LoadTSS(selector uint16)                { archx86.Ltr(selector) }

// hwHalt adapts archx86.HaltForever to klog.Halter.
type hwHalt struct{}

func (hwHalt) HaltForever() { archx86.HaltForever() }

// hwFaultAddr adapts archx86.ReadCR2 to kstate.FaultAddr.
type hwFaultAddr struct{}

func (hwFaultAddr) ReadCR2() uint32 { return archx86.ReadCR2() }

// Kmain is the sole Go symbol the boot assembly calls, with
// multibootInfoPtr and magic the two values Multiboot hands the entry
// point in EBX/EAX (spec.md §6). The higher-half phys-to-virt offset
// (spec.md §3) is a compile-time constant, defs.KernelVirtualStart, not
// a boot-time parameter: the linker script maps the kernel at that
// fixed address. Kmain never returns: once interrupts are enabled,
// execution is driven entirely by timer ticks, syscalls, and
// exceptions, exactly as spec.md §2 describes.
func Kmain(multibootInfoPtr uintptr, magic uint32) {
	port := hwPort{}
	uart := boot.NewCom1(port)
	out := serial.Writer{Port: uart}

	log := klog.New(out, 16384, klog.Info, hwHalt{})

	if magic != boot.Magic {
		log.Fatalf("bad multiboot magic: got %#08x, want %#08x", magic, boot.Magic)
		return
	}

	s := kstate.New(out, klog.Info, hwHalt{}, port, hwLoader{}, hwFaultAddr{})

	p2v := func(phys uint32) uint32 { return phys + defs.KernelVirtualStart }
	mbMods, ok := boot.ParseModules(multibootInfoPtr, p2v)
	if !ok {
		s.Log.Warnf("no modules found")
	} else {
		modules := make([]kstate.BootModule, len(mbMods))
		for i, m := range mbMods {
			modules[i] = kstate.BootModule{Data: m.Data}
		}
		s.LoadInitialProcess(modules)
	}

	archx86.Sti()
	idle(s)
}

// idle is the scheduler's background loop: with interrupts enabled,
// every tick's Schedule call either picks a new process (whose context
// switch, architectural glue, returns to ring 3 via iret and never
// comes back here until the next trap) or leaves the CPU with nothing
// ready, in which case hlt simply waits for the next interrupt.
func idle(s *kstate.State) {
	for {
		archx86.HaltForever()
	}
}
