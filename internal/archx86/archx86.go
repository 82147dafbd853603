// Package archx86 declares the i386 primitives that cannot be
// expressed in portable Go at all: a single IN/OUT instruction, LGDT/
// LTR, segment-register reloads, and HLT. These are exactly the
// "architectural glue" spec.md §1 places out of scope ("Multiboot
// entry glue, GDT/TSS/PIC/PIT register programming details ... are
// thin and uninteresting beside the scheduler/MMU core") — this
// package fixes their names and signatures so internal/boot and
// internal/kernel can depend on them, but every body is supplied by
// the architecture-specific assembly a real bootable build links in,
// not by this repository. This is the same contract Go's own runtime
// uses for its lowest-level per-GOARCH primitives: declare the symbol,
// let the linker resolve it against assembly selected by the build.
package archx86

// Outb writes value to the given I/O port.
func Outb(port uint16, value uint8)

// Inb reads one byte from the given I/O port.
func Inb(port uint16) uint8

// Lgdt loads the GDTR from a table of the given base/limit.
func Lgdt(base uint32, limit uint16)

// Ltr loads the task register with selector.
func Ltr(selector uint16)

// ReadCR2 returns the faulting linear address the CPU latched into CR2
// on the most recent page fault. It must be read before any further
// fault can occur (including a reschedule) since the next fault
// overwrites it.
func ReadCR2() uint32

// ReloadSegments far-jumps into codeSel and reloads every data segment
// register with dataSel, completing a GDT switch.
func ReloadSegments(codeSel, dataSel uint16)

// Sti sets the interrupt flag.
func Sti()

// Cli clears the interrupt flag.
func Cli()

// HaltForever executes `hlt` in a loop, never returning. This is the
// Halter every fatal kernel log line (spec.md §7 class 3) ends in.
func HaltForever()
