// Package pit computes the 8253/8254 timer's mode-3 square-wave
// divisor and implements the tick handler's policy: acknowledge the
// interrupt, then invoke the scheduler. The actual I/O port
// programming (channel 0 data port writes, PIC remap/mask registers)
// is out of scope per the kernel core's purpose and scope — only the
// collaborator contracts are specified here, grounded on
// original_source/arch/x86/pit.c and pic.c.
package pit

// baseFrequency is the PIT's fixed oscillator frequency in Hz.
const baseFrequency = 1_193_182

// Divisor computes the channel-0 reload value for a tick every
// intervalMs milliseconds, matching original_source's
// pit_set_interval: frequency = 1000/interval, divisor = base/frequency.
func Divisor(intervalMs uint32) uint16 {
	frequency := 1000 / intervalMs
	return uint16(baseFrequency / frequency)
}

// Port is the collaborator that actually writes the channel-0 data
// port (low byte then high byte) and the initial mode-3 command byte.
type Port interface {
	SetMode3(divisor uint16)
}

// PIC is the collaborator that acknowledges the timer interrupt on
// both the master and slave 8259s. spec.md §4.D calls for EOI on both,
// even though only the master ever raises IRQ0, because leaving the
// slave's in-service bit set would eventually starve every IRQ routed
// through the cascade line.
type PIC interface {
	SendEOI()
}

// Scheduler is the collaborator invoked after every tick.
type Scheduler interface {
	Schedule()
}

// Timer owns the PIC/Scheduler collaborators and implements the tick
// policy spec.md §4.D specifies: EOI before Schedule, so a new tick
// can be latched by the PIC while the scheduler is still running on
// this one (iret re-enables interrupts for the newly chosen process,
// not for this handler, which holds them disabled throughout — see
// spec.md §5's "kernel entry implicitly disables further interrupts
// until iret").
type Timer struct {
	pic PIC
	sch Scheduler
}

// NewTimer wires a Timer to its collaborators.
func NewTimer(pic PIC, sch Scheduler) *Timer {
	return &Timer{pic: pic, sch: sch}
}

// Tick is the registered trap.Handler body for the timer's IDT vector.
func (t *Timer) Tick() {
	t.pic.SendEOI()
	t.sch.Schedule()
}
