package boot

// Port abstracts a single `outb` to one of the PIC's four I/O ports.
// original_source/arch/x86/pic.c hardcodes these writes; here they are
// parameterized so the remap sequence itself — the part worth getting
// right — is testable without real I/O.
type Port interface {
	Outb(port uint16, value uint8)
	Inb(port uint16) uint8
}

// Fixed I/O port addresses and ICW bytes, matching
// original_source/arch/x86/pic.c exactly.
const (
	pic1CommandPort = 0x20
	pic1DataPort    = 0x21
	pic2CommandPort = 0xA0
	pic2DataPort    = 0xA1

	icw1         = 0x11
	icw2Master   = 0x20 // IRQ 0-7 -> IDT vectors 32-39
	icw2Slave    = 0x28 // IRQ 8-15 -> IDT vectors 40-47
	icw3Master   = 0x04 // master: slave is on IRQ2
	icw3Slave    = 0x02 // slave: cascade identity is IRQ2
	icw4         = 0x05 // master: 8086 mode, is master
	icw4Slave    = 0x01 // slave: 8086 mode
	eoiCommand   = 0x20
	defaultMask1 = 0xEC
	defaultMask2 = 0xFF
)

// PIC drives the 8259 remap/mask/EOI sequence over a raw Port.
type PIC struct {
	port Port
}

// NewPIC wires a PIC to its raw I/O port collaborator.
func NewPIC(port Port) *PIC {
	return &PIC{port: port}
}

// Init remaps IRQ0-15 onto IDT vectors 32-47 (defs.IRQBase) and applies
// the default masks: 0xEC on the master (IRQ0, IRQ1 and IRQ4 stay
// unmasked) and 0xFF on the slave (IRQ8-15 all masked), matching
// original_source's pic_init byte-for-byte.
func (p *PIC) Init() {
	p.port.Outb(pic1CommandPort, icw1)
	p.port.Outb(pic2CommandPort, icw1)
	p.port.Outb(pic1DataPort, icw2Master)
	p.port.Outb(pic2DataPort, icw2Slave)
	p.port.Outb(pic1DataPort, icw3Master)
	p.port.Outb(pic2DataPort, icw3Slave)
	p.port.Outb(pic1DataPort, icw4)
	p.port.Outb(pic2DataPort, icw4Slave)
	p.Mask(defaultMask1, defaultMask2)
}

// Mask sets the interrupt mask register on both PICs.
func (p *PIC) Mask(mask1, mask2 uint8) {
	p.port.Outb(pic1DataPort, mask1)
	p.port.Outb(pic2DataPort, mask2)
}

// SendEOI acknowledges the current interrupt on both PICs. Satisfies
// pit.PIC.
func (p *PIC) SendEOI() {
	p.port.Outb(pic1CommandPort, eoiCommand)
	p.port.Outb(pic2CommandPort, eoiCommand)
}
