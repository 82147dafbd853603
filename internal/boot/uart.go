package boot

import "minikern/internal/serial"

// 16550 UART register offsets/values, matching
// original_source/include/drivers/serial.h exactly.
const (
	uartCom1Base = 0x3F8

	uartLineEnableDLAB       = 0x80
	uartLineCommandValue     = 0x03
	uartFifoCommandValue     = 0xC7
	uartModemCommandValue    = 0x03
	uartMaxWaitAttempts      = 1000
	uartTransmitFIFOEmptyBit = 0x20
)

func uartDataPort(base uint16) uint16    { return base }
func uartFIFOPort(base uint16) uint16    { return base + 2 }
func uartLinePort(base uint16) uint16    { return base + 3 }
func uartModemPort(base uint16) uint16   { return base + 4 }
func uartLineStatusPort(base uint16) uint16 { return base + 5 }

// UART drives one 16550-compatible serial port over a raw Port,
// implementing serial.Port so klog can log through it via
// serial.Writer. Grounded on original_source/drivers/serial.c's
// serial_init/serial_write_byte.
type UART struct {
	port Port
	com  uint16
}

// NewUART configures the UART at I/O base com with the given baud divisor (original_source's
// serial_init always passes divisor=1, i.e. the maximum 115200 baud)
// and returns a ready-to-use UART.
func NewUART(port Port, com uint16, divisor uint16) *UART {
	u := &UART{port: port, com: com}
	u.port.Outb(uartLinePort(com), uartLineEnableDLAB)
	u.port.Outb(uartDataPort(com), uint8(divisor>>8))
	u.port.Outb(uartDataPort(com), uint8(divisor))
	u.port.Outb(uartLinePort(com), uartLineCommandValue)
	u.port.Outb(uartFIFOPort(com), uartFifoCommandValue)
	u.port.Outb(uartModemPort(com), uartModemCommandValue)
	return u
}

// NewCom1 is the common case: COM1 at the reference kernel's fixed
// maximum baud rate.
func NewCom1(port Port) *UART {
	return NewUART(port, uartCom1Base, 1)
}

func (u *UART) fifoEmpty() bool {
	return u.port.Inb(uartLineStatusPort(u.com))&uartTransmitFIFOEmptyBit != 0
}

// WriteByte implements serial.Port: it spins until the transmit FIFO
// is empty (bounded by uartMaxWaitAttempts, mirroring
// SERIAL_MAX_WAIT_ATTEMPTS) and reports false if that budget is
// exhausted rather than the byte being sent.
func (u *UART) WriteByte(b byte) bool {
	attempts := 0
	for !u.fifoEmpty() {
		attempts++
		if attempts >= uartMaxWaitAttempts {
			return false
		}
	}
	u.port.Outb(uartDataPort(u.com), b)
	return true
}

var _ serial.Port = (*UART)(nil)
