// Package serial specifies the UART collaborator contract, the Writer
// adapter klog writes through, and the pure hex/decimal formatting
// helpers ported from the reference driver (klog itself formats with
// fmt and does not call WriteHex or WriteDecimal). Byte-level port I/O (baud rate, line/FIFO/
// modem control registers) is out of scope per the kernel core's
// purpose and scope — only the interface a real driver would satisfy
// is specified here, grounded on
// original_source/drivers/serial.c's serial_write/serial_write_byte
// contract.
package serial

import "io"

// Port is the collaborator a concrete 16550 UART driver implements.
// WriteByte reports whether the byte was transmitted before the
// driver's retry budget (original_source's SERIAL_MAX_WAIT_ATTEMPTS)
// was exhausted.
type Port interface {
	WriteByte(b byte) bool
}

// Write pushes every byte of s through p, stopping early if the port
// reports a failed write. Returns the number of bytes actually sent,
// mirroring original_source/drivers/serial.c's serial_write return
// convention.
func Write(p Port, s string) int {
	for i := 0; i < len(s); i++ {
		if !p.WriteByte(s[i]) {
			return i
		}
	}
	return len(s)
}

// Writer adapts a Port to io.Writer so klog.New can drive the UART
// directly. A short write (the port's retry budget exhausted mid-
// string) is reported as io.ErrShortWrite rather than dropped silently.
type Writer struct {
	Port Port
}

func (w Writer) Write(p []byte) (int, error) {
	n := Write(w.Port, string(p))
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

const hexDigits = "0123456789ABCDEF"

// WriteHex renders num as 8 uppercase hex digits (no "0x" prefix),
// matching original_source's num_to_hex/serial_write_hex.
func WriteHex(num uint32) string {
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = hexDigits[num&0xF]
		num >>= 4
	}
	return string(buf)
}

// WriteDecimal renders num in decimal with a leading '-' for negative
// values, matching original_source's num_to_decimal/serial_write_decimal.
func WriteDecimal(num int32) string {
	if num == 0 {
		return "0"
	}
	neg := num < 0
	if neg {
		num = -num
	}
	var digits []byte
	for num > 0 {
		digits = append(digits, byte('0'+num%10))
		num /= 10
	}
	if neg {
		digits = append(digits, '-')
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}
