package vmm

import "unsafe"

// tablePtr reinterprets a page-sized byte slice as a *Table. This is the
// Go-port analogue of Biscuit's pg2pmap (biscuit/src/mem/mem.go), which
// does the same cast from *Pg_t to *Pmap_t over a direct-mapped page.
func tablePtr(b []byte) unsafe.Pointer {
	return unsafe.Pointer(&b[0])
}
