package mem

// RAM backs the simulated physical address space that FrameAllocator
// hands out frames from. Real firmware gives the kernel the RAM window
// directly; this Go port, like the property tests spec.md §8 calls for
// ("a simulated MMU/PCB table"), models it explicitly so paging and
// page-fault code can be exercised without real hardware.
type RAM struct {
	bytes []byte
}

// NewRAM allocates a backing store covering the whole RAM window the
// frame allocator is configured for.
func NewRAM() *RAM {
	return &RAM{bytes: make([]byte, RAMWindowBytes)}
}

// Frame returns the byte slice mapping to the frame at p, analogous to
// Biscuit's Physmem_t.Dmap8 (biscuit/src/mem/mem.go) but backed by a
// plain Go slice instead of an unsafe direct-map pointer cast.
func (r *RAM) Frame(p PhysAddr) []byte {
	base := uint32(p.PageRound())
	return r.bytes[base : base+PGSIZE]
}

// ZeroFrame zero-fills the frame at p, used by the page-fault handler's
// demand-paging path and by vmm for fresh page directories and tables.
func (r *RAM) ZeroFrame(p PhysAddr) {
	f := r.Frame(p)
	for i := range f {
		f[i] = 0
	}
}

// CopyFrame copies one whole frame's contents from src to dst, used by
// fork's eager full-copy (spec.md §4.F step 2).
func (r *RAM) CopyFrame(dst, src PhysAddr) {
	copy(r.Frame(dst), r.Frame(src))
}
