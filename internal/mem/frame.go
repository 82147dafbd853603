package mem

import "minikern/internal/util"

// FrameAllocator owns a dense bitmap over a fixed RAM window and hands out
// 4 KiB-aligned physical frames. One bit per frame; bit=1 means allocated.
// Zero is reserved as "no frame" (AllocFrame returns it only when full).
//
// Grounded on biscuit/src/mem/mem.go's Physmem_t, simplified from a
// per-CPU refcounted free-list to the single flat bitmap spec.md §4.A
// calls for: allocation is rare (once per page fault, once per fork'd
// page) so an O(N) scan is not worth a free-list's bookkeeping, and the
// single-CPU invariant (spec.md §5) means no locking is required.
type FrameAllocator struct {
	bits       []uint64
	nframes    uint32
	physStart  PhysAddr
	bitmapEnd  PhysAddr
}

const bitsPerWord = 64

// Init seeds the kernel phys/virt base pair, sizes the bitmap to cover
// RAMWindowBytes, and marks permanently allocated: every frame below
// physStart, the kernel image itself, and the bitmap's own backing
// storage (placed immediately after the image, rounded up to a frame
// boundary). Mirrors spec.md §4.A.
func (fa *FrameAllocator) Init(physStart, physEnd PhysAddr, virtStart, virtEnd VirtAddr) {
	SetDirectMap(physStart, virtStart)

	fa.nframes = uint32(RAMWindowBytes / PGSIZE)
	nwords := util.DivRoundup(fa.nframes, uint32(bitsPerWord))
	fa.bits = make([]uint64, nwords)
	fa.physStart = 0

	// bitmap storage lives right after the kernel image.
	imageFrames := uint32(util.DivRoundup(uint32(physEnd), uint32(PGSIZE)))
	bitmapBytes := uint32(nwords) * 8
	bitmapFrames := util.DivRoundup(bitmapBytes, uint32(PGSIZE))
	fa.bitmapEnd = PhysAddr((imageFrames + bitmapFrames) * PGSIZE)

	belowKernel := uint32(physStart) / PGSIZE
	for i := uint32(0); i < belowKernel; i++ {
		fa.markAllocated(i)
	}
	upto := uint32(fa.bitmapEnd) / PGSIZE
	for i := belowKernel; i < upto && i < fa.nframes; i++ {
		fa.markAllocated(i)
	}
}

func (fa *FrameAllocator) markAllocated(idx uint32) {
	fa.bits[idx/bitsPerWord] |= 1 << (idx % bitsPerWord)
}

func (fa *FrameAllocator) markFree(idx uint32) {
	fa.bits[idx/bitsPerWord] &^= 1 << (idx % bitsPerWord)
}

func (fa *FrameAllocator) testBit(idx uint32) bool {
	return fa.bits[idx/bitsPerWord]&(1<<(idx%bitsPerWord)) != 0
}

// AllocFrame scans from frame 0 for the first free bit, marks it
// allocated, and returns its physical base address. Returns 0 ("no
// frame") when the bitmap is full.
func (fa *FrameAllocator) AllocFrame() PhysAddr {
	for i := uint32(0); i < fa.nframes; i++ {
		if !fa.testBit(i) {
			fa.markAllocated(i)
			return PhysAddr(i * PGSIZE)
		}
	}
	return 0
}

// FreeFrame clears the frame's bit. Out-of-range addresses are a silent
// no-op, matching spec.md §4.A.
func (fa *FrameAllocator) FreeFrame(p PhysAddr) {
	idx := uint32(p) / PGSIZE
	if idx >= fa.nframes {
		return
	}
	fa.markFree(idx)
}

// IsFrameAllocated reports whether the frame at p is allocated.
// Out-of-range addresses are conservatively reported allocated.
func (fa *FrameAllocator) IsFrameAllocated(p PhysAddr) bool {
	idx := uint32(p) / PGSIZE
	if idx >= fa.nframes {
		return true
	}
	return fa.testBit(idx)
}

// NumFrames reports the total frame count the bitmap covers, mostly
// useful to tests and cmd/kstat.
func (fa *FrameAllocator) NumFrames() uint32 { return fa.nframes }
