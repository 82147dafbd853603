// Package vmm implements two-level x86 paging: the kernel directory and
// its higher-half mapping, per-process directory cloning, and page
// table walk/insert/remove. Grounded on biscuit/src/vm/as.go (the shape
// of Page_insert/Page_remove/the page-fault-driven-populate pattern) and
// biscuit/src/mem/dmap.go (direct-map-backed structure access), adapted
// from Biscuit's 4-level amd64 page tables with reference counting and
// COW down to the flat 2-level i386 scheme spec.md §4.B calls for: no
// COW, no refcounting, one page directory per process cloned from the
// kernel's top half.
package vmm

import (
	"minikern/internal/defs"
	"minikern/internal/mem"
)

const entriesPerTable = 1024

// Table is a page directory or page table: 1024 32-bit entries.
type Table [entriesPerTable]uint32

// Manager owns the RAM backing store and the single static kernel
// directory/table that every process's directory's top half is cloned
// from.
type Manager struct {
	ram        *mem.RAM
	frames     *mem.FrameAllocator
	kernelPD   mem.PhysAddr
	kernelPT0  mem.PhysAddr // identity-maps the first 4MiB
}

// NewManager wires a vmm.Manager to the shared RAM and frame allocator.
func NewManager(ram *mem.RAM, frames *mem.FrameAllocator) *Manager {
	return &Manager{ram: ram, frames: frames}
}

func (m *Manager) table(p mem.PhysAddr) *Table {
	return (*Table)(tablePtr(m.ram.Frame(p)))
}

// Init zeroes a fresh kernel directory and one kernel page table,
// identity-maps the first 4MiB into that table, and installs the table
// in directory slot 0 (low alias, needed to survive the CR3 load) and in
// KernelPDTIdx (the permanent higher-half mapping). Spec.md §4.B.
func (m *Manager) Init() {
	m.kernelPD = m.frames.AllocFrame()
	m.ram.ZeroFrame(m.kernelPD)
	m.kernelPT0 = m.frames.AllocFrame()
	m.ram.ZeroFrame(m.kernelPT0)

	pt := m.table(m.kernelPT0)
	for i := 0; i < entriesPerTable; i++ {
		phys := uint32(i) * mem.PGSIZE
		pt[i] = phys | defs.PTE_P | defs.PTE_W
	}

	pd := m.table(m.kernelPD)
	entry := uint32(m.kernelPT0) | defs.PTE_P | defs.PTE_W
	pd[0] = entry
	pd[defs.KernelPDTIdx] = entry
}

// KernelPD returns the physical address of the kernel's page directory.
func (m *Manager) KernelPD() mem.PhysAddr { return m.kernelPD }

// SetupHigherHalf clears the low alias (directory slot 0) installed by
// Init so that only the higher-half kernel mapping remains reachable.
// A real implementation also issues invlpg(0); irrelevant in this
// simulated address space.
func (m *Manager) SetupHigherHalf() {
	pd := m.table(m.kernelPD)
	pd[0] = 0
}

// CreatePageDirectory allocates a fresh directory and copies the kernel's
// top-half entries ([KernelPDTIdx, 1024)) into it, so every process
// shares the same kernel mapping. Returns the new directory's physical
// address.
func (m *Manager) CreatePageDirectory() mem.PhysAddr {
	p := m.frames.AllocFrame()
	if p == 0 {
		return 0
	}
	m.ram.ZeroFrame(p)
	pd := m.table(p)
	kpd := m.table(m.kernelPD)
	for i := defs.KernelPDTIdx; i < entriesPerTable; i++ {
		pd[i] = kpd[i]
	}
	return p
}

// walk returns the PTE slot for vaddr in the directory pdPhys,
// allocating and zeroing a new page table if the PDE is not present.
// alloc controls whether a missing table is actually created (false for
// read-only lookups like GetPhysicalAddress).
func (m *Manager) walk(pdPhys mem.PhysAddr, vaddr uint32, alloc bool) *uint32 {
	pd := m.table(pdPhys)
	pdi := vaddr >> 22
	pti := (vaddr >> 12) & 0x3ff

	if pd[pdi]&defs.PTE_P == 0 {
		if !alloc {
			return nil
		}
		newTable := m.frames.AllocFrame()
		if newTable == 0 {
			return nil
		}
		m.ram.ZeroFrame(newTable)
		pd[pdi] = uint32(newTable) | defs.PTE_P | defs.PTE_W | defs.PTE_U
	}

	pt := m.table(mem.PhysAddr(pd[pdi] & defs.PTE_ADDR))
	return &pt[pti]
}

// MapPage installs paddr|flags at vaddr in the directory pdPhys,
// allocating any missing page table along the way. Spec.md §4.B.
func (m *Manager) MapPage(pdPhys mem.PhysAddr, vaddr uint32, paddr mem.PhysAddr, flags uint32) bool {
	pte := m.walk(pdPhys, vaddr, true)
	if pte == nil {
		return false
	}
	*pte = uint32(paddr) | flags
	return true
}

// UnmapPage zeroes the PTE for vaddr if present. Empty page tables are
// not freed, matching spec.md §4.B.
func (m *Manager) UnmapPage(pdPhys mem.PhysAddr, vaddr uint32) {
	pte := m.walk(pdPhys, vaddr, false)
	if pte != nil && *pte&defs.PTE_P != 0 {
		*pte = 0
	}
}

// GetPhysicalAddress translates vaddr through pdPhys's page tables,
// returning 0 when unmapped.
func (m *Manager) GetPhysicalAddress(pdPhys mem.PhysAddr, vaddr uint32) mem.PhysAddr {
	pte := m.walk(pdPhys, vaddr, false)
	if pte == nil || *pte&defs.PTE_P == 0 {
		return 0
	}
	return mem.PhysAddr(*pte&defs.PTE_ADDR) + mem.PhysAddr(vaddr&uint32(mem.PGOFFSET))
}

// PTE returns the raw PTE for vaddr in pdPhys (0 if unmapped or no
// table exists), useful for fork's "copy parent_flags & 0xFFF" step.
func (m *Manager) PTE(pdPhys mem.PhysAddr, vaddr uint32) uint32 {
	pte := m.walk(pdPhys, vaddr, false)
	if pte == nil {
		return 0
	}
	return *pte
}

// Present reports whether vaddr has a present PTE under pdPhys.
func (m *Manager) Present(pdPhys mem.PhysAddr, vaddr uint32) bool {
	return m.PTE(pdPhys, vaddr)&defs.PTE_P != 0
}

// ForEachUserPage walks every present PTE whose directory index is below
// KernelPDTIdx, calling fn(vaddr, paddr, flags) for each. Used by fork to
// enumerate the parent's user mappings (spec.md §4.F step 2).
func (m *Manager) ForEachUserPage(pdPhys mem.PhysAddr, fn func(vaddr uint32, paddr mem.PhysAddr, flags uint32)) {
	pd := m.table(pdPhys)
	for pdi := 0; pdi < defs.KernelPDTIdx; pdi++ {
		if pd[pdi]&defs.PTE_P == 0 {
			continue
		}
		pt := m.table(mem.PhysAddr(pd[pdi] & defs.PTE_ADDR))
		for pti := 0; pti < entriesPerTable; pti++ {
			if pt[pti]&defs.PTE_P == 0 {
				continue
			}
			vaddr := uint32(pdi)<<22 | uint32(pti)<<12
			fn(vaddr, mem.PhysAddr(pt[pti]&defs.PTE_ADDR), pt[pti]&0xFFF)
		}
	}
}
