// Package boot builds the GDT/TSS descriptor tables and drives the PIC
// remap sequence: the collaborator contracts spec.md §6 specifies but
// deliberately leaves unimplemented at the instruction level (the LGDT/
// LTR/OUT instructions themselves are architectural glue, out of scope
// per spec.md §1). What this package owns is the data layout — the bit
// packing original_source/arch/x86/gdt.c's gdt_set_gate performs by
// hand — and the sequencing, so a real port only has to supply the
// three raw collaborators: an I/O port writer, an LGDT/LTR loader, and
// nothing else.
package boot

import (
	"unsafe"

	"minikern/internal/defs"
)

// Access byte bits, matching original_source/include/arch/x86/gdt.h's
// GDT_ACCESS_* constants.
const (
	AccessPresent   uint8 = 1 << 7
	AccessRing3     uint8 = 3 << 5 // DPL field, ring 3
	AccessCode      uint8 = 1<<4 | 1<<3 // code/data descriptor type + executable
	AccessData      uint8 = 1 << 4      // code/data descriptor type
	AccessExecutable uint8 = 1 << 3
	AccessTSS       uint8 = 0x09 // 32-bit available TSS type in the type field
)

// Granularity byte bits.
const (
	Gran4KB  uint8 = 1 << 7
	Gran32Bit uint8 = 1 << 6
)

// Entry is the packed 8-byte GDT/LDT descriptor, laid out exactly as
// original_source's gdt_entry_t: split base/limit fields plus access
// and granularity bytes.
type Entry struct {
	LimitLow    uint16
	BaseLow     uint16
	BaseMiddle  uint8
	Access      uint8
	Granularity uint8 // high nibble = granularity flags, low nibble = limit bits 16-19
	BaseHigh    uint8
}

// NewEntry packs a descriptor the way original_source's gdt_set_gate
// does: base and limit split across the low/middle/high fields, and the
// granularity nibble shared between the flags and limit bits 16-19.
func NewEntry(base, limit uint32, access, gran uint8) Entry {
	return Entry{
		LimitLow:    uint16(limit & 0xFFFF),
		BaseLow:     uint16(base & 0xFFFF),
		BaseMiddle:  uint8((base >> 16) & 0xFF),
		Access:      access,
		Granularity: uint8((limit>>16)&0x0F) | (gran & 0xF0),
		BaseHigh:    uint8((base >> 24) & 0xFF),
	}
}

// GDT indices, matching spec.md §6's fixed segment selectors
// (selector = index*8 | RPL).
const (
	GDTNull = iota
	GDTKernelCode
	GDTKernelData
	GDTUserCode
	GDTUserData
	GDTTSS
	gdtEntries
)

// Table is the fixed six-entry GDT: null, kernel code/data, user
// code/data, and the TSS descriptor (spec.md §6's "five segment
// descriptors plus TSS").
type Table struct {
	Entries [gdtEntries]Entry
}

// Loader abstracts the LGDT instruction plus the far-jump/segment
// reload needed to actually start using a freshly built GDT — pure
// architectural glue, satisfied by inline assembly in a real port.
type Loader interface {
	LoadGDT(base uint32, limit uint16)
	ReloadSegments(codeSel, dataSel uint16)
}

// NewTable builds the standard flat-model GDT: a null descriptor, full
// 4 GiB ring-0 code/data segments, full 4 GiB ring-3 code/data
// segments, and a placeholder TSS descriptor (installed later by
// InstallTSS once the TSS's own address is known).
func NewTable() *Table {
	t := &Table{}
	t.Entries[GDTNull] = Entry{}
	t.Entries[GDTKernelCode] = NewEntry(0, 0xFFFFFFFF,
		AccessPresent|AccessCode|AccessExecutable|defs.AccessCodeReadable, Gran4KB|Gran32Bit)
	t.Entries[GDTKernelData] = NewEntry(0, 0xFFFFFFFF,
		AccessPresent|AccessData|defs.AccessDataWritable, Gran4KB|Gran32Bit)
	t.Entries[GDTUserCode] = NewEntry(0, 0xFFFFFFFF,
		AccessPresent|AccessRing3|AccessCode|AccessExecutable|defs.AccessCodeReadable, Gran4KB|Gran32Bit)
	t.Entries[GDTUserData] = NewEntry(0, 0xFFFFFFFF,
		AccessPresent|AccessRing3|AccessData|defs.AccessDataWritable, Gran4KB|Gran32Bit)
	return t
}

// InstallTSS packs the TSS descriptor once the TSS's base address and
// size are known, matching original_source/arch/x86/tss.c's
// `gdt_set_gate(5, tss_base, tss_limit, 0x89, 0x00)`.
func (t *Table) InstallTSS(tssBase uint32, tssLimit uint32) {
	t.Entries[GDTTSS] = NewEntry(tssBase, tssLimit, AccessPresent|AccessTSS, 0)
}

// Load hands the table to the Loader collaborator and reloads the
// kernel's own CS/DS selectors.
func (t *Table) Load(l Loader) {
	base := uint32(uintptr(unsafe.Pointer(&t.Entries[0])))
	limit := uint16(len(t.Entries)*8 - 1)
	l.LoadGDT(base, limit)
	l.ReloadSegments(defs.KernelCS, defs.KernelDS)
}
