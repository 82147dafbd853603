package boot

import "unsafe"

// Magic is the value multiboot-compliant bootloaders pass in EAX
// alongside the info pointer, per spec.md §6 ("entry receives the info
// structure pointer and magic (0x2BADB002)").
const Magic uint32 = 0x2BADB002

// Info flag bits consulted out of the Multiboot 1 info structure.
const flagMods uint32 = 1 << 3

// multibootInfo mirrors the subset of the Multiboot 1 information
// structure spec.md §6 says the kernel consults: flags, mods_count,
// mods_addr. Every other field (memory map, boot device, ...) is
// skipped, matching the reference kernel's narrow use of the struct.
type multibootInfo struct {
	flags     uint32
	_memLower uint32
	_memUpper uint32
	_bootDev  uint32
	_cmdline  uint32
	modsCount uint32
	modsAddr  uint32
}

// moduleEntry mirrors one multiboot_mod_list entry: mod_start, mod_end
// (both physical), a cmdline pointer, and a padding word.
type moduleEntry struct {
	modStart uint32
	modEnd   uint32
	cmdline  uint32
	_pad     uint32
}

// PhysToVirt translates a physical address into this kernel's
// direct-mapped virtual window, per spec.md §6's "all such pointers
// must be translated through phys_to_virt before dereference".
type PhysToVirt func(phys uint32) uint32

// Module is one parsed boot module: its virtual byte range, exposed as
// a slice over the (already phys-to-virt translated) backing memory,
// plus its raw cmdline pointer for diagnostics.
type Module struct {
	Data    []byte
	Cmdline uint32
}

// ParseModules reads the Multiboot 1 info structure at infoPtr (already
// translated to a virtual address) and returns every boot module it
// lists, with each module's own mod_start/mod_end also translated
// through p2v. Returns (nil, false) if the MODS flag is unset —
// spec.md's "boot smoke" scenario ("no modules found").
func ParseModules(infoPtr uintptr, p2v PhysToVirt) ([]Module, bool) {
	info := (*multibootInfo)(unsafe.Pointer(infoPtr))
	if info.flags&flagMods == 0 || info.modsCount == 0 {
		return nil, false
	}

	modsBase := uintptr(p2v(info.modsAddr))
	mods := make([]Module, info.modsCount)
	for i := uint32(0); i < info.modsCount; i++ {
		entry := (*moduleEntry)(unsafe.Pointer(modsBase + uintptr(i)*unsafe.Sizeof(moduleEntry{})))
		start := p2v(entry.modStart)
		end := p2v(entry.modEnd)
		data := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(start))), end-start)
		mods[i] = Module{Data: data, Cmdline: entry.cmdline}
	}
	return mods, true
}
