package boot

import (
	"testing"
	"unsafe"
)

func identity(phys uint32) uint32 { return phys }

func TestParseModulesNoModsFlagReturnsFalse(t *testing.T) {
	info := multibootInfo{flags: 0}
	_, ok := ParseModules(uintptr(unsafe.Pointer(&info)), identity)
	if ok {
		t.Fatalf("expected ok=false when the MODS flag is unset")
	}
}

func TestParseModulesReadsEntries(t *testing.T) {
	body := []byte("hello module")
	entries := [1]moduleEntry{{
		modStart: uint32(uintptr(unsafe.Pointer(&body[0]))),
		modEnd:   uint32(uintptr(unsafe.Pointer(&body[0]))) + uint32(len(body)),
	}}
	info := multibootInfo{
		flags:     flagMods,
		modsCount: 1,
		modsAddr:  uint32(uintptr(unsafe.Pointer(&entries[0]))),
	}

	mods, ok := ParseModules(uintptr(unsafe.Pointer(&info)), identity)
	if !ok {
		t.Fatalf("expected ok=true with MODS flag set")
	}
	if len(mods) != 1 {
		t.Fatalf("got %d modules, want 1", len(mods))
	}
	if string(mods[0].Data) != "hello module" {
		t.Fatalf("module data = %q, want %q", mods[0].Data, "hello module")
	}
}
