// Package initrd reads the read-only boot-module blob described in
// spec.md §6: a fixed "INITRD" signature (falling back to a bare magic
// scan, falling back again to a synthesized single-file image), a flat
// file table, and concatenated file bodies. Grounded on
// original_source/fs/initrd.c's init_initrd/find_file/initrd_read.
package initrd

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	signature   = "INITRD"
	magic       = 0xBF
	maxFiles    = 64
	nameLen     = 32
	entrySize   = 48 // name[32] + size u32 + offset u32 + type u32 + perm u32
	headerBytes = 8  // magic u32, num_files u32
)

// File permission bits (spec.md §6).
const (
	PermRead  = 1
	PermWrite = 2
	PermExec  = 4
)

// File types, matching original_source/include/fs/vfs.h's fs_type_t.
const (
	TypeFile = 0
	TypeDir  = 1
)

// Entry describes one file table record.
type Entry struct {
	Name  string
	Size  uint32
	Offset uint32
	Type  uint32
	Perm  uint32
}

// Image is a parsed, read-only initrd: a file table plus a view onto
// the body bytes it indexes into. It never copies the body region.
type Image struct {
	entries []Entry
	data    []byte
}

// Debug gates the "synthesize a fake initrd" fallback. spec.md §9's
// REDESIGN FLAGS note marks this behaviour as debug-only: it must never
// activate in a release build, so callers wire this from a build-time
// flag rather than leaving it unconditionally on as the original does.
var Debug = false

// Parse locates and decodes an initrd header within a boot module's raw
// bytes, following spec.md §6's three-step search: signature at offset
// 0, bare magic scanned in the first 64 bytes, or (only when Debug is
// set) a synthesized one-file image.
func Parse(mod []byte) (*Image, error) {
	if off, ok := findHeader(mod); ok {
		return decode(mod, off)
	}
	if Debug {
		return synthesize(), nil
	}
	return nil, fmt.Errorf("initrd: no signature or magic found in module of %d bytes", len(mod))
}

// findHeader returns the byte offset of the magic/num_files header,
// preferring the "INITRD" signature at offset 0 (header starts at byte
// 8 past it) over a bare magic-word scan of the first 64 bytes.
func findHeader(mod []byte) (int, bool) {
	if len(mod) >= 6 && string(mod[:6]) == signature {
		return 8, true
	}
	limit := 64
	if limit > len(mod)-4 {
		limit = len(mod) - 4
	}
	for i := 0; i < limit; i++ {
		if binary.LittleEndian.Uint32(mod[i:i+4]) == magic {
			return i, true
		}
	}
	return 0, false
}

func decode(mod []byte, off int) (*Image, error) {
	if off+headerBytes > len(mod) {
		return nil, fmt.Errorf("initrd: header at offset %d truncated", off)
	}
	gotMagic := binary.LittleEndian.Uint32(mod[off : off+4])
	if gotMagic != magic {
		return nil, fmt.Errorf("initrd: bad magic %#x at offset %d, want %#x", gotMagic, off, magic)
	}
	numFiles := binary.LittleEndian.Uint32(mod[off+4 : off+8])
	if numFiles > maxFiles {
		return nil, fmt.Errorf("initrd: num_files %d exceeds max %d", numFiles, maxFiles)
	}

	tableStart := off + headerBytes
	tableEnd := tableStart + int(numFiles)*entrySize
	if tableEnd > len(mod) {
		return nil, fmt.Errorf("initrd: file table (%d entries) extends past module end", numFiles)
	}

	entries := make([]Entry, numFiles)
	for i := 0; i < int(numFiles); i++ {
		e := mod[tableStart+i*entrySize : tableStart+(i+1)*entrySize]
		entries[i] = Entry{
			Name:   cString(e[:nameLen]),
			Size:   binary.LittleEndian.Uint32(e[nameLen : nameLen+4]),
			Offset: binary.LittleEndian.Uint32(e[nameLen+4 : nameLen+8]),
			Type:   binary.LittleEndian.Uint32(e[nameLen+8 : nameLen+12]),
			Perm:   binary.LittleEndian.Uint32(e[nameLen+12 : nameLen+16]),
		}
	}

	return &Image{entries: entries, data: mod[tableEnd:]}, nil
}

func synthesize() *Image {
	const body = "This is a test file created in memory."
	return &Image{
		entries: []Entry{{Name: "test.txt", Size: uint32(len(body)), Offset: 0, Type: TypeFile, Perm: PermRead}},
		data:    []byte(body),
	}
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// BuildFile is one source file handed to Build: a name as it will
// appear in the image, its body, and its permission bits. cmd/mkinitrd
// is the only caller; kept here so the wire format's encoder lives next
// to its decoder.
type BuildFile struct {
	Name string
	Body []byte
	Type uint32
	Perm uint32
}

// Build encodes files into the on-disk format decode expects: the
// "INITRD" signature, the magic/num_files header, a fixed-size file
// table, then concatenated bodies in input order. It is the mirror
// image of decode and exists so cmd/mkinitrd and this package can
// never drift out of sync on the wire format.
func Build(files []BuildFile) ([]byte, error) {
	if len(files) > maxFiles {
		return nil, fmt.Errorf("initrd: %d files exceeds max %d", len(files), maxFiles)
	}
	for _, f := range files {
		if len(f.Name) >= nameLen {
			return nil, fmt.Errorf("initrd: name %q exceeds %d bytes", f.Name, nameLen-1)
		}
	}

	var buf bytes.Buffer
	buf.WriteString(signature)
	buf.Write([]byte{0, 0})

	var header [headerBytes]byte
	binary.LittleEndian.PutUint32(header[0:4], magic)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(files)))
	buf.Write(header[:])

	offset := uint32(0)
	for _, f := range files {
		var entry [entrySize]byte
		copy(entry[:nameLen], f.Name)
		binary.LittleEndian.PutUint32(entry[nameLen:nameLen+4], uint32(len(f.Body)))
		binary.LittleEndian.PutUint32(entry[nameLen+4:nameLen+8], offset)
		binary.LittleEndian.PutUint32(entry[nameLen+8:nameLen+12], f.Type)
		binary.LittleEndian.PutUint32(entry[nameLen+12:nameLen+16], f.Perm)
		buf.Write(entry[:])
		offset += uint32(len(f.Body))
	}
	for _, f := range files {
		buf.Write(f.Body)
	}
	return buf.Bytes(), nil
}

// NumFiles returns the number of entries in the file table.
func (img *Image) NumFiles() int { return len(img.entries) }

// Entries returns the file table, in on-disk order.
func (img *Image) Entries() []Entry { return img.entries }

// Find looks up a file by name (a leading "/" is stripped, matching
// original_source's find_file). It reports ok=false if absent.
func (img *Image) Find(path string) (Entry, bool) {
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	for _, e := range img.entries {
		if e.Name == path {
			return e, true
		}
	}
	return Entry{}, false
}

// Read returns the body bytes of the named file, or ok=false if it does
// not exist or its span falls outside the module.
func (img *Image) Read(path string) (body []byte, ok bool) {
	e, ok := img.Find(path)
	if !ok {
		return nil, false
	}
	start := e.Offset
	end := start + e.Size
	if int(end) > len(img.data) {
		return nil, false
	}
	return img.data[start:end], true
}
