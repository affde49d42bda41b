// Package objfile opens an ELF executable or object file and hands the
// decoder core its .debug_* sections, implementing the Section
// Provider contract of pkg/dwarf/unit. Endianness and address size
// come from the ELF header; the DWARF offset format of each section is
// refined later by the initial-length sentinel when a decoder slices a
// subsection.
package objfile

import (
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/dwarferr"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/section"
)

// File is an opened ELF file plus a cache of loaded debug sections.
type File struct {
	path string
	elf  *elf.File

	order    binary.ByteOrder
	addrSize int

	sections map[section.Kind]section.Section
}

// Open opens path as an ELF file.
func Open(path string) (*File, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if f.Data == elf.ELFDATA2MSB {
		order = binary.BigEndian
	}
	addrSize := 8
	if f.Class == elf.ELFCLASS32 {
		addrSize = 4
	}

	return &File{
		path:     path,
		elf:      f,
		order:    order,
		addrSize: addrSize,
		sections: make(map[section.Kind]section.Section),
	}, nil
}

// Path returns the path the file was opened from.
func (f *File) Path() string {
	return f.path
}

// AddrSize returns the file's native address size in bytes.
func (f *File) AddrSize() int {
	return f.addrSize
}

// Section loads the named debug section, caching the bytes so repeated
// lookups from value accessors stay cheap.
func (f *File) Section(kind section.Kind) (section.Section, error) {
	if s, ok := f.sections[kind]; ok {
		return s, nil
	}

	name := "." + string(kind)
	sec := f.elf.Section(name)
	if sec == nil {
		return section.Section{}, dwarferr.NewFormat(string(kind), 0,
			"no %s section in %s", name, f.path)
	}
	data, err := sec.Data()
	if err != nil {
		return section.Section{}, fmt.Errorf("read %s of %s: %w", name, f.path, err)
	}

	s := section.New(kind, f.order, section.Format32, f.addrSize, data)
	f.sections[kind] = s
	return s, nil
}

// Close closes the underlying ELF file. Section views handed out
// earlier keep their data; only the file handle is released.
func (f *File) Close() error {
	return f.elf.Close()
}
