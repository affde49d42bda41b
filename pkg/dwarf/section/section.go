// Package section models a loaded DWARF section: a contiguous byte
// range together with the metadata (byte order, offset width, address
// size) every cursor read depends on. Each view carries its own
// endianness and DWARF format rather than assuming one globally, since
// 32- and 64-bit DWARF can mix within a single file.
package section

import "encoding/binary"

// Kind identifies which well-known DWARF section a view was sliced
// from.
type Kind string

const (
	KindInfo       Kind = "debug_info"
	KindLine       Kind = "debug_line"
	KindLineStr    Kind = "debug_line_str"
	KindStr        Kind = "debug_str"
	KindStrOffsets Kind = "debug_str_offsets"
	KindAddr       Kind = "debug_addr"
	KindRanges     Kind = "debug_ranges"
	KindRngLists   Kind = "debug_rnglists"
	KindFrame      Kind = "debug_frame"
	KindAbbrev     Kind = "debug_abbrev"
	KindUnknown    Kind = "unknown"
)

// Format is the DWARF offset-encoding width for a section, decided by
// the initial-length discriminator (DWARF5 section 7.4).
type Format int

const (
	Format32 Format = 4
	Format64 Format = 8
)

// OffsetSize returns the on-disk width, in bytes, of a section offset
// encoded in this format.
func (f Format) OffsetSize() int {
	return int(f)
}

// Section is an immutable view over a byte range: a slice plus the
// metadata needed to read it. Section views are cheap to copy and
// cheap to subslice; Sub inherits the parent's metadata and tracks the
// absolute offset of the slice within the original section so cursors
// derived from it can still report meaningful absolute offsets.
//
// A Section is read-only and safe to share between many cursors,
// iterators, and goroutines, provided nothing mutates Data in place.
type Section struct {
	Kind     Kind
	Order    binary.ByteOrder
	Format   Format
	AddrSize int
	Data     []byte

	// base is the absolute offset of Data[0] within the original,
	// un-sliced section. It lets Sub chain arbitrarily while cursor
	// positions remain meaningful for error messages and ref_addr
	// lookups.
	base uint64
}

// New wraps data as a top-level section view.
func New(kind Kind, order binary.ByteOrder, format Format, addrSize int, data []byte) Section {
	return Section{Kind: kind, Order: order, Format: format, AddrSize: addrSize, Data: data}
}

// Sub returns the sub-range [off, off+length) as a new view that
// inherits this section's metadata. length < 0 means "to the end".
func (s Section) Sub(off, length int) Section {
	if length < 0 {
		length = len(s.Data) - off
	}
	n := s
	n.Data = s.Data[off : off+length]
	n.base = s.base + uint64(off)
	return n
}

// Base returns the absolute offset of this view's first byte within
// the original, un-sliced section.
func (s Section) Base() uint64 {
	return s.base
}

// Len returns the number of bytes remaining in this view.
func (s Section) Len() int {
	return len(s.Data)
}

// WithFormat returns a copy of s with its DWARF offset format
// replaced; used once a cursor has detected the initial-length
// sentinel mid-section.
func (s Section) WithFormat(f Format) Section {
	n := s
	n.Format = f
	return n
}
