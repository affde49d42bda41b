// Package util provides the stateful read cursor and LEB128/C-string
// primitives the line, range list, value and frame decoders build on.
// A cursor carries no format assumptions of its own: the DWARF offset
// width, endianness and address size all come from the metadata on the
// section.Section it reads.
package util

import (
	"encoding/binary"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/dwarferr"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/section"
)

// Cursor is a borrow of a section view plus a current byte offset.
// Reading advances the offset; reading past the end of the section
// fails with a *dwarferr.FormatError carrying the section kind and the
// requested absolute offset.
type Cursor struct {
	sec section.Section
	off int
}

// NewCursor opens a cursor over sec starting at the given offset
// relative to sec.Data.
func NewCursor(sec section.Section, off int) *Cursor {
	return &Cursor{sec: sec, off: off}
}

// Section returns the section view this cursor reads from.
func (c *Cursor) Section() section.Section {
	return c.sec
}

// Offset returns the cursor's current absolute byte position within
// the original, un-sliced section.
func (c *Cursor) Offset() uint64 {
	return c.sec.Base() + uint64(c.off)
}

// RelOffset returns the cursor's current position relative to the
// section view it was constructed over.
func (c *Cursor) RelOffset() int {
	return c.off
}

// Seek repositions the cursor to an offset relative to its section view.
func (c *Cursor) Seek(off int) {
	c.off = off
}

// Len returns the number of unread bytes left in the cursor's section view.
func (c *Cursor) Len() int {
	return len(c.sec.Data) - c.off
}

// Done reports whether the cursor has reached the end of its section view.
func (c *Cursor) Done() bool {
	return c.off >= len(c.sec.Data)
}

func (c *Cursor) require(n int) error {
	if n < 0 || c.off+n > len(c.sec.Data) {
		return dwarferr.NewFormat(string(c.sec.Kind), c.Offset(),
			"short read: want %d bytes, have %d", n, c.Len())
	}
	return nil
}

// Uint8 reads a single byte.
func (c *Cursor) Uint8() (uint8, error) {
	if err := c.require(1); err != nil {
		return 0, err
	}
	v := c.sec.Data[c.off]
	c.off++
	return v, nil
}

// Int8 reads a signed byte (DWARF's "sbyte").
func (c *Cursor) Int8() (int8, error) {
	v, err := c.Uint8()
	return int8(v), err
}

// Uint16 reads a 2-byte little- or big-endian unsigned integer, per
// the section's byte order.
func (c *Cursor) Uint16() (uint16, error) {
	if err := c.require(2); err != nil {
		return 0, err
	}
	v := c.sec.Order.Uint16(c.sec.Data[c.off:])
	c.off += 2
	return v, nil
}

// Uint32 reads a 4-byte unsigned integer.
func (c *Cursor) Uint32() (uint32, error) {
	if err := c.require(4); err != nil {
		return 0, err
	}
	v := c.sec.Order.Uint32(c.sec.Data[c.off:])
	c.off += 4
	return v, nil
}

// Uint64 reads an 8-byte unsigned integer.
func (c *Cursor) Uint64() (uint64, error) {
	if err := c.require(8); err != nil {
		return 0, err
	}
	v := c.sec.Order.Uint64(c.sec.Data[c.off:])
	c.off += 8
	return v, nil
}

// UintN reads an n-byte (1/2/4/8) unsigned integer using the section's
// byte order. Used where the width is only known at run time: native
// addresses, section offsets, and .debug_addr/.debug_str_offsets/
// .debug_rnglists table entries. Other widths, including 3, are
// rejected.
func (c *Cursor) UintN(n int) (uint64, error) {
	switch n {
	case 1:
		v, err := c.Uint8()
		return uint64(v), err
	case 2:
		v, err := c.Uint16()
		return uint64(v), err
	case 4:
		v, err := c.Uint32()
		return uint64(v), err
	case 8:
		return c.Uint64()
	}
	return 0, dwarferr.NewFormat(string(c.sec.Kind), c.Offset(), "unsupported integer width %d", n)
}

// Bytes returns the next n bytes as a zero-copy slice into the
// underlying section and advances past them.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if err := c.require(n); err != nil {
		return nil, err
	}
	b := c.sec.Data[c.off : c.off+n]
	c.off += n
	return b, nil
}

// Skip advances the cursor by n bytes without returning them.
func (c *Cursor) Skip(n int) error {
	_, err := c.Bytes(n)
	return err
}

// Address reads one native address: AddrSize bytes, per the section's
// address size. A DWARF5 line table carries its own address size,
// which can differ from the compilation unit's, so the size lives on
// the section rather than on the cursor.
func (c *Cursor) Address() (uint64, error) {
	if c.sec.AddrSize != 4 && c.sec.AddrSize != 8 {
		return 0, dwarferr.NewFormat(string(c.sec.Kind), c.Offset(), "unsupported address size %d", c.sec.AddrSize)
	}
	return c.UintN(c.sec.AddrSize)
}

// SecOffset reads one native section offset: 4 bytes for 32-bit DWARF,
// 8 for 64-bit, per the section's detected format.
func (c *Cursor) SecOffset() (uint64, error) {
	return c.UintN(c.sec.Format.OffsetSize())
}

// Uleb128 reads an unsigned LEB128 varint: 7 bits per byte, little
// endian, continuation in the MSB. Capped at 10 bytes, enough for any
// 64-bit value.
func (c *Cursor) Uleb128() (uint64, error) {
	var result uint64
	var shift uint
	for i := 0; i < 10; i++ {
		b, err := c.Uint8()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
	return 0, dwarferr.NewFormat(string(c.sec.Kind), c.Offset(), "ULEB128 exceeds 10 bytes")
}

// Sleb128 reads a signed LEB128 varint: like Uleb128 but sign-extended
// from the last byte's sign bit.
func (c *Cursor) Sleb128() (int64, error) {
	var result int64
	var shift uint
	var b uint8
	var err error
	for i := 0; i < 10; i++ {
		b, err = c.Uint8()
		if err != nil {
			return 0, err
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, nil
		}
	}
	return 0, dwarferr.NewFormat(string(c.sec.Kind), c.Offset(), "SLEB128 exceeds 10 bytes")
}

// CStringBytes returns the NUL-terminated string at the cursor as a
// zero-copy slice (excluding the terminator) and advances past it.
func (c *Cursor) CStringBytes() ([]byte, error) {
	for i := c.off; i < len(c.sec.Data); i++ {
		if c.sec.Data[i] == 0 {
			s := c.sec.Data[c.off:i]
			c.off = i + 1
			return s, nil
		}
	}
	return nil, dwarferr.NewFormat(string(c.sec.Kind), c.Offset(), "unterminated string")
}

// CString returns the NUL-terminated string at the cursor, copied into
// a new Go string, and advances past it.
func (c *Cursor) CString() (string, error) {
	b, err := c.CStringBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadInitialLength reads the 4-byte "initial length" discriminator
// (DWARF5 section 7.4): 0xffffffff switches to 64-bit DWARF and reads
// the real length from the following 8 bytes; values in
// [0xfffffff0, 0xfffffffe] are reserved and rejected.
func (c *Cursor) ReadInitialLength() (length uint64, format section.Format, err error) {
	v, err := c.Uint32()
	if err != nil {
		return 0, 0, err
	}
	if v == 0xffffffff {
		length, err = c.Uint64()
		return length, section.Format64, err
	}
	if v >= 0xfffffff0 {
		return 0, 0, dwarferr.NewFormat(string(c.sec.Kind), c.Offset(), "reserved initial-length value %#x", v)
	}
	return uint64(v), section.Format32, nil
}

// Subsection reads an initial length at the cursor and returns the
// following `length` bytes as a new section view with the detected
// DWARF format. The cursor is left positioned immediately after the
// subsection.
func (c *Cursor) Subsection() (section.Section, error) {
	length, format, err := c.ReadInitialLength()
	if err != nil {
		return section.Section{}, err
	}
	if err := c.require(int(length)); err != nil {
		return section.Section{}, err
	}
	sub := c.sec.Sub(c.off, int(length)).WithFormat(format)
	c.off += int(length)
	return sub, nil
}

var nativeOrder = binary.LittleEndian

// NativeOrder is the byte order used to materialise synthetic section
// views (e.g. rangelist.NewSynthetic) that have no on-disk
// counterpart.
func NativeOrder() binary.ByteOrder {
	return nativeOrder
}
