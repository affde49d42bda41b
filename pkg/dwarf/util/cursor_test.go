package util

import (
	"encoding/binary"
	"testing"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/section"
)

func newSec(data []byte) section.Section {
	return section.New(section.KindInfo, binary.LittleEndian, section.Format32, 8, data)
}

func TestUleb128(t *testing.T) {
	args := []struct {
		data []byte
		want uint64
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}, ^uint64(0)},
	}

	for _, arg := range args {
		cur := NewCursor(newSec(arg.data), 0)
		got, err := cur.Uleb128()
		if err != nil {
			t.Fatal(err)
		}
		if got != arg.want {
			t.Errorf("uleb128(% x) = %d, want %d", arg.data, got, arg.want)
		}
		if cur.RelOffset() != len(arg.data) {
			t.Errorf("uleb128(% x) consumed %d bytes, want %d", arg.data, cur.RelOffset(), len(arg.data))
		}
	}
}

func TestSleb128(t *testing.T) {
	args := []struct {
		data []byte
		want int64
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x02}, 2},
		{[]byte{0x7e}, -2},
		{[]byte{0xff, 0x00}, 127},
		{[]byte{0x81, 0x7f}, -127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0x80, 0x7f}, -128},
	}

	for _, arg := range args {
		cur := NewCursor(newSec(arg.data), 0)
		got, err := cur.Sleb128()
		if err != nil {
			t.Fatal(err)
		}
		if got != arg.want {
			t.Errorf("sleb128(% x) = %d, want %d", arg.data, got, arg.want)
		}
	}
}

func TestCString(t *testing.T) {
	cur := NewCursor(newSec([]byte("abc\x00def\x00")), 0)

	s, err := cur.CString()
	if err != nil {
		t.Fatal(err)
	}
	if s != "abc" {
		t.Errorf("got %q, want %q", s, "abc")
	}

	s, err = cur.CString()
	if err != nil {
		t.Fatal(err)
	}
	if s != "def" {
		t.Errorf("got %q, want %q", s, "def")
	}

	if _, err = cur.CString(); err == nil {
		t.Errorf("expected error at end of section")
	}
}

func TestCStringUnterminated(t *testing.T) {
	cur := NewCursor(newSec([]byte("abc")), 0)
	if _, err := cur.CString(); err == nil {
		t.Errorf("expected error for unterminated string")
	}
}

func TestReadPastEnd(t *testing.T) {
	cur := NewCursor(newSec([]byte{1, 2}), 0)
	if _, err := cur.Uint32(); err == nil {
		t.Errorf("expected short-read error")
	}
}

func TestInitialLength32(t *testing.T) {
	data := []byte{0x10, 0x00, 0x00, 0x00}
	cur := NewCursor(newSec(data), 0)
	length, format, err := cur.ReadInitialLength()
	if err != nil {
		t.Fatal(err)
	}
	if length != 0x10 || format != section.Format32 {
		t.Errorf("got (%d, %v), want (16, Format32)", length, format)
	}
}

func TestInitialLength64(t *testing.T) {
	data := []byte{0xff, 0xff, 0xff, 0xff, 0x20, 0, 0, 0, 0, 0, 0, 0}
	cur := NewCursor(newSec(data), 0)
	length, format, err := cur.ReadInitialLength()
	if err != nil {
		t.Fatal(err)
	}
	if length != 0x20 || format != section.Format64 {
		t.Errorf("got (%d, %v), want (32, Format64)", length, format)
	}
}

func TestInitialLengthReservedRejected(t *testing.T) {
	data := []byte{0xf0, 0xff, 0xff, 0xff}
	cur := NewCursor(newSec(data), 0)
	if _, _, err := cur.ReadInitialLength(); err == nil {
		t.Errorf("expected error for reserved initial-length value")
	}
}

func TestSubsectionInheritsFormat(t *testing.T) {
	var data []byte
	data = append(data, 0xff, 0xff, 0xff, 0xff)
	var l [8]byte
	binary.LittleEndian.PutUint64(l[:], 2)
	data = append(data, l[:]...)
	data = append(data, 0xaa, 0xbb, 0xcc)

	cur := NewCursor(newSec(data), 0)
	sub, err := cur.Subsection()
	if err != nil {
		t.Fatal(err)
	}
	if sub.Format != section.Format64 {
		t.Errorf("subsection format = %v, want Format64", sub.Format)
	}
	if sub.Len() != 2 {
		t.Errorf("subsection length = %d, want 2", sub.Len())
	}
	if sub.Base() != 12 {
		t.Errorf("subsection base = %d, want 12", sub.Base())
	}
	if cur.RelOffset() != 14 {
		t.Errorf("cursor left at %d, want 14", cur.RelOffset())
	}
}

func TestSecOffsetWidthFollowsFormat(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	cur := NewCursor(newSec(data), 0)
	got, err := cur.SecOffset()
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x04030201 {
		t.Errorf("32-bit sec offset = %#x", got)
	}

	sec64 := newSec(data).WithFormat(section.Format64)
	cur = NewCursor(sec64, 0)
	got, err = cur.SecOffset()
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x0807060504030201 {
		t.Errorf("64-bit sec offset = %#x", got)
	}
}
