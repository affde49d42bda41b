package form

import (
	"encoding/binary"
	"testing"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/section"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/util"
)

func newCursor(data []byte) *util.Cursor {
	sec := section.New(section.KindInfo, binary.LittleEndian, section.Format32, 8, data)
	return util.NewCursor(sec, 0)
}

func TestSkip(t *testing.T) {
	args := []struct {
		form Form
		data []byte
		want int
	}{
		{Addr, make([]byte, 8), 8},
		{Data1, []byte{1}, 1},
		{Data2, []byte{1, 2}, 2},
		{Data4, make([]byte, 4), 4},
		{Data8, make([]byte, 8), 8},
		{Data16, make([]byte, 16), 16},
		{Flag, []byte{1}, 1},
		{FlagPresent, []byte{0xee}, 0},
		{ImplicitConst, []byte{0xee}, 0},
		{String, []byte("abc\x00xyz"), 4},
		{Strp, make([]byte, 4), 4},
		{LineStrp, make([]byte, 4), 4},
		{SecOffset, make([]byte, 4), 4},
		{RefAddr, make([]byte, 4), 4},
		{Udata, []byte{0x80, 0x01}, 2},
		{Sdata, []byte{0x7e}, 1},
		{Strx, []byte{0x05}, 1},
		{Strx3, make([]byte, 3), 3},
		{Addrx3, make([]byte, 3), 3},
		{Rnglistx, []byte{0x05}, 1},
		{Block1, []byte{2, 0xaa, 0xbb, 0xcc}, 3},
		{Block2, []byte{1, 0, 0xaa}, 3},
		{Block, []byte{3, 0xaa, 0xbb, 0xcc}, 4},
		{Exprloc, []byte{1, 0x9c}, 2},
		{RefSig8, make([]byte, 8), 8},
	}

	for _, arg := range args {
		cur := newCursor(arg.data)
		if err := Skip(cur, arg.form); err != nil {
			t.Fatalf("skip %s: %v", arg.form, err)
		}
		if cur.RelOffset() != arg.want {
			t.Errorf("skip %s consumed %d bytes, want %d", arg.form, cur.RelOffset(), arg.want)
		}
	}
}

func TestSkipIndirectChasesInnerForm(t *testing.T) {
	// indirect -> data2 -> 2 payload bytes
	cur := newCursor([]byte{byte(Data2), 0xaa, 0xbb})
	if err := Skip(cur, Indirect); err != nil {
		t.Fatal(err)
	}
	if cur.RelOffset() != 3 {
		t.Errorf("consumed %d bytes, want 3", cur.RelOffset())
	}
}

func TestSkipUnknownFormRejected(t *testing.T) {
	cur := newCursor([]byte{0})
	if err := Skip(cur, Form(0x7f)); err == nil {
		t.Errorf("expected error for unknown form")
	}
}

func TestSkipTruncatedBlockRejected(t *testing.T) {
	cur := newCursor([]byte{5, 0xaa})
	if err := Skip(cur, Block1); err == nil {
		t.Errorf("expected error for truncated block")
	}
}
