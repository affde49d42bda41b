package frame

import (
	"encoding/binary"
	"testing"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/section"
)

func TestFDEForPC(t *testing.T) {
	frames := newFrameIndex()
	frames = append(frames,
		&FrameDescriptionEntry{begin: 10, size: 40},
		&FrameDescriptionEntry{begin: 50, size: 50},
		&FrameDescriptionEntry{begin: 100, size: 100},
		&FrameDescriptionEntry{begin: 300, size: 10})

	type arg struct {
		pc  uint64
		fde *FrameDescriptionEntry
	}

	args := []arg{
		{0, nil},
		{9, nil},
		{10, frames[0]},
		{35, frames[0]},
		{49, frames[0]},
		{50, frames[1]},
		{75, frames[1]},
		{100, frames[2]},
		{199, frames[2]},
		{200, nil},
		{299, nil},
		{300, frames[3]},
		{309, frames[3]},
		{310, nil},
		{400, nil},
	}

	for _, arg := range args {
		out, err := frames.FDEForPC(arg.pc)
		if arg.fde != nil {
			if err != nil {
				t.Fatal(err)
			}
			if out != arg.fde {
				t.Errorf("[pc = %#x] got incorrect fde\noutput:\t%#v\nexpected:\t%#v", arg.pc, out, arg.fde)
			}
		} else {
			if err == nil {
				t.Errorf("[pc = %#x] expected error got fde %#v", arg.pc, out)
			}
		}
	}
}

func TestParseCIEAndFDE(t *testing.T) {
	var buf []byte
	u32 := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		buf = append(buf, b[:]...)
	}
	u64 := func(v uint64) {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v)
		buf = append(buf, b[:]...)
	}

	// CIE: version 1, empty augmentation, code align 1, data align -4
	// (sleb 0x7c), return address register 16, no instructions.
	cieBody := []byte{1, 0, 1, 0x7c, 16}
	u32(uint32(4 + len(cieBody)))
	u32(0xffffffff)
	buf = append(buf, cieBody...)

	// FDE: CIE pointer 0, [0x1000, 0x1020), two instruction bytes.
	u32(4 + 16 + 2)
	u32(0)
	u64(0x1000)
	u64(0x20)
	buf = append(buf, 0xaa, 0xbb)

	sec := section.New(section.KindFrame, binary.LittleEndian, section.Format32, 8, buf)
	fdes, err := Parse(sec, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(fdes) != 1 {
		t.Fatalf("expected 1 FDE, got %d", len(fdes))
	}

	fde := fdes[0]
	if fde.Begin() != 0x1000 || fde.End() != 0x1020 {
		t.Errorf("bad FDE range [%#x, %#x)", fde.Begin(), fde.End())
	}
	if fde.CIE == nil || fde.CIE.DataAlignmentFactor != -4 || fde.CIE.ReturnAddressRegister != 16 {
		t.Errorf("bad CIE %#v", fde.CIE)
	}
	if len(fde.Instructions) != 2 {
		t.Errorf("expected 2 instruction bytes, got %d", len(fde.Instructions))
	}

	out, err := fdes.FDEForPC(0x1010)
	if err != nil {
		t.Fatal(err)
	}
	if out != fde {
		t.Errorf("FDEForPC returned wrong FDE")
	}

	if _, err := fdes.FDEForPC(0x2000); err == nil {
		t.Errorf("expected error for uncovered pc")
	}
}
