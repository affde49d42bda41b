// Package form implements the DWARF "form" dispatch layer: given a
// form code and a cursor, it either knows how to skip exactly one
// encoded value of that form, or hands back enough information for a
// caller (pkg/dwarf/value) to read it.
package form

import (
	"fmt"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/dwarferr"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/util"
)

// Form is a DWARF attribute encoding tag (DWARF5 section 7.5.6,
// Figure 20 and its DWARF5 indexed-form additions).
type Form uint16

const (
	Addr      Form = 0x01
	Block2    Form = 0x03
	Block4    Form = 0x04
	Data2     Form = 0x05
	Data4     Form = 0x06
	Data8     Form = 0x07
	String    Form = 0x08
	Block     Form = 0x09
	Block1    Form = 0x0a
	Data1     Form = 0x0b
	Flag      Form = 0x0c
	Sdata     Form = 0x0d
	Strp      Form = 0x0e
	Udata     Form = 0x0f
	RefAddr   Form = 0x10
	Ref1      Form = 0x11
	Ref2      Form = 0x12
	Ref4      Form = 0x13
	Ref8      Form = 0x14
	RefUdata  Form = 0x15
	Indirect  Form = 0x16
	SecOffset Form = 0x17
	Exprloc   Form = 0x18
	FlagPresent Form = 0x19
	Strx        Form = 0x1a
	Addrx       Form = 0x1b
	RefSup4     Form = 0x1c
	StrpSup     Form = 0x1d
	Data16      Form = 0x1e
	LineStrp    Form = 0x1f
	RefSig8     Form = 0x20
	ImplicitConst Form = 0x21
	Loclistx    Form = 0x22
	Rnglistx    Form = 0x23
	RefSup8     Form = 0x24
	Strx1       Form = 0x25
	Strx2       Form = 0x26
	Strx3       Form = 0x27
	Strx4       Form = 0x28
	Addrx1      Form = 0x29
	Addrx2      Form = 0x2a
	Addrx3      Form = 0x2b
	Addrx4      Form = 0x2c
)

var names = map[Form]string{
	Addr: "addr", Block2: "block2", Block4: "block4", Data2: "data2", Data4: "data4",
	Data8: "data8", String: "string", Block: "block", Block1: "block1", Data1: "data1",
	Flag: "flag", Sdata: "sdata", Strp: "strp", Udata: "udata", RefAddr: "ref_addr",
	Ref1: "ref1", Ref2: "ref2", Ref4: "ref4", Ref8: "ref8", RefUdata: "ref_udata",
	Indirect: "indirect", SecOffset: "sec_offset", Exprloc: "exprloc",
	FlagPresent: "flag_present", Strx: "strx", Addrx: "addrx", Data16: "data16",
	LineStrp: "line_strp", RefSig8: "ref_sig8", ImplicitConst: "implicit_const",
	Loclistx: "loclistx", Rnglistx: "rnglistx", Strx1: "strx1", Strx2: "strx2",
	Strx3: "strx3", Strx4: "strx4", Addrx1: "addrx1", Addrx2: "addrx2",
	Addrx3: "addrx3", Addrx4: "addrx4",
}

func (f Form) String() string {
	if s, ok := names[f]; ok {
		return s
	}
	return fmt.Sprintf("DW_FORM_%#x", uint16(f))
}

// IsAddressIndex reports whether f is one of the DWARF5 addrx* forms
// that index into .debug_addr rather than encoding an address inline.
func (f Form) IsAddressIndex() bool {
	switch f {
	case Addrx, Addrx1, Addrx2, Addrx3, Addrx4:
		return true
	}
	return false
}

// IsStringIndex reports whether f is one of the DWARF5 strx* forms
// that index into .debug_str_offsets.
func (f Form) IsStringIndex() bool {
	switch f {
	case Strx, Strx1, Strx2, Strx3, Strx4:
		return true
	}
	return false
}

// Skip advances cur past exactly one value encoded with form f. For
// length-prefixed forms it reads the prefix first. indirect reads the
// inner form code and recurses; repeated indirect chains are followed
// rather than rejected, matching the value package's own resolution
// loop.
func Skip(cur *util.Cursor, f Form) error {
	switch f {
	case Addr:
		_, err := cur.Address()
		return err
	case Block1:
		n, err := cur.Uint8()
		if err != nil {
			return err
		}
		return cur.Skip(int(n))
	case Block2:
		n, err := cur.Uint16()
		if err != nil {
			return err
		}
		return cur.Skip(int(n))
	case Block4:
		n, err := cur.Uint32()
		if err != nil {
			return err
		}
		return cur.Skip(int(n))
	case Block, Exprloc:
		n, err := cur.Uleb128()
		if err != nil {
			return err
		}
		return cur.Skip(int(n))
	case Data1, Ref1, Strx1, Addrx1, Flag:
		return cur.Skip(1)
	case Data2, Ref2, Strx2, Addrx2:
		return cur.Skip(2)
	case Strx3, Addrx3:
		return cur.Skip(3)
	case Data4, Ref4, Strx4, Addrx4, RefSup4:
		return cur.Skip(4)
	case Data8, Ref8, RefSig8, RefSup8:
		return cur.Skip(8)
	case Data16:
		return cur.Skip(16)
	case String:
		_, err := cur.CStringBytes()
		return err
	case Strp, LineStrp, SecOffset, RefAddr, StrpSup:
		return cur.Skip(cur.Section().Format.OffsetSize())
	case Udata, RefUdata, Strx, Addrx, Loclistx, Rnglistx:
		_, err := cur.Uleb128()
		return err
	case Sdata:
		_, err := cur.Sleb128()
		return err
	case FlagPresent, ImplicitConst:
		return nil
	case Indirect:
		inner, err := cur.Uleb128()
		if err != nil {
			return err
		}
		return Skip(cur, Form(inner))
	default:
		return dwarferr.NewFormat(string(cur.Section().Kind), cur.Offset(), "unsupported form %s", f)
	}
}
