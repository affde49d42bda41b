// Package value implements the attribute-value accessor layer: given a
// form tag and a cursor position, it knows how to read the typed value
// a DWARF attribute actually encodes. Each As* accessor is a switch on
// the form tag, including the DWARF5 indexed forms that chase through
// .debug_addr and .debug_str_offsets.
package value

import (
	"fmt"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/dwarferr"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/form"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/rangelist"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/section"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/unit"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/util"
)

// Type is a value's semantic class, independent of its on-disk form:
// the accessor family that can legally read it.
type Type int

const (
	TypeUnknown Type = iota
	TypeAddress
	TypeConstant
	TypeFlag
	TypeBlock
	TypeString
	TypeReference
	TypeSecOffset
	TypeExprloc
	TypeRangelist
)

func (t Type) String() string {
	switch t {
	case TypeAddress:
		return "address"
	case TypeConstant:
		return "constant"
	case TypeFlag:
		return "flag"
	case TypeBlock:
		return "block"
	case TypeString:
		return "string"
	case TypeReference:
		return "reference"
	case TypeSecOffset:
		return "sec_offset"
	case TypeExprloc:
		return "exprloc"
	case TypeRangelist:
		return "rangelist"
	}
	return "unknown"
}

// classify maps a form to the accessor family that can read it, for
// Value.Type and for building type-mismatch error text.
func classify(f form.Form) Type {
	switch f {
	case form.Addr, form.Addrx, form.Addrx1, form.Addrx2, form.Addrx3, form.Addrx4:
		return TypeAddress
	case form.Data1, form.Data2, form.Data4, form.Data8, form.Udata, form.Sdata, form.ImplicitConst:
		return TypeConstant
	case form.Flag, form.FlagPresent:
		return TypeFlag
	case form.Block, form.Block1, form.Block2, form.Block4:
		return TypeBlock
	case form.String, form.Strp, form.LineStrp, form.Strx, form.Strx1, form.Strx2, form.Strx3, form.Strx4:
		return TypeString
	case form.Ref1, form.Ref2, form.Ref4, form.Ref8, form.RefUdata, form.RefAddr, form.RefSig8:
		return TypeReference
	case form.SecOffset:
		return TypeSecOffset
	case form.Exprloc:
		return TypeExprloc
	case form.Rnglistx:
		return TypeRangelist
	}
	return TypeUnknown
}

// Value is a single attribute value viewed through its form: a borrow
// of the section it's encoded in, a payload offset, the form tag, and
// the compilation unit it belongs to (needed for .debug_addr/.debug_str
// lookups and cross-unit reference resolution).
type Value struct {
	unit *unit.CompilationUnit
	sec  section.Section
	rel  int
	form form.Form

	implicitConst int64
}

// New builds a value at the given byte offset (relative to sec) with
// the declared form f. implicitConst is only meaningful when f is
// DW_FORM_implicit_const; it is the constant carried in the
// abbreviation table rather than in the payload.
//
// If f is indirect, New chases the embedded form chain immediately,
// so every other method only ever sees a resolved, concrete form.
func New(u *unit.CompilationUnit, sec section.Section, f form.Form, relOffset int, implicitConst int64) (*Value, error) {
	v := &Value{unit: u, sec: sec, rel: relOffset, form: f, implicitConst: implicitConst}
	if f == form.Indirect {
		if err := v.resolveIndirect(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (v *Value) resolveIndirect() error {
	cur := v.cursor()
	for v.form == form.Indirect {
		code, err := cur.Uleb128()
		if err != nil {
			return err
		}
		v.form = form.Form(code)
	}
	v.rel = cur.RelOffset()
	return nil
}

func (v *Value) cursor() *util.Cursor {
	return util.NewCursor(v.sec, v.rel)
}

// Form returns the value's (post-indirect-resolution) form tag.
func (v *Value) Form() form.Form {
	return v.form
}

// Type returns the value's semantic class.
func (v *Value) Type() Type {
	return classify(v.form)
}

// GetSectionOffset returns the absolute offset of the value's payload
// within its section.
func (v *Value) GetSectionOffset() uint64 {
	return v.sec.Base() + uint64(v.rel)
}

func (v *Value) typeMismatch(requested string) error {
	return dwarferr.NewTypeMismatch(requested, v.Type().String())
}

func (v *Value) sectionFor(kind section.Kind) (section.Section, error) {
	if v.unit == nil || v.unit.Provider == nil {
		return section.Section{}, dwarferr.NewFormat(string(kind), v.GetSectionOffset(),
			"value has no section provider bound to its compilation unit")
	}
	return v.unit.Provider.Section(kind)
}

func (v *Value) lowPC() uint64 {
	if v.unit != nil && v.unit.HasLowPC {
		return v.unit.LowPC
	}
	return 0
}

// AsAddress reads an address-valued attribute: addr, or one of the
// DWARF5 addrx* indexed forms, resolved through .debug_addr.
func (v *Value) AsAddress() (uint64, error) {
	cur := v.cursor()
	switch v.form {
	case form.Addr:
		return cur.Address()
	case form.Addrx, form.Addrx1, form.Addrx2, form.Addrx3, form.Addrx4:
		idx, err := readIndex(cur, v.form)
		if err != nil {
			return 0, err
		}
		return v.lookupAddr(idx)
	}
	return 0, v.typeMismatch("address")
}

func (v *Value) lookupAddr(idx uint64) (uint64, error) {
	sec, err := v.sectionFor(section.KindAddr)
	if err != nil {
		return 0, err
	}
	headerSize := uint64(8)
	if v.unit.HasAddrBase {
		headerSize = v.unit.AddrBase
	}
	pos := headerSize + idx*uint64(v.unit.AddrSize)
	cur := util.NewCursor(sec, int(pos))
	return cur.UintN(v.unit.AddrSize)
}

// readIndex reads the index operand of one of the addrx*/strx* forms:
// ULEB128 for the bare addrx/strx form, or a little-endian fixed-width
// integer of 1, 2, 3, or 4 bytes for the sized variants. addrx3/strx3
// is two bytes shifted by 8 plus one low byte, i.e. plain 3-byte
// little-endian.
func readIndex(cur *util.Cursor, f form.Form) (uint64, error) {
	switch f {
	case form.Addrx, form.Strx, form.Rnglistx, form.Loclistx:
		return cur.Uleb128()
	case form.Addrx1, form.Strx1:
		b, err := cur.Uint8()
		return uint64(b), err
	case form.Addrx2, form.Strx2:
		b, err := cur.Uint16()
		return uint64(b), err
	case form.Addrx3, form.Strx3:
		return readUint3(cur)
	case form.Addrx4, form.Strx4:
		b, err := cur.Uint32()
		return uint64(b), err
	}
	return 0, fmt.Errorf("dwarf: %s is not an indexed form", f)
}

func readUint3(cur *util.Cursor) (uint64, error) {
	b, err := cur.Bytes(3)
	if err != nil {
		return 0, err
	}
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16, nil
}

// AsUconstant reads an unsigned-constant-valued attribute.
// Sign-extension is the accessor's choice, not the form's: a data4
// read here is zero-extended even though AsSconstant would sign-extend
// the same bytes.
func (v *Value) AsUconstant() (uint64, error) {
	cur := v.cursor()
	switch v.form {
	case form.Data1:
		b, err := cur.Uint8()
		return uint64(b), err
	case form.Data2:
		b, err := cur.Uint16()
		return uint64(b), err
	case form.Data4:
		b, err := cur.Uint32()
		return uint64(b), err
	case form.Data8:
		return cur.Uint64()
	case form.Udata:
		return cur.Uleb128()
	case form.ImplicitConst:
		return uint64(v.implicitConst), nil
	}
	return 0, v.typeMismatch("unsigned constant")
}

// AsSconstant reads a signed-constant-valued attribute.
func (v *Value) AsSconstant() (int64, error) {
	cur := v.cursor()
	switch v.form {
	case form.Data1:
		b, err := cur.Uint8()
		return int64(int8(b)), err
	case form.Data2:
		b, err := cur.Uint16()
		return int64(int16(b)), err
	case form.Data4:
		b, err := cur.Uint32()
		return int64(int32(b)), err
	case form.Data8:
		b, err := cur.Uint64()
		return int64(b), err
	case form.Sdata:
		return cur.Sleb128()
	case form.Udata:
		b, err := cur.Uleb128()
		return int64(b), err
	case form.ImplicitConst:
		return v.implicitConst, nil
	}
	return 0, v.typeMismatch("signed constant")
}

// AsFlag reads a boolean-valued attribute. flag_present never touches
// the section: its mere presence in the abbreviation means true.
func (v *Value) AsFlag() (bool, error) {
	switch v.form {
	case form.FlagPresent:
		return true, nil
	case form.Flag:
		b, err := v.cursor().Uint8()
		return b != 0, err
	}
	return false, v.typeMismatch("flag")
}

// AsBlock reads a block-valued attribute as a zero-copy slice into the
// owning section.
func (v *Value) AsBlock() ([]byte, error) {
	cur := v.cursor()
	var n int
	switch v.form {
	case form.Block1:
		b, err := cur.Uint8()
		if err != nil {
			return nil, err
		}
		n = int(b)
	case form.Block2:
		b, err := cur.Uint16()
		if err != nil {
			return nil, err
		}
		n = int(b)
	case form.Block4:
		b, err := cur.Uint32()
		if err != nil {
			return nil, err
		}
		n = int(b)
	case form.Block:
		b, err := cur.Uleb128()
		if err != nil {
			return nil, err
		}
		n = int(b)
	default:
		return nil, v.typeMismatch("block")
	}
	return cur.Bytes(n)
}

// AsString reads a string-valued attribute: in-place for string,
// indirect through .debug_str/.debug_line_str for strp/line_strp, or
// through .debug_str_offsets then .debug_str for the strx* forms.
func (v *Value) AsString() (string, error) {
	cur := v.cursor()
	switch v.form {
	case form.String:
		return cur.CString()
	case form.Strp:
		return v.lookupStrp(cur, section.KindStr)
	case form.LineStrp:
		return v.lookupStrp(cur, section.KindLineStr)
	case form.Strx, form.Strx1, form.Strx2, form.Strx3, form.Strx4:
		idx, err := readIndex(cur, v.form)
		if err != nil {
			return "", err
		}
		return v.lookupStrx(idx)
	}
	return "", v.typeMismatch("string")
}

func (v *Value) lookupStrp(cur *util.Cursor, kind section.Kind) (string, error) {
	off, err := cur.SecOffset()
	if err != nil {
		return "", err
	}
	sec, err := v.sectionFor(kind)
	if err != nil {
		return "", err
	}
	return util.NewCursor(sec, int(off)).CString()
}

func (v *Value) lookupStrx(idx uint64) (string, error) {
	offSec, err := v.sectionFor(section.KindStrOffsets)
	if err != nil {
		return "", err
	}
	headerSize := uint64(8)
	if offSec.Format == section.Format64 {
		headerSize = 16
	}
	if v.unit.HasStrOffsetsBase {
		headerSize = v.unit.StrOffsetsBase
	}
	offsetSize := offSec.Format.OffsetSize()
	pos := headerSize + idx*uint64(offsetSize)
	off, err := util.NewCursor(offSec, int(pos)).UintN(offsetSize)
	if err != nil {
		return "", err
	}
	strSec, err := v.sectionFor(section.KindStr)
	if err != nil {
		return "", err
	}
	return util.NewCursor(strSec, int(off)).CString()
}

// AsReference reads a DIE-reference-valued attribute and returns a
// handle to the referenced DIE. ref1/2/4/8/_udata are unit-relative;
// ref_addr is section-relative and requires a compilation-unit index
// to resolve; ref_sig8 requires a type-unit index.
func (v *Value) AsReference() (unit.DIE, error) {
	cur := v.cursor()
	switch v.form {
	case form.Ref1:
		o, err := cur.Uint8()
		return unit.DIE{Unit: v.unit, Offset: uint64(o)}, err
	case form.Ref2:
		o, err := cur.Uint16()
		return unit.DIE{Unit: v.unit, Offset: uint64(o)}, err
	case form.Ref4:
		o, err := cur.Uint32()
		return unit.DIE{Unit: v.unit, Offset: uint64(o)}, err
	case form.Ref8:
		o, err := cur.Uint64()
		return unit.DIE{Unit: v.unit, Offset: o}, err
	case form.RefUdata:
		o, err := cur.Uleb128()
		return unit.DIE{Unit: v.unit, Offset: o}, err
	case form.RefAddr:
		off, err := cur.SecOffset()
		if err != nil {
			return unit.DIE{}, err
		}
		return v.resolveRefAddr(off)
	case form.RefSig8:
		sig, err := cur.Uint64()
		if err != nil {
			return unit.DIE{}, err
		}
		return v.resolveRefSig8(sig)
	}
	return unit.DIE{}, v.typeMismatch("reference")
}

func (v *Value) resolveRefAddr(off uint64) (unit.DIE, error) {
	if v.unit == nil || v.unit.Index == nil {
		return unit.DIE{}, dwarferr.NewFormat(string(v.sec.Kind), off,
			"ref_addr %#x: no compilation-unit index bound", off)
	}
	var best *unit.CompilationUnit
	for _, u := range v.unit.Index.CompilationUnits() {
		if u.Offset <= off && (best == nil || u.Offset > best.Offset) {
			best = u
		}
	}
	if best == nil {
		return unit.DIE{}, dwarferr.NewFormat(string(v.sec.Kind), off,
			"ref_addr %#x has no covering compilation unit", off)
	}
	return unit.DIE{Unit: best, Offset: off - best.Offset}, nil
}

func (v *Value) resolveRefSig8(sig uint64) (unit.DIE, error) {
	if v.unit == nil || v.unit.TypeIndex == nil {
		return unit.DIE{}, dwarferr.NewFormat(string(v.sec.Kind), v.GetSectionOffset(),
			"ref_sig8 %#x: no type-unit index bound", sig)
	}
	die, ok := v.unit.TypeIndex.TypeUnitBySignature(sig)
	if !ok {
		return unit.DIE{}, dwarferr.NewFormat(string(v.sec.Kind), v.GetSectionOffset(),
			"ref_sig8 %#x: no matching type unit", sig)
	}
	return die, nil
}

// AsSecOffset reads a section-offset-valued attribute: sec_offset
// natively, or data4/data8 for pre-DWARF4 producers that predate the
// dedicated form.
func (v *Value) AsSecOffset() (uint64, error) {
	cur := v.cursor()
	switch v.form {
	case form.SecOffset:
		return cur.SecOffset()
	case form.Data4:
		b, err := cur.Uint32()
		return uint64(b), err
	case form.Data8:
		return cur.Uint64()
	}
	return 0, v.typeMismatch("section offset")
}

// Expr is an opaque handle to a DWARF expression: which unit it
// belongs to, where its bytes start, and how many there are.
// Evaluating the expression is the location-expression interpreter's
// job, not this package's.
type Expr struct {
	Unit   *unit.CompilationUnit
	Offset uint64
	Size   int
}

// AsExprloc reads an expression-valued attribute without evaluating it.
func (v *Value) AsExprloc() (Expr, error) {
	if v.form != form.Exprloc {
		return Expr{}, v.typeMismatch("exprloc")
	}
	cur := v.cursor()
	n, err := cur.Uleb128()
	if err != nil {
		return Expr{}, err
	}
	off := cur.Offset()
	if _, err := cur.Bytes(int(n)); err != nil {
		return Expr{}, err
	}
	return Expr{Unit: v.unit, Offset: off, Size: int(n)}, nil
}

// AsRangelist reads a range-list-valued attribute: a section offset
// into the pre-v5 .debug_ranges for the legacy forms, or an index
// resolved through a .debug_rnglists header for rnglistx.
func (v *Value) AsRangelist() (rangelist.List, error) {
	cur := v.cursor()
	switch v.form {
	case form.SecOffset, form.Data4, form.Data8:
		off, err := v.AsSecOffset()
		if err != nil {
			return rangelist.List{}, err
		}
		sec, err := v.sectionFor(section.KindRanges)
		if err != nil {
			return rangelist.List{}, err
		}
		return rangelist.New(sec, int(off), v.unit.AddrSize, v.lowPC(), rangelist.PreV5), nil
	case form.Rnglistx:
		idx, err := cur.Uleb128()
		if err != nil {
			return rangelist.List{}, err
		}
		return v.rnglistFromIndex(idx)
	}
	return rangelist.List{}, v.typeMismatch("range list")
}

// rnglistFromIndex parses the .debug_rnglists header, detecting the
// 32-/64-bit DWARF format via the initial-length sentinel, to locate
// entry idx's offset, then builds a v5 iterator at
// header_end + offsets_table_size + offset.
func (v *Value) rnglistFromIndex(idx uint64) (rangelist.List, error) {
	sec, err := v.sectionFor(section.KindRngLists)
	if err != nil {
		return rangelist.List{}, err
	}
	cur := util.NewCursor(sec, 0)
	if _, format, err := cur.ReadInitialLength(); err != nil {
		return rangelist.List{}, err
	} else {
		sec = sec.WithFormat(format)
	}
	if _, err := cur.Uint16(); err != nil { // version
		return rangelist.List{}, err
	}
	addrSize, err := cur.Uint8()
	if err != nil {
		return rangelist.List{}, err
	}
	if _, err := cur.Uint8(); err != nil { // segment_selector_size
		return rangelist.List{}, err
	}
	count, err := cur.Uint32()
	if err != nil {
		return rangelist.List{}, err
	}
	if idx >= uint64(count) {
		return rangelist.List{}, dwarferr.NewFormat(string(sec.Kind), v.GetSectionOffset(),
			"rnglistx index %d out of range (offset_entry_count=%d)", idx, count)
	}
	headerEnd := cur.RelOffset()
	offsetSize := sec.Format.OffsetSize()

	entryCur := util.NewCursor(sec, headerEnd+int(idx)*offsetSize)
	entryOff, err := entryCur.UintN(offsetSize)
	if err != nil {
		return rangelist.List{}, err
	}
	tableSize := int(count) * offsetSize
	listOffset := headerEnd + tableSize + int(entryOff)

	listSec := sec
	listSec.AddrSize = int(addrSize)
	return rangelist.New(listSec, listOffset, int(addrSize), v.lowPC(), rangelist.V5), nil
}

// String renders a human-readable form of the value for diagnostic
// output. It does not error: any accessor failure is rendered inline
// rather than propagated, since this is a best-effort debug rendering,
// not a decode path.
func (v *Value) String() string {
	switch v.Type() {
	case TypeAddress:
		if a, err := v.AsAddress(); err == nil {
			return fmt.Sprintf("%#x", a)
		}
	case TypeConstant:
		if u, err := v.AsUconstant(); err == nil {
			return fmt.Sprintf("%d", u)
		}
	case TypeFlag:
		if f, err := v.AsFlag(); err == nil {
			return fmt.Sprintf("%t", f)
		}
	case TypeBlock:
		if b, err := v.AsBlock(); err == nil {
			return fmt.Sprintf("<%d bytes>", len(b))
		}
	case TypeString:
		if s, err := v.AsString(); err == nil {
			return fmt.Sprintf("%q", s)
		}
	case TypeReference:
		if d, err := v.AsReference(); err == nil {
			return fmt.Sprintf("<0x%x>", d.SectionOffset())
		}
	case TypeSecOffset:
		if o, err := v.AsSecOffset(); err == nil {
			return fmt.Sprintf("%#x", o)
		}
	case TypeExprloc:
		if e, err := v.AsExprloc(); err == nil {
			return fmt.Sprintf("<exprloc, %d bytes>", e.Size)
		}
	case TypeRangelist:
		return "<rangelist>"
	}
	return fmt.Sprintf("<unreadable %s>", v.form)
}
