// Package unit defines the contracts the decoder core expects its
// collaborators to provide: the section provider, the
// compilation-unit index, and the type-unit index. The decoder core
// depends only on these interfaces and on the small CompilationUnit
// struct below, which is data the core needs to track (address size,
// DWARF format, low_pc, comp_dir), not behavior it implements.
package unit

import "github.com/hitzhangjie/godwarf/pkg/dwarf/section"

// SectionProvider maps a section kind to the section view holding it.
// pkg/objfile is the concrete implementation used by the CLI.
type SectionProvider interface {
	Section(kind section.Kind) (section.Section, error)
}

// CompilationUnit carries the per-unit state the value, range-list and
// line-table decoders all need: its address size and DWARF offset
// format (which can differ from unit to unit in the same file), its
// section-relative start offset, and the handful of root-DIE
// attributes (low_pc, comp_dir, name) the decoders read directly
// instead of walking the DIE tree for them.
type CompilationUnit struct {
	// Offset is this unit's header's absolute offset in .debug_info
	// (or .debug_types for a type unit).
	Offset   uint64
	Version  int
	AddrSize int
	Format   section.Format

	LowPC    uint64
	HasLowPC bool

	CompDir string
	Name    string

	// StrOffsetsBase/AddrBase are the DW_AT_str_offsets_base/DW_AT_addr_base
	// values from the unit's root DIE, when present. Decoders prefer
	// these over the fixed header-size default when a caller has
	// populated them.
	StrOffsetsBase    uint64
	HasStrOffsetsBase bool
	AddrBase          uint64
	HasAddrBase       bool

	Provider SectionProvider

	// Index and TypeIndex back Value.AsReference's ref_addr/ref_sig8
	// cross-unit lookups. Both are nil for a unit decoded in
	// isolation; AsReference then fails with a format error on those
	// two forms specifically.
	Index     Index
	TypeIndex TypeUnitIndex
}

// SectionOffset returns this unit's absolute offset, used by
// Value.GetSectionOffset and by ref_addr resolution.
func (u *CompilationUnit) SectionOffset() uint64 {
	if u == nil {
		return 0
	}
	return u.Offset
}

// DIE is a minimal handle identifying a Debug Information Entry:
// which unit it belongs to and its unit-relative offset. Materialising
// the entry's tag and attributes is the DIE directory's job; this
// handle is exactly what reference-valued attributes need to hand back
// without decoding further.
type DIE struct {
	Unit   *CompilationUnit
	Offset uint64
}

// SectionOffset returns the DIE's absolute offset within its unit's section.
func (d DIE) SectionOffset() uint64 {
	return d.Unit.SectionOffset() + d.Offset
}

// Index enumerates compilation units in section-offset order, so
// Value.AsReference's ref_addr case can search for the unit whose
// start is the greatest offset <= target.
type Index interface {
	CompilationUnits() []*CompilationUnit
}

// TypeUnitIndex looks up a type unit's root DIE by its 8-byte type
// signature, for ref_sig8 references.
type TypeUnitIndex interface {
	TypeUnitBySignature(sig uint64) (DIE, bool)
}
