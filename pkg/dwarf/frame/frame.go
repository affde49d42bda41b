// Package frame decodes .debug_frame call frame information: the
// CIE/FDE entry stream that maps program counters to unwind rules. It
// is a sibling DWARF subsystem to the line/rangelist/value decoders
// and shares their section and cursor primitives.
package frame

import (
	"sort"
)

// CommonInformationEntry is a CIE: defaults shared by the FDEs that
// point at it.
type CommonInformationEntry struct {
	Length                uint64
	Version               uint8
	Augmentation          string
	CodeAlignmentFactor   uint64
	DataAlignmentFactor   int64
	ReturnAddressRegister uint64
	InitialInstructions   []byte
}

// FrameDescriptionEntry is an FDE: one function's worth of unwind
// instructions covering [begin, begin+size).
type FrameDescriptionEntry struct {
	Length       uint64
	CIE          *CommonInformationEntry
	Instructions []byte

	begin, size uint64
}

// Cover reports whether addr falls inside this FDE's address range.
func (fde *FrameDescriptionEntry) Cover(addr uint64) bool {
	return fde.begin <= addr && addr < fde.begin+fde.size
}

// Begin returns the first address covered by this FDE.
func (fde *FrameDescriptionEntry) Begin() uint64 {
	return fde.begin
}

// End returns the address one past the last covered by this FDE.
func (fde *FrameDescriptionEntry) End() uint64 {
	return fde.begin + fde.size
}

// FrameDescriptionEntries is the FDE index built by Parse, sorted by
// begin address so FDEForPC can binary search.
type FrameDescriptionEntries []*FrameDescriptionEntry

func newFrameIndex() FrameDescriptionEntries {
	return make(FrameDescriptionEntries, 0, 1000)
}

// FDEForPC returns the FDE covering pc.
func (fdes FrameDescriptionEntries) FDEForPC(pc uint64) (*FrameDescriptionEntry, error) {
	idx := sort.Search(len(fdes), func(i int) bool {
		return fdes[i].Cover(pc) || fdes[i].begin >= pc
	})
	if idx == len(fdes) || !fdes[idx].Cover(pc) {
		err := &NoFDEError{PC: pc}
		if len(fdes) > 0 {
			err.Lo = fdes[0].Begin()
			err.Hi = fdes[len(fdes)-1].End()
		}
		return nil, err
	}
	return fdes[idx], nil
}
