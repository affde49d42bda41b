package frame

import (
	"sort"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/section"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/util"
)

type parsefunc func(*parseContext) parsefunc

// parseContext carries the state threaded through the CIE/FDE parse
// state machine.
type parseContext struct {
	cur        *util.Cursor
	staticBase uint64

	entries FrameDescriptionEntries
	common  *CommonInformationEntry
	frame   *FrameDescriptionEntry
	length  uint64
	err     error
}

// Parse decodes a .debug_frame section into an FDE index, resolving
// FDE addresses against staticBase (the load bias of the mapped
// image). The address width comes from the section's metadata.
func Parse(sec section.Section, staticBase uint64) (FrameDescriptionEntries, error) {
	ctx := &parseContext{
		cur:        util.NewCursor(sec, 0),
		staticBase: staticBase,
		entries:    newFrameIndex(),
	}

	for fn := parselength; fn != nil; {
		fn = fn(ctx)
	}
	if ctx.err != nil {
		return nil, ctx.err
	}

	sort.Slice(ctx.entries, func(i, j int) bool {
		return ctx.entries[i].begin < ctx.entries[j].begin
	})
	return ctx.entries, nil
}

func (ctx *parseContext) fail(err error) parsefunc {
	ctx.err = err
	return nil
}

// sub slices the next ctx.length bytes as their own section view and
// advances past them.
func (ctx *parseContext) sub() (*util.Cursor, error) {
	start := ctx.cur.RelOffset()
	if err := ctx.cur.Skip(int(ctx.length)); err != nil {
		return nil, err
	}
	return util.NewCursor(ctx.cur.Section().Sub(start, int(ctx.length)), 0), nil
}

// parselength reads the length of the next CIE or FDE and decides
// which it is by the 4 bytes that follow: the CIE id marker for a CIE,
// a CIE pointer for an FDE.
func parselength(ctx *parseContext) parsefunc {
	if ctx.cur.Done() {
		return nil
	}

	length, err := ctx.cur.Uint32()
	if err != nil {
		return ctx.fail(err)
	}
	if length == 0 {
		// ZERO terminator
		return parselength
	}

	id, err := ctx.cur.Uint32()
	if err != nil {
		return ctx.fail(err)
	}
	ctx.length = uint64(length) - 4

	if id == 0xffffffff {
		ctx.common = &CommonInformationEntry{Length: ctx.length}
		return parseCIE
	}

	ctx.frame = &FrameDescriptionEntry{Length: ctx.length, CIE: ctx.common}
	return parseFDE
}

func parseCIE(ctx *parseContext) parsefunc {
	cur, err := ctx.sub()
	if err != nil {
		return ctx.fail(err)
	}

	if ctx.common.Version, err = cur.Uint8(); err != nil {
		return ctx.fail(err)
	}
	if ctx.common.Augmentation, err = cur.CString(); err != nil {
		return ctx.fail(err)
	}
	if ctx.common.CodeAlignmentFactor, err = cur.Uleb128(); err != nil {
		return ctx.fail(err)
	}
	if ctx.common.DataAlignmentFactor, err = cur.Sleb128(); err != nil {
		return ctx.fail(err)
	}
	if ctx.common.ReturnAddressRegister, err = cur.Uleb128(); err != nil {
		return ctx.fail(err)
	}

	// The rest of the entry is the initial instruction stream.
	ctx.common.InitialInstructions, err = cur.Bytes(cur.Len())
	if err != nil {
		return ctx.fail(err)
	}
	return parselength
}

func parseFDE(ctx *parseContext) parsefunc {
	cur, err := ctx.sub()
	if err != nil {
		return ctx.fail(err)
	}

	begin, err := cur.Address()
	if err != nil {
		return ctx.fail(err)
	}
	ctx.frame.begin = begin + ctx.staticBase

	if ctx.frame.size, err = cur.Address(); err != nil {
		return ctx.fail(err)
	}

	ctx.entries = append(ctx.entries, ctx.frame)

	ctx.frame.Instructions, err = cur.Bytes(cur.Len())
	if err != nil {
		return ctx.fail(err)
	}
	return parselength
}
