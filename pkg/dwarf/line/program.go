package line

import (
	"fmt"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/dwarferr"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/util"
)

// Row is one emitted row of the reconstructed line table: the state
// machine's registers at a copy, special-opcode or end_sequence event,
// with the file index resolved against the table's file-name list.
type Row struct {
	Address       uint64
	OpIndex       uint64
	File          *File
	FileIndex     uint64
	Line          int64
	Column        uint64
	IsStmt        bool
	BasicBlock    bool
	EndSequence   bool
	PrologueEnd   bool
	EpilogueBegin bool
	ISA           uint64
	Discriminator uint64
}

// Description renders "path:line:column" for the row, dropping the
// trailing parts that are zero.
func (r Row) Description() string {
	res := ""
	if r.File != nil {
		res = r.File.Path
	}
	if r.Line != 0 {
		res += fmt.Sprintf(":%d", r.Line)
		if r.Column != 0 {
			res += fmt.Sprintf(":%d", r.Column)
		}
	}
	return res
}

// registers is the line-number state machine's register file
// (DWARF4 section 6.2.2).
type registers struct {
	address       uint64
	opIndex       uint64
	fileIndex     uint64
	line          int64
	column        uint64
	isStmt        bool
	basicBlock    bool
	endSequence   bool
	prologueEnd   bool
	epilogueBegin bool
	isa           uint64
	discriminator uint64
}

func (r *registers) reset(isStmt bool, fileIndexBase uint64) {
	*r = registers{
		fileIndex: fileIndexBase,
		line:      1,
		isStmt:    isStmt,
	}
}

func (r *registers) row() Row {
	return Row{
		Address:       r.address,
		OpIndex:       r.opIndex,
		FileIndex:     r.fileIndex,
		Line:          r.line,
		Column:        r.column,
		IsStmt:        r.isStmt,
		BasicBlock:    r.basicBlock,
		EndSequence:   r.endSequence,
		PrologueEnd:   r.prologueEnd,
		EpilogueBegin: r.epilogueBegin,
		ISA:           r.isa,
		Discriminator: r.discriminator,
	}
}

// Iterator walks a line table's program, emitting one Row per
// copy/special/end_sequence event. An Iterator mutates its table's
// file-name accumulator when it encounters define_file opcodes; run
// one iterator at a time per table, or give each its own Table.
type Iterator struct {
	t    *Table
	pos  int
	regs registers
	row  Row
	done bool
	err  error
}

// Begin returns a fresh iterator positioned at the start of the
// table's program, with the registers in their header-defined initial
// state.
func (t *Table) Begin() *Iterator {
	it := &Iterator{t: t, pos: t.programOffset}
	it.regs.reset(t.defaultIsStmt, t.fileIndexBase)
	return it
}

// Row returns the row produced by the most recent Next that returned true.
func (it *Iterator) Row() Row {
	return it.row
}

// Err returns the decode error that stopped iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Next executes program instructions until one emits a row. It returns
// false when the program is exhausted or decoding failed (check Err).
// Rows already emitted stay valid: a failure aborts the traversal but
// does not undo partial progress.
func (it *Iterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	cur := util.NewCursor(it.t.sec, it.pos)

	stepped, output := false, false
	for !cur.Done() && !output {
		emitted, err := it.step(cur)
		if err != nil {
			return it.fail(err)
		}
		stepped = true
		output = emitted
	}
	if stepped && !output {
		return it.fail(dwarferr.NewFormat(string(it.t.sec.Kind), cur.Offset(),
			"unexpected end of line table"))
	}
	if stepped && cur.Done() {
		// The whole program has run: every define_file has been seen,
		// so the file-name list is known complete.
		it.t.fileNamesComplete.Store(true)
	}
	it.pos = cur.RelOffset()
	if !output {
		it.done = true
		return false
	}

	if it.row.FileIndex < uint64(len(it.t.fileNames)) {
		it.row.File = it.t.fileNames[it.row.FileIndex]
	} else {
		return it.fail(dwarferr.NewFormat(string(it.t.sec.Kind), cur.Offset(),
			"bad file index %d in line table", it.row.FileIndex))
	}
	return true
}

func (it *Iterator) fail(err error) bool {
	it.err = err
	it.done = true
	return false
}

// advance applies the shared address/op_index update of advance_pc,
// const_add_pc and the special opcodes (DWARF4 section 6.2.5.1).
func (it *Iterator) advance(opAdvance uint64) {
	t := it.t
	it.regs.address += t.minInstLen * ((it.regs.opIndex + opAdvance) / t.maxOps)
	it.regs.opIndex = (it.regs.opIndex + opAdvance) % t.maxOps
}

// clearTransients resets the flags that only apply to the row just
// emitted.
func (it *Iterator) clearTransients() {
	it.regs.basicBlock = false
	it.regs.prologueEnd = false
	it.regs.epilogueBegin = false
	it.regs.discriminator = 0
}

// step executes exactly one instruction at the cursor and reports
// whether it emitted a row (left in it.row).
func (it *Iterator) step(cur *util.Cursor) (bool, error) {
	t := it.t

	opcode, err := cur.Uint8()
	if err != nil {
		return false, err
	}

	if uint64(opcode) >= t.opcodeBase {
		// Special opcode: a combined op advance, line delta and emit.
		adjusted := uint64(opcode) - t.opcodeBase
		opAdvance := adjusted / t.lineRange
		lineInc := t.lineBase + int64(adjusted%t.lineRange)

		it.regs.line += lineInc
		it.advance(opAdvance)
		it.row = it.regs.row()
		it.clearTransients()
		return true, nil
	}

	if opcode != 0 {
		switch opcode {
		case lnsCopy:
			it.row = it.regs.row()
			it.clearTransients()
			return true, nil
		case lnsAdvancePC:
			arg, err := cur.Uleb128()
			if err != nil {
				return false, err
			}
			it.advance(arg)
		case lnsAdvanceLine:
			arg, err := cur.Sleb128()
			if err != nil {
				return false, err
			}
			it.regs.line += arg
		case lnsSetFile:
			arg, err := cur.Uleb128()
			if err != nil {
				return false, err
			}
			it.regs.fileIndex = arg
		case lnsSetColumn:
			arg, err := cur.Uleb128()
			if err != nil {
				return false, err
			}
			it.regs.column = arg
		case lnsNegateStmt:
			it.regs.isStmt = !it.regs.isStmt
		case lnsSetBasicBlock:
			it.regs.basicBlock = true
		case lnsConstAddPC:
			it.advance((255 - t.opcodeBase) / t.lineRange)
		case lnsFixedAdvancePC:
			arg, err := cur.Uint16()
			if err != nil {
				return false, err
			}
			it.regs.address += uint64(arg)
			it.regs.opIndex = 0
		case lnsSetPrologueEnd:
			it.regs.prologueEnd = true
		case lnsSetEpilogueBegin:
			it.regs.epilogueBegin = true
		case lnsSetISA:
			arg, err := cur.Uleb128()
			if err != nil {
				return false, err
			}
			it.regs.isa = arg
		default:
			// Vendor-specific standard opcode: its operand count is
			// unknown, so the stream cannot be advanced safely.
			return false, dwarferr.NewFormat(string(t.sec.Kind), cur.Offset(),
				"unknown line number opcode %d", opcode)
		}
		return false, nil
	}

	// Extended opcode: a length-prefixed sub-instruction.
	length, err := cur.Uleb128()
	if err != nil {
		return false, err
	}
	end := cur.RelOffset() + int(length)
	sub, err := cur.Uint8()
	if err != nil {
		return false, err
	}

	emitted := false
	switch {
	case sub == lneEndSequence:
		it.regs.endSequence = true
		it.row = it.regs.row()
		it.regs.reset(t.defaultIsStmt, t.fileIndexBase)
		emitted = true
	case sub == lneSetAddress:
		addr, err := cur.Address()
		if err != nil {
			return false, err
		}
		it.regs.address = addr
		it.regs.opIndex = 0
	case sub == lneDefineFile:
		if _, err := t.readFileEntry(cur, false); err != nil {
			return false, err
		}
	case sub == lneSetDiscriminator:
		arg, err := cur.Uleb128()
		if err != nil {
			return false, err
		}
		it.regs.discriminator = arg
	case sub >= lneLoUser && sub <= lneHiUser:
		// The operand layout of a vendor opcode is unknown without
		// vendor documentation, so surface that instead of guessing.
		return false, &dwarferr.NotImplementedError{
			What: fmt.Sprintf("vendor line number opcode %#x", sub),
		}
	default:
		return false, dwarferr.NewFormat(string(t.sec.Kind), cur.Offset(),
			"unknown extended line number opcode %d", sub)
	}

	if cur.RelOffset() > end {
		return false, dwarferr.NewFormat(string(t.sec.Kind), cur.Offset(),
			"extended line number opcode exceeded its size")
	}
	cur.Seek(end)
	return emitted, nil
}

// FindAddress walks the table's rows and returns the row covering
// addr: the row prev with prev.Address <= addr < next.Address and
// prev.EndSequence false. The second return is false when no row
// covers addr.
func (t *Table) FindAddress(addr uint64) (Row, bool, error) {
	it := t.Begin()
	if !it.Next() {
		return Row{}, false, it.Err()
	}
	prev := it.Row()
	for it.Next() {
		next := it.Row()
		if prev.Address <= addr && next.Address > addr && !prev.EndSequence {
			return prev, true, nil
		}
		prev = next
	}
	return Row{}, false, it.Err()
}
