// Package line decodes the DWARF line number program: a bytecode
// stream in .debug_line that reconstructs the mapping from instruction
// addresses to source file, line and column. Table parses the
// per-table header (versions 2 through 5, including the DWARF5
// entry-format directory and file tables); Iterator runs the program
// as a state machine, one emitted row per copy/special/end_sequence
// event.
package line

import (
	"strings"

	"go.uber.org/atomic"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/dwarferr"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/form"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/section"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/unit"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/util"
)

// Standard opcodes (DWARF4 section 6.2.5.2).
const (
	lnsCopy             = 0x01
	lnsAdvancePC        = 0x02
	lnsAdvanceLine      = 0x03
	lnsSetFile          = 0x04
	lnsSetColumn        = 0x05
	lnsNegateStmt       = 0x06
	lnsSetBasicBlock    = 0x07
	lnsConstAddPC       = 0x08
	lnsFixedAdvancePC   = 0x09
	lnsSetPrologueEnd   = 0x0a
	lnsSetEpilogueBegin = 0x0b
	lnsSetISA           = 0x0c
)

// Extended opcodes (DWARF4 section 6.2.5.3).
const (
	lneEndSequence      = 0x01
	lneSetAddress       = 0x02
	lneDefineFile       = 0x03
	lneSetDiscriminator = 0x04
	lneLoUser           = 0x80
	lneHiUser           = 0xff
)

// DWARF5 line-table content codes (section 6.2.4.1).
const (
	lnctPath           = 0x01
	lnctDirectoryIndex = 0x02
	lnctTimestamp      = 0x03
	lnctSize           = 0x04
	lnctMD5            = 0x05
)

// expectedOpcodeLengths is the per-standard-opcode argument count the
// header's opcode_lengths field must agree with. The standard never
// says what to do on a mismatch; rejecting is the safe thing.
var expectedOpcodeLengths = [13]uint8{
	0,
	// copy .. set_column
	0, 1, 1, 1, 1,
	// negate_stmt .. fixed_advance_pc
	0, 0, 0, 1,
	// set_prologue_end .. set_isa
	0, 0, 1,
}

// File is one resolved entry of a line table's file-name list.
type File struct {
	Path   string
	Mtime  uint64
	Length uint64
}

// entryFormat is one (content code, form) descriptor from a DWARF5
// directory or file entry-format vector.
type entryFormat struct {
	content uint64
	form    form.Form
}

// Table is a parsed .debug_line table: the header fields plus the
// mutable file-name accumulator the program's define_file opcodes
// extend during iteration.
//
// fileNames and lastFileNameEnd are single-owner-per-iteration: run at
// most one Iterator at a time, or synchronise externally.
// fileNamesComplete is atomic so GetFile can cheaply check whether a
// prior iteration already drove the program to the end.
type Table struct {
	sec      section.Section
	provider unit.SectionProvider
	compDir  string
	cuName   string

	version       int
	programOffset int
	minInstLen    uint64
	maxOps        uint64
	defaultIsStmt bool
	lineBase      int64
	lineRange     uint64
	opcodeBase    uint64
	fileIndexBase uint64

	stdOpcodeLengths []uint8
	includeDirs      []string
	fileEntryFormats []entryFormat

	// File name entries can appear both in the header and in the line
	// number program itself. Since the program can be iterated
	// repeatedly, lastFileNameEnd tracks the section offset after the
	// last entry consumed so the same entry is never added twice.
	fileNames         []*File
	lastFileNameEnd   uint64
	fileNamesComplete atomic.Bool
}

// NewTable parses one line table header starting at offset within
// lineSec. cuAddrSize is the owning compilation unit's address size,
// used for versions before 5 (which carry no address size of their
// own). compDir and cuName come from the unit's root DIE and seed the
// implicit directory/file entries. provider is needed only when a
// DWARF5 table encodes names with strp/line_strp.
func NewTable(lineSec section.Section, offset int, cuAddrSize int, compDir, cuName string, provider unit.SectionProvider) (*Table, error) {
	t := &Table{provider: provider, cuName: cuName}
	if compDir != "" && !strings.HasSuffix(compDir, "/") {
		compDir += "/"
	}
	t.compDir = compDir

	// Slice the per-table subsection; the initial length also decides
	// the table's DWARF offset format.
	cur := util.NewCursor(lineSec, offset)
	sub, err := cur.Subsection()
	if err != nil {
		return nil, err
	}
	cur = util.NewCursor(sub, 0)

	version, err := cur.Uint16()
	if err != nil {
		return nil, err
	}
	if version < 2 || version > 5 {
		return nil, dwarferr.NewFormat(string(sub.Kind), cur.Offset(),
			"unknown line number table version %d", version)
	}
	t.version = int(version)

	if t.version >= 5 {
		addrSize, err := cur.Uint8()
		if err != nil {
			return nil, err
		}
		// One byte of segment selector size follows; segments are not
		// used beyond it.
		if _, err := cur.Uint8(); err != nil {
			return nil, err
		}
		sub.AddrSize = int(addrSize)
	} else {
		sub.AddrSize = cuAddrSize
	}
	t.sec = sub
	if t.version >= 5 {
		t.fileIndexBase = 0
	} else {
		t.fileIndexBase = 1
	}

	headerLength, err := cur.SecOffset()
	if err != nil {
		return nil, err
	}
	t.programOffset = cur.RelOffset() + int(headerLength)

	minInst, err := cur.Uint8()
	if err != nil {
		return nil, err
	}
	t.minInstLen = uint64(minInst)

	t.maxOps = 1
	if t.version >= 4 {
		maxOps, err := cur.Uint8()
		if err != nil {
			return nil, err
		}
		t.maxOps = uint64(maxOps)
	}
	if t.maxOps == 0 {
		return nil, dwarferr.NewFormat(string(sub.Kind), cur.Offset(),
			"maximum_operations_per_instruction cannot be 0 in line number table")
	}

	defaultIsStmt, err := cur.Uint8()
	if err != nil {
		return nil, err
	}
	t.defaultIsStmt = defaultIsStmt != 0

	lineBase, err := cur.Int8()
	if err != nil {
		return nil, err
	}
	t.lineBase = int64(lineBase)

	lineRange, err := cur.Uint8()
	if err != nil {
		return nil, err
	}
	if lineRange == 0 {
		return nil, dwarferr.NewFormat(string(sub.Kind), cur.Offset(),
			"line_range cannot be 0 in line number table")
	}
	t.lineRange = uint64(lineRange)

	opcodeBase, err := cur.Uint8()
	if err != nil {
		return nil, err
	}
	t.opcodeBase = uint64(opcodeBase)

	t.stdOpcodeLengths = make([]uint8, opcodeBase)
	for i := 1; i < int(opcodeBase); i++ {
		length, err := cur.Uint8()
		if err != nil {
			return nil, err
		}
		if i < len(expectedOpcodeLengths) && length != expectedOpcodeLengths[i] {
			return nil, dwarferr.NewFormat(string(sub.Kind), cur.Offset(),
				"expected %d arguments for line number opcode %d, got %d",
				expectedOpcodeLengths[i], i, length)
		}
		t.stdOpcodeLengths[i] = length
	}

	if t.version < 5 {
		// Directory 0 is implicitly the compilation directory.
		t.includeDirs = append(t.includeDirs, t.compDir)
		for {
			dir, err := cur.CString()
			if err != nil {
				return nil, err
			}
			if dir == "" {
				break
			}
			if !strings.HasSuffix(dir, "/") {
				dir += "/"
			}
			if dir[0] == '/' {
				t.includeDirs = append(t.includeDirs, dir)
			} else {
				t.includeDirs = append(t.includeDirs, t.compDir+dir)
			}
		}
	} else {
		if err := t.readV5DirectoryTable(cur); err != nil {
			return nil, err
		}
	}

	if t.version < 5 {
		// File 0 is implicitly the compilation unit file name, which
		// can be relative to the compilation directory or absolute.
		t.fileNames = append(t.fileNames, cuFile(t.compDir, t.cuName))
		for {
			more, err := t.readFileEntry(cur, true)
			if err != nil {
				return nil, err
			}
			if !more {
				break
			}
		}
	} else {
		if err := t.readV5FileTable(cur); err != nil {
			return nil, err
		}
		if len(t.fileNames) == 0 {
			t.fileNames = append(t.fileNames, cuFile(t.compDir, t.cuName))
		}
	}

	return t, nil
}

func cuFile(compDir, cuName string) *File {
	if cuName != "" && cuName[0] == '/' {
		return &File{Path: cuName}
	}
	return &File{Path: compDir + cuName}
}

// Version returns the table's DWARF line-table version (2..5).
func (t *Table) Version() int {
	return t.version
}

// EndOffset returns the offset just past this table within the line
// section it was parsed from; the next table in the section starts
// there.
func (t *Table) EndOffset() int {
	return int(t.sec.Base()) + t.sec.Len()
}

// IncludeDirectories returns the resolved include-directory table.
func (t *Table) IncludeDirectories() []string {
	return t.includeDirs
}

// Files returns the file-name list discovered so far. Iterating the
// program can extend it; GetFile forces completion.
func (t *Table) Files() []*File {
	return t.fileNames
}

// GetFile returns the file entry at index. If the index is not yet
// known and the program has not been driven to completion, the whole
// program is run once first, since define_file opcodes can extend the
// list mid-program.
func (t *Table) GetFile(index uint64) (*File, error) {
	if index >= uint64(len(t.fileNames)) {
		if !t.fileNamesComplete.Load() {
			it := t.Begin()
			for it.Next() {
			}
			if err := it.Err(); err != nil {
				return nil, err
			}
		}
		if index >= uint64(len(t.fileNames)) {
			return nil, dwarferr.NewFormat(string(t.sec.Kind), t.sec.Base(),
				"file name index %d exceeds file table size of %d", index, len(t.fileNames))
		}
	}
	return t.fileNames[index], nil
}

// readFileEntry reads one file entry at the cursor: the pre-v5
// (name, dir, mtime, length) layout, or the DWARF5 entry-format layout
// when the table is version 5. In the header the pre-v5 list is
// terminated by an empty name, which returns false; a pre-v5
// define_file entry with an empty name also returns false and adds no
// file. Entries already consumed by a previous
// iteration (the lastFileNameEnd bookmark) are skipped, keeping
// repeated iteration idempotent.
func (t *Table) readFileEntry(cur *util.Cursor, inHeader bool) (bool, error) {
	if t.version >= 5 {
		return true, t.readFileEntryV5(cur)
	}

	name, err := cur.CString()
	if err != nil {
		return false, err
	}
	if inHeader && name == "" {
		return false, nil
	}
	dirIndex, err := cur.Uleb128()
	if err != nil {
		return false, err
	}
	mtime, err := cur.Uleb128()
	if err != nil {
		return false, err
	}
	length, err := cur.Uleb128()
	if err != nil {
		return false, err
	}

	if cur.Offset() <= t.lastFileNameEnd {
		return true, nil
	}
	t.lastFileNameEnd = cur.Offset()

	if name == "" {
		return false, nil
	}
	return true, t.addFileEntry(name, dirIndex, mtime, length)
}

func (t *Table) readFileEntryV5(cur *util.Cursor) error {
	if len(t.fileEntryFormats) == 0 {
		return dwarferr.NewFormat(string(t.sec.Kind), cur.Offset(),
			"line table missing file name entry formats")
	}
	name, dirIndex, mtime, length, err := t.readV5Entry(cur, t.fileEntryFormats)
	if err != nil {
		return err
	}

	entryEnd := cur.Offset()
	if entryEnd <= t.lastFileNameEnd {
		return nil
	}
	t.lastFileNameEnd = entryEnd

	if name == "" {
		return nil
	}
	return t.addFileEntry(name, dirIndex, mtime, length)
}

func (t *Table) addIncludeDirectory(dir string) {
	resolved := dir
	if resolved != "" && !strings.HasSuffix(resolved, "/") {
		resolved += "/"
	}
	if resolved != "" && resolved[0] != '/' && t.compDir != "" {
		resolved = t.compDir + resolved
	}
	if resolved == "" {
		resolved = t.compDir
	}
	t.includeDirs = append(t.includeDirs, resolved)
}

func (t *Table) addFileEntry(name string, dirIndex, mtime, length uint64) error {
	if name == "" {
		return dwarferr.NewFormat(string(t.sec.Kind), 0, "file entry missing file name")
	}
	if name[0] == '/' {
		t.fileNames = append(t.fileNames, &File{Path: name, Mtime: mtime, Length: length})
		return nil
	}

	var base string
	switch {
	case dirIndex < uint64(len(t.includeDirs)):
		base = t.includeDirs[dirIndex]
	case dirIndex == 0 && t.version < 5 && t.compDir != "":
		base = t.compDir
	default:
		return dwarferr.NewFormat(string(t.sec.Kind), 0,
			"file name directory index out of range: %d", dirIndex)
	}
	t.fileNames = append(t.fileNames, &File{Path: base + name, Mtime: mtime, Length: length})
	return nil
}

func (t *Table) readEntryFormats(cur *util.Cursor) ([]entryFormat, error) {
	count, err := cur.Uleb128()
	if err != nil {
		return nil, err
	}
	formats := make([]entryFormat, 0, count)
	for i := uint64(0); i < count; i++ {
		content, err := cur.Uleb128()
		if err != nil {
			return nil, err
		}
		f, err := cur.Uleb128()
		if err != nil {
			return nil, err
		}
		formats = append(formats, entryFormat{content: content, form: form.Form(f)})
	}
	return formats, nil
}

func (t *Table) readV5DirectoryTable(cur *util.Cursor) error {
	formats, err := t.readEntryFormats(cur)
	if err != nil {
		return err
	}
	count, err := cur.Uleb128()
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		var path string
		for _, ef := range formats {
			switch ef.content {
			case lnctPath:
				path, err = t.readFormString(cur, ef.form)
			default:
				err = form.Skip(cur, ef.form)
			}
			if err != nil {
				return err
			}
		}
		t.addIncludeDirectory(path)
	}
	return nil
}

func (t *Table) readV5FileTable(cur *util.Cursor) error {
	// The formats are kept on the table: define_file opcodes in the
	// program reuse them.
	formats, err := t.readEntryFormats(cur)
	if err != nil {
		return err
	}
	t.fileEntryFormats = formats
	count, err := cur.Uleb128()
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		name, dirIndex, mtime, length, err := t.readV5Entry(cur, formats)
		if err != nil {
			return err
		}
		if name != "" {
			if err := t.addFileEntry(name, dirIndex, mtime, length); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Table) readV5Entry(cur *util.Cursor, formats []entryFormat) (name string, dirIndex, mtime, length uint64, err error) {
	for _, ef := range formats {
		switch ef.content {
		case lnctPath:
			name, err = t.readFormString(cur, ef.form)
		case lnctDirectoryIndex:
			dirIndex, err = t.readFormUnsigned(cur, ef.form)
		case lnctTimestamp:
			mtime, err = t.readFormUnsigned(cur, ef.form)
		case lnctSize:
			length, err = t.readFormUnsigned(cur, ef.form)
		default:
			err = form.Skip(cur, ef.form)
		}
		if err != nil {
			return "", 0, 0, 0, err
		}
	}
	return name, dirIndex, mtime, length, nil
}

func (t *Table) readFormString(cur *util.Cursor, f form.Form) (string, error) {
	switch f {
	case form.String:
		return cur.CString()
	case form.LineStrp:
		off, err := cur.SecOffset()
		if err != nil {
			return "", err
		}
		return t.readStringFromSection(section.KindLineStr, off)
	case form.Strp:
		off, err := cur.SecOffset()
		if err != nil {
			return "", err
		}
		return t.readStringFromSection(section.KindStr, off)
	}
	return "", dwarferr.NewTypeMismatch("line table string", f.String())
}

func (t *Table) readFormUnsigned(cur *util.Cursor, f form.Form) (uint64, error) {
	switch f {
	case form.Data1:
		v, err := cur.Uint8()
		return uint64(v), err
	case form.Data2:
		v, err := cur.Uint16()
		return uint64(v), err
	case form.Data4:
		v, err := cur.Uint32()
		return uint64(v), err
	case form.Data8:
		return cur.Uint64()
	case form.Udata:
		return cur.Uleb128()
	case form.Sdata:
		v, err := cur.Sleb128()
		return uint64(v), err
	}
	return 0, dwarferr.NewTypeMismatch("line table constant", f.String())
}

func (t *Table) readStringFromSection(kind section.Kind, off uint64) (string, error) {
	if t.provider == nil {
		return "", dwarferr.NewFormat(string(t.sec.Kind), off,
			"line table requires a section provider to read %s", kind)
	}
	sec, err := t.provider.Section(kind)
	if err != nil {
		return "", err
	}
	return util.NewCursor(sec, int(off)).CString()
}
