package line

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/dwarferr"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/section"
)

var stdLengths = []byte{0, 1, 1, 1, 1, 0, 0, 0, 1, 0, 0, 1}

type fileSpec struct {
	name     string
	dirIndex uint64
}

// buildPreV5 assembles a version 2..4 line table unit: initial length,
// version, header_length, the fixed header fields, include dirs, file
// entries, and the program bytes.
func buildPreV5(version uint16, minInst, maxOps byte, dirs []string, files []fileSpec, program []byte) section.Section {
	var hdr []byte
	hdr = append(hdr, minInst)
	if version >= 4 {
		hdr = append(hdr, maxOps)
	}
	hdr = append(hdr,
		1,    // default_is_stmt
		0xfb, // line_base = -5
		14,   // line_range
		13,   // opcode_base
	)
	hdr = append(hdr, stdLengths...)
	for _, d := range dirs {
		hdr = append(hdr, []byte(d)...)
		hdr = append(hdr, 0)
	}
	hdr = append(hdr, 0) // end of include directories
	for _, f := range files {
		hdr = append(hdr, []byte(f.name)...)
		hdr = append(hdr, 0)
		hdr = appendUleb(hdr, f.dirIndex)
		hdr = appendUleb(hdr, 0) // mtime
		hdr = appendUleb(hdr, 0) // length
	}
	hdr = append(hdr, 0) // end of file names

	var body []byte
	body = appendU16(body, version)
	body = appendU32(body, uint32(len(hdr)))
	body = append(body, hdr...)
	body = append(body, program...)

	var unit []byte
	unit = appendU32(unit, uint32(len(body)))
	unit = append(unit, body...)
	return section.New(section.KindLine, binary.LittleEndian, section.Format32, 8, unit)
}

func extSetAddress(program []byte, addr uint64) []byte {
	program = append(program, 0)
	program = appendUleb(program, 9)
	program = append(program, lneSetAddress)
	return appendU64(program, addr)
}

func extEndSequence(program []byte) []byte {
	return append(program, 0, 1, lneEndSequence)
}

func collect(t *testing.T, table *Table) []Row {
	t.Helper()
	it := table.Begin()
	var rows []Row
	for it.Next() {
		rows = append(rows, it.Row())
	}
	require.NoError(t, it.Err())
	return rows
}

func TestMinimalV3Program(t *testing.T) {
	var program []byte
	program = extSetAddress(program, 0x1000)
	program = append(program, lnsCopy)
	program = append(program, 0x0e) // special: adj=1, op_adv=0, line_inc=-4
	program = extEndSequence(program)

	sec := buildPreV5(3, 1, 0, nil, []fileSpec{{name: "main.c"}}, program)
	table, err := NewTable(sec, 0, 8, "/src", "main.c", nil)
	require.NoError(t, err)

	rows := collect(t, table)
	require.Len(t, rows, 3)

	assert.Equal(t, uint64(0x1000), rows[0].Address)
	assert.Equal(t, int64(1), rows[0].Line)
	assert.Equal(t, "/src/main.c", rows[0].File.Path)
	assert.True(t, rows[0].IsStmt)
	assert.False(t, rows[0].EndSequence)

	assert.Equal(t, uint64(0x1000), rows[1].Address)
	assert.Equal(t, int64(-3), rows[1].Line)
	assert.Equal(t, "/src/main.c", rows[1].File.Path)

	assert.True(t, rows[2].EndSequence)
	assert.Equal(t, uint64(0x1000), rows[2].Address)
	assert.Equal(t, int64(-3), rows[2].Line)
}

func TestDefineFileIsIdempotentAcrossIterations(t *testing.T) {
	var program []byte
	program = extSetAddress(program, 0x1000)
	// define_file "hot.c", dir 0, mtime 0, length 0
	entry := append([]byte("hot.c"), 0, 0, 0, 0)
	program = append(program, 0)
	program = appendUleb(program, uint64(1+len(entry)))
	program = append(program, lneDefineFile)
	program = append(program, entry...)
	program = append(program, lnsSetFile)
	program = appendUleb(program, 2)
	program = append(program, lnsCopy)
	program = extEndSequence(program)

	sec := buildPreV5(3, 1, 0, nil, []fileSpec{{name: "main.c"}}, program)
	table, err := NewTable(sec, 0, 8, "/src", "main.c", nil)
	require.NoError(t, err)

	rows := collect(t, table)
	require.Len(t, rows, 2)
	assert.Equal(t, uint64(2), rows[0].FileIndex)
	assert.Equal(t, "/src/hot.c", rows[0].File.Path)

	filesAfterFirst := len(table.Files())

	// A second full iteration must not append "hot.c" again.
	rows = collect(t, table)
	require.Len(t, rows, 2)
	assert.Equal(t, filesAfterFirst, len(table.Files()))
}

func TestGetFileForcesIteration(t *testing.T) {
	var program []byte
	program = extSetAddress(program, 0x1000)
	entry := append([]byte("hot.c"), 0, 0, 0, 0)
	program = append(program, 0)
	program = appendUleb(program, uint64(1+len(entry)))
	program = append(program, lneDefineFile)
	program = append(program, entry...)
	program = append(program, lnsCopy)
	program = extEndSequence(program)

	sec := buildPreV5(3, 1, 0, nil, []fileSpec{{name: "main.c"}}, program)
	table, err := NewTable(sec, 0, 8, "/src", "main.c", nil)
	require.NoError(t, err)

	// Index 2 is only declared by the program's define_file; GetFile
	// must drive the program itself before resolving it.
	f, err := table.GetFile(2)
	require.NoError(t, err)
	assert.Equal(t, "/src/hot.c", f.Path)

	_, err = table.GetFile(99)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds file table size")
}

func TestFindAddress(t *testing.T) {
	var program []byte
	program = extSetAddress(program, 0x1000)
	program = append(program, lnsCopy)
	program = append(program, lnsAdvancePC)
	program = appendUleb(program, 0x10)
	program = append(program, lnsCopy)
	program = append(program, lnsAdvancePC)
	program = appendUleb(program, 0x10)
	program = extEndSequence(program)

	sec := buildPreV5(3, 1, 0, nil, []fileSpec{{name: "main.c"}}, program)
	table, err := NewTable(sec, 0, 8, "/src", "main.c", nil)
	require.NoError(t, err)

	row, ok, err := table.FindAddress(0x1004)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(0x1000), row.Address)

	row, ok, err = table.FindAddress(0x1010)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(0x1010), row.Address)

	_, ok, err = table.FindAddress(0x1020)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = table.FindAddress(0xfff)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestV4MaxOpsPerInstruction(t *testing.T) {
	var program []byte
	program = append(program, lnsAdvancePC)
	program = appendUleb(program, 3)
	program = append(program, lnsCopy)
	program = append(program, lnsAdvancePC)
	program = appendUleb(program, 1)
	program = append(program, lnsCopy)
	program = extEndSequence(program)

	sec := buildPreV5(4, 4, 2, nil, []fileSpec{{name: "main.c"}}, program)
	table, err := NewTable(sec, 0, 8, "/src", "main.c", nil)
	require.NoError(t, err)

	rows := collect(t, table)
	require.Len(t, rows, 3)
	assert.Equal(t, uint64(4), rows[0].Address)
	assert.Equal(t, uint64(1), rows[0].OpIndex)
	assert.Equal(t, uint64(8), rows[1].Address)
	assert.Equal(t, uint64(0), rows[1].OpIndex)
	for _, r := range rows {
		assert.True(t, r.OpIndex < 2)
	}
}

func TestV5HeaderAndFileIndexBase(t *testing.T) {
	var hdr []byte
	hdr = append(hdr,
		1,    // minimum_instruction_length
		1,    // maximum_operations_per_instruction
		1,    // default_is_stmt
		0xfb, // line_base = -5
		14,   // line_range
		13,   // opcode_base
	)
	hdr = append(hdr, stdLengths...)

	// Directory table: one entry, path as an in-place string.
	hdr = appendUleb(hdr, 1)
	hdr = appendUleb(hdr, lnctPath)
	hdr = appendUleb(hdr, 0x08) // DW_FORM_string
	hdr = appendUleb(hdr, 1)
	hdr = append(hdr, []byte("/src")...)
	hdr = append(hdr, 0)

	// File table: path + directory_index, one entry.
	hdr = appendUleb(hdr, 2)
	hdr = appendUleb(hdr, lnctPath)
	hdr = appendUleb(hdr, 0x08) // DW_FORM_string
	hdr = appendUleb(hdr, lnctDirectoryIndex)
	hdr = appendUleb(hdr, 0x0f) // DW_FORM_udata
	hdr = appendUleb(hdr, 1)
	hdr = append(hdr, []byte("main.c")...)
	hdr = append(hdr, 0)
	hdr = appendUleb(hdr, 0)

	var program []byte
	program = extSetAddress(program, 0x2000)
	program = append(program, lnsCopy)
	program = extEndSequence(program)

	var body []byte
	body = appendU16(body, 5)
	body = append(body, 8, 0) // address size, segment selector size
	body = appendU32(body, uint32(len(hdr)))
	body = append(body, hdr...)
	body = append(body, program...)

	var buf []byte
	buf = appendU32(buf, uint32(len(body)))
	buf = append(buf, body...)
	sec := section.New(section.KindLine, binary.LittleEndian, section.Format32, 8, buf)

	table, err := NewTable(sec, 0, 8, "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, table.Version())
	assert.Equal(t, []string{"/src/"}, table.IncludeDirectories())

	rows := collect(t, table)
	require.Len(t, rows, 2)
	// DWARF5 numbers files from 0.
	assert.Equal(t, uint64(0), rows[0].FileIndex)
	assert.Equal(t, "/src/main.c", rows[0].File.Path)
}

func TestHeaderParseIsDeterministic(t *testing.T) {
	var program []byte
	program = extSetAddress(program, 0x1000)
	program = append(program, lnsCopy)
	program = extEndSequence(program)

	sec := buildPreV5(3, 1, 0, []string{"inc"}, []fileSpec{{name: "main.c"}, {name: "util.c", dirIndex: 1}}, program)

	a, err := NewTable(sec, 0, 8, "/src", "main.c", nil)
	require.NoError(t, err)
	b, err := NewTable(sec, 0, 8, "/src", "main.c", nil)
	require.NoError(t, err)

	assert.Equal(t, a.Version(), b.Version())
	assert.Equal(t, a.IncludeDirectories(), b.IncludeDirectories())
	assert.Equal(t, a.programOffset, b.programOffset)
	require.Equal(t, len(a.Files()), len(b.Files()))
	for i := range a.Files() {
		assert.Equal(t, *a.Files()[i], *b.Files()[i])
	}
	assert.Equal(t, "/src/inc/util.c", a.Files()[2].Path)
}

func TestHeaderRejectsZeroLineRange(t *testing.T) {
	sec := buildPreV5(3, 1, 0, nil, []fileSpec{{name: "main.c"}}, nil)
	// line_range sits right after default_is_stmt and line_base.
	idx := 4 + 2 + 4 + 1 + 1 + 1
	sec.Data[idx] = 0
	_, err := NewTable(sec, 0, 8, "/src", "main.c", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line_range")
}

func TestHeaderRejectsBadVersion(t *testing.T) {
	sec := buildPreV5(3, 1, 0, nil, []fileSpec{{name: "main.c"}}, nil)
	sec.Data[4] = 6
	_, err := NewTable(sec, 0, 8, "/src", "main.c", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestHeaderRejectsZeroMaxOps(t *testing.T) {
	sec := buildPreV5(4, 1, 0, nil, []fileSpec{{name: "main.c"}}, nil)
	_, err := NewTable(sec, 0, 8, "/src", "main.c", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum_operations_per_instruction")
}

func TestExtendedOpcodeOverrunIsRejected(t *testing.T) {
	// Declared length 1 covers only the sub-opcode; set_address then
	// reads 8 more bytes, overrunning its record.
	var program []byte
	program = append(program, 0, 1, lneSetAddress)
	program = appendU64(program, 0x1000)
	program = append(program, lnsCopy)

	sec := buildPreV5(3, 1, 0, nil, []fileSpec{{name: "main.c"}}, program)
	table, err := NewTable(sec, 0, 8, "/src", "main.c", nil)
	require.NoError(t, err)

	it := table.Begin()
	assert.False(t, it.Next())
	require.Error(t, it.Err())
	assert.Contains(t, it.Err().Error(), "exceeded its size")
}

func TestVendorExtendedOpcodeNotImplemented(t *testing.T) {
	program := []byte{0, 1, 0x80}
	sec := buildPreV5(3, 1, 0, nil, []fileSpec{{name: "main.c"}}, program)
	table, err := NewTable(sec, 0, 8, "/src", "main.c", nil)
	require.NoError(t, err)

	it := table.Begin()
	assert.False(t, it.Next())
	require.Error(t, it.Err())
	var notImpl *dwarferr.NotImplementedError
	assert.True(t, errors.As(it.Err(), &notImpl))
}

func appendU16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendUleb(buf []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			return buf
		}
	}
}
