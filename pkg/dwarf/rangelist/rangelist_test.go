package rangelist

import (
	"encoding/binary"
	"testing"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/section"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntheticRoundTrip(t *testing.T) {
	want := []Range{
		{Low: 0x1000, High: 0x1010},
		{Low: 0x2000, High: 0x2100},
		{Low: 0x3000, High: 0x3004},
	}
	list := NewSynthetic(want)

	it := list.Begin()
	var got []Range
	for it.Next() {
		got = append(got, it.Range())
	}
	require.NoError(t, it.Err())
	assert.Equal(t, want, got)
}

func TestListContains(t *testing.T) {
	list := NewSynthetic([]Range{{Low: 0x1000, High: 0x1010}, {Low: 0x2000, High: 0x2100}})

	ok, err := list.Contains(0x1005)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = list.Contains(0x1fff)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPreV5BaseAddressSelection(t *testing.T) {
	var buf []byte
	put := func(v uint64) {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v)
		buf = append(buf, b[:]...)
	}
	put(^uint64(0)) // largest representable offset: base-address selection
	put(0x9000)     // new base
	put(0x10)       // low (base-relative)
	put(0x20)       // high (base-relative)
	put(0)
	put(0)

	sec := section.New(section.KindRanges, binary.LittleEndian, section.Format32, 8, buf)
	list := New(sec, 0, 8, 0x1000, PreV5)

	it := list.Begin()
	require.True(t, it.Next())
	assert.Equal(t, Range{Low: 0x9010, High: 0x9020}, it.Range())
	require.False(t, it.Next())
	require.NoError(t, it.Err())
}

func TestV5OffsetPairAndBaseAddress(t *testing.T) {
	var buf []byte
	buf = append(buf, rleBaseAddress)
	var addr [8]byte
	binary.LittleEndian.PutUint64(addr[:], 0x5000)
	buf = append(buf, addr[:]...)

	buf = append(buf, rleOffsetPair)
	buf = appendUleb(buf, 0x10)
	buf = appendUleb(buf, 0x20)

	buf = append(buf, rleStartEnd)
	var lo, hi [8]byte
	binary.LittleEndian.PutUint64(lo[:], 0x7000)
	binary.LittleEndian.PutUint64(hi[:], 0x7010)
	buf = append(buf, lo[:]...)
	buf = append(buf, hi[:]...)

	buf = append(buf, rleEndOfList)

	sec := section.New(section.KindRngLists, binary.LittleEndian, section.Format32, 8, buf)
	list := New(sec, 0, 8, 0, V5)

	it := list.Begin()
	require.True(t, it.Next())
	assert.Equal(t, Range{Low: 0x5010, High: 0x5020}, it.Range())

	require.True(t, it.Next())
	assert.Equal(t, Range{Low: 0x7000, High: 0x7010}, it.Range())

	require.False(t, it.Next())
	require.NoError(t, it.Err())
}

func TestV5UnresolvedIndexedOpsAreSkippedNotEmitted(t *testing.T) {
	var buf []byte
	buf = append(buf, rleBaseAddressx)
	buf = appendUleb(buf, 3)
	buf = append(buf, rleStartxEndx)
	buf = appendUleb(buf, 1)
	buf = appendUleb(buf, 2)
	buf = append(buf, rleStartxLength)
	buf = appendUleb(buf, 4)
	buf = appendUleb(buf, 0x10)
	buf = append(buf, rleEndOfList)

	sec := section.New(section.KindRngLists, binary.LittleEndian, section.Format32, 8, buf)
	list := New(sec, 0, 8, 0, V5)

	it := list.Begin()
	assert.False(t, it.Next())
	assert.NoError(t, it.Err())
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
