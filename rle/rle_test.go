package rle

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestCompressExpandRoundTrip(t *testing.T) {
	s := "AAAACCCGGT"
	r := Compress(s, 0)
	expect.EQ(t, r.Bases, "ACGT")
	expect.EQ(t, r.Lengths, []int{4, 3, 2, 1})
	expect.EQ(t, Expand(r), s)
}

func TestPositionMap(t *testing.T) {
	r := Compress("AAAACCCGGT", 0)
	m := NewPositionMap(r)
	compressed, err := m.ToCompressed(6)
	expect.NoError(t, err)
	expect.EQ(t, compressed, 1)

	expanded, err := m.ToExpanded(2)
	expect.NoError(t, err)
	expect.EQ(t, expanded, 7)
}

func TestCompressCapsRunLength(t *testing.T) {
	r := Compress("AAAAAA", 4)
	expect.EQ(t, r.Bases, "AA")
	expect.EQ(t, r.Lengths, []int{4, 2})
}

func TestCompressEmpty(t *testing.T) {
	r := Compress("", 0)
	expect.EQ(t, r.Len(), 0)
	expect.EQ(t, Expand(r), "")
}

func TestPositionMapOutOfRange(t *testing.T) {
	r := Compress("AAAACCC", 0)
	m := NewPositionMap(r)
	_, err := m.ToCompressed(100)
	expect.Error(t, err)
	_, err = m.ToExpanded(100)
	expect.Error(t, err)
}
