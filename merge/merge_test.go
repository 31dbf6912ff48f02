package merge

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestMergeTwoIdenticalOverlap(t *testing.T) {
	mg := NewMerger(5)
	left := "AAAAACCCCC"
	right := "CCCCCGGGGG"
	got := mg.mergeTwo(left, right)
	expect.EQ(t, got, "AAAAACCCCCGGGGG")
}

func TestMergeContigChainsMultipleChunks(t *testing.T) {
	mg := NewMerger(4)
	chunks := []Chunk{
		{Seq: "AAAATTTT", Index: 0},
		{Seq: "TTTTGGGG", Index: 1},
		{Seq: "GGGGCCCC", Index: 2},
	}
	got := mg.MergeContig(chunks)
	expect.EQ(t, got, "AAAATTTTGGGGCCCC")
}

func TestMergeTwoCachesByFingerprint(t *testing.T) {
	mg := NewMerger(4)
	left := "AAAATTTT"
	right := "TTTTGGGG"
	got1 := mg.mergeTwo(left, right)
	expect.EQ(t, len(mg.cache), 1)
	got2 := mg.mergeTwo(left, right)
	expect.EQ(t, got1, got2)
	expect.EQ(t, len(mg.cache), 1)
}

func TestMergeTwoNoOverlapConcatenates(t *testing.T) {
	mg := NewMerger(0)
	expect.EQ(t, mg.mergeTwo("AAA", "TTT"), "AAATTT")
}

func TestBestSpliceOffsetPrefersMidpointOnTie(t *testing.T) {
	// Both windows fully agree, so every offset has zero mismatches; the
	// midpoint should win the tie-break.
	offset := bestSpliceOffset("AAAA", "AAAA")
	expect.EQ(t, offset, 2)
}
