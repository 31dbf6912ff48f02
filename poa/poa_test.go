package poa

import (
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/polish/readadapter"
	"github.com/grailbio/polish/rle"
)

func TestNewStraightLineRefString(t *testing.T) {
	ref := rle.Compress("ACGTACGTAC", 0)
	g := NewStraightLine(ref)
	expect.EQ(t, len(g.Nodes), ref.Len())
	// With no reads applied, every node's Weight (0) is not < DeleteWeight
	// (0), so the full backbone survives unchanged.
	expect.EQ(t, rle.Expand(g.RefString()), "ACGTACGTAC")
}

func TestPairwiseAlignExactMatch(t *testing.T) {
	s := rle.Compress("ACGTACGTAC", 0)
	pairs := PairwiseAlign(s, s, DefaultAlignParams)
	expect.EQ(t, len(pairs), s.Len())
	for i, p := range pairs {
		expect.EQ(t, p.ReadIdx, i)
		expect.EQ(t, p.RefIdx, i)
	}
}

func TestRealignAllConvergesOnMatchingReads(t *testing.T) {
	refStr := "ACGTACGTACGTACGTACGT"
	refRle := rle.Compress(refStr, 0)
	var reads []readadapter.BamChunkRead
	for i := 0; i < 5; i++ {
		reads = append(reads, readadapter.BamChunkRead{RleRead: rle.Compress(refStr, 0)})
	}
	g := RealignAll(reads, refRle, DefaultAlignParams)
	expect.EQ(t, rle.Expand(g.RefString()), refStr)
}

func TestRealignAllCorrectsSNV(t *testing.T) {
	refStr := "ACGTACGTACGTACGTACGT"
	// All reads agree on an A->T substitution at position 4.
	readStr := "ACGTTCGTACGTACGTACGT"
	refRle := rle.Compress(refStr, 0)
	var reads []readadapter.BamChunkRead
	for i := 0; i < 10; i++ {
		reads = append(reads, readadapter.BamChunkRead{RleRead: rle.Compress(readStr, 0)})
	}
	g := RealignAll(reads, refRle, DefaultAlignParams)
	expect.EQ(t, rle.Expand(g.RefString()), readStr)
}
