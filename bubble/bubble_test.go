package bubble

import (
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/polish/poa"
	"github.com/grailbio/polish/readadapter"
	"github.com/grailbio/polish/rle"
)

func buildGraphWithSplit(refStr, altStr string, altCount, refCount int) *poa.Graph {
	refRle := rle.Compress(refStr, 0)
	var reads []readadapter.BamChunkRead
	for i := 0; i < refCount; i++ {
		reads = append(reads, readadapter.BamChunkRead{RleRead: rle.Compress(refStr, 0)})
	}
	for i := 0; i < altCount; i++ {
		reads = append(reads, readadapter.BamChunkRead{RleRead: rle.Compress(altStr, 0)})
	}
	return poa.RealignAll(reads, refRle, poa.DefaultAlignParams)
}

func TestDetectBubblesFindsHetSite(t *testing.T) {
	refStr := "ACGTACGTACGTACGTACGT"
	altStr := "ACGTTCGTACGTACGTACGT" // A->T at position 4
	g := buildGraphWithSplit(refStr, altStr, 5, 5)
	bg := DetectBubbles(g, 0.3)
	expect.True(t, len(bg.Bubbles) >= 1)
	found := false
	for _, b := range bg.Bubbles {
		if b.NodeIdx == 4 {
			found = true
			expect.EQ(t, len(b.Alleles), 2)
		}
	}
	expect.True(t, found)
}

func TestDetectBubblesIgnoresUnanimousSites(t *testing.T) {
	refStr := "ACGTACGTACGTACGTACGT"
	g := buildGraphWithSplit(refStr, refStr, 0, 10)
	bg := DetectBubbles(g, 0.3)
	expect.EQ(t, len(bg.Bubbles), 0)
}

func TestPhaseSeparatesTwoHaplotypes(t *testing.T) {
	refStr := "ACGTACGTACGTACGTACGT"
	hap1Str := "ACGTACGTACGTACGTACGT"
	hap2Str := "ACGTTCGTACGTACGTTCGT" // two substitutions vs ref

	refRle := rle.Compress(refStr, 0)

	var reads []readadapter.BamChunkRead
	for i := 0; i < 6; i++ {
		reads = append(reads, readadapter.BamChunkRead{ID: "h1read", RleRead: rle.Compress(hap1Str, 0)})
	}
	for i := 0; i < 6; i++ {
		reads = append(reads, readadapter.BamChunkRead{ID: "h2read", RleRead: rle.Compress(hap2Str, 0)})
	}
	// Distinguish read IDs for deterministic ordering/assignment.
	for i := range reads {
		reads[i].ID = reads[i].ID + string(rune('0'+i))
	}

	g := poa.RealignAll(reads, refRle, poa.DefaultAlignParams)
	bg := DetectBubbles(g, 0.3)
	expect.True(t, len(bg.Bubbles) >= 1)

	consensus := g.RefString()
	var alignments []readadapter.Alignment
	for _, r := range reads {
		pairs := poa.PairwiseAlign(r.RleRead, consensus, poa.DefaultAlignParams)
		var alignment readadapter.Alignment
		for _, p := range pairs {
			alignment = append(alignment, readadapter.AlignPair{ReadRleIdx: p.ReadIdx, RefRleIdx: p.RefIdx})
		}
		alignments = append(alignments, alignment)
	}

	_, h1Reads, h2Reads := Phase(bg, reads, alignments, DefaultPhaseParams)
	expect.True(t, len(h1Reads)+len(h2Reads) > 0)
}
