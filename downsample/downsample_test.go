package downsample

import (
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/polish/readadapter"
	"github.com/grailbio/polish/rle"
)

func makeReads(n, length int) ([]readadapter.BamChunkRead, []readadapter.Alignment) {
	reads := make([]readadapter.BamChunkRead, n)
	alignments := make([]readadapter.Alignment, n)
	for i := range reads {
		bases := make([]byte, length)
		for j := range bases {
			bases[j] = 'A'
		}
		reads[i] = readadapter.BamChunkRead{RleRead: rle.Compress(string(bases), 0)}
		alignments[i] = readadapter.Alignment{{ReadRleIdx: 0, RefRleIdx: 0}}
	}
	return reads, alignments
}

func TestDownsampleNoOpWhenUnderBudget(t *testing.T) {
	reads, alignments := makeReads(5, 10)
	res := Downsample(100, 10, reads, alignments, 0, 1)
	expect.False(t, res.Applied)
	expect.EQ(t, len(res.Kept), 5)
}

func TestDownsampleCapsCoverage(t *testing.T) {
	reads, alignments := makeReads(100, 10)
	res := Downsample(5, 10, reads, alignments, 0, 1)
	expect.True(t, res.Applied)
	expect.True(t, len(res.Kept) < 100)
	expect.True(t, len(res.Kept)+len(res.Discarded) == 100)
}

func TestDownsampleDeterministic(t *testing.T) {
	reads, alignments := makeReads(100, 10)
	r1 := Downsample(5, 10, reads, alignments, 3, 42)
	r2 := Downsample(5, 10, reads, alignments, 3, 42)
	expect.EQ(t, len(r1.Kept), len(r2.Kept))
	for i := range r1.Kept {
		expect.EQ(t, r1.Kept[i], r2.Kept[i])
	}
}
