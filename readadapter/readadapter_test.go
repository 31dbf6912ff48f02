package readadapter

import (
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/polish/chunk"
	gbam "github.com/grailbio/polish/encoding/bam"
	"github.com/grailbio/polish/rle"
)

var nibbleOf = map[byte]byte{'=': 0, 'A': 1, 'C': 2, 'M': 3, 'G': 4, 'N': 15, 'T': 8}

func packSeq(bases string) []sam.Doublet {
	packed := make([]byte, (len(bases)+1)/2)
	for i := 0; i < len(bases); i++ {
		n := nibbleOf[bases[i]]
		if i%2 == 0 {
			packed[i/2] |= n << 4
		} else {
			packed[i/2] |= n
		}
	}
	return gbam.UnsafeBytesToDoublets(packed)
}

func newRecord(t *testing.T, ref *sam.Reference, pos int, bases string, cigar sam.Cigar) *sam.Record {
	rec, err := sam.NewRecord("r1", ref, nil, pos, -1, len(bases), 40, cigar, []byte(bases), nil, nil)
	expect.NoError(t, err)
	rec.Seq = sam.Seq{Length: len(bases), Seq: packSeq(bases)}
	rec.Qual = make([]byte, len(bases))
	for i := range rec.Qual {
		rec.Qual[i] = 30
	}
	return rec
}

func TestConvertExactMatch(t *testing.T) {
	ref, err := sam.NewReference("c", "", "", 20, nil, nil)
	expect.NoError(t, err)
	bases := "ACGTACGTAC"
	rec := newRecord(t, ref, 0, bases, sam.Cigar{sam.NewCigarOp(sam.CigarMatch, len(bases))})

	c := chunk.Chunk{RefName: "c", BoundaryStart: 0, Start: 0, End: 10, BoundaryEnd: 10}
	refRle := rle.Compress(bases, 0)
	refMap := rle.NewPositionMap(refRle)

	reads, alignments, err := Convert(c, refRle, refMap, []*sam.Record{rec}, false, 0)
	expect.NoError(t, err)
	expect.EQ(t, len(reads), 1)
	expect.EQ(t, rle.Expand(reads[0].RleRead), bases)
	expect.EQ(t, len(alignments[0]), len(bases))
}

func TestConvertClipsOutsideBoundary(t *testing.T) {
	ref, err := sam.NewReference("c", "", "", 20, nil, nil)
	expect.NoError(t, err)
	bases := "ACGTACGTAC"
	rec := newRecord(t, ref, 0, bases, sam.Cigar{sam.NewCigarOp(sam.CigarMatch, len(bases))})

	c := chunk.Chunk{RefName: "c", BoundaryStart: 5, Start: 5, End: 10, BoundaryEnd: 10}
	refRle := rle.Compress(bases, 0)
	refMap := rle.NewPositionMap(refRle)

	reads, alignments, err := Convert(c, refRle, refMap, []*sam.Record{rec}, false, 0)
	expect.NoError(t, err)
	expect.EQ(t, len(reads), 1)
	expect.EQ(t, len(alignments[0]), 5)
}

func TestConvertSkipsUnmapped(t *testing.T) {
	ref, err := sam.NewReference("c", "", "", 20, nil, nil)
	expect.NoError(t, err)
	rec := newRecord(t, ref, 0, "ACGT", sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 4)})
	rec.Flags |= sam.Unmapped

	c := chunk.Chunk{RefName: "c", BoundaryStart: 0, Start: 0, End: 10, BoundaryEnd: 10}
	refRle := rle.Compress("ACGTACGTAC", 0)
	refMap := rle.NewPositionMap(refRle)

	reads, _, err := Convert(c, refRle, refMap, []*sam.Record{rec}, false, 0)
	expect.NoError(t, err)
	expect.EQ(t, len(reads), 0)
}
