package chunk

import (
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/expect"
)

func newHeader(t *testing.T) *sam.Header {
	ref, err := sam.NewReference("c extra metadata", "", "", 1000, nil, nil)
	expect.NoError(t, err)
	h, err := sam.NewHeader(nil, []*sam.Reference{ref})
	expect.NoError(t, err)
	return h
}

func TestChunksCoverContig(t *testing.T) {
	h := newHeader(t)
	c, err := New(h, nil, 400, 50)
	expect.NoError(t, err)
	chunks, err := c.Chunks()
	expect.NoError(t, err)
	expect.EQ(t, len(chunks), 3)
	expect.EQ(t, chunks[0], Chunk{RefName: "c", BoundaryStart: 0, Start: 0, End: 400, BoundaryEnd: 450, ChunkerRef: 1000, Index: 0})
	expect.EQ(t, chunks[1], Chunk{RefName: "c", BoundaryStart: 350, Start: 400, End: 800, BoundaryEnd: 850, ChunkerRef: 1000, Index: 1})
	expect.EQ(t, chunks[2], Chunk{RefName: "c", BoundaryStart: 750, Start: 800, End: 1000, BoundaryEnd: 1000, ChunkerRef: 1000, Index: 2})
	for _, ch := range chunks {
		expect.True(t, ch.BoundaryStart <= ch.Start)
		expect.True(t, ch.Start < ch.End)
		expect.True(t, ch.End <= ch.BoundaryEnd)
	}
}

func TestChunksWithRegion(t *testing.T) {
	h := newHeader(t)
	region, err := ParseRegion("c:200-600")
	expect.NoError(t, err)
	c, err := New(h, &region, 400, 0)
	expect.NoError(t, err)
	chunks, err := c.Chunks()
	expect.NoError(t, err)
	total := 0
	for _, ch := range chunks {
		total += ch.End - ch.Start
	}
	expect.EQ(t, total, 400)
}

func TestParseRegionErrors(t *testing.T) {
	for _, s := range []string{":100-200", "c:abc-200", "c:200-abc", "c:200-100"} {
		_, err := ParseRegion(s)
		expect.Error(t, err)
	}
}

func TestNormalizeContigName(t *testing.T) {
	expect.EQ(t, NormalizeContigName("chr1 some metadata"), "chr1")
	expect.EQ(t, NormalizeContigName("chr1\tmore"), "chr1")
	expect.EQ(t, NormalizeContigName("chr1"), "chr1")
}
