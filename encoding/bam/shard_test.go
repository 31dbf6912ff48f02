package bam

import (
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/expect"
)

func TestShardString(t *testing.T) {
	ref1, err := sam.NewReference("chr1", "", "", 100, nil, nil)
	expect.NoError(t, err)
	// Adding the reference to a header assigns its ID (0).
	_, err = sam.NewHeader(nil, []*sam.Reference{ref1})
	expect.NoError(t, err)
	s := Shard{StartRef: ref1, EndRef: ref1, Start: 20, End: 90}
	expect.EQ(t, s.String(), "chr1[0]:20-90")
}

func TestUniversalShard(t *testing.T) {
	ref1, err := sam.NewReference("chr1", "", "", 100, nil, nil)
	expect.NoError(t, err)
	header, err := sam.NewHeader(nil, []*sam.Reference{ref1})
	expect.NoError(t, err)

	s := UniversalShard(header)
	expect.EQ(t, s.StartRef.Name(), "chr1")
	expect.EQ(t, s.Start, 0)
	expect.EQ(t, s.End, 100)
}

func TestUniversalShardEmptyHeader(t *testing.T) {
	header, err := sam.NewHeader(nil, nil)
	expect.NoError(t, err)
	s := UniversalShard(header)
	expect.True(t, s.StartRef == nil)
	expect.EQ(t, s.End, 0)
}
