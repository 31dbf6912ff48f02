package params

import (
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/expect"
)

func TestDecodeAppliesDefaults(t *testing.T) {
	p, err := Decode(strings.NewReader(`{}`))
	expect.NoError(t, err)
	expect.EQ(t, p.Align.Match, 0.9)
	expect.EQ(t, p.Chunk.ChunkSize, 10000)
	expect.EQ(t, p.RLE.Diploid, 50)
	expect.False(t, p.UseRLE)
}

func TestDecodeHonorsProvidedValues(t *testing.T) {
	p, err := Decode(strings.NewReader(`{
		"chunkSize": 400,
		"chunkBoundary": 50,
		"maxDepth": 25,
		"useRunLengthEncoding": true,
		"featureType": "channelRleWeight"
	}`))
	expect.NoError(t, err)
	expect.EQ(t, p.Chunk.ChunkSize, 400)
	expect.EQ(t, p.Chunk.ChunkBoundary, 50)
	expect.EQ(t, p.Chunk.MaxDepth, 25)
	expect.True(t, p.UseRLE)
	expect.EQ(t, p.FeatureType, FeatureChannelRLE)
}

func TestDecodeRejectsSimpleWeightWithRLE(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"useRunLengthEncoding": true, "featureType": "simpleWeight"}`))
	expect.NotNil(t, err)
	expect.True(t, strings.Contains(err.Error(), "Configuration"))
}

func TestDecodeRejectsUnknownFeatureType(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"featureType": "bogus"}`))
	expect.NotNil(t, err)
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := Decode(strings.NewReader(`not json`))
	expect.NotNil(t, err)
}

func TestLoadMissingFileReturnsNotExist(t *testing.T) {
	_, err := Load("/nonexistent/path/to/params.json")
	expect.NotNil(t, err)
	expect.True(t, errors.Is(errors.NotExist, err))
}

func TestFeatureKindString(t *testing.T) {
	expect.EQ(t, FeatureDiploidRLE.String(), "diploidRleWeight")
	expect.EQ(t, FeatureChannelRLE.String(), "channelRleWeight")
}
