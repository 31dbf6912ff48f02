package repeat

import (
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/polish/readadapter"
	"github.com/grailbio/polish/rle"
)

func buildMatrix(errorRate float64) *Matrix {
	var m Matrix
	for b := 0; b < 4; b++ {
		for s := 0; s < 2; s++ {
			for t := 0; t <= MaxRunLength; t++ {
				GeometricMatrixRow(&m, b, s, t, errorRate)
			}
		}
	}
	return &m
}

func TestEstimateRecoversTrueRunLength(t *testing.T) {
	m := buildMatrix(0.05)
	prior := UniformPrior()
	var obs []Observation
	for i := 0; i < 8; i++ {
		obs = append(obs, Observation{RunLength: 5, ForwardStrand: true})
	}
	got := Estimate('A', obs, m, prior)
	expect.EQ(t, got, 5)
}

func TestEstimateNoObservationsReturnsZero(t *testing.T) {
	m := buildMatrix(0.05)
	prior := UniformPrior()
	expect.EQ(t, Estimate('A', nil, m, prior), 0)
}

func TestEstimateUnknownBaseReturnsZero(t *testing.T) {
	m := buildMatrix(0.05)
	prior := UniformPrior()
	obs := []Observation{{RunLength: 5, ForwardStrand: true}}
	expect.EQ(t, Estimate('N', obs, m, prior), 0)
}

func TestEstimateDiploidSplitsHaplotypes(t *testing.T) {
	m := buildMatrix(0.05)
	prior := UniformPrior()
	var h1, h2 []Observation
	for i := 0; i < 6; i++ {
		h1 = append(h1, Observation{RunLength: 3, ForwardStrand: true})
		h2 = append(h2, Observation{RunLength: 7, ForwardStrand: true})
	}
	t1, t2 := EstimateDiploid('A', h1, h2, m, prior)
	expect.EQ(t, t1, 3)
	expect.EQ(t, t2, 7)
}

func TestObservationsAtNode(t *testing.T) {
	reads := []readadapter.BamChunkRead{
		{ID: "r1", RleRead: rle.String{Bases: "AC", Lengths: []int{3, 1}}, ForwardStrand: true},
		{ID: "r2", RleRead: rle.String{Bases: "AC", Lengths: []int{4, 1}}, ForwardStrand: false},
	}
	alignments := []readadapter.Alignment{
		{{ReadRleIdx: 0, RefRleIdx: 0}, {ReadRleIdx: 1, RefRleIdx: 1}},
		{{ReadRleIdx: 0, RefRleIdx: 0}},
	}
	obs := ObservationsAtNode(0, reads, alignments)
	expect.EQ(t, len(obs), 2)

	ids := map[string]bool{"r1": true}
	obs2 := ObservationsAtNodeForReads(0, reads, alignments, ids)
	expect.EQ(t, len(obs2), 1)
	expect.EQ(t, obs2[0].RunLength, 3)
}
