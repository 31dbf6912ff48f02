// Package repeat estimates the true homopolymer run length at each POA node
// from observed per-read run lengths, by a Bayesian posterior over a
// substitution matrix supplied by the params package, per SPEC_FULL.md
// section 4.7.
package repeat

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/grailbio/polish/readadapter"
)

// MaxRunLength bounds the run lengths the matrix and prior are indexed by;
// observed or candidate true run lengths beyond this are clamped to it, the
// same cap rle.DefaultMaxRunLength uses for RLE compression.
const MaxRunLength = 50

// Matrix is the four-dimensional substitution matrix M[base][strand][trueRun][observedRun],
// giving P(observedRun | base, strand, trueRun). base is indexed 'A','C','G','T'
// via BaseIndex; strand 0=forward, 1=reverse.
type Matrix [4][2][MaxRunLength + 1][MaxRunLength + 1]float64

// Prior is pi(t), a distribution over true run lengths, shared across bases
// and strands.
type Prior [MaxRunLength + 1]float64

// BaseIndex maps a base letter to Matrix's first dimension; non-ACGT bases
// are not supported by the estimator and map to -1.
func BaseIndex(b byte) int {
	switch b {
	case 'A':
		return 0
	case 'C':
		return 1
	case 'G':
		return 2
	case 'T':
		return 3
	default:
		return -1
	}
}

func strandIndex(forward bool) int {
	if forward {
		return 0
	}
	return 1
}

// Observation is one read's observed run length at a node, with its strand.
type Observation struct {
	RunLength     int
	ForwardStrand bool
}

// Estimate computes t* = argmax_t pi(t) * prod_j M[b, strand_j, t, r_j],
// working in log space to avoid underflow, per SPEC_FULL.md section 4.7.
// It returns 0 if base has no ACGT index or there are no observations.
func Estimate(base byte, obs []Observation, m *Matrix, prior *Prior) int {
	bi := BaseIndex(base)
	if bi < 0 || len(obs) == 0 {
		return 0
	}
	bestT := 0
	bestScore := math.Inf(-1)
	for t := 0; t <= MaxRunLength; t++ {
		score := logOf(prior[t])
		if score == math.Inf(-1) {
			continue
		}
		for _, o := range obs {
			r := clamp(o.RunLength)
			p := m[bi][strandIndex(o.ForwardStrand)][t][r]
			score += logOf(p)
		}
		if score > bestScore {
			bestScore, bestT = score, t
		}
	}
	return bestT
}

// EstimateDiploid runs Estimate separately over the reads attributed to each
// haplotype, returning (t1, t2); a haplotype with no assigned observations
// falls back to 0 (meaning: undetermined, caller should default to the POA's
// consensus run length).
func EstimateDiploid(base byte, hap1Obs, hap2Obs []Observation, m *Matrix, prior *Prior) (int, int) {
	return Estimate(base, hap1Obs, m, prior), Estimate(base, hap2Obs, m, prior)
}

func clamp(r int) int {
	if r < 0 {
		return 0
	}
	if r > MaxRunLength {
		return MaxRunLength
	}
	return r
}

func logOf(p float64) float64 {
	if p <= 0 {
		return math.Inf(-1)
	}
	return math.Log(p)
}

// UniformPrior returns a flat prior over [0, MaxRunLength], a reasonable
// fallback when no empirical prior was supplied in the parameter file.
func UniformPrior() *Prior {
	var p Prior
	each := 1.0 / float64(MaxRunLength+1)
	for i := range p {
		p[i] = each
	}
	return &p
}

// GeometricMatrixRow fills M[b][strand][t][:] with a sequencing-error model
// around t, using a gonum binomial distribution over the number of "extra or
// missing" repeat units: observedRun is modeled as t plus a signed error with
// magnitude Binomial(t, errorRate), i.e. each of the t true units is
// miscounted with probability errorRate, and the row is normalized over
// [0, MaxRunLength]. The row peaks at observedRun == t while
// (t+1)*errorRate < 1. params builds its whole matrix with this from the
// parameter file's repeatErrorRate.
func GeometricMatrixRow(m *Matrix, b, strand, t int, errorRate float64) {
	binom := distuv.Binomial{N: float64(t), P: errorRate}
	var row [MaxRunLength + 1]float64
	total := 0.0
	for r := 0; r <= MaxRunLength; r++ {
		delta := r - t
		if delta < 0 {
			delta = -delta
		}
		p := math.Exp(binom.LogProb(float64(delta)))
		row[r] = p
		total += p
	}
	if total > 0 {
		for r := range row {
			row[r] /= total
		}
	}
	m[b][strand][t] = row
}

// ObservationsAtNode collects each read's observed run length at refNodeIdx,
// for every read whose alignment has a match pair touching that node, per
// SPEC_FULL.md section 4.7's "observed per-read run lengths" input.
func ObservationsAtNode(refNodeIdx int, reads []readadapter.BamChunkRead, alignments []readadapter.Alignment) []Observation {
	var obs []Observation
	for ri, al := range alignments {
		for _, p := range al {
			if p.RefRleIdx != refNodeIdx {
				continue
			}
			obs = append(obs, Observation{
				RunLength:     reads[ri].RleRead.Lengths[p.ReadRleIdx],
				ForwardStrand: reads[ri].ForwardStrand,
			})
		}
	}
	return obs
}

// ObservationsAtNodeForReads is ObservationsAtNode restricted to reads whose
// ID is present in ids, used to split observations across H1Reads/H2Reads in
// diploid mode.
func ObservationsAtNodeForReads(refNodeIdx int, reads []readadapter.BamChunkRead, alignments []readadapter.Alignment, ids map[string]bool) []Observation {
	var obs []Observation
	for ri, al := range alignments {
		if !ids[reads[ri].ID] {
			continue
		}
		for _, p := range al {
			if p.RefRleIdx != refNodeIdx {
				continue
			}
			obs = append(obs, Observation{
				RunLength:     reads[ri].RleRead.Lengths[p.ReadRleIdx],
				ForwardStrand: reads[ri].ForwardStrand,
			})
		}
	}
	return obs
}
