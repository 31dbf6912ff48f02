// Package bubble detects variant bubbles in a POA graph and partitions reads
// across two haplotypes by a Bayesian site-posterior model, per
// SPEC_FULL.md section 4.6.
package bubble

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/grailbio/polish/poa"
	"github.com/grailbio/polish/readadapter"
	"github.com/grailbio/polish/rle"
)

// BackgroundErrorRate is the assumed per-base substitution rate under the
// null (no true variant) model, used by DetectBubbles to score how
// surprising a bubble's minor-allele count is.
const BackgroundErrorRate = 0.02

// Allele is one candidate RLE string realized at a bubble, with its
// accumulated read support.
type Allele struct {
	RleString rle.String
	// ReadIDs is the set of read IDs observed supporting this allele.
	ReadIDs map[string]bool
}

// Bubble is a POA node position with two or more candidate alleles. NodeIdx
// indexes into the POA's node array (the bubble graph never owns POA nodes,
// only references them, per SPEC_FULL.md section 9).
type Bubble struct {
	NodeIdx      int
	Alleles      []Allele
	RefAlleleIdx int
	// Quality is -log(P(minor allele count | BackgroundErrorRate)) under a
	// binomial noise null: higher means the minor allele is less plausibly
	// sequencing error.
	Quality float64
}

// Graph is an ordered list of bubbles over a chunk.
type Graph struct {
	RefStart int
	Bubbles  []Bubble
}

// DetectBubbles enumerates POA node positions where more than one base
// accumulates support above threshold (a fraction of that node's total
// votes), per SPEC_FULL.md section 4.6.
func DetectBubbles(g *poa.Graph, threshold float64) *Graph {
	bg := &Graph{}
	for i, n := range g.Nodes {
		total := 0.0
		for _, v := range n.BaseVotes {
			total += v
		}
		if total <= 0 {
			continue
		}
		var bases []byte
		for b, v := range n.BaseVotes {
			if v/total >= threshold {
				bases = append(bases, b)
			}
		}
		if len(bases) < 2 {
			continue
		}
		sort.Slice(bases, func(a, c int) bool { return bases[a] < bases[c] })
		b := Bubble{NodeIdx: i}
		topVotes := 0.0
		for _, base := range bases {
			allele := Allele{RleString: rle.String{Bases: string([]byte{base}), Lengths: []int{n.Length}}, ReadIDs: map[string]bool{}}
			if base == n.Base {
				b.RefAlleleIdx = len(b.Alleles)
			}
			if v := n.BaseVotes[base]; v > topVotes {
				topVotes = v
			}
			b.Alleles = append(b.Alleles, allele)
		}
		minorCount := total - topVotes
		binom := distuv.Binomial{N: total, P: BackgroundErrorRate}
		b.Quality = -binom.LogProb(minorCount)
		bg.Bubbles = append(bg.Bubbles, b)
	}
	return bg
}

// GenomeFragment is the phaser's output: per-bubble allele assignment for
// each of the two haplotypes, per SPEC_FULL.md section 3.
type GenomeFragment struct {
	RefStart int
	Length   int
	Hap1     []int // Hap1[i] indexes into Bubbles[i].Alleles
	Hap2     []int
}

// PhaseParams controls convergence and the unphased-read tolerance.
type PhaseParams struct {
	MaxIters  int
	Tolerance float64 // tau: |LLR| <= Tolerance marks a read unphased.
	Match     float64
	Substitution float64
}

// DefaultPhaseParams matches poa.DefaultAlignParams' match/substitution
// probabilities so phasing and POA realignment agree on base-call
// confidence.
var DefaultPhaseParams = PhaseParams{
	MaxIters:     20,
	Tolerance:    2.0,
	Match:        0.9,
	Substitution: 0.05,
}

// Phase partitions reads across two haplotypes by alternating maximum
// log-likelihood allele choice and read reassignment, per SPEC_FULL.md
// section 4.6. It returns the resulting GenomeFragment plus the read-ID sets
// for each haplotype; reads whose log-likelihood ratio falls within
// ±params.Tolerance are omitted from both sets (labeled unphased).
func Phase(bg *Graph, reads []readadapter.BamChunkRead, alignments []readadapter.Alignment, params PhaseParams) (*GenomeFragment, map[string]bool, map[string]bool) {
	if params.MaxIters <= 0 {
		params = DefaultPhaseParams
	}
	logMatch := logOf(params.Match)
	logSub := logOf(params.Substitution)

	// coverage[bubbleIdx] -> readIdx -> observed base, only for reads that
	// cover that bubble's node.
	nodeToBubble := make(map[int]int, len(bg.Bubbles))
	for bi, b := range bg.Bubbles {
		nodeToBubble[b.NodeIdx] = bi
	}
	coverage := make([]map[int]byte, len(bg.Bubbles)) // bubbleIdx -> readIdx -> base
	for i := range coverage {
		coverage[i] = map[int]byte{}
	}
	for ri, al := range alignments {
		for _, p := range al {
			if bi, ok := nodeToBubble[p.RefRleIdx]; ok {
				coverage[bi][ri] = reads[ri].RleRead.Bases[p.ReadRleIdx]
			}
		}
	}

	// Deterministic initial assignment: order reads by ID, alternate H1/H2.
	order := make([]int, len(reads))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, c int) bool { return reads[order[a]].ID < reads[order[c]].ID })
	hapOf := make([]int, len(reads)) // 1 or 2
	for rank, ri := range order {
		if rank%2 == 0 {
			hapOf[ri] = 1
		} else {
			hapOf[ri] = 2
		}
	}

	hap1Allele := make([]int, len(bg.Bubbles))
	hap2Allele := make([]int, len(bg.Bubbles))

	ll := func(base byte, allele byte) float64 {
		if base == allele {
			return logMatch
		}
		return logSub
	}

	for iter := 0; iter < params.MaxIters; iter++ {
		changed := false

		// (a) choose per-bubble alleles maximizing summed log-likelihood for
		// each haplotype given current read assignment.
		for bi, b := range bg.Bubbles {
			bestH1, bestH1Score := b.RefAlleleIdx, negInf
			bestH2, bestH2Score := b.RefAlleleIdx, negInf
			for ai, allele := range b.Alleles {
				var s1, s2 float64
				for ri, base := range coverage[bi] {
					score := ll(base, allele.RleString.Bases[0])
					if hapOf[ri] == 1 {
						s1 += score
					} else {
						s2 += score
					}
				}
				if s1 > bestH1Score {
					bestH1Score, bestH1 = s1, ai
				}
				if s2 > bestH2Score {
					bestH2Score, bestH2 = s2, ai
				}
			}
			if hap1Allele[bi] != bestH1 || hap2Allele[bi] != bestH2 {
				changed = true
			}
			hap1Allele[bi], hap2Allele[bi] = bestH1, bestH2
		}

		// (b) reassign each read to the haplotype giving higher total
		// log-likelihood across all bubbles it intersects.
		for ri := range reads {
			var total1, total2 float64
			for bi, b := range bg.Bubbles {
				base, ok := coverage[bi][ri]
				if !ok {
					continue
				}
				total1 += ll(base, b.Alleles[hap1Allele[bi]].RleString.Bases[0])
				total2 += ll(base, b.Alleles[hap2Allele[bi]].RleString.Bases[0])
			}
			newHap := 1
			if total2 > total1 {
				newHap = 2
			}
			if newHap != hapOf[ri] {
				changed = true
				hapOf[ri] = newHap
			}
		}

		if !changed {
			break
		}
	}

	h1Reads := map[string]bool{}
	h2Reads := map[string]bool{}
	for ri := range reads {
		var total1, total2 float64
		for bi, b := range bg.Bubbles {
			base, ok := coverage[bi][ri]
			if !ok {
				continue
			}
			total1 += ll(base, b.Alleles[hap1Allele[bi]].RleString.Bases[0])
			total2 += ll(base, b.Alleles[hap2Allele[bi]].RleString.Bases[0])
		}
		diff := total1 - total2
		if diff < 0 {
			diff = -diff
		}
		if diff <= params.Tolerance {
			continue // unphased
		}
		if total1 > total2 {
			h1Reads[reads[ri].ID] = true
		} else {
			h2Reads[reads[ri].ID] = true
		}
	}

	// Record allele support for downstream reporting.
	for bi, b := range bg.Bubbles {
		for ri, base := range coverage[bi] {
			for ai := range b.Alleles {
				if b.Alleles[ai].RleString.Bases[0] == base {
					bg.Bubbles[bi].Alleles[ai].ReadIDs[reads[ri].ID] = true
				}
			}
		}
	}

	return &GenomeFragment{
		RefStart: bg.RefStart,
		Length:   len(bg.Bubbles),
		Hap1:     hap1Allele,
		Hap2:     hap2Allele,
	}, h1Reads, h2Reads
}

const negInf = -1e300

func logOf(p float64) float64 {
	if p <= 0 {
		return negInf
	}
	return math.Log(p)
}
