// Package poa builds and iteratively refines a partial-order alignment graph
// over a chunk's reference, producing a consensus RLE string, per
// SPEC_FULL.md section 4.5.
package poa

import (
	"github.com/grailbio/polish/readadapter"
	"github.com/grailbio/polish/rle"
)

// Insert is a side branch attached to the node preceding it: an inserted RLE
// run with its accumulated read support.
type Insert struct {
	Base   byte
	Length int
	Weight float64
}

// Node is one position of the POA backbone.
type Node struct {
	Base   byte
	Length int

	// Weight is the accumulated support for this node surviving in the
	// consensus (i.e. reads whose alignment passes through it as a match).
	Weight float64
	// DeleteWeight is the accumulated support for reads that skip this node
	// (a deletion relative to the current consensus).
	DeleteWeight float64
	// BaseVotes tallies per-base observed support, used to pick the
	// consensus base for this node (SNV correction).
	BaseVotes map[byte]float64

	Inserts []Insert
}

// Graph is a POA DAG degenerated to its backbone-plus-side-branches
// representation: n0 is an implicit start sentinel (not materialized), and
// every node in Nodes, starting at Nodes[0], spells the current consensus
// when included (Weight >= DeleteWeight).
type Graph struct {
	Nodes []Node
}

// AlignParams holds the pair-HMM-style probabilities used both to align reads
// to the current consensus and to decide which matches/inserts/deletes to
// fold into the POA. All fields are probabilities in (0,1]; internally they
// are converted to substitution/gap costs for alignment.
type AlignParams struct {
	Match          float64
	Substitution   float64
	InsertOpen     float64
	InsertExtend   float64
	DeleteOpen     float64
	DeleteExtend   float64
	PosteriorThreshold float64
	MaxPasses      int
}

// DefaultAlignParams mirror the teacher's style of providing sane zero-value
// fallbacks for parameters that weren't loaded.
var DefaultAlignParams = AlignParams{
	Match:              0.9,
	Substitution:       0.05,
	InsertOpen:         0.02,
	InsertExtend:       0.3,
	DeleteOpen:         0.02,
	DeleteExtend:       0.3,
	PosteriorThreshold: 0.5,
	MaxPasses:          10,
}

// NewStraightLine builds the initial POA as a straight line over ref.
func NewStraightLine(ref rle.String) *Graph {
	nodes := make([]Node, len(ref.Bases))
	for i := range nodes {
		nodes[i] = Node{
			Base:      ref.Bases[i],
			Length:    ref.Lengths[i],
			BaseVotes: map[byte]float64{ref.Bases[i]: 1e-6}, // small prior keeps ref base as tiebreak
		}
	}
	return &Graph{Nodes: nodes}
}

// RefString returns the graph's current consensus as an RLE string: the
// maximum-weight topological path, i.e. every node whose support is at least
// its deletion support, with the node's majority-voted base.
func (g *Graph) RefString() rle.String {
	var bases []byte
	var lengths []int
	for _, n := range g.Nodes {
		if n.Weight < n.DeleteWeight {
			continue
		}
		bases = append(bases, majorityBase(n))
		lengths = append(lengths, n.Length)
	}
	return rle.String{Bases: string(bases), Lengths: lengths}
}

func majorityBase(n Node) byte {
	best := n.Base
	bestVotes := -1.0
	for b, v := range n.BaseVotes {
		if v > bestVotes {
			best, bestVotes = b, v
		}
	}
	return best
}

// RealignAll implements poa_realignAll: iterate pairwise read-to-consensus
// alignment and POA update until the consensus stabilizes or MaxPasses is
// reached.
func RealignAll(reads []readadapter.BamChunkRead, refRle rle.String, params AlignParams) *Graph {
	g := NewStraightLine(refRle)
	if params.MaxPasses <= 0 {
		params = DefaultAlignParams
	}
	prev := rle.Expand(g.RefString())
	for pass := 0; pass < params.MaxPasses; pass++ {
		resetVotes(g)
		for _, r := range reads {
			consensus := g.RefString()
			pairs := PairwiseAlign(r.RleRead, consensus, params)
			// The consensus omits dropped nodes; translate each consensus
			// index back to the node it came from.
			var nodeOf []int
			for i, n := range g.Nodes {
				if n.Weight >= n.DeleteWeight {
					nodeOf = append(nodeOf, i)
				}
			}
			for k := range pairs {
				pairs[k].RefIdx = nodeOf[pairs[k].RefIdx]
			}
			applyAlignment(g, r.RleRead, pairs)
		}
		cur := rle.Expand(g.RefString())
		if cur == prev {
			break
		}
		prev = cur
	}
	return g
}

func resetVotes(g *Graph) {
	for i := range g.Nodes {
		g.Nodes[i].Weight = 0
		g.Nodes[i].DeleteWeight = 0
		g.Nodes[i].Inserts = nil
		// Keep the small reference-base prior so an unsupported node still
		// reports its original base rather than an arbitrary map iteration
		// order winner.
		ref := g.Nodes[i].Base
		g.Nodes[i].BaseVotes = map[byte]float64{ref: 1e-6}
	}
}

// applyAlignment folds one read's alignment to the current consensus into
// the POA's node weights, per SPEC_FULL.md section 4.5: matches accumulate
// node weight and vote for their base; positions the read's alignment skips
// accumulate delete weight; read bases between two consensus anchors with no
// consensus counterpart become a side-branch Insert on the preceding node.
func applyAlignment(g *Graph, read rle.String, pairs []Pair) {
	matchedRef := make(map[int]bool, len(pairs))
	lastRef := -1
	lastRead := -1
	for _, p := range pairs {
		matchedRef[p.RefIdx] = true
		g.Nodes[p.RefIdx].Weight++
		g.Nodes[p.RefIdx].BaseVotes[read.Bases[p.ReadIdx]]++

		if p.ReadIdx > lastRead+1 && lastRef >= 0 {
			// Read bases between the previous and this anchor with no
			// reference counterpart: an insertion after lastRef.
			for j := lastRead + 1; j < p.ReadIdx; j++ {
				addInsert(&g.Nodes[lastRef], read.Bases[j], read.Lengths[j])
			}
		}
		lastRef, lastRead = p.RefIdx, p.ReadIdx
	}
	for i := range g.Nodes {
		if !matchedRef[i] {
			g.Nodes[i].DeleteWeight++
		}
	}
}

func addInsert(n *Node, base byte, length int) {
	for i := range n.Inserts {
		if n.Inserts[i].Base == base && n.Inserts[i].Length == length {
			n.Inserts[i].Weight++
			return
		}
	}
	n.Inserts = append(n.Inserts, Insert{Base: base, Length: length, Weight: 1})
}
