// Package rle implements run-length encoding of homopolymer runs, the
// coordinate currency used throughout the polisher to represent both the
// draft reference and aligned reads.
package rle

import (
	"strings"

	"github.com/grailbio/base/errors"
)

// DefaultMaxRunLength caps a run length when no feature-type-specific cap
// applies. Individual callers (the feature-dump sidecar's Simple, SplitRLE,
// ChannelRLE, DiploidRLE variants) use their own cap, per SPEC_FULL.md
// section 4.11; 10/12/50 are the split/channel/diploid defaults.
const DefaultMaxRunLength = 50

// String is an RLE-compressed sequence: Lengths[i] is the run length of
// Bases[i] in the original expanded string. Bases has no two adjacent equal
// symbols, except where Compress split a run longer than its cap into
// consecutive runs of the same base.
type String struct {
	Bases   string
	Lengths []int
}

// Len returns the number of runs (the RLE-compressed length).
func (r String) Len() int { return len(r.Bases) }

// ExpandedLen returns the length of the string Expand would produce.
func (r String) ExpandedLen() int {
	n := 0
	for _, l := range r.Lengths {
		n += l
	}
	return n
}

// Compress scans s left to right and emits one symbol per maximal run of
// identical bytes. A run longer than maxRunLength is split into consecutive
// runs of at most maxRunLength each (0 means no cap), so no bases are lost.
func Compress(s string, maxRunLength int) String {
	if len(s) == 0 {
		return String{}
	}
	var bases strings.Builder
	var lengths []int
	runStart := 0
	flush := func(end int) {
		for start := runStart; start < end; {
			n := end - start
			if maxRunLength > 0 && n > maxRunLength {
				n = maxRunLength
			}
			bases.WriteByte(s[start])
			lengths = append(lengths, n)
			start += n
		}
	}
	for i := 1; i < len(s); i++ {
		if s[i] != s[runStart] {
			flush(i)
			runStart = i
		}
	}
	flush(len(s))
	return String{Bases: bases.String(), Lengths: lengths}
}

// Expand repeats each base in r by its run length, reproducing the original
// sequence (runs split by Compress's cap expand back to their full length).
func Expand(r String) string {
	var b strings.Builder
	b.Grow(r.ExpandedLen())
	for i, l := range r.Lengths {
		for j := 0; j < l; j++ {
			b.WriteByte(r.Bases[i])
		}
	}
	return b.String()
}

// PositionMap is the bidirectional index translation between an expanded
// (nucleotide) string and its RLE-compressed representation.
type PositionMap struct {
	// ExpandedToCompressed[i] is the compressed-run index containing expanded
	// position i.
	ExpandedToCompressed []int
	// CompressedToExpanded[i] is the expanded position at which compressed run
	// i starts.
	CompressedToExpanded []int
}

// NewPositionMap builds the position map for r.
func NewPositionMap(r String) PositionMap {
	m := PositionMap{
		ExpandedToCompressed: make([]int, 0, r.ExpandedLen()),
		CompressedToExpanded: make([]int, len(r.Lengths)),
	}
	expanded := 0
	for i, l := range r.Lengths {
		m.CompressedToExpanded[i] = expanded
		for j := 0; j < l; j++ {
			m.ExpandedToCompressed = append(m.ExpandedToCompressed, i)
		}
		expanded += l
	}
	return m
}

// ToCompressed translates an expanded-coordinate position to its compressed
// run index.
func (m PositionMap) ToCompressed(expandedPos int) (int, error) {
	if expandedPos < 0 || expandedPos >= len(m.ExpandedToCompressed) {
		return 0, errors.E(errors.Invalid, "rle: expanded position out of range")
	}
	return m.ExpandedToCompressed[expandedPos], nil
}

// ToExpanded translates a compressed run index to the expanded position at
// which that run begins.
func (m PositionMap) ToExpanded(compressedPos int) (int, error) {
	if compressedPos < 0 || compressedPos >= len(m.CompressedToExpanded) {
		return 0, errors.E(errors.Invalid, "rle: compressed position out of range")
	}
	return m.CompressedToExpanded[compressedPos], nil
}
