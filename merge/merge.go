// Package merge splices adjacent polished chunks together across their
// overlap window, per SPEC_FULL.md section 4.8.
package merge

import (
	farm "github.com/dgryski/go-farm"
	"github.com/antzucaro/matchr"
	"blainsmith.com/go/seahash"
	"github.com/minio/highwayhash"

	"github.com/grailbio/base/log"
)

// Chunk is one polished chunk's output: its contig-relative span and
// consensus sequence.
type Chunk struct {
	RefName string
	Start   int
	End     int
	Seq     string
	Index   int
}

// fingerprintKey is a triple hash of an overlap pair, redundant across three
// independent hash families so an accidental collision in one does not
// silently reuse a stale splice decision.
type fingerprintKey struct {
	seahash uint64
	farm    uint64
	hwhash  [highwayhash.Size]uint8
}

var hwKey [highwayhash.Size]uint8 // all-zero key: fingerprinting, not MAC'ing

func fingerprint(left, right string) fingerprintKey {
	buf := make([]byte, 0, len(left)+len(right)+1)
	buf = append(buf, left...)
	buf = append(buf, '\x00')
	buf = append(buf, right...)
	return fingerprintKey{
		seahash: seahash.Sum64(buf),
		farm:    farm.Hash64WithSeed(buf, 0),
		hwhash:  highwayhash.Sum(buf, hwKey[:]),
	}
}

// Merger splices consecutive chunks of the same contig, caching splice
// decisions by overlap fingerprint so repeated identical overlaps (common
// when many chunks share low-complexity flanks) are not re-aligned.
type Merger struct {
	OverlapLen   int
	MismatchGate int // matchr.Levenshtein pre-filter: skip full alignment above this distance.

	cache map[fingerprintKey]int // fingerprint -> chosen splice offset within the overlap window
}

// NewMerger returns a Merger with the given overlap window length.
func NewMerger(overlapLen int) *Merger {
	return &Merger{OverlapLen: overlapLen, MismatchGate: overlapLen, cache: map[fingerprintKey]int{}}
}

// MergeContig splices an ordered run of same-contig chunks into one
// consensus sequence, per SPEC_FULL.md section 4.8. Chunks must be sorted by
// Index and span contiguous, overlapping regions; the last chunk's trailing
// portion is emitted unmodified.
func (mg *Merger) MergeContig(chunks []Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	result := chunks[0].Seq
	for i := 1; i < len(chunks); i++ {
		result = mg.mergeTwo(result, chunks[i].Seq)
	}
	return result
}

func (mg *Merger) mergeTwo(left, right string) string {
	overlapLen := mg.OverlapLen
	if overlapLen > len(left) {
		overlapLen = len(left)
	}
	if overlapLen > len(right) {
		overlapLen = len(right)
	}
	if overlapLen <= 0 {
		return left + right
	}

	leftOverlap := left[len(left)-overlapLen:]
	rightOverlap := right[:overlapLen]
	prefix := left[:len(left)-overlapLen]
	suffix := right[overlapLen:]

	fp := fingerprint(leftOverlap, rightOverlap)
	if offset, ok := mg.cache[fp]; ok {
		return prefix + chosenJoin(leftOverlap, rightOverlap, offset) + suffix
	}

	var offset int
	if d := matchr.Levenshtein(leftOverlap, rightOverlap); d > mg.MismatchGate {
		log.Debug.Printf("merge: overlap mismatch gate tripped (levenshtein=%d, gate=%d), using midpoint splice", d, mg.MismatchGate)
		offset = overlapLen / 2
	} else {
		offset = bestSpliceOffset(leftOverlap, rightOverlap)
	}
	mg.cache[fp] = offset
	return prefix + chosenJoin(leftOverlap, rightOverlap, offset) + suffix
}

// spliceWindowRadius bounds how far around a candidate splice offset
// bestSpliceOffset looks when scoring local disagreement between the two
// overlap windows.
const spliceWindowRadius = 8

// bestSpliceOffset returns the position within [0, len(leftOverlap)] at
// which to switch from leftOverlap to rightOverlap. leftOverlap and
// rightOverlap are always the same length (both extracted as OverlapLen
// windows by mergeTwo). The chosen offset minimizes the count of positions
// where the two windows disagree within a centered radius of the candidate
// offset, tie-broken toward the window's midpoint, per SPEC_FULL.md section
// 4.8.
func bestSpliceOffset(leftOverlap, rightOverlap string) int {
	n := len(leftOverlap)
	if n == 0 {
		return 0
	}
	midpoint := n / 2
	bestOffset, bestMismatches, bestDist := 0, n+1, n+1
	for offset := 0; offset <= n; offset++ {
		lo := offset - spliceWindowRadius
		if lo < 0 {
			lo = 0
		}
		hi := offset + spliceWindowRadius
		if hi > n {
			hi = n
		}
		mismatches := 0
		for i := lo; i < hi; i++ {
			if leftOverlap[i] != rightOverlap[i] {
				mismatches++
			}
		}
		dist := offset - midpoint
		if dist < 0 {
			dist = -dist
		}
		if mismatches < bestMismatches || (mismatches == bestMismatches && dist < bestDist) {
			bestMismatches, bestOffset, bestDist = mismatches, offset, dist
		}
	}
	return bestOffset
}

// chosenJoin emits leftOverlap up to offset and rightOverlap from offset on.
func chosenJoin(leftOverlap, rightOverlap string, offset int) string {
	if offset < 0 {
		offset = 0
	}
	if offset > len(leftOverlap) {
		offset = len(leftOverlap)
	}
	return leftOverlap[:offset] + rightOverlap[offset:]
}
