// Package downsample implements poorMansDownsample: reducing per-window read
// coverage to a target depth while keeping the selection deterministic and
// reproducible by drawing from a seeded math/rand source rather than a
// package-global one.
package downsample

import (
	"math/rand"

	"github.com/grailbio/polish/readadapter"
)

// Result is the outcome of a downsampling pass.
type Result struct {
	// Kept are the reads retained, in their original relative order.
	Kept []readadapter.BamChunkRead
	// KeptAlignments are the alignments corresponding 1:1 with Kept.
	KeptAlignments []readadapter.Alignment
	// Discarded are the reads dropped to respect the depth cap.
	Discarded []readadapter.BamChunkRead
	// Applied is false when the input was already at or below the target
	// depth and no reads were dropped.
	Applied bool
}

// Downsample implements poorMansDownsample (SPEC_FULL.md section 4.4).
// depth is the intended per-base coverage D; windowLen is L, the chunk
// width; chunkIdx and seed together determine the deterministic permutation
// used to select reads, so the same (chunkIdx, seed, inputs) always yields
// the same partition.
func Downsample(depth, windowLen int, reads []readadapter.BamChunkRead, alignments []readadapter.Alignment, chunkIdx int, seed int64) Result {
	total := 0
	for _, r := range reads {
		total += r.RleRead.ExpandedLen()
	}
	budget := depth * windowLen
	if total <= budget {
		return Result{Kept: reads, KeptAlignments: alignments, Applied: false}
	}

	perm := rand.New(rand.NewSource(seed + int64(chunkIdx))).Perm(len(reads))

	keepIdx := make(map[int]bool, len(reads))
	cum := 0
	for _, idx := range perm {
		if cum >= budget {
			break
		}
		keepIdx[idx] = true
		cum += reads[idx].RleRead.ExpandedLen()
	}

	res := Result{Applied: true}
	for i, r := range reads {
		if keepIdx[i] {
			res.Kept = append(res.Kept, r)
			res.KeptAlignments = append(res.KeptAlignments, alignments[i])
		} else {
			res.Discarded = append(res.Discarded, r)
		}
	}
	return res
}
