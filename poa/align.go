package poa

import (
	"math"

	"github.com/grailbio/polish/rle"
)

// Pair is one (readIdx, refIdx) match produced by PairwiseAlign, in
// RLE-compressed coordinates of the two input strings.
type Pair struct {
	ReadIdx int
	RefIdx  int
}

const negInf = math.MaxFloat64 / 4 * -1

type cell struct {
	m, ix, iy float64
}

// PairwiseAlign computes a banded affine-gap global alignment between read
// and ref (both RLE strings, compared run-by-run) and returns the match
// pairs on the best-scoring path, approximating the posterior-decoded
// matches of a forward-backward pair-HMM by Viterbi traceback under the same
// parameters (SPEC_FULL.md section 4.5). The band follows the diagonal
// implied by the two sequences' relative lengths, widened by a fixed margin;
// a later pass narrows around the previous pass's alignment in the full
// design, this implementation uses a constant margin for simplicity.
func PairwiseAlign(read, ref rle.String, params AlignParams) []Pair {
	n, m := len(read.Bases), len(ref.Bases)
	if n == 0 || m == 0 {
		return nil
	}

	band := 100
	if band > m {
		band = m
	}

	logMatch := math.Log(params.Match)
	logSub := math.Log(params.Substitution)
	logInsOpen := math.Log(params.InsertOpen)
	logInsExt := math.Log(params.InsertExtend)
	logDelOpen := math.Log(params.DeleteOpen)
	logDelExt := math.Log(params.DeleteExtend)

	lo := make([]int, n+1)
	hi := make([]int, n+1)
	for i := 0; i <= n; i++ {
		center := i * m / maxInt(n, 1)
		l := center - band
		h := center + band
		if l < 0 {
			l = 0
		}
		if h > m {
			h = m
		}
		lo[i], hi[i] = l, h
	}

	grid := make([][]cell, n+1)
	for i := range grid {
		grid[i] = make([]cell, hi[i]-lo[i]+1)
		for k := range grid[i] {
			grid[i][k] = cell{negInf, negInf, negInf}
		}
	}
	grid[0][0-lo[0]] = cell{0, negInf, negInf}

	at := func(i, j int) *cell {
		if j < lo[i] || j > hi[i] {
			return nil
		}
		return &grid[i][j-lo[i]]
	}

	for i := 0; i <= n; i++ {
		for j := lo[i]; j <= hi[i]; j++ {
			if i == 0 && j == 0 {
				continue
			}
			c := at(i, j)
			best := negInf

			if i > 0 && j > 0 {
				if prev := at(i-1, j-1); prev != nil {
					s := logSub
					if read.Bases[i-1] == ref.Bases[j-1] {
						s = logMatch
					}
					v := maxFloat(prev.m, prev.ix, prev.iy) + s
					if v > best {
						best = v
					}
					c.m = v
				}
			}
			if i > 0 {
				if prev := at(i-1, j); prev != nil {
					v := maxFloat(prev.m+logInsOpen, prev.ix+logInsExt)
					c.ix = v
					if v > best {
						best = v
					}
				}
			}
			if j > 0 {
				if prev := at(i, j-1); prev != nil {
					v := maxFloat(prev.m+logDelOpen, prev.iy+logDelExt)
					c.iy = v
					if v > best {
						best = v
					}
				}
			}
		}
	}

	// Traceback from the best-scoring endpoint.
	i, j := n, m
	end := at(i, j)
	if end == nil {
		return nil
	}
	state := 0 // 0=M, 1=Ix, 2=Iy
	switch {
	case end.ix >= end.m && end.ix >= end.iy:
		state = 1
	case end.iy >= end.m && end.iy >= end.ix:
		state = 2
	}

	var pairs []Pair
	for i > 0 || j > 0 {
		switch state {
		case 0:
			if i == 0 || j == 0 {
				state = 1
				continue
			}
			pairs = append(pairs, Pair{ReadIdx: i - 1, RefIdx: j - 1})
			prev := at(i-1, j-1)
			i, j = i-1, j-1
			if prev == nil {
				state = 0
				continue
			}
			state = argmaxState(prev.m, prev.ix, prev.iy)
		case 1:
			if i == 0 {
				state = 2
				continue
			}
			prev := at(i-1, j)
			i = i - 1
			if prev == nil {
				state = 0
				continue
			}
			if prev.m+logInsOpen >= prev.ix+logInsExt {
				state = 0
			} else {
				state = 1
			}
		case 2:
			if j == 0 {
				state = 0
				continue
			}
			prev := at(i, j-1)
			j = j - 1
			if prev == nil {
				state = 0
				continue
			}
			if prev.m+logDelOpen >= prev.iy+logDelExt {
				state = 0
			} else {
				state = 2
			}
		}
	}

	// Reverse into ascending order.
	for l, r := 0, len(pairs)-1; l < r; l, r = l+1, r-1 {
		pairs[l], pairs[r] = pairs[r], pairs[l]
	}
	return pairs
}

func argmaxState(m, ix, iy float64) int {
	if m >= ix && m >= iy {
		return 0
	}
	if ix >= iy {
		return 1
	}
	return 2
}

func maxFloat(vs ...float64) float64 {
	best := negInf
	for _, v := range vs {
		if v > best {
			best = v
		}
	}
	return best
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
