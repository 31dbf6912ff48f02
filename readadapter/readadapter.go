// Package readadapter converts aligned sam.Records intersecting a chunk's
// boundary window into window-local, optionally RLE-compressed reads and
// their match-pair alignments against the chunk's reference.
package readadapter

import (
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/polish/chunk"
	gbam "github.com/grailbio/polish/encoding/bam"
	"github.com/grailbio/polish/rle"
	"v.io/x/lib/vlog"
)

// BamChunkRead is a read clipped to a chunk's boundary window, per
// SPEC_FULL.md section 3.
type BamChunkRead struct {
	ID            string
	RleRead       rle.String
	Qualities     []byte
	ForwardStrand bool
}

// AlignPair is one (readRleIdx, refRleIdx) match in RLE coordinates.
type AlignPair struct {
	ReadRleIdx int
	RefRleIdx  int
}

// Alignment is a read's alignment to the chunk reference: a strictly
// monotonically increasing sequence of match pairs in RLE coordinates.
type Alignment []AlignPair

// ErrMalformedAlignment marks a record whose CIGAR length disagrees with its
// sequence length, per SPEC_FULL.md section 4.3. Convert logs such a record
// and skips it.
var ErrMalformedAlignment = errors.E(errors.Invalid, "readadapter: CIGAR length disagrees with sequence length")

// Convert builds (reads, alignments) for every record in recs whose
// reference span intersects [c.BoundaryStart, c.BoundaryEnd), following
// SPEC_FULL.md section 4.3. refRle is the chunk's RLE-compressed reference
// and refMap its position map. useRLE controls whether read sequences are
// themselves RLE-compressed before alignment; when it is false, refMap is not
// consulted and each pair's RefRleIdx is the window-local expanded offset, so
// the caller passes a reference whose runs all have length 1. A record that
// fails to convert is logged at vlog.VI(1) and skipped.
func Convert(c chunk.Chunk, refRle rle.String, refMap rle.PositionMap, recs []*sam.Record, useRLE bool, maxRunLength int) ([]BamChunkRead, []Alignment, error) {
	var reads []BamChunkRead
	var alignments []Alignment
	for _, rec := range recs {
		if rec.Flags&sam.Unmapped != 0 {
			continue
		}
		refStart := rec.Pos
		refEnd := refStart + alignedRefSpan(rec)
		if refEnd <= c.BoundaryStart || refStart >= c.BoundaryEnd {
			continue
		}
		read, alignment, err := convertOne(c, refRle, refMap, rec, useRLE, maxRunLength)
		if err != nil {
			vlog.VI(1).Infof("readadapter: skipping read %s: %v", rec.Name, err)
			continue
		}
		if len(alignment) == 0 {
			continue
		}
		reads = append(reads, read)
		alignments = append(alignments, alignment)
	}
	return reads, alignments, nil
}

// alignedRefSpan returns the number of reference bases consumed by rec's
// CIGAR.
func alignedRefSpan(rec *sam.Record) int {
	span := 0
	for _, op := range rec.Cigar {
		if op.Type().Consumes().Reference > 0 {
			span += op.Len()
		}
	}
	return span
}

// cigarQueryLen returns the number of query bases consumed by a CIGAR,
// including soft clips, for validation against the sequence length.
func cigarQueryLen(cigar sam.Cigar) int {
	n := 0
	for _, op := range cigar {
		if op.Type().Consumes().Query > 0 {
			n += op.Len()
		}
	}
	return n
}

func convertOne(c chunk.Chunk, refRle rle.String, refMap rle.PositionMap, rec *sam.Record, useRLE bool, maxRunLength int) (BamChunkRead, Alignment, error) {
	seq := decodeSeq(rec)
	if cigarQueryLen(rec.Cigar) != len(seq) {
		return BamChunkRead{}, nil, ErrMalformedAlignment
	}

	var readBases []byte
	var matches []AlignPair // (readExpandedIdx, refExpandedIdx-within-chunk)

	refPos := rec.Pos
	queryPos := 0
	for _, op := range rec.Cigar {
		consume := op.Type().Consumes()
		n := op.Len()
		switch {
		case consume.Query > 0 && consume.Reference > 0:
			// Match/mismatch block: each base maps 1:1 to a reference position.
			for i := 0; i < n; i++ {
				rp := refPos + i
				if rp >= c.BoundaryStart && rp < c.BoundaryEnd {
					readBases = append(readBases, seq[queryPos+i])
					matches = append(matches, AlignPair{
						ReadRleIdx: len(readBases) - 1,
						RefRleIdx:  rp - c.BoundaryStart,
					})
				}
			}
		case consume.Query > 0 && consume.Reference == 0:
			if op.Type() == sam.CigarSoftClipped {
				// Soft clips are excluded from the window read, per section 4.3.
			} else {
				// Insertion: part of the read, not aligned to any reference base.
				for i := 0; i < n; i++ {
					if refPos >= c.BoundaryStart && refPos < c.BoundaryEnd {
						readBases = append(readBases, seq[queryPos+i])
					}
				}
			}
		case consume.Reference > 0 && consume.Query == 0:
			// Deletion: advances the reference without consuming read bases.
		}
		refPos += boolToInt(consume.Reference > 0) * n
		queryPos += boolToInt(consume.Query > 0) * n
	}

	if len(matches) == 0 {
		return BamChunkRead{}, nil, nil
	}

	var readRle rle.String
	var alignment Alignment
	if useRLE {
		runCap := maxRunLength
		if runCap <= 0 {
			runCap = rle.DefaultMaxRunLength
		}
		readRle = rle.Compress(string(readBases), runCap)
		readMap := rle.NewPositionMap(readRle)
		seen := make(map[[2]int]bool, len(matches))
		for _, m := range matches {
			readCompressed, err := readMap.ToCompressed(m.ReadRleIdx)
			if err != nil {
				continue
			}
			refCompressed, err := refMap.ToCompressed(m.RefRleIdx)
			if err != nil {
				continue
			}
			key := [2]int{readCompressed, refCompressed}
			if seen[key] {
				continue
			}
			seen[key] = true
			alignment = append(alignment, AlignPair{ReadRleIdx: readCompressed, RefRleIdx: refCompressed})
		}
	} else {
		readRle = rle.String{Bases: string(readBases), Lengths: onesOf(len(readBases))}
		for _, m := range matches {
			alignment = append(alignment, m)
		}
	}

	var qual []byte
	if len(rec.Qual) > 0 && rec.Qual[0] != 0xff {
		qual = append(qual, rec.Qual...)
	}

	return BamChunkRead{
		ID:            rec.Name,
		RleRead:       readRle,
		Qualities:     qual,
		ForwardStrand: rec.Flags&sam.Reverse == 0,
	}, alignment, nil
}

func onesOf(n int) []int {
	l := make([]int, n)
	for i := range l {
		l[i] = 1
	}
	return l
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// decodeSeq unpacks rec.Seq (2 bases per byte, nibble packed) into one
// base-code byte per position via gbam.UnpackNibbles, then maps each nibble
// to its ASCII base, mirroring pileup/snp's convertSamr.
func decodeSeq(rec *sam.Record) []byte {
	n := rec.Seq.Length
	if n == 0 {
		return nil
	}
	seq8 := make([]byte, n)
	gbam.UnpackNibbles(seq8, gbam.UnsafeDoubletsToBytes(rec.Seq.Seq))
	dst := make([]byte, n)
	for i, code := range seq8 {
		dst[i] = baseTable[code&0xf]
	}
	return dst
}

var baseTable = [16]byte{'=', 'A', 'C', 'M', 'G', 'R', 'S', 'V', 'T', 'W', 'Y', 'H', 'K', 'D', 'B', 'N'}
