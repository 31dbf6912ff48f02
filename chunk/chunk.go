// Package chunk partitions contigs into overlapping windows for independent,
// parallel polishing, keyed on the alignment-file contig list. Each chunk's
// padded interval is what the orchestrator hands to the alignment reader as
// a github.com/grailbio/polish/encoding/bam Shard.
package chunk

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/base/errors"
)

// Chunk is a window over a contig: [boundaryStart, boundaryEnd) is the full
// padded interval read by the Read adapter; [start, end) is the un-padded
// interval this chunk is responsible for emitting into the final assembly.
type Chunk struct {
	RefName       string
	BoundaryStart int
	Start         int
	End           int
	BoundaryEnd   int

	// ChunkerRef is the reference length of RefName, cached so downstream
	// stages don't need to consult the header again.
	ChunkerRef int

	// Index is this chunk's position in the chunker's overall emission order.
	// The Orchestrator uses it to write into a preallocated, dense result
	// slice (SPEC_FULL.md section 5).
	Index int
}

// Region restricts chunking to a sub-interval of one contig, as parsed from
// the CLI's "-r name[:start-end]" flag.
type Region struct {
	RefName string
	// HasInterval is false when the region names only a contig, with no
	// ":start-end" suffix, meaning "the whole contig".
	HasInterval bool
	Start, End  int
}

// ParseRegion parses a "name" or "name:start-end" region string.
func ParseRegion(s string) (Region, error) {
	colon := strings.Index(s, ":")
	if colon == 0 {
		return Region{}, errors.E(errors.Invalid, fmt.Sprintf("chunk: empty region contig in %q", s))
	}
	if colon < 0 {
		return Region{RefName: s}, nil
	}
	name, interval := s[:colon], s[colon+1:]
	dash := strings.Index(interval, "-")
	if dash < 0 {
		return Region{}, errors.E(errors.Invalid, fmt.Sprintf("chunk: malformed region interval in %q", s))
	}
	startStr, endStr := interval[:dash], interval[dash+1:]
	start, err := strconv.Atoi(startStr)
	if err != nil {
		return Region{}, errors.E(errors.Invalid, fmt.Sprintf("chunk: malformed region start in %q", s))
	}
	end, err := strconv.Atoi(endStr)
	if err != nil {
		return Region{}, errors.E(errors.Invalid, fmt.Sprintf("chunk: malformed region end in %q", s))
	}
	if start < 0 || end < start {
		return Region{}, errors.E(errors.Invalid, fmt.Sprintf("chunk: inverted region in %q", s))
	}
	return Region{RefName: name, HasInterval: true, Start: start, End: end}, nil
}

// Chunker emits ordered windows over contigs found in an alignment header.
type Chunker struct {
	header        *sam.Header
	region        *Region
	chunkSize     int
	chunkBoundary int
}

// New constructs a Chunker. header supplies contig names and lengths (scanned
// from the alignment file, per SPEC_FULL.md section 4.2); region, if non-nil,
// restricts chunking to one contig (optionally one interval of it).
func New(header *sam.Header, region *Region, chunkSize, chunkBoundary int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, errors.E(errors.Invalid, "chunk: chunkSize must be positive")
	}
	if chunkBoundary < 0 {
		return nil, errors.E(errors.Invalid, "chunk: chunkBoundary must be non-negative")
	}
	return &Chunker{header: header, region: region, chunkSize: chunkSize, chunkBoundary: chunkBoundary}, nil
}

// Chunks returns every chunk, in contig-header order then ascending
// coordinate, per SPEC_FULL.md section 4.2's ordering requirement.
func (c *Chunker) Chunks() ([]Chunk, error) {
	var out []Chunk
	for _, ref := range c.header.Refs() {
		refName := NormalizeContigName(ref.Name())
		lo, hi := 0, ref.Len()
		if c.region != nil {
			if NormalizeContigName(c.region.RefName) != refName {
				continue
			}
			if c.region.HasInterval {
				lo, hi = c.region.Start, c.region.End
				if hi > ref.Len() {
					hi = ref.Len()
				}
				if lo > hi {
					lo = hi
				}
			}
		}
		for start := lo; start < hi; start += c.chunkSize {
			end := start + c.chunkSize
			if end > hi {
				end = hi
			}
			boundaryStart := start - c.chunkBoundary
			if boundaryStart < 0 {
				boundaryStart = 0
			}
			boundaryEnd := end + c.chunkBoundary
			if boundaryEnd > ref.Len() {
				boundaryEnd = ref.Len()
			}
			out = append(out, Chunk{
				RefName:       refName,
				BoundaryStart: boundaryStart,
				Start:         start,
				End:           end,
				BoundaryEnd:   boundaryEnd,
				ChunkerRef:    ref.Len(),
				Index:         len(out),
			})
		}
	}
	return out, nil
}

// NormalizeContigName strips everything after the first run of whitespace, as
// FASTA and BAM headers may carry trailing metadata after the contig name.
func NormalizeContigName(name string) string {
	if i := strings.IndexAny(name, " \t"); i >= 0 {
		return name[:i]
	}
	return name
}
