// Package polish is the core orchestrator: it drives the chunker, read
// adapter, downsampler, POA engine, bubble phaser, repeat-count estimator,
// and chunk merger across a contig set, in parallel, per SPEC_FULL.md
// sections 4.9, 4.10, 4.11 and 5.
package polish

import (
	"context"
	"math/rand"
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/errorreporter"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/hts/sam"
	"v.io/x/lib/vlog"

	"github.com/grailbio/polish/bubble"
	"github.com/grailbio/polish/chunk"
	"github.com/grailbio/polish/downsample"
	gbam "github.com/grailbio/polish/encoding/bam"
	"github.com/grailbio/polish/encoding/bamprovider"
	"github.com/grailbio/polish/encoding/fasta"
	"github.com/grailbio/polish/merge"
	"github.com/grailbio/polish/params"
	"github.com/grailbio/polish/poa"
	"github.com/grailbio/polish/readadapter"
	"github.com/grailbio/polish/repeat"
	"github.com/grailbio/polish/rle"
)

// FeatureSink is the feature-dump sidecar's capability boundary, per
// SPEC_FULL.md section 4.11: the core orchestrator calls through this when
// enabled; the sidecar's own neural feature encoding is out of scope.
type FeatureSink interface {
	WriteFeatures(chunkIdx int, g *poa.Graph, reads []readadapter.BamChunkRead, kind params.FeatureKind) error
}

type noopFeatureSink struct{}

func (noopFeatureSink) WriteFeatures(int, *poa.Graph, []readadapter.BamChunkRead, params.FeatureKind) error {
	return nil
}

// NoopFeatureSink is used when no feature dump was requested.
var NoopFeatureSink FeatureSink = noopFeatureSink{}

// Options configures one orchestrator run. Worker concurrency is controlled
// process-wide via GOMAXPROCS (cmd/polish's -t flag) rather than through a
// field here.
type Options struct {
	Diploid bool
	Region  *chunk.Region
	Sink    FeatureSink
}

// ContigResult is one contig's polished output.
type ContigResult struct {
	RefName string
	Seq     string // haploid output
	Hap1    string // diploid output, H1
	Hap2    string // diploid output, H2
	Diploid bool
}

type chunkOutcome struct {
	chunkIdx int
	refName  string
	seq      string
	hap1     string
	hap2     string
}

// Run polishes every contig covered by alignmentPath's reads against
// fastaPath's sequences, using p's thresholds, per SPEC_FULL.md section 4.9.
func Run(ctx context.Context, alignmentPath, fastaPath string, p *params.Params, opts Options) ([]ContigResult, error) {
	provider := bamprovider.NewProvider(alignmentPath)
	defer provider.Close()

	header, err := provider.GetHeader()
	if err != nil {
		return nil, errors.E(errors.NotExist, "polish: reading alignment header", alignmentPath, err)
	}

	fa, err := openFasta(ctx, fastaPath)
	if err != nil {
		return nil, err
	}

	chunker, err := chunk.New(header, opts.Region, p.Chunk.ChunkSize, p.Chunk.ChunkBoundary)
	if err != nil {
		return nil, errors.E(errors.Invalid, "polish: building chunker", err)
	}
	chunks, err := chunker.Chunks()
	if err != nil {
		return nil, errors.E(errors.Invalid, "polish: enumerating chunks", err)
	}
	if len(chunks) == 0 {
		return nil, errors.E(errors.Invalid, "polish: EmptyWorkset: no chunks to process")
	}

	order := make([]int, len(chunks))
	for i := range order {
		order[i] = i
	}
	if p.ShuffleChunks {
		shuffle(order, p.ShuffleSeed)
	}

	sink := opts.Sink
	if sink == nil {
		sink = NoopFeatureSink
	}

	outcomes := make([]chunkOutcome, len(chunks))
	var errp errorreporter.T
	err = traverse.Each(len(order), func(i int) error {
		idx := order[i]
		c := chunks[idx]
		outcome, werr := processChunk(provider, fa, c, idx, p, opts, sink)
		if werr != nil {
			vlog.VI(1).Infof("polish: chunk %d (%s) failed: %v", idx, c.RefName, werr)
			errp.Set(werr)
			return werr
		}
		outcomes[idx] = outcome
		return nil
	})
	if err != nil {
		return nil, errors.E(errors.Internal, "polish: worker failure", errp.Err())
	}

	return mergeContigs(outcomes, p), nil
}

func openFasta(ctx context.Context, path string) (fasta.Fasta, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(errors.NotExist, "polish: opening assembly FASTA", path, err)
	}
	defer func() {
		if e := f.Close(ctx); e != nil {
			vlog.VI(1).Infof("polish: closing assembly FASTA %s: %v", path, e)
		}
	}()
	fa, err := fasta.New(f.Reader(ctx))
	if err != nil {
		return nil, errors.E(errors.Invalid, "polish: MalformedInput: parsing assembly FASTA", path, err)
	}
	return fa, nil
}

func processChunk(provider bamprovider.Provider, fa fasta.Fasta, c chunk.Chunk, idx int, p *params.Params, opts Options, sink FeatureSink) (chunkOutcome, error) {
	refName := chunk.NormalizeContigName(c.RefName)
	seq, err := fa.Get(refName, uint64(c.BoundaryStart), uint64(c.BoundaryEnd))
	if err != nil {
		return chunkOutcome{}, errors.E(errors.Invalid, "polish: MalformedInput: contig not found in assembly", refName, err)
	}

	runCap := p.RLE.Channel
	if opts.Diploid {
		runCap = p.RLE.Diploid
	}
	refRle := rle.Compress(seq, runCap)
	if !p.UseRLE {
		// Without RLE every reference base is its own run, matching the
		// window-local expanded offsets readadapter.Convert then emits.
		refRle = rle.Compress(seq, 1)
	}
	refMap := rle.NewPositionMap(refRle)

	header, err := provider.GetHeader()
	if err != nil {
		return chunkOutcome{}, errors.E(errors.NotExist, "polish: reading alignment header", err)
	}
	shard, err := shardForChunk(header, c)
	if err != nil {
		return chunkOutcome{}, err
	}
	iter := provider.NewIterator(shard)
	defer iter.Close()

	var recs []*sam.Record
	for iter.Scan() {
		recs = append(recs, iter.Record())
	}
	if err := iter.Err(); err != nil {
		return chunkOutcome{}, errors.E(errors.Invalid, "polish: MalformedInput: reading alignment records", err)
	}

	reads, alignments, err := readadapter.Convert(c, refRle, refMap, recs, p.UseRLE, runCap)
	if err != nil {
		return chunkOutcome{}, err
	}

	res := downsample.Downsample(p.Chunk.MaxDepth, c.End-c.Start, reads, alignments, idx, int64(p.Chunk.MaxDepth)+int64(idx))
	reads, alignments = res.Kept, res.KeptAlignments

	if opts.Diploid {
		return processDiploidChunk(reads, alignments, refRle, idx, c.RefName, p, sink)
	}
	return processHaploidChunk(reads, alignments, refRle, idx, c.RefName, p, sink)
}

func processHaploidChunk(reads []readadapter.BamChunkRead, alignments []readadapter.Alignment, refRle rle.String, idx int, refName string, p *params.Params, sink FeatureSink) (chunkOutcome, error) {
	g := poa.RealignAll(reads, refRle, p.Align)
	seq := applyRepeatEstimate(g, reads, alignments, p)
	if err := sink.WriteFeatures(idx, g, reads, p.FeatureType); err != nil {
		vlog.VI(1).Infof("polish: feature sink error on chunk %d: %v", idx, err)
	}
	return chunkOutcome{chunkIdx: idx, refName: refName, seq: seq}, nil
}

func processDiploidChunk(reads []readadapter.BamChunkRead, alignments []readadapter.Alignment, refRle rle.String, idx int, refName string, p *params.Params, sink FeatureSink) (chunkOutcome, error) {
	g := poa.RealignAll(reads, refRle, p.Align)
	bg := bubble.DetectBubbles(g, p.Bubble.Threshold)
	_, h1Reads, h2Reads := bubble.Phase(bg, reads, alignments, bubble.PhaseParams{
		MaxIters:     bubble.DefaultPhaseParams.MaxIters,
		Tolerance:    p.Bubble.Tau,
		Match:        p.Align.Match,
		Substitution: p.Align.Substitution,
	})

	hap1Seq := applyRepeatEstimateForReads(g, reads, alignments, h1Reads, p)
	hap2Seq := applyRepeatEstimateForReads(g, reads, alignments, h2Reads, p)

	if err := sink.WriteFeatures(idx, g, reads, p.FeatureType); err != nil {
		vlog.VI(1).Infof("polish: feature sink error on chunk %d: %v", idx, err)
	}
	return chunkOutcome{chunkIdx: idx, refName: refName, hap1: hap1Seq, hap2: hap2Seq}, nil
}

// applyRepeatEstimate recomputes each consensus node's run length from all
// reads' observations, per SPEC_FULL.md section 4.7.
func applyRepeatEstimate(g *poa.Graph, reads []readadapter.BamChunkRead, alignments []readadapter.Alignment, p *params.Params) string {
	consensus := g.RefString()
	var bases []byte
	var lengths []int
	nodeIdx := 0
	for i, n := range g.Nodes {
		if n.Weight < n.DeleteWeight {
			continue
		}
		obs := repeat.ObservationsAtNode(i, reads, alignments)
		t := n.Length
		if len(obs) > 0 {
			t = repeat.Estimate(consensus.Bases[nodeIdx], obs, p.RepeatMatrix, p.RepeatPrior)
		}
		bases = append(bases, consensus.Bases[nodeIdx])
		lengths = append(lengths, t)
		nodeIdx++
	}
	return rle.Expand(rle.String{Bases: string(bases), Lengths: lengths})
}

func applyRepeatEstimateForReads(g *poa.Graph, reads []readadapter.BamChunkRead, alignments []readadapter.Alignment, ids map[string]bool, p *params.Params) string {
	consensus := g.RefString()
	var bases []byte
	var lengths []int
	nodeIdx := 0
	for i, n := range g.Nodes {
		if n.Weight < n.DeleteWeight {
			continue
		}
		obs := repeat.ObservationsAtNodeForReads(i, reads, alignments, ids)
		t := n.Length
		if len(obs) > 0 {
			t = repeat.Estimate(consensus.Bases[nodeIdx], obs, p.RepeatMatrix, p.RepeatPrior)
		}
		bases = append(bases, consensus.Bases[nodeIdx])
		lengths = append(lengths, t)
		nodeIdx++
	}
	return rle.Expand(rle.String{Bases: string(bases), Lengths: lengths})
}

func shuffle(order []int, seed int64) {
	r := rand.New(rand.NewSource(seed))
	for i := len(order) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
}

// shardForChunk builds the single-contig Shard covering c, locating c's
// reference among the alignment header's references by normalized name
// (header names may carry trailing description text, same as FASTA headers;
// see SPEC_FULL.md's contig-name normalization note).
func shardForChunk(header *sam.Header, c chunk.Chunk) (gbam.Shard, error) {
	target := chunk.NormalizeContigName(c.RefName)
	for _, ref := range header.Refs() {
		if chunk.NormalizeContigName(ref.Name()) == target {
			return gbam.Shard{
				StartRef: ref,
				EndRef:   ref,
				Start:    c.BoundaryStart,
				End:      c.BoundaryEnd,
			}, nil
		}
	}
	return gbam.Shard{}, errors.E(errors.NotExist, "polish: MalformedInput: no such reference in alignment header", c.RefName)
}

// mergeSeqs splices an ordered run of same-contig chunk outputs, extracted
// via get, into one consensus sequence (SPEC_FULL.md section 4.8).
func mergeSeqs(list []chunkOutcome, get func(chunkOutcome) string, overlapLen int) string {
	chunks := make([]merge.Chunk, len(list))
	for i, o := range list {
		chunks[i] = merge.Chunk{RefName: o.refName, Seq: get(o), Index: o.chunkIdx}
	}
	mg := merge.NewMerger(overlapLen)
	return mg.MergeContig(chunks)
}

func mergeContigs(outcomes []chunkOutcome, p *params.Params) []ContigResult {
	byContig := map[string][]chunkOutcome{}
	var order []string
	for _, o := range outcomes {
		if _, ok := byContig[o.refName]; !ok {
			order = append(order, o.refName)
		}
		byContig[o.refName] = append(byContig[o.refName], o)
	}

	// Adjacent chunks' sequences share [end-boundary, end+boundary), twice
	// the chunk boundary.
	overlapLen := 2 * p.Chunk.ChunkBoundary
	var results []ContigResult
	for _, refName := range order {
		list := byContig[refName]
		sort.Slice(list, func(a, b int) bool { return list[a].chunkIdx < list[b].chunkIdx })
		diploid := list[0].hap1 != "" || list[0].hap2 != ""
		if diploid {
			results = append(results, ContigResult{
				RefName: strings.TrimSpace(refName),
				Hap1:    mergeSeqs(list, func(o chunkOutcome) string { return o.hap1 }, overlapLen),
				Hap2:    mergeSeqs(list, func(o chunkOutcome) string { return o.hap2 }, overlapLen),
				Diploid: true,
			})
		} else {
			results = append(results, ContigResult{
				RefName: strings.TrimSpace(refName),
				Seq:     mergeSeqs(list, func(o chunkOutcome) string { return o.seq }, overlapLen),
			})
		}
	}
	return results
}
