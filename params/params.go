// Package params decodes and validates the polisher's JSON parameter file,
// the single source of pair-HMM probabilities, chunking/phasing thresholds,
// and the repeat-count prior, per SPEC_FULL.md sections 3 and 4.10. The
// repeat-count substitution matrix is not read from the file; it is built
// from the file's repeatErrorRate (default 0.02).
package params

import (
	"encoding/json"
	"io"
	"os"

	"github.com/grailbio/base/errors"

	"github.com/grailbio/polish/poa"
	"github.com/grailbio/polish/repeat"
)

// FeatureKind tags the feature-dump sidecar's output variant, per
// SPEC_FULL.md section 4.11 / spec.md section 9. DiploidRLE is kept distinct
// from ChannelRLE even though the original implementation mapped both to the
// same internal value; see DESIGN.md.
type FeatureKind int

const (
	FeatureNone FeatureKind = iota
	FeatureSimple
	FeatureSplitRLE
	FeatureChannelRLE
	FeatureDiploidRLE
)

func (k FeatureKind) String() string {
	switch k {
	case FeatureSimple:
		return "simpleWeight"
	case FeatureSplitRLE:
		return "splitRleWeight"
	case FeatureChannelRLE:
		return "channelRleWeight"
	case FeatureDiploidRLE:
		return "diploidRleWeight"
	default:
		return "none"
	}
}

// ParseFeatureKind maps a CLI/parameter-file feature-type name to its
// FeatureKind.
func ParseFeatureKind(s string) (FeatureKind, error) {
	switch s {
	case "", "none":
		return FeatureNone, nil
	case "simpleWeight":
		return FeatureSimple, nil
	case "splitRleWeight":
		return FeatureSplitRLE, nil
	case "channelRleWeight":
		return FeatureChannelRLE, nil
	case "diploidRleWeight":
		return FeatureDiploidRLE, nil
	default:
		return FeatureNone, errors.E(errors.Invalid, "params: unknown feature type", s)
	}
}

// rleCaps holds the per-feature-type run-length cap, since the defaults
// differ by downstream consumer (SPEC_FULL.md section 4.1): 10 for split, 12
// for channel, 50 for diploid.
type rleCaps struct {
	Split   int `json:"splitRleWeightCap"`
	Channel int `json:"channelRleWeightCap"`
	Diploid int `json:"diploidRleWeightCap"`
}

// wireParams is the on-disk JSON shape; Params below is the validated,
// in-memory form workers read from.
type wireParams struct {
	Match              float64     `json:"match"`
	Substitution       float64     `json:"substitution"`
	InsertOpen         float64     `json:"insertOpen"`
	InsertExtend       float64     `json:"insertExtend"`
	DeleteOpen         float64     `json:"deleteOpen"`
	DeleteExtend       float64     `json:"deleteExtend"`
	PosteriorThreshold float64     `json:"posteriorThreshold"`
	MaxPasses          int         `json:"maxPasses"`
	BubbleThreshold    float64     `json:"bubbleThreshold"`
	PhaseTau           float64     `json:"phaseTau"`
	ChunkSize          int         `json:"chunkSize"`
	ChunkBoundary      int         `json:"chunkBoundary"`
	MaxDepth           int         `json:"maxDepth"`
	UseRLE             bool        `json:"useRunLengthEncoding"`
	ShuffleChunks      bool        `json:"shuffleChunks"`
	ShuffleSeed        int64       `json:"shuffleSeed"`
	RLECaps            rleCaps     `json:"rleCaps"`
	RepeatPrior        []float64   `json:"repeatPrior"`
	RepeatMatrix       interface{} `json:"repeatMatrix"` // accepted but not read: Decode always builds the matrix from RepeatErrorRate.
	RepeatErrorRate    float64     `json:"repeatErrorRate"`
	FeatureType        string      `json:"featureType"`
}

// Params is the decoded, validated parameter set, immutable after Load and
// read-shared across all workers (SPEC_FULL.md section 5).
type Params struct {
	Align  poa.AlignParams
	Bubble BubbleParams
	Chunk  ChunkParams
	RLE    rleCaps

	UseRLE        bool
	ShuffleChunks bool
	ShuffleSeed   int64

	RepeatPrior  *repeat.Prior
	RepeatMatrix *repeat.Matrix

	FeatureType FeatureKind
}

// BubbleParams holds bubble-detection and phasing thresholds.
type BubbleParams struct {
	Threshold float64
	Tau       float64
}

// ChunkParams holds chunking and depth-control parameters.
type ChunkParams struct {
	ChunkSize     int
	ChunkBoundary int
	MaxDepth      int
}

// Load reads and validates the JSON parameter file at path, per SPEC_FULL.md
// section 4.10: workers never see a half-valid Params.
func Load(path string) (*Params, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.E(errors.NotExist, "params: open", path, err)
		}
		return nil, errors.E(errors.NotExist, "params: open", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses and validates a parameter file from r.
func Decode(r io.Reader) (*Params, error) {
	var w wireParams
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, errors.E(errors.Invalid, "params: malformed parameter file", err)
	}

	p := &Params{
		Align: poa.AlignParams{
			Match:              orDefault(w.Match, poa.DefaultAlignParams.Match),
			Substitution:       orDefault(w.Substitution, poa.DefaultAlignParams.Substitution),
			InsertOpen:         orDefault(w.InsertOpen, poa.DefaultAlignParams.InsertOpen),
			InsertExtend:       orDefault(w.InsertExtend, poa.DefaultAlignParams.InsertExtend),
			DeleteOpen:         orDefault(w.DeleteOpen, poa.DefaultAlignParams.DeleteOpen),
			DeleteExtend:       orDefault(w.DeleteExtend, poa.DefaultAlignParams.DeleteExtend),
			PosteriorThreshold: orDefault(w.PosteriorThreshold, poa.DefaultAlignParams.PosteriorThreshold),
			MaxPasses:          orDefaultInt(w.MaxPasses, poa.DefaultAlignParams.MaxPasses),
		},
		Bubble: BubbleParams{
			Threshold: orDefault(w.BubbleThreshold, 0.3),
			Tau:       orDefault(w.PhaseTau, 2.0),
		},
		Chunk: ChunkParams{
			ChunkSize:     orDefaultInt(w.ChunkSize, 10000),
			ChunkBoundary: orDefaultInt(w.ChunkBoundary, 500),
			MaxDepth:      orDefaultInt(w.MaxDepth, 50),
		},
		RLE: rleCaps{
			Split:   orDefaultInt(w.RLECaps.Split, 10),
			Channel: orDefaultInt(w.RLECaps.Channel, 12),
			Diploid: orDefaultInt(w.RLECaps.Diploid, 50),
		},
		UseRLE:        w.UseRLE,
		ShuffleChunks: w.ShuffleChunks,
		ShuffleSeed:   w.ShuffleSeed,
	}

	kind, err := ParseFeatureKind(w.FeatureType)
	if err != nil {
		return nil, err
	}
	p.FeatureType = kind

	if kind == FeatureSimple && p.UseRLE {
		return nil, errors.E(errors.Invalid, "params: Configuration: simpleWeight feature type is incompatible with useRunLengthEncoding")
	}

	p.RepeatPrior = buildPrior(w.RepeatPrior)

	errRate := w.RepeatErrorRate
	if errRate <= 0 {
		errRate = 0.02
	}
	var m repeat.Matrix
	for b := 0; b < 4; b++ {
		for s := 0; s < 2; s++ {
			for t := 0; t <= repeat.MaxRunLength; t++ {
				repeat.GeometricMatrixRow(&m, b, s, t, errRate)
			}
		}
	}
	p.RepeatMatrix = &m

	return p, nil
}

func buildPrior(vals []float64) *repeat.Prior {
	if len(vals) == 0 {
		return repeat.UniformPrior()
	}
	var p repeat.Prior
	total := 0.0
	for i := range p {
		if i < len(vals) {
			p[i] = vals[i]
		}
		total += p[i]
	}
	if total <= 0 {
		return repeat.UniformPrior()
	}
	for i := range p {
		p[i] /= total
	}
	return &p
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
