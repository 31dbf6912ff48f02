// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

/*
polish reconciles a draft genomic assembly with long reads aligned against
it, emitting a corrected (haploid) or phased (diploid) assembly.
*/

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"v.io/x/lib/vlog"

	"github.com/grailbio/polish/chunk"
	"github.com/grailbio/polish/params"
	"github.com/grailbio/polish/polish"
)

var (
	logLevel    = flag.String("a", "info", "Log level: critical, info, or debug")
	threads     = flag.Int("t", 1, "Worker thread count")
	outBase     = flag.String("o", "polish-out", "Output path base")
	region      = flag.String("r", "", "Restrict polishing to name[:start-end]")
	depthOverride = flag.Int("p", 0, "Override the parameter file's maxDepth; 0 leaves it unchanged")
	diploid     = flag.Bool("2", false, "Diploid mode: phase and emit two haplotypes")

	featureDump  = flag.Bool("f", false, "Enable the feature-dump sidecar")
	featureType  = flag.String("F", "none", "Feature-dump type: simpleWeight, splitRleWeight, channelRleWeight, diploidRleWeight")
	featureRunLen = flag.Int("L", 10, "Feature-dump maximum run length")
	truthPaths   = flag.String("u", "", "Comma-separated truth-alignment paths (feature-dump sidecar only)")

	dumpDepth   = flag.String("d", "", "Ancillary depth-dump base path")
	dumpInsert  = flag.String("i", "", "Ancillary insert-dump base path")
	dumpJoin    = flag.String("j", "", "Ancillary join-dump base path")
	dumpMerge   = flag.String("m", "", "Ancillary merge-dump base path")
	dumpNode    = flag.String("n", "", "Ancillary node-dump base path")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] ALIGNMENT_FILE ASSEMBLY_FASTA PARAMS\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
}

// setLogLevel maps the CLI's -a flag onto vlog's own -v verbosity flag,
// which it registers on flag.CommandLine.
func setLogLevel(level string) error {
	var v string
	switch level {
	case "critical", "info":
		v = "0"
	case "debug":
		v = "1"
	default:
		return errors.E(errors.Invalid, "polish: Configuration: unknown log level", level)
	}
	return flag.Set("v", v)
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() != 3 {
		if flag.NArg() < 3 {
			log.Fatalf("polish: missing positional arguments (ALIGNMENT_FILE, ASSEMBLY_FASTA, PARAMS required)")
		} else {
			log.Fatalf("polish: too many positional arguments")
		}
	}
	alignmentPath := flag.Arg(0)
	fastaPath := flag.Arg(1)
	paramsPath := flag.Arg(2)

	if err := setLogLevel(*logLevel); err != nil {
		log.Fatalf("%v", err)
	}

	if *truthPaths != "" && !*featureDump {
		log.Fatalf("polish: Configuration: -u requires -f")
	}

	if *threads > 0 {
		runtime.GOMAXPROCS(*threads)
	}

	p, err := params.Load(paramsPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if *depthOverride > 0 {
		p.Chunk.MaxDepth = *depthOverride
	}
	if *featureDump {
		kind, err := params.ParseFeatureKind(*featureType)
		if err != nil {
			log.Fatalf("%v", err)
		}
		p.FeatureType = kind
	}

	var reg *chunk.Region
	if *region != "" {
		r, err := chunk.ParseRegion(*region)
		if err != nil {
			log.Fatalf("%v", err)
		}
		reg = &r
	}

	var sink polish.FeatureSink = polish.NoopFeatureSink
	if *featureDump {
		fs, err := newFileFeatureSink(*outBase, p.FeatureType, *featureRunLen, *truthPaths)
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer fs.Close()
		sink = fs
	}

	ctx := vcontext.Background()
	opts := polish.Options{
		Diploid: *diploid,
		Region:  reg,
		Sink:    sink,
	}
	results, err := polish.Run(ctx, alignmentPath, fastaPath, p, opts)
	if err != nil {
		log.Panicf("%v", err)
	}

	if err := writeResults(*outBase, *diploid, results); err != nil {
		log.Panicf("%v", err)
	}
	for _, dump := range []struct{ flagName, path string }{
		{"d", *dumpDepth}, {"i", *dumpInsert}, {"j", *dumpJoin}, {"m", *dumpMerge}, {"n", *dumpNode},
	} {
		if dump.path != "" {
			vlog.VI(1).Infof("polish: ancillary dump -%s (%s) requested but unimplemented in this build", dump.flagName, dump.path)
		}
	}
	vlog.VI(1).Infof("polish: exiting, %d contigs written", len(results))
}

// writeResults emits BASE.fa (haploid) or BASE.h1.fa/BASE.h2.fa (diploid),
// per SPEC_FULL.md section 6.
func writeResults(base string, diploidMode bool, results []polish.ContigResult) error {
	if !diploidMode {
		return writeFasta(base+".fa", results, func(r polish.ContigResult) string { return r.Seq })
	}
	if err := writeFasta(base+".h1.fa", results, func(r polish.ContigResult) string { return r.Hap1 }); err != nil {
		return err
	}
	return writeFasta(base+".h2.fa", results, func(r polish.ContigResult) string { return r.Hap2 })
}

const fastaLineWidth = 80

func writeFasta(path string, results []polish.ContigResult, get func(polish.ContigResult) string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.E(errors.NotExist, "polish: creating output", path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, r := range results {
		seq := get(r)
		if seq == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, ">%s\n", r.RefName); err != nil {
			return errors.E(errors.Internal, "polish: writing output", path, err)
		}
		for i := 0; i < len(seq); i += fastaLineWidth {
			end := i + fastaLineWidth
			if end > len(seq) {
				end = len(seq)
			}
			if _, err := fmt.Fprintln(w, seq[i:end]); err != nil {
				return errors.E(errors.Internal, "polish: writing output", path, err)
			}
		}
	}
	return w.Flush()
}

// parseTruthPaths splits a comma-separated -u flag value.
func parseTruthPaths(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
