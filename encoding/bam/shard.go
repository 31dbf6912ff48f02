// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bam

import (
	"fmt"

	"github.com/grailbio/hts/sam"
)

// Shard is the single-contig, half-open genomic interval [Start, End) that
// bamprovider.Provider.NewIterator reads. StartRef and EndRef must name the
// same reference; the polisher never reads across a contig boundary within
// one shard.
type Shard struct {
	StartRef *sam.Reference
	EndRef   *sam.Reference
	Start    int
	End      int
}

// UniversalShard creates a Shard spanning the whole of the header's first
// reference. Other references are not covered, since a Shard never spans
// more than one contig; an empty header yields a nil-reference, zero-length
// Shard.
func UniversalShard(header *sam.Header) Shard {
	var ref *sam.Reference
	if len(header.Refs()) > 0 {
		ref = header.Refs()[0]
	}
	end := 0
	if ref != nil {
		end = ref.Len()
	}
	return Shard{StartRef: ref, EndRef: ref, Start: 0, End: end}
}

// String returns a debug string for s.
func (s *Shard) String() string {
	return fmt.Sprintf("%s[%d]:%d-%d", s.StartRef.Name(), s.StartRef.ID(), s.Start, s.End)
}
