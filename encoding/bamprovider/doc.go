// Package bamprovider provides utilities for scanning an indexed BAM file in
// parallel.
//
// Provider is an interface for reading a BAM file shard by shard, each shard
// covering a contiguous genomic interval.
package bamprovider
