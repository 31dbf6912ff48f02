package bam

// Functions in this file provides unsafe casting from and from sam.Record
// fields to []byte.

import (
	"reflect"
	"unsafe"

	"github.com/grailbio/hts/sam"
)

// UnsafeBytesToDoublets casts []byte to []sam.Doublet.
func UnsafeBytesToDoublets(src []byte) (d []sam.Doublet) {
	sh := (*reflect.SliceHeader)(unsafe.Pointer(&src))
	dh := (*reflect.SliceHeader)(unsafe.Pointer(&d))
	*dh = *sh
	return d
}

// UnsafeDoubletsToBytes casts []sam.Doublet to []byte.
func UnsafeDoubletsToBytes(src []sam.Doublet) (d []byte) {
	sh := (*reflect.SliceHeader)(unsafe.Pointer(&src))
	dh := (*reflect.SliceHeader)(unsafe.Pointer(&d))
	*dh = *sh
	return d
}

// UnpackNibbles expands a packed 4-bit-per-base sam.Doublet byte slice, as
// stored in sam.Seq.Seq, into one byte per base: dst[2*i] gets the high
// nibble of src[i], dst[2*i+1] gets the low nibble. It panics if
// len(src) != (len(dst)+1)/2.
func UnpackNibbles(dst, src []byte) {
	dstLen := len(dst)
	nSrcFullByte := dstLen >> 1
	srcOdd := dstLen & 1
	if len(src) != nSrcFullByte+srcOdd {
		panic("UnpackNibbles() requires len(src) == (len(dst) + 1) / 2")
	}
	for srcPos := 0; srcPos != nSrcFullByte; srcPos++ {
		srcByte := src[srcPos]
		dst[2*srcPos] = srcByte >> 4
		dst[2*srcPos+1] = srcByte & 15
	}
	if srcOdd == 1 {
		srcByte := src[nSrcFullByte]
		dst[2*nSrcFullByte] = srcByte >> 4
	}
}
