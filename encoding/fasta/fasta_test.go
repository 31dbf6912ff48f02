package fasta_test

import (
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/grailbio/polish/encoding/fasta"
)

var fastaData = ">seq1\n" + "ACGTA\nCGTAC\nGT\n" + ">seq2 A viral sequence\n" + "ACGT\n" + "ACGT\n"

func TestGet(t *testing.T) {
	tests := []struct {
		seq       string
		start     uint64
		end       uint64
		want      string
		wantError bool
	}{
		{"seq1", 1, 2, "C", false},
		{"seq1", 1, 6, "CGTAC", false},
		{"seq1", 0, 12, "ACGTACGTACGT", false},
		{"seq1", 10, 12, "GT", false},
		{"seq2", 0, 8, "ACGTACGT", false},
		{"seq2", 2, 5, "GTA", false},
		{"seq0", 0, 1, "", true},
		{"seq1", 10, 13, "", true},
		{"seq1", 4, 3, "", true},
	}
	fa, err := fasta.New(strings.NewReader(fastaData))
	if err != nil {
		t.Fatalf("couldn't create Fasta: %v", err)
	}
	for _, tt := range tests {
		got, err := fa.Get(tt.seq, tt.start, tt.end)
		if (err != nil) != tt.wantError {
			t.Errorf("Get(%s, %d, %d): unexpected error state: %v", tt.seq, tt.start, tt.end, err)
		}
		if got != tt.want {
			t.Errorf("Get(%s, %d, %d): got %q, want %q", tt.seq, tt.start, tt.end, got, tt.want)
		}
	}
}

func TestLen(t *testing.T) {
	fa, err := fasta.New(strings.NewReader(fastaData))
	if err != nil {
		t.Fatalf("couldn't create Fasta: %v", err)
	}
	tests := []struct {
		seq       string
		want      uint64
		wantError bool
	}{
		{"seq1", 12, false},
		{"seq2", 8, false},
		{"seq0", 0, true},
	}
	for _, tt := range tests {
		got, err := fa.Len(tt.seq)
		if (err != nil) != tt.wantError {
			t.Errorf("Len(%s): unexpected error state: %v", tt.seq, err)
		}
		if got != tt.want {
			t.Errorf("Len(%s): got %v, want %v", tt.seq, got, tt.want)
		}
	}
}

func TestSeqNames(t *testing.T) {
	fa, err := fasta.New(strings.NewReader(fastaData))
	if err != nil {
		t.Fatalf("couldn't create Fasta: %v", err)
	}
	want := sort.StringSlice([]string{"seq1", "seq2"})
	want.Sort()
	got := sort.StringSlice(fa.SeqNames())
	got.Sort()
	if !reflect.DeepEqual([]string(got), []string(want)) {
		t.Errorf("SeqNames(): got %v, want %v", got, want)
	}
}

func TestNewMalformed(t *testing.T) {
	if _, err := fasta.New(strings.NewReader("")); err == nil {
		t.Errorf("New(empty): expected error, got nil")
	}
	if _, err := fasta.New(strings.NewReader("ACGT\n")); err == nil {
		t.Errorf("New(sequence with no header): expected error, got nil")
	}
}
