package fasta

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rrna.fasta")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLongestMatching(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, `>r1 18S_rRNA::scaffold1:0-5
ACGTA
>r2 5S_rRNA::scaffold1:100-200
ACGTACGTACGTACGTACGT
>r3 18S_rRNA::scaffold2:0-8
ACGTACGT
`)
	rec, found, err := LongestMatching(path, "18S")
	if err != nil {
		t.Fatalf("LongestMatching: %v", err)
	}
	if !found {
		t.Fatal("expected a match")
	}
	// r2 is longer but tagged 5S; r3 is the longest 18S record.
	if rec.ID != "r3" || rec.Len() != 8 {
		t.Fatalf("got %s (len %d), want r3 (len 8)", rec.ID, rec.Len())
	}
}

func TestLongestMatchingTieKeepsFirst(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, `>first 18S_rRNA
ACGTACGT
>second 18S_rRNA
TGCATGCA
`)
	rec, found, err := LongestMatching(path, "18S")
	if err != nil {
		t.Fatalf("LongestMatching: %v", err)
	}
	if !found {
		t.Fatal("expected a match")
	}
	if rec.ID != "first" {
		t.Fatalf("tie-break must keep the first record, got %q", rec.ID)
	}
}

func TestLongestMatchingNoneFound(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, `>r1 5S_rRNA
ACGT
>r2 23S_rRNA
TGCA
`)
	rec, found, err := LongestMatching(path, "18S")
	if err != nil {
		t.Fatalf("LongestMatching: %v", err)
	}
	if found {
		t.Fatalf("expected no match, got %q", rec.ID)
	}
	if rec.ID != "" || rec.Len() != 0 {
		t.Fatalf("none-found must return a zero record, got %+v", rec)
	}
}

func TestLongestMatchingCaseSensitive(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, ">r1 18s_rrna\nACGT\n")
	_, found, err := LongestMatching(path, "18S")
	if err != nil {
		t.Fatalf("LongestMatching: %v", err)
	}
	if found {
		t.Fatal("tag match must be case-sensitive")
	}
}
