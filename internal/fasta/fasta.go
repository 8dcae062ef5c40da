// Package fasta parses and writes FASTA sequence records. Parsing is
// streaming: records are handed to a callback one at a time, so selection
// passes never hold more than the current record in memory.
package fasta

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record is one FASTA sequence. ID is the first whitespace-delimited token
// of the header; Description is the full header text after '>'.
type Record struct {
	ID          string
	Description string
	Seq         []byte
}

// Len returns the residue count.
func (r Record) Len() int { return len(r.Seq) }

const writeLineWidth = 60

// Parse reads FASTA records from r and calls emit for each complete record.
// emit returning an error stops the scan and propagates the error.
func Parse(r io.Reader, emit func(Record) error) error {
	sc := bufio.NewScanner(r)
	// Allow very long single-line sequences (64 MiB).
	const maxLine = 64 * 1024 * 1024
	sc.Buffer(make([]byte, 64*1024), maxLine)

	var (
		cur     Record
		started bool
	)

	flush := func() error {
		if !started {
			return nil
		}
		rec := cur
		rec.Seq = append([]byte(nil), cur.Seq...)
		return emit(rec)
	}

	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if err := flush(); err != nil {
				return err
			}
			hdr := string(bytes.TrimSpace(line[1:]))
			cur = Record{ID: headerID(hdr), Description: hdr}
			started = true
			continue
		}
		if !started {
			return fmt.Errorf("fasta: sequence data before first header")
		}
		cur.Seq = append(cur.Seq, bytes.TrimSpace(line)...)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("fasta scan: %w", err)
	}
	return flush()
}

// ParseFile is the path convenience wrapper around Parse.
func ParseFile(path string, emit func(Record) error) error {
	rc, err := Open(path)
	if err != nil {
		return err
	}
	defer rc.Close()
	return Parse(rc, emit)
}

// ReadAll collects every record of a file. Callers that only need one
// record should stream with ParseFile instead.
func ReadAll(path string) ([]Record, error) {
	var recs []Record
	err := ParseFile(path, func(r Record) error {
		recs = append(recs, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// Write renders records with 60-column sequence wrapping.
func Write(w io.Writer, recs ...Record) error {
	bw := bufio.NewWriter(w)
	for _, rec := range recs {
		hdr := rec.Description
		if hdr == "" {
			hdr = rec.ID
		}
		if _, err := fmt.Fprintf(bw, ">%s\n", hdr); err != nil {
			return err
		}
		for off := 0; off < len(rec.Seq); off += writeLineWidth {
			end := off + writeLineWidth
			if end > len(rec.Seq) {
				end = len(rec.Seq)
			}
			if _, err := bw.Write(rec.Seq[off:end]); err != nil {
				return err
			}
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// WriteFile writes records to path, truncating any prior file.
func WriteFile(path string, recs ...Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, recs...); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// multiReadCloser closes multiple io.Closers when Close() is called.
type multiReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiReadCloser) Close() error {
	var err error
	for _, c := range m.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Open opens path for reading, transparently decompressing gzip input.
// Detection is by magic number (1F 8B) or .gz suffix.
func Open(path string) (io.ReadCloser, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var sig [2]byte
	n, _ := fh.Read(sig[:])
	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		_ = fh.Close()
		return nil, err
	}
	if (n == 2 && sig[0] == 0x1f && sig[1] == 0x8b) || strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(fh)
		if err != nil {
			_ = fh.Close()
			return nil, err
		}
		return &multiReadCloser{Reader: gr, closers: []io.Closer{gr, fh}}, nil
	}
	return fh, nil
}

func headerID(hdr string) string {
	if i := strings.IndexAny(hdr, " \t"); i >= 0 {
		return hdr[:i]
	}
	return hdr
}
