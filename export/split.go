// Package export reads bibliographic records out of Alma export or backup
// files, one <bib> element at a time, without loading the whole file. It
// backs the offline dry-run mode of the batch editor and the parsing of
// multi-record API responses.
package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
)

const (
	initialBuffer = 1 << 20  // 1 MB
	maxRecordSize = 16 << 20 // a single bib should never get near this
)

// ErrReadOnly is returned by Store.Write; export files cannot be written
// back to.
var ErrReadOnly = errors.New("export source is read-only")

// TagSplitter returns a bufio.SplitFunc producing one complete element of
// the given name per token. Elements of the target name must not nest,
// which holds for Alma bib and record elements.
func TagSplitter(tag string) bufio.SplitFunc {
	var (
		openTag  = []byte("<" + tag)
		closeTag = []byte("</" + tag + ">")
	)
	return func(data []byte, atEOF bool) (advance int, token []byte, err error) {
		start := indexOpenTag(data, openTag)
		if start == -1 {
			if atEOF {
				return len(data), nil, nil
			}
			// Keep enough bytes around to not cut a partially read
			// opening tag in half.
			keep := len(openTag) + 1
			if len(data) > keep {
				return len(data) - keep, nil, nil
			}
			return 0, nil, nil
		}
		rest := data[start:]
		if end := bytes.Index(rest, closeTag); end != -1 {
			end += len(closeTag)
			return start + end, rest[:end], nil
		}
		// Self-closing element, e.g. <bib/>.
		if gt := bytes.IndexByte(rest, '>'); gt > 0 && rest[gt-1] == '/' {
			return start + gt + 1, rest[:gt+1], nil
		}
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
}

// indexOpenTag finds the first occurrence of the opening tag followed by a
// valid terminator, so that <bib does not match <bibs>.
func indexOpenTag(data, openTag []byte) int {
	off := 0
	for {
		i := bytes.Index(data[off:], openTag)
		if i == -1 {
			return -1
		}
		i += off
		next := i + len(openTag)
		if next >= len(data) {
			return i // terminator not read yet, treat as a candidate
		}
		switch data[next] {
		case '>', ' ', '/', '\t', '\n', '\r':
			return i
		}
		off = i + 1
	}
}

// Scanner iterates the <bib> elements of a reader.
type Scanner struct {
	s *bufio.Scanner
}

// NewScanner returns a scanner over the bib records in r.
func NewScanner(r io.Reader) *Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, initialBuffer), maxRecordSize)
	s.Split(TagSplitter("bib"))
	return &Scanner{s: s}
}

func (s *Scanner) Scan() bool    { return s.s.Scan() }
func (s *Scanner) Bytes() []byte { return s.s.Bytes() }
func (s *Scanner) Err() error    { return s.s.Err() }

// MMSID extracts the record identifier from a raw bib element.
func MMSID(record []byte) string {
	var bib struct {
		MMSID string `xml:"mms_id"`
	}
	if err := xml.Unmarshal(record, &bib); err != nil {
		return ""
	}
	return bib.MMSID
}

// Store serves records loaded from an export file through the same
// fetch/write interface the API client offers, for offline dry runs.
// Records without an mms_id are skipped.
type Store struct {
	IDs     []string
	records map[string][]byte
}

// LoadStore reads all bib records from r into memory.
func LoadStore(r io.Reader) (*Store, error) {
	st := &Store{records: make(map[string][]byte)}
	sc := NewScanner(r)
	for sc.Scan() {
		id := MMSID(sc.Bytes())
		if id == "" {
			continue
		}
		raw := make([]byte, len(sc.Bytes()))
		copy(raw, sc.Bytes())
		if _, ok := st.records[id]; !ok {
			st.IDs = append(st.IDs, id)
		}
		st.records[id] = raw
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return st, nil
}

// Fetch returns the raw XML for one record.
func (st *Store) Fetch(_ context.Context, mmsID string) ([]byte, error) {
	raw, ok := st.records[mmsID]
	if !ok {
		return nil, errors.New("record not in export: " + mmsID)
	}
	return raw, nil
}

// Write always fails; an export file is a snapshot, not a backend.
func (st *Store) Write(_ context.Context, mmsID string, _ []byte) error {
	return ErrReadOnly
}
