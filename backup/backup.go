// Package backup captures the original XML of every record a run is about
// to modify, so any batch edit can be reverted by hand. One compressed
// capture file per run; records are concatenated bib elements, readable
// again with the export scanner.
package backup

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/jinzhu/now"
	"github.com/klauspost/compress/zstd"

	"github.com/grinnell-libraries/almadc/atomicfile"
)

var bNewline = []byte("\n")

// Writer appends original record XML to a zstd-compressed capture file.
// The file is only created on the first Append, so dry runs and no-change
// runs leave nothing behind.
type Writer struct {
	path string
	f    *atomicfile.File
	enc  *zstd.Encoder
}

// Path returns the capture file location for a rule and start time.
func Path(dir, rule string, t time.Time) string {
	fn := fmt.Sprintf("almadc-backup-%s-%s-%s.xml.zst",
		rule,
		now.With(t).BeginningOfDay().Format("2006-01-02"),
		t.Format("150405"))
	return filepath.Join(dir, fn)
}

// New prepares a writer for the given capture path. No file is created yet.
func New(path string) *Writer {
	return &Writer{path: path}
}

// Append writes one record's original XML to the capture file.
func (w *Writer) Append(mmsID string, raw []byte) error {
	if w.f == nil {
		f, err := atomicfile.New(w.path)
		if err != nil {
			return err
		}
		enc, err := zstd.NewWriter(f)
		if err != nil {
			_ = f.Abort()
			return err
		}
		w.f, w.enc = f, enc
	}
	if _, err := w.enc.Write(raw); err != nil {
		return fmt.Errorf("backup %s: %w", mmsID, err)
	}
	if _, err := w.enc.Write(bNewline); err != nil {
		return fmt.Errorf("backup %s: %w", mmsID, err)
	}
	return nil
}

// Close flushes and publishes the capture file, if one was started.
func (w *Writer) Close() error {
	if w.f == nil {
		return nil
	}
	if err := w.enc.Close(); err != nil {
		return err
	}
	return w.f.Close()
}

// Open returns a reader over a capture file's decompressed contents.
func Open(r io.Reader) (io.Reader, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}
