// Package report exports run results as CSV for spreadsheet review and
// JSON for machine consumption.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/jinzhu/now"
	"github.com/segmentio/encoding/json"

	"github.com/grinnell-libraries/almadc/atomicfile"
	"github.com/grinnell-libraries/almadc/batch"
)

// Filename builds a day-stamped report filename, with a run id fragment to
// keep multiple runs per day apart.
func Filename(prefix, runID, ext string, t time.Time) string {
	frag := runID
	if len(frag) > 8 {
		frag = frag[:8]
	}
	return fmt.Sprintf("%s-%s-%s.%s",
		prefix,
		now.With(t).BeginningOfDay().Format("2006-01-02"),
		frag,
		ext)
}

var csvHeader = []string{"mms_id", "outcome", "detail", "error"}

// WriteCSV writes the per-record rows of a summary.
func WriteCSV(w io.Writer, s *batch.Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, row := range s.Rows {
		line := []string{row.MMSID, string(row.Outcome), row.Detail, row.Error}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("writing csv line: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the whole summary, counts and rows included.
func WriteJSON(w io.Writer, s *batch.Summary) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n"))
	return err
}

// WriteFiles writes both report formats into dir with atomic renames and
// returns the final paths.
func WriteFiles(dir string, s *batch.Summary) (csvPath, jsonPath string, err error) {
	prefix := "almadc-" + s.Rule
	csvPath = filepath.Join(dir, Filename(prefix, s.RunID, "csv", s.Started))
	jsonPath = filepath.Join(dir, Filename(prefix, s.RunID, "json", s.Started))
	if err := writeAtomic(csvPath, func(w io.Writer) error { return WriteCSV(w, s) }); err != nil {
		return "", "", err
	}
	if err := writeAtomic(jsonPath, func(w io.Writer) error { return WriteJSON(w, s) }); err != nil {
		return "", "", err
	}
	return csvPath, jsonPath, nil
}

func writeAtomic(path string, fn func(io.Writer) error) error {
	f, err := atomicfile.New(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Abort()
		return err
	}
	return f.Close()
}
