// Package batch runs one field rule over a list of record identifiers,
// sequentially: fetch, parse, apply, normalize, write, next. Sequential
// processing is deliberate; the Alma API rate-limits, and concurrent writes
// to the same record would race without an optimistic-concurrency guard.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/grinnell-libraries/almadc/bibxml"
	"github.com/grinnell-libraries/almadc/rules"
)

// Store is the fetch/write collaborator; the Alma API client in production,
// an export file or an in-memory fake otherwise.
type Store interface {
	Fetch(ctx context.Context, mmsID string) ([]byte, error)
	Write(ctx context.Context, mmsID string, record []byte) error
}

// Backupper captures a record's original XML before its first write.
type Backupper interface {
	Append(mmsID string, raw []byte) error
}

// RuleApplicationError carries record and rule context for any failure
// during categorize or mutate.
type RuleApplicationError struct {
	MMSID string
	Rule  string
	Err   error
}

func (e *RuleApplicationError) Error() string {
	return fmt.Sprintf("rule %s on record %s: %v", e.Rule, e.MMSID, e.Err)
}

func (e *RuleApplicationError) Unwrap() error { return e.Err }

// RecordError is one failed record in a summary.
type RecordError struct {
	MMSID   string `json:"mms_id"`
	Message string `json:"message"`
}

// Row is the per-record report line.
type Row struct {
	MMSID   string        `json:"mms_id"`
	Outcome rules.Outcome `json:"outcome"`
	Detail  string        `json:"detail,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Summary aggregates a run. On cancellation the counts reflect only fully
// completed records; nothing is ever half-applied.
type Summary struct {
	RunID    string                `json:"run_id"`
	Rule     string                `json:"rule"`
	Started  time.Time             `json:"started"`
	Finished time.Time             `json:"finished"`
	Total    int                   `json:"total"`
	Done     int                   `json:"done"`
	Canceled bool                  `json:"canceled,omitempty"`
	DryRun   bool                  `json:"dry_run,omitempty"`
	Counts   map[rules.Outcome]int `json:"counts"`
	Rows     []Row                 `json:"rows"`
	Errors   []RecordError         `json:"errors,omitempty"`
}

// Runner applies rules to records. Zero value is not usable; Store is
// required.
type Runner struct {
	Store  Store
	Backup Backupper // optional
	DryRun bool
	// OnProgress, when set, is called after every completed record with
	// (done, total).
	OnProgress func(done, total int)
}

// Run applies one rule to every identifier in order. Cancellation is
// cooperative: the context is checked between records, never mid-record,
// and a canceled run returns a valid partial summary.
func (r *Runner) Run(ctx context.Context, rule *rules.Rule, mmsIDs []string) *Summary {
	s := &Summary{
		RunID:   uuid.New().String(),
		Rule:    rule.Name,
		Started: time.Now(),
		Total:   len(mmsIDs),
		DryRun:  r.DryRun,
		Counts:  make(map[rules.Outcome]int),
	}
	for _, id := range mmsIDs {
		select {
		case <-ctx.Done():
			s.Canceled = true
			s.Finished = time.Now()
			log.WithFields(log.Fields{
				"rule": rule.Name,
				"done": s.Done,
			}).Warn("run canceled, returning partial summary")
			return s
		default:
		}
		row := r.one(ctx, rule, id)
		s.Counts[row.Outcome]++
		s.Rows = append(s.Rows, row)
		if row.Error != "" {
			s.Errors = append(s.Errors, RecordError{MMSID: id, Message: row.Error})
		}
		s.Done++
		if r.OnProgress != nil {
			r.OnProgress(s.Done, s.Total)
		}
	}
	s.Finished = time.Now()
	return s
}

// ApplyRule is the single-record entry point.
func (r *Runner) ApplyRule(ctx context.Context, rule *rules.Rule, mmsID string) (rules.Outcome, error) {
	row := r.one(ctx, rule, mmsID)
	if row.Error != "" {
		return row.Outcome, &RuleApplicationError{MMSID: mmsID, Rule: rule.Name, Err: fmt.Errorf("%s", row.Error)}
	}
	return row.Outcome, nil
}

// one runs the full fetch-transform-write cycle for a single record. Any
// error leaves the stored record untouched: mutation happens on an
// in-memory tree, and the write is the last step.
func (r *Runner) one(ctx context.Context, rule *rules.Rule, mmsID string) Row {
	fields := log.Fields{"mms_id": mmsID, "rule": rule.Name}
	raw, err := r.Store.Fetch(ctx, mmsID)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("fetch failed")
		return errorRow(mmsID, err)
	}
	doc, err := bibxml.Parse(raw)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("parse failed")
		return errorRow(mmsID, err)
	}
	res, err := rule.Apply(doc)
	if err != nil {
		err = &RuleApplicationError{MMSID: mmsID, Rule: rule.Name, Err: err}
		log.WithFields(fields).WithError(err).Error("transformation failed")
		return errorRow(mmsID, err)
	}
	for _, w := range res.Warnings {
		log.WithFields(fields).Warn(w)
	}
	row := Row{MMSID: mmsID, Outcome: res.Outcome, Detail: joinMutations(res.Mutations)}
	if res.Outcome == rules.OutcomeNoChange || r.DryRun {
		log.WithFields(fields).WithField("outcome", res.Outcome).Debug("no write")
		return row
	}
	if r.Backup != nil {
		if err := r.Backup.Append(mmsID, raw); err != nil {
			log.WithFields(fields).WithError(err).Error("backup failed, not writing")
			return errorRow(mmsID, err)
		}
	}
	doc.Normalize()
	out, err := doc.Serialize()
	if err != nil {
		log.WithFields(fields).WithError(err).Error("serialize failed")
		return errorRow(mmsID, err)
	}
	if err := r.Store.Write(ctx, mmsID, out); err != nil {
		log.WithFields(fields).WithError(err).Error("write failed")
		return errorRow(mmsID, err)
	}
	log.WithFields(fields).WithField("outcome", res.Outcome).Info("record updated")
	return row
}

func errorRow(mmsID string, err error) Row {
	return Row{MMSID: mmsID, Outcome: rules.OutcomeError, Error: err.Error()}
}

func joinMutations(ms []string) string {
	switch len(ms) {
	case 0:
		return ""
	case 1:
		return ms[0]
	}
	out := ms[0]
	for _, m := range ms[1:] {
		out += "; " + m
	}
	return out
}
