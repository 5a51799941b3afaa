package batch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/grinnell-libraries/almadc/rules"
)

func record(fields string) []byte {
	return []byte(`<bib><mms_id>991001</mms_id><anies><record xmlns="http://www.exlibrisgroup.com/dps/dc01" xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Pioneer yearbook</dc:title>` + fields + `</record></anies></bib>`)
}

// fakeStore is an in-memory fetch/write collaborator.
type fakeStore struct {
	records map[string][]byte
	written map[string][]byte
	fetches int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string][]byte),
		written: make(map[string][]byte),
	}
}

func (s *fakeStore) Fetch(_ context.Context, mmsID string) ([]byte, error) {
	s.fetches++
	raw, ok := s.records[mmsID]
	if !ok {
		return nil, errors.New("404: record not found")
	}
	return raw, nil
}

func (s *fakeStore) Write(_ context.Context, mmsID string, body []byte) error {
	s.written[mmsID] = body
	return nil
}

type memBackup struct {
	saved map[string][]byte
}

func (b *memBackup) Append(mmsID string, raw []byte) error {
	if b.saved == nil {
		b.saved = make(map[string][]byte)
	}
	b.saved[mmsID] = raw
	return nil
}

func TestRunOutcomes(t *testing.T) {
	store := newFakeStore()
	store.records["1"] = record(`<dc:rights>Copyright to this work is held by the author(s).</dc:rights>`)
	store.records["2"] = record(``)
	store.records["3"] = record(`<dc:rights>` + "Copyright to this work is held by the author(s)." + `</dc:rights><dc:rights>` + "Copyright to this work is held by the author(s)." + `</dc:rights>`)
	store.records["4"] = []byte(`<bib><mms_id>4</mms_id><unclosed></bib>`)
	bkp := &memBackup{}
	runner := &Runner{Store: store, Backup: bkp}
	s := runner.Run(context.Background(), rules.ReplaceRights(), []string{"1", "2", "3", "4", "5"})

	want := map[rules.Outcome]int{
		rules.OutcomeReplaced: 2, // "3" has two legacy values, no canonical: replace first, purge second
		rules.OutcomeAdded:    1,
		rules.OutcomeError:    2, // malformed xml, missing record
	}
	for o, n := range want {
		if s.Counts[o] != n {
			t.Errorf("count[%s] = %d, want %d", o, s.Counts[o], n)
		}
	}
	if s.Done != 5 || s.Total != 5 || s.Canceled {
		t.Errorf("summary bookkeeping off: done=%d total=%d canceled=%v", s.Done, s.Total, s.Canceled)
	}
	if len(s.Errors) != 2 {
		t.Errorf("got %d record errors, want 2", len(s.Errors))
	}
	if len(store.written) != 3 {
		t.Errorf("got %d writes, want 3", len(store.written))
	}
	if len(bkp.saved) != 3 {
		t.Errorf("got %d backups, want 3", len(bkp.saved))
	}
	// Written records must be normalized: no default xmlns on the wrapper.
	for id, body := range store.written {
		if strings.Contains(string(body), `xmlns="`) {
			t.Errorf("record %s written with default xmlns declaration", id)
		}
	}
}

func TestRunDryRun(t *testing.T) {
	store := newFakeStore()
	store.records["1"] = record(``)
	runner := &Runner{Store: store, DryRun: true}
	s := runner.Run(context.Background(), rules.ReplaceRights(), []string{"1"})
	if s.Counts[rules.OutcomeAdded] != 1 {
		t.Fatalf("dry run should still report outcomes, got %v", s.Counts)
	}
	if len(store.written) != 0 {
		t.Fatal("dry run must not write")
	}
}

func TestRunNoChangeSkipsWrite(t *testing.T) {
	store := newFakeStore()
	store.records["1"] = record(``)
	runner := &Runner{Store: store}
	s := runner.Run(context.Background(), rules.AddGrinnellIdentifier(), []string{"1"})
	if s.Counts[rules.OutcomeNoChange] != 1 {
		t.Fatalf("got %v, want one no_change", s.Counts)
	}
	if len(store.written) != 0 {
		t.Fatal("no_change must not write")
	}
}

func TestRunCancellation(t *testing.T) {
	store := newFakeStore()
	for _, id := range []string{"1", "2", "3"} {
		store.records[id] = record(``)
	}
	ctx, cancel := context.WithCancel(context.Background())
	runner := &Runner{Store: store, DryRun: true}
	runner.OnProgress = func(done, total int) {
		if done == 1 {
			cancel()
		}
	}
	s := runner.Run(ctx, rules.ReplaceRights(), []string{"1", "2", "3"})
	if !s.Canceled {
		t.Fatal("summary should be marked canceled")
	}
	if s.Done != 1 {
		t.Errorf("done = %d, want 1 fully completed record", s.Done)
	}
	if s.Counts[rules.OutcomeAdded] != 1 {
		t.Errorf("partial counts wrong: %v", s.Counts)
	}
}

func TestApplyRuleSingleRecord(t *testing.T) {
	store := newFakeStore()
	store.records["1"] = record(`<dc:identifier>dg_12345</dc:identifier>`)
	runner := &Runner{Store: store}
	outcome, err := runner.ApplyRule(context.Background(), rules.AddGrinnellIdentifier(), "1")
	if err != nil {
		t.Fatal(err)
	}
	if outcome != rules.OutcomeAdded {
		t.Fatalf("got %s, want added", outcome)
	}
	if !strings.Contains(string(store.written["1"]), "Grinnell:12345") {
		t.Error("derived identifier missing from written record")
	}
}

func TestApplyRuleError(t *testing.T) {
	store := newFakeStore()
	runner := &Runner{Store: store}
	outcome, err := runner.ApplyRule(context.Background(), rules.ReplaceRights(), "nope")
	if outcome != rules.OutcomeError {
		t.Fatalf("got %s, want error", outcome)
	}
	var rerr *RuleApplicationError
	if !errors.As(err, &rerr) {
		t.Fatalf("got %T, want RuleApplicationError", err)
	}
	if rerr.MMSID != "nope" || rerr.Rule != "replace-rights" {
		t.Errorf("error context wrong: %v", rerr)
	}
}

func TestBackupFailureBlocksWrite(t *testing.T) {
	store := newFakeStore()
	store.records["1"] = record(``)
	runner := &Runner{Store: store, Backup: failingBackup{}}
	s := runner.Run(context.Background(), rules.ReplaceRights(), []string{"1"})
	if s.Counts[rules.OutcomeError] != 1 {
		t.Fatalf("got %v, want error outcome", s.Counts)
	}
	if len(store.written) != 0 {
		t.Fatal("must not write when the original could not be captured")
	}
}

type failingBackup struct{}

func (failingBackup) Append(string, []byte) error { return errors.New("disk full") }
