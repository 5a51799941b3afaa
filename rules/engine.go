package rules

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/grinnell-libraries/almadc/bibxml"
	"github.com/grinnell-libraries/almadc/normal"
)

// Result describes what one rule application did to one record.
type Result struct {
	Outcome Outcome
	// Mutations is a human-readable log of every change made to the tree.
	Mutations []string
	// Warnings flags conditions that succeeded but warrant human review,
	// like a record that lacked the target field entirely.
	Warnings []string
}

func (res *Result) mutated(format string, args ...interface{}) {
	res.Mutations = append(res.Mutations, fmt.Sprintf(format, args...))
}

// Apply runs the rule against a parsed record document, mutating the tree
// in place. On error the caller must discard the document rather than write
// it back; no partial mutation is rolled back.
//
// The decision table, with partition P of the field's instances:
//
//	canonical present, nothing surplus      -> no_change
//	canonical present, surplus present      -> remove surplus -> duplicates_removed
//	canonical absent, legacy present        -> rewrite first legacy, purge rest -> replaced
//	canonical absent, legacy absent         -> append canonical (add-if-absent) -> added
//
// KindDeriveAdd never removes legacy values and derives the appended value
// from the first legacy match. KindRemove only ever deletes matches.
func (r *Rule) Apply(doc *bibxml.Document) (Result, error) {
	var res Result
	elems := doc.FindAll(r.Field)
	p := r.Partition(elems)
	switch r.Kind {
	case KindReplace:
		return r.applyReplace(doc, p)
	case KindDeriveAdd:
		return r.applyDeriveAdd(doc, p)
	case KindRemove:
		return r.applyRemove(doc, p)
	}
	return res, fmt.Errorf("rule %s: unknown kind %v", r.Name, r.Kind)
}

func (r *Rule) applyReplace(doc *bibxml.Document, p Partition) (Result, error) {
	var res Result
	surplus := append(append([]*etree.Element{}, p.Extras...), p.Legacy...)
	switch {
	case p.Canonical != nil && len(surplus) == 0:
		res.Outcome = OutcomeNoChange
	case p.Canonical != nil:
		r.removeAll(doc, &res, surplus)
		res.Outcome = OutcomeDuplicatesRemoved
	case len(p.Legacy) > 0:
		first := p.Legacy[0]
		res.mutated("replaced %s %q with canonical value", r.Field, clip(first.Text()))
		first.SetText(r.Canonical)
		r.removeAll(doc, &res, p.Legacy[1:])
		res.Outcome = OutcomeReplaced
	case r.AddIfAbsent:
		if _, err := doc.AppendField(r.Field, r.Canonical); err != nil {
			return res, fmt.Errorf("rule %s: %w", r.Name, err)
		}
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("record had no %s at all, appended canonical value", r.Field))
		res.mutated("added %s with canonical value", r.Field)
		res.Outcome = OutcomeAdded
	default:
		res.Outcome = OutcomeNoChange
	}
	return res, nil
}

func (r *Rule) applyDeriveAdd(doc *bibxml.Document, p Partition) (Result, error) {
	var res Result
	switch {
	case p.Canonical != nil && len(p.Extras) > 0:
		// Legacy values are deliberately preserved, only canonical
		// duplicates go.
		r.removeAll(doc, &res, p.Extras)
		res.Outcome = OutcomeDuplicatesRemoved
	case p.Canonical != nil:
		res.Outcome = OutcomeNoChange
	case len(p.Legacy) > 0:
		source := normal.Clean(p.Legacy[0].Text())
		derived, err := r.Derive(source)
		if err != nil {
			return res, fmt.Errorf("rule %s: derive: %w", r.Name, err)
		}
		if _, err := doc.AppendField(r.Field, derived); err != nil {
			return res, fmt.Errorf("rule %s: %w", r.Name, err)
		}
		res.mutated("added %s %q derived from %q", r.Field, derived, source)
		res.Outcome = OutcomeAdded
	default:
		res.Outcome = OutcomeNoChange
	}
	return res, nil
}

func (r *Rule) applyRemove(doc *bibxml.Document, p Partition) (Result, error) {
	var res Result
	if len(p.Legacy) == 0 {
		res.Outcome = OutcomeNoChange
		return res, nil
	}
	r.removeAll(doc, &res, p.Legacy)
	res.Outcome = OutcomeDuplicatesRemoved
	return res, nil
}

func (r *Rule) removeAll(doc *bibxml.Document, res *Result, elems []*etree.Element) {
	for _, e := range elems {
		res.mutated("removed %s %q", r.Field, clip(e.Text()))
		doc.Remove(e)
	}
}

// clip shortens long field values for the mutation log.
func clip(s string) string {
	s = normal.Clean(s)
	if len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}
