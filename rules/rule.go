// Package rules implements the field-rewrite rules applied to Alma-D
// Dublin Core records. A rule is declarative data: a target field type, a
// canonical-form predicate, priority-ordered legacy predicates, and one of
// a closed set of rule kinds. The engine in this package decides a single
// deterministic action per record from the partition of the field's
// existing values.
package rules

import (
	"fmt"
	"strings"

	"github.com/grinnell-libraries/almadc/bibxml"
)

// Outcome is the closed-set classification of what one rule application did
// to one record.
type Outcome string

const (
	OutcomeReplaced          Outcome = "replaced"
	OutcomeAdded             Outcome = "added"
	OutcomeDuplicatesRemoved Outcome = "duplicates_removed"
	OutcomeNoChange          Outcome = "no_change"
	OutcomeError             Outcome = "error"
)

// Outcomes lists all outcomes in report order.
var Outcomes = []Outcome{
	OutcomeReplaced,
	OutcomeAdded,
	OutcomeDuplicatesRemoved,
	OutcomeNoChange,
	OutcomeError,
}

// Op selects a text match operation for a predicate.
type Op int

const (
	OpNone Op = iota // zero value, matches nothing
	OpEquals
	OpHasPrefix
	OpContains
)

// Predicate is a single text match against a field value. Values are
// whitespace-normalized before matching.
type Predicate struct {
	Op    Op
	Value string
}

func (p Predicate) Match(s string) bool {
	switch p.Op {
	case OpEquals:
		return s == p.Value
	case OpHasPrefix:
		return strings.HasPrefix(s, p.Value)
	case OpContains:
		return strings.Contains(s, p.Value)
	}
	return false
}

// Kind is the closed set of rule behaviors.
type Kind int

const (
	// KindReplace rewrites the first legacy match to the canonical literal
	// and purges remaining legacy matches and extra canonicals. With
	// AddIfAbsent set, a record lacking the field entirely gets a new
	// canonical element appended.
	KindReplace Kind = iota
	// KindDeriveAdd appends a canonical element whose value is derived
	// from the first legacy match. Legacy values are preserved alongside
	// the canonical one; only surplus canonicals are removed.
	KindDeriveAdd
	// KindRemove deletes every matching value outright.
	KindRemove
)

func (k Kind) String() string {
	switch k {
	case KindReplace:
		return "replace"
	case KindDeriveAdd:
		return "derive-add"
	case KindRemove:
		return "remove"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Rule describes one field-rewrite rule. Rules are stateless and shared
// read-only across all records in a run.
type Rule struct {
	Name        string
	Field       bibxml.QName
	Kind        Kind
	Canonical   string    // canonical literal, KindReplace only
	IsCanonical Predicate // matches an already-correct value
	Legacy      []Predicate
	AddIfAbsent bool
	// Derive computes the canonical value from a legacy value,
	// KindDeriveAdd only. It must fail rather than guess when the source
	// does not match the expected shape exactly.
	Derive func(legacy string) (string, error)
}
