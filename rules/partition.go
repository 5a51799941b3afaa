package rules

import (
	"github.com/beevik/etree"

	"github.com/grinnell-libraries/almadc/normal"
)

// Partition is the disjoint categorization of all existing instances of one
// field type under one rule. Predicates run in a fixed priority order:
// canonical first, then each legacy pattern in rule order. At most one
// element is ever treated as the canonical instance; further canonical-form
// elements land in Extras so the at-most-one invariant can be enforced.
type Partition struct {
	// Canonical is the first canonical-form element in document order,
	// nil when none exists.
	Canonical *etree.Element
	// Extras are canonical-form duplicates beyond the first.
	Extras []*etree.Element
	// Legacy are elements matching any legacy predicate, document order.
	Legacy []*etree.Element
	// Other are same-named elements matching no predicate. The engine
	// must leave them untouched.
	Other []*etree.Element
}

// Partition categorizes the ordered element list for the rule's field type.
func (r *Rule) Partition(elems []*etree.Element) Partition {
	var p Partition
	for _, e := range elems {
		text := normal.Clean(e.Text())
		switch {
		case r.IsCanonical.Match(text):
			if p.Canonical == nil {
				p.Canonical = e
			} else {
				p.Extras = append(p.Extras, e)
			}
		case matchAny(r.Legacy, text):
			p.Legacy = append(p.Legacy, e)
		default:
			p.Other = append(p.Other, e)
		}
	}
	return p
}

func matchAny(preds []Predicate, text string) bool {
	for _, p := range preds {
		if p.Match(text) {
			return true
		}
	}
	return false
}
