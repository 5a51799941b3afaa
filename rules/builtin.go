package rules

import (
	"fmt"
	"strings"

	"github.com/grinnell-libraries/almadc/bibxml"
)

// CanonicalRights is the institutionally approved rights statement, an HTML
// anchor that Alma-D renders as a link in the discovery layer.
const CanonicalRights = `<a href="http://rightsstatements.org/vocab/InC/1.0/" target="_blank">Copyright to this work is held by the author(s). It is made available under the In Copyright rights statement.</a>`

const (
	legacyRightsPrefix   = "Copyright to this work is held by the author(s)"
	legacyRightsBareURL  = "http://rightsstatements.org/"
	legacyIdentifier     = "dg_"
	canonicalIdentifier  = "Grinnell:"
	collectionLinkPrefix = "alma:01GCL_INST/bibs/collections/"
)

// ReplaceRights retires legacy free-text rights statements in favor of the
// canonical rights link. Records lacking dc:rights entirely get the
// canonical value appended.
func ReplaceRights() *Rule {
	return &Rule{
		Name:        "replace-rights",
		Field:       bibxml.DC("rights"),
		Kind:        KindReplace,
		Canonical:   CanonicalRights,
		IsCanonical: Predicate{Op: OpEquals, Value: CanonicalRights},
		Legacy: []Predicate{
			{Op: OpHasPrefix, Value: legacyRightsPrefix},
			{Op: OpHasPrefix, Value: legacyRightsBareURL},
		},
		AddIfAbsent: true,
	}
}

// AddGrinnellIdentifier adds a Grinnell:<n> identifier derived from a
// legacy dg_<n> identifier. The legacy identifier is kept; downstream
// systems still resolve it.
func AddGrinnellIdentifier() *Rule {
	return &Rule{
		Name:        "add-grinnell-identifier",
		Field:       bibxml.DC("identifier"),
		Kind:        KindDeriveAdd,
		IsCanonical: Predicate{Op: OpHasPrefix, Value: canonicalIdentifier},
		Legacy: []Predicate{
			{Op: OpHasPrefix, Value: legacyIdentifier},
		},
		Derive: deriveGrinnellIdentifier,
	}
}

// deriveGrinnellIdentifier swaps the dg_ prefix for the Grinnell: prefix.
// A literal prefix swap and nothing else; anything that does not match the
// dg_<digits> shape exactly is an error, never a guess.
func deriveGrinnellIdentifier(legacy string) (string, error) {
	rest, ok := strings.CutPrefix(legacy, legacyIdentifier)
	if !ok {
		return "", fmt.Errorf("identifier %q lacks %q prefix", legacy, legacyIdentifier)
	}
	if rest == "" {
		return "", fmt.Errorf("identifier %q has empty number part", legacy)
	}
	for _, c := range rest {
		if c < '0' || c > '9' {
			return "", fmt.Errorf("identifier %q has non-numeric part %q", legacy, rest)
		}
	}
	return canonicalIdentifier + rest, nil
}

// ClearCollectionRelations removes dc:relation values that point at Alma
// collection records. Those links are managed by Alma itself and duplicate
// the collection assignment when present in the descriptive metadata.
func ClearCollectionRelations() *Rule {
	return &Rule{
		Name:  "clear-collection-relations",
		Field: bibxml.DC("relation"),
		Kind:  KindRemove,
		Legacy: []Predicate{
			{Op: OpHasPrefix, Value: collectionLinkPrefix},
		},
	}
}

// All returns the registered rules in a stable order.
func All() []*Rule {
	return []*Rule{
		ReplaceRights(),
		AddGrinnellIdentifier(),
		ClearCollectionRelations(),
	}
}

// ByName looks up a rule by its registered name.
func ByName(name string) (*Rule, bool) {
	for _, r := range All() {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}
