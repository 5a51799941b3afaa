package rules

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/grinnell-libraries/almadc/bibxml"
)

func mustParse(t *testing.T, s string) *bibxml.Document {
	t.Helper()
	doc, err := bibxml.Parse([]byte(s))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func record(fields string) string {
	return `<bib><mms_id>991001</mms_id><anies><record xmlns="http://www.exlibrisgroup.com/dps/dc01" xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Pioneer yearbook</dc:title>` + fields + `</record></anies></bib>`
}

func fieldTexts(doc *bibxml.Document, q bibxml.QName) []string {
	var out []string
	for _, e := range doc.FindAll(q) {
		out = append(out, e.Text())
	}
	return out
}

func TestReplaceRightsLegacyValue(t *testing.T) {
	doc := mustParse(t, record(`<dc:rights>Copyright to this work is held by the author(s). All rights reserved.</dc:rights>`))
	res, err := ReplaceRights().Apply(doc)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeReplaced {
		t.Fatalf("got outcome %s, want replaced", res.Outcome)
	}
	rights := fieldTexts(doc, bibxml.DC("rights"))
	if len(rights) != 1 || rights[0] != CanonicalRights {
		t.Fatalf("got rights %v, want single canonical value", rights)
	}
}

func TestReplaceRightsAbsentField(t *testing.T) {
	doc := mustParse(t, record(``))
	res, err := ReplaceRights().Apply(doc)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeAdded {
		t.Fatalf("got outcome %s, want added", res.Outcome)
	}
	if len(res.Warnings) == 0 {
		t.Error("adding to a record that lacked the field should warn")
	}
	rights := fieldTexts(doc, bibxml.DC("rights"))
	if len(rights) != 1 || rights[0] != CanonicalRights {
		t.Fatalf("got rights %v, want single canonical value", rights)
	}
}

func TestReplaceRightsAlreadyCanonical(t *testing.T) {
	doc := mustParse(t, record(`<dc:rights>`+escape(CanonicalRights)+`</dc:rights>`))
	res, err := ReplaceRights().Apply(doc)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeNoChange {
		t.Fatalf("got outcome %s, want no_change", res.Outcome)
	}
}

func TestReplaceRightsRemovesDuplicates(t *testing.T) {
	doc := mustParse(t, record(`<dc:rights>`+escape(CanonicalRights)+`</dc:rights><dc:rights>Copyright to this work is held by the author(s).</dc:rights><dc:rights>`+escape(CanonicalRights)+`</dc:rights>`))
	res, err := ReplaceRights().Apply(doc)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeDuplicatesRemoved {
		t.Fatalf("got outcome %s, want duplicates_removed", res.Outcome)
	}
	rights := fieldTexts(doc, bibxml.DC("rights"))
	if len(rights) != 1 {
		t.Fatalf("at-most-one-canonical violated, got %d rights", len(rights))
	}
}

func TestReplaceRightsNoSuitableParent(t *testing.T) {
	doc := mustParse(t, `<bib><mms_id>991001</mms_id><anies></anies></bib>`)
	_, err := ReplaceRights().Apply(doc)
	if err == nil {
		t.Fatal("expected error for record without any DC anchor")
	}
}

func TestAddGrinnellIdentifierDerives(t *testing.T) {
	doc := mustParse(t, record(`<dc:identifier>dg_12345</dc:identifier>`))
	res, err := AddGrinnellIdentifier().Apply(doc)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeAdded {
		t.Fatalf("got outcome %s, want added", res.Outcome)
	}
	ids := fieldTexts(doc, bibxml.DC("identifier"))
	want := []string{"dg_12345", "Grinnell:12345"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("identifiers (-want +got):\n%s", diff)
	}
}

func TestAddGrinnellIdentifierPreservesLegacy(t *testing.T) {
	// Product decision: once the canonical identifier exists, legacy
	// identifiers stay.
	doc := mustParse(t, record(`<dc:identifier>Grinnell:12345</dc:identifier><dc:identifier>dg_12345</dc:identifier>`))
	res, err := AddGrinnellIdentifier().Apply(doc)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeNoChange {
		t.Fatalf("got outcome %s, want no_change", res.Outcome)
	}
	ids := fieldTexts(doc, bibxml.DC("identifier"))
	want := []string{"Grinnell:12345", "dg_12345"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("identifiers (-want +got):\n%s", diff)
	}
}

func TestAddGrinnellIdentifierNoSource(t *testing.T) {
	doc := mustParse(t, record(`<dc:identifier>local-43</dc:identifier>`))
	res, err := AddGrinnellIdentifier().Apply(doc)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeNoChange {
		t.Fatalf("got outcome %s, want no_change", res.Outcome)
	}
}

func TestAddGrinnellIdentifierMalformedSource(t *testing.T) {
	doc := mustParse(t, record(`<dc:identifier>dg_12a45</dc:identifier>`))
	if _, err := AddGrinnellIdentifier().Apply(doc); err == nil {
		t.Fatal("malformed legacy identifier must error, not guess")
	}
}

func TestClearCollectionRelations(t *testing.T) {
	doc := mustParse(t, record(`<dc:relation>alma:01GCL_INST/bibs/collections/81234</dc:relation><dc:relation>Related item</dc:relation>`))
	res, err := ClearCollectionRelations().Apply(doc)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeDuplicatesRemoved {
		t.Fatalf("got outcome %s, want duplicates_removed", res.Outcome)
	}
	rels := fieldTexts(doc, bibxml.DC("relation"))
	want := []string{"Related item"}
	if diff := cmp.Diff(want, rels); diff != "" {
		t.Errorf("relations (-want +got):\n%s", diff)
	}
}

func TestNonInterference(t *testing.T) {
	doc := mustParse(t, record(`<dc:rights>Copyright to this work is held by the author(s).</dc:rights><dc:identifier>dg_7</dc:identifier>`))
	before := fieldTexts(doc, bibxml.DC("title"))
	beforeIDs := fieldTexts(doc, bibxml.DC("identifier"))
	if _, err := ReplaceRights().Apply(doc); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(before, fieldTexts(doc, bibxml.DC("title"))); diff != "" {
		t.Errorf("dc:title touched:\n%s", diff)
	}
	if diff := cmp.Diff(beforeIDs, fieldTexts(doc, bibxml.DC("identifier"))); diff != "" {
		t.Errorf("dc:identifier touched:\n%s", diff)
	}
}

// TestIdempotence applies every builtin rule twice and checks the second
// pass is a byte-level no-op on the normalized serialization.
func TestIdempotence(t *testing.T) {
	inputs := map[string]string{
		"legacy rights":     record(`<dc:rights>Copyright to this work is held by the author(s).</dc:rights>`),
		"absent rights":     record(``),
		"legacy identifier": record(`<dc:identifier>dg_12345</dc:identifier>`),
		"collection links":  record(`<dc:relation>alma:01GCL_INST/bibs/collections/81234</dc:relation>`),
	}
	for _, rule := range All() {
		for name, input := range inputs {
			t.Run(rule.Name+"/"+name, func(t *testing.T) {
				doc := mustParse(t, input)
				if _, err := rule.Apply(doc); err != nil {
					t.Fatal(err)
				}
				doc.Normalize()
				first, err := doc.Serialize()
				if err != nil {
					t.Fatal(err)
				}
				doc2 := mustParse(t, string(first))
				res, err := rule.Apply(doc2)
				if err != nil {
					t.Fatal(err)
				}
				if res.Outcome != OutcomeNoChange {
					t.Fatalf("second pass outcome %s, want no_change", res.Outcome)
				}
				doc2.Normalize()
				second, err := doc2.Serialize()
				if err != nil {
					t.Fatal(err)
				}
				if diff := cmp.Diff(string(first), string(second)); diff != "" {
					t.Errorf("second pass changed bytes:\n%s", diff)
				}
			})
		}
	}
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
