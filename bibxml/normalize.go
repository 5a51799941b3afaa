package bibxml

import "github.com/beevik/etree"

// Normalize rewrites namespace prefixes and declarations into the one form
// the Alma write API accepts: dc and dcterms vocabularies carry their
// expected literal prefixes, the institutional record namespace is carried
// by unprefixed tags with no default xmlns declaration, and placeholder
// prefixes (ns0 and friends, introduced by generic XML tooling) are
// eliminated. All rewriting happens on the tree's tag and attribute
// structure; element text is never touched, so field values that happen to
// contain namespace-looking strings are safe.
//
// Normalize is idempotent and has no semantic effect on field values. It
// exists only to satisfy the receiving system's validator and should stay
// the single place that knows about these quirks.
func (d *Document) Normalize() {
	root := d.doc.Root()
	if root == nil {
		return
	}
	// Resolve every element's namespace before any declaration is touched.
	resolved := make(map[*etree.Element]string)
	walk(root, func(e *etree.Element) {
		resolved[e] = ResolveNS(e)
	})
	var carrier *etree.Element
	needs := make(map[string]bool)
	walk(root, func(e *etree.Element) {
		dropManagedDeclarations(e)
		switch resolved[e] {
		case NSDC:
			e.Space = expectedPrefixes[NSDC]
			needs[NSDC] = true
			if carrier == nil {
				carrier = e.Parent()
			}
		case NSDCTerms:
			e.Space = expectedPrefixes[NSDCTerms]
			needs[NSDCTerms] = true
			if carrier == nil {
				carrier = e.Parent()
			}
		case NSRecord:
			e.Space = ""
			if e.Tag == "record" && carrier == nil {
				carrier = e
			}
		}
	})
	if carrier == nil {
		return
	}
	// Re-establish the vocabulary declarations in one fixed place.
	for _, uri := range []string{NSDC, NSDCTerms} {
		if needs[uri] && prefixInScope(carrier, uri) == "" {
			carrier.CreateAttr("xmlns:"+expectedPrefixes[uri], uri)
		}
	}
}

// dropManagedDeclarations removes xmlns declarations, default or prefixed,
// that bind any of the namespaces the normalizer manages itself.
func dropManagedDeclarations(e *etree.Element) {
	var remove []string
	for _, a := range e.Attr {
		decl := (a.Space == "xmlns") || (a.Space == "" && a.Key == "xmlns")
		if !decl {
			continue
		}
		switch a.Value {
		case NSDC, NSDCTerms, NSRecord:
			remove = append(remove, a.FullKey())
		}
	}
	for _, key := range remove {
		e.RemoveAttr(key)
	}
}
