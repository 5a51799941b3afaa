// Package bibxml wraps a single bibliographic record's XML document and
// provides namespace-aware access to its Dublin Core fields. Alma-D records
// are inconsistent about namespace declarations: some declare dc with a
// prefix, some fold everything under a default namespace, some use prefixes
// without declaring them at all. All lookups here go through namespace URI
// resolution rather than textual prefixes.
package bibxml

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"
)

// ErrNoSuitableParent is returned when a record contains no Dublin Core
// element of any kind, so there is no anchor under which a new field could
// be appended. Such records are structurally atypical and need manual
// review.
var ErrNoSuitableParent = errors.New("no suitable parent for new metadata element")

// ParseError wraps a well-formedness failure of the raw record XML.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed record xml: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Document is the mutable in-memory tree of one record. It is owned by a
// single fetch-transform-write cycle and never shared across records.
type Document struct {
	doc *etree.Document
}

// Parse reads raw XML into a mutable document tree.
func Parse(raw []byte) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, &ParseError{Err: err}
	}
	if doc.Root() == nil {
		return nil, &ParseError{Err: errors.New("document has no root element")}
	}
	return &Document{doc: doc}, nil
}

// Root returns the document's root element.
func (d *Document) Root() *etree.Element {
	return d.doc.Root()
}

// Serialize writes the tree back to XML text. Call Normalize first when the
// output is destined for the Alma write API.
func (d *Document) Serialize() ([]byte, error) {
	return d.doc.WriteToBytes()
}

// ResolveNS returns the namespace URI of an element, walking xmlns
// declarations up the ancestor chain. An undeclared prefix falls back to the
// well-known prefix table, since records in the wild use dc: without
// declaring it.
func ResolveNS(e *etree.Element) string {
	prefix := e.Space
	for el := e; el != nil; el = el.Parent() {
		for _, a := range el.Attr {
			if prefix == "" {
				if a.Space == "" && a.Key == "xmlns" {
					return a.Value
				}
			} else if a.Space == "xmlns" && a.Key == prefix {
				return a.Value
			}
		}
	}
	if prefix != "" {
		return wellKnownPrefixes[prefix]
	}
	return ""
}

// FindAll returns all elements matching the qualified name, in document
// order.
func (d *Document) FindAll(q QName) []*etree.Element {
	var out []*etree.Element
	walk(d.doc.Root(), func(e *etree.Element) {
		if e.Tag == q.Local && ResolveNS(e) == q.Space {
			out = append(out, e)
		}
	})
	return out
}

// AppendParent locates the element under which a new instance of the given
// field type should be appended. It prefers the institutional record
// wrapper, but since some records lack that wrapper entirely, it falls back
// to the parent of any element carrying a Dublin Core namespace.
func (d *Document) AppendParent(q QName) (*etree.Element, error) {
	var wrapper, anchor *etree.Element
	walk(d.doc.Root(), func(e *etree.Element) {
		if wrapper == nil && e.Tag == "record" && ResolveNS(e) == NSRecord {
			wrapper = e
		}
		if anchor == nil {
			switch ResolveNS(e) {
			case NSDC, NSDCTerms:
				anchor = e.Parent()
			}
		}
	})
	if wrapper != nil {
		return wrapper, nil
	}
	if anchor != nil {
		return anchor, nil
	}
	return nil, ErrNoSuitableParent
}

// AppendField appends a new element of the given field type with the given
// text value, reusing a declared prefix for the namespace when one is in
// scope and declaring the expected prefix otherwise.
func (d *Document) AppendField(q QName, text string) (*etree.Element, error) {
	parent, err := d.AppendParent(q)
	if err != nil {
		return nil, err
	}
	prefix := prefixInScope(parent, q.Space)
	if prefix == "" {
		prefix = expectedPrefixes[q.Space]
		if prefix == "" {
			return nil, fmt.Errorf("no prefix known for namespace %s", q.Space)
		}
		if !declares(parent, prefix) {
			parent.CreateAttr("xmlns:"+prefix, q.Space)
		}
	}
	e := parent.CreateElement(prefix + ":" + q.Local)
	e.SetText(text)
	return e, nil
}

// Remove detaches an element from its parent. Removing the last child
// leaves the parent in place.
func (d *Document) Remove(e *etree.Element) {
	if p := e.Parent(); p != nil {
		p.RemoveChild(e)
	}
}

// prefixInScope finds a prefix already bound to the namespace URI in the
// scope of el.
func prefixInScope(el *etree.Element, uri string) string {
	for e := el; e != nil; e = e.Parent() {
		for _, a := range e.Attr {
			if a.Space == "xmlns" && a.Value == uri {
				return a.Key
			}
		}
	}
	return ""
}

// declares reports whether el itself declares the given prefix.
func declares(el *etree.Element, prefix string) bool {
	for _, a := range el.Attr {
		if a.Space == "xmlns" && a.Key == prefix {
			return true
		}
	}
	return false
}

func walk(e *etree.Element, f func(*etree.Element)) {
	if e == nil {
		return
	}
	f(e)
	for _, c := range e.ChildElements() {
		walk(c, f)
	}
}
