// Package normal cleans up field text before rule predicates look at it.
// Alma-D values accumulate stray whitespace from years of copy-paste
// cataloging; predicates match on the cleaned form, while the stored value
// is only rewritten when a rule actually fires.
package normal

import (
	"strings"
	"unicode"
)

type Pipeline struct {
	Normalizer []Normalizer
}

func (p *Pipeline) Normalize(s string) string {
	for _, n := range p.Normalizer {
		s = n.Normalize(s)
	}
	return s
}

type Normalizer interface {
	Normalize(string) string
}

// TrimNormalizer removes leading and trailing whitespace.
type TrimNormalizer struct{}

func (n *TrimNormalizer) Normalize(v string) string {
	return strings.TrimSpace(v)
}

// CollapseWSNormalizer collapses internal runs of whitespace, including
// newlines from pretty-printed XML, into single spaces.
type CollapseWSNormalizer struct{}

func (n *CollapseWSNormalizer) Normalize(v string) string {
	var (
		b     strings.Builder
		inRun bool
	)
	for _, c := range v {
		if unicode.IsSpace(c) {
			inRun = true
			continue
		}
		if inRun && b.Len() > 0 {
			b.WriteRune(' ')
		}
		inRun = false
		b.WriteRune(c)
	}
	return b.String()
}

var defaultPipeline = &Pipeline{
	Normalizer: []Normalizer{
		&CollapseWSNormalizer{},
		&TrimNormalizer{},
	},
}

// Clean runs the default cleanup pipeline.
func Clean(s string) string {
	return defaultPipeline.Normalize(s)
}
