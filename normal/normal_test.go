package normal

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Grinnell:12345", "Grinnell:12345"},
		{"  dg_12345  ", "dg_12345"},
		{"Copyright to this work\n    is held by the author(s)", "Copyright to this work is held by the author(s)"},
		{"\t \n ", ""},
		{"a  b\tc", "a b c"},
		{"résumé   title", "résumé title"},
	}
	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCollapseWSNormalizer(t *testing.T) {
	n := &CollapseWSNormalizer{}
	// Leading whitespace is dropped entirely, trailing runs too; the
	// trim step exists for pipelines that skip collapsing.
	if got := n.Normalize("  a   b  "); got != "a b" {
		t.Errorf("got %q", got)
	}
}

func TestPipelineOrder(t *testing.T) {
	p := &Pipeline{Normalizer: []Normalizer{&TrimNormalizer{}}}
	if got := p.Normalize(" a  b "); got != "a  b" {
		t.Errorf("trim-only pipeline must leave inner runs: got %q", got)
	}
}
