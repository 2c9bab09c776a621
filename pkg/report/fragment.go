// Package report provides immutable, composable report fragments and the
// markdown renderer that turns a fragment tree into one document.
package report

import (
	"maps"
	"slices"
	"strings"
)

// Kind classifies a fragment and selects its heading prefix.
type Kind int

// Fragment kinds.
const (
	KindSection Kind = iota
	KindHeader
	KindWarning
	KindError
	KindInfo
	KindContainer
	KindConditional
)

var kindNames = [...]string{"section", "header", "warning", "error", "info", "container", "conditional"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return "unknown"
}

// Visibility decides whether a fragment renders in a given RenderContext.
type Visibility int

// Visibility rules.
const (
	VisibleAlways Visibility = iota
	VisibleOnError
	VisibleOnWarning
	VisibleVerbose
	VisibleHidden
)

// Fragment is an immutable node of report content. The zero value is not
// used; fragments come from the named constructors in this package.
type Fragment struct {
	title      string
	body       string
	order      int
	kind       Kind
	visibility Visibility
	metadata   map[string]string
	children   []*Fragment
}

// Option customizes a fragment while it is being built.
type Option func(*builder)

// builder is the mutable stage; Build freezes it into a Fragment.
type builder struct {
	frag Fragment
}

func (b *builder) build() *Fragment {
	out := b.frag
	out.children = slices.Clone(b.frag.children)
	out.metadata = maps.Clone(b.frag.metadata)

	return &out
}

func newFragment(kind Kind, title, body string, opts []Option) *Fragment {
	b := &builder{frag: Fragment{kind: kind, title: title, body: body}}

	for _, opt := range opts {
		opt(b)
	}

	return b.build()
}

// WithOrder sets the sort key among siblings (lower first).
func WithOrder(order int) Option {
	return func(b *builder) { b.frag.order = order }
}

// WithVisibility sets the visibility rule.
func WithVisibility(v Visibility) Option {
	return func(b *builder) { b.frag.visibility = v }
}

// WithMetadata attaches a metadata key.
func WithMetadata(key, value string) Option {
	return func(b *builder) {
		if b.frag.metadata == nil {
			b.frag.metadata = make(map[string]string)
		}

		b.frag.metadata[key] = value
	}
}

// WithChildren appends children; nil entries are skipped.
func WithChildren(children ...*Fragment) Option {
	return func(b *builder) {
		for _, c := range children {
			if c != nil {
				b.frag.children = append(b.frag.children, c)
			}
		}
	}
}

// Header creates a top-level heading fragment.
func Header(title, body string, opts ...Option) *Fragment {
	return newFragment(KindHeader, title, body, opts)
}

// Section creates a plain titled section.
func Section(title, body string, opts ...Option) *Fragment {
	return newFragment(KindSection, title, body, opts)
}

// Warning creates a warning fragment.
func Warning(title, body string, opts ...Option) *Fragment {
	return newFragment(KindWarning, title, body, opts)
}

// Error creates an error fragment.
func Error(title, body string, opts ...Option) *Fragment {
	return newFragment(KindError, title, body, opts)
}

// Info creates an informational fragment.
func Info(title, body string, opts ...Option) *Fragment {
	return newFragment(KindInfo, title, body, opts)
}

// Container groups children without a title of its own.
func Container(children ...*Fragment) *Fragment {
	return newFragment(KindContainer, "", "", []Option{WithChildren(children...)})
}

// Conditional groups children under a visibility rule.
func Conditional(v Visibility, children ...*Fragment) *Fragment {
	return newFragment(KindConditional, "", "", []Option{WithVisibility(v), WithChildren(children...)})
}

var empty = &Fragment{kind: KindContainer}

// Empty returns the canonical empty fragment.
func Empty() *Fragment {
	return empty
}

// Title returns the fragment title.
func (f *Fragment) Title() string { return f.title }

// Body returns the fragment body text.
func (f *Fragment) Body() string { return f.body }

// Order returns the sibling sort key.
func (f *Fragment) Order() int { return f.order }

// Kind returns the fragment kind.
func (f *Fragment) Kind() Kind { return f.kind }

// Visibility returns the visibility rule.
func (f *Fragment) Visibility() Visibility { return f.visibility }

// Metadata returns a copy of the metadata map.
func (f *Fragment) Metadata() map[string]string { return maps.Clone(f.metadata) }

// Meta returns one metadata value.
func (f *Fragment) Meta(key string) (string, bool) {
	v, ok := f.metadata[key]

	return v, ok
}

// Children returns a copy of the child list.
func (f *Fragment) Children() []*Fragment { return slices.Clone(f.children) }

// IsEmpty reports whether the fragment has a blank body and only empty descendants.
func (f *Fragment) IsEmpty() bool {
	if f == nil {
		return true
	}

	if strings.TrimSpace(f.body) != "" {
		return false
	}

	for _, c := range f.children {
		if !c.IsEmpty() {
			return false
		}
	}

	return true
}

// With returns a copy of f with opts applied on top of its current fields.
func (f *Fragment) With(opts ...Option) *Fragment {
	b := &builder{frag: *f}
	b.frag.children = slices.Clone(f.children)
	b.frag.metadata = maps.Clone(f.metadata)

	for _, opt := range opts {
		opt(b)
	}

	return b.build()
}
