package report

import (
	"cmp"
	"slices"
	"strings"
)

// DefaultMaxDepth bounds fragment nesting during rendering.
const DefaultMaxDepth = 8

// maxHeadingLevel is the deepest markdown heading.
const maxHeadingLevel = 6

// Heading prefixes per fragment kind.
const (
	PrefixWarning = "⚠️ "
	PrefixError   = "❌ "
	PrefixInfo    = "ℹ️ "
)

// RenderContext carries the conditions visibility rules are evaluated against.
type RenderContext struct {
	HasErrors   bool
	HasWarnings bool
	Verbose     bool

	// DisableSort keeps siblings in insertion order.
	DisableSort bool

	// MaxDepth caps nesting; zero means DefaultMaxDepth.
	MaxDepth int

	// BaseLevel is the heading level of top-level titles; zero means 1.
	BaseLevel int
}

// Visible evaluates f's visibility rule.
func (rc RenderContext) Visible(f *Fragment) bool {
	switch f.visibility {
	case VisibleAlways:
		return true
	case VisibleOnError:
		return rc.HasErrors
	case VisibleOnWarning:
		return rc.HasWarnings
	case VisibleVerbose:
		return rc.Verbose
	default:
		return false
	}
}

// Render walks the tree depth-first and emits markdown.
func Render(f *Fragment, rc RenderContext) string {
	if rc.MaxDepth <= 0 {
		rc.MaxDepth = DefaultMaxDepth
	}

	if rc.BaseLevel <= 0 {
		rc.BaseLevel = 1
	}

	var sb strings.Builder

	renderNode(&sb, f, rc, rc.BaseLevel, 0)

	out := strings.TrimRight(sb.String(), " \n")
	if out == "" {
		return ""
	}

	return out + "\n"
}

func renderNode(sb *strings.Builder, f *Fragment, rc RenderContext, level, nesting int) {
	if f == nil || nesting > rc.MaxDepth || !rc.Visible(f) {
		return
	}

	if f.IsEmpty() && f.kind != KindHeader {
		return
	}

	childLevel := level

	if f.title != "" {
		sb.WriteString(strings.Repeat("#", min(level, maxHeadingLevel)))
		sb.WriteByte(' ')
		sb.WriteString(prefixFor(f.kind))
		sb.WriteString(f.title)
		sb.WriteString("\n\n")

		childLevel++
	}

	if body := strings.TrimRight(f.body, " \n"); strings.TrimSpace(body) != "" {
		sb.WriteString(body)
		sb.WriteString("\n\n")
	}

	for _, c := range orderedChildren(f, rc.DisableSort) {
		renderNode(sb, c, rc, childLevel, nesting+1)
	}
}

func prefixFor(k Kind) string {
	switch k {
	case KindWarning:
		return PrefixWarning
	case KindError:
		return PrefixError
	case KindInfo:
		return PrefixInfo
	default:
		return ""
	}
}

func orderedChildren(f *Fragment, disableSort bool) []*Fragment {
	if disableSort || len(f.children) < 2 {
		return f.children
	}

	sorted := slices.Clone(f.children)
	slices.SortStableFunc(sorted, func(a, b *Fragment) int {
		return cmp.Compare(a.order, b.order)
	})

	return sorted
}

// Prune returns a copy of f without fragments that rc would hide.
// The result is Empty() when nothing remains visible.
func Prune(f *Fragment, rc RenderContext) *Fragment {
	if f == nil || !rc.Visible(f) {
		return Empty()
	}

	if len(f.children) == 0 {
		return f
	}

	kept := make([]*Fragment, 0, len(f.children))

	for _, c := range f.children {
		if p := Prune(c, rc); !p.IsEmpty() {
			kept = append(kept, p)
		}
	}

	out := f.With()
	out.children = kept

	return out
}
