package report

// Compose folds fragments into one container. Empty fragments are dropped;
// a single survivor is returned unchanged and no survivors yield Empty().
func Compose(fragments ...*Fragment) *Fragment {
	kept := make([]*Fragment, 0, len(fragments))

	for _, f := range fragments {
		if !f.IsEmpty() {
			kept = append(kept, f)
		}
	}

	switch len(kept) {
	case 0:
		return Empty()
	case 1:
		return kept[0]
	default:
		return Container(kept...)
	}
}

// WithHeader wraps f in a titled section. An empty f is returned as is.
func WithHeader(f *Fragment, title string, opts ...Option) *Fragment {
	if f.IsEmpty() {
		return f
	}

	base := []Option{WithOrder(f.order), WithChildren(f)}

	return Section(title, "", append(base, opts...)...)
}

// Combine merges two fragments, skipping whichever side is empty.
func Combine(a, b *Fragment) *Fragment {
	switch {
	case a.IsEmpty() && b.IsEmpty():
		return Empty()
	case a.IsEmpty():
		return b
	case b.IsEmpty():
		return a
	default:
		return Container(a, b)
	}
}

// Walk visits f and its descendants depth-first in stored order.
// Returning false from visit stops descent into that node's children.
func Walk(f *Fragment, visit func(f *Fragment, depth int) bool) {
	walk(f, 0, visit)
}

func walk(f *Fragment, depth int, visit func(*Fragment, int) bool) {
	if f == nil {
		return
	}

	if !visit(f, depth) {
		return
	}

	for _, c := range f.children {
		walk(c, depth+1, visit)
	}
}
