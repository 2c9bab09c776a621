package report_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/autoscan/pkg/report"
)

func TestFragment_IsEmpty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		frag  *report.Fragment
		empty bool
	}{
		{name: "nil", frag: nil, empty: true},
		{name: "canonical", frag: report.Empty(), empty: true},
		{name: "blank body", frag: report.Section("Title", "  \n\t"), empty: true},
		{name: "title only", frag: report.Warning("Only a title", ""), empty: true},
		{name: "body", frag: report.Info("", "text"), empty: false},
		{name: "empty children", frag: report.Container(report.Section("a", ""), report.Empty()), empty: true},
		{name: "deep content", frag: report.Container(report.Container(report.Section("", "x"))), empty: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.empty, tt.frag.IsEmpty())
		})
	}
}

func TestFragment_ImmutableAccessors(t *testing.T) {
	t.Parallel()

	child := report.Section("child", "body")
	frag := report.Section("parent", "p",
		report.WithOrder(7),
		report.WithMetadata("fix", "do it"),
		report.WithChildren(child),
	)

	meta := frag.Metadata()
	meta["fix"] = "changed"

	children := frag.Children()
	children[0] = report.Empty()

	v, ok := frag.Meta("fix")
	require.True(t, ok)
	assert.Equal(t, "do it", v)
	assert.Same(t, child, frag.Children()[0])
	assert.Equal(t, 7, frag.Order())
	assert.Equal(t, report.KindSection, frag.Kind())
}

func TestFragment_WithCopies(t *testing.T) {
	t.Parallel()

	orig := report.Warning("w", "body", report.WithOrder(1))
	changed := orig.With(report.WithOrder(5), report.WithMetadata("k", "v"))

	assert.Equal(t, 1, orig.Order())
	assert.Equal(t, 5, changed.Order())

	_, ok := orig.Meta("k")
	assert.False(t, ok)
}

func TestCompose(t *testing.T) {
	t.Parallel()

	t.Run("no fragments", func(t *testing.T) {
		t.Parallel()

		assert.True(t, report.Compose().IsEmpty())
	})

	t.Run("only empty fragments", func(t *testing.T) {
		t.Parallel()

		got := report.Compose(report.Empty(), report.Section("x", ""), nil)
		assert.True(t, got.IsEmpty())
	})

	t.Run("single survivor unchanged", func(t *testing.T) {
		t.Parallel()

		only := report.Info("i", "body")
		assert.Same(t, only, report.Compose(report.Empty(), only, nil))
	})

	t.Run("many", func(t *testing.T) {
		t.Parallel()

		a := report.Info("a", "1")
		b := report.Warning("b", "2")

		got := report.Compose(a, report.Empty(), b)
		assert.Equal(t, report.KindContainer, got.Kind())
		assert.Equal(t, []*report.Fragment{a, b}, got.Children())
	})
}

func TestWithHeader(t *testing.T) {
	t.Parallel()

	emptyFrag := report.Section("", "")
	assert.Same(t, emptyFrag, report.WithHeader(emptyFrag, "Title"))

	content := report.Info("inner", "body", report.WithOrder(3))
	wrapped := report.WithHeader(content, "Outer")

	assert.Equal(t, "Outer", wrapped.Title())
	assert.Equal(t, 3, wrapped.Order())
	require.Len(t, wrapped.Children(), 1)
	assert.Same(t, content, wrapped.Children()[0])
}

func TestCombine(t *testing.T) {
	t.Parallel()

	a := report.Info("a", "1")
	b := report.Info("b", "2")

	assert.Same(t, a, report.Combine(a, report.Empty()))
	assert.Same(t, b, report.Combine(nil, b))
	assert.True(t, report.Combine(report.Empty(), nil).IsEmpty())

	both := report.Combine(a, b)
	assert.Equal(t, []*report.Fragment{a, b}, both.Children())
}

func TestWalk(t *testing.T) {
	t.Parallel()

	tree := report.Container(
		report.Section("a", "1", report.WithChildren(report.Section("a1", "x"))),
		report.Section("b", "2"),
	)

	var titles []string

	report.Walk(tree, func(f *report.Fragment, _ int) bool {
		if f.Title() != "" {
			titles = append(titles, f.Title())
		}

		return f.Title() != "a"
	})

	assert.Equal(t, []string{"a", "b"}, titles)
}
