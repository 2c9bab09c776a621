package reportwriter

import (
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ChangeSummary counts line edits between two report versions.
type ChangeSummary struct {
	Added   int
	Removed int
	Changed int
}

// Unchanged reports whether no lines differ.
func (c ChangeSummary) Unchanged() bool {
	return c.Added == 0 && c.Removed == 0 && c.Changed == 0
}

// Summarize diffs two texts line by line.
func Summarize(oldText, newText string) ChangeSummary {
	dmp := diffmatchpatch.New()
	src, dst, _ := dmp.DiffLinesToRunes(oldText, newText)
	diffs := dmp.DiffMainRunes(src, dst, false)

	var (
		summary        ChangeSummary
		removedPending int
	)

	// Each rune stands for one line. A delete followed by an insert is a change.
	for _, edit := range diffs {
		switch edit.Type {
		case diffmatchpatch.DiffEqual:
			summary.Removed += removedPending
			removedPending = 0
		case diffmatchpatch.DiffInsert:
			delta := utf8.RuneCountInString(edit.Text)
			if removedPending > delta {
				summary.Changed += delta
				summary.Removed += removedPending - delta
			} else {
				summary.Changed += removedPending
				summary.Added += delta - removedPending
			}

			removedPending = 0
		case diffmatchpatch.DiffDelete:
			removedPending = utf8.RuneCountInString(edit.Text)
		}
	}

	summary.Removed += removedPending

	return summary
}
