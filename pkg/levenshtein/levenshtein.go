// Package levenshtein computes edit distances between short identifiers and
// picks the closest known name for "did you mean" hints.
package levenshtein

import "strings"

// Context reuses its column buffer across Distance calls.
type Context struct {
	column []int
}

func (ctx *Context) buffer(length int) []int {
	if cap(ctx.column) < length {
		ctx.column = make([]int, length)
	}

	return ctx.column[:length]
}

// Distance returns the minimum number of single-rune insertions, deletions
// or substitutions turning a into b. It keeps a single column of
// O(min(len(a), len(b))) ints.
func (ctx *Context) Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}

	if len(ra) == 0 {
		return len(rb)
	}

	column := ctx.buffer(len(ra) + 1)
	for i := range column {
		column[i] = i
	}

	for j, cb := range rb {
		diag := column[0]
		column[0] = j + 1

		for i, ca := range ra {
			cost := 1
			if ca == cb {
				cost = 0
			}

			prev := column[i+1]
			column[i+1] = min(column[i+1]+1, column[i]+1, diag+cost)
			diag = prev
		}
	}

	return column[len(ra)]
}

// Distance is a convenience wrapper that allocates a fresh Context.
func Distance(a, b string) int {
	var ctx Context

	return ctx.Distance(a, b)
}

// Closest returns the candidate nearest to name, compared case-insensitively.
// Candidates further than a third of name's length (at least 2 edits) are
// ignored. The second result is false when nothing is close enough.
func Closest(name string, candidates []string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", false
	}

	limit := max(2, len([]rune(name))/3)
	best, bestDist := "", limit+1

	var ctx Context

	for _, c := range candidates {
		if d := ctx.Distance(name, strings.ToLower(c)); d < bestDist {
			best, bestDist = c, d
		}
	}

	return best, best != ""
}
