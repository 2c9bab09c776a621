package analyze

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// Set errors.
var (
	ErrDuplicateAnalyzer = errors.New("duplicate analyzer name")
	ErrUnnamedAnalyzer   = errors.New("analyzer has no name")
)

// Set is an ordered, immutable collection of analyzers.
// Order is ascending priority with declaration order breaking ties.
type Set struct {
	ordered []Analyzer
	index   map[string]int
}

// NewSet validates and orders the given analyzers.
func NewSet(analyzers ...Analyzer) (*Set, error) {
	ordered := make([]Analyzer, 0, len(analyzers))
	seen := make(map[string]struct{}, len(analyzers))

	for _, a := range analyzers {
		if a == nil {
			continue
		}

		name := a.Name()
		if name == "" {
			return nil, ErrUnnamedAnalyzer
		}

		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAnalyzer, name)
		}

		seen[name] = struct{}{}
		ordered = append(ordered, a)
	}

	slices.SortStableFunc(ordered, func(a, b Analyzer) int {
		return cmp.Compare(a.Priority(), b.Priority())
	})

	index := make(map[string]int, len(ordered))
	for i, a := range ordered {
		index[a.Name()] = i
	}

	return &Set{ordered: ordered, index: index}, nil
}

// MustSet is NewSet that panics on error. Intended for static analyzer lists.
func MustSet(analyzers ...Analyzer) *Set {
	set, err := NewSet(analyzers...)
	if err != nil {
		panic(err)
	}

	return set
}

// Len returns the number of analyzers.
func (s *Set) Len() int { return len(s.ordered) }

// Ordered returns analyzers in aggregation order.
func (s *Set) Ordered() []Analyzer { return slices.Clone(s.ordered) }

// Names returns analyzer names in aggregation order.
func (s *Set) Names() []string {
	names := make([]string, len(s.ordered))
	for i, a := range s.ordered {
		names[i] = a.Name()
	}

	return names
}

// Position returns the aggregation slot of the named analyzer.
func (s *Set) Position(name string) (int, bool) {
	i, ok := s.index[name]

	return i, ok
}

// Find returns the analyzer with the given name, or nil.
func (s *Set) Find(name string) Analyzer {
	if i, ok := s.index[name]; ok {
		return s.ordered[i]
	}

	return nil
}

// Partition splits the set into parallel-safe and sequential groups.
// Each slice holds aggregation slots so callers can place results by position.
func (s *Set) Partition() (parallel, sequential []int) {
	for i, a := range s.ordered {
		if a.ParallelSafe() {
			parallel = append(parallel, i)
		} else {
			sequential = append(sequential, i)
		}
	}

	return parallel, sequential
}

// At returns the analyzer in the given aggregation slot.
func (s *Set) At(i int) Analyzer { return s.ordered[i] }

// Filter returns a new set restricted to the named analyzers. Unknown names are errors.
func (s *Set) Filter(names []string) (*Set, error) {
	if len(names) == 0 {
		return s, nil
	}

	keep := make([]Analyzer, 0, len(names))

	for _, a := range s.ordered {
		if slices.Contains(names, a.Name()) {
			keep = append(keep, a)
		}
	}

	for _, n := range names {
		if _, ok := s.index[n]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAnalyzer, n)
		}
	}

	return NewSet(keep...)
}

// ErrUnknownAnalyzer is returned when a requested analyzer is not in the set.
var ErrUnknownAnalyzer = errors.New("unknown analyzer")
