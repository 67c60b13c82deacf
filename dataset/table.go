// Package dataset provides an in-memory, row-oriented table with the
// iterate / filter / map / join operations the cleaning and feature stages
// are written against.
//
// Tables are immutable: every operation returns a new table and never
// modifies its input. Row-wise operations on large tables are spread over
// CPU cores with core/parallel; output order always matches input order.
package dataset

import (
	"iter"

	"github.com/YuminosukeSato/bikeshare/core/parallel"
)

// parallelThreshold is the row count below which row-wise operations run
// on the calling goroutine.
const parallelThreshold = 4096

// Table is an immutable sequence of rows.
type Table[T any] struct {
	rows []T
}

// FromSlice wraps rows in a Table. The slice is copied.
func FromSlice[T any](rows []T) *Table[T] {
	return &Table[T]{rows: append([]T(nil), rows...)}
}

// Empty returns a table with no rows.
func Empty[T any]() *Table[T] {
	return &Table[T]{}
}

// Count returns the number of rows.
func (t *Table[T]) Count() int {
	return len(t.rows)
}

// All iterates over the rows in order.
func (t *Table[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, r := range t.rows {
			if !yield(r) {
				return
			}
		}
	}
}

// Rows returns a copy of the rows.
func (t *Table[T]) Rows() []T {
	return append([]T(nil), t.rows...)
}

// At returns row i.
func (t *Table[T]) At(i int) T {
	return t.rows[i]
}

// Concat appends the rows of others after t.
func (t *Table[T]) Concat(others ...*Table[T]) *Table[T] {
	n := len(t.rows)
	for _, o := range others {
		n += len(o.rows)
	}
	rows := make([]T, 0, n)
	rows = append(rows, t.rows...)
	for _, o := range others {
		rows = append(rows, o.rows...)
	}
	return &Table[T]{rows: rows}
}

// Filter keeps the rows for which keep returns true.
func Filter[T any](t *Table[T], keep func(T) bool) *Table[T] {
	mask := make([]bool, len(t.rows))
	parallel.ParallelizeWithThreshold(len(t.rows), parallelThreshold, 0, func(start, end int) {
		for i := start; i < end; i++ {
			mask[i] = keep(t.rows[i])
		}
	})

	out := make([]T, 0, len(t.rows))
	for i, ok := range mask {
		if ok {
			out = append(out, t.rows[i])
		}
	}
	return &Table[T]{rows: out}
}

// Map applies fn to every row.
func Map[T, U any](t *Table[T], fn func(T) U) *Table[U] {
	out := make([]U, len(t.rows))
	parallel.ParallelizeWithThreshold(len(t.rows), parallelThreshold, 0, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = fn(t.rows[i])
		}
	})
	return &Table[U]{rows: out}
}

// FilterMap applies fn to every row and keeps the results reported ok.
func FilterMap[T, U any](t *Table[T], fn func(T) (U, bool)) *Table[U] {
	mapped := make([]U, len(t.rows))
	mask := make([]bool, len(t.rows))
	parallel.ParallelizeWithThreshold(len(t.rows), parallelThreshold, 0, func(start, end int) {
		for i := start; i < end; i++ {
			mapped[i], mask[i] = fn(t.rows[i])
		}
	})

	out := make([]U, 0, len(t.rows))
	for i, ok := range mask {
		if ok {
			out = append(out, mapped[i])
		}
	}
	return &Table[U]{rows: out}
}

// LeftJoin pairs every left row with each right row sharing its key. Left
// rows without a match are emitted once with matched=false and a zero R.
func LeftJoin[L, R, O any, K comparable](
	left *Table[L],
	right *Table[R],
	leftKey func(L) K,
	rightKey func(R) K,
	combine func(l L, r R, matched bool) O,
) *Table[O] {
	index := make(map[K][]R, len(right.rows))
	for _, r := range right.rows {
		k := rightKey(r)
		index[k] = append(index[k], r)
	}

	out := make([]O, 0, len(left.rows))
	for _, l := range left.rows {
		matches := index[leftKey(l)]
		if len(matches) == 0 {
			var zero R
			out = append(out, combine(l, zero, false))
			continue
		}
		for _, r := range matches {
			out = append(out, combine(l, r, true))
		}
	}
	return &Table[O]{rows: out}
}
