package ragged

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySplits is returned when a row-splits sequence has no offsets.
	ErrEmptySplits = errors.New("row splits must contain at least one offset")
	// ErrSplitsStart is returned when the first offset is not zero.
	ErrSplitsStart = errors.New("row splits must start at 0")
	// ErrSplitsDecreasing is returned when an offset is smaller than its predecessor.
	ErrSplitsDecreasing = errors.New("row splits must be non-decreasing")
	// ErrSplitsTotal is returned when the last offset does not match the element count.
	ErrSplitsTotal = errors.New("last row split must equal the element count")
)

// ValidateSplits checks that splits is a well-formed partition of total elements.
func ValidateSplits(splits []int64, total int64) error {
	if len(splits) == 0 {
		return ErrEmptySplits
	}
	if splits[0] != 0 {
		return fmt.Errorf("%w: got %d", ErrSplitsStart, splits[0])
	}
	for i := 1; i < len(splits); i++ {
		if splits[i] < splits[i-1] {
			return fmt.Errorf("%w: splits[%d]=%d < splits[%d]=%d", ErrSplitsDecreasing, i, splits[i], i-1, splits[i-1])
		}
	}
	if last := splits[len(splits)-1]; last != total {
		return fmt.Errorf("%w: got %d, want %d", ErrSplitsTotal, last, total)
	}
	return nil
}

// Uniform returns the splits of a single row holding n elements.
func Uniform(n int64) []int64 {
	return []int64{0, n}
}

// SplitsFromCounts converts per-row counts into row splits (exclusive prefix
// sum with the total appended).
func SplitsFromCounts(counts []int64) []int64 {
	splits := make([]int64, len(counts)+1)
	for i, c := range counts {
		splits[i+1] = splits[i] + c
	}
	return splits
}

// Array is an owned flat buffer of values plus the row splits addressing it.
// The zero value is an array with no rows.
type Array[E any] struct {
	values []E
	splits []int64
}

// New wraps values and splits without copying them.
// It fails if splits is not a valid partition of values.
func New[E any](values []E, splits []int64) (Array[E], error) {
	if err := ValidateSplits(splits, int64(len(values))); err != nil {
		return Array[E]{}, err
	}
	return Array[E]{values: values, splits: splits}, nil
}

// FromRows copies rows into a packed Array.
func FromRows[E any](rows [][]E) Array[E] {
	splits := make([]int64, len(rows)+1)
	for i, r := range rows {
		splits[i+1] = splits[i] + int64(len(r))
	}
	values := make([]E, 0, splits[len(rows)])
	for _, r := range rows {
		values = append(values, r...)
	}
	return Array[E]{values: values, splits: splits}
}

// Len returns the number of rows.
func (a Array[E]) Len() int {
	if len(a.splits) == 0 {
		return 0
	}
	return len(a.splits) - 1
}

// Row returns row i. The returned slice has its capacity clipped to the row,
// so appending to it never overwrites the following row.
func (a Array[E]) Row(i int) []E {
	start, end := a.splits[i], a.splits[i+1]
	return a.values[start:end:end]
}

// RowLen returns the number of values in row i.
func (a Array[E]) RowLen(i int) int {
	return int(a.splits[i+1] - a.splits[i])
}

// Span returns the values of rows [first, last) as one slice.
func (a Array[E]) Span(first, last int) []E {
	start, end := a.splits[first], a.splits[last]
	return a.values[start:end:end]
}

// Values returns the flat value buffer.
func (a Array[E]) Values() []E {
	return a.values
}

// Splits returns the row splits; it has Len()+1 entries for a non-empty array.
func (a Array[E]) Splits() []int64 {
	return a.splits
}

// NumValues returns the total number of values across all rows.
func (a Array[E]) NumValues() int {
	return len(a.values)
}
