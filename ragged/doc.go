// Package ragged packs variable-length rows into one contiguous buffer
// addressed by a row-splits sequence.
//
// A row-splits sequence holds N+1 non-decreasing offsets; row i occupies
// values[splits[i]:splits[i+1]]. The same encoding describes batch
// partitions of point sets, per-cell point lists of a spatial hash table
// and per-query neighbor lists.
//
// # Usage
//
//	arr, err := ragged.New(values, []int64{0, 2, 2, 5})
//	row := arr.Row(2) // values[2:5]
package ragged
