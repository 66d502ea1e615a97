// Package pointio reads and writes batched point clouds and radius search
// results as Parquet files.
//
// Points are stored one row per point with the columns batch, x, y and z.
// Rows must be grouped by ascending batch number. Neighbors are stored one
// row per (query, neighbor) pair with an optional distance column.
package pointio
