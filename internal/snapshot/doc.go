// Package snapshot implements the binary format of spatial index snapshots.
package snapshot
