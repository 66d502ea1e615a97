// Package mmap maps snapshot files read-only for LocalStore.
//
//	m, err := mmap.Open("cloud.frnn")
//	if err != nil { ... }
//	defer m.Close()
//	data := m.Bytes()
//
// On Unix the file is mapped with mmap(2) and marked for sequential access.
// Other platforms read it into memory. Bytes must not be used after Close.
package mmap
