// Package conv provides checked integer conversions for values decoded from
// untrusted input such as snapshot headers.
package conv
