// Package resource bounds the resources consumed by index builds, searches
// and snapshot I/O.
//
// A single Controller may be shared by any number of concurrent calls:
//
//   - Memory: each call admits the bytes it is about to allocate (result and
//     scratch buffers) and releases them when it returns.
//   - Workers: every parallel task holds one worker slot while it runs, which
//     caps CPU parallelism across all calls sharing the controller.
//   - I/O: snapshot readers and writers are throttled to a byte rate.
//
// A nil *Controller imposes no limits.
package resource
