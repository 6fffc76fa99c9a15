// Package watcher provides real-time file system watching with automatic
// debouncing for the indexing pipeline.
//
// The package implements a hybrid watching strategy:
//   - Primary: fsnotify for efficient event-based watching
//   - Fallback: polling for environments where fsnotify fails (network
//     mounts, some container volumes)
//
// Raw events are debounced so that editor save storms and bulk copies
// collapse into one event per path, then emitted as batches.
package watcher
