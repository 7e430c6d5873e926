// Package database provides the result sinks of the harvester.
//
// Every sink implements Store, which keeps one collection per content kind
// (content, images, files, audio, videos) inside a namespace and is
// idempotent on (namespace, kind, canonical URL):
//   - SQLiteStore keeps items and session summaries in a single SQLite file
//     (modernc.org/sqlite, no CGO). It is the default sink.
//   - RedisStore keeps each collection in a Redis hash so several harvesters
//     can share one result set.
//   - MemoryStore keeps everything in process, for tests and dry runs.
//
// FileWriter is not a sink. It is a crawler enricher that writes binary
// payloads below the output directory and points the item reference at
// the written file.
package database
