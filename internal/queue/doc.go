// Package queue persists pipeline items in SQLite.
//
// An item is keyed by its content fingerprint and carries four readiness
// flags (audio, subtitles, video, published). The flags only ever advance in
// that order; Item.Validate and the table's CHECK constraints both refuse a
// record that skips a stage. Status is derived from the flags rather than
// stored.
//
// Writes are serialized through the Store so concurrent stage workers never
// race on the same row, and every write replaces the full record in one
// statement. List reads a consistent snapshot inside a read transaction.
//
// The database is working state, not an archive. Schema changes bump the
// version in schema.go; users clear the database to adopt the new schema.
package queue
