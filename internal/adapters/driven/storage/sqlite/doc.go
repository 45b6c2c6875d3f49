// Package sqlite provides SQLite-backed implementations of the chunk,
// node and build state stores using the pure-Go modernc.org/sqlite
// driver (no CGO). The database runs in WAL mode; schema changes ship
// as embedded migrations.
package sqlite
