// Package storage provides history storage backends.
//
// SQLiteStorage works with either SQLite driver: "sqlite3"
// (github.com/mattn/go-sqlite3, cgo) or "sqlite" (modernc.org/sqlite, pure
// Go). Pick the pure-Go driver for CGO_ENABLED=0 builds.
//
// MemoryStorage keeps records in a map and is used in tests and when
// history is disabled.
package storage
