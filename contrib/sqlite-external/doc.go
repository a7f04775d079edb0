// Package sqliteexternal links the CGO SQLite driver (mattn/go-sqlite3)
// into the history store when building with the cgo_sqlite tag:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./cmd/botwc
//
// Without the tag, core/sqlite uses the pure Go modernc.org/sqlite driver
// and this package is empty.
package sqliteexternal
