//go:build cgo_sqlite

// Built with -tags cgo_sqlite and CGO_ENABLED=1.
package sqlite

import (
	sqliteexternal "github.com/FocuswithJustin/SheikahConverter/contrib/sqlite-external"
)

const (
	driverName    = sqliteexternal.DriverName
	driverType    = sqliteexternal.DriverType
	driverPackage = sqliteexternal.DriverPackage + " (via contrib/sqlite-external)"
)
