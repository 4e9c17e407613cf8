//go:build cgo

package core

import (
	"testing"

	_ "github.com/mattn/go-sqlite3" // CGO SQLite driver
)

func TestSQLite3_Lifecycle(t *testing.T) {
	runLifecycle(t, openSQLite(t, "sqlite3"))
}
