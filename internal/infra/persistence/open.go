// Package persistence selects a concrete persistent store backend from the
// environment.
package persistence

import (
	"fmt"
	"os"

	"stellarsynth/internal/core"
	"stellarsynth/internal/infra/persistence/postgres"
	"stellarsynth/internal/infra/persistence/sqlite"
)

// Driver identifies a concrete persistent storage implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// Open selects a backend using environment variables. Defaults to sqlite when
// unset.
//
//	STELLARSYNTH_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	STELLARSYNTH_SQLITE_PATH: path to sqlite file (default ./stellarsynth.db)
//	STELLARSYNTH_POSTGRES_DSN: postgres DSN when driver=postgres
func Open(engine *core.RulesEngine) (core.PersistentStore, error) {
	driver := os.Getenv("STELLARSYNTH_STORAGE_DRIVER")
	if driver == "" {
		driver = string(DriverSQLite)
	}
	switch Driver(driver) {
	case DriverMemory:
		return core.NewMemoryStore(engine), nil
	case DriverSQLite:
		path := os.Getenv("STELLARSYNTH_SQLITE_PATH")
		return sqlite.NewStore(path, engine)
	case DriverPostgres:
		dsn := os.Getenv("STELLARSYNTH_POSTGRES_DSN")
		return postgres.NewStore(dsn, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
