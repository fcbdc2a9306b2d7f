package core

import (
	"fmt"
	"os"

	"neurolearn/internal/infra/persistence/memory"
	"neurolearn/internal/infra/persistence/postgres"
	"neurolearn/internal/infra/persistence/sqlite"
	"neurolearn/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	NEUROLEARN_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	NEUROLEARN_SQLITE_PATH: path to sqlite file (default ./neurolearn.db)
//	NEUROLEARN_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(engine *RulesEngine) (PersistentStore, error) {
	driver := os.Getenv("NEUROLEARN_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	return OpenStorageDriver(StorageDriver(driver), engine)
}

// OpenStorageDriver opens the named backend, reading any remaining settings
// from the environment.
func OpenStorageDriver(driver StorageDriver, engine *RulesEngine) (PersistentStore, error) {
	return OpenStorage(driver, os.Getenv("NEUROLEARN_SQLITE_PATH"), os.Getenv("NEUROLEARN_POSTGRES_DSN"), engine)
}

// OpenStorage opens the named backend with explicit settings.
func OpenStorage(driver StorageDriver, sqlitePath, postgresDSN string, engine *RulesEngine) (PersistentStore, error) {
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(sqlitePath, engine)
	case StoragePostgres:
		return postgres.NewStore(postgresDSN, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
