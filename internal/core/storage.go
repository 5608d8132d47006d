package core

import (
	"fmt"
	"os"

	"lottrace/internal/infra/persistence"
	"lottrace/internal/infra/persistence/memory"
	"lottrace/internal/infra/persistence/mysql"
	"lottrace/internal/infra/persistence/postgres"
	"lottrace/internal/infra/persistence/sqlite"
	"lottrace/pkg/domain"
)

// OpenPersistentStore selects a backend using environment variables only, for
// embedding without a config file. Defaults to sqlite when unset.
//
//	LOTTRACE_STORAGE_DRIVER: memory|sqlite|postgres|mysql (default sqlite)
//	LOTTRACE_SQLITE_PATH: path to sqlite file (default ./lottrace.db)
//	LOTTRACE_POSTGRES_DSN: postgres DSN when driver=postgres
//	LOTTRACE_MYSQL_DSN: mysql DSN when driver=mysql
func OpenPersistentStore() (domain.PersistentStore, error) {
	driver := os.Getenv("LOTTRACE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(persistence.DriverSQLite)
	}
	switch persistence.Driver(driver) {
	case persistence.DriverMemory:
		return memory.NewStore(), nil
	case persistence.DriverSQLite:
		return sqlite.NewStore(os.Getenv("LOTTRACE_SQLITE_PATH"))
	case persistence.DriverPostgres:
		return postgres.NewStore(os.Getenv("LOTTRACE_POSTGRES_DSN"))
	case persistence.DriverMySQL:
		return mysql.NewStore(os.Getenv("LOTTRACE_MYSQL_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
