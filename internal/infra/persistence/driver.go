// Package persistence enumerates the persistent storage backends shared by
// the driver subpackages.
package persistence

// Driver identifies a concrete persistent storage implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
	DriverMySQL    Driver = "mysql"    // MySQL / MariaDB server
)
