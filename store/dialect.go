package store

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// dialect holds the per-backend SQL and lock-contention detection.
type dialect struct {
	driverName string
	schema     string
	insertHint string
	isBusy     func(err error) bool
	// savepoints wraps each insert in a savepoint. PostgreSQL aborts the
	// whole transaction on a failed statement otherwise.
	savepoints bool
}

var dialects = map[string]dialect{
	DriverSQLite: {
		driverName: "sqlite",
		schema: `CREATE TABLE IF NOT EXISTS hint (
    filename  TEXT NOT NULL,
    recursive INTEGER NOT NULL DEFAULT 0,
    UNIQUE (filename, recursive) ON CONFLICT IGNORE
)`,
		insertHint: `INSERT INTO hint (filename, recursive) VALUES (?, ?)`,
		isBusy:     sqliteBusy,
	},
	DriverPostgres: {
		driverName: "postgres",
		schema: `CREATE TABLE IF NOT EXISTS hint (
    filename  VARCHAR(4096),
    recursive INTEGER
)`,
		insertHint: `INSERT INTO hint (filename, recursive) VALUES ($1, $2)`,
		isBusy:     postgresBusy,
		savepoints: true,
	},
	DriverMySQL: {
		driverName: "mysql",
		schema: "CREATE TABLE IF NOT EXISTS `hint` (" +
			"`filename` VARCHAR(4096) CHARACTER SET utf8 COLLATE utf8_bin DEFAULT NULL, " +
			"`recursive` INT(11) DEFAULT NULL)",
		insertHint: "INSERT INTO `hint` (`filename`, `recursive`) VALUES (?, ?)",
		isBusy:     mysqlBusy,
	},
}

func lookupDialect(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported store driver %q", driver)
	}
	return d, nil
}

// Drivers returns the supported driver names.
func Drivers() []string {
	return []string{DriverSQLite, DriverPostgres, DriverMySQL}
}

func sqliteBusy(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	// Extended result codes keep the primary code in the low byte.
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

func postgresBusy(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "40001", // serialization_failure
		"40P01", // deadlock_detected
		"55P03": // lock_not_available
		return true
	}
	return false
}

func mysqlBusy(err error) bool {
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return false
	}
	switch mysqlErr.Number {
	case 1205, // ER_LOCK_WAIT_TIMEOUT
		1213: // ER_LOCK_DEADLOCK
		return true
	}
	return false
}
