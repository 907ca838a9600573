package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Driver names as registered with database/sql.
const (
	DriverCGO    = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPureGo = "sqlite"  // modernc.org/sqlite
)

// Options selects the driver and file for the database.
type Options struct {
	Driver        string
	Path          string // ":memory:" for an in-memory database
	BusyTimeoutMS int
}

var (
	mu   sync.Mutex
	db   *sql.DB
	opts = Options{Driver: DriverCGO}
)

// Configure sets the options GetDB opens with. It has no effect on an
// already-open connection.
func Configure(o Options) {
	mu.Lock()
	defer mu.Unlock()
	opts = o
}

// GetDB returns the database connection, initializing if needed
func GetDB() (*sql.DB, error) {
	mu.Lock()
	defer mu.Unlock()

	if db != nil {
		return db, nil
	}

	o := opts
	if o.Path == "" {
		path, err := GetDBPath()
		if err != nil {
			return nil, err
		}
		o.Path = path
	}

	conn, err := Open(o)
	if err != nil {
		return nil, err
	}
	if err := InitSchema(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	db = conn
	return db, nil
}

// Open opens a database without touching the schema. The pool is pinned to a
// single connection: SQLite serializes writers anyway, and transactions carried
// through the context must never wait on a second connection.
func Open(o Options) (*sql.DB, error) {
	driver := o.Driver
	if driver == "" {
		driver = DriverCGO
	}
	if driver != DriverCGO && driver != DriverPureGo {
		return nil, fmt.Errorf("unsupported sqlite driver %q (want %s or %s)", driver, DriverCGO, DriverPureGo)
	}

	if o.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(o.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open(driver, dsn(driver, o.Path, o.BusyTimeoutMS))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return conn, nil
}

func dsn(driver, path string, busyTimeoutMS int) string {
	if busyTimeoutMS <= 0 {
		busyTimeoutMS = 5000
	}
	if driver == DriverPureGo {
		return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)", path, busyTimeoutMS)
	}
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=%d", path, busyTimeoutMS)
}

// Close closes the database connection
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

// GetDBPath returns the path to the database file
func GetDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".tradeflow", "tradeflow.db"), nil
}
