package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

const (
	workspaceDir  = ".shiftreport"
	defaultDBName = "shiftreport.db"
	demoDBName    = "demo.db"
	photosDirName = "photos"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

type Config struct {
	Workspace string
	Driver    string
	DSN       string
}

func workspacePath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, workspaceDir)
}

// EnsureWorkspace creates the workspace state directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	path := workspacePath(workspace)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens the report database. SQLite is the default and lives in the workspace.
func Open(cfg Config) (*sql.DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	switch driver {
	case DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
				return nil, err
			}
			dsn = SQLiteDSN(Path(cfg.Workspace))
		}
		conn, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		// One writer at a time; callers must not touch the pool while holding a tx.
		conn.SetMaxOpenConns(1)
		return conn, nil
	case DriverMySQL:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("database.dsn is required for driver mysql")
		}
		return sql.Open("mysql", cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// SQLiteDSN returns a modernc DSN for a database file.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
}

// Path returns the report database path for the workspace.
func Path(workspace string) string {
	return filepath.Join(workspacePath(workspace), defaultDBName)
}

// DemoPath returns the demo store database path for the workspace.
func DemoPath(workspace string) string {
	return filepath.Join(workspacePath(workspace), demoDBName)
}

// PhotosDir returns the directory used by the local photo bucket.
func PhotosDir(workspace string) string {
	return filepath.Join(workspacePath(workspace), photosDirName)
}

// timeLayout is fixed-width UTC so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t the way timestamps are stored.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime reads a stored timestamp.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}
