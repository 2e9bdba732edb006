package db

import (
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/sketchbridge/sketchbridge-go/lib/db/migrations"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

type SQLiteDB struct {
	sqlDataStore
	path string
}

func isSQLiteDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}

func NewSQLiteDB(path string, logger *zap.SugaredLogger) (*SQLiteDB, error) {
	if path == ":memory" {
		path = "file::memory:?cache=shared"
	}

	sqlDb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite has a single writer; one connection avoids SQLITE_BUSY under
	// concurrent sockets.
	sqlDb.SetMaxOpenConns(1)

	if !strings.Contains(path, ":memory:") {
		if _, err = sqlDb.Exec("PRAGMA journal_mode = WAL"); err != nil {
			sqlDb.Close()
			return nil, err
		}
	}
	if _, err = sqlDb.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		sqlDb.Close()
		return nil, err
	}
	if _, err = sqlDb.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDb.Close()
		return nil, err
	}

	migrationManager := migrations.NewMigrationManager(sqlDb, migrations.DialectSQLite, logger)
	if err := migrationManager.Run(); err != nil {
		sqlDb.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteDB{
		sqlDataStore: sqlDataStore{
			sqlDB:          sqlDb,
			builder:        sq.StatementBuilder,
			objectOrder:    []string{"z_index ASC", "rowid ASC"},
			isDuplicateKey: isSQLiteDuplicateKey,
		},
		path: path,
	}, nil
}

var _ DataStore = (*SQLiteDB)(nil)
