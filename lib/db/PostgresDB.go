package db

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/sketchbridge/sketchbridge-go/lib/db/migrations"
	"go.uber.org/zap"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type PostgresDB struct {
	sqlDataStore
	options PostgresOptions
}

type PostgresOptions struct {
	Username string
	Password string
	Port     int
	Host     string
	Database string
	// Url takes precedence over the discrete fields when set.
	Url string
}

func (o PostgresOptions) DSN() string {
	if o.Url != "" {
		return o.Url
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", o.Username, o.Password, o.Host, o.Port, o.Database)
}

func isPostgresDuplicateKey(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// NewPostgresDB opens the connection pool and migrates the schema.
func NewPostgresDB(options PostgresOptions, logger *zap.SugaredLogger) (*PostgresDB, error) {
	sqlDb, err := sql.Open("postgres", options.DSN())
	if err != nil {
		return nil, err
	}
	if err := sqlDb.Ping(); err != nil {
		sqlDb.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	migrationManager := migrations.NewMigrationManager(sqlDb, migrations.DialectPostgres, logger)
	if err := migrationManager.Run(); err != nil {
		sqlDb.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresDB{
		sqlDataStore: sqlDataStore{
			sqlDB:          sqlDb,
			builder:        psql,
			objectOrder:    []string{"z_index ASC", "seq ASC"},
			isDuplicateKey: isPostgresDuplicateKey,
		},
		options: options,
	}, nil
}

var _ DataStore = (*PostgresDB)(nil)
