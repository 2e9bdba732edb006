package migrations

import (
	"database/sql"
)

func migration002ActiveSessions() Migration {
	return Migration{
		Version:     2,
		Description: "Create active_sessions",
		Up: func(db *sql.DB, dialect Dialect) error {
			var timestampType, floatType string
			switch dialect {
			case DialectPostgres:
				timestampType = "BIGINT"
				floatType = "DOUBLE PRECISION"
			default:
				timestampType = "INTEGER"
				floatType = "REAL"
			}

			return execAll(db, []string{
				`CREATE TABLE IF NOT EXISTS active_sessions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					user_name TEXT NOT NULL,
					canvas_id TEXT NOT NULL REFERENCES canvases(id) ON DELETE CASCADE,
					cursor_x ` + floatType + ` NOT NULL DEFAULT 0,
					cursor_y ` + floatType + ` NOT NULL DEFAULT 0,
					color TEXT NOT NULL,
					connected_at ` + timestampType + ` NOT NULL,
					last_activity ` + timestampType + ` NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_active_sessions_canvas_id ON active_sessions(canvas_id)`,
				`CREATE INDEX IF NOT EXISTS idx_active_sessions_user_canvas ON active_sessions(user_id, canvas_id)`,
				`CREATE INDEX IF NOT EXISTS idx_active_sessions_last_activity ON active_sessions(last_activity)`,
			})
		},
	}
}
