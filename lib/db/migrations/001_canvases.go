package migrations

import (
	"database/sql"
)

// GetMigrations returns all available migrations
func GetMigrations() []Migration {
	return []Migration{
		migration001Canvases(),
		migration002ActiveSessions(),
		migration003ObjectImageData(),
	}
}

// migration001Canvases creates the canvas and canvas object tables
func migration001Canvases() Migration {
	return Migration{
		Version:     1,
		Description: "Create canvases and canvas_objects",
		Up: func(db *sql.DB, dialect Dialect) error {
			switch dialect {
			case DialectPostgres:
				return execAll(db, getPostgresCanvasSchema())
			default:
				return execAll(db, getSQLiteCanvasSchema())
			}
		},
	}
}

func getSQLiteCanvasSchema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS canvases (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			width INTEGER NOT NULL DEFAULT 5000,
			height INTEGER NOT NULL DEFAULT 5000,
			background_color TEXT NOT NULL DEFAULT '#ffffff',
			created_by TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS canvas_objects (
			id TEXT PRIMARY KEY,
			canvas_id TEXT NOT NULL REFERENCES canvases(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			x REAL NOT NULL DEFAULT 0,
			y REAL NOT NULL DEFAULT 0,
			width REAL NOT NULL DEFAULT 0,
			height REAL NOT NULL DEFAULT 0,
			rotation REAL NOT NULL DEFAULT 0,
			fill_color TEXT,
			stroke_color TEXT,
			stroke_width REAL NOT NULL DEFAULT 0,
			opacity REAL NOT NULL DEFAULT 1,
			path_data TEXT,
			text_content TEXT,
			font_size REAL,
			z_index INTEGER NOT NULL DEFAULT 0,
			created_by TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_canvas_objects_canvas_id ON canvas_objects(canvas_id)`,
		`CREATE INDEX IF NOT EXISTS idx_canvas_objects_z_index ON canvas_objects(canvas_id, z_index)`,
	}
}

func getPostgresCanvasSchema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS canvases (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			width INTEGER NOT NULL DEFAULT 5000,
			height INTEGER NOT NULL DEFAULT 5000,
			background_color TEXT NOT NULL DEFAULT '#ffffff',
			created_by TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS canvas_objects (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			canvas_id TEXT NOT NULL REFERENCES canvases(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			x DOUBLE PRECISION NOT NULL DEFAULT 0,
			y DOUBLE PRECISION NOT NULL DEFAULT 0,
			width DOUBLE PRECISION NOT NULL DEFAULT 0,
			height DOUBLE PRECISION NOT NULL DEFAULT 0,
			rotation DOUBLE PRECISION NOT NULL DEFAULT 0,
			fill_color TEXT,
			stroke_color TEXT,
			stroke_width DOUBLE PRECISION NOT NULL DEFAULT 0,
			opacity DOUBLE PRECISION NOT NULL DEFAULT 1,
			path_data TEXT,
			text_content TEXT,
			font_size DOUBLE PRECISION,
			z_index INTEGER NOT NULL DEFAULT 0,
			created_by TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_canvas_objects_canvas_id ON canvas_objects(canvas_id)`,
		`CREATE INDEX IF NOT EXISTS idx_canvas_objects_z_index ON canvas_objects(canvas_id, z_index)`,
	}
}
