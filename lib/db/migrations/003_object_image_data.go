package migrations

import (
	"database/sql"
)

func migration003ObjectImageData() Migration {
	return Migration{
		Version:     3,
		Description: "Add image_data to canvas_objects",
		Up: func(db *sql.DB, dialect Dialect) error {
			_, err := db.Exec(`ALTER TABLE canvas_objects ADD COLUMN image_data TEXT`)
			return err
		},
	}
}
