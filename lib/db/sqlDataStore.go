package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/sketchbridge/sketchbridge-go/lib/models/canvas"
)

// sqlDataStore holds the queries shared by the SQL backends. The dialect
// specific parts are the placeholder format, the tie breaker for object
// ordering and the duplicate key detection.
type sqlDataStore struct {
	sqlDB          *sql.DB
	builder        sq.StatementBuilderType
	objectOrder    []string
	isDuplicateKey func(err error) bool
}

func (d *sqlDataStore) Ping() error {
	return d.sqlDB.Ping()
}

func (d *sqlDataStore) Close() error {
	return d.sqlDB.Close()
}

func (d *sqlDataStore) CreateCanvas(ctx context.Context, c canvas.Canvas) error {
	resultedSQL, args, err := d.builder.
		Insert("canvases").
		Columns(canvasColumns...).
		Values(c.Id, c.Name, c.Width, c.Height, c.BackgroundColor, c.CreatedBy,
			c.CreatedAt, c.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}

	if _, err = d.sqlDB.ExecContext(ctx, resultedSQL, args...); err != nil {
		if d.isDuplicateKey(err) {
			return fmt.Errorf("%w: canvas %s", ErrDuplicateKey, c.Id)
		}
		return err
	}
	return nil
}

func (d *sqlDataStore) GetCanvas(ctx context.Context, canvasId string) (*canvas.Canvas, error) {
	resultedSQL, args, err := d.builder.
		Select(canvasColumns...).
		From("canvases").
		Where(sq.Eq{"id": canvasId}).
		ToSql()
	if err != nil {
		return nil, err
	}

	retrievedCanvas, err := ReadToCanvas(d.sqlDB.QueryRowContext(ctx, resultedSQL, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCanvasNotFound
		}
		return nil, err
	}
	return retrievedCanvas, nil
}

func (d *sqlDataStore) CreateObject(ctx context.Context, o canvas.CanvasObject) error {
	resultedSQL, args, err := d.builder.
		Insert("canvas_objects").
		Columns(objectColumns...).
		Values(o.Id, o.CanvasId, string(o.Type), o.X, o.Y, o.Width, o.Height, o.Rotation,
			o.FillColor, o.StrokeColor, o.StrokeWidth, o.Opacity, o.PathData, o.TextContent,
			o.FontSize, o.ImageData, o.ZIndex, o.CreatedBy, o.CreatedAt, o.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}

	if _, err = d.sqlDB.ExecContext(ctx, resultedSQL, args...); err != nil {
		if d.isDuplicateKey(err) {
			return fmt.Errorf("%w: object %s", ErrDuplicateKey, o.Id)
		}
		return err
	}
	return nil
}

func (d *sqlDataStore) GetObject(ctx context.Context, objectId string) (*canvas.CanvasObject, error) {
	resultedSQL, args, err := d.builder.
		Select(objectColumns...).
		From("canvas_objects").
		Where(sq.Eq{"id": objectId}).
		ToSql()
	if err != nil {
		return nil, err
	}

	object, err := ReadToCanvasObject(d.sqlDB.QueryRowContext(ctx, resultedSQL, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return object, nil
}

func (d *sqlDataStore) UpdateObject(ctx context.Context, objectId string, update canvas.ObjectUpdate, updatedAt int64) (*canvas.CanvasObject, error) {
	columns := updateColumns(update)
	columns["updated_at"] = updatedAt

	resultedSQL, args, err := d.builder.
		Update("canvas_objects").
		SetMap(columns).
		Where(sq.Eq{"id": objectId}).
		ToSql()
	if err != nil {
		return nil, err
	}

	result, err := d.sqlDB.ExecContext(ctx, resultedSQL, args...)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrObjectNotFound
	}

	return d.GetObject(ctx, objectId)
}

func (d *sqlDataStore) DeleteObject(ctx context.Context, objectId string) error {
	resultedSQL, args, err := d.builder.
		Delete("canvas_objects").
		Where(sq.Eq{"id": objectId}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = d.sqlDB.ExecContext(ctx, resultedSQL, args...)
	return err
}

func (d *sqlDataStore) DeleteObjectsByCanvas(ctx context.Context, canvasId string) (int64, error) {
	resultedSQL, args, err := d.builder.
		Delete("canvas_objects").
		Where(sq.Eq{"canvas_id": canvasId}).
		ToSql()
	if err != nil {
		return 0, err
	}

	result, err := d.sqlDB.ExecContext(ctx, resultedSQL, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (d *sqlDataStore) GetObjectsByCanvas(ctx context.Context, canvasId string) ([]canvas.CanvasObject, error) {
	resultedSQL, args, err := d.builder.
		Select(objectColumns...).
		From("canvas_objects").
		Where(sq.Eq{"canvas_id": canvasId}).
		OrderBy(d.objectOrder...).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := d.sqlDB.QueryContext(ctx, resultedSQL, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	objects := make([]canvas.CanvasObject, 0)
	for rows.Next() {
		object, err := ReadToCanvasObject(rows)
		if err != nil {
			return nil, err
		}
		objects = append(objects, *object)
	}
	return objects, rows.Err()
}

func (d *sqlDataStore) CountObjects(ctx context.Context, canvasId string) (int, error) {
	resultedSQL, args, err := d.builder.
		Select("COUNT(*)").
		From("canvas_objects").
		Where(sq.Eq{"canvas_id": canvasId}).
		ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	if err := d.sqlDB.QueryRowContext(ctx, resultedSQL, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (d *sqlDataStore) MaxZIndex(ctx context.Context, canvasId string) (int, error) {
	resultedSQL, args, err := d.builder.
		Select("COALESCE(MAX(z_index), 0)").
		From("canvas_objects").
		Where(sq.Eq{"canvas_id": canvasId}).
		ToSql()
	if err != nil {
		return 0, err
	}

	var maxZIndex int
	if err := d.sqlDB.QueryRowContext(ctx, resultedSQL, args...).Scan(&maxZIndex); err != nil {
		return 0, err
	}
	return maxZIndex, nil
}

func (d *sqlDataStore) CreateSession(ctx context.Context, s canvas.Session) error {
	resultedSQL, args, err := d.builder.
		Insert("active_sessions").
		Columns(sessionColumns...).
		Values(s.Id, s.UserId, s.UserName, s.CanvasId, s.CursorX, s.CursorY, s.Color,
			s.ConnectedAt, s.LastActivity).
		ToSql()
	if err != nil {
		return err
	}

	if _, err = d.sqlDB.ExecContext(ctx, resultedSQL, args...); err != nil {
		if d.isDuplicateKey(err) {
			return fmt.Errorf("%w: session %s", ErrDuplicateKey, s.Id)
		}
		return err
	}
	return nil
}

func (d *sqlDataStore) GetSession(ctx context.Context, sessionId string) (*canvas.Session, error) {
	resultedSQL, args, err := d.builder.
		Select(sessionColumns...).
		From("active_sessions").
		Where(sq.Eq{"id": sessionId}).
		ToSql()
	if err != nil {
		return nil, err
	}

	session, err := ReadToSession(d.sqlDB.QueryRowContext(ctx, resultedSQL, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

func (d *sqlDataStore) GetSessionsByCanvas(ctx context.Context, canvasId string) ([]canvas.Session, error) {
	return d.querySessions(ctx, d.builder.
		Select(sessionColumns...).
		From("active_sessions").
		Where(sq.Eq{"canvas_id": canvasId}).
		OrderBy("connected_at ASC", "id ASC"))
}

func (d *sqlDataStore) GetSessionsByUserAndCanvas(ctx context.Context, userId string, canvasId string) ([]canvas.Session, error) {
	return d.querySessions(ctx, d.builder.
		Select(sessionColumns...).
		From("active_sessions").
		Where(sq.Eq{"user_id": userId, "canvas_id": canvasId}).
		OrderBy("connected_at ASC", "id ASC"))
}

func (d *sqlDataStore) querySessions(ctx context.Context, query sq.Sqlizer) ([]canvas.Session, error) {
	resultedSQL, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := d.sqlDB.QueryContext(ctx, resultedSQL, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]canvas.Session, 0)
	for rows.Next() {
		session, err := ReadToSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

func (d *sqlDataStore) UpdateSessionCursor(ctx context.Context, sessionId string, x float64, y float64, lastActivity int64) error {
	return d.updateSession(ctx, sessionId, map[string]any{
		"cursor_x":      x,
		"cursor_y":      y,
		"last_activity": lastActivity,
	})
}

func (d *sqlDataStore) TouchSession(ctx context.Context, sessionId string, lastActivity int64) error {
	return d.updateSession(ctx, sessionId, map[string]any{
		"last_activity": lastActivity,
	})
}

func (d *sqlDataStore) updateSession(ctx context.Context, sessionId string, columns map[string]any) error {
	resultedSQL, args, err := d.builder.
		Update("active_sessions").
		SetMap(columns).
		Where(sq.Eq{"id": sessionId}).
		ToSql()
	if err != nil {
		return err
	}

	result, err := d.sqlDB.ExecContext(ctx, resultedSQL, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (d *sqlDataStore) DeleteSession(ctx context.Context, sessionId string) error {
	resultedSQL, args, err := d.builder.
		Delete("active_sessions").
		Where(sq.Eq{"id": sessionId}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = d.sqlDB.ExecContext(ctx, resultedSQL, args...)
	return err
}

func (d *sqlDataStore) DeleteSessionsByUserAndCanvas(ctx context.Context, userId string, canvasId string) (int64, error) {
	resultedSQL, args, err := d.builder.
		Delete("active_sessions").
		Where(sq.Eq{"user_id": userId, "canvas_id": canvasId}).
		ToSql()
	if err != nil {
		return 0, err
	}

	result, err := d.sqlDB.ExecContext(ctx, resultedSQL, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (d *sqlDataStore) DeleteSessionsInactiveSince(ctx context.Context, cutoff int64) ([]canvas.Session, error) {
	return d.querySessions(ctx, d.builder.
		Delete("active_sessions").
		Where(sq.Lt{"last_activity": cutoff}).
		Suffix("RETURNING id, user_id, user_name, canvas_id, cursor_x, cursor_y, color, connected_at, last_activity"))
}
