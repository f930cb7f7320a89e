package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"droneDispatch/models"
)

type NoFlyZoneRepository struct {
	db *sql.DB
}

func NewNoFlyZoneRepository(db *sql.DB) *NoFlyZoneRepository {
	return &NoFlyZoneRepository{db: db}
}

// ZoneFilter holds the store-side part of an airspace search. Exact geometry
// intersection is left to the caller; Box only narrows candidates.
type ZoneFilter struct {
	MissionID    *string
	IsActive     *bool
	IsPermanent  *bool
	Box          *models.BBox
	InEffectAt   *time.Time
	// ExcludeDrone drops every zone that drone originated, permanent ones included.
	ExcludeDrone string
}

func (f ZoneFilter) where() (string, []any) {
	clauses := []string{"1=1"}
	var args []any
	if f.MissionID != nil {
		clauses = append(clauses, "mission_id = ?")
		args = append(args, *f.MissionID)
	}
	if f.IsActive != nil {
		clauses = append(clauses, "is_active = ?")
		args = append(args, boolInt(*f.IsActive))
	}
	if f.IsPermanent != nil {
		clauses = append(clauses, "is_permanent = ?")
		args = append(args, boolInt(*f.IsPermanent))
	}
	if f.Box != nil {
		clauses = append(clauses, "min_lat <= ? AND max_lat >= ? AND min_lng <= ? AND max_lng >= ?")
		args = append(args, f.Box.MaxLat, f.Box.MinLat, f.Box.MaxLng, f.Box.MinLng)
	}
	if f.InEffectAt != nil {
		at := millis(*f.InEffectAt)
		clauses = append(clauses, "(is_permanent = 1 OR (start_time <= ? AND end_time >= ?))")
		args = append(args, at, at)
	}
	if f.ExcludeDrone != "" {
		clauses = append(clauses, "(drone_id IS NULL OR drone_id != ?)")
		args = append(args, f.ExcludeDrone)
	}
	return strings.Join(clauses, " AND "), args
}

const zoneColumns = `id, geometry, circle, description, start_time, end_time, style, is_active, is_permanent,
	mission_id, drone_id, created_at, updated_at`

func scanZone(s rowScanner) (*models.NoFlyZone, error) {
	var (
		z                    models.NoFlyZone
		geometry             string
		circle, style        sql.NullString
		start, end           sql.NullInt64
		missionID, droneID   sql.NullString
		createdAt, updatedAt int64
	)
	err := s.Scan(&z.ID, &geometry, &circle, &z.Description, &start, &end, &style, &z.IsActive, &z.IsPermanent,
		&missionID, &droneID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := fromJSON(sql.NullString{String: geometry, Valid: true}, &z.Location); err != nil {
		return nil, fmt.Errorf("zone %s geometry: %w", z.ID, err)
	}
	if err := fromJSON(circle, &z.Circle); err != nil {
		return nil, fmt.Errorf("zone %s circle: %w", z.ID, err)
	}
	if err := fromJSON(style, &z.Style); err != nil {
		return nil, fmt.Errorf("zone %s style: %w", z.ID, err)
	}
	z.StartTime = fromNullMillis(start)
	z.EndTime = fromNullMillis(end)
	z.MissionID = fromNullString(missionID)
	z.DroneID = fromNullString(droneID)
	z.CreatedAt = fromMillis(createdAt)
	z.UpdatedAt = fromMillis(updatedAt)
	return &z, nil
}

type zoneRow struct {
	geometry, circle, style any
	box                     models.BBox
}

func encodeZone(z *models.NoFlyZone) (zoneRow, error) {
	var row zoneRow
	g, err := jsonText(z.Location)
	if err != nil {
		return row, err
	}
	row.geometry = g
	if row.circle, err = nullJSON(z.Circle, z.Circle == nil); err != nil {
		return row, err
	}
	if row.style, err = nullJSON(z.Style, z.Style == nil); err != nil {
		return row, err
	}
	row.box = z.Location.Bounds()
	return row, nil
}

// Create inserts a zone. Its bounding box is stored alongside for candidate lookup.
func (r *NoFlyZoneRepository) Create(ctx context.Context, z *models.NoFlyZone) error {
	if z == nil {
		return errors.New("zone is nil")
	}
	row, err := encodeZone(z)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	z.CreatedAt, z.UpdatedAt = now, now
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err = conn(ctx, r.db).ExecContext(ctx, `INSERT INTO no_fly_zones (`+zoneColumns+`, min_lat, max_lat, min_lng, max_lng)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		z.ID, row.geometry, row.circle, z.Description, nullMillis(z.StartTime), nullMillis(z.EndTime), row.style,
		z.IsActive, z.IsPermanent, nullString(z.MissionID), nullString(z.DroneID), millis(now), millis(now),
		row.box.MinLat, row.box.MaxLat, row.box.MinLng, row.box.MaxLng)
	return err
}

func (r *NoFlyZoneRepository) GetByID(ctx context.Context, id string) (*models.NoFlyZone, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	z, err := scanZone(conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+zoneColumns+` FROM no_fly_zones WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return z, err
}

// Update overwrites every mutable column. It reports whether the zone exists.
func (r *NoFlyZoneRepository) Update(ctx context.Context, z *models.NoFlyZone) (bool, error) {
	row, err := encodeZone(z)
	if err != nil {
		return false, err
	}
	z.UpdatedAt = time.Now().UTC()
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	res, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE no_fly_zones SET geometry = ?, circle = ?, description = ?,
		start_time = ?, end_time = ?, style = ?, is_active = ?, is_permanent = ?, mission_id = ?, drone_id = ?,
		min_lat = ?, max_lat = ?, min_lng = ?, max_lng = ?, updated_at = ? WHERE id = ?`,
		row.geometry, row.circle, z.Description, nullMillis(z.StartTime), nullMillis(z.EndTime), row.style,
		z.IsActive, z.IsPermanent, nullString(z.MissionID), nullString(z.DroneID),
		row.box.MinLat, row.box.MaxLat, row.box.MinLng, row.box.MaxLng, millis(z.UpdatedAt), z.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *NoFlyZoneRepository) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM no_fly_zones WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Search returns zones matching f, newest first. A limit of zero or less returns every
// match, for callers that filter further before paginating.
func (r *NoFlyZoneRepository) Search(ctx context.Context, f ZoneFilter, offset, limit int) ([]models.NoFlyZone, error) {
	where, args := f.where()
	query := `SELECT ` + zoneColumns + ` FROM no_fly_zones WHERE ` + where + ` ORDER BY created_at DESC, id`
	if limit > 0 {
		if offset < 0 {
			offset = 0
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.NoFlyZone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *z)
	}
	return out, rows.Err()
}

func (r *NoFlyZoneRepository) Count(ctx context.Context, f ZoneFilter) (int, error) {
	where, args := f.where()
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var n int
	err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM no_fly_zones WHERE `+where, args...).Scan(&n)
	return n, err
}
