package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"droneDispatch/models"
)

type DroneRepository struct {
	db *sql.DB
}

func NewDroneRepository(db *sql.DB) *DroneRepository {
	return &DroneRepository{db: db}
}

const droneColumns = `id, provider_id, name, serial_number, status, lat, lng, access_url, last_seen_at, created_at, updated_at`

func scanDrone(s rowScanner) (*models.Drone, error) {
	var (
		d                    models.Drone
		lastSeen             sql.NullInt64
		createdAt, updatedAt int64
	)
	err := s.Scan(&d.ID, &d.ProviderID, &d.Name, &d.SerialNumber, &d.Status, &d.Location.Lat, &d.Location.Lng,
		&d.AccessURL, &lastSeen, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	d.LastSeenAt = fromNullMillis(lastSeen)
	d.CreatedAt = fromMillis(createdAt)
	d.UpdatedAt = fromMillis(updatedAt)
	return &d, nil
}

// Create inserts a new drone and its eligible pilots. Status defaults to idle-ready.
func (r *DroneRepository) Create(ctx context.Context, d *models.Drone) (*models.Drone, error) {
	if d == nil {
		return nil, errors.New("drone is nil")
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = models.DroneStatusIdleReady
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	db := conn(ctx, r.db)
	_, err := db.ExecContext(ctx, `INSERT INTO drones (`+droneColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.ProviderID, d.Name, d.SerialNumber, string(d.Status), d.Location.Lat, d.Location.Lng,
		d.AccessURL, nullMillis(d.LastSeenAt), millis(now), millis(now))
	if err != nil {
		return nil, err
	}
	for _, pilot := range d.PilotIDs {
		if _, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO drone_pilots (drone_id, pilot_id) VALUES (?,?)`, d.ID, pilot); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// GetByID fetches a drone with its pilot ids.
func (r *DroneRepository) GetByID(ctx context.Context, id string) (*models.Drone, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	db := conn(ctx, r.db)
	d, err := scanDrone(db.QueryRowContext(ctx, `SELECT `+droneColumns+` FROM drones WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT pilot_id FROM drone_pilots WHERE drone_id = ? ORDER BY pilot_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	d.PilotIDs = []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		d.PilotIDs = append(d.PilotIDs, p)
	}
	return d, rows.Err()
}

// UpdateLocation overwrites the current position and marks the drone in motion.
// It reports whether the drone exists.
func (r *DroneRepository) UpdateLocation(ctx context.Context, id string, p models.Point, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	res, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE drones SET lat = ?, lng = ?, status = ?, last_seen_at = ?, updated_at = ? WHERE id = ?`,
		p.Lat, p.Lng, string(models.DroneStatusInMotion), millis(at), millis(at), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// AppendPosition adds a history record and returns its sequence number.
func (r *DroneRepository) AppendPosition(ctx context.Context, id string, p models.Point, at time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	res, err := conn(ctx, r.db).ExecContext(ctx, `INSERT INTO drone_positions (drone_id, lat, lng, recorded_at) VALUES (?,?,?,?)`,
		id, p.Lat, p.Lng, millis(at))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListPositions returns one page of a drone's position history, newest first, and the
// total number of records.
func (r *DroneRepository) ListPositions(ctx context.Context, id string, offset, limit int) ([]models.DronePosition, int, error) {
	offset, limit = pageBounds(offset, limit)
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	db := conn(ctx, r.db)
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM drone_positions WHERE drone_id = ?`, id).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := db.QueryContext(ctx, `SELECT seq, drone_id, lat, lng, recorded_at FROM drone_positions
		WHERE drone_id = ? ORDER BY seq DESC LIMIT ? OFFSET ?`, id, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []models.DronePosition{}
	for rows.Next() {
		var p models.DronePosition
		var at int64
		if err := rows.Scan(&p.Seq, &p.DroneID, &p.Lat, &p.Lng, &at); err != nil {
			return nil, 0, err
		}
		p.RecordedAt = fromMillis(at)
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// FindInBox returns drones whose position falls inside box, excluding excludeID. The
// caller applies the exact distance check. A box wider than the antimeridian range
// disables the longitude filter.
func (r *DroneRepository) FindInBox(ctx context.Context, box models.BBox, excludeID string) ([]models.Drone, error) {
	query := `SELECT ` + droneColumns + ` FROM drones WHERE id != ? AND lat BETWEEN ? AND ?`
	args := []any{excludeID, box.MinLat, box.MaxLat}
	if box.MinLng >= -180 && box.MaxLng <= 180 {
		query += ` AND lng BETWEEN ? AND ?`
		args = append(args, box.MinLng, box.MaxLng)
	}
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Drone
	for rows.Next() {
		d, err := scanDrone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// ResetStale flips in-motion drones not seen since before back to idle-ready.
func (r *DroneRepository) ResetStale(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	res, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE drones SET status = ?, updated_at = ?
		WHERE status = ? AND (last_seen_at IS NULL OR last_seen_at < ?)`,
		string(models.DroneStatusIdleReady), millis(time.Now()), string(models.DroneStatusInMotion), millis(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *DroneRepository) CountByProvider(ctx context.Context, providerID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var n int
	err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM drones WHERE provider_id = ?`, providerID).Scan(&n)
	return n, err
}
