package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"droneDispatch/models"
)

type MissionRepository struct {
	db *sql.DB
}

func NewMissionRepository(db *sql.DB) *MissionRepository {
	return &MissionRepository{db: db}
}

// Assignment carries the fields a provider sets when (re)assigning a drone.
type Assignment struct {
	DroneID             string
	ScheduledAt         *time.Time
	Weight              float64
	Notes               string
	SpecialRequirements []string
}

const missionColumns = `id, provider_id, request_id, drone_id, pilot_id, status, name, special_requirements, notes, weight,
	scheduled_at, started_at, completed_at, est_launch_time, est_speed, est_distance, est_duration,
	result_distance, result_time, result_avg_speed, result_min_speed, result_max_speed,
	telemetry_lat, telemetry_lng, telemetry_speed, telemetry_distance,
	gallery, planned_home, mission_items, checklist, version, created_at, updated_at`

func scanMission(s rowScanner) (*models.Mission, error) {
	var (
		m                                    models.Mission
		special, gallery, home, items, check sql.NullString
		scheduled, started, completed, est   sql.NullInt64
		createdAt, updatedAt                 int64
	)
	err := s.Scan(&m.ID, &m.ProviderID, &m.RequestID, &m.DroneID, &m.PilotID, &m.Status, &m.Name, &special, &m.Notes, &m.Weight,
		&scheduled, &started, &completed, &est, &m.Estimation.Speed, &m.Estimation.Distance, &m.Estimation.Duration,
		&m.Result.Distance, &m.Result.Time, &m.Result.AvgSpeed, &m.Result.MinSpeed, &m.Result.MaxSpeed,
		&m.Telemetry.Lat, &m.Telemetry.Lng, &m.Telemetry.Speed, &m.Telemetry.Distance,
		&gallery, &home, &items, &check, &m.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	for _, c := range []struct {
		name string
		src  sql.NullString
		dst  any
	}{
		{"special requirements", special, &m.SpecialRequirements},
		{"gallery", gallery, &m.Gallery},
		{"planned home", home, &m.PlannedHomePosition},
		{"mission items", items, &m.MissionItems},
		{"checklist", check, &m.Checklist},
	} {
		if err := fromJSON(c.src, c.dst); err != nil {
			return nil, fmt.Errorf("mission %s %s: %w", m.ID, c.name, err)
		}
	}
	if m.Gallery == nil {
		m.Gallery = []models.MediaRef{}
	}
	m.ScheduledAt = fromNullMillis(scheduled)
	m.StartedAt = fromNullMillis(started)
	m.CompletedAt = fromNullMillis(completed)
	m.Estimation.LaunchTime = fromNullMillis(est)
	m.CreatedAt = fromMillis(createdAt)
	m.UpdatedAt = fromMillis(updatedAt)
	return &m, nil
}

// Create inserts a mission with zeroed result and telemetry blocks.
func (r *MissionRepository) Create(ctx context.Context, m *models.Mission) error {
	if m == nil {
		return errors.New("mission is nil")
	}
	special, err := jsonText(nonNil(m.SpecialRequirements))
	if err != nil {
		return err
	}
	gallery, err := jsonText(nonNil(m.Gallery))
	if err != nil {
		return err
	}
	items, err := jsonText(nonNil(m.MissionItems))
	if err != nil {
		return err
	}
	home, err := nullJSON(m.PlannedHomePosition, m.PlannedHomePosition == nil)
	if err != nil {
		return err
	}
	if m.Checklist.Answers == nil {
		m.Checklist.Answers = []models.ChecklistAnswer{}
	}
	check, err := jsonText(m.Checklist)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err = conn(ctx, r.db).ExecContext(ctx, `INSERT INTO missions (`+missionColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.ProviderID, m.RequestID, m.DroneID, m.PilotID, string(m.Status), m.Name, special, m.Notes, m.Weight,
		nullMillis(m.ScheduledAt), nullMillis(m.StartedAt), nullMillis(m.CompletedAt),
		nullMillis(m.Estimation.LaunchTime), m.Estimation.Speed, m.Estimation.Distance, m.Estimation.Duration,
		m.Result.Distance, m.Result.Time, m.Result.AvgSpeed, m.Result.MinSpeed, m.Result.MaxSpeed,
		m.Telemetry.Lat, m.Telemetry.Lng, m.Telemetry.Speed, m.Telemetry.Distance,
		gallery, home, items, check, m.Version, millis(now), millis(now))
	return err
}

func (r *MissionRepository) GetByID(ctx context.Context, id string) (*models.Mission, error) {
	return r.getOne(ctx, `SELECT `+missionColumns+` FROM missions WHERE id = ?`, id)
}

func (r *MissionRepository) GetByRequestID(ctx context.Context, requestID string) (*models.Mission, error) {
	return r.getOne(ctx, `SELECT `+missionColumns+` FROM missions WHERE request_id = ?`, requestID)
}

func (r *MissionRepository) getOne(ctx context.Context, query string, arg any) (*models.Mission, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	m, err := scanMission(conn(ctx, r.db).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// UpdateAssignment rewrites the drone and schedule of an existing mission and puts it
// back to waiting.
func (r *MissionRepository) UpdateAssignment(ctx context.Context, id string, a Assignment) error {
	special, err := jsonText(nonNil(a.SpecialRequirements))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err = conn(ctx, r.db).ExecContext(ctx, `UPDATE missions SET drone_id = ?, scheduled_at = ?, weight = ?, notes = ?,
		special_requirements = ?, status = ?, version = version + 1, updated_at = ? WHERE id = ?`,
		a.DroneID, nullMillis(a.ScheduledAt), a.Weight, a.Notes, special, string(models.MissionStatusWaiting), millis(time.Now()), id)
	return err
}

// UpdateEstimation overwrites the estimation block unless the mission is completed.
func (r *MissionRepository) UpdateEstimation(ctx context.Context, id string, e models.Estimation) (bool, error) {
	return r.updateOpen(ctx, id, `est_launch_time = ?, est_speed = ?, est_distance = ?, est_duration = ?`,
		nullMillis(e.LaunchTime), e.Speed, e.Distance, e.Duration)
}

// UpdatePlan stores the planned way-points unless the mission is completed.
func (r *MissionRepository) UpdatePlan(ctx context.Context, id, name string, home *models.MissionItem, items []models.MissionItem) (bool, error) {
	homeJSON, err := nullJSON(home, home == nil)
	if err != nil {
		return false, err
	}
	itemsJSON, err := jsonText(nonNil(items))
	if err != nil {
		return false, err
	}
	return r.updateOpen(ctx, id, `name = ?, planned_home = ?, mission_items = ?`, name, homeJSON, itemsJSON)
}

// UpdateChecklist stores the pre-flight checklist unless the mission is completed.
func (r *MissionRepository) UpdateChecklist(ctx context.Context, id string, c models.Checklist) (bool, error) {
	if c.Answers == nil {
		c.Answers = []models.ChecklistAnswer{}
	}
	check, err := jsonText(c)
	if err != nil {
		return false, err
	}
	return r.updateOpen(ctx, id, `checklist = ?`, check)
}

func (r *MissionRepository) updateOpen(ctx context.Context, id, set string, args ...any) (bool, error) {
	args = append(args, millis(time.Now()), id, string(models.MissionStatusCompleted))
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE missions SET `+set+`, version = version + 1, updated_at = ? WHERE id = ? AND status != ?`, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// SaveFold writes the result, telemetry snapshot and gallery of m only if the stored
// version still equals m.Version and the mission is not completed. On success
// m.Version is advanced.
func (r *MissionRepository) SaveFold(ctx context.Context, m *models.Mission) (bool, error) {
	gallery, err := jsonText(nonNil(m.Gallery))
	if err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	res, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE missions SET
		result_distance = ?, result_time = ?, result_avg_speed = ?, result_min_speed = ?, result_max_speed = ?,
		telemetry_lat = ?, telemetry_lng = ?, telemetry_speed = ?, telemetry_distance = ?,
		gallery = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND status != ?`,
		m.Result.Distance, m.Result.Time, m.Result.AvgSpeed, m.Result.MinSpeed, m.Result.MaxSpeed,
		m.Telemetry.Lat, m.Telemetry.Lng, m.Telemetry.Speed, m.Telemetry.Distance,
		gallery, millis(time.Now()), m.ID, m.Version, string(models.MissionStatusCompleted))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil || n != 1 {
		return false, err
	}
	m.Version++
	return true, nil
}

// MarkStarted moves a waiting or scheduled mission to in-progress.
func (r *MissionRepository) MarkStarted(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.transition(ctx, id, `started_at = ?`, millis(at),
		[]models.MissionStatus{models.MissionStatusWaiting, models.MissionStatusScheduled}, models.MissionStatusInProgress)
}

// MarkCompleted moves any non-completed mission to completed. Result numbers are left
// as folded.
func (r *MissionRepository) MarkCompleted(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.transition(ctx, id, `completed_at = ?`, millis(at),
		[]models.MissionStatus{models.MissionStatusWaiting, models.MissionStatusScheduled, models.MissionStatusInProgress},
		models.MissionStatusCompleted)
}

func (r *MissionRepository) transition(ctx context.Context, id, stamp string, at int64, from []models.MissionStatus, to models.MissionStatus) (bool, error) {
	in, inArgs := placeholders(from)
	args := append([]any{string(to), at, at, id}, inArgs...)
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	res, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE missions SET status = ?, `+stamp+`, version = version + 1, updated_at = ?
		WHERE id = ? AND status IN (`+in+`)`, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// CountByStatus groups a provider's missions by status.
func (r *MissionRepository) CountByStatus(ctx context.Context, providerID string) (map[models.MissionStatus]int, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	rows, err := conn(ctx, r.db).QueryContext(ctx, `SELECT status, COUNT(*) FROM missions WHERE provider_id = ? GROUP BY status`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[models.MissionStatus]int{}
	for rows.Next() {
		var s models.MissionStatus
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}

// nonNil keeps JSON columns as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
