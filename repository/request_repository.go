package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"droneDispatch/models"
)

type RequestRepository struct {
	db *sql.DB
}

func NewRequestRepository(db *sql.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `id, user_id, provider_id, package_id, mission_id, status, recipient_name, phone_number,
	start_point, destination_point, launch_date, weight, payout, notes, distance, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(s rowScanner) (*models.Request, error) {
	var (
		req                 models.Request
		missionID           sql.NullString
		start, destination  sql.NullString
		launch              sql.NullInt64
		createdAt, updateAt int64
	)
	err := s.Scan(&req.ID, &req.UserID, &req.ProviderID, &req.PackageID, &missionID, &req.Status,
		&req.ContactInfo.RecipientName, &req.ContactInfo.PhoneNumber, &start, &destination, &launch,
		&req.Weight, &req.Payout, &req.Notes, &req.Distance, &createdAt, &updateAt)
	if err != nil {
		return nil, err
	}
	if err := fromJSON(start, &req.StartPoint); err != nil {
		return nil, fmt.Errorf("request %s start point: %w", req.ID, err)
	}
	if err := fromJSON(destination, &req.DestinationPoint); err != nil {
		return nil, fmt.Errorf("request %s destination point: %w", req.ID, err)
	}
	req.MissionID = fromNullString(missionID)
	req.LaunchDate = fromNullMillis(launch)
	req.CreatedAt = fromMillis(createdAt)
	req.UpdatedAt = fromMillis(updateAt)
	return &req, nil
}

// Create inserts a new request. The caller sets ID, status and provider.
func (r *RequestRepository) Create(ctx context.Context, req *models.Request) error {
	if req == nil {
		return errors.New("request is nil")
	}
	start, err := jsonText(req.StartPoint)
	if err != nil {
		return err
	}
	destination, err := jsonText(req.DestinationPoint)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = req.CreatedAt

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err = conn(ctx, r.db).ExecContext(ctx, `INSERT INTO requests (`+requestColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		req.ID, req.UserID, req.ProviderID, req.PackageID, nullString(req.MissionID), string(req.Status),
		req.ContactInfo.RecipientName, req.ContactInfo.PhoneNumber, start, destination, nullMillis(req.LaunchDate),
		req.Weight, req.Payout, req.Notes, req.Distance, millis(req.CreatedAt), millis(req.UpdatedAt))
	return err
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	req, err := scanRequest(conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return req, err
}

// GetOwned fetches a request only if it belongs to providerID.
func (r *RequestRepository) GetOwned(ctx context.Context, id, providerID string) (*models.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	req, err := scanRequest(conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = ? AND provider_id = ?`, id, providerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return req, err
}

// TransitionStatus moves the request to `to` only if it is owned by providerID and its
// current status is one of from. The check and the write are a single statement.
// It reports whether a row changed.
func (r *RequestRepository) TransitionStatus(ctx context.Context, id, providerID string, from []models.RequestStatus, to models.RequestStatus) (bool, error) {
	if len(from) == 0 {
		return false, errors.New("no source status")
	}
	in, inArgs := placeholders(from)
	args := append([]any{string(to), millis(time.Now()), id, providerID}, inArgs...)

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE requests SET status = ?, updated_at = ? WHERE id = ? AND provider_id = ? AND status IN (`+in+`)`, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// LinkMission sets the mission link if none exists yet and copies the launch date.
// An existing link is never replaced.
func (r *RequestRepository) LinkMission(ctx context.Context, id, missionID string, launchDate *time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE requests SET mission_id = COALESCE(mission_id, ?), launch_date = ?, updated_at = ? WHERE id = ?`,
		missionID, nullMillis(launchDate), millis(time.Now()), id)
	return err
}

// ListByUser returns one page of a user's requests, newest first, and the total count.
func (r *RequestRepository) ListByUser(ctx context.Context, userID string, status *models.RequestStatus, offset, limit int) ([]models.Request, int, error) {
	offset, limit = pageBounds(offset, limit)
	where := `user_id = ?`
	args := []any{userID}
	if status != nil {
		where += ` AND status = ?`
		args = append(args, string(*status))
	}

	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	db := conn(ctx, r.db)
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM requests WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := db.QueryContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE `+where+
		` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []models.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// CountByStatus groups a provider's requests by status.
func (r *RequestRepository) CountByStatus(ctx context.Context, providerID string) (map[models.RequestStatus]int, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	rows, err := conn(ctx, r.db).QueryContext(ctx, `SELECT status, COUNT(*) FROM requests WHERE provider_id = ? GROUP BY status`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[models.RequestStatus]int{}
	for rows.Next() {
		var s models.RequestStatus
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}
