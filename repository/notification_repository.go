package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"droneDispatch/models"
)

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n == nil {
		return errors.New("notification is nil")
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Values == nil {
		n.Values = map[string]any{}
	}
	payload, err := jsonText(n.Values)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err = conn(ctx, r.db).ExecContext(ctx, `INSERT INTO notifications (id, user_id, type, payload, is_read, created_at) VALUES (?,?,?,?,?,?)`,
		n.ID, n.UserID, string(n.Type), payload, n.IsRead, millis(n.CreatedAt))
	return err
}

// ListByUser returns one page of a user's notifications, newest first, and the total.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]models.Notification, int, error) {
	offset, limit = pageBounds(offset, limit)
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	db := conn(ctx, r.db)
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := db.QueryContext(ctx, `SELECT id, user_id, type, payload, is_read, created_at FROM notifications
		WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var payload sql.NullString
		var at int64
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &payload, &n.IsRead, &at); err != nil {
			return nil, 0, err
		}
		if err := fromJSON(payload, &n.Values); err != nil {
			return nil, 0, err
		}
		n.CreatedAt = fromMillis(at)
		out = append(out, n)
	}
	return out, total, rows.Err()
}

// MarkRead flags a notification as read if it belongs to userID.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	res, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
