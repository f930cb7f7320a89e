package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"droneDispatch/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. ID is generated when empty and Role defaults to consumer.
func (r *UserRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if u == nil {
		return nil, errors.New("user is nil")
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = models.RoleConsumer
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := conn(ctx, r.db).ExecContext(ctx, `INSERT INTO users (id, username, role, provider_id, created_at) VALUES (?,?,?,?,?)`,
		u.ID, u.Username, string(u.Role), u.ProviderID, millis(time.Now()))
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT id, username, role, provider_id FROM users WHERE id = ?`, id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, `SELECT id, username, role, provider_id FROM users WHERE username = ?`, username)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var u models.User
	err := conn(ctx, r.db).QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username, &u.Role, &u.ProviderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	rows, err := conn(ctx, r.db).QueryContext(ctx, `SELECT id, username, role, provider_id FROM users ORDER BY created_at, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.ProviderID); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
