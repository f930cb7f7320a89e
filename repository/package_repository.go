package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"droneDispatch/models"
)

type PackageRepository struct {
	db *sql.DB
}

func NewPackageRepository(db *sql.DB) *PackageRepository {
	return &PackageRepository{db: db}
}

func (r *PackageRepository) Create(ctx context.Context, p *models.Package) (*models.Package, error) {
	if p == nil {
		return nil, errors.New("package is nil")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := conn(ctx, r.db).ExecContext(ctx, `INSERT INTO packages (id, provider_id, name, weight, created_at) VALUES (?,?,?,?,?)`,
		p.ID, p.ProviderID, p.Name, p.Weight, millis(time.Now()))
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PackageRepository) GetByID(ctx context.Context, id string) (*models.Package, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var p models.Package
	err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT id, provider_id, name, weight FROM packages WHERE id = ?`, id).
		Scan(&p.ID, &p.ProviderID, &p.Name, &p.Weight)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
