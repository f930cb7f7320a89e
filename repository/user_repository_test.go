package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"droneDispatch/internal/db"
	"droneDispatch/models"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "repo.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestUserRepository_CRUDAndQueries(t *testing.T) {
	repo := NewUserRepository(openTestDB(t))
	ctx := context.Background()

	// Create
	u, err := repo.Create(ctx, &models.User{Username: "alice"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID == "" || u.Username != "alice" || u.Role != models.RoleConsumer {
		t.Fatalf("unexpected created user: %+v", u)
	}

	// GetByID
	g, err := repo.GetByID(ctx, u.ID)
	if err != nil || g == nil || g.Username != "alice" {
		t.Fatalf("get by id: %v %+v", err, g)
	}

	// GetByUsername
	g2, err := repo.GetByUsername(ctx, "alice")
	if err != nil || g2 == nil || g2.ID != u.ID {
		t.Fatalf("get by username: %v %+v", err, g2)
	}

	// Duplicate usernames are rejected
	if _, err := repo.Create(ctx, &models.User{Username: "alice"}); err == nil {
		t.Fatalf("expected unique violation")
	}

	// Provider staff keep their provider
	p, err := repo.Create(ctx, &models.User{Username: "acme", Role: models.RoleProvider, ProviderID: "prov-1"})
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	if got, _ := repo.GetByID(ctx, p.ID); got.ProviderID != "prov-1" || got.Role != models.RoleProvider {
		t.Fatalf("provider user mismatch: %+v", got)
	}

	// List
	list, err := repo.List(ctx, 10, 0)
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %v len=%d", err, len(list))
	}

	// Missing
	gone, err := repo.GetByID(ctx, "nope")
	if err != nil || gone != nil {
		t.Fatalf("expected nil for missing user, got: %+v err=%v", gone, err)
	}
}

func TestPackageRepository_CreateGet(t *testing.T) {
	repo := NewPackageRepository(openTestDB(t))
	ctx := context.Background()
	p, err := repo.Create(ctx, &models.Package{ProviderID: "prov-1", Name: "parcel", Weight: 2.5})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := repo.GetByID(ctx, p.ID)
	if err != nil || got == nil || got.ProviderID != "prov-1" || got.Weight != 2.5 {
		t.Fatalf("get: %v %+v", err, got)
	}
	if missing, err := repo.GetByID(ctx, "nope"); err != nil || missing != nil {
		t.Fatalf("expected nil, got %+v err=%v", missing, err)
	}
}
