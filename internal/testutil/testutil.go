package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"google.golang.org/grpc/metadata"

	"droneDispatch/internal/db"
	"droneDispatch/models"
	"droneDispatch/repository"
)

// OpenTestDB opens a migrated SQLite database in a per-test temporary directory.
// It is closed automatically when the test ends.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// NewStore returns a Store over a fresh test database.
func NewStore(t *testing.T) *repository.Store {
	t.Helper()
	return repository.NewStore(OpenTestDB(t))
}

// SeedPackage creates a package owned by providerID.
func SeedPackage(t *testing.T, s *repository.Store, providerID string) *models.Package {
	t.Helper()
	p, err := s.Packages.Create(context.Background(), &models.Package{ProviderID: providerID, Name: "parcel", Weight: 1.5})
	if err != nil {
		t.Fatalf("seed package: %v", err)
	}
	return p
}

// SeedDrone creates a drone owned by providerID with the given eligible pilots.
func SeedDrone(t *testing.T, s *repository.Store, providerID, accessURL string, pilots ...string) *models.Drone {
	t.Helper()
	d, err := s.Drones.Create(context.Background(), &models.Drone{
		ProviderID: providerID,
		Name:       "drone-" + uuid.NewString()[:8],
		AccessURL:  accessURL,
		PilotIDs:   pilots,
	})
	if err != nil {
		t.Fatalf("seed drone: %v", err)
	}
	return d
}

// SeedDroneAt creates a drone at a fixed position.
func SeedDroneAt(t *testing.T, s *repository.Store, providerID string, p models.Point) *models.Drone {
	t.Helper()
	d, err := s.Drones.Create(context.Background(), &models.Drone{ProviderID: providerID, Name: "drone", Location: p})
	if err != nil {
		t.Fatalf("seed drone: %v", err)
	}
	return d
}

// SeedRequest stores a request in the given status, bypassing the lifecycle.
func SeedRequest(t *testing.T, s *repository.Store, userID, providerID string, status models.RequestStatus) *models.Request {
	t.Helper()
	pkg := SeedPackage(t, s, providerID)
	r := &models.Request{
		ID:               uuid.NewString(),
		UserID:           userID,
		ProviderID:       providerID,
		PackageID:        pkg.ID,
		Status:           status,
		ContactInfo:      models.ContactInfo{RecipientName: "Recipient", PhoneNumber: "+100000000"},
		StartPoint:       models.Address{Coordinates: models.Point{Lat: 52.52, Lng: 13.40}, City: "Berlin"},
		DestinationPoint: models.Address{Coordinates: models.Point{Lat: 52.50, Lng: 13.45}, City: "Berlin"},
		Weight:           1.5,
	}
	if err := s.Requests.Create(context.Background(), r); err != nil {
		t.Fatalf("seed request: %v", err)
	}
	return r
}

// SeedMission stores a WAITING mission for req flown by drone with pilotID, and links
// it to the request.
func SeedMission(t *testing.T, s *repository.Store, req *models.Request, drone *models.Drone, pilotID string) *models.Mission {
	t.Helper()
	ctx := context.Background()
	m := &models.Mission{
		ID:         uuid.NewString(),
		Name:       "mission",
		Status:     models.MissionStatusWaiting,
		ProviderID: req.ProviderID,
		RequestID:  req.ID,
		DroneID:    drone.ID,
		PilotID:    pilotID,
		Weight:     req.Weight,
	}
	if err := s.Missions.Create(ctx, m); err != nil {
		t.Fatalf("seed mission: %v", err)
	}
	if err := s.Requests.LinkMission(ctx, req.ID, m.ID, nil); err != nil {
		t.Fatalf("link mission: %v", err)
	}
	req.MissionID = &m.ID
	return m
}

// GenerateJWTHS256 returns a signed JWT carrying the claims the auth layer reads.
func GenerateJWTHS256(t *testing.T, secret, userID, role, providerID string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	if providerID != "" {
		claims["provider_id"] = providerID
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// CtxWithBearer returns a context containing gRPC metadata Authorization header with the given token.
func CtxWithBearer(ctx context.Context, token string) context.Context {
	md := metadata.Pairs("authorization", "Bearer "+token)
	return metadata.NewIncomingContext(ctx, md)
}
