package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"droneDispatch/models"
)

func seedRequest(t *testing.T, s *Store, userID, providerID string) *models.Request {
	t.Helper()
	ctx := context.Background()
	pkg, err := s.Packages.Create(ctx, &models.Package{ProviderID: providerID, Name: "box", Weight: 1})
	if err != nil {
		t.Fatalf("seed package: %v", err)
	}
	req := &models.Request{
		ID:          uuid.NewString(),
		UserID:      userID,
		ProviderID:  providerID,
		PackageID:   pkg.ID,
		Status:      models.RequestStatusPending,
		ContactInfo: models.ContactInfo{RecipientName: "Bob", PhoneNumber: "555"},
		StartPoint:  models.Address{Coordinates: models.Point{Lat: 1, Lng: 2}, City: "A"},
		DestinationPoint: models.Address{
			Coordinates: models.Point{Lat: 3, Lng: 4}, City: "B",
		},
		Weight: 1,
	}
	if err := s.Requests.Create(ctx, req); err != nil {
		t.Fatalf("seed request: %v", err)
	}
	return req
}

func TestRequestRepository_CreateAndGet(t *testing.T) {
	s := NewStore(openTestDB(t))
	ctx := context.Background()
	req := seedRequest(t, s, "u1", "p1")

	got, err := s.Requests.GetByID(ctx, req.ID)
	if err != nil || got == nil {
		t.Fatalf("get: %v %+v", err, got)
	}
	if got.DestinationPoint.Coordinates.Lat != 3 || got.ContactInfo.RecipientName != "Bob" || got.MissionID != nil {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if owned, _ := s.Requests.GetOwned(ctx, req.ID, "other"); owned != nil {
		t.Fatalf("request must not be visible to another provider")
	}
	if owned, _ := s.Requests.GetOwned(ctx, req.ID, "p1"); owned == nil {
		t.Fatalf("owner must see the request")
	}
}

func TestRequestRepository_TransitionStatus(t *testing.T) {
	s := NewStore(openTestDB(t))
	ctx := context.Background()
	req := seedRequest(t, s, "u1", "p1")

	ok, err := s.Requests.TransitionStatus(ctx, req.ID, "other", []models.RequestStatus{models.RequestStatusPending}, models.RequestStatusScheduled)
	if err != nil || ok {
		t.Fatalf("foreign provider transition: ok=%v err=%v", ok, err)
	}
	ok, err = s.Requests.TransitionStatus(ctx, req.ID, "p1", []models.RequestStatus{models.RequestStatusPending}, models.RequestStatusScheduled)
	if err != nil || !ok {
		t.Fatalf("accept: ok=%v err=%v", ok, err)
	}
	ok, err = s.Requests.TransitionStatus(ctx, req.ID, "p1", []models.RequestStatus{models.RequestStatusPending}, models.RequestStatusRejected)
	if err != nil || ok {
		t.Fatalf("stale source status must not match: ok=%v err=%v", ok, err)
	}
	got, _ := s.Requests.GetByID(ctx, req.ID)
	if got.Status != models.RequestStatusScheduled {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestRequestRepository_TransitionStatus_Concurrent(t *testing.T) {
	s := NewStore(openTestDB(t))
	req := seedRequest(t, s, "u1", "p1")

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Requests.TransitionStatus(context.Background(), req.ID, "p1",
				[]models.RequestStatus{models.RequestStatusPending}, models.RequestStatusScheduled)
			if err != nil {
				t.Errorf("transition: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winning transition, got %d", wins)
	}
}

func TestRequestRepository_LinkMissionOnce(t *testing.T) {
	s := NewStore(openTestDB(t))
	ctx := context.Background()
	req := seedRequest(t, s, "u1", "p1")
	launch := time.Now().Add(time.Hour).Truncate(time.Millisecond).UTC()

	if err := s.Requests.LinkMission(ctx, req.ID, "m1", &launch); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := s.Requests.LinkMission(ctx, req.ID, "m2", nil); err != nil {
		t.Fatalf("relink: %v", err)
	}
	got, _ := s.Requests.GetByID(ctx, req.ID)
	if got.MissionID == nil || *got.MissionID != "m1" {
		t.Fatalf("mission link must not change: %+v", got.MissionID)
	}
	if got.LaunchDate != nil {
		t.Fatalf("launch date should follow the latest assignment, got %v", got.LaunchDate)
	}
}

func TestRequestRepository_ListByUserAndCounts(t *testing.T) {
	s := NewStore(openTestDB(t))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		seedRequest(t, s, "u1", "p1")
	}
	other := seedRequest(t, s, "u2", "p1")
	if _, err := s.Requests.TransitionStatus(ctx, other.ID, "p1", []models.RequestStatus{models.RequestStatusPending}, models.RequestStatusRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}

	items, total, err := s.Requests.ListByUser(ctx, "u1", nil, 0, 2)
	if err != nil || total != 3 || len(items) != 2 {
		t.Fatalf("list: err=%v total=%d len=%d", err, total, len(items))
	}
	rejected := models.RequestStatusRejected
	items, total, err = s.Requests.ListByUser(ctx, "u2", &rejected, 0, 10)
	if err != nil || total != 1 || items[0].ID != other.ID {
		t.Fatalf("filtered list: err=%v total=%d", err, total)
	}

	counts, err := s.Requests.CountByStatus(ctx, "p1")
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts[models.RequestStatusPending] != 3 || counts[models.RequestStatusRejected] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}
