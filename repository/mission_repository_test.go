package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"droneDispatch/models"
)

func seedMission(t *testing.T, s *Store) (*models.Request, *models.Mission) {
	t.Helper()
	ctx := context.Background()
	req := seedRequest(t, s, "u1", "p1")
	d, err := s.Drones.Create(ctx, &models.Drone{ProviderID: "p1", Name: "alpha", PilotIDs: []string{"pilot-1"}})
	if err != nil {
		t.Fatalf("seed drone: %v", err)
	}
	m := &models.Mission{
		ID:         uuid.NewString(),
		ProviderID: "p1",
		RequestID:  req.ID,
		DroneID:    d.ID,
		PilotID:    "pilot-1",
		Status:     models.MissionStatusWaiting,
	}
	if err := s.Missions.Create(ctx, m); err != nil {
		t.Fatalf("seed mission: %v", err)
	}
	return req, m
}

func TestMissionRepository_CreateGet(t *testing.T) {
	s := NewStore(openTestDB(t))
	ctx := context.Background()
	req, m := seedMission(t, s)

	got, err := s.Missions.GetByID(ctx, m.ID)
	if err != nil || got == nil {
		t.Fatalf("get: %v %+v", err, got)
	}
	if got.Status != models.MissionStatusWaiting || got.Result != (models.MissionResult{}) || len(got.Gallery) != 0 {
		t.Fatalf("unexpected mission: %+v", got)
	}
	byReq, err := s.Missions.GetByRequestID(ctx, req.ID)
	if err != nil || byReq == nil || byReq.ID != m.ID {
		t.Fatalf("get by request: %v %+v", err, byReq)
	}
	if missing, err := s.Missions.GetByID(ctx, "nope"); err != nil || missing != nil {
		t.Fatalf("expected nil, got %+v err=%v", missing, err)
	}
}

func TestMissionRepository_SaveFoldOptimistic(t *testing.T) {
	s := NewStore(openTestDB(t))
	ctx := context.Background()
	_, m := seedMission(t, s)

	a, _ := s.Missions.GetByID(ctx, m.ID)
	b, _ := s.Missions.GetByID(ctx, m.ID)

	a.Result.Distance = 10
	a.Gallery = append(a.Gallery, models.MediaRef{ImageURL: "x.png"})
	ok, err := s.Missions.SaveFold(ctx, a)
	if err != nil || !ok {
		t.Fatalf("first save: ok=%v err=%v", ok, err)
	}
	b.Result.Distance = 99
	ok, err = s.Missions.SaveFold(ctx, b)
	if err != nil || ok {
		t.Fatalf("stale version must lose: ok=%v err=%v", ok, err)
	}
	got, _ := s.Missions.GetByID(ctx, m.ID)
	if got.Result.Distance != 10 || len(got.Gallery) != 1 || got.Version != a.Version {
		t.Fatalf("unexpected state after fold: %+v", got)
	}
}

func TestMissionRepository_LifecycleGuards(t *testing.T) {
	s := NewStore(openTestDB(t))
	ctx := context.Background()
	_, m := seedMission(t, s)
	now := time.Now()

	launch := now.Add(time.Hour)
	if ok, err := s.Missions.UpdateEstimation(ctx, m.ID, models.Estimation{LaunchTime: &launch, Speed: 12}); err != nil || !ok {
		t.Fatalf("estimate: ok=%v err=%v", ok, err)
	}
	items := []models.MissionItem{{ID: 1, Command: 16, Coordinate: [3]float64{1, 2, 30}, AutoContinue: true, Type: "SimpleItem"}}
	if ok, err := s.Missions.UpdatePlan(ctx, m.ID, "route", &items[0], items); err != nil || !ok {
		t.Fatalf("plan: ok=%v err=%v", ok, err)
	}
	if ok, err := s.Missions.UpdateChecklist(ctx, m.ID, models.Checklist{Completed: true}); err != nil || !ok {
		t.Fatalf("checklist: ok=%v err=%v", ok, err)
	}
	if ok, err := s.Missions.MarkStarted(ctx, m.ID, now); err != nil || !ok {
		t.Fatalf("start: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.Missions.MarkStarted(ctx, m.ID, now); ok {
		t.Fatalf("second start must not match")
	}
	if ok, err := s.Missions.MarkCompleted(ctx, m.ID, now); err != nil || !ok {
		t.Fatalf("complete: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.Missions.UpdateEstimation(ctx, m.ID, models.Estimation{Speed: 1}); ok {
		t.Fatalf("completed mission must reject estimation")
	}
	got, _ := s.Missions.GetByID(ctx, m.ID)
	if got.Status != models.MissionStatusCompleted || got.StartedAt == nil || got.CompletedAt == nil {
		t.Fatalf("unexpected final mission: %+v", got)
	}
	if got.Estimation.Speed != 12 || got.Name != "route" || len(got.MissionItems) != 1 || !got.Checklist.Completed {
		t.Fatalf("stored blocks lost: %+v", got)
	}
	if got.MissionItems[0].Coordinate != [3]float64{1, 2, 30} {
		t.Fatalf("coordinate mismatch: %v", got.MissionItems[0].Coordinate)
	}
	counts, err := s.Missions.CountByStatus(ctx, "p1")
	if err != nil || counts[models.MissionStatusCompleted] != 1 {
		t.Fatalf("counts: %v %v", counts, err)
	}
}

func TestMissionRepository_UpdateAssignment(t *testing.T) {
	s := NewStore(openTestDB(t))
	ctx := context.Background()
	_, m := seedMission(t, s)
	at := time.Now().Add(2 * time.Hour)
	if err := s.Missions.UpdateAssignment(ctx, m.ID, Assignment{DroneID: m.DroneID, ScheduledAt: &at, Weight: 3, Notes: "fragile", SpecialRequirements: []string{"cold"}}); err != nil {
		t.Fatalf("update assignment: %v", err)
	}
	got, _ := s.Missions.GetByID(ctx, m.ID)
	if got.Weight != 3 || got.Notes != "fragile" || len(got.SpecialRequirements) != 1 || got.ScheduledAt == nil {
		t.Fatalf("assignment not stored: %+v", got)
	}
}
