package requests

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"droneDispatch/internal/apperr"
	"droneDispatch/internal/metrics"
	"droneDispatch/internal/notify"
	"droneDispatch/internal/testutil"
	"droneDispatch/models"
	"droneDispatch/repository"
)

type sent struct {
	userID string
	event  models.EventType
}

type recorder struct {
	mu   sync.Mutex
	sent []sent
}

func (r *recorder) sink() notify.Sink {
	return notify.SinkFunc(func(_ context.Context, userID string, event models.EventType, _ map[string]any) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.sent = append(r.sent, sent{userID, event})
		return nil
	})
}

func (r *recorder) count(event models.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.event == event {
			n++
		}
	}
	return n
}

type fixture struct {
	store   *repository.Store
	rec     *recorder
	metrics *metrics.MetricsRegistry
	life    *Lifecycle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: testutil.NewStore(t), rec: &recorder{}, metrics: metrics.NewMetricsRegistry()}
	f.life = New(f.store, f.rec.sink(), f.metrics, zaptest.NewLogger(t))
	return f
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pkg := testutil.SeedPackage(t, f.store, "p1")

	req, err := f.life.Create(ctx, CreateInput{
		UserID:           "u1",
		PackageID:        pkg.ID,
		StartPoint:       models.Address{Coordinates: models.Point{Lat: 52.5200, Lng: 13.4050}},
		DestinationPoint: models.Address{Coordinates: models.Point{Lat: 48.1351, Lng: 11.5820}},
		Weight:           2,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.Status != models.RequestStatusPending || req.ProviderID != "p1" {
		t.Fatalf("new request must be pending for the package's provider: %+v", req)
	}
	// Berlin to Munich is about 504 km.
	if req.Distance < 500e3 || req.Distance > 510e3 {
		t.Fatalf("distance = %v", req.Distance)
	}

	_, err = f.life.Create(ctx, CreateInput{UserID: "u1", PackageID: "missing"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing package: want not found, got %v", err)
	}
	_, err = f.life.Create(ctx, CreateInput{UserID: "u1", PackageID: pkg.ID, StartPoint: models.Address{Coordinates: models.Point{Lat: 100}}})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("bad coordinates: want validation, got %v", err)
	}
}

func TestTransitions_FollowGraph(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	type op func(context.Context, string, string) (*models.Request, error)
	ops := map[string]op{
		"accept": f.life.Accept,
		"reject": f.life.Reject,
		"cancel": f.life.Cancel,
	}
	cases := []struct {
		from models.RequestStatus
		op   string
		want models.RequestStatus
	}{
		{models.RequestStatusPending, "accept", models.RequestStatusScheduled},
		{models.RequestStatusPending, "reject", models.RequestStatusRejected},
		{models.RequestStatusPending, "cancel", ""},
		{models.RequestStatusScheduled, "accept", ""},
		{models.RequestStatusScheduled, "cancel", models.RequestStatusCancelled},
		{models.RequestStatusInProgress, "cancel", models.RequestStatusCancelled},
		{models.RequestStatusRejected, "cancel", ""},
		{models.RequestStatusRejected, "accept", ""},
		{models.RequestStatusCancelled, "cancel", ""},
		{models.RequestStatusCompleted, "cancel", ""},
		{models.RequestStatusCompleted, "reject", ""},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"/"+tc.op, func(t *testing.T) {
			req := testutil.SeedRequest(t, f.store, "u1", "p1", tc.from)
			got, err := ops[tc.op](ctx, "p1", req.ID)
			if tc.want == "" {
				if !errors.Is(err, apperr.ErrInvalidTransition) {
					t.Fatalf("want invalid transition, got %v", err)
				}
				stored, _ := f.store.Requests.GetByID(ctx, req.ID)
				if stored.Status != tc.from {
					t.Fatalf("status changed on rejected transition: %s", stored.Status)
				}
				return
			}
			if err != nil || got.Status != tc.want {
				t.Fatalf("want %s, got %+v err=%v", tc.want, got, err)
			}
		})
	}
}

func TestTransition_OtherProviderIsNotFound(t *testing.T) {
	f := newFixture(t)
	req := testutil.SeedRequest(t, f.store, "u1", "p1", models.RequestStatusPending)
	if _, err := f.life.Accept(context.Background(), "p2", req.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
	if _, err := f.life.Accept(context.Background(), "p1", "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
	if f.rec.count(models.EventRequestAccepted) != 0 {
		t.Fatalf("failed transition must not notify")
	}
}

func TestAccept_ConcurrentCallsScheduleOnce(t *testing.T) {
	f := newFixture(t)
	req := testutil.SeedRequest(t, f.store, "u1", "p1", models.RequestStatusPending)

	const callers = 2
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.life.Accept(context.Background(), "p1", req.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, invalid int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrInvalidTransition):
			invalid++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || invalid != 1 {
		t.Fatalf("want one success and one invalid transition, got ok=%d invalid=%d", ok, invalid)
	}
	if n := f.rec.count(models.EventRequestAccepted); n != 1 {
		t.Fatalf("accepted notifications = %d", n)
	}
	if n := promtest.ToFloat64(f.metrics.TransitionsTotal.WithLabelValues("request", "scheduled", metrics.OutcomeRejected)); n != 1 {
		t.Fatalf("rejected transition counter = %v", n)
	}
}

func TestCancel_RejectedFailsInProgressNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rejected := testutil.SeedRequest(t, f.store, "u1", "p1", models.RequestStatusRejected)
	if _, err := f.life.Cancel(ctx, "p1", rejected.ID); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("cancel rejected: want invalid transition, got %v", err)
	}

	running := testutil.SeedRequest(t, f.store, "u2", "p1", models.RequestStatusInProgress)
	got, err := f.life.Cancel(ctx, "p1", running.ID)
	if err != nil || got.Status != models.RequestStatusCancelled {
		t.Fatalf("cancel in progress: %+v err=%v", got, err)
	}
	if n := f.rec.count(models.EventRequestCancelled); n != 1 {
		t.Fatalf("cancellation notifications = %d", n)
	}
	if f.rec.sent[0].userID != "u2" {
		t.Fatalf("notification must go to the requester, got %s", f.rec.sent[0].userID)
	}
}

func TestNotificationFailureDoesNotFailTransition(t *testing.T) {
	s := testutil.NewStore(t)
	failing := notify.SinkFunc(func(context.Context, string, models.EventType, map[string]any) error {
		return errors.New("broker down")
	})
	life := New(s, failing, nil, nil)
	req := testutil.SeedRequest(t, s, "u1", "p1", models.RequestStatusPending)
	got, err := life.Accept(context.Background(), "p1", req.ID)
	if err != nil || got.Status != models.RequestStatusScheduled {
		t.Fatalf("accept must succeed despite sink failure: %+v err=%v", got, err)
	}
}

func TestComplete_CascadesToMission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := testutil.SeedRequest(t, f.store, "u1", "p1", models.RequestStatusInProgress)
	m := testutil.SeedMission(t, f.store, req, testutil.SeedDrone(t, f.store, "p1", "", "pilot-1"), "pilot-1")
	if ok, err := f.store.Missions.MarkStarted(ctx, m.ID, time.Now()); err != nil || !ok {
		t.Fatalf("start mission: ok=%v err=%v", ok, err)
	}

	got, err := f.life.Complete(ctx, "p1", req.ID)
	if err != nil || got.Status != models.RequestStatusCompleted {
		t.Fatalf("complete: %+v err=%v", got, err)
	}
	mission, _ := f.store.Missions.GetByID(ctx, m.ID)
	if mission.Status != models.MissionStatusCompleted || mission.CompletedAt == nil {
		t.Fatalf("mission not completed: %+v", mission)
	}
	if f.rec.count(models.EventRequestAccepted)+f.rec.count(models.EventRequestCancelled) != 0 {
		t.Fatalf("complete must not notify")
	}

	if _, err := f.life.Complete(ctx, "p1", req.ID); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("second complete: want invalid transition, got %v", err)
	}
	scheduled := testutil.SeedRequest(t, f.store, "u1", "p1", models.RequestStatusScheduled)
	if _, err := f.life.Complete(ctx, "p1", scheduled.ID); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("complete scheduled: want invalid transition, got %v", err)
	}
}

func TestListAndDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedRequest(t, f.store, "u1", "p1", models.RequestStatusPending)
	testutil.SeedRequest(t, f.store, "u1", "p1", models.RequestStatusPending)
	done := testutil.SeedRequest(t, f.store, "u1", "p1", models.RequestStatusInProgress)
	testutil.SeedRequest(t, f.store, "u2", "p1", models.RequestStatusPending)
	testutil.SeedMission(t, f.store, done, testutil.SeedDrone(t, f.store, "p1", "", "pilot-1"), "pilot-1")

	page, err := f.life.ListByUser(ctx, "u1", nil, 0, 2, []string{"status"})
	if err != nil || page.Total != 3 || len(page.Items) != 2 {
		t.Fatalf("list: %+v err=%v", page, err)
	}
	if _, ok := page.Items[0]["status"]; !ok || len(page.Items[0]) != 2 {
		t.Fatalf("projection must hold id and status only: %+v", page.Items[0])
	}
	pending := models.RequestStatusPending
	page, err = f.life.ListByUser(ctx, "u1", &pending, 0, 10, nil)
	if err != nil || page.Total != 2 {
		t.Fatalf("list pending: %+v err=%v", page, err)
	}
	bogus := models.RequestStatus("lost")
	if _, err := f.life.ListByUser(ctx, "u1", &bogus, 0, 10, nil); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("unknown status: want validation, got %v", err)
	}

	d, err := f.life.Dashboard(ctx, "p1")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.PendingRequestCount != 3 || d.ScheduledMissionCount != 1 || d.DroneCount != 1 {
		t.Fatalf("dashboard: %+v", d)
	}

	if _, err := f.life.Get(ctx, "u2", "", done.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("foreign user must not see request: %v", err)
	}
	if got, err := f.life.Get(ctx, "someone", "p1", done.ID); err != nil || got.ID != done.ID {
		t.Fatalf("provider must see own request: %+v err=%v", got, err)
	}
}
