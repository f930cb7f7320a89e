package dronelink_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"droneDispatch/internal/apperr"
	"droneDispatch/internal/dronelink"
	"droneDispatch/internal/dronelink/sim"
	"droneDispatch/internal/metrics"
)

func newSim(t *testing.T) (*sim.Simulator, *httptest.Server) {
	t.Helper()
	s := sim.New()
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return s, srv
}

func TestClient_MissionRoundTrip(t *testing.T) {
	s, srv := newSim(t)
	m := metrics.NewMetricsRegistry()
	c := dronelink.NewClient(time.Second, time.Minute, m, nil)
	ctx := context.Background()
	endpoint := srv.URL + "/d1"

	if err := c.Ping(ctx, endpoint); err != nil {
		t.Fatalf("ping: %v", err)
	}
	wps := []dronelink.Waypoint{
		{Seq: 0, Command: 16, Frame: 3, Current: true, AutoContinue: true, Lat: 1, Lng: 2, Alt: 30},
		{Seq: 1, Command: 21, Frame: 3, AutoContinue: true, Lat: 1.1, Lng: 2.1},
	}
	if err := c.PostWaypoints(ctx, endpoint, wps); err != nil {
		t.Fatalf("post: %v", err)
	}
	if got := s.Waypoints("d1"); len(got) != 2 || got[1].Command != 21 {
		t.Fatalf("simulator did not receive the mission: %+v", got)
	}
	loaded, err := c.LoadedWaypoints(ctx, endpoint)
	if err != nil || len(loaded) != 2 || !loaded[0].Current || loaded[0].Alt != 30 {
		t.Fatalf("loaded: %+v err=%v", loaded, err)
	}

	s.SetPosition("d1", dronelink.Position{Lat: 5, Lng: 6, Speed: 12})
	pos, err := c.CurrentPosition(ctx, endpoint)
	if err != nil || pos.Lat != 5 || pos.Speed != 12 {
		t.Fatalf("position: %+v err=%v", pos, err)
	}
	if n := promtest.ToFloat64(m.DroneLinkCallsTotal.WithLabelValues("post_waypoints", metrics.OutcomeOK)); n != 1 {
		t.Fatalf("post_waypoints ok counter = %v", n)
	}
}

func TestClient_PingIsCached(t *testing.T) {
	s, srv := newSim(t)
	m := metrics.NewMetricsRegistry()
	c := dronelink.NewClient(time.Second, time.Minute, m, nil)
	ctx := context.Background()

	if err := c.Ping(ctx, srv.URL+"/d1"); err != nil {
		t.Fatalf("first ping: %v", err)
	}
	s.SetDown("d1", true)
	if err := c.Ping(ctx, srv.URL+"/d1"); err != nil {
		t.Fatalf("cached ping must not hit the drone: %v", err)
	}
	if err := c.PostWaypoints(ctx, srv.URL+"/d1", nil); !errors.Is(err, apperr.ErrUnavailable) {
		t.Fatalf("upload to a drone that dropped off: want unavailable, got %v", err)
	}
	if n := promtest.ToFloat64(m.DroneLinkCallsTotal.WithLabelValues("ping", metrics.OutcomeOK)); n != 1 {
		t.Fatalf("ping calls = %v", n)
	}
}

func TestClient_Unavailable(t *testing.T) {
	s, srv := newSim(t)
	s.SetDown("d1", true)
	c := dronelink.NewClient(time.Second, time.Minute, nil, nil)
	err := c.Ping(context.Background(), srv.URL+"/d1")
	if !errors.Is(err, apperr.ErrUnavailable) || !apperr.Retryable(err) {
		t.Fatalf("want retryable unavailable, got %v", err)
	}

	srv.Close()
	if _, err := c.CurrentPosition(context.Background(), srv.URL+"/d2"); !errors.Is(err, apperr.ErrUnavailable) {
		t.Fatalf("closed endpoint: want unavailable, got %v", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	s, srv := newSim(t)
	s.SetDelay("d1", 500*time.Millisecond)
	c := dronelink.NewClient(50*time.Millisecond, time.Minute, nil, nil)
	err := c.PostWaypoints(context.Background(), srv.URL+"/d1", nil)
	if !errors.Is(err, apperr.ErrTimeout) || !apperr.Retryable(err) {
		t.Fatalf("want retryable timeout, got %v", err)
	}
}
