// Package sim simulates onboard flight-control endpoints. Each drone lives under
// its own path prefix, so one server can stand in for a whole fleet.
package sim

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"droneDispatch/internal/dronelink"
)

type drone struct {
	position  dronelink.Position
	waypoints []dronelink.Waypoint
	down      bool
	delay     time.Duration
}

// Simulator holds the state of every simulated drone.
type Simulator struct {
	mu     sync.Mutex
	drones map[string]*drone
}

func New() *Simulator {
	return &Simulator{drones: make(map[string]*drone)}
}

// Router serves /{droneID}/ping, /{droneID}/mission and /{droneID}/position.
func (s *Simulator) Router() http.Handler {
	r := chi.NewRouter()
	r.Route("/{droneID}", func(r chi.Router) {
		r.Use(s.availability)
		r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.Get("/position", s.getPosition)
		r.Get("/mission", s.getMission)
		r.Post("/mission", s.postMission)
	})
	return r
}

// SetPosition sets what the drone reports from /position.
func (s *Simulator) SetPosition(droneID string, p dronelink.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(droneID).position = p
}

// SetDown makes every call for the drone answer 503.
func (s *Simulator) SetDown(droneID string, down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(droneID).down = down
}

// SetDelay holds every response for the drone by d.
func (s *Simulator) SetDelay(droneID string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(droneID).delay = d
}

// Waypoints returns the mission last uploaded to the drone.
func (s *Simulator) Waypoints(droneID string) []dronelink.Waypoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dronelink.Waypoint(nil), s.get(droneID).waypoints...)
}

// get must be called with mu held.
func (s *Simulator) get(id string) *drone {
	d, ok := s.drones[id]
	if !ok {
		d = &drone{waypoints: []dronelink.Waypoint{}}
		s.drones[id] = d
	}
	return d
}

func (s *Simulator) availability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		d := s.get(chi.URLParam(r, "droneID"))
		down, delay := d.down, d.delay
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if down {
			http.Error(w, "flight controller offline", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Simulator) getPosition(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	p := s.get(chi.URLParam(r, "droneID")).position
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, p)
}

func (s *Simulator) getMission(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"waypoints": s.Waypoints(chi.URLParam(r, "droneID"))})
}

func (s *Simulator) postMission(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Waypoints []dronelink.Waypoint `json:"waypoints"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid mission body", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.get(chi.URLParam(r, "droneID")).waypoints = body.Waypoints
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]int{"count": len(body.Waypoints)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
