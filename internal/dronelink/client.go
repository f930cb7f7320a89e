// Package dronelink talks to a drone's onboard flight-control endpoint over HTTP.
package dronelink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"droneDispatch/internal/apperr"
	"droneDispatch/internal/metrics"
)

// Waypoint is one MAVLink mission item as the onboard endpoint expects it.
type Waypoint struct {
	Seq          int     `json:"seq"`
	Frame        int     `json:"frame"`
	Command      int     `json:"command"`
	Current      bool    `json:"current"`
	AutoContinue bool    `json:"autoContinue"`
	Param1       float64 `json:"param1"`
	Param2       float64 `json:"param2"`
	Param3       float64 `json:"param3"`
	Param4       float64 `json:"param4"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Alt          float64 `json:"alt"`
}

// Position is the drone's self-reported state.
type Position struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Alt     float64 `json:"alt"`
	Speed   float64 `json:"speed"`
	Heading float64 `json:"heading"`
}

type waypointsBody struct {
	Waypoints []Waypoint `json:"waypoints"`
}

// Client implements the drone link. Successful pings are remembered for the ping TTL;
// nothing else is cached. A drone that drops off within that window still pings as
// reachable, and the next upload or read reports it Unavailable.
type Client struct {
	http    *http.Client
	pings   *cache.Cache
	metrics *metrics.MetricsRegistry
	log     *zap.Logger
}

func NewClient(timeout, pingTTL time.Duration, m *metrics.MetricsRegistry, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		pings:   cache.New(pingTTL, 2*pingTTL),
		metrics: m,
		log:     log,
	}
}

// Ping checks that the endpoint answers.
func (c *Client) Ping(ctx context.Context, endpoint string) error {
	if _, ok := c.pings.Get(endpoint); ok {
		return nil
	}
	if err := c.do(ctx, "ping", http.MethodGet, endpoint, "/ping", nil, nil); err != nil {
		return err
	}
	c.pings.SetDefault(endpoint, struct{}{})
	return nil
}

// PostWaypoints uploads a mission to the drone.
func (c *Client) PostWaypoints(ctx context.Context, endpoint string, wps []Waypoint) error {
	if wps == nil {
		wps = []Waypoint{}
	}
	return c.do(ctx, "post_waypoints", http.MethodPost, endpoint, "/mission", waypointsBody{Waypoints: wps}, nil)
}

// LoadedWaypoints returns the mission currently loaded on the drone.
func (c *Client) LoadedWaypoints(ctx context.Context, endpoint string) ([]Waypoint, error) {
	var body waypointsBody
	if err := c.do(ctx, "get_waypoints", http.MethodGet, endpoint, "/mission", nil, &body); err != nil {
		return nil, err
	}
	return body.Waypoints, nil
}

// CurrentPosition returns the drone's reported position.
func (c *Client) CurrentPosition(ctx context.Context, endpoint string) (*Position, error) {
	var p Position
	if err := c.do(ctx, "get_position", http.MethodGet, endpoint, "/position", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) do(ctx context.Context, op, method, endpoint, path string, payload, result any) (err error) {
	defer func() { c.record(op, err) }()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	url := strings.TrimRight(endpoint, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return apperr.Validation("drone endpoint %q: %v", endpoint, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classify(err, op, url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.Unavailable(nil, "drone %s %s: status %d: %s", op, url, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if result == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return apperr.Unavailable(err, "drone %s %s: decode response", op, url)
	}
	return nil
}

func classify(err error, op, url string) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return apperr.Timeout(err, "drone %s %s timed out", op, url)
	}
	return apperr.Unavailable(err, "drone %s %s unreachable", op, url)
}

func (c *Client) record(op string, err error) {
	if err != nil {
		c.log.Warn("drone link call failed", zap.String("op", op), zap.Error(err))
	}
	if c.metrics == nil {
		return
	}
	o := metrics.OutcomeOK
	if err != nil {
		o = metrics.OutcomeError
	}
	c.metrics.DroneLinkCallsTotal.WithLabelValues(op, o).Inc()
}
