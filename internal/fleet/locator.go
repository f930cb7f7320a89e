// Package fleet owns the drone position path: current location, position history,
// nearby-drone lookups and the stale-drone sweeper.
package fleet

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"droneDispatch/internal/airspace"
	"droneDispatch/internal/apperr"
	"droneDispatch/internal/geo"
	"droneDispatch/internal/livefeed"
	"droneDispatch/internal/metrics"
	"droneDispatch/internal/tracing"
	"droneDispatch/models"
	"droneDispatch/repository"
)

const DefaultNearDronesLimit = 1

// Publisher receives every accepted position update.
type Publisher interface {
	Publish(kind string, v any)
}

// Options selects the optional work done alongside a position update. Each query
// runs only when requested.
type Options struct {
	ReturnAirspace bool
	AirspaceFields []string
	AirspaceLimit  int

	// NearDronesMaxDistance in meters; zero skips the nearby-drone query.
	NearDronesMaxDistance float64
	NearDronesLimit       int
	NearDroneFields       []string
}

// Update is the outcome of one position report.
type Update struct {
	DroneID    string              `json:"droneId"`
	Location   models.Point        `json:"location"`
	Seq        int64               `json:"seq"`
	RecordedAt time.Time           `json:"recordedAt"`
	Airspace   *models.Page        `json:"airspace,omitempty"`
	NearDrones []models.Projection `json:"nearDrones,omitempty"`
}

type Locator struct {
	store    *repository.Store
	airspace airspace.Searcher
	feed     Publisher
	metrics  *metrics.MetricsRegistry
	log      *zap.Logger
	now      func() time.Time
}

// NewLocator builds a Locator. feed and m may be nil.
func NewLocator(store *repository.Store, zones airspace.Searcher, feed Publisher, m *metrics.MetricsRegistry, log *zap.Logger) *Locator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Locator{store: store, airspace: zones, feed: feed, metrics: m, log: log, now: time.Now}
}

// UpdateLocation stores the drone's new position and history record, then answers
// the requested airspace and nearby-drone queries concurrently.
func (l *Locator) UpdateLocation(ctx context.Context, droneID string, lat, lng float64, opts Options) (out *Update, err error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "fleet.UpdateLocation", attribute.String("drone_id", droneID))
	defer func() {
		tracing.End(span, err)
		l.observe(start, err)
	}()

	p := models.Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		return nil, apperr.Validation("position %v out of range", p)
	}
	if opts.NearDronesMaxDistance < 0 {
		return nil, apperr.Validation("nearDronesMaxDistance must not be negative")
	}

	at := l.now().UTC()
	out = &Update{DroneID: droneID, Location: p, RecordedAt: at}
	err = l.store.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := l.store.Drones.UpdateLocation(ctx, droneID, p, at)
		if err != nil {
			return apperr.Wrap(err, "update drone location")
		}
		if !ok {
			return apperr.NotFound("drone %s not found", droneID)
		}
		out.Seq, err = l.store.Drones.AppendPosition(ctx, droneID, p, at)
		if err != nil {
			return apperr.Wrap(err, "append position")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	if opts.ReturnAirspace {
		g.Go(func() error {
			page, err := l.airspace.Search(gctx, airspace.Criteria{
				Geometry:       models.NewPointGeometry(lat, lng),
				MatchTime:      true,
				ExcludeDroneID: droneID,
				Limit:          opts.AirspaceLimit,
				Fields:         opts.AirspaceFields,
			})
			if err != nil {
				return err
			}
			out.Airspace = &page
			return nil
		})
	}
	if opts.NearDronesMaxDistance > 0 {
		g.Go(func() error {
			near, err := l.nearDrones(gctx, droneID, p, opts)
			if err != nil {
				return err
			}
			out.NearDrones = near
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if l.feed != nil {
		l.feed.Publish(livefeed.KindDronePosition, models.DronePosition{
			Seq: out.Seq, DroneID: droneID, Lat: lat, Lng: lng, RecordedAt: at,
		})
	}
	return out, nil
}

func (l *Locator) nearDrones(ctx context.Context, droneID string, p models.Point, opts Options) ([]models.Projection, error) {
	dLat, dLng := geo.DegreeSpan(p, opts.NearDronesMaxDistance)
	box := models.BBox{MinLat: p.Lat - dLat, MaxLat: p.Lat + dLat, MinLng: p.Lng - dLng, MaxLng: p.Lng + dLng}
	candidates, err := l.store.Drones.FindInBox(ctx, box, droneID)
	if err != nil {
		return nil, apperr.Wrap(err, "find drones in box")
	}

	near := make([]models.NearbyDrone, 0, len(candidates))
	for _, d := range candidates {
		dist := geo.Distance(p, d.Location)
		if dist <= opts.NearDronesMaxDistance {
			near = append(near, models.NearbyDrone{Drone: d, Distance: dist})
		}
	}
	sort.Slice(near, func(i, j int) bool { return near[i].Distance < near[j].Distance })

	limit := opts.NearDronesLimit
	if limit <= 0 {
		limit = DefaultNearDronesLimit
	}
	if len(near) > limit {
		near = near[:limit]
	}
	fields := opts.NearDroneFields
	if len(fields) > 0 {
		fields = append(append([]string{}, fields...), "distance")
	}
	items, err := models.ProjectAll(near, fields)
	if err != nil {
		return nil, apperr.Wrap(err, "project drones")
	}
	return items, nil
}

func (l *Locator) observe(start time.Time, err error) {
	if l.metrics == nil {
		return
	}
	l.metrics.LocationUpdateDuration.Observe(time.Since(start).Seconds())
	l.metrics.LocationUpdatesTotal.WithLabelValues(metrics.OutcomeOf(err)).Inc()
}

// Positions returns one page of a drone's position history, newest first.
func (l *Locator) Positions(ctx context.Context, droneID string, offset, limit int) (models.Page, error) {
	d, err := l.store.Drones.GetByID(ctx, droneID)
	if err != nil {
		return models.Page{}, apperr.Wrap(err, "get drone")
	}
	if d == nil {
		return models.Page{}, apperr.NotFound("drone %s not found", droneID)
	}
	rows, total, err := l.store.Drones.ListPositions(ctx, droneID, offset, limit)
	if err != nil {
		return models.Page{}, apperr.Wrap(err, "list positions")
	}
	items, err := models.ProjectAll(rows, nil)
	if err != nil {
		return models.Page{}, apperr.Wrap(err, "project positions")
	}
	return models.Page{Total: total, Items: items}, nil
}
