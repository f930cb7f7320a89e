// Package airspace answers which no-fly zones restrict a point or area, and manages
// the zones themselves.
package airspace

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"droneDispatch/internal/apperr"
	"droneDispatch/internal/geo"
	"droneDispatch/internal/tracing"
	"droneDispatch/models"
	"droneDispatch/repository"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Criteria selects zones. Nil filters are not applied.
type Criteria struct {
	MissionID   *string
	IsActive    *bool
	IsPermanent *bool
	// Geometry keeps only zones intersecting it.
	Geometry *models.Geometry
	// MatchTime keeps permanent zones and temporary zones in effect now.
	MatchTime bool
	// ExcludeDroneID drops zones originated by that drone.
	ExcludeDroneID string
	Offset         int
	Limit          int
	Fields         []string
}

// Searcher is the read side used by the fleet position path.
type Searcher interface {
	Search(ctx context.Context, c Criteria) (models.Page, error)
}

// Index serves airspace queries and zone maintenance.
type Index struct {
	zones    repository.NoFlyZoneRepositoryI
	missions repository.MissionRepositoryI
	log      *zap.Logger
	now      func() time.Time
}

func New(zones repository.NoFlyZoneRepositoryI, missions repository.MissionRepositoryI, log *zap.Logger) *Index {
	if log == nil {
		log = zap.NewNop()
	}
	return &Index{zones: zones, missions: missions, log: log, now: time.Now}
}

// Search returns the total number of matching zones and one projected page of them,
// newest first.
func (x *Index) Search(ctx context.Context, c Criteria) (page models.Page, err error) {
	ctx, span := tracing.Start(ctx, "airspace.Search",
		attribute.Bool("match_time", c.MatchTime),
		attribute.Bool("spatial", c.Geometry != nil))
	defer func() { tracing.End(span, err) }()

	if c.Geometry != nil {
		if err := c.Geometry.Validate(); err != nil {
			return models.Page{}, apperr.Validation("query geometry: %v", err)
		}
	}
	offset, limit := bounds(c.Offset, c.Limit)
	f := repository.ZoneFilter{
		MissionID:    c.MissionID,
		IsActive:     c.IsActive,
		IsPermanent:  c.IsPermanent,
		ExcludeDrone: c.ExcludeDroneID,
	}
	if c.MatchTime {
		now := x.now()
		f.InEffectAt = &now
	}

	var zones []models.NoFlyZone
	var total int
	if c.Geometry == nil {
		if total, err = x.zones.Count(ctx, f); err != nil {
			return models.Page{}, apperr.Wrap(err, "count zones")
		}
		if zones, err = x.zones.Search(ctx, f, offset, limit); err != nil {
			return models.Page{}, apperr.Wrap(err, "search zones")
		}
	} else {
		box := c.Geometry.Bounds()
		f.Box = &box
		candidates, err := x.zones.Search(ctx, f, 0, 0)
		if err != nil {
			return models.Page{}, apperr.Wrap(err, "search zones")
		}
		matched := candidates[:0]
		for _, z := range candidates {
			if geo.Intersects(&z.Location, c.Geometry) {
				matched = append(matched, z)
			}
		}
		total = len(matched)
		zones = window(matched, offset, limit)
	}

	items, err := models.ProjectAll(zones, c.Fields)
	if err != nil {
		return models.Page{}, apperr.Wrap(err, "project zones")
	}
	return models.Page{Total: total, Items: items}, nil
}

func bounds(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return offset, limit
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// ZoneInput describes a zone to create, or the fields to change on update. Nil
// fields are left untouched on update.
type ZoneInput struct {
	Location    *models.Geometry
	Circle      *models.Circle
	Description *string
	StartTime   *time.Time
	EndTime     *time.Time
	Style       map[string]any
	IsActive    *bool
	IsPermanent *bool
	MissionID   *string
	DroneID     *string
}

// Create validates and stores a new zone. A zone given only as a circle is stored
// with an approximating polygon.
func (x *Index) Create(ctx context.Context, in ZoneInput) (*models.NoFlyZone, error) {
	z := &models.NoFlyZone{ID: uuid.NewString(), IsActive: true}
	if err := x.apply(ctx, z, in); err != nil {
		return nil, err
	}
	if err := x.zones.Create(ctx, z); err != nil {
		return nil, apperr.Wrap(err, "create zone")
	}
	x.log.Info("no-fly zone created", zap.String("zone_id", z.ID), zap.Bool("permanent", z.IsPermanent))
	return z, nil
}

// Update merges in into the stored zone and re-validates it.
func (x *Index) Update(ctx context.Context, id string, in ZoneInput) (*models.NoFlyZone, error) {
	z, err := x.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := x.apply(ctx, z, in); err != nil {
		return nil, err
	}
	ok, err := x.zones.Update(ctx, z)
	if err != nil {
		return nil, apperr.Wrap(err, "update zone")
	}
	if !ok {
		return nil, apperr.NotFound("no-fly zone %s not found", id)
	}
	return z, nil
}

// Remove deletes a zone.
func (x *Index) Remove(ctx context.Context, id string) error {
	ok, err := x.zones.Delete(ctx, id)
	if err != nil {
		return apperr.Wrap(err, "remove zone")
	}
	if !ok {
		return apperr.NotFound("no-fly zone %s not found", id)
	}
	return nil
}

func (x *Index) Get(ctx context.Context, id string) (*models.NoFlyZone, error) {
	z, err := x.zones.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(err, "get zone")
	}
	if z == nil {
		return nil, apperr.NotFound("no-fly zone %s not found", id)
	}
	return z, nil
}

func (x *Index) apply(ctx context.Context, z *models.NoFlyZone, in ZoneInput) error {
	if in.MissionID != nil {
		m, err := x.missions.GetByID(ctx, *in.MissionID)
		if err != nil {
			return apperr.Wrap(err, "get mission")
		}
		if m == nil {
			return apperr.NotFound("mission %s not found", *in.MissionID)
		}
		z.MissionID = in.MissionID
	}
	if in.Circle != nil {
		if !in.Circle.Center.Valid() || in.Circle.Radius <= 0 {
			return apperr.Validation("circle needs a valid center and a positive radius")
		}
		z.Circle = in.Circle
		if in.Location == nil {
			z.Location = *geo.CirclePolygon(*in.Circle)
		}
	}
	if in.Location != nil {
		z.Location = *in.Location
	}
	if err := z.Location.Validate(); err != nil {
		return apperr.Validation("zone geometry: %v", err)
	}
	if in.Description != nil {
		z.Description = *in.Description
	}
	if in.Style != nil {
		z.Style = in.Style
	}
	if in.IsActive != nil {
		z.IsActive = *in.IsActive
	}
	if in.IsPermanent != nil {
		z.IsPermanent = *in.IsPermanent
	}
	if in.DroneID != nil {
		z.DroneID = in.DroneID
	}
	if in.StartTime != nil {
		z.StartTime = in.StartTime
	}
	if in.EndTime != nil {
		z.EndTime = in.EndTime
	}

	if z.IsPermanent {
		z.StartTime, z.EndTime = nil, nil
		return nil
	}
	if z.StartTime == nil || z.EndTime == nil {
		return apperr.Validation("temporary zone needs start and end time")
	}
	if z.StartTime.After(*z.EndTime) {
		return apperr.Validation("zone start time %s is after end time %s",
			z.StartTime.Format(time.RFC3339), z.EndTime.Format(time.RFC3339))
	}
	return nil
}
