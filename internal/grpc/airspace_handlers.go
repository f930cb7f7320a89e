package grpcserver

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"droneDispatch/internal/airspace"
	"droneDispatch/internal/auth"
	"droneDispatch/models"
)

type zoneArgs struct {
	Location    *models.Geometry `json:"location"`
	Circle      *models.Circle   `json:"circle"`
	Description *string          `json:"description"`
	StartTime   *time.Time       `json:"startTime"`
	EndTime     *time.Time       `json:"endTime"`
	Style       map[string]any   `json:"style"`
	IsActive    *bool            `json:"isActive"`
	IsPermanent *bool            `json:"isPermanent"`
	MissionID   *string          `json:"mission"`
	DroneID     *string          `json:"drone"`
}

func (a zoneArgs) input() airspace.ZoneInput {
	return airspace.ZoneInput{
		Location:    a.Location,
		Circle:      a.Circle,
		Description: a.Description,
		StartTime:   a.StartTime,
		EndTime:     a.EndTime,
		Style:       a.Style,
		IsActive:    a.IsActive,
		IsPermanent: a.IsPermanent,
		MissionID:   a.MissionID,
		DroneID:     a.DroneID,
	}
}

type zoneRef struct {
	ZoneID string `json:"zoneId"`
}

func (s *Server) searchNoFlyZones(ctx context.Context, in *structpb.Struct) (any, error) {
	if _, err := auth.RequirePrincipal(ctx); err != nil {
		return nil, err
	}
	var args struct {
		pageArgs
		MissionID   *string          `json:"mission"`
		IsActive    *bool            `json:"isActive"`
		IsPermanent *bool            `json:"isPermanent"`
		Geometry    *models.Geometry `json:"geometry"`
		MatchTime   bool             `json:"matchTime"`
	}
	if err := decode(in, &args); err != nil {
		return nil, err
	}
	return s.Airspace.Search(ctx, airspace.Criteria{
		MissionID:   args.MissionID,
		IsActive:    args.IsActive,
		IsPermanent: args.IsPermanent,
		Geometry:    args.Geometry,
		MatchTime:   args.MatchTime,
		Offset:      args.Offset,
		Limit:       args.Limit,
		Fields:      args.Fields,
	})
}

func (s *Server) createNoFlyZone(ctx context.Context, in *structpb.Struct) (any, error) {
	if _, err := auth.RequireZoneManager(ctx, s.Store.Users); err != nil {
		return nil, err
	}
	var args zoneArgs
	if err := decode(in, &args); err != nil {
		return nil, err
	}
	return s.Airspace.Create(ctx, args.input())
}

func (s *Server) updateNoFlyZone(ctx context.Context, in *structpb.Struct) (any, error) {
	if _, err := auth.RequireZoneManager(ctx, s.Store.Users); err != nil {
		return nil, err
	}
	var args struct {
		zoneRef
		zoneArgs
	}
	if err := decode(in, &args); err != nil {
		return nil, err
	}
	return s.Airspace.Update(ctx, args.ZoneID, args.input())
}

func (s *Server) removeNoFlyZone(ctx context.Context, in *structpb.Struct) (any, error) {
	if _, err := auth.RequireZoneManager(ctx, s.Store.Users); err != nil {
		return nil, err
	}
	var args zoneRef
	if err := decode(in, &args); err != nil {
		return nil, err
	}
	if err := s.Airspace.Remove(ctx, args.ZoneID); err != nil {
		return nil, err
	}
	return map[string]any{"removed": args.ZoneID}, nil
}
