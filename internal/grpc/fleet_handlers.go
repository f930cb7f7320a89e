package grpcserver

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"droneDispatch/internal/apperr"
	"droneDispatch/internal/auth"
	"droneDispatch/internal/fleet"
	"droneDispatch/models"
)

type droneRef struct {
	DroneID string `json:"droneId"`
}

// requireDroneAccess lets admins reach any drone and provider staff reach their
// own fleet. Drones of other providers look absent.
func (s *Server) requireDroneAccess(ctx context.Context, droneID string) error {
	p, err := auth.RequireRole(ctx, models.RoleProvider, models.RolePilot, models.RoleAdmin)
	if err != nil {
		return err
	}
	if p.Role == models.RoleAdmin {
		return nil
	}
	d, err := s.Store.Drones.GetByID(ctx, droneID)
	if err != nil {
		return err
	}
	if d == nil || d.ProviderID != p.ProviderID {
		return apperr.NotFound("drone %s not found", droneID)
	}
	return nil
}

func (s *Server) updateDroneLocation(ctx context.Context, in *structpb.Struct) (any, error) {
	var args struct {
		droneRef
		Lat                   float64  `json:"lat"`
		Lng                   float64  `json:"lng"`
		ReturnAirspace        bool     `json:"returnAirspace"`
		AirspaceFields        []string `json:"airspaceFields"`
		AirspaceLimit         int      `json:"airspaceLimit"`
		NearDronesMaxDistance float64  `json:"nearDronesMaxDistance"`
		NearDronesLimit       int      `json:"nearDronesLimit"`
		NearDroneFields       []string `json:"nearDroneFields"`
	}
	if err := decode(in, &args); err != nil {
		return nil, err
	}
	if err := s.requireDroneAccess(ctx, args.DroneID); err != nil {
		return nil, err
	}
	return s.Fleet.UpdateLocation(ctx, args.DroneID, args.Lat, args.Lng, fleet.Options{
		ReturnAirspace:        args.ReturnAirspace,
		AirspaceFields:        args.AirspaceFields,
		AirspaceLimit:         args.AirspaceLimit,
		NearDronesMaxDistance: args.NearDronesMaxDistance,
		NearDronesLimit:       args.NearDronesLimit,
		NearDroneFields:       args.NearDroneFields,
	})
}

func (s *Server) getDronePositions(ctx context.Context, in *structpb.Struct) (any, error) {
	var args struct {
		droneRef
		pageArgs
	}
	if err := decode(in, &args); err != nil {
		return nil, err
	}
	if err := s.requireDroneAccess(ctx, args.DroneID); err != nil {
		return nil, err
	}
	return s.Fleet.Positions(ctx, args.DroneID, args.Offset, args.Limit)
}
