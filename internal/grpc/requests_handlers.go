package grpcserver

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"droneDispatch/internal/auth"
	"droneDispatch/internal/requests"
	"droneDispatch/models"
)

type requestRef struct {
	RequestID string `json:"requestId"`
}

type pageArgs struct {
	Offset int      `json:"offset"`
	Limit  int      `json:"limit"`
	Fields []string `json:"fields"`
}

func (s *Server) createRequest(ctx context.Context, in *structpb.Struct) (any, error) {
	p, err := auth.RequireRole(ctx, models.RoleConsumer)
	if err != nil {
		return nil, err
	}
	var args struct {
		PackageID        string             `json:"packageId"`
		ContactInfo      models.ContactInfo `json:"contactInfo"`
		StartPoint       models.Address     `json:"startPoint"`
		DestinationPoint models.Address     `json:"destinationPoint"`
		LaunchDate       *time.Time         `json:"launchDate"`
		Weight           float64            `json:"weight"`
		Payout           float64            `json:"payout"`
		Notes            string             `json:"notes"`
	}
	if err := decode(in, &args); err != nil {
		return nil, err
	}
	return s.Requests.Create(ctx, requests.CreateInput{
		UserID:           p.UserID,
		PackageID:        args.PackageID,
		ContactInfo:      args.ContactInfo,
		StartPoint:       args.StartPoint,
		DestinationPoint: args.DestinationPoint,
		LaunchDate:       args.LaunchDate,
		Weight:           args.Weight,
		Payout:           args.Payout,
		Notes:            args.Notes,
	})
}

func (s *Server) getRequest(ctx context.Context, in *structpb.Struct) (any, error) {
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	var args requestRef
	if err := decode(in, &args); err != nil {
		return nil, err
	}
	return s.Requests.Get(ctx, p.UserID, providerOf(p), args.RequestID)
}

func (s *Server) listRequests(ctx context.Context, in *structpb.Struct) (any, error) {
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	var args struct {
		pageArgs
		Status *models.RequestStatus `json:"status"`
	}
	if err := decode(in, &args); err != nil {
		return nil, err
	}
	return s.Requests.ListByUser(ctx, p.UserID, args.Status, args.Offset, args.Limit, args.Fields)
}

type transitionFunc func(l *requests.Lifecycle, ctx context.Context, providerID, id string) (*models.Request, error)

func (s *Server) transition(ctx context.Context, in *structpb.Struct, fn transitionFunc) (any, error) {
	p, err := auth.RequireProvider(ctx)
	if err != nil {
		return nil, err
	}
	var args requestRef
	if err := decode(in, &args); err != nil {
		return nil, err
	}
	return fn(s.Requests, ctx, p.ProviderID, args.RequestID)
}

func (s *Server) acceptRequest(ctx context.Context, in *structpb.Struct) (any, error) {
	return s.transition(ctx, in, (*requests.Lifecycle).Accept)
}

func (s *Server) rejectRequest(ctx context.Context, in *structpb.Struct) (any, error) {
	return s.transition(ctx, in, (*requests.Lifecycle).Reject)
}

func (s *Server) cancelRequest(ctx context.Context, in *structpb.Struct) (any, error) {
	return s.transition(ctx, in, (*requests.Lifecycle).Cancel)
}

func (s *Server) completeRequest(ctx context.Context, in *structpb.Struct) (any, error) {
	return s.transition(ctx, in, (*requests.Lifecycle).Complete)
}

func (s *Server) assignDrone(ctx context.Context, in *structpb.Struct) (any, error) {
	p, err := auth.RequireProvider(ctx)
	if err != nil {
		return nil, err
	}
	var args struct {
		requestRef
		DroneID             string     `json:"droneId"`
		ScheduledLaunch     *time.Time `json:"scheduledLaunch"`
		SpecialRequirements []string   `json:"specialRequirements"`
		Notes               string     `json:"notes"`
	}
	if err := decode(in, &args); err != nil {
		return nil, err
	}
	return s.Requests.AssignDrone(ctx, p.ProviderID, args.RequestID, requests.AssignInput{
		DroneID:             args.DroneID,
		ScheduledLaunch:     args.ScheduledLaunch,
		SpecialRequirements: args.SpecialRequirements,
		Notes:               args.Notes,
	})
}

func (s *Server) providerDashboard(ctx context.Context, _ *structpb.Struct) (any, error) {
	p, err := auth.RequireProvider(ctx)
	if err != nil {
		return nil, err
	}
	return s.Requests.Dashboard(ctx, p.ProviderID)
}

// providerOf returns the provider a principal acts for when it manages that
// provider's requests and missions.
func providerOf(p *auth.Principal) string {
	if p.Role == models.RoleProvider {
		return p.ProviderID
	}
	return ""
}
