package grpcserver

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"droneDispatch/internal/auth"
	"droneDispatch/internal/telemetry"
	"droneDispatch/models"
)

type missionRef struct {
	MissionID string `json:"missionId"`
}

func (s *Server) getMission(ctx context.Context, in *structpb.Struct) (any, error) {
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	var args missionRef
	if err := decode(in, &args); err != nil {
		return nil, err
	}
	return s.Missions.Get(ctx, p.UserID, providerOf(p), args.MissionID)
}

func (s *Server) estimateMission(ctx context.Context, in *structpb.Struct) (any, error) {
	p, err := auth.RequireProvider(ctx)
	if err != nil {
		return nil, err
	}
	var args struct {
		missionRef
		models.Estimation
	}
	if err := decode(in, &args); err != nil {
		return nil, err
	}
	return s.Missions.Estimate(ctx, p.ProviderID, args.MissionID, args.Estimation)
}

func (s *Server) updateMissionPlan(ctx context.Context, in *structpb.Struct) (any, error) {
	p, err := auth.RequireProvider(ctx)
	if err != nil {
		return nil, err
	}
	var args struct {
		missionRef
		Name                string               `json:"name"`
		PlannedHomePosition *models.MissionItem  `json:"plannedHomePosition"`
		MissionItems        []models.MissionItem `json:"missionItems"`
	}
	if err := decode(in, &args); err != nil {
		return nil, err
	}
	return s.Missions.UpdatePlan(ctx, p.ProviderID, args.MissionID, args.Name, args.PlannedHomePosition, args.MissionItems)
}

func (s *Server) submitChecklist(ctx context.Context, in *structpb.Struct) (any, error) {
	p, err := auth.RequirePilot(ctx)
	if err != nil {
		return nil, err
	}
	var args struct {
		missionRef
		Answers   []models.ChecklistAnswer `json:"answers"`
		Completed bool                     `json:"completed"`
	}
	if err := decode(in, &args); err != nil {
		return nil, err
	}
	return s.Missions.SubmitChecklist(ctx, p.UserID, args.MissionID, args.Answers, args.Completed)
}

func (s *Server) recordTelemetry(ctx context.Context, in *structpb.Struct) (any, error) {
	p, err := auth.RequirePilot(ctx)
	if err != nil {
		return nil, err
	}
	var args struct {
		missionRef
		StartedAt    time.Time                 `json:"startedAt"`
		CompletedAt  time.Time                 `json:"completedAt"`
		Distance     float64                   `json:"distance"`
		AverageSpeed float64                   `json:"averageSpeed"`
		MaxSpeed     float64                   `json:"maxSpeed"`
		MinSpeed     float64                   `json:"minSpeed"`
		Latest       *models.TelemetrySnapshot `json:"latest"`
		Gallery      []models.MediaRef         `json:"gallery"`
	}
	if err := decode(in, &args); err != nil {
		return nil, err
	}
	return s.Missions.RecordTelemetry(ctx, p.UserID, args.MissionID, telemetry.Report{
		StartedAt:    args.StartedAt,
		CompletedAt:  args.CompletedAt,
		Distance:     args.Distance,
		AverageSpeed: args.AverageSpeed,
		MaxSpeed:     args.MaxSpeed,
		MinSpeed:     args.MinSpeed,
		Latest:       args.Latest,
		Gallery:      args.Gallery,
	})
}

func (s *Server) dispatchMission(ctx context.Context, in *structpb.Struct) (any, error) {
	p, err := auth.RequirePilot(ctx)
	if err != nil {
		return nil, err
	}
	var args missionRef
	if err := decode(in, &args); err != nil {
		return nil, err
	}
	return s.Missions.DispatchToDrone(ctx, p.UserID, args.MissionID)
}

func (s *Server) checkDroneStatus(ctx context.Context, in *structpb.Struct) (any, error) {
	p, err := auth.RequirePilot(ctx)
	if err != nil {
		return nil, err
	}
	var args missionRef
	if err := decode(in, &args); err != nil {
		return nil, err
	}
	return s.Missions.CheckDroneStatus(ctx, p.UserID, args.MissionID)
}

func (s *Server) downloadMission(ctx context.Context, in *structpb.Struct) (any, error) {
	p, err := auth.RequireRole(ctx, models.RoleProvider, models.RolePilot)
	if err != nil {
		return nil, err
	}
	var args missionRef
	if err := decode(in, &args); err != nil {
		return nil, err
	}
	file, name, err := s.Missions.Download(ctx, p.UserID, providerOf(p), args.MissionID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"name": name, "file": file}, nil
}
