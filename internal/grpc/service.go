// Package grpcserver exposes the dispatch operations as the
// dronedispatch.v1.DispatchService gRPC service. Every method takes and returns a
// google.protobuf.Struct whose fields mirror the JSON form of the models.
package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"droneDispatch/internal/airspace"
	"droneDispatch/internal/fleet"
	"droneDispatch/internal/missions"
	"droneDispatch/internal/notify"
	"droneDispatch/internal/requests"
	"droneDispatch/repository"
)

const ServiceName = "dronedispatch.v1.DispatchService"

// FullMethod returns the gRPC method path of name.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// DispatchServiceServer is implemented by Server; it exists so the service
// descriptor can name a handler type.
type DispatchServiceServer interface {
	dispatchService()
}

// Server implements DispatchService on top of the lifecycles.
type Server struct {
	Store    *repository.Store
	Requests *requests.Lifecycle
	Missions *missions.Lifecycle
	Airspace *airspace.Index
	Fleet    *fleet.Locator
	Inbox    *notify.Inbox
}

func (*Server) dispatchService() {}

type handlerFunc func(s *Server, ctx context.Context, in *structpb.Struct) (any, error)

func method(name string, h handlerFunc) grpc.MethodDesc {
	fullMethod := FullMethod(name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			call := func(ctx context.Context, req any) (any, error) {
				out, err := h(srv.(*Server), ctx, req.(*structpb.Struct))
				if err != nil {
					return nil, toStatus(err)
				}
				return encode(out)
			}
			if interceptor == nil {
				return call(ctx, in)
			}
			return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, call)
		},
	}
}

// ServiceDesc describes DispatchService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DispatchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		method("CreateRequest", (*Server).createRequest),
		method("GetRequest", (*Server).getRequest),
		method("ListRequests", (*Server).listRequests),
		method("AcceptRequest", (*Server).acceptRequest),
		method("RejectRequest", (*Server).rejectRequest),
		method("CancelRequest", (*Server).cancelRequest),
		method("CompleteRequest", (*Server).completeRequest),
		method("AssignDrone", (*Server).assignDrone),
		method("ProviderDashboard", (*Server).providerDashboard),

		method("GetMission", (*Server).getMission),
		method("EstimateMission", (*Server).estimateMission),
		method("UpdateMissionPlan", (*Server).updateMissionPlan),
		method("SubmitChecklist", (*Server).submitChecklist),
		method("RecordTelemetry", (*Server).recordTelemetry),
		method("DispatchMission", (*Server).dispatchMission),
		method("CheckDroneStatus", (*Server).checkDroneStatus),
		method("DownloadMission", (*Server).downloadMission),

		method("SearchNoFlyZones", (*Server).searchNoFlyZones),
		method("CreateNoFlyZone", (*Server).createNoFlyZone),
		method("UpdateNoFlyZone", (*Server).updateNoFlyZone),
		method("RemoveNoFlyZone", (*Server).removeNoFlyZone),

		method("UpdateDroneLocation", (*Server).updateDroneLocation),
		method("GetDronePositions", (*Server).getDronePositions),

		method("ListNotifications", (*Server).listNotifications),
		method("ReadNotification", (*Server).readNotification),
	},
	Metadata: "dronedispatch/v1/dispatch.proto",
}

// Register adds s to gs.
func Register(gs *grpc.Server, s *Server) {
	gs.RegisterService(&ServiceDesc, s)
}
