package grpcserver

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"droneDispatch/internal/auth"
)

func (s *Server) listNotifications(ctx context.Context, in *structpb.Struct) (any, error) {
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	var args pageArgs
	if err := decode(in, &args); err != nil {
		return nil, err
	}
	return s.Inbox.List(ctx, p.UserID, args.Offset, args.Limit)
}

func (s *Server) readNotification(ctx context.Context, in *structpb.Struct) (any, error) {
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	var args struct {
		NotificationID string `json:"notificationId"`
	}
	if err := decode(in, &args); err != nil {
		return nil, err
	}
	if err := s.Inbox.MarkRead(ctx, p.UserID, args.NotificationID); err != nil {
		return nil, err
	}
	return map[string]any{"read": args.NotificationID}, nil
}
