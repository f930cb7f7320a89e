package grpcserver

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"droneDispatch/internal/apperr"
)

// toStatus maps an application error to its gRPC status. Errors that already carry a
// status pass through.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return status.Error(codes.Internal, "internal error")
	}
	code := codeOf(ae.Kind)
	if code == codes.Internal {
		return status.Error(code, "internal error")
	}
	return status.Error(code, ae.Error())
}

func codeOf(k apperr.Kind) codes.Code {
	switch k {
	case apperr.KindNotFound:
		return codes.NotFound
	case apperr.KindNotPermitted:
		return codes.PermissionDenied
	case apperr.KindInvalidTransition:
		return codes.FailedPrecondition
	case apperr.KindValidation:
		return codes.InvalidArgument
	case apperr.KindTimeout:
		return codes.DeadlineExceeded
	case apperr.KindUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}
