package grpcserver

import (
	"encoding/json"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// decode copies a Struct payload into dst through its JSON form.
func decode(in *structpb.Struct, dst any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	b, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "payload: %v", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "payload: %v", err)
	}
	return nil
}

// encode turns a response value into a Struct. Values that are not JSON objects are
// wrapped under "result".
func encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	if len(b) == 0 || b[0] != '{' {
		b, err = json.Marshal(map[string]json.RawMessage{"result": b})
		if err != nil {
			return nil, status.Errorf(codes.Internal, "encode response: %v", err)
		}
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
