package server

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/protoadapt"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/alfredjeanlab/lngraph/internal/model"
	"github.com/alfredjeanlab/lngraph/internal/store"
)

// GraphServiceName is the fully qualified gRPC service name.
const GraphServiceName = "lngraph.v1.GraphService"

// ErrorDomain is the errdetails.ErrorInfo domain attached to decode errors.
const ErrorDomain = "lngraph"

// GraphServiceServer is the gRPC surface of the service. Messages are
// protobuf well-known types: graph documents travel as BytesValue holding
// the wire JSON, and records as Struct holding their JSON form.
type GraphServiceServer interface {
	Decode(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Stats(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error)
	GetSnapshot(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error)
}

var _ GraphServiceServer = (*Server)(nil)

// GraphServiceDesc describes lngraph.v1.GraphService for grpc.Server.RegisterService.
var GraphServiceDesc = grpc.ServiceDesc{
	ServiceName: GraphServiceName,
	HandlerType: (*GraphServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Decode", Handler: unaryHandler("Decode", GraphServiceServer.Decode)},
		{MethodName: "Stats", Handler: unaryHandler("Stats", GraphServiceServer.Stats)},
		{MethodName: "GetSnapshot", Handler: unaryHandler("GetSnapshot", GraphServiceServer.GetSnapshot)},
	},
	Streams: []grpc.StreamDesc{},
}

// unaryHandler adapts a typed GraphServiceServer method to grpc.MethodDesc.
func unaryHandler[Req any, Resp any, PReq interface{ *Req }](method string, call func(GraphServiceServer, context.Context, PReq) (Resp, error)) grpc.MethodHandler {
	fullMethod := "/" + GraphServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(GraphServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(GraphServiceServer), ctx, req.(PReq))
		})
	}
}

// Decode returns the canonical encoding of the graph document in in.
func (s *Server) Decode(_ context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	g, err := model.Decode(in.GetValue())
	s.metrics.ObserveDecode(len(in.GetValue()), err)
	if err != nil {
		return nil, decodeStatus(err)
	}
	data, err := model.Encode(g)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode graph: %v", err)
	}
	return wrapperspb.Bytes(data), nil
}

// Stats returns the statistics of the graph document in in.
func (s *Server) Stats(_ context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	g, err := model.Decode(in.GetValue())
	s.metrics.ObserveDecode(len(in.GetValue()), err)
	if err != nil {
		return nil, decodeStatus(err)
	}
	return toStruct(model.ComputeStats(g))
}

// GetSnapshot returns the stored snapshot record with the given ID.
func (s *Server) GetSnapshot(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	if s.store == nil {
		return nil, status.Error(codes.Unavailable, "snapshot store not configured")
	}
	if in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "snapshot id is required")
	}
	snap, err := s.store.GetSnapshot(ctx, in.GetValue())
	if errors.Is(err, store.ErrNotFound) {
		return nil, status.Error(codes.NotFound, "snapshot not found")
	}
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return toStruct(snap)
}

// toStruct converts v to a Struct through its JSON encoding.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "marshal response: %v", err)
	}
	st := &structpb.Struct{}
	if err := protojson.Unmarshal(data, st); err != nil {
		return nil, status.Errorf(codes.Internal, "convert response: %v", err)
	}
	return st, nil
}

// decodeStatus maps a decode error to InvalidArgument carrying an ErrorInfo
// with the error kind and, for field errors, a BadRequest field violation.
func decodeStatus(err error) error {
	var de *model.DecodeError
	if !errors.As(err, &de) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	st := status.New(codes.InvalidArgument, de.Error())
	details := []protoadapt.MessageV1{&errdetails.ErrorInfo{Reason: string(de.Kind), Domain: ErrorDomain}}
	if de.Field != "" {
		details = append(details, &errdetails.BadRequest{
			FieldViolations: []*errdetails.BadRequest_FieldViolation{{Field: de.Field, Description: de.Error()}},
		})
	}
	withDetails, derr := st.WithDetails(details...)
	if derr != nil {
		return st.Err()
	}
	return withDetails.Err()
}
