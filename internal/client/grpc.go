package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/alfredjeanlab/lngraph/internal/model"
)

const graphServicePrefix = "/lngraph.v1.GraphService/"

// GRPCClient implements Client using the gRPC transport.
type GRPCClient struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

// NewGRPCClient connects to the given gRPC address and returns a client.
// When token is non-empty it is sent as a bearer token on every call.
func NewGRPCClient(addr, token string, opts ...grpc.DialOption) (*GRPCClient, error) {
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if token != "" {
		dialOpts = append(dialOpts, grpc.WithUnaryInterceptor(bearerInterceptor(token)))
	}
	conn, err := grpc.NewClient(addr, append(dialOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{
		conn:   conn,
		health: healthpb.NewHealthClient(conn),
	}, nil
}

func bearerInterceptor(token string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return "", statusError(err)
	}
	if resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
		return "ok", nil
	}
	return resp.GetStatus().String(), nil
}

func (c *GRPCClient) Decode(ctx context.Context, data []byte) (*model.Graph, error) {
	out := &wrapperspb.BytesValue{}
	if err := c.conn.Invoke(ctx, graphServicePrefix+"Decode", wrapperspb.Bytes(data), out); err != nil {
		return nil, statusError(err)
	}
	return model.Decode(out.GetValue())
}

func (c *GRPCClient) Stats(ctx context.Context, data []byte) (*model.Stats, error) {
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, graphServicePrefix+"Stats", wrapperspb.Bytes(data), out); err != nil {
		return nil, statusError(err)
	}
	var s model.Stats
	if err := fromStruct(out, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *GRPCClient) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, graphServicePrefix+"GetSnapshot", wrapperspb.String(id), out); err != nil {
		return nil, statusError(err)
	}
	var snap model.Snapshot
	if err := fromStruct(out, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// fromStruct decodes st into v through its JSON form.
func fromStruct(st *structpb.Struct, v any) error {
	data, err := protojson.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// statusError converts a gRPC status into an *APIError, carrying the decode
// error kind and field from its details.
func statusError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	apiErr := &APIError{StatusCode: httpStatus(st.Code()), Message: st.Message()}
	for _, d := range st.Details() {
		switch d := d.(type) {
		case *errdetails.ErrorInfo:
			apiErr.Kind = d.GetReason()
		case *errdetails.BadRequest:
			if v := d.GetFieldViolations(); len(v) > 0 {
				apiErr.Field = v[0].GetField()
			}
		}
	}
	if apiErr.Kind != "" {
		apiErr.StatusCode = http.StatusUnprocessableEntity
	}
	return apiErr
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
