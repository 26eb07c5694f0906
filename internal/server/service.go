// Hand-registered gRPC service descriptor for confsnap.v1.SnapshotService.
// Messages are protobuf well-known types so no generated code is needed.
package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "confsnap.v1.SnapshotService"

// Full method names
const (
	ListSnapshotsMethod = "/" + ServiceName + "/ListSnapshots"
	GetSnapshotMethod   = "/" + ServiceName + "/GetSnapshot"
	CompareLatestMethod = "/" + ServiceName + "/CompareLatest"
	RunBackupMethod     = "/" + ServiceName + "/RunBackup"
)

// SnapshotServiceServer is the server API for SnapshotService
type SnapshotServiceServer interface {
	// ListSnapshots takes a device id and returns its snapshots, oldest first
	ListSnapshots(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// GetSnapshot takes {device, key} and returns the snapshot with its config
	GetSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// CompareLatest takes a device id and diffs its two newest snapshots
	CompareLatest(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// RunBackup takes an optional {devices: [...]} filter and runs one cycle
	RunBackup(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterSnapshotServiceServer registers srv on s
func RegisterSnapshotServiceServer(s grpc.ServiceRegistrar, srv SnapshotServiceServer) {
	s.RegisterService(&SnapshotServiceDesc, srv)
}

// SnapshotServiceDesc is the grpc.ServiceDesc for SnapshotService
var SnapshotServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SnapshotServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListSnapshots", Handler: listSnapshotsHandler},
		{MethodName: "GetSnapshot", Handler: getSnapshotHandler},
		{MethodName: "CompareLatest", Handler: compareLatestHandler},
		{MethodName: "RunBackup", Handler: runBackupHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "confsnap/v1/snapshot.proto",
}

func listSnapshotsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SnapshotServiceServer).ListSnapshots(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListSnapshotsMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SnapshotServiceServer).ListSnapshots(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func getSnapshotHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SnapshotServiceServer).GetSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetSnapshotMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SnapshotServiceServer).GetSnapshot(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func compareLatestHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SnapshotServiceServer).CompareLatest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CompareLatestMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SnapshotServiceServer).CompareLatest(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func runBackupHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SnapshotServiceServer).RunBackup(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RunBackupMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SnapshotServiceServer).RunBackup(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client is the client API for SnapshotService
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) ListSnapshots(ctx context.Context, deviceID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ListSnapshotsMethod, wrapperspb.String(deviceID), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetSnapshot(ctx context.Context, deviceID, key string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]interface{}{"device": deviceID, "key": key})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetSnapshotMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CompareLatest(ctx context.Context, deviceID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, CompareLatestMethod, wrapperspb.String(deviceID), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RunBackup(ctx context.Context, deviceIDs []string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	devices := make([]interface{}, len(deviceIDs))
	for i, d := range deviceIDs {
		devices[i] = d
	}
	in, err := structpb.NewStruct(map[string]interface{}{"devices": devices})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RunBackupMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
