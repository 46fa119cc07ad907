package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MailboxServiceClient is the client API for MailboxService
type MailboxServiceClient interface {
	RequestPoint(ctx context.Context, in *MPointRequest, opts ...grpc.CallOption) (*MPointReply, error)
	ReleasePoint(ctx context.Context, in *MReleaseRequest, opts ...grpc.CallOption) (*MReleaseResponse, error)
}

type mailboxServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewMailboxServiceClient creates a MailboxServiceClient over a connection
func NewMailboxServiceClient(cc grpc.ClientConnInterface) MailboxServiceClient {
	return &mailboxServiceClient{cc}
}

func (c *mailboxServiceClient) RequestPoint(ctx context.Context, in *MPointRequest, opts ...grpc.CallOption) (*MPointReply, error) {
	out := new(MPointReply)
	err := c.cc.Invoke(ctx, "/disttable.MailboxService/RequestPoint", in, out, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *mailboxServiceClient) ReleasePoint(ctx context.Context, in *MReleaseRequest, opts ...grpc.CallOption) (*MReleaseResponse, error) {
	out := new(MReleaseResponse)
	err := c.cc.Invoke(ctx, "/disttable.MailboxService/ReleasePoint", in, out, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MailboxServiceServer is the server API for MailboxService
type MailboxServiceServer interface {
	RequestPoint(context.Context, *MPointRequest) (*MPointReply, error)
	ReleasePoint(context.Context, *MReleaseRequest) (*MReleaseResponse, error)
}

// UnimplementedMailboxServiceServer can be embedded to have forward compatible implementations
type UnimplementedMailboxServiceServer struct{}

// RequestPoint is not implemented
func (*UnimplementedMailboxServiceServer) RequestPoint(context.Context, *MPointRequest) (*MPointReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method RequestPoint not implemented")
}

// ReleasePoint is not implemented
func (*UnimplementedMailboxServiceServer) ReleasePoint(context.Context, *MReleaseRequest) (*MReleaseResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ReleasePoint not implemented")
}

// RegisterMailboxServiceServer registers a MailboxServiceServer with a grpc.Server
func RegisterMailboxServiceServer(s *grpc.Server, srv MailboxServiceServer) {
	s.RegisterService(&_MailboxService_serviceDesc, srv)
}

func _MailboxService_RequestPoint_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(MPointRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MailboxServiceServer).RequestPoint(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/disttable.MailboxService/RequestPoint",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MailboxServiceServer).RequestPoint(ctx, req.(*MPointRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _MailboxService_ReleasePoint_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(MReleaseRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MailboxServiceServer).ReleasePoint(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/disttable.MailboxService/ReleasePoint",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MailboxServiceServer).ReleasePoint(ctx, req.(*MReleaseRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var _MailboxService_serviceDesc = grpc.ServiceDesc{
	ServiceName: "disttable.MailboxService",
	HandlerType: (*MailboxServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "RequestPoint",
			Handler:    _MailboxService_RequestPoint_Handler,
		},
		{
			MethodName: "ReleasePoint",
			Handler:    _MailboxService_ReleasePoint_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "disttable.proto",
}

// ClusterServiceClient is the client API for ClusterService
type ClusterServiceClient interface {
	AllGather(ctx context.Context, in *MAllGatherRequest, opts ...grpc.CallOption) (*MAllGatherResponse, error)
	Barrier(ctx context.Context, in *MBarrierRequest, opts ...grpc.CallOption) (*MBarrierResponse, error)
}

type clusterServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewClusterServiceClient creates a ClusterServiceClient over a connection
func NewClusterServiceClient(cc grpc.ClientConnInterface) ClusterServiceClient {
	return &clusterServiceClient{cc}
}

func (c *clusterServiceClient) AllGather(ctx context.Context, in *MAllGatherRequest, opts ...grpc.CallOption) (*MAllGatherResponse, error) {
	out := new(MAllGatherResponse)
	err := c.cc.Invoke(ctx, "/disttable.ClusterService/AllGather", in, out, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *clusterServiceClient) Barrier(ctx context.Context, in *MBarrierRequest, opts ...grpc.CallOption) (*MBarrierResponse, error) {
	out := new(MBarrierResponse)
	err := c.cc.Invoke(ctx, "/disttable.ClusterService/Barrier", in, out, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ClusterServiceServer is the server API for ClusterService
type ClusterServiceServer interface {
	AllGather(context.Context, *MAllGatherRequest) (*MAllGatherResponse, error)
	Barrier(context.Context, *MBarrierRequest) (*MBarrierResponse, error)
}

// RegisterClusterServiceServer registers a ClusterServiceServer with a grpc.Server
func RegisterClusterServiceServer(s *grpc.Server, srv ClusterServiceServer) {
	s.RegisterService(&_ClusterService_serviceDesc, srv)
}

func _ClusterService_AllGather_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(MAllGatherRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClusterServiceServer).AllGather(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/disttable.ClusterService/AllGather",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClusterServiceServer).AllGather(ctx, req.(*MAllGatherRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ClusterService_Barrier_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(MBarrierRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClusterServiceServer).Barrier(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/disttable.ClusterService/Barrier",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClusterServiceServer).Barrier(ctx, req.(*MBarrierRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var _ClusterService_serviceDesc = grpc.ServiceDesc{
	ServiceName: "disttable.ClusterService",
	HandlerType: (*ClusterServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "AllGather",
			Handler:    _ClusterService_AllGather_Handler,
		},
		{
			MethodName: "Barrier",
			Handler:    _ClusterService_Barrier_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "disttable.proto",
}

// LogServiceClient is the client API for LogService
type LogServiceClient interface {
	Log(ctx context.Context, opts ...grpc.CallOption) (LogService_LogClient, error)
}

type logServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewLogServiceClient creates a LogServiceClient over a connection
func NewLogServiceClient(cc grpc.ClientConnInterface) LogServiceClient {
	return &logServiceClient{cc}
}

func (c *logServiceClient) Log(ctx context.Context, opts ...grpc.CallOption) (LogService_LogClient, error) {
	stream, err := c.cc.NewStream(ctx, &_LogService_serviceDesc.Streams[0], "/disttable.LogService/Log", withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return &logServiceLogClient{stream}, nil
}

// LogService_LogClient is the client side of a Log stream
type LogService_LogClient interface {
	Send(*MLogMsg) error
	CloseAndRecv() (*MLogMsgAck, error)
	grpc.ClientStream
}

type logServiceLogClient struct {
	grpc.ClientStream
}

func (x *logServiceLogClient) Send(m *MLogMsg) error {
	return x.ClientStream.SendMsg(m)
}

func (x *logServiceLogClient) CloseAndRecv() (*MLogMsgAck, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(MLogMsgAck)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// LogServiceServer is the server API for LogService
type LogServiceServer interface {
	Log(LogService_LogServer) error
}

// RegisterLogServiceServer registers a LogServiceServer with a grpc.Server
func RegisterLogServiceServer(s *grpc.Server, srv LogServiceServer) {
	s.RegisterService(&_LogService_serviceDesc, srv)
}

func _LogService_Log_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(LogServiceServer).Log(&logServiceLogServer{stream})
}

// LogService_LogServer is the server side of a Log stream
type LogService_LogServer interface {
	SendAndClose(*MLogMsgAck) error
	Recv() (*MLogMsg, error)
	grpc.ServerStream
}

type logServiceLogServer struct {
	grpc.ServerStream
}

func (x *logServiceLogServer) SendAndClose(m *MLogMsgAck) error {
	return x.ServerStream.SendMsg(m)
}

func (x *logServiceLogServer) Recv() (*MLogMsg, error) {
	m := new(MLogMsg)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

var _LogService_serviceDesc = grpc.ServiceDesc{
	ServiceName: "disttable.LogService",
	HandlerType: (*LogServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Log",
			Handler:       _LogService_Log_Handler,
			ClientStreams: true,
		},
	},
	Metadata: "disttable.proto",
}

// LifecycleServiceClient is the client API for LifecycleService
type LifecycleServiceClient interface {
	Stop(ctx context.Context, in *MStopRequest, opts ...grpc.CallOption) (*MStopResponse, error)
	GracefulStop(ctx context.Context, in *MStopRequest, opts ...grpc.CallOption) (*MStopResponse, error)
}

type lifecycleServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewLifecycleServiceClient creates a LifecycleServiceClient over a connection
func NewLifecycleServiceClient(cc grpc.ClientConnInterface) LifecycleServiceClient {
	return &lifecycleServiceClient{cc}
}

func (c *lifecycleServiceClient) Stop(ctx context.Context, in *MStopRequest, opts ...grpc.CallOption) (*MStopResponse, error) {
	out := new(MStopResponse)
	err := c.cc.Invoke(ctx, "/disttable.LifecycleService/Stop", in, out, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *lifecycleServiceClient) GracefulStop(ctx context.Context, in *MStopRequest, opts ...grpc.CallOption) (*MStopResponse, error) {
	out := new(MStopResponse)
	err := c.cc.Invoke(ctx, "/disttable.LifecycleService/GracefulStop", in, out, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LifecycleServiceServer is the server API for LifecycleService
type LifecycleServiceServer interface {
	Stop(context.Context, *MStopRequest) (*MStopResponse, error)
	GracefulStop(context.Context, *MStopRequest) (*MStopResponse, error)
}

// RegisterLifecycleServiceServer registers a LifecycleServiceServer with a grpc.Server
func RegisterLifecycleServiceServer(s *grpc.Server, srv LifecycleServiceServer) {
	s.RegisterService(&_LifecycleService_serviceDesc, srv)
}

func _LifecycleService_Stop_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(MStopRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LifecycleServiceServer).Stop(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/disttable.LifecycleService/Stop",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LifecycleServiceServer).Stop(ctx, req.(*MStopRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LifecycleService_GracefulStop_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(MStopRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LifecycleServiceServer).GracefulStop(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/disttable.LifecycleService/GracefulStop",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LifecycleServiceServer).GracefulStop(ctx, req.(*MStopRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var _LifecycleService_serviceDesc = grpc.ServiceDesc{
	ServiceName: "disttable.LifecycleService",
	HandlerType: (*LifecycleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Stop",
			Handler:    _LifecycleService_Stop_Handler,
		},
		{
			MethodName: "GracefulStop",
			Handler:    _LifecycleService_GracefulStop_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "disttable.proto",
}
