package sandbox

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the gRPC service sandbox runners register against.
const ServiceName = "sandbox.v1.SandboxEvents"

// StreamRequest identifies which sandbox run a runner is streaming events
// for. RunID is assigned by the daemon when it launches a runner.
type StreamRequest struct {
	RunID string `json:"run_id"`
}

// EventsClient is the daemon side of the bridge: it dials out to a runner
// and receives its event stream.
type EventsClient interface {
	Stream(ctx context.Context, in *StreamRequest, opts ...grpc.CallOption) (Events_StreamClient, error)
}

// Events_StreamClient is the receive half of a Stream call, named to match
// the ClientStream convention protoc-gen-go-grpc generates.
type Events_StreamClient interface {
	Recv() (*Event, error)
	grpc.ClientStream
}

type eventsClient struct {
	cc grpc.ClientConnInterface
}

// NewEventsClient wraps an established connection as an EventsClient.
func NewEventsClient(cc grpc.ClientConnInterface) EventsClient {
	return &eventsClient{cc: cc}
}

func (c *eventsClient) Stream(ctx context.Context, in *StreamRequest, opts ...grpc.CallOption) (Events_StreamClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/"+ServiceName+"/Stream", opts...)
	if err != nil {
		return nil, err
	}
	x := &eventsStreamClient{stream}
	if err := x.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type eventsStreamClient struct {
	grpc.ClientStream
}

func (x *eventsStreamClient) Recv() (*Event, error) {
	m := new(Event)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// EventsServer is the runner side of the bridge: a sandbox runner process
// implements this to push its event stream to the daemon.
type EventsServer interface {
	Stream(*StreamRequest, Events_StreamServer) error
}

// Events_StreamServer is the send half of a Stream call.
type Events_StreamServer interface {
	Send(*Event) error
	grpc.ServerStream
}

type eventsStreamServer struct {
	grpc.ServerStream
}

func (x *eventsStreamServer) Send(e *Event) error {
	return x.ServerStream.SendMsg(e)
}

func _Events_Stream_Handler(srv any, stream grpc.ServerStream) error {
	m := new(StreamRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(EventsServer).Stream(m, &eventsStreamServer{stream})
}

// ServiceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would emit for a single server-streaming RPC; there is no .proto/protoc
// step in this build, so the descriptor is authored directly.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EventsServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       _Events_Stream_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "pkg/sandbox/events.proto",
}
