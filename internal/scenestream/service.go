package scenestream

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/banshee-data/marker.place/internal/ar"
	"github.com/banshee-data/marker.place/internal/ar/status"
	"github.com/banshee-data/marker.place/internal/monitoring"
)

const (
	ServiceName             = "markerplace.v1.SceneService"
	StreamSceneFullMethod   = "/" + ServiceName + "/StreamScene"
	StreamStatusFullMethod  = "/" + ServiceName + "/StreamStatus"
	streamSceneStreamIndex  = 0
	streamStatusStreamIndex = 1
)

// SceneServiceServer is the server API of the scene stream service.
//
// StreamScene sends one message per scene change. When the request value
// is true the stream opens with the current scene as attach events with
// seq 0; clients key nodes by ID, so a live attach may repeat one already
// in that snapshot. StreamStatus sends the current status snapshot and
// then every change.
type SceneServiceServer interface {
	StreamScene(*wrapperspb.BoolValue, grpc.ServerStreamingServer[structpb.Struct]) error
	StreamStatus(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

// ServiceDesc describes the scene stream service. Messages are protobuf
// well-known types, so no generated code is needed on either side.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SceneServiceServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamScene",
			Handler:       streamSceneHandler,
			ServerStreams: true,
		},
		{
			StreamName:    "StreamStatus",
			Handler:       streamStatusHandler,
			ServerStreams: true,
		},
	},
	Metadata: "markerplace/v1/scene.proto",
}

// RegisterService registers the scene stream service with the server.
func RegisterService(s grpc.ServiceRegistrar, srv SceneServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func streamSceneHandler(srv any, stream grpc.ServerStream) error {
	m := new(wrapperspb.BoolValue)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(SceneServiceServer).StreamScene(m, &grpc.GenericServerStream[wrapperspb.BoolValue, structpb.Struct]{ServerStream: stream})
}

func streamStatusHandler(srv any, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(SceneServiceServer).StreamStatus(m, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

// Server implements SceneServiceServer from a Publisher and a status
// board.
type Server struct {
	publisher *Publisher
	board     *status.Board
}

// NewServer creates a Server. A nil board makes StreamStatus unavailable.
func NewServer(publisher *Publisher, board *status.Board) *Server {
	return &Server{publisher: publisher, board: board}
}

// StreamScene streams scene changes from the publisher.
func (s *Server) StreamScene(req *wrapperspb.BoolValue, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	client, err := s.publisher.addClient("scene-" + uuid.NewString())
	if err != nil {
		return grpcstatus.Error(codes.ResourceExhausted, err.Error())
	}
	defer s.publisher.removeClient(client.id)

	if req.GetValue() {
		for _, ev := range s.publisher.currentScene() {
			if err := sendEvent(stream, ev); err != nil {
				return err
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.publisher.stopCh:
			return nil
		case ev := <-client.eventCh:
			if err := sendEvent(stream, ev); err != nil {
				monitoring.Opsf("scenestream: send to %s: %v", client.id, err)
				return err
			}
		}
	}
}

// StreamStatus streams status board snapshots.
func (s *Server) StreamStatus(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	if s.board == nil {
		return grpcstatus.Error(codes.Unavailable, "no status board")
	}
	ctx := stream.Context()
	id, ch := s.board.Subscribe()
	defer s.board.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.publisher.stopCh:
			return nil
		case snap, ok := <-ch:
			if !ok {
				return nil
			}
			msg, err := snapshotToProto(snap)
			if err != nil {
				return grpcstatus.Error(codes.Internal, err.Error())
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

func sendEvent(stream grpc.ServerStreamingServer[structpb.Struct], ev Event) error {
	msg, err := eventToProto(ev)
	if err != nil {
		return grpcstatus.Error(codes.Internal, err.Error())
	}
	return stream.Send(msg)
}

func eventToProto(ev Event) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"seq":    float64(ev.Seq),
		"op":     string(ev.Op),
		"anchor": string(ev.Anchor),
		"node":   nodeFields(ev.Node),
	})
}

func nodeFields(n ar.Node) map[string]any {
	m := map[string]any{
		"id":   n.ID,
		"kind": string(n.Kind),
	}
	if n.Model != "" {
		m["model"] = n.Model
	}
	if n.Asset != "" {
		m["asset"] = n.Asset
	}
	if n.Parent != "" {
		m["parent"] = n.Parent
	}
	if n.Kind == ar.NodePlane {
		m["center"] = vecFields(n.Center)
		m["extent"] = vecFields(n.Extent)
	}
	if n.Size > 0 {
		m["size"] = n.Size
	}
	return m
}

func vecFields(v r3.Vec) map[string]any {
	return map[string]any{"x": v.X, "y": v.Y, "z": v.Z}
}

func snapshotToProto(s status.Snapshot) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"message":       s.Message,
		"message_token": float64(s.MessageToken),
		"tracking_text": s.TrackingText,
		"crosshair":     s.Crosshair,
		"session":       s.Session,
		"updated_at":    s.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
}

// Client opens scene stream service streams on a connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a Client using cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// StreamScene opens a scene stream, optionally starting with the current
// scene.
func (c *Client) StreamScene(ctx context.Context, snapshot bool, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	return openStream(ctx, c.cc, &ServiceDesc.Streams[streamSceneStreamIndex], StreamSceneFullMethod, wrapperspb.Bool(snapshot), opts...)
}

// StreamStatus opens a status stream.
func (c *Client) StreamStatus(ctx context.Context, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	return openStream(ctx, c.cc, &ServiceDesc.Streams[streamStatusStreamIndex], StreamStatusFullMethod, &emptypb.Empty{}, opts...)
}

func openStream[Req any](ctx context.Context, cc grpc.ClientConnInterface, desc *grpc.StreamDesc, method string, req *Req, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := cc.NewStream(ctx, desc, method, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[Req, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
