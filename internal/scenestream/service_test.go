package scenestream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/marker.place/internal/ar"
	"github.com/banshee-data/marker.place/internal/ar/scenegraph"
	"github.com/banshee-data/marker.place/internal/ar/status"
	"github.com/banshee-data/marker.place/internal/timeutil"
)

type streamHarness struct {
	pub    *Publisher
	graph  *scenegraph.Graph
	board  *status.Board
	client *Client
}

func newStreamHarness(t *testing.T, cfg Config) *streamHarness {
	t.Helper()
	graph := scenegraph.New()
	board := status.NewBoard(timeutil.NewMockClock(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)), time.Second)
	cfg.ListenAddr = "127.0.0.1:0"
	pub := NewPublisher(cfg, graph)
	require.NoError(t, pub.Start(NewServer(pub, board)))
	t.Cleanup(pub.Stop)

	conn, err := grpc.NewClient(pub.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &streamHarness{pub: pub, graph: graph, board: board, client: NewClient(conn)}
}

func recv(t *testing.T, stream grpc.ServerStreamingClient[structpb.Struct]) map[string]any {
	t.Helper()
	type result struct {
		msg *structpb.Struct
		err error
	}
	ch := make(chan result, 1)
	go func() {
		msg, err := stream.Recv()
		ch <- result{msg, err}
	}()
	select {
	case r := <-ch:
		require.NoError(t, r.err)
		return r.msg.AsMap()
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for stream message")
		return nil
	}
}

func TestStreamScene_SnapshotThenChanges(t *testing.T) {
	t.Parallel()
	h := newStreamHarness(t, Config{})
	plane := &ar.Node{ID: "plane", Kind: ar.NodePlane, Extent: r3.Vec{X: 1, Z: 1}}
	require.NoError(t, h.graph.AttachNode("floor", plane))

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	stream, err := h.client.StreamScene(ctx, true)
	require.NoError(t, err)

	first := recv(t, stream)
	assert.Equal(t, "attach", first["op"])
	assert.Equal(t, float64(0), first["seq"], "snapshot events carry no sequence")
	assert.Equal(t, "floor", first["anchor"])
	node := first["node"].(map[string]any)
	assert.Equal(t, "plane", node["id"])
	assert.Equal(t, map[string]any{"x": 1.0, "y": 0.0, "z": 1.0}, node["extent"])

	require.NoError(t, h.pub.ResizePlaneNode(plane, r3.Vec{X: 0.5}, r3.Vec{X: 3, Z: 2}))
	resized := recv(t, stream)
	assert.Equal(t, "resize", resized["op"])
	assert.Equal(t, float64(1), resized["seq"])
	assert.Equal(t, map[string]any{"x": 3.0, "y": 0.0, "z": 2.0}, resized["node"].(map[string]any)["extent"])

	holder := &ar.Node{ID: "holder", Kind: ar.NodeMarker, Size: ar.MarkerNodeSize}
	require.NoError(t, h.pub.AttachNode("m-1", holder))
	model := &ar.Node{ID: "lamp-1", Kind: ar.NodeModel, Model: "lamp", Parent: "holder"}
	require.NoError(t, h.pub.AttachNode("m-1", model))

	attached := recv(t, stream)
	assert.Equal(t, "holder", attached["node"].(map[string]any)["id"])
	assert.Equal(t, ar.MarkerNodeSize, attached["node"].(map[string]any)["size"])
	child := recv(t, stream)
	assert.Equal(t, "m-1", child["anchor"])
	assert.Equal(t, "holder", child["node"].(map[string]any)["parent"])
	assert.Equal(t, "lamp", child["node"].(map[string]any)["model"])

	require.NoError(t, h.pub.DetachNode(plane))
	detached := recv(t, stream)
	assert.Equal(t, "detach", detached["op"])
	assert.Equal(t, "floor", detached["anchor"])
}

func TestStreamScene_WithoutSnapshot(t *testing.T) {
	t.Parallel()
	h := newStreamHarness(t, Config{})
	require.NoError(t, h.graph.AttachNode("floor", &ar.Node{ID: "old", Kind: ar.NodePlane}))

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	stream, err := h.client.StreamScene(ctx, false)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.pub.Stats().Clients == 1 }, testTimeout, testTick)
	require.NoError(t, h.pub.AttachNode("tap", &ar.Node{ID: "new", Kind: ar.NodeModel}))

	msg := recv(t, stream)
	assert.Equal(t, "new", msg["node"].(map[string]any)["id"])
}

func TestStreamScene_TooManyClients(t *testing.T) {
	t.Parallel()
	h := newStreamHarness(t, Config{MaxClients: 1})
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	first, err := h.client.StreamScene(ctx, true)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.pub.Stats().Clients == 1 }, testTimeout, testTick)

	second, err := h.client.StreamScene(ctx, true)
	require.NoError(t, err)
	_, err = second.Recv()
	assert.Equal(t, codes.ResourceExhausted, grpcstatus.Code(err))

	require.NoError(t, h.pub.AttachNode("tap", &ar.Node{ID: "n", Kind: ar.NodeModel}))
	assert.Equal(t, "n", recv(t, first)["node"].(map[string]any)["id"])
}

func TestStreamStatus_CurrentThenChanges(t *testing.T) {
	t.Parallel()
	h := newStreamHarness(t, Config{})
	h.board.SetSession("tracking")

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	stream, err := h.client.StreamStatus(ctx)
	require.NoError(t, err)

	first := recv(t, stream)
	assert.Equal(t, "tracking", first["session"])
	assert.Equal(t, "", first["message"])

	h.board.Post("Session resumed")
	next := recv(t, stream)
	assert.Equal(t, "Session resumed", next["message"])
	assert.Equal(t, float64(1), next["message_token"])
	assert.Equal(t, "2026-06-01T09:00:00Z", next["updated_at"])
}

func TestStreamStatus_NoBoard(t *testing.T) {
	t.Parallel()
	graph := scenegraph.New()
	pub := NewPublisher(Config{ListenAddr: "127.0.0.1:0"}, graph)
	require.NoError(t, pub.Start(NewServer(pub, nil)))
	t.Cleanup(pub.Stop)

	conn, err := grpc.NewClient(pub.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	stream, err := NewClient(conn).StreamStatus(ctx)
	require.NoError(t, err)
	_, err = stream.Recv()
	assert.Equal(t, codes.Unavailable, grpcstatus.Code(err))
}

func TestStop_EndsStreams(t *testing.T) {
	t.Parallel()
	h := newStreamHarness(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	scene, err := h.client.StreamScene(ctx, true)
	require.NoError(t, err)
	statuses, err := h.client.StreamStatus(ctx)
	require.NoError(t, err)
	recv(t, statuses)
	require.Eventually(t, func() bool { return h.pub.Stats().Clients == 1 }, testTimeout, testTick)

	h.pub.Stop()
	_, err = scene.Recv()
	assert.Error(t, err)
	_, err = statuses.Recv()
	assert.Error(t, err)
	assert.False(t, h.pub.Stats().Running)
	assert.Zero(t, h.pub.Stats().Clients)
}
