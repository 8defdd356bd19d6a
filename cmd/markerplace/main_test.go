package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/banshee-data/marker.place/internal/ar"
	"github.com/banshee-data/marker.place/internal/ar/assets"
	"github.com/banshee-data/marker.place/internal/ar/scenegraph"
	"github.com/banshee-data/marker.place/internal/ar/session"
	"github.com/banshee-data/marker.place/internal/config"
	"github.com/banshee-data/marker.place/internal/replay"
	"github.com/banshee-data/marker.place/internal/scenestream"
)

// setFlag overrides a string flag for the duration of the test.
func setFlag(t *testing.T, p *string, v string) {
	t.Helper()
	old := *p
	*p = v
	t.Cleanup(func() { *p = old })
}

func TestApplyFlags_OverridesOnlySetValues(t *testing.T) {
	setFlag(t, listen, ":9090")
	setFlag(t, logLevel, "debug")
	setFlag(t, grpcListen, "127.0.0.1:50051")

	base := config.Env{Listen: ":8080", DBPath: "journal.db", LogLevel: "info"}
	got := applyFlags(base)

	if got.Listen != ":9090" {
		t.Errorf("Listen = %q, want :9090", got.Listen)
	}
	if got.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", got.LogLevel)
	}
	if got.DBPath != "journal.db" {
		t.Errorf("DBPath = %q, want env value kept", got.DBPath)
	}
	if got.GRPCListen != "127.0.0.1:50051" {
		t.Errorf("GRPCListen = %q, want 127.0.0.1:50051", got.GRPCListen)
	}
}

func TestFlagDefaults(t *testing.T) {
	if *loop {
		t.Error("expected -loop to default to false")
	}
	if *denyCamera {
		t.Error("expected -deny-camera to default to false")
	}
	if *listen != "" || *fixtures != "" || *grpcListen != "" {
		t.Error("expected string flags to default to empty so the environment applies")
	}
}

func TestLoadSessionConfig(t *testing.T) {
	cfg, err := loadSessionConfig("")
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if got := cfg.GetMarkers()["target_2"]; got != "lamp" {
		t.Errorf("default marker target_2 = %q, want lamp", got)
	}

	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte(`{"too_dark_lumens": 50}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = loadSessionConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.GetTooDarkLumens(); got != 50 {
		t.Errorf("TooDarkLumens = %v, want 50", got)
	}

	if _, err := loadSessionConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestOpenReplay(t *testing.T) {
	rt, err := openReplay("")
	if err != nil || rt == nil {
		t.Fatalf("demo replay: %v", err)
	}

	if _, err := openReplay(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("expected error for missing fixture")
	}
}

func TestSessionConfig_MapsSettings(t *testing.T) {
	off, on := false, true
	cfg := config.DefaultSessionConfig().Merge(&config.SessionConfig{
		DetectPlanes:       &off,
		DebugVisualization: &on,
	})
	sc := sessionConfig(cfg, replay.New(nil), scenegraph.New(), assets.NewCatalog(nil, nil))

	if sc.RunOptions.DetectPlanes {
		t.Error("expected DetectPlanes false")
	}
	if !sc.RunOptions.EstimateLight {
		t.Error("expected EstimateLight default true")
	}
	if !sc.DebugVisualization {
		t.Error("expected DebugVisualization true")
	}
	if sc.MessageDuration != 2*time.Second {
		t.Errorf("MessageDuration = %v, want 2s", sc.MessageDuration)
	}
	if sc.QueueSize != 8 {
		t.Errorf("QueueSize = %d, want 8", sc.QueueSize)
	}
	if sc.Markers["target_1"] != "candle" {
		t.Errorf("Markers = %v", sc.Markers)
	}
}

func TestSessionConfig_StreamsSceneChanges(t *testing.T) {
	on := true
	cfg := config.DefaultSessionConfig().Merge(&config.SessionConfig{DebugVisualization: &on})
	graph := scenegraph.New()
	streams := scenestream.NewPublisher(scenestream.Config{ListenAddr: "127.0.0.1:0"}, graph)
	ctrl, err := session.New(sessionConfig(cfg, replay.New(nil), streams, assets.NewCatalog(cfg.GetModels(), nil)))
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	if err := streams.Start(scenestream.NewServer(streams, ctrl.Board())); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer streams.Stop()

	conn, err := grpc.NewClient(streams.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stream, err := scenestream.NewClient(conn).StreamScene(ctx, true)
	if err != nil {
		t.Fatalf("StreamScene: %v", err)
	}
	for streams.Stats().Clients == 0 {
		if ctx.Err() != nil {
			t.Fatal("stream never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := ctrl.Handle(ctx, session.Start{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	floor := ar.Anchor{ID: "floor", Transform: ar.IdentityTransform(), Kind: ar.PlaneKind{Extent: r3.Vec{X: 2, Z: 2}}}
	if err := ctrl.Handle(ctx, session.AnchorAdded{Anchor: floor}); err != nil {
		t.Fatalf("AnchorAdded: %v", err)
	}

	msg, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	got := msg.AsMap()
	if got["op"] != "attach" || got["anchor"] != "floor" {
		t.Errorf("event = %v, want attach on floor", got)
	}
	if graph.Len() != 1 {
		t.Errorf("graph has %d nodes, want 1", graph.Len())
	}
}
