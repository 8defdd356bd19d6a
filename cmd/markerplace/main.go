// Command markerplace runs a marker placement session against a recorded
// or demo tracking feed and serves its status and commands over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
	"tailscale.com/tsweb"

	"github.com/banshee-data/marker.place/internal/api"
	"github.com/banshee-data/marker.place/internal/ar"
	"github.com/banshee-data/marker.place/internal/ar/assets"
	"github.com/banshee-data/marker.place/internal/ar/scenegraph"
	"github.com/banshee-data/marker.place/internal/ar/session"
	"github.com/banshee-data/marker.place/internal/config"
	"github.com/banshee-data/marker.place/internal/db"
	"github.com/banshee-data/marker.place/internal/metrics"
	"github.com/banshee-data/marker.place/internal/monitoring"
	"github.com/banshee-data/marker.place/internal/replay"
	"github.com/banshee-data/marker.place/internal/scenestream"
	"github.com/banshee-data/marker.place/internal/version"
)

var (
	listen     = flag.String("listen", "", "Listen address (overrides MARKERPLACE_LISTEN)")
	dbPath     = flag.String("db", "", "Journal database path (overrides MARKERPLACE_DB)")
	configPath = flag.String("config", "", "Session config JSON file (overrides MARKERPLACE_CONFIG)")
	fixtures   = flag.String("fixtures", "", "Replay fixture JSONL; empty plays the built-in demo (overrides MARKERPLACE_FIXTURES)")
	logLevel   = flag.String("log-level", "", "Log level: debug, info, warn or error (overrides MARKERPLACE_LOG_LEVEL)")
	grpcListen = flag.String("grpc-listen", "", "Scene stream gRPC listen address; empty disables it (overrides MARKERPLACE_GRPC_LISTEN)")
	assetsDir  = flag.String("assets", "", "Directory the model assets must exist in; empty skips the check")
	loop       = flag.Bool("loop", false, "Replay the fixture forever")
	denyCamera = flag.Bool("deny-camera", false, "Refuse to start tracking, as if camera access were denied")
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = time.Second

// applyFlags overlays non-empty flag values on the environment settings.
func applyFlags(e config.Env) config.Env {
	if *listen != "" {
		e.Listen = *listen
	}
	if *dbPath != "" {
		e.DBPath = *dbPath
	}
	if *configPath != "" {
		e.ConfigPath = *configPath
	}
	if *fixtures != "" {
		e.FixturesPath = *fixtures
	}
	if *logLevel != "" {
		e.LogLevel = *logLevel
	}
	if *grpcListen != "" {
		e.GRPCListen = *grpcListen
	}
	return e
}

// loadSessionConfig reads path over the defaults, or returns the
// defaults when path is empty.
func loadSessionConfig(path string) (*config.SessionConfig, error) {
	if path == "" {
		return config.DefaultSessionConfig(), nil
	}
	return config.LoadSessionConfig(path)
}

// openReplay opens the fixture at path, or the built-in demo when path is
// empty.
func openReplay(path string, opts ...replay.Option) (*replay.Runtime, error) {
	if path == "" {
		return replay.New(replay.Demo(), opts...), nil
	}
	return replay.Open(path, opts...)
}

// sessionConfig maps the loaded configuration onto the controller.
func sessionConfig(cfg *config.SessionConfig, rt ar.Runtime, sink ar.SceneSink, loader ar.ModelLoader) session.Config {
	return session.Config{
		Runtime: rt,
		Sink:    sink,
		Loader:  loader,
		Markers: cfg.GetMarkers(),
		RunOptions: ar.RunOptions{
			DetectPlanes:  cfg.GetDetectPlanes(),
			EstimateLight: cfg.GetEstimateLight(),
		},
		DebugVisualization: cfg.GetDebugVisualization(),
		TooDarkLumens:      cfg.GetTooDarkLumens(),
		MessageDuration:    cfg.GetStatusMessageDuration(),
		QueueSize:          cfg.GetFrameQueueSize(),
	}
}

func main() {
	flag.Parse()

	settings, err := config.LoadEnv()
	if err != nil {
		log.Fatal(err)
	}
	settings = applyFlags(settings)

	if err := monitoring.Configure(settings.LogLevel); err != nil {
		log.Fatal(err)
	}
	monitoring.Opsf("markerplace %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	cfg, err := loadSessionConfig(settings.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load session config: %v", err)
	}

	journalDB, err := db.NewDB(settings.DBPath)
	if err != nil {
		log.Fatalf("failed to open journal database: %v", err)
	}
	defer journalDB.Close()
	journal := db.NewJournalStore(journalDB)

	runtime, err := openReplay(settings.FixturesPath, replay.WithLoop(*loop), replay.WithRefusal(*denyCamera))
	if err != nil {
		log.Fatalf("failed to open replay: %v", err)
	}

	var loader ar.ModelLoader = assets.NewCatalog(cfg.GetModels(), nil)
	if *assetsDir != "" {
		loader = assets.NewCatalog(cfg.GetModels(), os.DirFS(*assetsDir))
	}

	m := metrics.New()
	graph := scenegraph.New()
	streams := scenestream.NewPublisher(scenestream.Config{
		ListenAddr: settings.GRPCListen,
		MaxClients: scenestream.DefaultConfig().MaxClients,
	}, graph)
	sc := sessionConfig(cfg, runtime, streams, loader)
	sc.Journal = journal
	sc.Metrics = m
	ctrl, err := session.New(sc)
	if err != nil {
		log.Fatalf("failed to create session: %v", err)
	}

	debug := http.NewServeMux()
	if err := journalDB.AttachAdminRoutes(debug); err != nil {
		log.Fatalf("failed to attach admin routes: %v", err)
	}
	tsweb.Debugger(debug).KV("Version", fmt.Sprintf("%s (%s)", version.Version, version.GitSHA))

	if settings.GRPCListen != "" {
		if err := streams.Start(scenestream.NewServer(streams, ctrl.Board())); err != nil {
			log.Fatalf("failed to start scene stream: %v", err)
		}
		monitoring.Opsf("scene stream on %s", streams.Addr())
	}

	server := &http.Server{
		Addr: settings.Listen,
		Handler: api.NewServer(ctrl,
			api.WithScene(graph),
			api.WithJournal(journal),
			api.WithMetrics(m),
			api.WithDebug(debug),
			api.WithMiddlewares(middleware.RequestID, middleware.Recoverer, api.LoggingMiddleware),
		).Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return ctrl.Run(ctx) })

	g.Go(func() error {
		if err := ctrl.Do(ctx, session.Start{}); err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		return runtime.Serve(ctx, ctrl.Post)
	})

	g.Go(func() error {
		monitoring.Opsf("listening on %s", settings.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		streams.Stop()
		monitoring.Diagf("shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			monitoring.Opsf("HTTP server shutdown error: %v", err)
			return server.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		monitoring.Opsf("markerplace stopped: %v", err)
		os.Exit(1)
	}
	monitoring.Opsf("graceful shutdown complete")
}
