// Package session owns the tracking session lifecycle and runs the single
// serialized event loop that feeds frames, anchor events and UI commands
// to the other components.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/marker.place/internal/ar"
	"github.com/banshee-data/marker.place/internal/ar/anchors"
	"github.com/banshee-data/marker.place/internal/ar/assets"
	"github.com/banshee-data/marker.place/internal/ar/marker"
	"github.com/banshee-data/marker.place/internal/ar/placement"
	"github.com/banshee-data/marker.place/internal/ar/quality"
	"github.com/banshee-data/marker.place/internal/ar/status"
	"github.com/banshee-data/marker.place/internal/metrics"
	"github.com/banshee-data/marker.place/internal/monitoring"
	"github.com/banshee-data/marker.place/internal/timeutil"
)

// Status messages posted on lifecycle transitions.
const (
	MsgInterrupted = "Session interrupted"
	MsgResumed     = "Session resumed"
)

var (
	// ErrClosed is returned by Post and Do once Run has returned.
	ErrClosed = errors.New("session controller closed")
	// ErrNotInterrupted is returned by Resume outside PhaseInterrupted.
	ErrNotInterrupted = errors.New("session is not interrupted")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrNoFrame is returned by PlaceAt before the first frame.
	ErrNoFrame = errors.New("no camera frame yet")
	// ErrNoHit is returned by PlaceAt when the point hits no plane.
	ErrNoHit = errors.New("no plane under point")
)

// Config wires a Controller to its collaborators. Runtime, Sink and
// Loader are required.
type Config struct {
	Runtime    ar.Runtime
	Sink       ar.SceneSink
	Loader     ar.ModelLoader
	Recognizer marker.Recognizer

	// Markers maps marker payloads to model names; nil uses
	// marker.DefaultTable.
	Markers map[string]string

	RunOptions         ar.RunOptions
	DebugVisualization bool
	TooDarkLumens      float64
	MessageDuration    time.Duration
	QueueSize          int

	Clock   timeutil.Clock
	Journal Journal
	Metrics *metrics.Metrics
}

type request struct {
	ctx   context.Context
	ev    Event
	reply chan error
}

// Controller is the session event loop. Handle is not safe for concurrent
// use; Run serializes every event posted through Post and Do. The read
// accessors are safe from any goroutine.
type Controller struct {
	cfg        Config
	clock      timeutil.Clock
	classifier quality.Classifier

	board     *status.Board
	pipeline  *marker.Pipeline
	sync      *anchors.Synchronizer
	placement *placement.Engine

	queue chan request
	done  chan struct{}
	once  sync.Once

	mu     sync.RWMutex // guards state, camera and component reads
	state  State
	camera *ar.Camera
	evCtx  context.Context
	anchor func() ar.AnchorID
}

// New creates a Controller in PhaseNotStarted.
func New(cfg Config) (*Controller, error) {
	if cfg.Runtime == nil || cfg.Sink == nil || cfg.Loader == nil {
		return nil, errors.New("session: runtime, sink and loader are required")
	}
	if cfg.Recognizer == nil {
		cfg.Recognizer = marker.NewQRRecognizer()
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 8
	}

	c := &Controller{
		cfg:        cfg,
		clock:      cfg.Clock,
		classifier: quality.Classifier{TooDarkLumens: cfg.TooDarkLumens},
		board:      status.NewBoard(cfg.Clock, cfg.MessageDuration),
		pipeline:   marker.NewPipeline(cfg.Recognizer, cfg.Markers),
		queue:      make(chan request, cfg.QueueSize),
		done:       make(chan struct{}),
		state: State{
			Phase:   PhaseNotStarted,
			Options: cfg.RunOptions,
		},
		anchor: func() ar.AnchorID { return ar.AnchorID("anchor-" + uuid.NewString()) },
	}
	c.placement = placement.NewEngine(cfg.Sink, cfg.Loader, cfg.Clock)
	c.placement.OnPlaced = c.onPlaced
	c.sync = anchors.NewSynchronizer(cfg.Sink, c.placement, cfg.DebugVisualization)
	c.board.SetCrosshair(string(quality.CrosshairNeutral))
	c.publishLocked()
	return c, nil
}

// Board returns the status board observed by the UI.
func (c *Controller) Board() *status.Board { return c.board }

// State returns a snapshot of the session state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Placed returns the placed objects in placement order.
func (c *Controller) Placed() []placement.PlacedObject {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.placement.Placed()
}

// Anchors returns the tracked anchors in arrival order.
func (c *Controller) Anchors() []ar.Anchor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sync.Registry().All()
}

func (c *Controller) snapshotLocked() State {
	s := c.state
	s.PhaseName = s.Label()
	s.Latched = c.pipeline.Latched()
	s.Mode = c.placement.Mode().String()
	return s
}

// Post queues ev for the event loop. It blocks while the queue is full.
func (c *Controller) Post(ctx context.Context, ev Event) error {
	return c.enqueue(request{ctx: ctx, ev: ev})
}

// Do queues ev and waits for the loop to handle it, returning the
// handling error.
func (c *Controller) Do(ctx context.Context, ev Event) error {
	req := request{ctx: ctx, ev: ev, reply: make(chan error, 1)}
	if err := c.enqueue(req); err != nil {
		return err
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

func (c *Controller) enqueue(req request) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.queue <- req:
		return nil
	case <-req.ctx.Done():
		return req.ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

// Run processes queued events until ctx is cancelled. Errors from events
// posted without a reply are logged.
func (c *Controller) Run(ctx context.Context) error {
	defer c.once.Do(func() {
		close(c.done)
		c.board.Close()
	})
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-c.queue:
			err := c.Handle(req.ctx, req.ev)
			if req.reply != nil {
				req.reply <- err
			} else if err != nil {
				monitoring.Opsf("session: %v: %v", req.ev, err)
			}
		}
	}
}

// Handle processes one event synchronously.
func (c *Controller) Handle(ctx context.Context, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	c.evCtx = ctx

	var err error
	switch ev := ev.(type) {
	case Start:
		err = c.start(ctx)
	case Interrupt:
		err = c.interrupt(ctx)
	case Resume:
		err = c.resume(ctx)
	case Fail:
		c.fail(ctx, ev.Err)
	case FrameEvent:
		c.handleFrame(ctx, ev.Frame)
	case AnchorAdded:
		c.cfg.Metrics.AnchorEvent("added", kindOf(ev.Anchor))
		err = c.sync.OnAnchorAdded(ev.Anchor)
		if errors.Is(err, assets.ErrModelNotFound) {
			c.cfg.Metrics.PlacementFailed()
		}
	case AnchorUpdated:
		c.cfg.Metrics.AnchorEvent("updated", kindOf(ev.Anchor))
		err = c.sync.OnAnchorUpdated(ev.Anchor)
	case AnchorRemoved:
		c.cfg.Metrics.AnchorEvent("removed", kindOf(ev.Anchor))
		err = c.sync.OnAnchorRemoved(ev.Anchor)
	case SetMode:
		c.placement.SetMode(ev.Mode)
	case ResetScene:
		err = c.placement.Reset()
		c.record(ctx, Entry{Kind: EntryReset, Message: "scene reset"})
	case PlaceAt:
		err = c.placeAt(ev.Point)
	default:
		err = fmt.Errorf("unhandled event %T", ev)
	}

	c.cfg.Metrics.SetSceneSize(c.placement.Len(), c.sync.Registry().Len())
	c.publishLocked()
	return err
}

// Start runs the tracking runtime. A runtime error moves the session to
// PhaseFailed and is not returned.
func (c *Controller) start(ctx context.Context) error {
	if c.state.Phase != PhaseNotStarted {
		return ErrAlreadyStarted
	}
	c.state.ID = uuid.NewString()
	c.state.StartedAt = c.clock.Now()
	if err := c.cfg.Runtime.Run(c.cfg.RunOptions); err != nil {
		c.fail(ctx, err)
		return nil
	}
	c.transition(PhaseInitializing, ar.ReasonNone)
	c.record(ctx, Entry{Kind: EntryLifecycle, Phase: c.state.Label(), Message: "session started"})
	return nil
}

func (c *Controller) interrupt(ctx context.Context) error {
	switch c.state.Phase {
	case PhaseNotStarted, PhaseFailed, PhaseInterrupted:
		return nil
	}
	c.cfg.Runtime.Pause()
	c.transition(PhaseInterrupted, ar.ReasonNone)
	c.announce(ctx, MsgInterrupted)
	return nil
}

// resume discards everything placed in the previous run and restarts
// tracking from a fresh world origin.
func (c *Controller) resume(ctx context.Context) error {
	if c.state.Phase != PhaseInterrupted {
		return fmt.Errorf("resume from %s: %w", c.state.Phase, ErrNotInterrupted)
	}

	var errs []error
	if err := c.placement.Reset(); err != nil {
		errs = append(errs, err)
	}
	c.pipeline.Reset()
	if err := c.sync.Reset(); err != nil {
		errs = append(errs, err)
	}
	c.camera = nil
	if err := errors.Join(errs...); err != nil {
		monitoring.Opsf("session: clearing scene on resume: %v", err)
	}

	opts := c.cfg.RunOptions
	opts.ResetTracking = true
	opts.RemoveExistingAnchors = true
	if err := c.cfg.Runtime.Run(opts); err != nil {
		c.fail(ctx, err)
		return nil
	}
	c.transition(PhaseTracking, ar.ReasonNone)
	c.announce(ctx, MsgResumed)
	return nil
}

func (c *Controller) fail(ctx context.Context, err error) {
	if err == nil {
		err = errors.New("tracking session failed")
	}
	c.transition(PhaseFailed, ar.ReasonNone)
	c.state.Error = err.Error()
	c.announce(ctx, err.Error())
}

// announce posts a transient lifecycle message and journals it.
func (c *Controller) announce(ctx context.Context, msg string) {
	c.board.Post(msg)
	c.record(ctx, Entry{Kind: EntryLifecycle, Phase: c.state.Label(), Message: msg})
}

func (c *Controller) transition(p Phase, reason ar.LimitedReason) {
	if c.state.Phase == p && c.state.Reason == reason {
		return
	}
	from := c.state.Label()
	c.state.Phase = p
	c.state.Reason = reason
	if p != PhaseFailed {
		c.state.Error = ""
	}
	monitoring.Diagf("session %s: %s -> %s", c.state.ID, from, c.state.Label())
	c.cfg.Metrics.Transition(p.String())
}

func (c *Controller) handleFrame(ctx context.Context, f ar.Frame) {
	if !c.state.Phase.acceptsFrames() {
		c.cfg.Metrics.FrameIgnored()
		return
	}
	c.cfg.Metrics.FrameProcessed()

	cam := f.Camera
	c.camera = &cam
	c.transition(phaseFor(cam.Tracking))

	var lumens *float64
	if c.cfg.RunOptions.EstimateLight {
		lumens = f.AmbientIntensity
	}
	c.board.SetTrackingText(c.classifier.Classify(cam.Tracking, lumens))

	if !c.pipeline.Latched() {
		found, err := c.pipeline.ProcessFrame(f, c.sync.Registry())
		switch {
		case errors.Is(err, marker.ErrUnexpectedResult):
			c.cfg.Metrics.RecognitionError("unexpected_result")
			monitoring.Opsf("session: %v", err)
		case err != nil:
			c.cfg.Metrics.RecognitionError("recognizer")
			monitoring.Opsf("session: %v", err)
		case found != nil:
			c.onMarkerFound(ctx, *found)
		}
	}

	hits := c.sync.Registry().HitTest(cam.ScreenRay(cam.Viewport.Center()))
	c.board.SetCrosshair(string(quality.Crosshair(len(hits) > 0)))
}

// onMarkerFound attaches the holder node at the marker and spawns the
// mapped model on it regardless of the interaction mode.
func (c *Controller) onMarkerFound(ctx context.Context, f marker.Found) {
	c.cfg.Metrics.MarkerResolved(f.Payload)
	c.record(ctx, Entry{
		Kind:     EntryMarker,
		AnchorID: string(f.Anchor.ID),
		Payload:  f.Payload,
		Model:    f.Model,
	})

	holder, err := c.sync.AttachMarker(f.Anchor)
	if err != nil {
		monitoring.Opsf("session: %v", err)
		return
	}
	if !f.HasModel {
		monitoring.Diagf("marker %q has no mapped model", f.Payload)
		return
	}
	if _, err := c.placement.PlaceMarkerModel(f.Anchor, holder, f.Model); err != nil {
		c.cfg.Metrics.PlacementFailed()
		monitoring.Opsf("session: %v", err)
	}
}

func (c *Controller) placeAt(p ar.ScreenPoint) error {
	if c.camera == nil {
		return ErrNoFrame
	}
	hits := c.sync.Registry().HitTest(c.camera.ScreenRay(p))
	if len(hits) == 0 {
		return fmt.Errorf("place at (%.0f,%.0f): %w", p.X, p.Y, ErrNoHit)
	}
	a := ar.Anchor{
		ID:        c.anchor(),
		Transform: hits[0].WorldTransform,
		Kind:      ar.GenericKind{},
	}
	if err := c.cfg.Runtime.AddAnchor(a); err != nil {
		return fmt.Errorf("add anchor on %s: %w", hits[0].AnchorID, err)
	}
	monitoring.Diagf("requested %s on plane %s", a, hits[0].AnchorID)
	return nil
}

func (c *Controller) onPlaced(obj placement.PlacedObject) {
	c.cfg.Metrics.Placed(string(obj.Source), obj.Model)
	c.record(c.evCtx, Entry{
		Kind:     EntryPlacement,
		AnchorID: string(obj.AnchorID),
		Model:    obj.Model,
		Message:  string(obj.Source),
		At:       obj.PlacedAt,
	})
}

func (c *Controller) record(ctx context.Context, e Entry) {
	if c.cfg.Journal == nil {
		return
	}
	e.SessionID = c.state.ID
	if e.At.IsZero() {
		e.At = c.clock.Now()
	}
	if err := c.cfg.Journal.Append(ctx, e); err != nil {
		monitoring.Opsf("session: journal %s: %v", e.Kind, err)
	}
}

func (c *Controller) publishLocked() {
	c.board.SetSession(c.state.Label())
}

func kindOf(a ar.Anchor) string {
	if a.Kind == nil {
		return "generic"
	}
	return a.Kind.String()
}
