package replay

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/banshee-data/marker.place/internal/ar"
	"github.com/banshee-data/marker.place/internal/ar/session"
	"github.com/banshee-data/marker.place/internal/monitoring"
	"github.com/banshee-data/marker.place/internal/timeutil"
)

// DefaultFrameInterval paces frame records that carry no delay.
const DefaultFrameInterval = 33 * time.Millisecond

// ErrRunRefused is returned by Run when the runtime was configured to
// refuse, standing in for a denied camera permission.
var ErrRunRefused = errors.New("replay: camera access denied")

// PostFunc delivers an event to the session loop.
type PostFunc func(ctx context.Context, ev session.Event) error

// Runtime plays records in order. Data records wait while the runtime is
// paused or not yet running; lifecycle records are always delivered.
type Runtime struct {
	records []Record
	assets  fs.FS
	clock   timeutil.Clock

	frameInterval time.Duration
	loop          bool
	refuse        bool

	mu      sync.Mutex
	running bool
	runs    []ar.RunOptions
	echoes  []ar.Anchor
	wake    chan struct{}
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithAssets sets the filesystem image paths resolve against.
func WithAssets(fsys fs.FS) Option { return func(r *Runtime) { r.assets = fsys } }

// WithClock sets the clock used for pacing.
func WithClock(c timeutil.Clock) Option { return func(r *Runtime) { r.clock = c } }

// WithFrameInterval sets the default delay before each frame. Zero
// disables pacing.
func WithFrameInterval(d time.Duration) Option { return func(r *Runtime) { r.frameInterval = d } }

// WithLoop restarts playback from the first record after the last.
func WithLoop(loop bool) Option { return func(r *Runtime) { r.loop = loop } }

// WithRefusal makes every Run fail with ErrRunRefused.
func WithRefusal(refuse bool) Option { return func(r *Runtime) { r.refuse = refuse } }

// New creates a Runtime for records.
func New(records []Record, opts ...Option) *Runtime {
	r := &Runtime{
		records:       records,
		clock:         timeutil.RealClock{},
		frameInterval: DefaultFrameInterval,
		wake:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open loads a fixture file. Image paths resolve against the fixture's
// directory.
func Open(path string, opts ...Option) (*Runtime, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	records, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	opts = append([]Option{WithAssets(os.DirFS(filepath.Dir(path)))}, opts...)
	return New(records, opts...), nil
}

// Run starts or restarts delivery of data records.
func (r *Runtime) Run(opts ar.RunOptions) error {
	if r.refuse {
		return ErrRunRefused
	}
	r.mu.Lock()
	r.running = true
	r.runs = append(r.runs, opts)
	if opts.RemoveExistingAnchors {
		r.echoes = nil
	}
	r.mu.Unlock()
	monitoring.Diagf("replay: run %+v", opts)
	r.signal()
	return nil
}

// Pause stops delivery of data records.
func (r *Runtime) Pause() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	monitoring.Diagf("replay: paused")
}

// AddAnchor echoes a as an anchor-added event before the next record.
func (r *Runtime) AddAnchor(a ar.Anchor) error {
	r.mu.Lock()
	r.echoes = append(r.echoes, a)
	r.mu.Unlock()
	r.signal()
	return nil
}

// Runs returns the options of every successful Run call.
func (r *Runtime) Runs() []ar.RunOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ar.RunOptions(nil), r.runs...)
}

func (r *Runtime) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Serve plays the records and then keeps echoing anchors added through
// AddAnchor until ctx is cancelled.
func (r *Runtime) Serve(ctx context.Context, post PostFunc) error {
	if err := r.Play(ctx, post); err != nil {
		return err
	}
	monitoring.Diagf("replay: playback finished")
	for {
		if err := r.flushEchoes(ctx, post); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.wake:
		}
	}
}

// Play delivers records through post until they are exhausted or ctx is
// cancelled. Records that fail to convert are logged and skipped. With
// WithLoop, Play only returns on error.
func (r *Runtime) Play(ctx context.Context, post PostFunc) error {
	for {
		for i := 0; i < len(r.records); i++ {
			rec := r.records[i]
			if err := r.await(ctx, rec); err != nil {
				return err
			}
			if err := r.flushEchoes(ctx, post); err != nil {
				return err
			}
			if r.skip(rec) {
				continue
			}
			if err := r.pace(ctx, rec); err != nil {
				return err
			}

			ev, err := rec.Event(r.assets)
			if err != nil {
				monitoring.Opsf("replay: record %d: %v", i, err)
				continue
			}
			monitoring.Tracef("replay: %v", ev)
			if err := post(ctx, ev); err != nil {
				return err
			}
		}
		if !r.loop || len(r.records) == 0 {
			return r.flushEchoes(ctx, post)
		}
	}
}

// await blocks data records until the runtime is running.
func (r *Runtime) await(ctx context.Context, rec Record) error {
	if rec.isLifecycle() {
		return nil
	}
	for {
		r.mu.Lock()
		running := r.running
		r.mu.Unlock()
		if running {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.wake:
		}
	}
}

// skip drops plane anchors when plane detection is off.
func (r *Runtime) skip(rec Record) bool {
	if rec.Anchor == nil || rec.Anchor.Kind != "plane" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs) > 0 && !r.runs[len(r.runs)-1].DetectPlanes
}

func (r *Runtime) flushEchoes(ctx context.Context, post PostFunc) error {
	r.mu.Lock()
	echoes := r.echoes
	r.echoes = nil
	r.mu.Unlock()

	for _, a := range echoes {
		if err := post(ctx, session.AnchorAdded{Anchor: a}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) pace(ctx context.Context, rec Record) error {
	d := time.Duration(rec.DelayMS) * time.Millisecond
	if d == 0 && rec.Type == TypeFrame {
		d = r.frameInterval
	}
	if d <= 0 {
		return nil
	}
	fired := make(chan struct{})
	t := r.clock.AfterFunc(d, func() { close(fired) })
	select {
	case <-fired:
		return nil
	case <-ctx.Done():
		t.Stop()
		return ctx.Err()
	}
}
