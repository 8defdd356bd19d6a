// Package scenestream streams scene graph changes and status snapshots
// to remote viewers over gRPC.
//
// The Publisher sits in front of the real scene sink: every node command
// is applied to the wrapped sink first and, once it succeeds, fanned out
// to connected streaming clients. Slow clients miss events instead of
// stalling the session loop.
package scenestream

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"
	"google.golang.org/grpc"

	"github.com/banshee-data/marker.place/internal/ar"
	"github.com/banshee-data/marker.place/internal/ar/scenegraph"
	"github.com/banshee-data/marker.place/internal/monitoring"
)

// ErrTooManyClients is returned when MaxClients streams are already open.
var ErrTooManyClients = errors.New("too many streaming clients")

const (
	eventQueue  = 100
	clientQueue = 32
	maxMsgSize  = 1 << 20
)

// Config holds configuration for the scene stream server.
type Config struct {
	// ListenAddr is the address to listen on (e.g. "localhost:50051").
	ListenAddr string

	// MaxClients caps concurrent scene streams. Zero means no cap.
	MaxClients int
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr: "localhost:50051",
		MaxClients: 5,
	}
}

// Op is the kind of scene change carried by an Event.
type Op string

const (
	OpAttach Op = "attach"
	OpDetach Op = "detach"
	OpResize Op = "resize"
)

// Event is one scene change. Seq is zero for events replayed from the
// current scene when a client connects.
type Event struct {
	Seq    uint64
	Op     Op
	Anchor ar.AnchorID
	Node   ar.Node
}

// Snapshotter is implemented by sinks that can list their current nodes.
type Snapshotter interface {
	Snapshot() []scenegraph.AnchorNodes
}

type clientStream struct {
	id      string
	eventCh chan Event
	doneCh  chan struct{}
}

// Publisher implements ar.SceneSink over another sink and owns the gRPC
// server. Node commands pass through whether or not the server runs.
type Publisher struct {
	config   Config
	sink     ar.SceneSink
	server   *grpc.Server
	listener net.Listener

	nodesMu sync.Mutex
	nodes   map[string]ar.AnchorID

	eventChan chan Event
	clients   map[string]*clientStream
	clientsMu sync.RWMutex

	seq           atomic.Uint64
	clientCount   atomic.Int32
	droppedEvents atomic.Uint64

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPublisher wraps sink.
func NewPublisher(cfg Config, sink ar.SceneSink) *Publisher {
	return &Publisher{
		config:    cfg,
		sink:      sink,
		nodes:     make(map[string]ar.AnchorID),
		eventChan: make(chan Event, eventQueue),
		clients:   make(map[string]*clientStream),
		stopCh:    make(chan struct{}),
	}
}

// AttachNode attaches on the wrapped sink and publishes the attach.
func (p *Publisher) AttachNode(parent ar.AnchorID, node *ar.Node) error {
	if err := p.sink.AttachNode(parent, node); err != nil {
		return err
	}
	p.nodesMu.Lock()
	p.nodes[node.ID] = parent
	p.nodesMu.Unlock()
	p.publish(OpAttach, parent, *node)
	return nil
}

// DetachNode detaches on the wrapped sink and publishes the detach.
func (p *Publisher) DetachNode(node *ar.Node) error {
	if err := p.sink.DetachNode(node); err != nil {
		return err
	}
	p.nodesMu.Lock()
	anchor := p.nodes[node.ID]
	delete(p.nodes, node.ID)
	p.nodesMu.Unlock()
	p.publish(OpDetach, anchor, *node)
	return nil
}

// ResizePlaneNode resizes on the wrapped sink and publishes the new
// geometry.
func (p *Publisher) ResizePlaneNode(node *ar.Node, center, extent r3.Vec) error {
	if err := p.sink.ResizePlaneNode(node, center, extent); err != nil {
		return err
	}
	p.nodesMu.Lock()
	anchor := p.nodes[node.ID]
	p.nodesMu.Unlock()
	n := *node
	n.Center = center
	n.Extent = extent
	p.publish(OpResize, anchor, n)
	return nil
}

func (p *Publisher) publish(op Op, anchor ar.AnchorID, n ar.Node) {
	if !p.running.Load() {
		return
	}
	ev := Event{Seq: p.seq.Add(1), Op: op, Anchor: anchor, Node: n}
	select {
	case p.eventChan <- ev:
	default:
		p.droppedEvents.Add(1)
		monitoring.Opsf("scenestream: event queue full, dropping %s of %s", op, n.ID)
	}
}

// currentScene lists the wrapped sink's nodes as attach events.
func (p *Publisher) currentScene() []Event {
	snap, ok := p.sink.(Snapshotter)
	if !ok {
		return nil
	}
	var out []Event
	for _, entry := range snap.Snapshot() {
		for _, n := range entry.Nodes {
			out = append(out, Event{Op: OpAttach, Anchor: entry.Anchor, Node: n})
		}
	}
	return out
}

// Start listens on the configured address and serves srv.
func (p *Publisher) Start(srv SceneServiceServer) error {
	if p.running.Load() {
		return fmt.Errorf("publisher already running")
	}

	lis, err := net.Listen("tcp", p.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	p.listener = lis

	p.server = grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	)
	RegisterService(p.server, srv)

	p.running.Store(true)

	p.wg.Add(1)
	go p.broadcastLoop()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		monitoring.Diagf("scenestream: gRPC server listening on %s", lis.Addr())
		if err := p.server.Serve(lis); err != nil && p.running.Load() {
			monitoring.Opsf("scenestream: gRPC server error: %v", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, or nil before Start.
func (p *Publisher) Addr() net.Addr {
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

// Stop ends every stream and gracefully stops the gRPC server.
func (p *Publisher) Stop() {
	if !p.running.Load() {
		return
	}
	p.running.Store(false)
	close(p.stopCh)

	if p.server != nil {
		p.server.GracefulStop()
	}
	if p.listener != nil {
		p.listener.Close()
	}

	p.wg.Wait()
	monitoring.Diagf("scenestream: gRPC server stopped")
}

// broadcastLoop distributes events to all connected clients.
func (p *Publisher) broadcastLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case ev := <-p.eventChan:
			p.clientsMu.RLock()
			for _, client := range p.clients {
				select {
				case client.eventCh <- ev:
				default:
					p.droppedEvents.Add(1)
				}
			}
			p.clientsMu.RUnlock()
		}
	}
}

// addClient registers a streaming client.
func (p *Publisher) addClient(id string) (*clientStream, error) {
	p.clientsMu.Lock()
	defer p.clientsMu.Unlock()
	if p.config.MaxClients > 0 && len(p.clients) >= p.config.MaxClients {
		return nil, fmt.Errorf("add client %s: %w", id, ErrTooManyClients)
	}
	client := &clientStream{
		id:      id,
		eventCh: make(chan Event, clientQueue),
		doneCh:  make(chan struct{}),
	}
	p.clients[id] = client
	p.clientCount.Add(1)
	monitoring.Diagf("scenestream: client connected: %s (total: %d)", id, p.clientCount.Load())
	return client, nil
}

// removeClient unregisters a streaming client.
func (p *Publisher) removeClient(id string) {
	p.clientsMu.Lock()
	defer p.clientsMu.Unlock()
	client, ok := p.clients[id]
	if !ok {
		return
	}
	close(client.doneCh)
	delete(p.clients, id)
	p.clientCount.Add(-1)
	monitoring.Diagf("scenestream: client disconnected: %s (remaining: %d)", id, p.clientCount.Load())
}

// Stats returns current publisher statistics.
func (p *Publisher) Stats() Stats {
	return Stats{
		Events:  p.seq.Load(),
		Clients: p.clientCount.Load(),
		Dropped: p.droppedEvents.Load(),
		Running: p.running.Load(),
	}
}

// Stats contains publisher statistics.
type Stats struct {
	Events  uint64
	Clients int32
	Dropped uint64
	Running bool
}
