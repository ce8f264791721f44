package signaling

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sagnify/peergo/internal/eventbus"
	"github.com/Sagnify/peergo/internal/logging"
	"github.com/Sagnify/peergo/pkg/errors"
	"github.com/Sagnify/peergo/pkg/webrtc"
)

// ManagerOptions configures a Manager
type ManagerOptions struct {
	Logger           *logging.Logger
	EventBus         eventbus.Bus
	TransportFactory webrtc.Factory
	RequestTimeout   time.Duration
	QueueSize        int
}

// DefaultManagerOptions returns default options backed by pion transports
func DefaultManagerOptions(logger *logging.Logger) ManagerOptions {
	return ManagerOptions{
		Logger:           logger,
		TransportFactory: webrtc.NewFactory(webrtc.DefaultPeerTransportOptions(logger)),
		RequestTimeout:   10 * time.Second,
		QueueSize:        256,
	}
}

// Manager owns the room table and the handler registry, and bridges
// synchronous callers into the single engine goroutine that owns every room
// and peer mutation. Instances are independent; nothing is process-global.
type Manager struct {
	rooms    map[string]*Room // engine goroutine only
	handlers *HandlerRegistry

	tasks   chan *task
	factory webrtc.Factory
	timeout time.Duration

	logger   *logging.Logger
	eventBus eventbus.Bus

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime         time.Time
	messagesRelayed   int64
	messagesBroadcast int64
}

type task struct {
	name string
	fn   func() (any, error)
	done chan taskResult // nil for fire-and-forget work
}

type taskResult struct {
	value any
	err   error
}

// Stats reports operational counters
type Stats struct {
	Rooms             int     `json:"rooms"`
	Peers             int     `json:"peers"`
	MessagesRelayed   int64   `json:"messages_relayed"`
	MessagesBroadcast int64   `json:"messages_broadcast"`
	Uptime            float64 `json:"uptime_seconds"`
}

// NewManager creates a new manager
func NewManager(opts ManagerOptions) *Manager {
	if opts.Logger == nil {
		opts.Logger = logging.New(logging.Config{Level: "info", Format: "text"})
	}
	if opts.TransportFactory == nil {
		opts.TransportFactory = webrtc.NewFactory(webrtc.DefaultPeerTransportOptions(opts.Logger))
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}

	return &Manager{
		rooms:     make(map[string]*Room),
		handlers:  NewHandlerRegistry(opts.Logger),
		tasks:     make(chan *task, opts.QueueSize),
		factory:   opts.TransportFactory,
		timeout:   opts.RequestTimeout,
		logger:    opts.Logger,
		eventBus:  opts.EventBus,
		startTime: time.Now(),
	}
}

// Handlers returns the manager's handler registry
func (m *Manager) Handlers() *HandlerRegistry {
	return m.handlers
}

// Start starts the engine goroutine
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go m.run()
	m.logger.Info("signaling engine started")
	return nil
}

// Stop stops the engine and tears down every peer connection
func (m *Manager) Stop() error {
	if m.cancel == nil {
		return nil
	}

	m.cancel()
	m.wg.Wait()

	// The engine goroutine is gone; the room table is safe to touch here.
	for name, room := range m.rooms {
		for _, id := range room.peerIDs() {
			peer, _ := room.peer(id)
			peer.state = StateClosed
			if err := peer.transport.Close(); err != nil {
				m.logger.Error("failed to close transport", "room", name, "peer_id", id, "error", err)
			}
		}
	}
	m.rooms = make(map[string]*Room)

	m.logger.Info("signaling engine stopped")
	return nil
}

// run is the engine loop; every room and peer mutation happens here
func (m *Manager) run() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case t := <-m.tasks:
			m.execute(t)
		}
	}
}

func (m *Manager) execute(t *task) {
	value, err := m.runProtected(t)
	if t.done != nil {
		t.done <- taskResult{value: value, err: err}
	}
}

func (m *Manager) runProtected(t *task) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Error("engine task panicked", "task", t.name, "panic", rec)
			m.publish(eventbus.EventError, map[string]any{
				"task":  t.name,
				"panic": fmt.Sprint(rec),
			})
			value = nil
			err = errors.New(errors.ErrorTypeInternal, errors.CodeInternal, "engine task failed")
		}
	}()

	return t.fn()
}

// do submits fn to the engine goroutine and waits for its result within the
// bounded timeout. On timeout the submitted work is not cancelled: it may
// still run and mutate state, so a timeout means unknown outcome.
func (m *Manager) do(name string, fn func() (any, error)) (any, error) {
	if m.ctx == nil {
		return nil, ErrEngineNotStarted
	}

	t := &task{name: name, fn: fn, done: make(chan taskResult, 1)}

	select {
	case m.tasks <- t:
	case <-m.ctx.Done():
		return nil, ErrEngineStopped
	}

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case res := <-t.done:
		return res.value, res.err
	case <-m.ctx.Done():
		return nil, ErrEngineStopped
	case <-timer.C:
		m.logger.Warn("engine request timed out", "task", name, "timeout", m.timeout)
		return nil, errors.New(errors.ErrorTypeTimeout, errors.CodeEngineTimeout,
			"engine did not answer within "+m.timeout.String())
	}
}

// submit hands fire-and-forget work to the engine goroutine. Dropped, with a
// log line, when the queue is full.
func (m *Manager) submit(name string, fn func()) {
	if m.ctx == nil {
		return
	}

	t := &task{name: name, fn: func() (any, error) {
		fn()
		return nil, nil
	}}

	select {
	case m.tasks <- t:
	case <-m.ctx.Done():
	default:
		m.logger.Error("engine queue full, dropping task", "task", name)
	}
}

// Offer handles a peer's SDP offer and returns the answer SDP. The first
// peer of an unknown room creates the room and becomes its host. An offer
// for an existing peer renegotiates instead of adding a duplicate.
//
// Answering blocks on ICE gathering, which can wait out a slow STUN server,
// so it runs on the caller's goroutine: the engine only prepares the peer
// entry and later commits the negotiated state. Candidates arriving in
// between are buffered on the peer and flushed at commit.
func (m *Manager) Offer(roomName, peerID, offerSDP string, info map[string]any) (string, error) {
	if roomName == "" || peerID == "" || offerSDP == "" {
		return "", errors.New(errors.ErrorTypeValidation, errors.CodeInvalidRequest,
			"room, peer_id and offer are required")
	}

	value, err := m.do("offer-prepare", func() (any, error) {
		return m.prepareOffer(roomName, peerID, info)
	})
	if err != nil {
		return "", err
	}
	prep := value.(*offerPrep)

	answer, err := prep.transport.Answer(offerSDP)
	if err != nil {
		m.submit("offer-abort", func() { m.abortOffer(roomName, peerID, prep) })
		return "", errors.Wrap(err, errors.ErrorTypeNegotiation, errors.CodeNegotiationFailed,
			"engine rejected offer")
	}

	if _, err := m.do("offer-commit", func() (any, error) {
		m.commitOffer(roomName, peerID, prep)
		return nil, nil
	}); err != nil {
		return "", err
	}

	return answer, nil
}

// Candidate applies a trickled ICE candidate to the named peer. Candidates
// for unknown rooms or peers are discarded: they are expected to race leave.
func (m *Manager) Candidate(roomName, peerID, candidate string) error {
	if roomName == "" || peerID == "" || candidate == "" {
		return errors.New(errors.ErrorTypeValidation, errors.CodeInvalidRequest,
			"room, peer_id and candidate are required")
	}

	_, err := m.do("candidate", func() (any, error) {
		return nil, m.handleCandidate(roomName, peerID, candidate)
	})
	return err
}

// Leave removes a peer from a room. Leaving a peer or room that does not
// exist is a no-op.
func (m *Manager) Leave(roomName, peerID string) error {
	if roomName == "" || peerID == "" {
		return errors.New(errors.ErrorTypeValidation, errors.CodeInvalidRequest,
			"room and peer_id are required")
	}

	_, err := m.do("leave", func() (any, error) {
		m.removePeer(roomName, peerID, nil, "leave")
		return nil, nil
	})
	return err
}

// RoomPeers returns a snapshot of a room's peers in join order; empty when
// the room does not exist.
func (m *Manager) RoomPeers(roomName string) ([]PeerInfo, error) {
	value, err := m.do("room-peers", func() (any, error) {
		room, ok := m.rooms[roomName]
		if !ok {
			return []PeerInfo{}, nil
		}
		return room.snapshot(), nil
	})
	if err != nil {
		return nil, err
	}

	peers, _ := value.([]PeerInfo)
	return peers, nil
}

// RoomsInfo returns a snapshot summary of every room
func (m *Manager) RoomsInfo() (map[string]RoomInfo, error) {
	value, err := m.do("rooms-info", func() (any, error) {
		infos := make(map[string]RoomInfo, len(m.rooms))
		for name, room := range m.rooms {
			infos[name] = room.info()
		}
		return infos, nil
	})
	if err != nil {
		return nil, err
	}

	infos, _ := value.(map[string]RoomInfo)
	return infos, nil
}

// Stats returns operational counters
func (m *Manager) Stats() (Stats, error) {
	value, err := m.do("stats", func() (any, error) {
		peers := 0
		for _, room := range m.rooms {
			peers += room.size()
		}
		return Stats{
			Rooms:             len(m.rooms),
			Peers:             peers,
			MessagesRelayed:   atomic.LoadInt64(&m.messagesRelayed),
			MessagesBroadcast: atomic.LoadInt64(&m.messagesBroadcast),
			Uptime:            time.Since(m.startTime).Seconds(),
		}, nil
	})
	if err != nil {
		return Stats{}, err
	}

	stats, _ := value.(Stats)
	return stats, nil
}

// offerPrep carries a prepared offer between the engine phases. The peer and
// transport pin the identity the commit or abort must still find in the room;
// a peer replaced in the meantime is left alone.
type offerPrep struct {
	peer        *Peer
	transport   webrtc.Transport
	renegotiate bool
}

// prepareOffer runs on the engine goroutine. For a new peer it creates the
// transport and inserts the peer in pending state, so candidates arriving
// while the answer is gathered get buffered instead of discarded.
func (m *Manager) prepareOffer(roomName, peerID string, info map[string]any) (*offerPrep, error) {
	room, exists := m.rooms[roomName]

	if exists {
		if peer, known := room.peer(peerID); known {
			// Renegotiation: reuse the connection. Candidates buffer until
			// the refreshed description is committed.
			peer.remoteApplied = false
			if info != nil {
				peer.info = info
			}
			return &offerPrep{peer: peer, transport: peer.transport, renegotiate: true}, nil
		}
	}

	transport, err := m.factory(peerID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.CodeInternal,
			"failed to create peer transport")
	}

	peer := newPeer(peerID, info, transport)

	// Transport events originate on the engine's own callbacks; hop back
	// onto the engine goroutine before touching any state. Each closure
	// carries its transport so events from a replaced transport are ignored.
	transport.OnOpen(func() {
		m.submit("channel-open", func() { m.handleChannelOpen(roomName, peerID, transport) })
	})
	transport.OnClose(func() {
		m.submit("channel-close", func() { m.removePeer(roomName, peerID, transport, "disconnect") })
	})
	transport.OnMessage(func(data []byte) {
		m.submit("inbound-message", func() { m.handleInbound(roomName, peerID, transport, string(data)) })
	})

	if !exists {
		room = newRoom(roomName)
		m.rooms[roomName] = room
		m.logger.Info("room created", "room", roomName)
		m.publish(eventbus.EventRoomCreated, map[string]any{"room": roomName})
	}

	room.addPeer(peer)

	if hostID, changed := room.electHost(); changed {
		m.logger.Info("host assigned", "room", roomName, "host_id", hostID)
		m.publish(eventbus.EventHostChanged, map[string]any{"room": roomName, "host_id": hostID})
	}

	m.logger.Info("peer pending",
		"room", roomName,
		"peer_id", peerID,
		"peers", room.size(),
	)

	return &offerPrep{peer: peer, transport: transport}, nil
}

// abortOffer runs on the engine goroutine after the engine rejected the SDP
func (m *Manager) abortOffer(roomName, peerID string, prep *offerPrep) {
	room, ok := m.rooms[roomName]
	if !ok {
		return
	}

	peer, ok := room.peer(peerID)
	if !ok || peer != prep.peer {
		return
	}

	if prep.renegotiate {
		// The previous description still stands; resume applying candidates.
		peer.remoteApplied = true
		peer.flushCandidates(m.logger)
		return
	}

	// A rejected first offer never becomes a member.
	m.removePeer(roomName, peerID, prep.transport, "offer rejected")
}

// commitOffer runs on the engine goroutine once the answer exists. A peer
// that left (or was replaced) while gathering ran is left untouched.
func (m *Manager) commitOffer(roomName, peerID string, prep *offerPrep) {
	room, ok := m.rooms[roomName]
	if !ok {
		return
	}

	peer, ok := room.peer(peerID)
	if !ok || peer != prep.peer {
		return
	}

	if peer.state == StatePending {
		peer.state = StateNegotiating
	}
	peer.remoteApplied = true
	peer.flushCandidates(m.logger)

	if prep.renegotiate {
		m.logger.Info("peer renegotiated", "room", roomName, "peer_id", peerID)
		return
	}

	m.logger.Info("peer negotiating",
		"room", roomName,
		"peer_id", peerID,
		"peers", room.size(),
	)
}

// handleCandidate runs on the engine goroutine
func (m *Manager) handleCandidate(roomName, peerID, candidate string) error {
	room, ok := m.rooms[roomName]
	if !ok {
		m.logger.Debug("candidate for unknown room discarded", "room", roomName, "peer_id", peerID)
		return nil
	}

	peer, ok := room.peer(peerID)
	if !ok || peer.state == StateClosed {
		m.logger.Debug("candidate for unknown peer discarded", "room", roomName, "peer_id", peerID)
		return nil
	}

	if !peer.remoteApplied {
		peer.bufferCandidate(candidate)
		m.logger.Debug("candidate buffered", "room", roomName, "peer_id", peerID)
		return nil
	}

	if err := peer.applyCandidate(candidate); err != nil {
		return errors.Wrap(err, errors.ErrorTypeNegotiation, errors.CodeNegotiationFailed,
			"engine rejected candidate")
	}

	return nil
}

// handleChannelOpen runs on the engine goroutine
func (m *Manager) handleChannelOpen(roomName, peerID string, transport webrtc.Transport) {
	room, ok := m.rooms[roomName]
	if !ok {
		return
	}

	peer, ok := room.peer(peerID)
	if !ok || peer.state != StateNegotiating {
		return
	}

	if peer.transport != transport {
		m.logger.Debug("ignoring open from replaced transport", "room", roomName, "peer_id", peerID)
		return
	}

	peer.state = StateConnected
	info := peer.snapshot()

	m.logger.Info("peer connected", "room", roomName, "peer_id", peerID)
	m.publish(eventbus.EventPeerConnected, info)

	if !peer.joinAnnounced {
		peer.joinAnnounced = true
		m.handlers.dispatchPeerJoined(roomName, info)
	}
}

// removePeer runs on the engine goroutine. It is the single teardown path
// for leave, transport failure and engine-reported disconnects, and is
// idempotent. A non-nil transport must still be the peer's current one: a
// reused peer ID is a brand-new peer, and a late close event from its
// predecessor's transport must not tear it down.
func (m *Manager) removePeer(roomName, peerID string, transport webrtc.Transport, reason string) {
	room, ok := m.rooms[roomName]
	if !ok {
		return
	}

	peer, ok := room.peer(peerID)
	if !ok {
		return
	}

	if transport != nil && peer.transport != transport {
		m.logger.Debug("ignoring close from replaced transport", "room", roomName, "peer_id", peerID)
		return
	}

	room.removePeer(peerID)

	// peer_left fires only for peers that actually reached connected
	wasConnected := peer.state == StateConnected
	info := peer.snapshot()
	peer.state = StateClosed

	if err := peer.transport.Close(); err != nil {
		m.logger.Error("failed to close transport", "room", roomName, "peer_id", peerID, "error", err)
	}

	m.logger.Info("peer removed",
		"room", roomName,
		"peer_id", peerID,
		"reason", reason,
		"peers", room.size(),
	)

	if wasConnected {
		m.publish(eventbus.EventPeerLeft, info)
		m.handlers.dispatchPeerLeft(roomName, info)
	}

	if room.size() == 0 {
		delete(m.rooms, roomName)
		m.logger.Info("room closed", "room", roomName)
		m.publish(eventbus.EventRoomClosed, map[string]any{"room": roomName})
		return
	}

	if hostID, changed := room.electHost(); changed {
		m.logger.Info("host promoted", "room", roomName, "host_id", hostID)
		m.publish(eventbus.EventHostChanged, map[string]any{"room": roomName, "host_id": hostID})
	}
}

// handleInbound runs on the engine goroutine: relays a data channel message
// to the sender's roommates, then dispatches the message handler.
func (m *Manager) handleInbound(roomName, senderID string, transport webrtc.Transport, message string) {
	room, ok := m.rooms[roomName]
	if !ok {
		return
	}

	sender, ok := room.peer(senderID)
	if !ok || sender.transport != transport {
		return
	}

	for _, id := range room.peerIDs() {
		if id == senderID {
			continue
		}

		peer, _ := room.peer(id)
		if peer.state != StateConnected {
			continue
		}

		if err := peer.transport.Send([]byte(message)); err != nil {
			m.logger.Error("failed to relay message",
				"room", roomName,
				"from", senderID,
				"to", id,
				"error", err,
			)
		}
	}

	atomic.AddInt64(&m.messagesRelayed, 1)
	m.publish(eventbus.EventMessageReceived, map[string]any{
		"room":   roomName,
		"sender": senderID,
		"size":   len(message),
	})

	m.handlers.dispatchMessage(roomName, senderID, message)
}

// broadcastMessage runs on the engine goroutine; best effort per peer
func (m *Manager) broadcastMessage(roomName, message string) {
	room, ok := m.rooms[roomName]
	if !ok {
		m.logger.Debug("broadcast to unknown room", "room", roomName)
		return
	}

	var sent, failed int
	for _, id := range room.peerIDs() {
		peer, _ := room.peer(id)
		if peer.state != StateConnected {
			continue
		}

		if err := peer.transport.Send([]byte(message)); err != nil {
			failed++
			m.logger.Error("failed to send broadcast", "room", roomName, "peer_id", id, "error", err)
			continue
		}
		sent++
	}

	atomic.AddInt64(&m.messagesBroadcast, 1)
	m.publish(eventbus.EventBroadcastSent, map[string]any{
		"room":   roomName,
		"sent":   sent,
		"failed": failed,
	})

	m.logger.Debug("broadcast complete", "room", roomName, "sent", sent, "failed", failed)
}

func (m *Manager) publish(eventType eventbus.EventType, data any) {
	if m.eventBus == nil {
		return
	}
	m.eventBus.PublishAsync(eventbus.NewEvent(eventType, "signaling", data))
}
