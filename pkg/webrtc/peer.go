package webrtc

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/Sagnify/peergo/internal/logging"
	"github.com/pion/webrtc/v4"
)

// PeerTransportOptions represents options for a peer transport
type PeerTransportOptions struct {
	ICEServers []webrtc.ICEServer
	Logger     *logging.Logger
}

// DefaultPeerTransportOptions returns default options
func DefaultPeerTransportOptions(logger *logging.Logger) PeerTransportOptions {
	return PeerTransportOptions{
		Logger: logger,
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// PeerTransport implements Transport over a pion peer connection. The remote
// side opens the data channel; this side answers offers and waits for it.
type PeerTransport struct {
	id     string
	pc     *webrtc.PeerConnection
	logger *logging.Logger

	pendingCandidates []webrtc.ICECandidateInit
	candidatesMu      sync.Mutex

	channel   *DataChannel
	channelMu sync.RWMutex

	onOpen    func()
	onClose   func()
	onMessage func([]byte)
	handlerMu sync.RWMutex

	closeOnce sync.Once
}

// NewPeerTransport creates a new peer transport
func NewPeerTransport(id string, options PeerTransportOptions) (*PeerTransport, error) {
	config := webrtc.Configuration{
		ICEServers: options.ICEServers,
	}

	pc, err := webrtc.NewPeerConnection(config)
	if err != nil {
		return nil, err
	}

	p := &PeerTransport{
		id:                id,
		pc:                pc,
		logger:            options.Logger,
		pendingCandidates: make([]webrtc.ICECandidateInit, 0),
	}

	p.setupEventHandlers()

	return p, nil
}

// NewFactory returns a Factory producing pion-backed transports
func NewFactory(options PeerTransportOptions) Factory {
	return func(peerID string) (Transport, error) {
		return NewPeerTransport(peerID, options)
	}
}

// ID returns the transport's peer ID
func (p *PeerTransport) ID() string {
	return p.id
}

// Answer applies the remote offer, creates the local answer and returns its
// SDP once ICE gathering completes. The returned answer therefore carries
// the full candidate set and needs no trickling from this side.
func (p *PeerTransport) Answer(offerSDP string) (string, error) {
	if strings.TrimSpace(offerSDP) == "" {
		return "", ErrInvalidSDP
	}

	offer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offerSDP,
	}

	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return "", err
	}

	p.logger.Debug("set remote description", "peer_id", p.id)

	p.processPendingCandidates()

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}

	gatherComplete := webrtc.GatheringCompletePromise(p.pc)

	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}

	<-gatherComplete

	local := p.pc.LocalDescription()
	if local == nil {
		return "", ErrInvalidSDP
	}

	p.logger.Debug("created answer", "peer_id", p.id)

	return local.SDP, nil
}

// AddCandidate adds a remote ICE candidate
func (p *PeerTransport) AddCandidate(candidate string) error {
	init, err := parseCandidate(candidate)
	if err != nil {
		return err
	}

	// Queue until the remote description is applied
	if p.pc.RemoteDescription() == nil {
		p.candidatesMu.Lock()
		p.pendingCandidates = append(p.pendingCandidates, init)
		p.candidatesMu.Unlock()
		p.logger.Debug("queued ICE candidate", "peer_id", p.id)
		return nil
	}

	if err := p.pc.AddICECandidate(init); err != nil {
		return err
	}

	p.logger.Debug("added ICE candidate", "peer_id", p.id)

	return nil
}

// Send writes data over the peer's data channel
func (p *PeerTransport) Send(data []byte) error {
	p.channelMu.RLock()
	channel := p.channel
	p.channelMu.RUnlock()

	if channel == nil {
		return ErrDataChannelNotOpen
	}

	return channel.Send(data)
}

// OnOpen implements Transport
func (p *PeerTransport) OnOpen(fn func()) {
	p.handlerMu.Lock()
	defer p.handlerMu.Unlock()
	p.onOpen = fn
}

// OnClose implements Transport
func (p *PeerTransport) OnClose(fn func()) {
	p.handlerMu.Lock()
	defer p.handlerMu.Unlock()
	p.onClose = fn
}

// OnMessage implements Transport
func (p *PeerTransport) OnMessage(fn func(data []byte)) {
	p.handlerMu.Lock()
	defer p.handlerMu.Unlock()
	p.onMessage = fn
}

// Close closes the peer connection
func (p *PeerTransport) Close() error {
	return p.pc.Close()
}

// ConnectionState returns the current connection state
func (p *PeerTransport) ConnectionState() webrtc.PeerConnectionState {
	return p.pc.ConnectionState()
}

// setupEventHandlers sets up WebRTC event handlers
func (p *PeerTransport) setupEventHandlers() {
	p.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		p.logger.Info("data channel received", "peer_id", p.id, "label", dc.Label())
		p.bindChannel(NewDataChannel(dc, p.logger))
	})

	p.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.logger.Info("connection state changed", "peer_id", p.id, "state", state.String())

		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			p.fireClose()
		}
	})

	p.pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		p.logger.Debug("ICE connection state changed", "peer_id", p.id, "state", state.String())
	})

	p.pc.OnSignalingStateChange(func(state webrtc.SignalingState) {
		p.logger.Debug("signaling state changed", "peer_id", p.id, "state", state.String())
	})
}

// bindChannel wires the remote-created data channel into the transport callbacks
func (p *PeerTransport) bindChannel(channel *DataChannel) {
	p.channelMu.Lock()
	p.channel = channel
	p.channelMu.Unlock()

	channel.OnOpen(func() {
		p.handlerMu.RLock()
		handler := p.onOpen
		p.handlerMu.RUnlock()

		if handler != nil {
			handler()
		}
	})

	channel.OnClose(func() {
		p.fireClose()
	})

	channel.OnMessage(func(data []byte) {
		p.handlerMu.RLock()
		handler := p.onMessage
		p.handlerMu.RUnlock()

		if handler != nil {
			handler(data)
		}
	})
}

// fireClose invokes the close callback at most once
func (p *PeerTransport) fireClose() {
	p.closeOnce.Do(func() {
		p.handlerMu.RLock()
		handler := p.onClose
		p.handlerMu.RUnlock()

		if handler != nil {
			handler()
		}
	})
}

// processPendingCandidates applies queued ICE candidates
func (p *PeerTransport) processPendingCandidates() {
	p.candidatesMu.Lock()
	candidates := p.pendingCandidates
	p.pendingCandidates = nil
	p.candidatesMu.Unlock()

	for _, candidate := range candidates {
		if err := p.pc.AddICECandidate(candidate); err != nil {
			p.logger.Error("failed to add pending ICE candidate", "peer_id", p.id, "error", err)
		} else {
			p.logger.Debug("added pending ICE candidate", "peer_id", p.id)
		}
	}
}

// parseCandidate accepts either a bare candidate attribute or the JSON form
// browsers produce (RTCIceCandidateInit).
func parseCandidate(candidate string) (webrtc.ICECandidateInit, error) {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return webrtc.ICECandidateInit{}, ErrInvalidICECandidate
	}

	if strings.HasPrefix(trimmed, "{") {
		var init webrtc.ICECandidateInit
		if err := json.Unmarshal([]byte(trimmed), &init); err != nil {
			return webrtc.ICECandidateInit{}, ErrInvalidICECandidate
		}
		return init, nil
	}

	return webrtc.ICECandidateInit{Candidate: trimmed}, nil
}
